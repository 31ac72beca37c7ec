package table

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rahul/steptable/internal/dom"
)

const addLineSelector = ".add-sub-step-btn, .anticon-plus"

// FillResult reports a fill pass. Filled counts records whose step and result
// were both committed.
type FillResult struct {
	Success  bool     `json:"success"`
	Filled   int      `json:"filled"`
	Total    int      `json:"total"`
	Errors   []string `json:"errors"`
	Error    string   `json:"error,omitempty"`
	Failures []error  `json:"-"`
}

func (r *FillResult) fail(err error) {
	r.Failures = append(r.Failures, err)
	r.Errors = append(r.Errors, err.Error())
}

// Filler writes records into the table row by row.
type Filler struct {
	Locator    *Locator
	Strategies []CommitStrategy

	// AddLineWait bounds the wait for a new result control after clicking
	// the cell's add affordance.
	AddLineWait  time.Duration
	PollInterval time.Duration
}

// NewFiller returns a Filler with the default strategies and timings.
func NewFiller() *Filler {
	return &Filler{
		Locator:      &Locator{},
		Strategies:   DefaultCommitStrategies,
		AddLineWait:  DefaultGrowOptions().MaxWaitForResponse,
		PollInterval: DefaultGrowOptions().PollInterval,
	}
}

// Fill maps records[i] onto row i. Failures are collected per record and
// never stop the pass; whatever was written stays written.
func (f *Filler) Fill(ctx context.Context, doc dom.Document, records []Record) (FillResult, error) {
	if len(records) == 0 {
		err := fmt.Errorf("%w: records must be a non-empty array", ErrInvalidInput)
		return FillResult{Errors: []string{}, Error: err.Error()}, err
	}
	res := FillResult{Total: len(records), Errors: []string{}}
	var pass fillPass

	rows, err := f.Locator.Rows(ctx, doc)
	if err != nil {
		return res, err
	}
	cols, err := f.Locator.Columns(ctx, doc)
	if err != nil {
		return res, err
	}

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		item := i + 1
		if i >= len(rows) {
			res.fail(fmt.Errorf("item %d: %w (only %d rows)", item, ErrRowsInsufficient, len(rows)))
			continue
		}
		tds, err := cells(ctx, rows[i])
		if err != nil {
			return res, err
		}
		if len(tds) < cols.Width() {
			res.fail(fmt.Errorf("item %d: %w", item, ErrInsufficientColumns))
			continue
		}

		stepOK := true
		if err := f.fillStep(ctx, tds[cols.Step], rec.Step); err != nil {
			stepOK = false
			res.fail(fmt.Errorf("item %d: step description: %w", item, err))
		}
		if err := f.fillResult(ctx, tds[cols.Result], rec.Expected, &pass); err != nil {
			res.fail(fmt.Errorf("item %d: expected result: %w", item, err))
		} else if stepOK {
			res.Filled++
		}
	}

	res.Success = len(res.Errors) == 0
	log.Printf("fill: %d/%d records filled, %d errors", res.Filled, res.Total, len(res.Errors))
	return res, nil
}

func (f *Filler) controls(ctx context.Context, cell dom.Element) ([]dom.Element, error) {
	return dom.QueryAny(ctx, cell, stepControlSelector, "textarea")
}

func (f *Filler) commit(ctx context.Context, el dom.Element, value string) error {
	if err := Commit(ctx, el, value, f.Strategies); err != nil {
		return fmt.Errorf("%w: %v", ErrFieldFillFailed, err)
	}
	return nil
}

func (f *Filler) fillStep(ctx context.Context, cell dom.Element, value string) error {
	controls, err := f.controls(ctx, cell)
	if err != nil {
		return err
	}
	if len(controls) == 0 {
		return fmt.Errorf("%w: no editable control", ErrFieldFillFailed)
	}
	return f.commit(ctx, controls[0], value)
}

// fillPass is state shared by the records of one Fill call.
type fillPass struct {
	// addUnresponsive is set once an add click produced no control; later
	// cells skip the affordance instead of waiting on it again.
	addUnresponsive bool
}

// fillResult puts one line per control. Lines that already have a control are
// written first; the rest get controls through the cell's add affordance.
// Without an affordance all lines are joined into the first control. When the
// affordance does not respond, the remaining lines are joined into the last
// control that exists.
func (f *Filler) fillResult(ctx context.Context, cell dom.Element, lines ExpectedResult, pass *fillPass) error {
	controls, err := f.controls(ctx, cell)
	if err != nil {
		return err
	}
	if len(controls) == 0 {
		return fmt.Errorf("%w: no editable control", ErrFieldFillFailed)
	}
	if len(lines) == 0 {
		lines = ExpectedResult{""}
	}

	var add dom.Element
	if len(lines) > len(controls) && !pass.addUnresponsive {
		if add, err = dom.First(ctx, cell, addLineSelector); err != nil {
			return err
		}
		if add == nil {
			lines = ExpectedResult{lines.Join("\n")}
		}
	}

	for i := 0; i < len(lines); i++ {
		if i == len(controls) && add != nil {
			if controls, err = f.addLine(ctx, cell, add, i+1); err != nil {
				return err
			}
			if len(controls) < i {
				return fmt.Errorf("%w: line %d: controls disappeared", ErrFieldFillFailed, i+1)
			}
			if i == len(controls) {
				log.Printf("fill: add affordance did not respond, joining %d lines", len(lines)-i)
				pass.addUnresponsive = true
			}
		}
		if i == len(controls) {
			rest := append(ExpectedResult{lines[i-1]}, lines[i:]...)
			if err := f.commit(ctx, controls[i-1], rest.Join("\n")); err != nil {
				return fmt.Errorf("line %d: %w", i, err)
			}
			return nil
		}
		if err := f.commit(ctx, controls[i], lines[i]); err != nil {
			if i > 0 {
				err = fmt.Errorf("line %d: %w", i+1, err)
			}
			return err
		}
	}
	return f.clearSurplus(ctx, controls[len(lines):])
}

func (f *Filler) clearSurplus(ctx context.Context, controls []dom.Element) error {
	for _, c := range controls {
		v, err := c.Value(ctx)
		if err != nil {
			return err
		}
		if v == "" {
			continue
		}
		if err := f.commit(ctx, c, ""); err != nil {
			return err
		}
	}
	return nil
}

// addLine clicks add and polls until the cell has want controls. It returns
// the controls it last saw, fewer than want when the response window closed.
func (f *Filler) addLine(ctx context.Context, cell, add dom.Element, want int) ([]dom.Element, error) {
	if err := add.Click(ctx); err != nil {
		return nil, err
	}
	deadline := time.Now().Add(f.AddLineWait)
	for {
		controls, err := f.controls(ctx, cell)
		if err != nil {
			return nil, err
		}
		if len(controls) >= want || time.Now().After(deadline) {
			return controls, nil
		}
		if err := sleep(ctx, pollInterval(f.PollInterval)); err != nil {
			return nil, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

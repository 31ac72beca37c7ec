package table

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/rahul/steptable/internal/dom"
)

// GrowOptions tune the click-and-poll loop.
type GrowOptions struct {
	InitialWait        time.Duration // before the first click
	ClickInterval      time.Duration // between clicks while below target
	MaxWaitForResponse time.Duration // for the row count to rise after one click
	PollInterval       time.Duration
	RetryTimes         int // consecutive no-op clicks tolerated
}

// DefaultGrowOptions match the timings the editor tolerates in practice.
func DefaultGrowOptions() GrowOptions {
	return GrowOptions{
		InitialWait:        500 * time.Millisecond,
		ClickInterval:      time.Second,
		MaxWaitForResponse: 5 * time.Second,
		PollInterval:       200 * time.Millisecond,
		RetryTimes:         3,
	}
}

// GrowResult reports a convergence run.
type GrowResult struct {
	Success      bool     `json:"success"`
	CurrentCount int      `json:"currentCount"`
	TargetCount  int      `json:"targetCount"`
	Added        int      `json:"added"`
	Clicks       int      `json:"clicks"`
	Errors       []string `json:"errors"`
	Error        string   `json:"error,omitempty"`
}

const (
	addButtonSelector = `button, a, span[role="button"]`
	footerSelector    = `footer button, .footer button, [class*="footer"] button`
)

// Converger grows the table to a row count by clicking its add control.
type Converger struct {
	Locator *Locator
}

// FindAddControl returns the "add step" control, looking at buttons first
// and then at buttons inside a footer.
func (c *Converger) FindAddControl(ctx context.Context, doc dom.Document) (dom.Element, error) {
	buttons, err := doc.QueryAll(ctx, addButtonSelector)
	if err != nil {
		return nil, err
	}
	for _, b := range buttons {
		text, err := lowerText(ctx, b)
		if err != nil {
			return nil, err
		}
		if strings.Contains(text, "添加步骤") ||
			(strings.Contains(text, "添加") && strings.Contains(text, "步骤")) ||
			strings.Contains(text, "add step") {
			return b, nil
		}
	}

	footer, err := doc.QueryAll(ctx, footerSelector)
	if err != nil {
		return nil, err
	}
	for _, b := range footer {
		text, err := lowerText(ctx, b)
		if err != nil {
			return nil, err
		}
		if strings.Contains(text, "添加") || strings.Contains(text, "add") {
			return b, nil
		}
	}
	return nil, nil
}

func lowerText(ctx context.Context, el dom.Element) (string, error) {
	raw, err := el.Text(ctx)
	if err != nil {
		return "", err
	}
	return strings.ToLower(CleanText(raw)), nil
}

// GrowTo clicks the add control until the table has target rows or
// opts.RetryTimes consecutive clicks changed nothing. Success is decided by a
// final recount, not by the loop's bookkeeping.
func (c *Converger) GrowTo(ctx context.Context, doc dom.Document, target int, opts GrowOptions) (GrowResult, error) {
	res := GrowResult{TargetCount: target, Errors: []string{}}
	if target < 1 {
		return res, fmt.Errorf("%w: target row count must be positive, got %d", ErrInvalidInput, target)
	}
	if opts.RetryTimes < 1 {
		opts.RetryTimes = 1
	}
	opts.PollInterval = pollInterval(opts.PollInterval)

	add, err := c.FindAddControl(ctx, doc)
	if err != nil {
		return res, err
	}
	start, err := c.Locator.RowCount(ctx, doc)
	if err != nil {
		return res, err
	}
	res.CurrentCount = start
	if add == nil {
		res.Error = ErrControlNotFound.Error()
		return res, ErrControlNotFound
	}
	if start >= target {
		log.Printf("grow: %d rows already meet target %d", start, target)
		res.Success = true
		return res, nil
	}

	log.Printf("grow: %d -> %d rows", start, target)
	if err := sleep(ctx, opts.InitialWait); err != nil {
		return res, err
	}

	current := start
	failures := 0
	for current < target && failures < opts.RetryTimes {
		before := current
		if err := add.Click(ctx); err != nil {
			failures++
			res.Errors = append(res.Errors, fmt.Sprintf("click failed: %v", err))
		} else {
			res.Clicks++
			if current, err = c.waitForIncrease(ctx, doc, before, opts); err != nil {
				return res, err
			}
			if current > before {
				failures = 0
			} else {
				failures++
				log.Printf("grow: row count unchanged after click (%d/%d)", failures, opts.RetryTimes)
			}
		}
		if failures >= opts.RetryTimes {
			err := fmt.Errorf("%w: %d consecutive clicks left the count at %d", ErrRowCountMismatch, opts.RetryTimes, current)
			res.Errors = append(res.Errors, err.Error())
			break
		}
		if current < target {
			if err := sleep(ctx, opts.ClickInterval); err != nil {
				return res, err
			}
		}
	}

	final, err := c.Locator.RowCount(ctx, doc)
	if err != nil {
		return res, err
	}
	res.CurrentCount = final
	res.Added = final - start
	res.Success = final >= target
	log.Printf("grow: finished at %d rows (target %d, %d clicks)", final, target, res.Clicks)
	return res, nil
}

// pollInterval replaces a non-positive interval with the default so polling
// loops never spin.
func pollInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultGrowOptions().PollInterval
	}
	return d
}

// waitForIncrease polls the row count until it exceeds before or the
// response window closes, and returns the last count seen.
func (c *Converger) waitForIncrease(ctx context.Context, doc dom.Document, before int, opts GrowOptions) (int, error) {
	deadline := time.Now().Add(opts.MaxWaitForResponse)
	for {
		if err := sleep(ctx, opts.PollInterval); err != nil {
			return before, err
		}
		n, err := c.Locator.RowCount(ctx, doc)
		if err != nil {
			return before, err
		}
		if n > before || !time.Now().Before(deadline) {
			return n, nil
		}
	}
}

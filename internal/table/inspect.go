package table

import (
	"context"
	"strings"

	"github.com/rahul/steptable/internal/dom"
)

const (
	previewRunes = 30
	emptyPreview = "(空)"
)

// RowDetail previews one row of a Report.
type RowDetail struct {
	RowIndex       int    `json:"rowIndex"`
	HasContent     bool   `json:"hasContent"`
	StepDesc       string `json:"stepDesc"`
	ExpectedResult string `json:"expectedResult"`
}

// Report summarizes the rows on the page.
type Report struct {
	TotalRows           int         `json:"totalRows"`
	ContentRows         int         `json:"contentRows"`
	EmptyRows           int         `json:"emptyRows"`
	StepDescIndex       int         `json:"stepDescIndex"`
	ExpectedResultIndex int         `json:"expectedResultIndex"`
	RowDetails          []RowDetail `json:"rowDetails"`
}

// Info is the cheap form of Report.
type Info struct {
	RowCount int  `json:"rowCount"`
	HasTable bool `json:"hasTable"`
}

// Inspector reports on the table without changing it.
type Inspector struct {
	Locator *Locator
}

// Check counts rows with and without content. A row counts as having content
// when its step or first result line holds anything but a placeholder. Rows
// without cells count as empty and get no detail.
func (in *Inspector) Check(ctx context.Context, doc dom.Document) (Report, error) {
	rows, err := in.Locator.Rows(ctx, doc)
	if err != nil {
		return Report{}, err
	}
	cols, err := in.Locator.Columns(ctx, doc)
	if err != nil {
		return Report{}, err
	}
	rep := Report{
		TotalRows:           len(rows),
		StepDescIndex:       cols.Step,
		ExpectedResultIndex: cols.Result,
		RowDetails:          []RowDetail{},
	}

	for i, row := range rows {
		tds, err := cells(ctx, row)
		if err != nil {
			return rep, err
		}
		if len(tds) == 0 {
			rep.EmptyRows++
			continue
		}
		var step, result string
		if cols.Step < len(tds) {
			if step, err = previewText(ctx, tds[cols.Step]); err != nil {
				return rep, err
			}
		}
		if cols.Result < len(tds) {
			if result, err = previewText(ctx, tds[cols.Result]); err != nil {
				return rep, err
			}
		}

		has := meaningful(step, StepPlaceholder) || meaningful(result, ResultPlaceholder)
		if has {
			rep.ContentRows++
		} else {
			rep.EmptyRows++
		}
		if len(tds) >= cols.Width() {
			rep.RowDetails = append(rep.RowDetails, RowDetail{
				RowIndex:       i + 1,
				HasContent:     has,
				StepDesc:       preview(step),
				ExpectedResult: preview(result),
			})
		}
	}
	return rep, nil
}

// Info reports the row count and whether a table exists.
func (in *Inspector) Info(ctx context.Context, doc dom.Document) (Info, error) {
	n, err := in.Locator.RowCount(ctx, doc)
	if err != nil {
		return Info{}, err
	}
	return Info{RowCount: n, HasTable: n > 0}, nil
}

// previewText reads the first textarea of cell, else the cell text.
func previewText(ctx context.Context, cell dom.Element) (string, error) {
	ta, err := dom.First(ctx, cell, "textarea")
	if err != nil {
		return "", err
	}
	if ta == nil {
		raw, err := cell.Text(ctx)
		return CleanText(raw), err
	}
	v, err := ta.Value(ctx)
	if err != nil || v != "" {
		return v, err
	}
	raw, err := ta.Text(ctx)
	return CleanText(raw), err
}

func meaningful(s, placeholder string) bool {
	return !isBlank(s) && strings.TrimSpace(s) != placeholder
}

func preview(s string) string {
	if s == "" {
		return emptyPreview
	}
	return truncate(s, previewRunes)
}

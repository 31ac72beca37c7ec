package table

import (
	"context"
	"strings"

	"github.com/rahul/steptable/internal/dom"
)

// RowStrategy is one way of finding the table's rows. An empty result means
// the strategy does not apply to this page.
type RowStrategy func(ctx context.Context, doc dom.Document) ([]dom.Element, error)

// BySelector is a RowStrategy that queries one selector.
func BySelector(selector string) RowStrategy {
	return func(ctx context.Context, doc dom.Document) ([]dom.Element, error) {
		return doc.QueryAll(ctx, selector)
	}
}

// DefaultRowStrategies try a plain table body, then the Ant Design table
// classes, then any row on the page.
var DefaultRowStrategies = []RowStrategy{
	BySelector("table tbody tr"),
	BySelector(".ant-table-tbody tr, .ant-table-row"),
	BySelector("tr"),
}

const headerRowSelector = "table thead tr, .ant-table-thead tr"

// Columns are the cell indices of the step and result columns.
type Columns struct {
	Step   int `json:"stepDescIndex"`
	Result int `json:"expectedResultIndex"`
}

// DefaultColumns is used when no header names the columns.
var DefaultColumns = Columns{Step: 0, Result: 1}

// Width is the number of cells a row needs to hold both columns.
func (c Columns) Width() int {
	return max(c.Step, c.Result) + 1
}

// Locator resolves rows and columns on a page. The zero value uses the
// default strategies.
type Locator struct {
	Strategies []RowStrategy
}

// Rows returns the rows found by the first strategy that finds any. No rows
// means there is no table on the page.
func (l *Locator) Rows(ctx context.Context, doc dom.Document) ([]dom.Element, error) {
	strategies := l.Strategies
	if len(strategies) == 0 {
		strategies = DefaultRowStrategies
	}
	for _, s := range strategies {
		rows, err := s(ctx, doc)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			return rows, nil
		}
	}
	return nil, nil
}

// RowCount is len(Rows).
func (l *Locator) RowCount(ctx context.Context, doc dom.Document) (int, error) {
	rows, err := l.Rows(ctx, doc)
	return len(rows), err
}

// Columns reads the header captions. The first header naming a column wins.
func (l *Locator) Columns(ctx context.Context, doc dom.Document) (Columns, error) {
	header, err := dom.First(ctx, doc, headerRowSelector)
	if err != nil {
		return DefaultColumns, err
	}
	if header == nil {
		return DefaultColumns, nil
	}
	cells, err := header.QueryAll(ctx, "th, td")
	if err != nil {
		return DefaultColumns, err
	}

	cols := Columns{Step: -1, Result: -1}
	for i, cell := range cells {
		raw, err := cell.Text(ctx)
		if err != nil {
			return DefaultColumns, err
		}
		text := strings.ToLower(CleanText(raw))
		switch {
		case isStepCaption(text):
			if cols.Step < 0 {
				cols.Step = i
			}
		case isResultCaption(text):
			if cols.Result < 0 {
				cols.Result = i
			}
		}
	}
	if cols.Step < 0 {
		cols.Step = DefaultColumns.Step
	}
	if cols.Result < 0 {
		cols.Result = DefaultColumns.Result
	}
	return cols, nil
}

func isStepCaption(text string) bool {
	return strings.Contains(text, "步骤描述") ||
		(strings.Contains(text, "步骤") && strings.Contains(text, "描述")) ||
		(strings.Contains(text, "step") && strings.Contains(text, "description"))
}

func isResultCaption(text string) bool {
	return strings.Contains(text, "预期结果") ||
		(strings.Contains(text, "预期") && strings.Contains(text, "结果")) ||
		(strings.Contains(text, "expected") && strings.Contains(text, "result"))
}

// cells returns the td cells of row.
func cells(ctx context.Context, row dom.Element) ([]dom.Element, error) {
	return row.QueryAll(ctx, "td")
}

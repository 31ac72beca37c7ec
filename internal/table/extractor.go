package table

import (
	"context"
	"log"
	"strings"

	"github.com/rahul/steptable/internal/dom"
)

const (
	stepControlSelector   = "textarea.ant-input.edit-cell-input"
	resultItemSelector    = ".ant-space-item"
	headerCaptionMaxRunes = 15
)

// Extractor reads the step table into records.
type Extractor struct {
	Locator *Locator
	Filter  *TextFilter
}

// NewExtractor returns an Extractor with default locator strategies.
func NewExtractor(filter *TextFilter) *Extractor {
	if filter == nil {
		filter = NewTextFilter(nil)
	}
	return &Extractor{Locator: &Locator{}, Filter: filter}
}

// ExtractAll returns one record per data row, numbered from 1 in the order
// emitted. Rows that are too narrow or repeat the header are not numbered.
func (x *Extractor) ExtractAll(ctx context.Context, doc dom.Document) ([]Record, error) {
	rows, err := x.Locator.Rows(ctx, doc)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		log.Printf("extract: no table rows found")
		return []Record{}, nil
	}
	cols, err := x.Locator.Columns(ctx, doc)
	if err != nil {
		return nil, err
	}

	records := []Record{}
	for _, row := range rows {
		tds, err := cells(ctx, row)
		if err != nil {
			return nil, err
		}
		if len(tds) == 0 || len(tds) < cols.Width() {
			continue
		}

		step, err := x.stepText(ctx, tds[cols.Step])
		if err != nil {
			return nil, err
		}
		if isHeaderCaption(step) {
			continue
		}
		results, err := x.resultItems(ctx, tds[cols.Result])
		if err != nil {
			return nil, err
		}
		records = append(records, Record{
			Sequence: len(records) + 1,
			Step:     step,
			Expected: results,
		})
	}
	return records, nil
}

func isHeaderCaption(step string) bool {
	return strings.Contains(step, "步骤描述") && runeLen(step) < headerCaptionMaxRunes
}

// stepText prefers the live textarea value, then the cell text with button
// captions removed.
func (x *Extractor) stepText(ctx context.Context, cell dom.Element) (string, error) {
	ta, err := dom.First(ctx, cell, "textarea")
	if err != nil {
		return "", err
	}
	var value string
	if ta != nil {
		if value, err = ta.Value(ctx); err != nil {
			return "", err
		}
		text := value
		if isBlank(text) {
			raw, err := ta.Text(ctx)
			if err != nil {
				return "", err
			}
			text = CleanText(raw)
		}
		if !isBlank(text) && text != StepPlaceholder {
			return strings.TrimSpace(text), nil
		}
	}

	raw, err := cell.Text(ctx)
	if err != nil {
		return "", err
	}
	full := CleanText(raw)
	stripped := x.Filter.RemoveButtonText(full)
	if full != "" && full != StepPlaceholder && runeLen(stripped) > 2 {
		return stripped, nil
	}

	// Short text is still kept rather than dropped.
	step := stripped
	if ta != nil && value != "" {
		step = strings.TrimSpace(value)
	}
	if step == StepPlaceholder {
		step = ""
	}
	return step, nil
}

// resultItems collects the result lines of a cell: every textarea, else every
// space item, minus placeholders and button captions.
func (x *Extractor) resultItems(ctx context.Context, cell dom.Element) (ExpectedResult, error) {
	var items ExpectedResult
	areas, err := cell.QueryAll(ctx, "textarea")
	if err != nil {
		return nil, err
	}
	for _, ta := range areas {
		text, err := ta.Value(ctx)
		if err != nil {
			return nil, err
		}
		if text == "" {
			raw, err := ta.Text(ctx)
			if err != nil {
				return nil, err
			}
			text = CleanText(raw)
		}
		if x.keepResult(text) {
			items = append(items, strings.TrimSpace(text))
		}
	}
	if len(items) > 0 {
		return items, nil
	}

	spaces, err := cell.QueryAll(ctx, resultItemSelector)
	if err != nil {
		return nil, err
	}
	for _, it := range spaces {
		raw, err := it.Text(ctx)
		if err != nil {
			return nil, err
		}
		text := CleanText(raw)
		if x.keepResult(text) {
			items = append(items, text)
		}
	}
	return items, nil
}

func (x *Extractor) keepResult(text string) bool {
	return !isBlank(text) && strings.TrimSpace(text) != ResultPlaceholder && !x.Filter.IsButtonText(text)
}

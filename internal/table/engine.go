// Package table locates, reads, grows and fills the step table of the
// test-case editor. Every operation takes a dom.Document and re-queries it,
// so the same code runs against a live page and a saved snapshot.
package table

import (
	"context"

	"github.com/rahul/steptable/internal/dom"
)

// Engine bundles the table operations around one shared Locator.
type Engine struct {
	Locator   *Locator
	Extractor *Extractor
	Filler    *Filler
	Converger *Converger
	Inspector *Inspector
	Grow      GrowOptions
}

// NewEngine builds an Engine. Nil captions select DefaultButtonCaptions.
func NewEngine(captions []string, grow GrowOptions) *Engine {
	loc := &Locator{}
	filler := NewFiller()
	filler.Locator = loc
	if grow.MaxWaitForResponse > 0 {
		filler.AddLineWait = grow.MaxWaitForResponse
	}
	if grow.PollInterval > 0 {
		filler.PollInterval = grow.PollInterval
	}
	return &Engine{
		Locator:   loc,
		Extractor: &Extractor{Locator: loc, Filter: NewTextFilter(captions)},
		Filler:    filler,
		Converger: &Converger{Locator: loc},
		Inspector: &Inspector{Locator: loc},
		Grow:      grow,
	}
}

func (e *Engine) Check(ctx context.Context, doc dom.Document) (Report, error) {
	return e.Inspector.Check(ctx, doc)
}

func (e *Engine) Info(ctx context.Context, doc dom.Document) (Info, error) {
	return e.Inspector.Info(ctx, doc)
}

func (e *Engine) Extract(ctx context.Context, doc dom.Document) ([]Record, error) {
	return e.Extractor.ExtractAll(ctx, doc)
}

func (e *Engine) Fill(ctx context.Context, doc dom.Document, records []Record) (FillResult, error) {
	return e.Filler.Fill(ctx, doc, records)
}

// GrowTo grows the table with the engine's options, overridden field by
// field by any non-zero value in opts.
func (e *Engine) GrowTo(ctx context.Context, doc dom.Document, target int, opts *GrowOptions) (GrowResult, error) {
	return e.Converger.GrowTo(ctx, doc, target, e.Grow.Merge(opts))
}

// Merge returns o with every non-zero field of override applied.
func (o GrowOptions) Merge(override *GrowOptions) GrowOptions {
	if override == nil {
		return o
	}
	if override.InitialWait > 0 {
		o.InitialWait = override.InitialWait
	}
	if override.ClickInterval > 0 {
		o.ClickInterval = override.ClickInterval
	}
	if override.MaxWaitForResponse > 0 {
		o.MaxWaitForResponse = override.MaxWaitForResponse
	}
	if override.PollInterval > 0 {
		o.PollInterval = override.PollInterval
	}
	if override.RetryTimes > 0 {
		o.RetryTimes = override.RetryTimes
	}
	return o
}

// Package dom defines the small element surface the table operations need and
// a snapshot implementation backed by goquery. The live implementation lives
// in the browser package.
package dom

import (
	"context"
	"errors"
)

// ErrNotEditable is returned when a value is written to an element that is
// not a form control.
var ErrNotEditable = errors.New("element is not editable")

// Queryer finds descendants by CSS selector, in document order.
type Queryer interface {
	QueryAll(ctx context.Context, selector string) ([]Element, error)
}

// Document is the root of a page. Handles returned from it are transient: the
// page may re-render between calls, so callers query again on every operation.
type Document interface {
	Queryer
}

// Element is a handle on one node.
type Element interface {
	Queryer

	// Text returns the rendered text (innerText, else textContent).
	Text(ctx context.Context) (string, error)
	// Value returns the current value of a form control, "" otherwise.
	Value(ctx context.Context) (string, error)

	Click(ctx context.Context) error
	Focus(ctx context.Context) error
	Blur(ctx context.Context) error

	// SetValue writes through the control's native value setter so framework
	// wrappers around the value property do not intercept it.
	SetValue(ctx context.Context, value string) error
	// Dispatch fires a bubbling, cancelable event with the given type.
	Dispatch(ctx context.Context, event string) error
}

// InputReplayer is implemented by elements that can replay a value one
// character at a time, firing an input event after each, without a round
// trip per character.
type InputReplayer interface {
	ReplayInput(ctx context.Context, value string) error
}

// First returns the first match of selector under q, or nil.
func First(ctx context.Context, q Queryer, selector string) (Element, error) {
	els, err := q.QueryAll(ctx, selector)
	if err != nil || len(els) == 0 {
		return nil, err
	}
	return els[0], nil
}

// QueryAny tries selectors in order and returns the first non-empty result.
func QueryAny(ctx context.Context, q Queryer, selectors ...string) ([]Element, error) {
	for _, sel := range selectors {
		els, err := q.QueryAll(ctx, sel)
		if err != nil {
			return nil, err
		}
		if len(els) > 0 {
			return els, nil
		}
	}
	return nil, nil
}

package table

import (
	"context"
	"errors"
	"fmt"

	"github.com/rahul/steptable/internal/dom"
)

// CommitStrategy writes a value into a control so that the page's own change
// detection sees it.
type CommitStrategy interface {
	Name() string
	Commit(ctx context.Context, el dom.Element, value string) error
}

// NativeSetter assigns through the native value setter and fires input and
// change.
type NativeSetter struct{}

func (NativeSetter) Name() string { return "native-setter" }

func (NativeSetter) Commit(ctx context.Context, el dom.Element, value string) error {
	if err := el.Focus(ctx); err != nil {
		return err
	}
	if err := el.SetValue(ctx, value); err != nil {
		return err
	}
	if err := el.Dispatch(ctx, "input"); err != nil {
		return err
	}
	return el.Dispatch(ctx, "change")
}

// KeystrokeReplay clears the control and re-enters the value one character
// at a time with an input event after each. React-style inputs only pick up
// state from incremental input events.
type KeystrokeReplay struct{}

func (KeystrokeReplay) Name() string { return "keystroke-replay" }

func (KeystrokeReplay) Commit(ctx context.Context, el dom.Element, value string) error {
	if r, ok := el.(dom.InputReplayer); ok {
		return r.ReplayInput(ctx, value)
	}
	if err := el.SetValue(ctx, ""); err != nil {
		return err
	}
	if err := el.Dispatch(ctx, "input"); err != nil {
		return err
	}
	if value == "" {
		return nil
	}
	typed := make([]rune, 0, len(value))
	for _, r := range value {
		typed = append(typed, r)
		if err := el.SetValue(ctx, string(typed)); err != nil {
			return err
		}
		if err := el.Dispatch(ctx, "input"); err != nil {
			return err
		}
	}
	return nil
}

// DefaultCommitStrategies runs the native setter, then the replay.
var DefaultCommitStrategies = []CommitStrategy{NativeSetter{}, KeystrokeReplay{}}

// Commit runs every strategy in order and then blurs the control. It fails
// only when no strategy succeeded.
func Commit(ctx context.Context, el dom.Element, value string, strategies []CommitStrategy) error {
	if len(strategies) == 0 {
		strategies = DefaultCommitStrategies
	}
	var errs []error
	for _, s := range strategies {
		if err := s.Commit(ctx, el, value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if len(errs) == len(strategies) {
		return errors.Join(errs...)
	}
	if err := el.Dispatch(ctx, "blur"); err != nil {
		return err
	}
	return el.Blur(ctx)
}

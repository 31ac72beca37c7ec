package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ErrPanelsDisabled is returned when a panel is opened while the feature is
// switched off.
var ErrPanelsDisabled = errors.New("side panels are disabled")

// PanelTabs shows side panels as browser tabs loading the bridge's panel
// page, one per window.
type PanelTabs struct {
	s        *Session
	panelURL string

	mu      sync.Mutex
	enabled bool
	tabs    map[int]context.CancelFunc
}

func NewPanelTabs(s *Session, panelURL string) *PanelTabs {
	return &PanelTabs{
		s:        s,
		panelURL: panelURL,
		enabled:  true,
		tabs:     make(map[int]context.CancelFunc),
	}
}

// SetEnabled switches the feature. Switching off closes every panel tab.
func (t *PanelTabs) SetEnabled(_ context.Context, enabled bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	if !enabled {
		for id, cancel := range t.tabs {
			cancel()
			delete(t.tabs, id)
		}
	}
	return nil
}

// Open loads the panel page for windowID in a new tab and brings it to the
// front. An existing tab for the window is reused.
func (t *PanelTabs) Open(ctx context.Context, windowID int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return ErrPanelsDisabled
	}

	browserCtx, err := t.s.init()
	if err != nil {
		return err
	}
	target, err := t.urlFor(windowID)
	if err != nil {
		return err
	}

	if cancel, ok := t.tabs[windowID]; ok {
		cancel()
	}
	// The first Run creates the tab and must not use a deadline, or the tab
	// closes when the deadline's context is cancelled.
	tabCtx, cancel := chromedp.NewContext(browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return fmt.Errorf("open panel for window %d: %w", windowID, err)
	}
	if err := runIn(ctx, tabCtx, t.s.opts.ActionTimeout, chromedp.Navigate(target), page.BringToFront()); err != nil {
		cancel()
		return fmt.Errorf("open panel for window %d: %w", windowID, err)
	}
	t.tabs[windowID] = cancel
	return nil
}

func (t *PanelTabs) urlFor(windowID int) (string, error) {
	u, err := url.Parse(t.panelURL)
	if err != nil {
		return "", fmt.Errorf("panel url: %w", err)
	}
	q := u.Query()
	q.Set("window", strconv.Itoa(windowID))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

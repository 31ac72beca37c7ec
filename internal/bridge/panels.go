package bridge

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/rahul/steptable/internal/observability"
)

// PanelController opens side panels and turns the panel feature on and off.
// Disabling closes every open panel.
type PanelController interface {
	SetEnabled(ctx context.Context, enabled bool) error
	Open(ctx context.Context, windowID int) error
}

// Panels is the per-window open/closed state machine behind the toggle
// command. A window is open while its panel is registered in Sessions.
type Panels struct {
	Sessions *Sessions

	// CloseFallback is how long a panel gets to close itself before the
	// feature is disabled to force it shut; Reenable is how soon after that
	// the feature comes back. DisablePulse is the off time of Disable.
	CloseFallback time.Duration
	Reenable      time.Duration
	DisablePulse  time.Duration

	ctrl   PanelController
	logger *observability.Logger

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool
}

func NewPanels(ctrl PanelController, logger *observability.Logger) *Panels {
	return &Panels{
		Sessions:      NewSessions(),
		CloseFallback: 200 * time.Millisecond,
		Reenable:      50 * time.Millisecond,
		DisablePulse:  100 * time.Millisecond,
		ctrl:          ctrl,
		logger:        logger,
		timers:        make(map[*time.Timer]struct{}),
	}
}

// Connect registers port as the panel of windowID.
func (p *Panels) Connect(windowID int, port Port) {
	p.Sessions.Set(windowID, port)
	p.changed(windowID, "open")
}

// Disconnect forgets port, whichever window it was registered for.
func (p *Panels) Disconnect(port Port) {
	if id, ok := p.Sessions.Remove(port); ok {
		p.changed(id, "closed")
	}
}

// IsOpen reports whether windowID has a registered panel.
func (p *Panels) IsOpen(windowID int) bool {
	return p.Sessions.Has(windowID)
}

// Toggle closes the panel of windowID if one is registered and opens one
// otherwise. Closing asks the panel first; if it is still registered after
// CloseFallback the feature is switched off and back on.
func (p *Panels) Toggle(ctx context.Context, windowID int) error {
	port, ok := p.Sessions.Get(windowID)
	if !ok {
		if err := p.ctrl.SetEnabled(ctx, true); err != nil {
			return err
		}
		return p.ctrl.Open(ctx, windowID)
	}

	if err := port.Post(PortMessage{Type: TypeCloseSidePanel}); err != nil {
		log.Printf("panel %d: close request failed: %v", windowID, err)
		p.Sessions.Delete(windowID)
		p.changed(windowID, "closed")
	}
	p.after(p.CloseFallback, func() {
		if !p.Sessions.Has(windowID) {
			return
		}
		p.setEnabled(false)
		p.Sessions.Delete(windowID)
		p.changed(windowID, "forced-closed")
		p.after(p.Reenable, func() { p.setEnabled(true) })
	})
	return nil
}

// Disable closes every panel by pulsing the feature off, then forgets all
// registrations.
func (p *Panels) Disable(ctx context.Context) error {
	if err := p.ctrl.SetEnabled(ctx, false); err != nil {
		return err
	}
	p.after(p.DisablePulse, func() {
		p.setEnabled(true)
		p.Sessions.Clear()
		p.changed(0, "cleared")
	})
	return nil
}

// Close stops pending timers. Panels does nothing after Close.
func (p *Panels) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for t := range p.timers {
		t.Stop()
	}
	clear(p.timers)
}

func (p *Panels) after(d time.Duration, fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		p.mu.Lock()
		_, live := p.timers[t]
		delete(p.timers, t)
		p.mu.Unlock()
		if live {
			fn()
		}
	})
	p.timers[t] = struct{}{}
}

func (p *Panels) setEnabled(enabled bool) {
	if err := p.ctrl.SetEnabled(context.Background(), enabled); err != nil {
		log.Printf("panels: set enabled=%v: %v", enabled, err)
	}
}

func (p *Panels) changed(windowID int, state string) {
	observability.SetPanels(p.Sessions.Len())
	if p.logger != nil {
		p.logger.LogPanel(windowID, state)
	}
}

// Package browser drives the editor page in Chrome over the DevTools
// protocol. A Session owns one browser, either launched or attached to a
// running one, and exposes its first tab as a dom.Document.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
)

// Options configure how a Session reaches Chrome.
type Options struct {
	// RemoteURL attaches to a running Chrome (its DevTools websocket or
	// http://host:port). Empty launches a new browser.
	RemoteURL string
	// TargetURL, with RemoteURL, attaches to the first open tab whose URL
	// contains it instead of opening a new tab.
	TargetURL     string
	Headless      bool
	UserDataDir   string
	ActionTimeout time.Duration
}

// Session is a lazily started browser with one working tab.
type Session struct {
	mu            sync.Mutex
	opts          Options
	allocCtx      context.Context
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
}

func NewSession(opts Options) *Session {
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 60 * time.Second
	}
	return &Session{opts: opts}
}

func (s *Session) init() (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browserCtx != nil {
		select {
		case <-s.browserCtx.Done():
			s.cleanup()
		default:
			return s.browserCtx, nil
		}
	}

	var ctxOpts []chromedp.ContextOption
	if s.opts.RemoteURL != "" {
		if s.opts.TargetURL != "" {
			id, err := attachTarget(s.opts.RemoteURL, s.opts.TargetURL)
			if err != nil {
				return nil, err
			}
			ctxOpts = append(ctxOpts, chromedp.WithTargetID(id))
		}
		s.allocCtx, s.allocCancel = chromedp.NewRemoteAllocator(context.Background(), s.opts.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.NoSandbox,
			chromedp.Flag("headless", s.opts.Headless),
			chromedp.Flag("no-first-run", true),
			chromedp.Flag("no-default-browser-check", true),
		)
		if s.opts.UserDataDir != "" {
			opts = append(opts, chromedp.UserDataDir(s.opts.UserDataDir))
		}
		s.allocCtx, s.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}
	s.browserCtx, s.browserCancel = chromedp.NewContext(s.allocCtx, ctxOpts...)

	if err := chromedp.Run(s.browserCtx); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return s.browserCtx, nil
}

func (s *Session) cleanup() {
	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	s.browserCtx = nil
	s.allocCtx = nil
}

// Close shuts the browser down. A launched browser exits; an attached one
// only loses this session's tab.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanup()
}

// run executes actions on the working tab. The action timeout and ctx both
// bound the call.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	tab, err := s.init()
	if err != nil {
		return err
	}
	return runIn(ctx, tab, s.opts.ActionTimeout, actions...)
}

func runIn(ctx, tab context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	actionCtx, cancel := context.WithTimeout(tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(actionCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Navigate loads url in the working tab and waits for the body.
func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Document returns the working tab as a dom.Document.
func (s *Session) Document(ctx context.Context) (*Page, error) {
	if _, err := s.init(); err != nil {
		return nil, err
	}
	return &Page{s: s}, nil
}

// HTML returns the outer HTML of the working tab, for saving snapshots.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		node, err := cdpdom.GetDocument().Do(ctx)
		if err != nil {
			return err
		}
		html, err = cdpdom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
		return err
	}))
	return html, err
}

// Screenshot captures the visible part of the working tab as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, chromedp.CaptureScreenshot(&buf))
	return buf, err
}

// Location returns the URL of the working tab.
func (s *Session) Location(ctx context.Context) (string, error) {
	var url string
	err := s.run(ctx, chromedp.Location(&url))
	return url, err
}

// WindowID returns the id of the window holding the working tab.
func (s *Session) WindowID(ctx context.Context) (int, error) {
	var id cdpbrowser.WindowID
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		id, _, err = cdpbrowser.GetWindowForTarget().Do(ctx)
		return err
	}))
	return int(id), err
}

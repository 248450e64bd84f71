// Package pageform drives autosave against a form in a live Chrome page.
//
// Field reads and writes go through page.Eval. Change and submit events are
// recorded by a listener injected into the page and drained by Watch, which
// delivers them to the handlers a Manager registers. Close fires the unload
// handlers while the page is still readable, then closes it.
//
// The queue survives same-origin navigations through sessionStorage, so a
// native submit is still delivered on the next poll of the new document.
// Events queued just before a cross-origin navigation are lost.
//
// Usage:
//
//	b, err := pageform.Launch(ctx, pageform.Config{})
//	defer b.Close()
//	p, err := b.Open(ctx, "http://localhost:8080/admin/articles/new")
//	go p.Watch(ctx)
//	m, err := autosave.Attach(ctx, autosave.Config{Document: p, Page: p, ...})
package pageform

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Config configures the browser connection and page behaviour.
type Config struct {
	// RemoteURL is the WebSocket control URL of an external Chrome.
	// Empty launches a local headless Chrome.
	RemoteURL string
	// NoStealth opens plain pages instead of go-rod/stealth ones.
	NoStealth bool
	// PollInterval is how often Watch drains the page event queue.
	// Default: 250ms.
	PollInterval time.Duration
	// NavTimeout bounds navigation. Default: 30s.
	NavTimeout time.Duration
	// EvalTimeout bounds every script evaluation. Default: 5s.
	EvalTimeout time.Duration
	Logger      *slog.Logger
}

func (c *Config) defaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 250 * time.Millisecond
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.EvalTimeout <= 0 {
		c.EvalTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Browser is a connected Chrome instance.
type Browser struct {
	cfg  Config
	b    *rod.Browser
	lnch *launcher.Launcher
}

// Launch starts (or connects to) Chrome.
func Launch(ctx context.Context, cfg Config) (*Browser, error) {
	cfg.defaults()
	log := cfg.Logger

	wsURL := cfg.RemoteURL
	var l *launcher.Launcher
	if wsURL == "" {
		l = launcher.New().Context(ctx).Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("pageform: launch: %w", err)
		}
		wsURL = u
		log.Info("pageform: launched local chrome", "url", wsURL)
	} else {
		log.Info("pageform: connecting to remote chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, fmt.Errorf("pageform: connect: %w", err)
	}
	return &Browser{cfg: cfg, b: b, lnch: l}, nil
}

// Rod returns the underlying browser handle.
func (b *Browser) Rod() *rod.Browser { return b.b }

// Open creates a tab and navigates to pageURL.
func (b *Browser) Open(ctx context.Context, pageURL string) (*Page, error) {
	page, err := b.newPage()
	if err != nil {
		return nil, err
	}

	navCtx, cancel := context.WithTimeout(ctx, b.cfg.NavTimeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("pageform: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		b.cfg.Logger.Warn("pageform: wait load timeout", "url", pageURL, "error", err)
	}
	return newPage(ctx, page, b.cfg), nil
}

// OpenHTML creates a blank tab and replaces its document with markup.
func (b *Browser) OpenHTML(ctx context.Context, markup string) (*Page, error) {
	page, err := b.newPage()
	if err != nil {
		return nil, err
	}
	if err := page.SetDocumentContent(markup); err != nil {
		page.Close()
		return nil, fmt.Errorf("pageform: set document: %w", err)
	}
	return newPage(ctx, page, b.cfg), nil
}

func (b *Browser) newPage() (*rod.Page, error) {
	var page *rod.Page
	var err error
	if b.cfg.NoStealth {
		page, err = b.b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	} else {
		page, err = stealth.Page(b.b)
	}
	if err != nil {
		return nil, fmt.Errorf("pageform: create tab: %w", err)
	}
	return page, nil
}

// Close disconnects and, for a local Chrome, kills the process.
func (b *Browser) Close() error {
	err := b.b.Close()
	if b.lnch != nil {
		b.lnch.Kill()
	}
	return err
}

package pageform

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/draftkeeper/autosave"
	"github.com/hazyhaar/draftkeeper/internal/handlers"
)

// Page is one open tab. It implements autosave.Document and autosave.Page.
type Page struct {
	page *rod.Page
	cfg  Config
	ctx  context.Context

	mu     sync.Mutex
	forms  map[string]*Form
	unload handlers.Set[func()]
	closed bool
	done   chan struct{}
}

func newPage(ctx context.Context, page *rod.Page, cfg Config) *Page {
	return &Page{
		page:  page,
		cfg:   cfg,
		ctx:   context.WithoutCancel(ctx),
		forms: make(map[string]*Form),
		done:  make(chan struct{}),
	}
}

// Rod returns the underlying tab.
func (p *Page) Rod() *rod.Page { return p.page }

// Form implements autosave.Document. The event listener is installed on
// the form before it is returned.
func (p *Page) Form(id string) (autosave.Form, bool) {
	f, ok := p.FormByID(id)
	if !ok {
		return nil, false
	}
	return f, true
}

// FormByID is Form with the concrete type.
func (p *Page) FormByID(id string) (*Form, bool) {
	p.mu.Lock()
	f, ok := p.forms[id]
	p.mu.Unlock()
	if ok {
		return f, true
	}

	res, err := p.eval(formExistsJS, id)
	if err != nil {
		p.cfg.Logger.Warn("pageform: lookup form", "form", id, "error", err)
		return nil, false
	}
	if !res.Value.Bool() {
		return nil, false
	}

	p.mu.Lock()
	if existing, ok := p.forms[id]; ok {
		f = existing
	} else {
		f = &Form{p: p, id: id}
		p.forms[id] = f
	}
	p.mu.Unlock()

	if err := p.Poll(); err != nil {
		p.cfg.Logger.Warn("pageform: install listener", "form", id, "error", err)
	}
	return f, true
}

// OnUnload implements autosave.Page. Handlers run from Close.
func (p *Page) OnUnload(fn func()) func() {
	return p.unload.Add(fn)
}

// event is one entry of the page-side queue.
type event struct {
	Form string `json:"form"`
	Type string `json:"type"`
	Name string `json:"name"`
}

func parseEvents(s string) ([]event, error) {
	var evs []event
	if err := json.Unmarshal([]byte(s), &evs); err != nil {
		return nil, fmt.Errorf("pageform: decode events: %w", err)
	}
	return evs, nil
}

// Poll drains the page event queue once and delivers the events to the
// handlers of the matching forms. It also reinstalls listeners lost to a
// navigation or a replaced form element.
func (p *Page) Poll() error {
	p.mu.Lock()
	ids := make([]string, 0, len(p.forms))
	for id := range p.forms {
		ids = append(ids, id)
	}
	p.mu.Unlock()
	slices.Sort(ids)

	res, err := p.eval(drainJS, ids)
	if err != nil {
		return fmt.Errorf("pageform: drain: %w", err)
	}
	evs, err := parseEvents(res.Value.Str())
	if err != nil {
		return err
	}

	for _, ev := range evs {
		p.mu.Lock()
		f := p.forms[ev.Form]
		p.mu.Unlock()
		if f == nil {
			continue
		}
		switch ev.Type {
		case "input":
			f.notifyChange(ev.Name)
		case "submit":
			f.notifySubmit()
		default:
			p.cfg.Logger.Debug("pageform: unknown event", "type", ev.Type)
		}
	}
	return nil
}

// Watch polls the event queue every PollInterval until ctx is cancelled
// or the page is closed.
func (p *Page) Watch(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.done:
			return nil
		case <-ticker.C:
			if err := p.Poll(); err != nil {
				p.cfg.Logger.Debug("pageform: poll", "error", err)
			}
		}
	}
}

// Close runs the unload handlers while the page can still be read, then
// closes the tab. Later calls return nil.
func (p *Page) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()

	// Deliver pending edits first so handlers see the final state.
	if err := p.Poll(); err != nil {
		p.cfg.Logger.Debug("pageform: final poll", "error", err)
	}
	for _, fn := range p.unload.Snapshot() {
		fn()
	}
	if err := p.page.Close(); err != nil {
		return fmt.Errorf("pageform: close tab: %w", err)
	}
	return nil
}

func (p *Page) eval(js string, args ...any) (*proto.RuntimeRemoteObject, error) {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.EvalTimeout)
	defer cancel()
	return p.page.Context(ctx).Eval(js, args...)
}


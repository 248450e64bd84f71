// Package autosave keeps a recoverable draft of one editable form.
//
// A Manager attaches to a form, writes a snapshot of its named, non-file
// fields into a Store every Interval (and once more when the page unloads),
// offers a found snapshot back to the operator on the next attach, and
// forgets the snapshot after a successful submit.
//
// Typical usage:
//
//	m, err := autosave.Attach(ctx, autosave.Config{
//		Document:   doc,
//		FormID:     "article-form",
//		StorageKey: "new-article-autosave",
//		Store:      store,
//		UI:         renderer,
//	})
//	if err != nil {
//		return err
//	}
//	defer m.Detach()
//
// Autosave is best-effort: storage faults are logged and swallowed, corrupt
// snapshots are treated as absent, and nothing here interrupts the author.
package autosave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrFormNotFound is returned by Attach when the document has no form with
// the configured identifier.
var ErrFormNotFound = errors.New("autosave: form not found")

// Config configures a Manager.
type Config struct {
	// Document is searched for the form identified by FormID. Required.
	Document Document
	FormID   string
	// StorageKey scopes the snapshot slot. Distinct forms need distinct keys.
	StorageKey string

	// Interval is the capture cadence. Default: 30s.
	Interval time.Duration
	// Store holds snapshots. Default: an unlimited MemoryStore.
	Store Store
	// UI receives status transitions and the restore offer. Default: NopUI.
	UI UI
	// Page delivers the unload signal. Optional.
	Page Page

	// MaxAge is the staleness threshold checked at attach. Default: 24h.
	MaxAge time.Duration
	// SubmitGrace delays the post-submit clear so a final capture cannot
	// race the success path. Default: 1s.
	SubmitGrace time.Duration
	// StoreTimeout bounds every Store call. Default: 5s.
	StoreTimeout time.Duration

	Now    func() time.Time
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.Store == nil {
		c.Store = NewMemoryStore(0)
	}
	if c.UI == nil {
		c.UI = NopUI{}
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 24 * time.Hour
	}
	if c.SubmitGrace <= 0 {
		c.SubmitGrace = time.Second
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 5 * time.Second
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager is the draft persistence state of one attached form. All
// operations are serialised; it is safe for concurrent use.
type Manager struct {
	cfg  Config
	form Form
	log  *slog.Logger

	// base carries the caller's values but never its cancellation, so an
	// unload capture or a post-submit clear still reaches the store.
	base   context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	status    Status
	lastSave  time.Time
	pending   *Offer
	submitted bool
	detached  bool
	unsubs    []func()
}

// Attach looks up the form, checks the store for a previous snapshot and
// starts capturing. The capture loop stops when ctx is cancelled or Detach
// is called.
func Attach(ctx context.Context, cfg Config) (*Manager, error) {
	cfg.defaults()
	if cfg.Document == nil {
		return nil, fmt.Errorf("autosave: Document is required")
	}
	if cfg.StorageKey == "" {
		return nil, fmt.Errorf("autosave: StorageKey is required")
	}

	form, ok := cfg.Document.Form(cfg.FormID)
	if !ok {
		cfg.Logger.Error("autosave: form not found", "form", cfg.FormID, "key", cfg.StorageKey)
		return nil, fmt.Errorf("%w: %q", ErrFormNotFound, cfg.FormID)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m := &Manager{
		cfg:  cfg,
		form: form,
		log: cfg.Logger.With(
			"key", cfg.StorageKey,
			"form", cfg.FormID,
			"instance", uuid.Must(uuid.NewV7()).String(),
		),
		base:   context.WithoutCancel(ctx),
		cancel: cancel,
		done:   make(chan struct{}),
		status: StatusIdle,
	}

	m.mu.Lock()
	m.notifyLocked()
	offer := m.loadLocked()
	m.mu.Unlock()

	if offer != nil {
		cfg.UI.OfferRestore(offer)
	}

	go m.run(loopCtx)

	m.unsubs = append(m.unsubs, form.OnChange(m.onChange), form.OnSubmit(m.onSubmit))
	if cfg.Page != nil {
		m.unsubs = append(m.unsubs, cfg.Page.OnUnload(m.Save))
	}

	m.log.Info("autosave: attached", "interval", cfg.Interval)
	return m, nil
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Save()
		}
	}
}

// Detach stops the capture loop and unsubscribes from the form and page.
// It is safe to call more than once. A clear already scheduled by a submit
// still runs.
func (m *Manager) Detach() {
	m.mu.Lock()
	if m.detached {
		m.mu.Unlock()
		return
	}
	m.detached = true
	unsubs := m.unsubs
	m.unsubs = nil
	m.mu.Unlock()

	m.cancel()
	<-m.done
	for _, u := range unsubs {
		u()
	}
	m.log.Info("autosave: detached")
}

// Key returns the storage key.
func (m *Manager) Key() string { return m.cfg.StorageKey }

// Status returns the current indicator state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// LastSaveTime returns the time of the last successful write this session.
// ok is false if nothing was written yet.
func (m *Manager) LastSaveTime() (t time.Time, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSave, !m.lastSave.IsZero()
}

// Pending returns the unresolved restore offer, if any.
func (m *Manager) Pending() (*Offer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending, m.pending != nil
}

func (m *Manager) onChange(string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.submitted = false
	if m.status != StatusSaving {
		m.setStatusLocked(StatusUnsaved)
	}
}

func (m *Manager) onSubmit() {
	m.mu.Lock()
	m.submitted = true
	m.mu.Unlock()

	m.log.Debug("autosave: submitted, clearing after grace", "grace", m.cfg.SubmitGrace)
	time.AfterFunc(m.cfg.SubmitGrace, m.Clear)
}

func (m *Manager) setStatusLocked(s Status) {
	if m.status == s && s != StatusSaved {
		return
	}
	m.status = s
	m.notifyLocked()
}

func (m *Manager) notifyLocked() {
	m.cfg.UI.StatusChanged(StatusEvent{
		Key:      m.cfg.StorageKey,
		Status:   m.status,
		At:       m.cfg.Now(),
		LastSave: m.lastSave,
	})
}

func (m *Manager) storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(m.base, m.cfg.StoreTimeout)
}

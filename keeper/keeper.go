// Package keeper is the draft service: a SQLite draft store exposed over
// HTTP and MCP, with a background sweeper that purges stale snapshots.
//
// Browsers and other autosave clients write through the HTTP routes (see
// Client, which implements autosave.Store against them). Operators and
// agents inspect and discard drafts through the MCP tools or the CLI.
//
// Usage:
//
//	k, err := keeper.New(cfg, logger)
//	defer k.Close()
//	k.RegisterHTTP(router)
//	k.RegisterMCP(mcpServer)
//	k.Start(ctx)
package keeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/draftkeeper/autosave"
	"github.com/hazyhaar/draftkeeper/draftstore"
)

// ErrNotFound is returned when no draft is stored under a key.
var ErrNotFound = errors.New("keeper: draft not found")

// Keeper is the draft service.
type Keeper struct {
	store  *draftstore.Store
	logger *slog.Logger
	config *Config
	now    func() time.Time

	sweeps atomic.Int64
	purged atomic.Int64
	failed atomic.Int64
}

// Option customises a Keeper.
type Option func(*Keeper)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option { return func(k *Keeper) { k.now = now } }

// New opens the draft database and builds a Keeper. The sweeper does not
// run until Start.
func New(cfg *Config, logger *slog.Logger, opts ...Option) (*Keeper, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	k := &Keeper{logger: logger, config: cfg, now: time.Now}
	for _, o := range opts {
		o(k)
	}

	s, err := draftstore.Open(cfg.DBPath,
		draftstore.WithMaxValueBytes(cfg.MaxDraftBytes),
		draftstore.WithClock(k.now),
	)
	if err != nil {
		return nil, err
	}
	k.store = s
	return k, nil
}

// Start launches the stale-draft sweeper. It stops when ctx is cancelled.
func (k *Keeper) Start(ctx context.Context) {
	go k.sweepLoop(ctx)
	k.logger.Info("keeper: started", "db", k.config.DBPath, "max_age", k.config.MaxAge)
}

// Close closes the database.
func (k *Keeper) Close() error {
	return k.store.Close()
}

// Store returns the underlying store for direct access (testing, admin).
func (k *Keeper) Store() *draftstore.Store {
	return k.store
}

// Config returns the effective configuration.
func (k *Keeper) Config() Config {
	return *k.config
}

// DraftView is a decoded draft.
type DraftView struct {
	Key        string                    `json:"key"`
	Version    int                       `json:"version"`
	CapturedAt time.Time                 `json:"captured_at"`
	Age        string                    `json:"age"`
	Stale      bool                      `json:"stale"`
	Size       int                       `json:"size"`
	Fields     map[string]autosave.Value `json:"fields"`
}

// List returns every stored draft, most recently written first.
func (k *Keeper) List(ctx context.Context) ([]draftstore.Entry, error) {
	entries, err := k.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []draftstore.Entry{}
	}
	return entries, nil
}

// Raw returns the stored snapshot text for key.
func (k *Keeper) Raw(ctx context.Context, key string) (string, error) {
	v, ok, err := k.store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return v, nil
}

// Show decodes the draft stored under key.
func (k *Keeper) Show(ctx context.Context, key string) (*DraftView, error) {
	d, err := k.store.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return NewDraftView(d.Key, d.Value, k.now(), k.config.MaxAge)
}

// NewDraftView decodes raw, the snapshot stored under key, as seen at now.
func NewDraftView(key, raw string, now time.Time, maxAge time.Duration) (*DraftView, error) {
	snap, err := autosave.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("keeper: draft %q: %w", key, err)
	}
	age := snap.Age(now)
	return &DraftView{
		Key:        key,
		Version:    snap.Version,
		CapturedAt: snap.CapturedAt,
		Age:        age.Round(time.Second).String(),
		Stale:      age > maxAge,
		Size:       len(raw),
		Fields:     snap.Fields,
	}, nil
}

// Put stores a snapshot. Oversized values fail with
// autosave.ErrQuotaExceeded.
func (k *Keeper) Put(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("keeper: key is required")
	}
	return k.store.Set(ctx, key, value)
}

// Discard deletes the draft stored under key. Discarding an absent draft
// is not an error.
func (k *Keeper) Discard(ctx context.Context, key string) error {
	return k.store.Delete(ctx, key)
}

// Purge deletes drafts captured more than olderThan ago. olderThan <= 0
// uses MaxAge.
func (k *Keeper) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		olderThan = k.config.MaxAge
	}
	return k.store.PurgeBefore(ctx, k.now().Add(-olderThan))
}

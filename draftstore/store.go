package draftstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/draftkeeper/autosave"
)

// Store is the drafts database handle. It implements autosave.Store.
type Store struct {
	db       *sql.DB
	owned    bool
	maxValue int
	now      func() time.Time
}

var _ autosave.Store = (*Store)(nil)

// Entry describes one stored draft without its payload. Times are unix
// milliseconds.
type Entry struct {
	Key        string `json:"key"`
	CapturedAt int64  `json:"captured_at"`
	Size       int    `json:"size"`
	UpdatedAt  int64  `json:"updated_at"`
}

// Draft is an Entry with its raw snapshot.
type Draft struct {
	Entry
	Value string `json:"value"`
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database if Open created it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// Get implements autosave.Store.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM drafts WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("draftstore: get %q: %w", key, err)
	}
	return value, true, nil
}

// Set implements autosave.Store. The capture time is read from the
// snapshot envelope; values that do not decode are stamped with the write
// time so the sweeper still ages them out.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if s.maxValue > 0 && len(value) > s.maxValue {
		return fmt.Errorf("%w: %d bytes, limit %d", autosave.ErrQuotaExceeded, len(value), s.maxValue)
	}

	now := s.now().UnixMilli()
	captured := now
	if snap, err := autosave.Decode(value); err == nil && !snap.CapturedAt.IsZero() {
		captured = snap.CapturedAt.UnixMilli()
	}

	_, err := exec(ctx, s.db, `
		INSERT INTO drafts (key, value, captured_at, size, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			captured_at = excluded.captured_at,
			size = excluded.size,
			updated_at = excluded.updated_at`,
		key, value, captured, len(value), now)
	if err != nil {
		return fmt.Errorf("draftstore: set %q: %w", key, err)
	}
	return nil
}

// Delete implements autosave.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := exec(ctx, s.db, `DELETE FROM drafts WHERE key = ?`, key); err != nil {
		return fmt.Errorf("draftstore: delete %q: %w", key, err)
	}
	return nil
}

// Lookup returns the draft stored under key, or nil if there is none.
func (s *Store) Lookup(ctx context.Context, key string) (*Draft, error) {
	d := &Draft{}
	err := s.db.QueryRowContext(ctx, `
		SELECT key, value, captured_at, size, updated_at
		FROM drafts WHERE key = ?`, key).Scan(
		&d.Key, &d.Value, &d.CapturedAt, &d.Size, &d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("draftstore: lookup %q: %w", key, err)
	}
	return d, nil
}

// List returns every draft, most recently written first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, captured_at, size, updated_at
		FROM drafts ORDER BY updated_at DESC, key`)
	if err != nil {
		return nil, fmt.Errorf("draftstore: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.CapturedAt, &e.Size, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("draftstore: list scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PurgeBefore deletes drafts captured strictly before cutoff and returns
// how many were removed.
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := exec(ctx, s.db, `DELETE FROM drafts WHERE captured_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("draftstore: purge: %w", err)
	}
	return res.RowsAffected()
}

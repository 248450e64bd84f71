package draftstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Snapshot writes come from autosave ticks, unload captures and submit
// clears landing on one file. busy_timeout absorbs most contention; these
// retries cover the cases it cannot, such as a WAL checkpoint holding the
// lock past the timeout.
const (
	writeAttempts = 3
	writeBackoff  = 100 * time.Millisecond
)

// IsBusy reports whether err means the drafts database was locked by
// another writer. modernc errors are matched by result code (primary code
// of extended codes too); other drivers by message.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// exec runs a drafts write, retrying a locked database with linear
// backoff. The context bounds the whole sequence, attempts included.
func exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	var err error
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		var res sql.Result
		if res, err = db.ExecContext(ctx, query, args...); err == nil {
			return res, nil
		}
		if !IsBusy(err) || attempt == writeAttempts {
			break
		}
		t := time.NewTimer(time.Duration(attempt) * writeBackoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("draftstore: write abandoned while locked: %w", ctx.Err())
		case <-t.C:
		}
	}
	if IsBusy(err) {
		return nil, fmt.Errorf("draftstore: database locked after %d attempts: %w", writeAttempts, err)
	}
	return nil, err
}

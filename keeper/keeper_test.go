package keeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/draftkeeper/autosave"
)

var t0 = time.Date(2026, 3, 14, 15, 4, 5, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func testKeeper(t *testing.T, cfg *Config) (*Keeper, *clock) {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.DBPath = ":memory:"
	c := &clock{t: t0}
	k, err := New(cfg, quietLogger(), WithClock(c.Now))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { k.Close() })
	return k, c
}

func snapshotAt(t *testing.T, at time.Time, fields map[string]autosave.Value) string {
	t.Helper()
	data, err := autosave.Encode(&autosave.Snapshot{Fields: fields, CapturedAt: at})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.defaults()
	if cfg.MaxAge != 24*time.Hour || cfg.SweepInterval != 10*time.Minute || cfg.MaxDraftBytes != 5<<20 {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "draftkeeper.yaml")
	yml := "db_path: /var/lib/draftkeeper/drafts.db\naddr: \":9090\"\nmax_age: 12h\nsweep_interval: 90s\nmax_draft_bytes: 1024\n"
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != "/var/lib/draftkeeper/drafts.db" || cfg.Addr != ":9090" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.MaxAge != 12*time.Hour || cfg.SweepInterval != 90*time.Second || cfg.MaxDraftBytes != 1024 {
		t.Fatalf("cfg = %+v", cfg)
	}

	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestShow(t *testing.T) {
	k, _ := testKeeper(t, nil)
	ctx := context.Background()

	fields := map[string]autosave.Value{"title": autosave.String("Hello"), "published": autosave.Bool(true)}
	if err := k.Put(ctx, "new-article-autosave", snapshotAt(t, t0.Add(-2*time.Hour), fields)); err != nil {
		t.Fatal(err)
	}

	v, err := k.Show(ctx, "new-article-autosave")
	if err != nil {
		t.Fatal(err)
	}
	if v.Age != "2h0m0s" || v.Stale || v.Version != autosave.CurrentVersion {
		t.Fatalf("view = %+v", v)
	}
	if !v.Fields["published"].Truthy() || v.Fields["title"].Str() != "Hello" {
		t.Fatalf("fields = %+v", v.Fields)
	}

	if _, err := k.Show(ctx, "absent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := k.Put(ctx, "junk", "{"); err != nil {
		t.Fatal(err)
	}
	if _, err := k.Show(ctx, "junk"); !errors.Is(err, autosave.ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
}

func TestSweep(t *testing.T) {
	k, _ := testKeeper(t, nil)
	ctx := context.Background()

	if err := k.Put(ctx, "stale", snapshotAt(t, t0.Add(-24*time.Hour-time.Second), nil)); err != nil {
		t.Fatal(err)
	}
	if err := k.Put(ctx, "fresh", snapshotAt(t, t0.Add(-23*time.Hour-59*time.Minute), nil)); err != nil {
		t.Fatal(err)
	}

	n, err := k.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}
	if _, err := k.Raw(ctx, "fresh"); err != nil {
		t.Fatalf("fresh draft gone: %v", err)
	}
	if st := k.Stats(); st.Sweeps != 1 || st.Purged != 1 || st.Errors != 0 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestStart_SweepsOnTicker(t *testing.T) {
	k, _ := testKeeper(t, &Config{SweepInterval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := k.Put(ctx, "stale", snapshotAt(t, t0.Add(-48*time.Hour), nil)); err != nil {
		t.Fatal(err)
	}
	k.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if k.Stats().Purged == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("sweeper never purged: %+v", k.Stats())
}

func TestPurge_CustomAge(t *testing.T) {
	k, _ := testKeeper(t, nil)
	ctx := context.Background()

	if err := k.Put(ctx, "two-hours", snapshotAt(t, t0.Add(-2*time.Hour), nil)); err != nil {
		t.Fatal(err)
	}
	n, err := k.Purge(ctx, time.Hour)
	if err != nil || n != 1 {
		t.Fatalf("Purge = %d, %v", n, err)
	}
}

func TestPut_RequiresKey(t *testing.T) {
	k, _ := testKeeper(t, nil)
	if err := k.Put(context.Background(), "", "{}"); err == nil {
		t.Fatal("empty key accepted")
	}
}

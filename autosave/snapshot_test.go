package autosave

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeDecode(t *testing.T) {
	at := time.Date(2026, 3, 14, 15, 4, 5, 123000000, time.UTC)
	in := &Snapshot{
		Fields: map[string]Value{
			"title":     String("Hello"),
			"published": Bool(false),
		},
		CapturedAt: at,
	}
	data, err := Encode(in)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(data, `"v":1`) {
		t.Fatalf("envelope has no version: %s", data)
	}
	if !strings.Contains(data, `"published":false`) {
		t.Fatalf("boolean not stored as JSON bool: %s", data)
	}

	out, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if out.Version != CurrentVersion {
		t.Fatalf("Version = %d", out.Version)
	}
	if !out.CapturedAt.Equal(at) {
		t.Fatalf("CapturedAt = %v, want %v", out.CapturedAt, at)
	}
	if diff := cmp.Diff(in.Fields, out.Fields); diff != "" {
		t.Fatalf("fields (-in +out):\n%s", diff)
	}
}

func TestDecode_Legacy(t *testing.T) {
	snap, err := Decode(`{"title":"Hello","body":"World","_autoSaveTimestamp":"2026-03-14T10:00:00.000Z","_other":"x"}`)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Version != 0 {
		t.Fatalf("Version = %d, want 0", snap.Version)
	}
	want := map[string]Value{"title": String("Hello"), "body": String("World")}
	if diff := cmp.Diff(want, snap.Fields); diff != "" {
		t.Fatalf("fields (-want +got):\n%s", diff)
	}
	if got := snap.CapturedAt.UTC().Hour(); got != 10 {
		t.Fatalf("CapturedAt hour = %d", got)
	}
}

func TestDecode_DropsMetadataFromEnvelope(t *testing.T) {
	snap, err := Decode(`{"v":1,"captured_at":"2026-03-14T10:00:00Z","fields":{"_internal":"x","title":"t"}}`)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := snap.Fields["_internal"]; ok {
		t.Fatal("metadata field kept")
	}
	if diff := cmp.Diff([]string{"title"}, snap.Names()); diff != "" {
		t.Fatal(diff)
	}
}

func TestDecode_CorruptWrapsErrCorrupt(t *testing.T) {
	for _, in := range []string{"", "{", `{"v":"one"}`, `{"v":99,"captured_at":"2026-03-14T10:00:00Z","fields":{}}`} {
		if _, err := Decode(in); !errors.Is(err, ErrCorrupt) {
			t.Errorf("Decode(%q) err = %v, want ErrCorrupt", in, err)
		}
	}
}

func TestValue_Truthy(t *testing.T) {
	tests := []struct {
		v    Value
		want bool
	}{
		{Bool(true), true},
		{Bool(false), false},
		{String("on"), true},
		{String("off"), false},
		{String(""), false},
		{String("true"), false},
	}
	for _, tt := range tests {
		if got := tt.v.Truthy(); got != tt.want {
			t.Errorf("%#v.Truthy() = %v, want %v", tt.v.Str(), got, tt.want)
		}
	}
}

func TestMemoryStore_Quota(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)

	if err := s.Set(ctx, "k", "12345"); err != nil {
		t.Fatal(err)
	}
	// Overwriting frees the old value's bytes first.
	if err := s.Set(ctx, "k", "123456789"); err != nil {
		t.Fatalf("overwrite within quota: %v", err)
	}
	if err := s.Set(ctx, "k2", "x"); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "k2", "x"); err != nil {
		t.Fatalf("after delete: %v", err)
	}
	if err := s.Delete(ctx, "absent"); err != nil {
		t.Fatalf("delete absent: %v", err)
	}
}

package draftui

import (
	"context"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/draftkeeper/autosave"
	"github.com/hazyhaar/draftkeeper/htmlform"
)

var at = time.Date(2026, 3, 14, 15, 4, 5, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type rendered struct {
	mu    sync.Mutex
	calls []Target
	last  map[Target]template.HTML
}

func (r *rendered) hook(t Target, frag template.HTML) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		r.last = make(map[Target]template.HTML)
	}
	r.calls = append(r.calls, t)
	r.last[t] = frag
}

func TestStatusText(t *testing.T) {
	tests := []struct {
		status autosave.Status
		text   string
		class  string
	}{
		{autosave.StatusIdle, "Auto-save active", ""},
		{autosave.StatusSaving, "Saving draft...", "saving"},
		{autosave.StatusSaved, "Draft saved at 03:04 PM", ""},
		{autosave.StatusUnsaved, "Unsaved changes", "unsaved"},
	}
	for _, tt := range tests {
		ev := autosave.StatusEvent{Status: tt.status, At: at}
		if got := StatusText(ev, time.UTC); got != tt.text {
			t.Errorf("StatusText(%s) = %q, want %q", tt.status, got, tt.text)
		}
		if got := StatusClass(tt.status); got != tt.class {
			t.Errorf("StatusClass(%s) = %q, want %q", tt.status, got, tt.class)
		}
	}
}

func TestFormatTime_MorningHasLeadingZero(t *testing.T) {
	morning := time.Date(2026, 3, 14, 9, 7, 0, 0, time.UTC)
	if got := FormatTime(morning, time.UTC); got != "09:07 AM" {
		t.Fatalf("FormatTime = %q", got)
	}
	if got := FormatDateTime(at, time.UTC); got != "3/14/2026, 3:04:05 PM" {
		t.Fatalf("FormatDateTime = %q", got)
	}
}

func TestStatusChanged_RendersFragment(t *testing.T) {
	var rec rendered
	r := New(Config{OnRender: rec.hook, Location: time.UTC, Logger: quietLogger()})

	r.StatusChanged(autosave.StatusEvent{Status: autosave.StatusSaving, At: at})
	got := string(r.StatusHTML())
	want := `<div id="autosave-status" class="saving"><i class="fa-solid fa-circle"></i> <span>Saving draft...</span></div>`
	if got != want {
		t.Fatalf("status =\n%s\nwant\n%s", got, want)
	}

	r.StatusChanged(autosave.StatusEvent{Status: autosave.StatusIdle, At: at})
	if got := string(r.StatusHTML()); !strings.HasPrefix(got, `<div id="autosave-status"><i `) {
		t.Fatalf("idle indicator wrapper has a class: %s", got)
	}
	if len(rec.calls) != 2 || rec.calls[0] != TargetStatus {
		t.Fatalf("hook calls = %v", rec.calls)
	}
}

func newOffer(t *testing.T, fields map[string]autosave.Value) (*Renderer, *rendered, *autosave.Manager, *htmlform.Form) {
	t.Helper()
	store := autosave.NewMemoryStore(0)
	data, err := autosave.Encode(&autosave.Snapshot{Fields: fields, CapturedAt: at})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Set(context.Background(), "new-article-autosave", data); err != nil {
		t.Fatal(err)
	}

	doc, err := htmlform.ParseString(`<form id="article-form">
<input name="title"><textarea name="content"></textarea>
<input type="checkbox" name="published">
</form>`)
	if err != nil {
		t.Fatal(err)
	}
	f, _ := doc.FormByID("article-form")

	rec := &rendered{}
	r := New(Config{OnRender: rec.hook, Location: time.UTC, Logger: quietLogger()})
	m, err := autosave.Attach(context.Background(), autosave.Config{
		Document:   doc,
		FormID:     "article-form",
		StorageKey: "new-article-autosave",
		Interval:   time.Hour,
		Store:      store,
		UI:         r,
		Now:        func() time.Time { return at.Add(time.Hour) },
		Logger:     quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(m.Detach)
	return r, rec, m, f
}

func TestOfferRestore_Prompt(t *testing.T) {
	r, _, _, _ := newOffer(t, map[string]autosave.Value{
		"title":     autosave.String("My <em>draft</em> title"),
		"content":   autosave.String(`<p>Hello <strong>world</strong></p><script>alert(1)</script>`),
		"published": autosave.Bool(true),
	})

	prompt := string(r.PromptHTML())
	for _, want := range []string{
		`<div id="autosave-restore" class="show">`,
		"Unsaved draft found",
		"Last saved: 3/14/2026, 3:04:05 PM",
		"<dd>Hello **world**</dd>",
		"Restore Draft",
		`data-action="dismiss"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "alert") || strings.Contains(prompt, "<script") {
		t.Fatalf("script leaked into prompt:\n%s", prompt)
	}
	if strings.Contains(prompt, "<dt>published</dt>") {
		t.Fatal("non-preview field quoted")
	}
	if _, ok := r.Offer(); !ok {
		t.Fatal("renderer lost the offer")
	}
}

func TestResolve_Restore(t *testing.T) {
	r, rec, m, f := newOffer(t, map[string]autosave.Value{
		"title":     autosave.String("Recovered"),
		"published": autosave.Bool(true),
	})

	if err := r.Resolve(ActionRestore); err != nil {
		t.Fatal(err)
	}
	if fld, _ := f.Field("title"); fld.Value != "Recovered" {
		t.Fatalf("title = %q", fld.Value)
	}
	if fld, _ := f.Field("published"); !fld.Checked {
		t.Fatal("published not restored")
	}
	if r.PromptHTML() != "" {
		t.Fatal("prompt still showing")
	}
	if rec.last[TargetRestore] != "" {
		t.Fatal("prompt removal not rendered")
	}
	if !strings.Contains(string(r.StatusHTML()), "Draft saved at") {
		t.Fatalf("status = %s", r.StatusHTML())
	}
	if _, ok := m.Pending(); ok {
		t.Fatal("manager still has a pending offer")
	}

	if err := r.Resolve(ActionDismiss); !errors.Is(err, ErrNoOffer) {
		t.Fatalf("second resolve err = %v, want ErrNoOffer", err)
	}
}

func TestResolve_DismissKeepsForm(t *testing.T) {
	r, _, _, f := newOffer(t, map[string]autosave.Value{"title": autosave.String("Draft")})

	if err := r.Resolve("maybe"); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("err = %v, want ErrUnknownAction", err)
	}
	if err := r.Resolve(ActionDismiss); err != nil {
		t.Fatal(err)
	}
	if fld, _ := f.Field("title"); fld.Value != "" {
		t.Fatalf("dismiss touched the form: %q", fld.Value)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefghijklmnop", 10); got != "abcdefghij..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("héllo", 5); got != "héllo" {
		t.Fatalf("truncate = %q", got)
	}
}

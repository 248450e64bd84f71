package autosave

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 14, 15, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeForm is an in-memory Form with the same callback rules as the real
// accessors: handlers run outside the lock.
type fakeForm struct {
	mu         sync.Mutex
	fields     []Field
	dispatched []string
	onChange   map[int]func(string)
	onSubmit   map[int]func()
	nextID     int
}

func newForm(fields ...Field) *fakeForm {
	return &fakeForm{
		fields:   fields,
		onChange: make(map[int]func(string)),
		onSubmit: make(map[int]func()),
	}
}

func (f *fakeForm) ListFields() []Field {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Field, len(f.fields))
	copy(out, f.fields)
	return out
}

func (f *fakeForm) Field(name string) (Field, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fld := range f.fields {
		if fld.Name == name {
			return fld, true
		}
	}
	return Field{}, false
}

func (f *fakeForm) SetValue(name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.fields {
		if f.fields[i].Name == name {
			f.fields[i].Value = value
			return nil
		}
	}
	return ErrNoSuchField
}

func (f *fakeForm) SetChecked(name, value string, checked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	found := false
	for i := range f.fields {
		fld := &f.fields[i]
		if fld.Name != name {
			continue
		}
		switch fld.Kind {
		case KindRadio:
			if fld.Value == value {
				found = true
			}
		case KindCheckbox:
			if value == "" || fld.Value == value {
				fld.Checked = checked
				found = true
			}
		}
	}
	if !found {
		return ErrNoSuchField
	}
	if value != "" {
		for i := range f.fields {
			fld := &f.fields[i]
			if fld.Name == name && fld.Kind == KindRadio {
				fld.Checked = fld.Value == value && checked
			}
		}
	}
	return nil
}

func (f *fakeForm) Dispatch(name string) {
	f.mu.Lock()
	f.dispatched = append(f.dispatched, name)
	handlers := make([]func(string), 0, len(f.onChange))
	for _, h := range f.onChange {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()
	for _, h := range handlers {
		h(name)
	}
}

// edit simulates the user typing into a text control.
func (f *fakeForm) edit(name, value string) {
	if err := f.SetValue(name, value); err != nil {
		panic(err)
	}
	f.mu.Lock()
	handlers := make([]func(string), 0, len(f.onChange))
	for _, h := range f.onChange {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()
	for _, h := range handlers {
		h(name)
	}
}

func (f *fakeForm) submit() {
	f.mu.Lock()
	handlers := make([]func(), 0, len(f.onSubmit))
	for _, h := range f.onSubmit {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()
	for _, h := range handlers {
		h()
	}
}

func (f *fakeForm) OnChange(fn func(string)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.onChange[id] = fn
	return func() {
		f.mu.Lock()
		delete(f.onChange, id)
		f.mu.Unlock()
	}
}

func (f *fakeForm) OnSubmit(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.onSubmit[id] = fn
	return func() {
		f.mu.Lock()
		delete(f.onSubmit, id)
		f.mu.Unlock()
	}
}

func (f *fakeForm) handlerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.onChange) + len(f.onSubmit)
}

func (f *fakeForm) value(name string) string {
	fld, _ := f.Field(name)
	return fld.Value
}

func (f *fakeForm) checked(name, value string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fld := range f.fields {
		if fld.Name == name && (value == "" || fld.Value == value) {
			return fld.Checked
		}
	}
	return false
}

type fakeDoc map[string]Form

func (d fakeDoc) Form(id string) (Form, bool) {
	f, ok := d[id]
	return f, ok
}

type fakePage struct {
	mu       sync.Mutex
	handlers []func()
}

func (p *fakePage) OnUnload(fn func()) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, fn)
	idx := len(p.handlers) - 1
	return func() {
		p.mu.Lock()
		p.handlers[idx] = nil
		p.mu.Unlock()
	}
}

func (p *fakePage) unload() {
	p.mu.Lock()
	hs := append([]func(){}, p.handlers...)
	p.mu.Unlock()
	for _, h := range hs {
		if h != nil {
			h()
		}
	}
}

// recordingUI keeps every status event and offer.
type recordingUI struct {
	mu       sync.Mutex
	statuses []Status
	offers   []*Offer
}

func (u *recordingUI) StatusChanged(ev StatusEvent) {
	u.mu.Lock()
	u.statuses = append(u.statuses, ev.Status)
	u.mu.Unlock()
}

func (u *recordingUI) OfferRestore(o *Offer) {
	u.mu.Lock()
	u.offers = append(u.offers, o)
	u.mu.Unlock()
}

func (u *recordingUI) seen() []Status {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]Status(nil), u.statuses...)
}

func (u *recordingUI) offerCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.offers)
}

// failingStore fails every call with err.
type failingStore struct{ err error }

func (s failingStore) Get(context.Context, string) (string, bool, error) { return "", false, s.err }
func (s failingStore) Set(context.Context, string, string) error         { return s.err }
func (s failingStore) Delete(context.Context, string) error              { return s.err }

var errDisk = errors.New("disk on fire")

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

package pageform

import (
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/draftkeeper/autosave"
	"github.com/hazyhaar/draftkeeper/internal/handlers"
)

// Form is a live <form> element. It implements autosave.Form.
type Form struct {
	p  *Page
	id string

	change handlers.Set[func(string)]
	submit handlers.Set[func()]
}

// ID returns the form element id.
func (f *Form) ID() string { return f.id }

type fieldJSON struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Value   string `json:"value"`
	Checked bool   `json:"checked"`
}

// parseFields decodes listFieldsJS output. ok is false when the form is
// no longer in the document.
func parseFields(s string) (fields []autosave.Field, ok bool, err error) {
	var raw []fieldJSON
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, false, fmt.Errorf("pageform: decode fields: %w", err)
	}
	if raw == nil && s == "null" {
		return nil, false, nil
	}
	fields = make([]autosave.Field, 0, len(raw))
	for _, r := range raw {
		fields = append(fields, autosave.Field{
			Name:    r.Name,
			Kind:    autosave.Kind(r.Kind),
			Value:   r.Value,
			Checked: r.Checked,
		})
	}
	return fields, true, nil
}

// ListFields implements autosave.Form. A failed evaluation is logged and
// reads as an empty form.
func (f *Form) ListFields() []autosave.Field {
	res, err := f.p.eval(listFieldsJS, f.id)
	if err != nil {
		f.p.cfg.Logger.Warn("pageform: list fields", "form", f.id, "error", err)
		return nil
	}
	fields, ok, err := parseFields(res.Value.Str())
	if err != nil {
		f.p.cfg.Logger.Warn("pageform: list fields", "form", f.id, "error", err)
		return nil
	}
	if !ok {
		f.p.cfg.Logger.Debug("pageform: form gone", "form", f.id)
	}
	return fields
}

// Field implements autosave.Form.
func (f *Form) Field(name string) (autosave.Field, bool) {
	for _, fld := range f.ListFields() {
		if fld.Name == name {
			return fld, true
		}
	}
	return autosave.Field{}, false
}

// SetValue implements autosave.Form.
func (f *Form) SetValue(name, value string) error {
	res, err := f.p.eval(setValueJS, f.id, name, value)
	if err != nil {
		return fmt.Errorf("pageform: set %q: %w", name, err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("%w: %q", autosave.ErrNoSuchField, name)
	}
	return nil
}

// SetChecked implements autosave.Form.
func (f *Form) SetChecked(name, value string, checked bool) error {
	res, err := f.p.eval(setCheckedJS, f.id, name, value, checked)
	if err != nil {
		return fmt.Errorf("pageform: check %q: %w", name, err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("%w: %q=%q", autosave.ErrNoSuchField, name, value)
	}
	return nil
}

// Dispatch fires an input event in the page for page scripts, then runs
// the Go change handlers. The page listener ignores this event so the
// handlers do not see it twice.
func (f *Form) Dispatch(name string) {
	if _, err := f.p.eval(dispatchJS, f.id, name); err != nil {
		f.p.cfg.Logger.Debug("pageform: dispatch", "form", f.id, "field", name, "error", err)
	}
	f.notifyChange(name)
}

// OnChange implements autosave.Form.
func (f *Form) OnChange(fn func(name string)) func() {
	return f.change.Add(fn)
}

// OnSubmit implements autosave.Form.
func (f *Form) OnSubmit(fn func()) func() {
	return f.submit.Add(fn)
}

func (f *Form) notifyChange(name string) {
	for _, fn := range f.change.Snapshot() {
		fn(name)
	}
}

func (f *Form) notifySubmit() {
	for _, fn := range f.submit.Snapshot() {
		fn()
	}
}

package autosave

import "errors"

// ErrNoSuchField is returned by Form setters when no control matches.
var ErrNoSuchField = errors.New("autosave: no such field")

// Kind is the control type of a form field, as written in the markup
// ("text", "checkbox", ...). Unknown input types behave like KindText.
type Kind string

const (
	KindText     Kind = "text"
	KindTextarea Kind = "textarea"
	KindSelect   Kind = "select"
	KindHidden   Kind = "hidden"
	KindCheckbox Kind = "checkbox"
	KindRadio    Kind = "radio"
	KindFile     Kind = "file"
)

// Field is one named control. Radio groups appear once per radio button.
type Field struct {
	Name    string
	Kind    Kind
	Value   string
	Checked bool
}

// Document finds forms by identifier.
type Document interface {
	Form(id string) (Form, bool)
}

// Form is the accessor a Manager uses to read and write one form.
//
// Change handlers must be invoked without holding any lock the Form's
// other methods take: a Manager reads the form from inside its handlers.
type Form interface {
	// ListFields returns every named control in document order.
	ListFields() []Field
	// Field returns the first control with the given name.
	Field(name string) (Field, bool)
	// SetValue sets the value of a text-like control.
	SetValue(name, value string) error
	// SetChecked checks or unchecks a checkable control. For radio groups
	// value selects the button; for checkboxes an empty value matches any.
	SetChecked(name, value string, checked bool) error
	// Dispatch emits an input-changed notification for name.
	Dispatch(name string)
	OnChange(fn func(name string)) (unsubscribe func())
	OnSubmit(fn func()) (unsubscribe func())
}

// Page delivers the best-effort "page is being discarded" signal.
type Page interface {
	OnUnload(fn func()) (unsubscribe func())
}

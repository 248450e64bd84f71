package htmlform

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/draftkeeper/autosave"
	"github.com/hazyhaar/draftkeeper/internal/handlers"
)

// Form is one <form> element of a Document. It implements autosave.Form.
type Form struct {
	doc  *Document
	node *html.Node
	id   string

	change handlers.Set[func(string)]
	submit handlers.Set[func()]
}

var _ autosave.Form = (*Form)(nil)

// ID returns the form's id attribute.
func (f *Form) ID() string { return f.id }

// ListFields returns every named control in document order. Buttons are
// not fields.
func (f *Form) ListFields() []autosave.Field {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()

	var out []autosave.Field
	for _, n := range f.controls() {
		out = append(out, readField(n))
	}
	return out
}

// Field returns the first control named name.
func (f *Form) Field(name string) (autosave.Field, bool) {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()

	for _, n := range f.controls() {
		if controlName(n) == name {
			return readField(n), true
		}
	}
	return autosave.Field{}, false
}

// SetValue writes value into the first text-like control named name. For a
// select, the option whose value matches becomes the only selected one; no
// option is selected when none matches.
func (f *Form) SetValue(name, value string) error {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()

	for _, n := range f.controls() {
		if controlName(n) != name {
			continue
		}
		switch kindOf(n) {
		case autosave.KindCheckbox, autosave.KindRadio, autosave.KindFile:
			continue
		case autosave.KindTextarea:
			for c := n.FirstChild; c != nil; {
				next := c.NextSibling
				n.RemoveChild(c)
				c = next
			}
			n.AppendChild(&html.Node{Type: html.TextNode, Data: value})
		case autosave.KindSelect:
			for _, opt := range options(n) {
				if optionValue(opt) == value {
					setAttr(opt, "selected", "")
				} else {
					removeAttr(opt, "selected")
				}
			}
		default:
			setAttr(n, "value", value)
		}
		return nil
	}
	return fmt.Errorf("%w: %q", autosave.ErrNoSuchField, name)
}

// SetChecked sets the checked state of the checkbox or radio named name
// whose value attribute equals value. An empty value addresses every
// checkbox of that name; radios always match their value exactly, so a
// radio with value="" is selected by "". Checking a radio unchecks the
// rest of its group.
func (f *Form) SetChecked(name, value string, checked bool) error {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()

	var group []*html.Node
	found := false
	for _, n := range f.controls() {
		if controlName(n) != name {
			continue
		}
		switch kindOf(n) {
		case autosave.KindCheckbox:
			if value != "" && inputValue(n) != value {
				continue
			}
			found = true
			setChecked(n, checked)
		case autosave.KindRadio:
			group = append(group, n)
			if inputValue(n) == value {
				found = true
			}
		}
	}
	if !found {
		return fmt.Errorf("%w: %q=%q", autosave.ErrNoSuchField, name, value)
	}
	for _, n := range group {
		if inputValue(n) == value {
			setChecked(n, checked)
		} else if checked {
			setChecked(n, false)
		}
	}
	return nil
}

// Dispatch fires the change handlers for name, as a browser input event
// would.
func (f *Form) Dispatch(name string) {
	for _, fn := range f.change.Snapshot() {
		fn(name)
	}
}

// OnChange implements autosave.Form.
func (f *Form) OnChange(fn func(name string)) func() {
	return f.change.Add(fn)
}

// OnSubmit implements autosave.Form.
func (f *Form) OnSubmit(fn func()) func() {
	return f.submit.Add(fn)
}

// Input simulates the author typing value into the control named name.
func (f *Form) Input(name, value string) error {
	if err := f.SetValue(name, value); err != nil {
		return err
	}
	f.Dispatch(name)
	return nil
}

// Toggle simulates the author clicking a checkbox or radio.
func (f *Form) Toggle(name, value string, checked bool) error {
	if err := f.SetChecked(name, value, checked); err != nil {
		return err
	}
	f.Dispatch(name)
	return nil
}

// Submit fires the submit handlers.
func (f *Form) Submit() {
	for _, fn := range f.submit.Snapshot() {
		fn()
	}
}

// Values returns the current submission the form would send, keyed by
// control name. Unchecked boxes and file inputs are absent.
func (f *Form) Values() map[string][]string {
	out := make(map[string][]string)
	for _, fld := range f.ListFields() {
		switch fld.Kind {
		case autosave.KindFile:
			continue
		case autosave.KindCheckbox, autosave.KindRadio:
			if !fld.Checked {
				continue
			}
		}
		out[fld.Name] = append(out[fld.Name], fld.Value)
	}
	return out
}

// controls walks the form subtree. Caller holds doc.mu.
func (f *Form) controls() []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Input, atom.Textarea, atom.Select:
				if isControl(n) {
					out = append(out, n)
				}
				// Controls do not nest.
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := f.node.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return out
}

func isControl(n *html.Node) bool {
	if controlName(n) == "" {
		return false
	}
	if n.DataAtom != atom.Input {
		return true
	}
	switch inputType(n) {
	case "submit", "button", "reset", "image":
		return false
	}
	return true
}

func controlName(n *html.Node) string {
	v, _ := attr(n, "name")
	return v
}

func inputType(n *html.Node) string {
	t, _ := attr(n, "type")
	t = strings.ToLower(strings.TrimSpace(t))
	if t == "" {
		return "text"
	}
	return t
}

// inputValue is the value attribute of a checkbox or radio, "on" when
// absent.
func inputValue(n *html.Node) string {
	if v, ok := attr(n, "value"); ok {
		return v
	}
	return "on"
}

func kindOf(n *html.Node) autosave.Kind {
	switch n.DataAtom {
	case atom.Textarea:
		return autosave.KindTextarea
	case atom.Select:
		return autosave.KindSelect
	}
	switch t := inputType(n); t {
	case "checkbox":
		return autosave.KindCheckbox
	case "radio":
		return autosave.KindRadio
	case "file":
		return autosave.KindFile
	case "hidden":
		return autosave.KindHidden
	default:
		return autosave.KindText
	}
}

func readField(n *html.Node) autosave.Field {
	fld := autosave.Field{Name: controlName(n), Kind: kindOf(n)}
	switch fld.Kind {
	case autosave.KindTextarea:
		fld.Value = textContent(n)
	case autosave.KindSelect:
		fld.Value = selectValue(n)
	case autosave.KindCheckbox, autosave.KindRadio:
		fld.Value = inputValue(n)
		_, fld.Checked = attr(n, "checked")
	case autosave.KindFile:
		// The selected file never lives in the markup.
	default:
		fld.Value, _ = attr(n, "value")
	}
	return fld
}

func setChecked(n *html.Node, checked bool) {
	if checked {
		setAttr(n, "checked", "")
	} else {
		removeAttr(n, "checked")
	}
}

func options(sel *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Option {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(sel)
	return out
}

func optionValue(opt *html.Node) string {
	if v, ok := attr(opt, "value"); ok {
		return v
	}
	return strings.TrimSpace(textContent(opt))
}

// selectValue follows browser rules for a single select: the last option
// marked selected wins, else the first option.
func selectValue(sel *html.Node) string {
	opts := options(sel)
	if len(opts) == 0 {
		return ""
	}
	chosen := opts[0]
	for _, o := range opts {
		if _, ok := attr(o, "selected"); ok {
			chosen = o
		}
	}
	return optionValue(chosen)
}

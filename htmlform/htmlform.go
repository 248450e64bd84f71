// Package htmlform exposes the forms of a parsed HTML document as
// autosave accessors.
//
// The document is parsed once with golang.org/x/net/html and mutated in
// place: values written through a Form are visible in Render. Input,
// Toggle, Submit and Unload stand in for the browser events a real page
// would fire, which makes the package useful both for server-side
// rendering of a restored form and for exercising a Manager in tests.
package htmlform

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/draftkeeper/autosave"
	"github.com/hazyhaar/draftkeeper/internal/handlers"
)

// Document is a parsed HTML page. It is safe for concurrent use.
type Document struct {
	mu     sync.Mutex
	root   *html.Node
	forms  map[string]*Form
	unload handlers.Set[func()]
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmlform: parse: %w", err)
	}
	return &Document{root: root, forms: make(map[string]*Form)}, nil
}

// ParseString reads an HTML document from a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Form implements autosave.Document.
func (d *Document) Form(id string) (autosave.Form, bool) {
	f, ok := d.FormByID(id)
	if !ok {
		return nil, false
	}
	return f, true
}

// FormByID returns the form whose id attribute equals id. Repeated calls
// return the same *Form, so handlers registered on it are shared.
func (d *Document) FormByID(id string) (*Form, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if f, ok := d.forms[id]; ok {
		return f, true
	}
	n := findForm(d.root, id)
	if n == nil {
		return nil, false
	}
	f := &Form{doc: d, node: n, id: id}
	d.forms[id] = f
	return f, true
}

// OnUnload implements autosave.Page.
func (d *Document) OnUnload(fn func()) func() {
	return d.unload.Add(fn)
}

// Unload fires the page-teardown handlers.
func (d *Document) Unload() {
	for _, fn := range d.unload.Snapshot() {
		fn()
	}
}

// Render writes the current document, including every value written
// through its forms.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.root)
}

// String renders the document, or returns "" if rendering fails.
func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

func findForm(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Form {
		if v, _ := attr(n, "id"); v == id {
			return n
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := findForm(c, id); f != nil {
			return f
		}
	}
	return nil
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

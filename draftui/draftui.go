// Package draftui renders the autosave status indicator and restore prompt
// as HTML fragments.
//
// A Renderer implements autosave.UI. Every transition re-renders the
// affected fragment and hands it to the OnRender hook, which typically
// swaps it into the page (an htmx response, a websocket push, a go-rod
// page). The latest fragments are also available from StatusHTML and
// PromptHTML.
package draftui

import (
	"bytes"
	"errors"
	"html/template"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/draftkeeper/autosave"
)

// Target identifies the element a fragment replaces.
type Target string

const (
	TargetStatus  Target = "autosave-status"
	TargetRestore Target = "autosave-restore"
)

// Actions accepted by Resolve, carried on the prompt buttons as
// data-action.
const (
	ActionRestore = "restore"
	ActionDismiss = "dismiss"
)

var (
	// ErrNoOffer is returned by Resolve when no prompt is showing.
	ErrNoOffer = errors.New("draftui: no pending restore offer")
	// ErrUnknownAction is returned by Resolve for anything but restore or
	// dismiss.
	ErrUnknownAction = errors.New("draftui: unknown action")
)

// Config configures a Renderer.
type Config struct {
	// OnRender receives every fragment. An empty fragment for
	// TargetRestore means the prompt is gone. It runs with the autosave
	// Manager's lock held and must not call back into the Manager.
	OnRender func(target Target, fragment template.HTML)
	// Location is the zone times are shown in. Default: time.Local.
	Location *time.Location
	// PreviewFields are the snapshot fields quoted in the prompt, in
	// order. Default: title, content.
	PreviewFields []string
	// PreviewLimit caps each preview line in runes. Default: 160.
	PreviewLimit int
	Logger       *slog.Logger
}

func (c *Config) defaults() {
	if c.OnRender == nil {
		c.OnRender = func(Target, template.HTML) {}
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.PreviewFields == nil {
		c.PreviewFields = []string{"title", "content"}
	}
	if c.PreviewLimit <= 0 {
		c.PreviewLimit = 160
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Renderer implements autosave.UI.
type Renderer struct {
	cfg    Config
	policy *bluemonday.Policy
	md     *converter.Converter

	mu     sync.Mutex
	status template.HTML
	prompt template.HTML
	offer  *autosave.Offer
}

var _ autosave.UI = (*Renderer)(nil)

// New creates a Renderer.
func New(cfg Config) *Renderer {
	cfg.defaults()
	return &Renderer{
		cfg:    cfg,
		policy: bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

// StatusChanged implements autosave.UI.
func (r *Renderer) StatusChanged(ev autosave.StatusEvent) {
	frag, err := r.render(statusTmpl, statusView{
		Class: StatusClass(ev.Status),
		Text:  StatusText(ev, r.cfg.Location),
	})
	if err != nil {
		r.cfg.Logger.Error("draftui: render status", "error", err)
		return
	}

	r.mu.Lock()
	r.status = frag
	r.mu.Unlock()
	r.cfg.OnRender(TargetStatus, frag)
}

// OfferRestore implements autosave.UI.
func (r *Renderer) OfferRestore(o *autosave.Offer) {
	frag, err := r.render(promptTmpl, promptView{
		LastSaved: FormatDateTime(o.Snapshot.CapturedAt, r.cfg.Location),
		Preview:   r.preview(o.Snapshot),
	})
	if err != nil {
		r.cfg.Logger.Error("draftui: render prompt", "error", err)
		return
	}

	r.mu.Lock()
	r.offer = o
	r.prompt = frag
	r.mu.Unlock()
	r.cfg.OnRender(TargetRestore, frag)
}

// StatusHTML returns the latest status indicator.
func (r *Renderer) StatusHTML() template.HTML {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// PromptHTML returns the restore prompt, or "" when none is showing.
func (r *Renderer) PromptHTML() template.HTML {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prompt
}

// Offer returns the offer behind the showing prompt.
func (r *Renderer) Offer() (*autosave.Offer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offer, r.offer != nil
}

// Resolve handles a click on one of the prompt buttons and removes the
// prompt.
func (r *Renderer) Resolve(action string) error {
	if action != ActionRestore && action != ActionDismiss {
		return ErrUnknownAction
	}

	r.mu.Lock()
	o := r.offer
	r.offer = nil
	r.prompt = ""
	r.mu.Unlock()
	if o == nil {
		return ErrNoOffer
	}
	r.cfg.OnRender(TargetRestore, "")

	// Unlocked: restoring re-enters StatusChanged.
	if action == ActionRestore {
		o.Restore()
	} else {
		o.Dismiss()
	}
	return nil
}

func (r *Renderer) render(t *template.Template, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// preview turns the configured fields into short plain lines. Rich-text
// bodies are sanitised, then flattened to markdown.
func (r *Renderer) preview(snap *autosave.Snapshot) []previewLine {
	var out []previewLine
	for _, name := range r.cfg.PreviewFields {
		v, ok := snap.Fields[name]
		if !ok || v.IsBool() {
			continue
		}
		text := v.Str()
		if strings.ContainsRune(text, '<') {
			md, err := r.md.ConvertString(r.policy.Sanitize(text))
			if err != nil {
				r.cfg.Logger.Debug("draftui: preview conversion failed", "field", name, "error", err)
				md = r.policy.Sanitize(text)
			}
			text = md
		}
		text = truncate(strings.Join(strings.Fields(text), " "), r.cfg.PreviewLimit)
		if text == "" {
			continue
		}
		out = append(out, previewLine{Name: name, Text: text})
	}
	return out
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit])) + "..."
}

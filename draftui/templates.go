package draftui

import (
	"html/template"
	"time"

	"github.com/hazyhaar/draftkeeper/autosave"
)

type statusView struct {
	Class string
	Text  string
}

var statusTmpl = template.Must(template.New("status").Parse(
	`<div id="autosave-status"{{with .Class}} class="{{.}}"{{end}}>` +
		`<i class="fa-solid fa-circle"></i> <span>{{.Text}}</span></div>`))

type previewLine struct {
	Name string
	Text string
}

type promptView struct {
	LastSaved string
	Preview   []previewLine
}

var promptTmpl = template.Must(template.New("prompt").Parse(`<div id="autosave-restore" class="show">
<p><i class="fa-solid fa-clock-rotate-left"></i> Unsaved draft found</p>
<small>Last saved: {{.LastSaved}}</small>
{{- if .Preview}}
<dl class="draft-preview">
{{- range .Preview}}
<dt>{{.Name}}</dt><dd>{{.Text}}</dd>
{{- end}}
</dl>
{{- end}}
<div class="restore-actions">
<button type="button" class="btn-restore" data-action="restore"><i class="fa-solid fa-rotate-left"></i> Restore Draft</button>
<button type="button" class="btn-dismiss" data-action="dismiss"><i class="fa-solid fa-xmark"></i> Dismiss</button>
</div>
</div>`))

// StatusClass is the indicator's CSS class for s. Idle and saved share the
// default look.
func StatusClass(s autosave.Status) string {
	switch s {
	case autosave.StatusSaving:
		return "saving"
	case autosave.StatusUnsaved:
		return "unsaved"
	default:
		return ""
	}
}

// StatusText is the indicator label for ev.
func StatusText(ev autosave.StatusEvent, loc *time.Location) string {
	switch ev.Status {
	case autosave.StatusSaving:
		return "Saving draft..."
	case autosave.StatusSaved:
		return "Draft saved at " + FormatTime(ev.At, loc)
	case autosave.StatusUnsaved:
		return "Unsaved changes"
	default:
		return "Auto-save active"
	}
}

// FormatTime renders a two-digit 12-hour clock, e.g. "03:04 PM".
func FormatTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("03:04 PM")
}

// FormatDateTime renders a full local timestamp, e.g. "3/14/2026, 3:04:05 PM".
func FormatDateTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("1/2/2006, 3:04:05 PM")
}

package autosave

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// CurrentVersion is the snapshot envelope version written by Encode.
// Version 0 is the flat shape written by the legacy browser script.
const CurrentVersion = 1

// legacyTimestampKey holds the capture time in version 0 snapshots.
const legacyTimestampKey = "_autoSaveTimestamp"

// ErrCorrupt is returned by Decode for content that is not a valid snapshot.
var ErrCorrupt = errors.New("autosave: corrupt snapshot")

// Value is a captured field value: a string, or a boolean for checkable inputs.
type Value struct {
	str    string
	b      bool
	isBool bool
}

// String returns a string Value.
func String(s string) Value { return Value{str: s} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{b: b, isBool: true} }

// IsBool reports whether v holds a boolean.
func (v Value) IsBool() bool { return v.isBool }

// Str returns the string form of v. Booleans render as "true" or "false".
func (v Value) Str() string {
	if v.isBool {
		return strconv.FormatBool(v.b)
	}
	return v.str
}

// Truthy reports whether v checks a checkbox: boolean true, or the string
// "on" that browsers submit for a checked box without a value attribute.
func (v Value) Truthy() bool {
	if v.isBool {
		return v.b
	}
	return v.str == "on"
}

// Equal reports whether v and o hold the same kind and value.
func (v Value) Equal(o Value) bool {
	if v.isBool != o.isBool {
		return false
	}
	if v.isBool {
		return v.b == o.b
	}
	return v.str == o.str
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.isBool {
		return json.Marshal(v.b)
	}
	return json.Marshal(v.str)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return fmt.Errorf("autosave: field value must be a string or a boolean, got null")
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = String(s)
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*v = Bool(b)
		return nil
	}
	return fmt.Errorf("autosave: field value must be a string or a boolean, got %s", data)
}

// Snapshot is a persisted copy of a form's field values plus a capture time.
type Snapshot struct {
	Version    int
	Fields     map[string]Value
	CapturedAt time.Time
}

// Age returns how old the snapshot is at now.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.CapturedAt)
}

// Names returns the snapshot field names in sorted order.
func (s *Snapshot) Names() []string {
	names := make([]string, 0, len(s.Fields))
	for n := range s.Fields {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

type envelope struct {
	V          int              `json:"v"`
	CapturedAt time.Time        `json:"captured_at"`
	Fields     map[string]Value `json:"fields"`
}

// Encode serialises s as a current-version envelope.
func Encode(s *Snapshot) (string, error) {
	fields := s.Fields
	if fields == nil {
		fields = map[string]Value{}
	}
	data, err := json.Marshal(envelope{
		V:          CurrentVersion,
		CapturedAt: s.CapturedAt.UTC(),
		Fields:     fields,
	})
	if err != nil {
		return "", fmt.Errorf("autosave: encode: %w", err)
	}
	return string(data), nil
}

// Decode parses a stored snapshot. Both the versioned envelope and the
// legacy flat shape are accepted. Anything else wraps ErrCorrupt.
func Decode(data string) (*Snapshot, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: not an object", ErrCorrupt)
	}
	if _, ok := raw["v"]; ok {
		return decodeEnvelope(raw)
	}
	if _, ok := raw[legacyTimestampKey]; ok {
		return decodeLegacy(raw)
	}
	return nil, fmt.Errorf("%w: no version or timestamp", ErrCorrupt)
}

func decodeEnvelope(raw map[string]json.RawMessage) (*Snapshot, error) {
	var v int
	if err := json.Unmarshal(raw["v"], &v); err != nil {
		return nil, fmt.Errorf("%w: version: %v", ErrCorrupt, err)
	}
	if v < 1 || v > CurrentVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, v)
	}
	fieldsRaw, ok := raw["fields"]
	if !ok {
		return nil, fmt.Errorf("%w: missing fields", ErrCorrupt)
	}
	var fields map[string]Value
	if err := json.Unmarshal(fieldsRaw, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: fields: %v", ErrCorrupt, err)
	}
	var at time.Time
	if err := json.Unmarshal(raw["captured_at"], &at); err != nil || at.IsZero() {
		return nil, fmt.Errorf("%w: captured_at: %v", ErrCorrupt, err)
	}
	for name := range fields {
		if isMetadata(name) {
			delete(fields, name)
		}
	}
	return &Snapshot{Version: v, Fields: fields, CapturedAt: at}, nil
}

func decodeLegacy(raw map[string]json.RawMessage) (*Snapshot, error) {
	var ts string
	if err := json.Unmarshal(raw[legacyTimestampKey], &ts); err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", ErrCorrupt, err)
	}
	at, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", ErrCorrupt, err)
	}
	fields := make(map[string]Value, len(raw))
	for name, msg := range raw {
		if isMetadata(name) {
			continue
		}
		var val Value
		if err := json.Unmarshal(msg, &val); err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrCorrupt, name, err)
		}
		fields[name] = val
	}
	return &Snapshot{Version: 0, Fields: fields, CapturedAt: at}, nil
}

// isMetadata reports whether a stored key is internal bookkeeping rather
// than a form field.
func isMetadata(name string) bool {
	return strings.HasPrefix(name, "_")
}

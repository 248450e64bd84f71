package autosave

import "errors"

// Save captures the form and writes the snapshot. It never fails: a store
// error is logged, the status falls back to unsaved, and the next tick
// tries again. After a submit, captures are skipped until the next edit.
func (m *Manager) Save() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.submitted {
		m.log.Debug("autosave: capture skipped after submit")
		return
	}

	m.setStatusLocked(StatusSaving)

	snap := &Snapshot{
		Version:    CurrentVersion,
		Fields:     Capture(m.form),
		CapturedAt: m.cfg.Now(),
	}
	data, err := Encode(snap)
	if err != nil {
		m.log.Error("autosave: encode failed", "error", err)
		m.setStatusLocked(StatusUnsaved)
		return
	}

	ctx, cancel := m.storeCtx()
	defer cancel()
	if err := m.cfg.Store.Set(ctx, m.cfg.StorageKey, data); err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			m.log.Warn("autosave: save failed, quota exceeded", "bytes", len(data))
		} else {
			m.log.Error("autosave: save failed", "error", err)
		}
		m.setStatusLocked(StatusUnsaved)
		return
	}

	m.lastSave = snap.CapturedAt
	m.setStatusLocked(StatusSaved)
	m.log.Debug("autosave: saved", "fields", len(snap.Fields), "bytes", len(data))
}

// Capture reads the current value of every named, non-file control.
// A lone checkbox becomes a boolean under its name. Checkboxes that share
// a name are kept apart: each box is a boolean under GroupKey(name, value).
// A radio group contributes the value of its checked button, or nothing
// when none is checked.
func Capture(f Form) map[string]Value {
	all := f.ListFields()
	boxes := make(map[string]int)
	for _, fld := range all {
		if fld.Kind == KindCheckbox {
			boxes[fld.Name]++
		}
	}

	fields := make(map[string]Value)
	for _, fld := range all {
		if fld.Name == "" || isMetadata(fld.Name) {
			continue
		}
		switch fld.Kind {
		case KindFile:
			continue
		case KindCheckbox:
			if boxes[fld.Name] > 1 {
				fields[GroupKey(fld.Name, fld.Value)] = Bool(fld.Checked)
			} else {
				fields[fld.Name] = Bool(fld.Checked)
			}
		case KindRadio:
			if fld.Checked {
				fields[fld.Name] = String(fld.Value)
			}
		default:
			fields[fld.Name] = String(fld.Value)
		}
	}
	return fields
}

// GroupKey is the snapshot field name of the checkbox with the given value
// in a group of checkboxes sharing name.
func GroupKey(name, value string) string {
	return name + "[" + value + "]"
}

// Restore writes every snapshot field back into the form and dispatches an
// input notification for each applied field so dependent UI recomputes.
// Fields the form no longer has are skipped.
func (m *Manager) Restore(snap *Snapshot) {
	if snap == nil {
		return
	}

	m.mu.Lock()
	m.pending = nil
	applied := m.applyLocked(snap)
	m.mu.Unlock()

	// Dispatch outside the lock: the form calls back into onChange.
	for _, name := range applied {
		m.form.Dispatch(name)
	}

	m.mu.Lock()
	m.setStatusLocked(StatusSaved)
	m.mu.Unlock()

	m.log.Info("autosave: restored", "fields", len(applied), "captured_at", snap.CapturedAt)
}

func (m *Manager) applyLocked(snap *Snapshot) []string {
	type box struct{ name, value string }
	byName := make(map[string]Field)
	groups := make(map[string]box)
	boxes := make(map[string]int)
	all := m.form.ListFields()
	for _, fld := range all {
		if fld.Kind == KindCheckbox {
			boxes[fld.Name]++
		}
	}
	for _, fld := range all {
		if _, ok := byName[fld.Name]; !ok {
			byName[fld.Name] = fld
		}
		if fld.Kind == KindCheckbox && boxes[fld.Name] > 1 {
			groups[GroupKey(fld.Name, fld.Value)] = box{fld.Name, fld.Value}
		}
	}

	var applied []string
	seen := make(map[string]bool)
	for _, name := range snap.Names() {
		if isMetadata(name) {
			continue
		}
		v := snap.Fields[name]

		var err error
		target := name
		if fld, ok := byName[name]; ok {
			switch fld.Kind {
			case KindFile:
				continue
			case KindCheckbox:
				err = m.form.SetChecked(name, "", v.Truthy())
			case KindRadio:
				err = m.form.SetChecked(name, v.Str(), true)
			default:
				err = m.form.SetValue(name, v.Str())
			}
		} else if b, ok := groups[name]; ok {
			target = b.name
			err = m.form.SetChecked(b.name, b.value, v.Truthy())
		} else {
			m.log.Debug("autosave: restore skipped unknown field", "field", name)
			continue
		}
		if err != nil {
			m.log.Debug("autosave: restore skipped field", "field", name, "error", err)
			continue
		}
		if !seen[target] {
			seen[target] = true
			applied = append(applied, target)
		}
	}
	return applied
}

// Dismiss deletes the stored snapshot and leaves the form untouched.
func (m *Manager) Dismiss() {
	m.mu.Lock()
	m.pending = nil
	m.mu.Unlock()
	m.Clear()
}

// Clear deletes the stored snapshot. Store errors are logged.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked("cleared")
}

func (m *Manager) deleteLocked(reason string) {
	ctx, cancel := m.storeCtx()
	defer cancel()
	if err := m.cfg.Store.Delete(ctx, m.cfg.StorageKey); err != nil {
		m.log.Error("autosave: delete failed", "reason", reason, "error", err)
		return
	}
	m.log.Debug("autosave: snapshot deleted", "reason", reason)
}

// loadLocked checks the slot once, at attach time, and returns the offer
// for a fresh snapshot.
func (m *Manager) loadLocked() *Offer {
	ctx, cancel := m.storeCtx()
	defer cancel()

	data, ok, err := m.cfg.Store.Get(ctx, m.cfg.StorageKey)
	if err != nil {
		m.log.Warn("autosave: load failed", "error", err)
		return nil
	}
	if !ok || data == "" {
		return nil
	}

	snap, err := Decode(data)
	if err != nil {
		m.log.Warn("autosave: ignoring unreadable snapshot", "error", err)
		return nil
	}

	age := snap.Age(m.cfg.Now())
	if age > m.cfg.MaxAge {
		m.log.Info("autosave: discarding stale snapshot", "age", age)
		m.deleteLocked("stale")
		return nil
	}

	m.pending = &Offer{
		Key:      m.cfg.StorageKey,
		Snapshot: snap,
		Age:      age,
		m:        m,
	}
	m.log.Info("autosave: snapshot found", "age", age, "fields", len(snap.Fields))
	return m.pending
}

// takeOffer resolves o if it is still the pending offer.
func (m *Manager) takeOffer(o *Offer) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != o {
		return false
	}
	m.pending = nil
	return true
}

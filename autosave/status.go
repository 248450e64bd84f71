package autosave

import "time"

// Status is the indicator state. It is for display only and never gates
// behaviour.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusUnsaved Status = "unsaved"
	StatusSaving  Status = "saving"
	StatusSaved   Status = "saved"
)

// StatusEvent is sent to the UI on every status transition.
type StatusEvent struct {
	Key    string
	Status Status
	// At is when the transition happened.
	At time.Time
	// LastSave is the time of the last successful write this session,
	// zero if none.
	LastSave time.Time
}

// UI renders the status indicator and the restore prompt.
//
// StatusChanged runs with the Manager's lock held and must not call back
// into the Manager. OfferRestore runs unlocked; the offer may be resolved
// from inside it.
type UI interface {
	StatusChanged(ev StatusEvent)
	// OfferRestore is called at most once per Attach, when a fresh
	// snapshot was found. The operator resolves it with Restore or Dismiss.
	OfferRestore(o *Offer)
}

// NopUI discards every notification.
type NopUI struct{}

func (NopUI) StatusChanged(StatusEvent) {}
func (NopUI) OfferRestore(*Offer)       {}

// Offer is the restore decision point surfaced for a fresh snapshot.
type Offer struct {
	Key      string
	Snapshot *Snapshot
	// Age is the snapshot age when the offer was made.
	Age time.Duration

	m *Manager
}

// Restore applies the offered snapshot to the form. It reports false if the
// offer was already resolved.
func (o *Offer) Restore() bool {
	if !o.m.takeOffer(o) {
		return false
	}
	o.m.Restore(o.Snapshot)
	return true
}

// Dismiss deletes the offered snapshot without touching the form. It
// reports false if the offer was already resolved.
func (o *Offer) Dismiss() bool {
	if !o.m.takeOffer(o) {
		return false
	}
	o.m.Dismiss()
	return true
}

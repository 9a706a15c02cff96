package device

import (
	"time"

	"github.com/nerrad567/gray-logic-dali-bridge/internal/dali"
)

// State is the cached datapoint state of a device, keyed by a canonical
// field name ("on", "brightness", "color_temp", "hue", "saturation",
// "motion", "illuminance", "energy"). Values are JSON-compatible.
type State map[string]any

// Record is a persisted device with its cached runtime state.
//
// The identity fields mirror what the gateway reports during discovery; the
// state and availability fields are updated continuously from gateway
// reports and survive restarts so the bus shows last-known state while a
// gateway is down.
type Record struct {
	dali.Device

	// State is the last known datapoint state.
	State State `json:"state,omitempty"`

	// Available mirrors the owning gateway link: a device on an
	// unreachable gateway is unavailable regardless of its bus presence.
	Available bool `json:"available"`

	// StateUpdatedAt is when State last changed.
	StateUpdatedAt *time.Time `json:"state_updated_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates an independent copy of the Record. The state map is
// cloned so modifications to the copy do not affect the original.
func (r *Record) DeepCopy() *Record {
	if r == nil {
		return nil
	}

	cpy := *r
	cpy.State = r.State.clone()

	// Pointer fields to immutable values (*time.Time) are safe to share.

	return &cpy
}

func (s State) clone() State {
	if s == nil {
		return nil
	}
	cpy := make(State, len(s))
	for k, v := range s {
		cpy[k] = v
	}
	return cpy
}

// Merge overlays the fields of other onto s, returning whether anything
// changed. Used to fold partial device reports into the cached state.
func (s State) Merge(other State) bool {
	changed := false
	for k, v := range other {
		if cur, ok := s[k]; !ok || cur != v {
			s[k] = v
			changed = true
		}
	}
	return changed
}

// ScanDiff is the result of reconciling a bus scan against the stored
// inventory.
type ScanDiff struct {
	// Added devices were discovered on the bus but not in the store.
	Added []dali.Device

	// Removed devices were in the store but no longer on the bus.
	Removed []dali.Device
}

// Empty reports whether the scan changed nothing.
func (d ScanDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

package status

import "fmt"

// UpdateState is the position of an extension in its update lifecycle.
//
// The string value is the human-readable label shown to users, which keeps
// JSON output and log lines readable without a lookup table.
type UpdateState string

const (
	// StateCheckingForUpdates indicates a check against the release source is in flight.
	StateCheckingForUpdates UpdateState = "checking for updates"

	// StateUpdatedNeedsRestart indicates a new version is installed but not yet loaded.
	StateUpdatedNeedsRestart UpdateState = "updated, needs restart"

	// StateUpdating indicates a new version is being installed.
	StateUpdating UpdateState = "updating"

	// StateUpdateAvailable indicates a newer version than the installed one exists.
	StateUpdateAvailable UpdateState = "update available"

	// StateUpToDate indicates the installed version is the latest.
	StateUpToDate UpdateState = "up to date"

	// StateError indicates the last check or update failed.
	StateError UpdateState = "error"

	// StateNotUpdatable indicates the extension has no update source
	// (for example, it was installed from a local path).
	StateNotUpdatable UpdateState = "not updatable"

	// StateUnknown is an explicit "could not tell" state. It is different
	// from a name having no entry in a [Snapshot] at all.
	StateUnknown UpdateState = "unknown"
)

// States returns every [UpdateState] in declaration order. Each call
// returns a new slice.
func States() []UpdateState {
	return []UpdateState{
		StateCheckingForUpdates,
		StateUpdatedNeedsRestart,
		StateUpdating,
		StateUpdateAvailable,
		StateUpToDate,
		StateError,
		StateNotUpdatable,
		StateUnknown,
	}
}

// String returns the display label of the state.
// This implements the fmt.Stringer interface.
func (s UpdateState) String() string {
	return string(s)
}

// Valid reports whether s is one of the eight defined states.
func (s UpdateState) Valid() bool {
	switch s {
	case StateCheckingForUpdates, StateUpdatedNeedsRestart, StateUpdating,
		StateUpdateAvailable, StateUpToDate, StateError, StateNotUpdatable, StateUnknown:
		return true
	}
	return false
}

// ParseUpdateState converts a display label back to an [UpdateState].
func ParseUpdateState(s string) (UpdateState, error) {
	st := UpdateState(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown update state %q", s)
	}
	return st, nil
}

// UpdateStatus is the recorded status of one extension.
type UpdateStatus struct {
	// State is the current lifecycle position.
	State UpdateState `json:"state"`

	// Acknowledged reports whether the UI has already surfaced State to the
	// user. It is cleared every time State changes.
	Acknowledged bool `json:"acknowledged"`
}

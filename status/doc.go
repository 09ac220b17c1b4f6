// Package status records the update lifecycle of named extensions.
//
// The package is the pure core of extupdate. It holds no goroutines, performs
// no I/O and never logs. State is carried in immutable [Snapshot] values that
// are advanced by [Apply]:
//
//	var snap *status.Snapshot // nil is the empty snapshot
//	snap = status.Apply(snap, status.SetState{Name: "foo", State: status.StateCheckingForUpdates})
//	snap = status.Apply(snap, status.SetState{Name: "foo", State: status.StateUpdateAvailable})
//
//	next := status.Apply(snap, status.SetAcknowledged{Name: "foo", Acknowledged: true})
//	if next == snap {
//	    // nothing changed, skip re-render
//	}
//
// # Identity
//
// [Apply] returns the very same pointer it was given when an event would not
// change anything. Callers may compare snapshots with == as a cheap
// "did anything change" test.
//
// # Ordering
//
// Apply does not police which transitions are legal. Any [UpdateState] may
// follow any other. Deciding which events to dispatch, and in which order, is
// the caller's job.
package status

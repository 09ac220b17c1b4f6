package store

import "github.com/jpalmerr/extupdate/status"

// Change describes the new status of a single extension after an effective
// dispatch.
//
// Change is the wire representation published to subscribers and streamed
// over Server-Sent Events.
type Change struct {
	// Name is the extension name.
	Name string `json:"name"`

	// State is the extension's state after the change.
	// Empty when Removed is true.
	State status.UpdateState `json:"state,omitempty"`

	// Acknowledged is the extension's acknowledged flag after the change.
	Acknowledged bool `json:"acknowledged"`

	// Removed is true when the extension stopped being tracked.
	Removed bool `json:"removed,omitempty"`
}

// Store defines the interface for dispatching status events and subscribing
// to the resulting changes.
//
// Store implementations must be safe for concurrent access.
type Store interface {
	// Dispatch applies ev to the current snapshot. It reports the resulting
	// change and whether anything actually changed.
	Dispatch(ev status.Event) (Change, bool)

	// Current returns the latest snapshot. The snapshot is immutable and
	// may be retained by the caller.
	Current() *status.Snapshot

	// Forget stops tracking name. Returns false if name had no entry.
	Forget(name string) bool

	// Subscribe returns a channel that receives changes.
	// The returned channel has a buffer; slow consumers may miss changes.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Change

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Change)
}

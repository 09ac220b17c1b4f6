// Package store holds the process-wide extension status snapshot.
//
// This package is internal to extupdate. It wraps the pure [status.Apply]
// reducer with the one piece of shared mutable state the host needs: a
// pointer to the current snapshot. Dispatches are serialised so events are
// applied one at a time, and every effective change is published to
// subscribers.
//
// The main components are:
//
//   - [Store]: Interface defining dispatch and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [Change]: Notification describing one extension's new status
//
// Subscribers receive changes via channels with non-blocking sends (slow
// subscribers will miss changes rather than block dispatch).
package store

// Package checker provides concurrent update checking for extupdate.
//
// This package is internal to extupdate and plays the update-checker role:
// it fetches each extension's release manifest, compares the advertised
// version with the installed one, and reports the resulting lifecycle states.
// It never touches the status snapshot itself; the caller turns each
// [Result] into a status event.
//
// The main components are:
//
//   - [Client]: HTTP client wrapper with timeout and size limits
//   - [Scheduler]: Periodic checking of extensions with a worker pool
//   - [Result]: One state reported for one extension
//   - [ExtensionInfo]: Configuration for an extension to check
package checker

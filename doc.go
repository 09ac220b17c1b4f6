// Package extupdate tracks the update lifecycle of installed extensions
// and serves it to user interfaces.
//
// Each extension moves through the states defined in package status
// (checking for updates, update available, updating, updated and needing a
// restart, and so on). A [Monitor] checks release manifests, runs updates
// through a caller-supplied [Installer], and records every transition in an
// immutable [status.Snapshot]. UIs read snapshots, or subscribe to
// [Change] values, and acknowledge states once they have been shown.
//
// # Quick Start
//
//	ext, _ := extupdate.NewExtension("code-review", "1.4.2",
//	    extupdate.WithManifestURL("https://example.com/code-review/latest.json"),
//	)
//	m, _ := extupdate.New(extupdate.WithExtension(ext))
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	m.Start(ctx) // blocks until context is cancelled
//
// # Version Extractors
//
// Extractors read the latest released version from a manifest response:
//
//   - [JSONFieldExtractor]: reads a JSON field using dot notation
//   - [RegexExtractor]: returns the first capture group of a pattern
//   - [PlainTextExtractor]: treats the whole body as the version
//   - [FirstMatch]: tries several extractors in order
//   - [DefaultExtractor]: a "version" JSON field, then plain text
//
// Versions are compared as semantic versions.
//
// # Architecture
//
//   - status: the snapshot type and the pure transition function
//   - internal/store: the current snapshot with change fan-out
//   - internal/checker: manifest fetching on a bounded worker pool
//   - internal/server: JSON API and Server-Sent Events
package extupdate

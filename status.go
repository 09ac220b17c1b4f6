package extupdate

import (
	"time"

	"github.com/jpalmerr/extupdate/internal/store"
	"github.com/jpalmerr/extupdate/status"
)

// VersionExtractor is a function type that reads the latest released version
// of an extension from its manifest response.
//
// Parameters:
//   - body: The HTTP response body as bytes
//   - statusCode: The HTTP status code (e.g., 200, 404, 500)
//
// Returns the version string, or "" when none can be found. An empty
// version puts the extension into [status.StateError].
//
// Several built-in extractors are provided: [JSONFieldExtractor],
// [RegexExtractor], [PlainTextExtractor], and [FirstMatch] for composition.
//
// # Panic Safety
//
// VersionExtractor functions are called within a panic recovery boundary.
// If an extractor panics, the extension is set to [status.StateError] with
// an error containing a correlation ID. The full stack trace is logged.
type VersionExtractor func(body []byte, statusCode int) string

// Change describes one accepted transition of the tracked statuses.
//
// A Change is published whenever a dispatched event actually alters the
// snapshot, and when an entry is removed with [Monitor.Forget]. No-op
// events never produce a Change.
type Change = store.Change

// CheckResult holds the outcome of one lifecycle step of an update check.
//
// A check normally yields two results: [status.StateCheckingForUpdates] when
// it starts and the outcome once the manifest has been evaluated.
type CheckResult struct {
	// Name is the extension name.
	Name string

	// State is the state the check reported.
	State status.UpdateState

	// InstalledVersion is the version currently installed.
	InstalledVersion string

	// LatestVersion is the version advertised by the manifest.
	// Empty until the manifest has been evaluated.
	LatestVersion string

	// Latency is the time taken to fetch the manifest.
	Latency time.Duration

	// CheckedAt is when the result was produced.
	CheckedAt time.Time

	// Error is set when State is [status.StateError].
	Error error
}

package extupdate

import "errors"

var (
	// ErrUnknownExtension is returned for names that were not configured.
	ErrUnknownExtension = errors.New("unknown extension")

	// ErrNotUpdateAvailable is returned by [Monitor.Update] when the
	// extension is not in the update-available state.
	ErrNotUpdateAvailable = errors.New("no update available")

	// ErrNoInstaller is returned by [Monitor.Update] when no [Installer]
	// was configured with [WithInstaller].
	ErrNoInstaller = errors.New("no installer configured")
)

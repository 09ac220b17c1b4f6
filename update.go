package extupdate

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"

	"github.com/jpalmerr/extupdate/internal/server"
	"github.com/jpalmerr/extupdate/status"
)

// Installer downloads and applies an update for ext. version is the latest
// version the manifest advertised. It should honour ctx cancellation. The
// new version takes effect after a restart, which is outside the Monitor's
// control.
type Installer func(ctx context.Context, ext Extension, version string) error

// Update installs the available update for the named extension.
//
// The extension must be in [status.StateUpdateAvailable]. It moves to
// [status.StateUpdating] while the [Installer] runs, then to
// [status.StateUpdatedNeedsRestart] on success or [status.StateError] on
// failure. Update blocks until the installer returns.
//
// Returns [ErrUnknownExtension], [ErrNoInstaller] or [ErrNotUpdateAvailable]
// (all usable with errors.Is) without touching the snapshot, or the
// installer's error wrapped.
func (m *Monitor) Update(ctx context.Context, name string) error {
	p, err := m.beginUpdate(name)
	if err != nil {
		return err
	}
	return m.finishUpdate(ctx, p)
}

// pendingUpdate is an update that has been moved to the updating state.
type pendingUpdate struct {
	ext     Extension
	version string
}

// beginUpdate validates the request and moves the extension to updating.
func (m *Monitor) beginUpdate(name string) (pendingUpdate, error) {
	ext, ok := m.byName[name]
	if !ok {
		return pendingUpdate{}, fmt.Errorf("%w: %q", ErrUnknownExtension, name)
	}
	if m.installer == nil {
		return pendingUpdate{}, ErrNoInstaller
	}

	m.mu.Lock()
	st, recorded := m.store.Current().Get(name)
	if !recorded || st.State != status.StateUpdateAvailable {
		m.mu.Unlock()
		current := "no recorded status"
		if recorded {
			current = st.State.String()
		}
		return pendingUpdate{}, fmt.Errorf("%w: %s has %s", ErrNotUpdateAvailable, name, current)
	}
	change, changed := m.store.Dispatch(status.SetState{Name: name, State: status.StateUpdating})
	version := m.latest[name]
	m.mu.Unlock()

	if changed {
		m.notify(change)
	}
	m.logger.Info("update started",
		"extension", name,
		"installed_version", ext.version,
		"latest_version", version,
	)
	return pendingUpdate{ext: ext, version: version}, nil
}

// finishUpdate runs the installer and records the outcome.
func (m *Monitor) finishUpdate(ctx context.Context, p pendingUpdate) error {
	ext := p.ext
	err := m.safeInstall(ctx, ext, p.version)

	next := status.StateUpdatedNeedsRestart
	if err != nil {
		next = status.StateError
		m.logger.Error("update failed", "extension", ext.name, "error", err)
	} else {
		m.logger.Info("update installed, restart required", "extension", ext.name)
	}

	m.mu.Lock()
	var change Change
	var changed bool
	if _, forgotten := m.forgotten[ext.name]; forgotten {
		m.logger.Debug("update outcome dropped for forgotten extension", "extension", ext.name, "state", next)
	} else {
		change, changed = m.store.Dispatch(status.SetState{Name: ext.name, State: next})
	}
	m.mu.Unlock()
	if changed {
		m.notify(change)
	}

	if err != nil {
		return fmt.Errorf("update %s: %w", ext.name, err)
	}
	return nil
}

// safeInstall calls the installer with panic recovery.
// A panic is logged with a correlation ID and returned as an error carrying it.
func (m *Monitor) safeInstall(ctx context.Context, ext Extension, version string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()

			m.logger.Error("installer panic",
				"correlation_id", correlationID,
				"extension", ext.name,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)

			err = fmt.Errorf("installer panic (correlation_id: %s)", correlationID)
		}
	}()

	return m.installer(ctx, ext, version)
}

// serverUpdate adapts updates to the HTTP API. The request only starts the
// update; the installer runs in the background under ctx.
func (m *Monitor) serverUpdate(ctx context.Context) server.UpdateFunc {
	return func(_ context.Context, name string) error {
		p, err := m.beginUpdate(name)
		switch {
		case errors.Is(err, ErrUnknownExtension):
			return fmt.Errorf("%w: %w", server.ErrNotFound, err)
		case errors.Is(err, ErrNotUpdateAvailable):
			return fmt.Errorf("%w: %w", server.ErrConflict, err)
		case errors.Is(err, ErrNoInstaller):
			return fmt.Errorf("%w: %w", server.ErrNotImplemented, err)
		case err != nil:
			return err
		}

		m.installs.Add(1)
		go func() {
			defer m.installs.Done()
			_ = m.finishUpdate(ctx, p)
		}()
		return nil
	}
}

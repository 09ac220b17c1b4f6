package extupdate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jpalmerr/extupdate/internal/checker"
	"github.com/jpalmerr/extupdate/internal/server"
	"github.com/jpalmerr/extupdate/internal/store"
	"github.com/jpalmerr/extupdate/status"
)

const (
	defaultCheckInterval  = 15 * time.Minute
	defaultPort           = 8080
	defaultMaxConcurrency = 4
)

// Monitor tracks the update lifecycle of a set of extensions.
//
// Monitor owns the current [status.Snapshot] and is the only writer to it.
// Update checks, updates started with [Monitor.Update], and acknowledgements
// from a UI all arrive as events and are applied with [status.Apply]. Events
// that do not change anything leave the snapshot pointer untouched, so
// readers can compare snapshots with == to skip redundant work.
//
// The typical lifecycle is:
//
//	m, err := extupdate.New(extupdate.WithExtension(ext))
//	if err != nil {
//	    slog.Error("failed to create monitor", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	m.Start(ctx) // blocks until context cancelled
type Monitor struct {
	extensions      []Extension
	byName          map[string]Extension
	checkInterval   time.Duration
	port            int
	maxConcurrency  int
	logger          *slog.Logger
	changeCallbacks []func(Change)
	checkCallbacks  []func(CheckResult)
	installer       Installer
	store           *store.MemoryStore

	// mu serialises read-then-dispatch sequences so a late check result
	// cannot overwrite an update in progress. It also guards latest and
	// forgotten.
	mu        sync.Mutex
	latest    map[string]string   // latest advertised version by name
	forgotten map[string]struct{} // removed by Forget, not checked until set again
	installs sync.WaitGroup
}

// New creates a new [Monitor] with the given options.
//
// At least one extension must be configured via [WithExtension] or
// [WithExtensions]. Other options have defaults:
//   - Check interval: 15 minutes
//   - Port: 8080
//   - Max concurrency: 4
//
// Returns an error if no extensions are configured, names are duplicated,
// or any option is invalid.
func New(opts ...Option) (*Monitor, error) {
	cfg := &monitorConfig{
		checkInterval:  defaultCheckInterval,
		port:           defaultPort,
		maxConcurrency: defaultMaxConcurrency,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.extensions) == 0 {
		return nil, errors.New("at least one extension is required")
	}

	byName := make(map[string]Extension, len(cfg.extensions))
	for _, ext := range cfg.extensions {
		if ext.name == "" {
			return nil, errors.New("extension name cannot be empty (use NewExtension)")
		}
		if _, dup := byName[ext.name]; dup {
			return nil, fmt.Errorf("duplicate extension name: %q", ext.name)
		}
		byName[ext.name] = ext
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{
		extensions:      cfg.extensions,
		byName:          byName,
		checkInterval:   cfg.checkInterval,
		port:            cfg.port,
		maxConcurrency:  cfg.maxConcurrency,
		logger:          logger,
		changeCallbacks: cfg.changeCallbacks,
		checkCallbacks:  cfg.checkCallbacks,
		installer:       cfg.installer,
		store:           store.NewMemoryStore(),
		latest:          make(map[string]string),
		forgotten:       make(map[string]struct{}),
	}, nil
}

// Start begins checking extensions for updates and serving the status API.
//
// Start blocks until ctx is cancelled. All extensions are checked
// immediately, then at their intervals. Extensions that are updating or
// waiting for a restart are not checked.
//
// Returns nil on graceful shutdown, or an error if the HTTP server cannot start.
func (m *Monitor) Start(ctx context.Context) error {
	m.logger.Info("extupdate starting", "extension_count", len(m.extensions))
	m.logger.Info("update checks configured", "interval", m.checkInterval.String())
	m.logger.Info("status api available", "url", fmt.Sprintf("http://localhost:%d/api/extensions", m.port))

	if ctx.Err() != nil {
		return nil
	}

	scheduler := checker.NewScheduler(m.toCheckerExtensions(), m.checkInterval, m.maxConcurrency, m.skipCheck, m.logger)
	scheduler.Start(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for result := range scheduler.Results() {
			m.record(result)
		}
	}()

	cleanup := func() {
		scheduler.Stop() // closes results channel
		wg.Wait()
		m.installs.Wait()
	}

	var update server.UpdateFunc
	if m.installer != nil {
		update = m.serverUpdate(ctx)
	}

	httpServer := server.NewServer(m.store, m.port, server.Actions{
		Ack:    m.acknowledgeKnown,
		Forget: m.Forget,
		Update: update,
	}, m.logger)
	if err := httpServer.Start(ctx); err != nil {
		cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	<-ctx.Done()
	cleanup()
	m.logger.Info("extupdate stopped")
	return nil
}

// CheckOnce checks every extension once and returns when all checks have
// been recorded. It does not start the HTTP server.
//
// Returns ctx.Err() if the context was cancelled before the checks finished.
func (m *Monitor) CheckOnce(ctx context.Context) error {
	scheduler := checker.NewScheduler(m.toCheckerExtensions(), m.checkInterval, m.maxConcurrency, m.skipCheck, m.logger)
	defer scheduler.Stop()

	scheduler.RunOnce(ctx, m.record)
	return ctx.Err()
}

// Snapshot returns the current statuses. The result is immutable and stays
// valid after later changes.
func (m *Monitor) Snapshot() *status.Snapshot {
	return m.store.Current()
}

// Dispatch applies ev to the current snapshot. It reports whether the
// snapshot changed; unrecognised and no-op events return false.
//
// While an update is running the installer owns the extension's state, so
// a [status.SetState] for an extension in [status.StateUpdating] is refused.
// A SetState for a forgotten extension tracks it again.
func (m *Monitor) Dispatch(ev status.Event) bool {
	m.mu.Lock()
	if set, ok := ev.(status.SetState); ok {
		if st, _ := m.store.Current().Get(set.Name); st.State == status.StateUpdating {
			m.mu.Unlock()
			m.logger.Debug("state change refused during update", "extension", set.Name, "state", set.State)
			return false
		}
		delete(m.forgotten, set.Name)
	}
	change, changed := m.store.Dispatch(ev)
	m.mu.Unlock()

	if changed {
		m.notify(change)
	}
	return changed
}

// Acknowledge marks the extension's current state as shown to the user.
// It reports false when the extension has no recorded status or was
// already acknowledged.
func (m *Monitor) Acknowledge(name string) bool {
	return m.Dispatch(status.SetAcknowledged{Name: name, Acknowledged: true})
}

// acknowledgeKnown acknowledges name and reports whether it has a recorded
// status, whether or not it was acknowledged already.
func (m *Monitor) acknowledgeKnown(name string) bool {
	m.mu.Lock()
	change, changed := m.store.Dispatch(status.SetAcknowledged{Name: name, Acknowledged: true})
	_, found := m.store.Current().Get(name)
	m.mu.Unlock()

	if changed {
		m.notify(change)
	}
	return found
}

// Forget removes the extension's recorded status, for example after it
// was uninstalled. It reports whether an entry was removed.
//
// A forgotten extension is no longer checked, and the outcome of an update
// already running for it is dropped. Dispatching a [status.SetState] for it
// tracks it again.
func (m *Monitor) Forget(name string) bool {
	m.mu.Lock()
	removed := m.store.Forget(name)
	if removed {
		m.forgotten[name] = struct{}{}
	}
	m.mu.Unlock()

	if !removed {
		return false
	}
	m.notify(Change{Name: name, Removed: true})
	return true
}

// Subscribe returns a channel that receives every [Change].
//
// The channel is buffered; changes are dropped for subscribers that fall
// behind. Call [Monitor.Unsubscribe] when done.
func (m *Monitor) Subscribe() <-chan Change {
	return m.store.Subscribe()
}

// Unsubscribe stops delivery to ch and closes it.
func (m *Monitor) Unsubscribe(ch <-chan Change) {
	m.store.Unsubscribe(ch)
}

// Extensions returns a copy of the configured extensions.
func (m *Monitor) Extensions() []Extension {
	cp := make([]Extension, len(m.extensions))
	copy(cp, m.extensions)
	return cp
}

// Port returns the configured HTTP port for the status API.
func (m *Monitor) Port() int {
	return m.port
}

// CheckInterval returns the configured default interval between checks.
func (m *Monitor) CheckInterval() time.Duration {
	return m.checkInterval
}

// busy reports whether name is mid-update or waiting for a restart.
// Checks for such extensions are skipped and their results discarded.
func (m *Monitor) busy(name string) bool {
	st, ok := m.store.Current().Get(name)
	if !ok {
		return false
	}
	return st.State == status.StateUpdating || st.State == status.StateUpdatedNeedsRestart
}

// skipCheck reports whether the scheduler must leave name alone: it is
// busy or has been forgotten.
func (m *Monitor) skipCheck(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, forgotten := m.forgotten[name]
	return forgotten || m.busy(name)
}

// record applies a check result to the snapshot, then runs callbacks and logs it.
func (m *Monitor) record(r checker.Result) {
	m.mu.Lock()
	if _, forgotten := m.forgotten[r.Name]; forgotten || m.busy(r.Name) {
		m.mu.Unlock()
		m.logger.Debug("check result discarded", "extension", r.Name, "state", r.State)
		return
	}
	change, changed := m.store.Dispatch(status.SetState{Name: r.Name, State: r.State})
	if r.LatestVersion != "" {
		m.latest[r.Name] = r.LatestVersion
	}
	m.mu.Unlock()

	if changed {
		m.notify(change)
	}

	if len(m.checkCallbacks) > 0 {
		public := checkerResultToPublicResult(r)
		for _, cb := range m.checkCallbacks {
			invokeCallbackSafe(cb, public, r.Name, m.logger)
		}
	}

	logAttrs := []any{
		"extension", r.Name,
		"state", r.State,
		"installed_version", r.InstalledVersion,
	}
	if r.LatestVersion != "" {
		logAttrs = append(logAttrs, "latest_version", r.LatestVersion, "latency_ms", r.Latency.Milliseconds())
	}
	switch {
	case r.Error != nil:
		m.logger.Warn("update check failed", append(logAttrs, "error", r.Error.Error())...)
	case r.State == status.StateUpdateAvailable:
		m.logger.Info("update available", logAttrs...)
	default:
		m.logger.Debug("update check completed", logAttrs...)
	}
}

// notify runs the change callbacks.
func (m *Monitor) notify(change Change) {
	for _, cb := range m.changeCallbacks {
		invokeCallbackSafe(cb, change, change.Name, m.logger)
	}
}

// toCheckerExtensions converts Extension slice to checker.ExtensionInfo slice.
func (m *Monitor) toCheckerExtensions() []checker.ExtensionInfo {
	result := make([]checker.ExtensionInfo, len(m.extensions))

	for i, ext := range m.extensions {
		extractor := ext.extractor
		if extractor == nil {
			extractor = DefaultExtractor
		}

		result[i] = checker.ExtensionInfo{
			Name:             ext.name,
			InstalledVersion: ext.version,
			ManifestURL:      ext.manifestURL,
			Headers:          copyMap(ext.headers),
			Timeout:          ext.timeout,
			Extractor:        checker.VersionExtractor(extractor),
			Updatable:        ext.updatable,
			Interval:         ext.interval,
		}
	}

	return result
}

// checkerResultToPublicResult converts an internal checker result to the public type.
func checkerResultToPublicResult(r checker.Result) CheckResult {
	return CheckResult{
		Name:             r.Name,
		State:            r.State,
		InstalledVersion: r.InstalledVersion,
		LatestVersion:    r.LatestVersion,
		Latency:          r.Latency,
		CheckedAt:        r.CheckedAt,
		Error:            r.Error,
	}
}

// invokeCallbackSafe calls a callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe[T any](cb func(T), v T, name string, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("callback panicked",
				"panic", r,
				"extension", name,
			)
		}
	}()
	cb(v)
}

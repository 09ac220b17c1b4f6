package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/jpalmerr/extupdate/status"
)

// Result is one lifecycle state reported for one extension.
//
// A single check normally produces two results: [status.StateCheckingForUpdates]
// when the check starts, then the outcome once the manifest is evaluated.
type Result struct {
	// Name is the extension name.
	Name string

	// State is the lifecycle state to record.
	State status.UpdateState

	// InstalledVersion is the version currently installed.
	InstalledVersion string

	// LatestVersion is the version advertised by the manifest.
	// Empty until the manifest has been evaluated.
	LatestVersion string

	// CheckedAt is when the result was produced.
	CheckedAt time.Time

	// Latency is the time taken to fetch the manifest. Zero for
	// results produced without a fetch.
	Latency time.Duration

	// Error is set when State is [status.StateError].
	Error error
}

// VersionExtractor reads the latest available version out of a manifest
// response. It returns "" when no version can be found.
//
// This is the checker-internal version of the public extractor type,
// avoiding a dependency on the root package.
type VersionExtractor func(body []byte, statusCode int) string

// ExtensionInfo contains the configuration needed to check a single extension.
type ExtensionInfo struct {
	// Name is the extension name.
	Name string

	// InstalledVersion is the semantic version currently installed.
	InstalledVersion string

	// ManifestURL is where the latest release version is published.
	ManifestURL string

	// Headers contains custom HTTP headers to send with manifest requests.
	Headers map[string]string

	// Timeout is the per-request timeout duration.
	Timeout time.Duration

	// Extractor reads the latest version from the manifest.
	// If nil, the trimmed response body is used.
	Extractor VersionExtractor

	// Updatable is false for extensions with no update source. Those are
	// reported as [status.StateNotUpdatable] without any request.
	Updatable bool

	// Interval is the custom check interval for this extension.
	// If 0, the scheduler's global interval is used.
	Interval time.Duration
}

// Scheduler manages periodic update checks for multiple extensions.
//
// Scheduler checks every extension immediately on start, then ticks at the
// GCD of all extension intervals and checks only extensions that are due.
// Checks run on a bounded worker pool and their results are emitted on
// [Scheduler.Results].
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Scheduler struct {
	extensions     []ExtensionInfo
	interval       time.Duration // global default interval
	maxConcurrency int
	skip           func(name string) bool
	client         *Client
	results        chan Result
	logger         *slog.Logger
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup

	mu        sync.Mutex
	started   bool
	stopped   bool
	closeOnce sync.Once

	// per-extension timing for tick-and-check pattern
	lastCheckedAt map[string]time.Time
	baseInterval  time.Duration
}

// NewScheduler creates a new update check [Scheduler].
//
// Parameters:
//   - extensions: Extensions to check
//   - interval: Default time between checks
//   - maxConcurrency: Maximum number of concurrent manifest requests
//   - skip: Reports whether an extension must not be checked right now
//     (for example while it is updating). May be nil.
//   - logger: Logger for scheduler events (panic recovery, etc.)
func NewScheduler(extensions []ExtensionInfo, interval time.Duration, maxConcurrency int, skip func(string) bool, logger *slog.Logger) *Scheduler {
	if skip == nil {
		skip = func(string) bool { return false }
	}
	return &Scheduler{
		extensions:     extensions,
		interval:       interval,
		maxConcurrency: maxConcurrency,
		skip:           skip,
		client:         NewClient(),
		// room for the checking and outcome results of every extension
		results: make(chan Result, 2*len(extensions)),
		logger:  logger,
	}
}

// Results returns a receive-only channel that emits [Result] values.
//
// The channel is closed when the scheduler stops.
func (s *Scheduler) Results() <-chan Result {
	return s.results
}

// calculateBaseInterval determines the tick interval for the scheduler.
// Uses the GCD of all extension intervals, floored at one second.
func (s *Scheduler) calculateBaseInterval() time.Duration {
	if len(s.extensions) == 0 {
		return s.interval
	}

	result := s.intervalFor(s.extensions[0])
	for _, ext := range s.extensions[1:] {
		result = gcdDuration(result, s.intervalFor(ext))
	}

	if result < time.Second {
		result = time.Second
	}
	return result
}

func (s *Scheduler) intervalFor(ext ExtensionInfo) time.Duration {
	if ext.Interval > 0 {
		return ext.Interval
	}
	return s.interval
}

// gcdDuration calculates the greatest common divisor of two durations.
func gcdDuration(a, b time.Duration) time.Duration {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Start begins the checking loop in a background goroutine.
//
// Start is non-blocking and idempotent. If Stop was called before Start,
// Start is a no-op. If ctx is nil, context.Background() is used.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.lastCheckedAt = make(map[string]time.Time, len(s.extensions))
	s.baseInterval = s.calculateBaseInterval()

	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	checkCtx := s.ctx // capture under lock to avoid race
	s.wg.Add(1)
	s.mu.Unlock()

	emit := func(r Result) {
		select {
		case s.results <- r:
		case <-checkCtx.Done():
		}
	}

	go func() {
		defer s.wg.Done()
		defer s.closeOnce.Do(func() { close(s.results) })

		s.checkDueExtensions(checkCtx, true, emit)

		ticker := time.NewTicker(s.baseInterval)
		defer ticker.Stop()

		for {
			select {
			case <-checkCtx.Done():
				return
			case <-ticker.C:
				s.checkDueExtensions(checkCtx, false, emit)
			}
		}
	}()
}

// Stop halts the scheduler and waits for all goroutines to complete.
//
// Stop is idempotent and safe to call multiple times. Calling Stop before
// Start is a safe no-op. The results channel is closed on return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()

	if s.client != nil {
		s.client.Close()
	}

	// ensure channel is closed even if Start() was never called
	s.closeOnce.Do(func() { close(s.results) })
}

// RunOnce checks every extension once and blocks until all checks finish.
//
// emit is called for each [Result] and is serialised, so it need not be
// safe for concurrent use. RunOnce does not use the results channel and
// may be called without Start.
func (s *Scheduler) RunOnce(ctx context.Context, emit func(Result)) {
	var mu sync.Mutex
	serialised := func(r Result) {
		mu.Lock()
		defer mu.Unlock()
		emit(r)
	}

	due := make([]ExtensionInfo, 0, len(s.extensions))
	for _, ext := range s.extensions {
		if !s.skip(ext.Name) {
			due = append(due, ext)
		}
	}
	s.checkExtensions(ctx, due, serialised)
}

// checkDueExtensions checks only extensions that are due based on their intervals.
// If immediate is true, checks all extensions regardless of timing.
//
// lastCheckedAt is updated when a check STARTS, so the effective interval
// for slow manifests is the configured interval plus the request duration.
func (s *Scheduler) checkDueExtensions(ctx context.Context, immediate bool, emit func(Result)) {
	now := time.Now()
	due := make([]ExtensionInfo, 0, len(s.extensions))

	s.mu.Lock()
	for _, ext := range s.extensions {
		if s.skip(ext.Name) {
			continue
		}

		last, exists := s.lastCheckedAt[ext.Name]
		if immediate || !exists || now.Sub(last) >= s.intervalFor(ext) {
			due = append(due, ext)
			s.lastCheckedAt[ext.Name] = now
		}
	}
	s.mu.Unlock()

	if len(due) == 0 {
		return
	}

	s.checkExtensions(ctx, due, emit)
}

// checkExtensions checks a subset of extensions concurrently, respecting maxConcurrency.
func (s *Scheduler) checkExtensions(ctx context.Context, extensions []ExtensionInfo, emit func(Result)) {
	jobs := make(chan ExtensionInfo, len(extensions))

	workers := s.maxConcurrency
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ext := range jobs {
				if ctx.Err() != nil {
					return
				}
				s.checkExtension(ctx, ext, emit)
			}
		}()
	}

	for _, ext := range extensions {
		jobs <- ext
	}
	close(jobs)

	wg.Wait()
}

// checkExtension runs one check and emits its results.
func (s *Scheduler) checkExtension(ctx context.Context, ext ExtensionInfo, emit func(Result)) {
	base := Result{Name: ext.Name, InstalledVersion: ext.InstalledVersion}

	if !ext.Updatable {
		base.State = status.StateNotUpdatable
		base.CheckedAt = time.Now()
		emit(base)
		return
	}

	checking := base
	checking.State = status.StateCheckingForUpdates
	checking.CheckedAt = time.Now()
	emit(checking)

	resp := s.client.Fetch(ctx, ext.ManifestURL, ext.Headers, ext.Timeout)

	result := base
	result.Latency = resp.Latency
	result.CheckedAt = time.Now()

	switch {
	case resp.Error != nil:
		result.Error = resp.Error
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		result.Error = fmt.Errorf("manifest returned status %d", resp.StatusCode)
	default:
		result.LatestVersion, result.Error = s.safeExtract(ext.Extractor, resp.Body, resp.StatusCode)
	}

	if result.Error == nil {
		result.State, result.Error = compareVersions(ext.InstalledVersion, result.LatestVersion)
	}
	if result.Error != nil {
		result.State = status.StateError
	}

	emit(result)
}

// safeExtract calls the extractor with panic recovery.
// If the extractor panics, it logs the full stack trace with a correlation ID
// and returns an error containing the ID.
func (s *Scheduler) safeExtract(extractor VersionExtractor, body []byte, statusCode int) (version string, err error) {
	if extractor == nil {
		extractor = trimmedBody
	}

	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()

			s.logger.Error("extractor panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)

			version = ""
			err = fmt.Errorf("extractor panic (correlation_id: %s)", correlationID)
		}
	}()

	version = strings.TrimSpace(extractor(body, statusCode))
	if version == "" {
		return "", errors.New("manifest does not contain a version")
	}
	return version, nil
}

// trimmedBody treats the whole manifest body as the version string.
func trimmedBody(body []byte, _ int) string {
	return strings.TrimSpace(string(body))
}

// compareVersions maps installed and latest semantic versions to an update state.
func compareVersions(installed, latest string) (status.UpdateState, error) {
	cur, err := semver.NewVersion(installed)
	if err != nil {
		return status.StateError, fmt.Errorf("invalid installed version %q: %w", installed, err)
	}
	next, err := semver.NewVersion(latest)
	if err != nil {
		return status.StateError, fmt.Errorf("invalid latest version %q: %w", latest, err)
	}

	if next.GreaterThan(cur) {
		return status.StateUpdateAvailable, nil
	}
	return status.StateUpToDate, nil
}

package extupdate

import (
	"errors"
	"log/slog"
	"time"
)

// monitorConfig holds mutable state during Monitor construction.
type monitorConfig struct {
	extensions      []Extension
	checkInterval   time.Duration
	port            int
	maxConcurrency  int
	logger          *slog.Logger
	changeCallbacks []func(Change)
	checkCallbacks  []func(CheckResult)
	installer       Installer
}

// Option is a function that configures a [Monitor] during construction.
//
// Built-in options: [WithExtension], [WithExtensions], [WithCheckInterval],
// [WithPort], [WithMaxConcurrency], [WithLogger], [WithChangeCallback],
// [WithCheckCallback], [WithInstaller].
type Option func(*monitorConfig) error

// WithExtension adds a single [Extension] to track.
//
// Can be called multiple times. At least one extension must be configured
// for [New] to succeed.
func WithExtension(e Extension) Option {
	return func(cfg *monitorConfig) error {
		cfg.extensions = append(cfg.extensions, e)
		return nil
	}
}

// WithExtensions adds multiple [Extension] values to track.
// Equivalent to calling [WithExtension] for each.
func WithExtensions(extensions ...Extension) Option {
	return func(cfg *monitorConfig) error {
		cfg.extensions = append(cfg.extensions, extensions...)
		return nil
	}
}

// WithCheckInterval sets how often extensions are checked for updates.
//
// Extensions with their own interval ([WithInterval]) ignore this value.
// Defaults to 15 minutes if not specified.
//
// Returns an error if the duration is zero or negative.
func WithCheckInterval(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("check interval must be positive")
		}
		cfg.checkInterval = d
		return nil
	}
}

// WithPort sets the HTTP port for the status API.
// Defaults to 8080 if not specified.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *monitorConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithMaxConcurrency sets the maximum number of concurrent manifest requests.
// Defaults to 4 if not specified.
//
// Returns an error if the value is zero or negative.
func WithMaxConcurrency(n int) Option {
	return func(cfg *monitorConfig) error {
		if n <= 0 {
			return errors.New("max concurrency must be positive")
		}
		cfg.maxConcurrency = n
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Monitor.
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *monitorConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithChangeCallback registers a function called for every accepted
// status [Change], whatever caused it: a check, an update, an
// acknowledgement or a removal.
//
// Callbacks run synchronously in registration order on the goroutine that
// caused the change, so they must be non-blocking. Panics are recovered
// and logged. Nil callbacks are silently ignored.
//
// Example:
//
//	m, err := extupdate.New(
//	    extupdate.WithExtension(ext),
//	    extupdate.WithChangeCallback(func(c extupdate.Change) {
//	        if c.State == status.StateUpdateAvailable {
//	            log.Printf("%s can be updated", c.Name)
//	        }
//	    }),
//	)
func WithChangeCallback(cb func(Change)) Option {
	return func(cfg *monitorConfig) error {
		if cb == nil {
			return nil
		}
		cfg.changeCallbacks = append(cfg.changeCallbacks, cb)
		return nil
	}
}

// WithCheckCallback registers a function called for every [CheckResult],
// including results that do not change the tracked state. Use it to read
// the latest advertised version or the check latency.
//
// The same rules as [WithChangeCallback] apply: non-blocking, panics
// recovered, nil ignored.
func WithCheckCallback(cb func(CheckResult)) Option {
	return func(cfg *monitorConfig) error {
		if cb == nil {
			return nil
		}
		cfg.checkCallbacks = append(cfg.checkCallbacks, cb)
		return nil
	}
}

// WithInstaller sets the function [Monitor.Update] uses to download and
// apply an update. Without an installer, updates fail with [ErrNoInstaller].
func WithInstaller(fn Installer) Option {
	return func(cfg *monitorConfig) error {
		if fn == nil {
			return errors.New("installer cannot be nil")
		}
		cfg.installer = fn
		return nil
	}
}

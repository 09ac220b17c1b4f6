package extupdate

import (
	"errors"
	"time"
)

// extensionConfig holds mutable state during extension construction.
type extensionConfig struct {
	manifestURL  string
	headers      map[string]string
	timeout      time.Duration
	extractor    VersionExtractor
	interval     time.Duration
	notUpdatable bool
}

// ExtensionOption is a function that configures an [Extension] during construction.
//
// Built-in options: [WithManifestURL], [WithHeaders], [WithTimeout],
// [WithExtractor], [WithInterval], [NotUpdatable].
type ExtensionOption func(*extensionConfig) error

// WithManifestURL sets where the latest released version is published.
//
// The response is passed to the extension's [VersionExtractor]. Without a
// manifest URL the extension is not updatable.
//
// Returns an error if the URL is not an absolute http or https URL.
func WithManifestURL(rawURL string) ExtensionOption {
	return func(cfg *extensionConfig) error {
		if err := validateManifestURL(rawURL); err != nil {
			return err
		}
		cfg.manifestURL = rawURL
		return nil
	}
}

// WithHeaders adds custom HTTP headers to manifest requests.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
//
// Example:
//
//	ext, err := extupdate.NewExtension("private-ext", "0.3.0",
//	    extupdate.WithManifestURL(url),
//	    extupdate.WithHeaders("Authorization", "Bearer token123"),
//	)
func WithHeaders(keyValues ...string) ExtensionOption {
	return func(cfg *extensionConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithTimeout sets the manifest request timeout.
// A check that times out reports the error state.
// Defaults to 10 seconds if not specified.
func WithTimeout(d time.Duration) ExtensionOption {
	return func(cfg *extensionConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithExtractor sets a custom [VersionExtractor] for the manifest.
// If not specified, [DefaultExtractor] is used.
func WithExtractor(e VersionExtractor) ExtensionOption {
	return func(cfg *extensionConfig) error {
		cfg.extractor = e
		return nil
	}
}

// WithInterval sets a custom check interval for this extension, overriding
// the global interval from [WithCheckInterval].
//
// The interval must be between 1 second and 24 hours. It is measured from
// when a check starts, not when it completes.
func WithInterval(d time.Duration) ExtensionOption {
	return func(cfg *extensionConfig) error {
		if d < time.Second {
			return errors.New("interval must be at least 1 second")
		}
		if d > 24*time.Hour {
			return errors.New("interval must not exceed 24 hours")
		}
		cfg.interval = d
		return nil
	}
}

// NotUpdatable marks the extension as having no update source, for example
// because it was linked from a local directory. It is reported as not
// updatable even if a manifest URL is set.
func NotUpdatable() ExtensionOption {
	return func(cfg *extensionConfig) error {
		cfg.notUpdatable = true
		return nil
	}
}

package extupdate

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Masterminds/semver/v3"
)

const defaultManifestTimeout = 10 * time.Second

// Extension is an installed add-on whose update lifecycle is tracked by name.
//
// Extension is immutable after creation via [NewExtension]. All fields are
// private with getter methods that return copies of mutable data (maps).
//
// An extension is updatable when it has a manifest URL (see
// [WithManifestURL]) and [NotUpdatable] was not applied. Extensions that are
// not updatable are reported as not updatable and never fetched.
type Extension struct {
	name        string
	version     string
	manifestURL string
	headers     map[string]string
	timeout     time.Duration
	extractor   VersionExtractor
	interval    time.Duration
	updatable   bool
}

// Name returns the extension's unique name.
func (e Extension) Name() string {
	return e.name
}

// Version returns the installed version.
func (e Extension) Version() string {
	return e.version
}

// ManifestURL returns the URL the latest version is read from.
// Empty for extensions without an update source.
func (e Extension) ManifestURL() string {
	return e.manifestURL
}

// Headers returns a copy of the custom HTTP headers sent with manifest requests.
func (e Extension) Headers() map[string]string {
	return copyMap(e.headers)
}

// Timeout returns the manifest request timeout.
// Defaults to 10 seconds if not explicitly set via [WithTimeout].
func (e Extension) Timeout() time.Duration {
	return e.timeout
}

// Extractor returns the extension's [VersionExtractor].
// Returns nil if none was set, in which case [DefaultExtractor] is used.
func (e Extension) Extractor() VersionExtractor {
	return e.extractor
}

// Interval returns the extension's custom check interval, or 0 when the
// global interval from [WithCheckInterval] applies.
func (e Extension) Interval() time.Duration {
	return e.interval
}

// Updatable reports whether the extension has an update source.
func (e Extension) Updatable() bool {
	return e.updatable
}

// NewExtension creates an [Extension] with the given name, installed
// version and options.
//
// Returns an error if the name is empty, or if the extension is updatable
// and version is not a valid semantic version.
//
// Example:
//
//	ext, err := extupdate.NewExtension("code-review", "1.4.2",
//	    extupdate.WithManifestURL("https://example.com/code-review/latest.json"),
//	    extupdate.WithTimeout(5 * time.Second),
//	)
func NewExtension(name, version string, opts ...ExtensionOption) (Extension, error) {
	if name == "" {
		return Extension{}, errors.New("extension name cannot be empty")
	}

	cfg := &extensionConfig{
		headers: make(map[string]string),
		timeout: defaultManifestTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Extension{}, err
		}
	}

	updatable := cfg.manifestURL != "" && !cfg.notUpdatable
	if updatable {
		if _, err := semver.NewVersion(version); err != nil {
			return Extension{}, fmt.Errorf("extension %q: invalid version %q: %w", name, version, err)
		}
	}

	return Extension{
		name:        name,
		version:     version,
		manifestURL: cfg.manifestURL,
		headers:     cfg.headers,
		timeout:     cfg.timeout,
		extractor:   cfg.extractor,
		interval:    cfg.interval,
		updatable:   updatable,
	}, nil
}

// validateManifestURL checks that raw is an absolute http or https URL.
func validateManifestURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return errors.New("invalid manifest URL: " + err.Error())
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("manifest URL must have an http:// or https:// scheme")
	}
	return nil
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

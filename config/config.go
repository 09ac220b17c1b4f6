// Package config provides YAML configuration parsing for extupdate.
//
// This package enables running extupdate as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	port: 8080
//	check_interval: 30m
//
//	extensions:
//	  - name: code-review
//	    version: 1.4.2
//	    manifest_url: https://example.com/code-review/latest.json
//	    extractor: json:version
//	    install_command: ["code-review", "self-update"]
//
//	  - name: linter
//	    version: 0.9.0
//	    manifest_url: https://example.com/linter/VERSION
//	    extractor: text
//	    install_url: https://example.com/linter/{version}/linter-linux-amd64
//	    install_path: /usr/local/lib/extensions/linter
//
//	  - name: local-tools
//	    version: dev
//	    updatable: false
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort           = 8080
	defaultCheckInterval  = 15 * time.Minute
	defaultMaxConcurrency = 4

	// minCheckInterval stops a config from hammering release servers.
	minCheckInterval = 1 * time.Second
	maxInterval      = 24 * time.Hour
)

// Config is the root configuration structure for extupdate.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// CheckInterval is the default time between update checks.
	// Accepts duration strings like "30m", "6h". Defaults to 15m.
	CheckInterval Duration `yaml:"check_interval"`

	// MaxConcurrency limits simultaneous manifest requests. Defaults to 4.
	MaxConcurrency int `yaml:"max_concurrency"`

	// Extensions lists the installed extensions to track.
	Extensions []ExtensionConfig `yaml:"extensions"`
}

// ExtensionConfig defines one installed extension.
type ExtensionConfig struct {
	// Name uniquely identifies the extension.
	Name string `yaml:"name"`

	// Version is the installed version. Must be a semantic version when
	// the extension is updatable.
	Version string `yaml:"version"`

	// ManifestURL is where the latest version is published.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	ManifestURL string `yaml:"manifest_url"`

	// Headers are custom HTTP headers sent with manifest requests.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Timeout is the manifest request timeout. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// Interval overrides check_interval for this extension.
	// Must be between 1s and 24h.
	Interval Duration `yaml:"interval"`

	// Updatable may be set to false to report the extension as not
	// updatable even when a manifest URL is present. Extensions without a
	// manifest URL are never updatable.
	Updatable *bool `yaml:"updatable"`

	// Extractor determines how the latest version is read from the manifest.
	// Can be shorthand ("json:version", "regex:v(\\S+)", "text") or structured.
	Extractor ExtractorConfig `yaml:"extractor"`

	// InstallCommand is run to apply an update. The first element is the
	// program, the rest its arguments. Without it, update requests for
	// this extension fail.
	InstallCommand []string `yaml:"install_command"`

	// InstallURL is downloaded to replace the file at InstallPath. The
	// placeholder {version} is replaced with the latest version. Cannot be
	// combined with InstallCommand.
	InstallURL string `yaml:"install_url"`

	// InstallPath is the extension binary replaced by InstallURL.
	InstallPath string `yaml:"install_path"`
}

// IsUpdatable reports whether the extension has an update source that has
// not been switched off.
func (e ExtensionConfig) IsUpdatable() bool {
	if e.ManifestURL == "" {
		return false
	}
	return e.Updatable == nil || *e.Updatable
}

// ExtractorConfig specifies how to read the latest version from a manifest.
//
// It supports two formats in YAML:
//
// Shorthand string:
//
//	extractor: json:version
//	extractor: json:release.tag
//	extractor: regex:"tag_name":\s*"v?([^"]+)"
//	extractor: text
//	extractor: default
//
// Structured object:
//
//	extractor:
//	  type: regex
//	  pattern: 'latest:\s*(\S+)'
type ExtractorConfig struct {
	// Type is the extractor type: "default", "json", "regex", "text".
	Type string

	// Path is the JSON field path (for type: json).
	Path string

	// Pattern is the regular expression (for type: regex). Its first
	// capture group is the version.
	Pattern string
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler for ExtractorConfig.
func (e *ExtractorConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		return e.parseShorthand(s)
	}

	if node.Kind == yaml.MappingNode {
		// temporary struct to avoid infinite recursion
		var raw struct {
			Type    string `yaml:"type"`
			Path    string `yaml:"path"`
			Pattern string `yaml:"pattern"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		e.Type = raw.Type
		e.Path = raw.Path
		e.Pattern = raw.Pattern
		return nil
	}

	return fmt.Errorf("extractor must be a string or object, got %v", node.Kind)
}

// parseShorthand parses extractor shorthand syntax.
//
// Supported formats:
//   - "default" → use default extractor
//   - "text" → whole body is the version
//   - "json:path" → read a JSON field
//   - "regex:pattern" → first capture group of pattern
func (e *ExtractorConfig) parseShorthand(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	switch s {
	case "default", "text":
		e.Type = s
		return nil
	}

	typ, value, ok := strings.Cut(s, ":")
	if !ok {
		return fmt.Errorf("unknown extractor %q (expected 'default', 'text', 'json:path', or 'regex:pattern')", s)
	}

	e.Type = typ
	switch typ {
	case "json":
		e.Path = value
	case "regex":
		e.Pattern = value
	default:
		return fmt.Errorf("unknown extractor type %q", typ)
	}
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in manifest URLs and header values.
// Defaults are applied for Port (8080), CheckInterval (15m) and
// MaxConcurrency (4).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = Duration(defaultCheckInterval)
	}
	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = defaultMaxConcurrency
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Updatable returns the number of extensions that are checked against a manifest.
func (c *Config) Updatable() int {
	n := 0
	for _, ext := range c.Extensions {
		if ext.IsUpdatable() {
			n++
		}
	}
	return n
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.CheckInterval.Duration() < minCheckInterval {
		return fmt.Errorf("check_interval must be at least %s, got %s", minCheckInterval, c.CheckInterval.Duration())
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency cannot be negative, got %d", c.MaxConcurrency)
	}

	if len(c.Extensions) == 0 {
		return errors.New("at least one extension must be defined")
	}

	seen := make(map[string]int, len(c.Extensions))
	for i := range c.Extensions {
		ext := &c.Extensions[i]

		if ext.Name == "" {
			return fmt.Errorf("extensions[%d]: name is required", i)
		}
		if first, dup := seen[ext.Name]; dup {
			return fmt.Errorf("extensions[%d] (%s): duplicate name, first defined at extensions[%d]", i, ext.Name, first)
		}
		seen[ext.Name] = i

		if err := ext.expandAndValidate(); err != nil {
			return fmt.Errorf("extensions[%d] (%s): %w", i, ext.Name, err)
		}
	}

	return nil
}

// expandAndValidate checks a single extension entry.
func (e *ExtensionConfig) expandAndValidate() error {
	if e.ManifestURL != "" {
		expanded, err := expandEnvVars(e.ManifestURL)
		if err != nil {
			return fmt.Errorf("manifest_url: %w", err)
		}
		e.ManifestURL = expanded

		parsedURL, err := url.Parse(e.ManifestURL)
		if err != nil {
			return fmt.Errorf("invalid manifest_url: %w", err)
		}
		if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			return fmt.Errorf("manifest_url scheme must be http or https, got %q", parsedURL.Scheme)
		}
	}

	if e.IsUpdatable() {
		if e.Version == "" {
			return errors.New("version is required for updatable extensions")
		}
		if _, err := semver.NewVersion(e.Version); err != nil {
			return fmt.Errorf("version %q is not a semantic version: %w", e.Version, err)
		}
	}

	for k, v := range e.Headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("headers[%s]: %w", k, err)
		}
		e.Headers[k] = expanded
	}

	if e.Timeout != 0 && e.Timeout.Duration() < time.Second {
		return fmt.Errorf("timeout must be at least 1s if specified, got %s", e.Timeout.Duration())
	}

	if e.Interval != 0 {
		if e.Interval.Duration() < minCheckInterval {
			return fmt.Errorf("interval must be at least %s, got %s", minCheckInterval, e.Interval.Duration())
		}
		if e.Interval.Duration() > maxInterval {
			return fmt.Errorf("interval must not exceed %s, got %s", maxInterval, e.Interval.Duration())
		}
	}

	if len(e.InstallCommand) > 0 && strings.TrimSpace(e.InstallCommand[0]) == "" {
		return errors.New("install_command program cannot be empty")
	}

	if err := e.validateDownload(); err != nil {
		return err
	}

	return validateExtractor(e.Extractor)
}

// validateDownload checks install_url and install_path.
func (e *ExtensionConfig) validateDownload() error {
	if e.InstallURL == "" && e.InstallPath == "" {
		return nil
	}
	if len(e.InstallCommand) > 0 {
		return errors.New("install_command and install_url are mutually exclusive")
	}
	if e.InstallURL == "" || e.InstallPath == "" {
		return errors.New("install_url and install_path must be set together")
	}

	expanded, err := expandEnvVars(e.InstallURL)
	if err != nil {
		return fmt.Errorf("install_url: %w", err)
	}
	e.InstallURL = expanded

	parsedURL, err := url.Parse(e.InstallURL)
	if err != nil {
		return fmt.Errorf("invalid install_url: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("install_url scheme must be http or https, got %q", parsedURL.Scheme)
	}
	return nil
}

// validateExtractor validates an extractor configuration.
func validateExtractor(e ExtractorConfig) error {
	switch e.Type {
	case "", "default", "text":
		return nil
	case "json":
		if e.Path == "" {
			return errors.New("extractor type 'json' requires a path")
		}
	case "regex":
		if e.Pattern == "" {
			return errors.New("extractor type 'regex' requires a pattern")
		}
		re, err := regexp.Compile(e.Pattern)
		if err != nil {
			return fmt.Errorf("invalid extractor pattern: %w", err)
		}
		if re.NumSubexp() < 1 {
			return errors.New("extractor pattern must contain a capture group")
		}
	default:
		return fmt.Errorf("unknown extractor type %q", e.Type)
	}
	return nil
}

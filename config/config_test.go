package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestParse_MinimalConfig(t *testing.T) {
	yaml := `
extensions:
  - name: local-tools
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.CheckInterval.Duration() != 15*time.Minute {
		t.Errorf("CheckInterval = %v, want 15m", cfg.CheckInterval.Duration())
	}
	if cfg.MaxConcurrency != 4 {
		t.Errorf("MaxConcurrency = %d, want 4", cfg.MaxConcurrency)
	}
	if len(cfg.Extensions) != 1 {
		t.Fatalf("len(Extensions) = %d, want 1", len(cfg.Extensions))
	}
	if cfg.Extensions[0].IsUpdatable() {
		t.Error("IsUpdatable() = true, want false without manifest_url")
	}
}

func TestParse_FullExtensionConfig(t *testing.T) {
	yaml := `
port: 9090
check_interval: 1h
max_concurrency: 2

extensions:
  - name: code-review
    version: 1.4.2
    manifest_url: https://example.com/code-review/latest.json
    timeout: 5s
    interval: 6h
    headers:
      Authorization: Bearer token123
    extractor: json:release.version
    install_command: ["code-review", "self-update", "--yes"]
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.CheckInterval.Duration() != time.Hour {
		t.Errorf("CheckInterval = %v, want 1h", cfg.CheckInterval.Duration())
	}
	if cfg.MaxConcurrency != 2 {
		t.Errorf("MaxConcurrency = %d, want 2", cfg.MaxConcurrency)
	}

	ext := cfg.Extensions[0]
	if ext.Name != "code-review" || ext.Version != "1.4.2" {
		t.Errorf("Name/Version = %q/%q", ext.Name, ext.Version)
	}
	if ext.ManifestURL != "https://example.com/code-review/latest.json" {
		t.Errorf("ManifestURL = %q", ext.ManifestURL)
	}
	if ext.Timeout.Duration() != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", ext.Timeout.Duration())
	}
	if ext.Interval.Duration() != 6*time.Hour {
		t.Errorf("Interval = %v, want 6h", ext.Interval.Duration())
	}
	if ext.Headers["Authorization"] != "Bearer token123" {
		t.Errorf("Headers[Authorization] = %q", ext.Headers["Authorization"])
	}
	if ext.Extractor.Type != "json" || ext.Extractor.Path != "release.version" {
		t.Errorf("Extractor = %+v", ext.Extractor)
	}
	if strings.Join(ext.InstallCommand, " ") != "code-review self-update --yes" {
		t.Errorf("InstallCommand = %v", ext.InstallCommand)
	}
	if !ext.IsUpdatable() {
		t.Error("IsUpdatable() = false, want true")
	}
	if cfg.Updatable() != 1 {
		t.Errorf("Updatable() = %d, want 1", cfg.Updatable())
	}
}

func TestParse_UpdatableFalse(t *testing.T) {
	yaml := `
extensions:
  - name: linked
    version: not-semver
    manifest_url: https://example.com/latest
    updatable: false
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Extensions[0].IsUpdatable() {
		t.Error("IsUpdatable() = true, want false")
	}
}

func TestParse_ExtractorShorthand(t *testing.T) {
	tests := []struct {
		name        string
		extractor   string
		wantType    string
		wantPath    string
		wantPattern string
	}{
		{"default", "default", "default", "", ""},
		{"text", "text", "text", "", ""},
		{"json", "json:version", "json", "version", ""},
		{"json nested", "json:release.version", "json", "release.version", ""},
		{"regex", `'regex:latest:\s*(\S+)'`, "regex", "", `latest:\s*(\S+)`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yaml := `
extensions:
  - name: ext
    version: 1.0.0
    manifest_url: https://example.com
    extractor: ` + tt.extractor + "\n"

			cfg, err := Parse([]byte(yaml))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}

			got := cfg.Extensions[0].Extractor
			if got.Type != tt.wantType || got.Path != tt.wantPath || got.Pattern != tt.wantPattern {
				t.Errorf("Extractor = %+v, want {%s %s %s}", got, tt.wantType, tt.wantPath, tt.wantPattern)
			}
		})
	}
}

func TestParse_ExtractorStructured(t *testing.T) {
	yaml := `
extensions:
  - name: ext
    version: 1.0.0
    manifest_url: https://example.com
    extractor:
      type: regex
      pattern: '"tag_name":\s*"v?([^"]+)"'
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	got := cfg.Extensions[0].Extractor
	if got.Type != "regex" || got.Pattern != `"tag_name":\s*"v?([^"]+)"` {
		t.Errorf("Extractor = %+v", got)
	}
}

func TestParse_EnvVarSubstitution(t *testing.T) {
	t.Setenv("RELEASE_HOST", "releases.example.com")
	t.Setenv("RELEASE_TOKEN", "secret")

	yaml := `
extensions:
  - name: ext
    version: 1.0.0
    manifest_url: https://${RELEASE_HOST}/ext/latest
    headers:
      Authorization: Bearer ${RELEASE_TOKEN}
      X-Channel: ${CHANNEL:-stable}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	ext := cfg.Extensions[0]
	if ext.ManifestURL != "https://releases.example.com/ext/latest" {
		t.Errorf("ManifestURL = %q", ext.ManifestURL)
	}
	if ext.Headers["Authorization"] != "Bearer secret" {
		t.Errorf("Headers[Authorization] = %q", ext.Headers["Authorization"])
	}
	if ext.Headers["X-Channel"] != "stable" {
		t.Errorf("Headers[X-Channel] = %q, want %q", ext.Headers["X-Channel"], "stable")
	}
}

func TestParse_EnvVarMissing(t *testing.T) {
	yaml := `
extensions:
  - name: ext
    version: 1.0.0
    manifest_url: https://${EXTUPDATE_TEST_UNSET_HOST}/latest
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for missing env var")
	}
	if !strings.Contains(err.Error(), "EXTUPDATE_TEST_UNSET_HOST") {
		t.Errorf("error = %q, want it to name the variable", err)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		wantErrLike string
	}{
		{
			name:        "no extensions",
			yaml:        `port: 8080`,
			wantErrLike: "at least one extension",
		},
		{
			name: "missing name",
			yaml: `
extensions:
  - version: 1.0.0
`,
			wantErrLike: "extensions[0]: name is required",
		},
		{
			name: "duplicate name",
			yaml: `
extensions:
  - name: ext
  - name: ext
`,
			wantErrLike: "extensions[1] (ext): duplicate name",
		},
		{
			name: "missing version",
			yaml: `
extensions:
  - name: ext
    manifest_url: https://example.com
`,
			wantErrLike: "version is required",
		},
		{
			name: "invalid version",
			yaml: `
extensions:
  - name: ext
    version: latest
    manifest_url: https://example.com
`,
			wantErrLike: "not a semantic version",
		},
		{
			name: "manifest without scheme",
			yaml: `
extensions:
  - name: ext
    version: 1.0.0
    manifest_url: example.com/latest
`,
			wantErrLike: "scheme must be http or https",
		},
		{
			name: "manifest ftp scheme",
			yaml: `
extensions:
  - name: ext
    version: 1.0.0
    manifest_url: ftp://example.com/latest
`,
			wantErrLike: "scheme must be http or https",
		},
		{
			name: "port out of range",
			yaml: `
port: 70000
extensions:
  - name: ext
`,
			wantErrLike: "port must be between",
		},
		{
			name: "check interval too short",
			yaml: `
check_interval: 100ms
extensions:
  - name: ext
`,
			wantErrLike: "check_interval must be at least",
		},
		{
			name: "negative concurrency",
			yaml: `
max_concurrency: -1
extensions:
  - name: ext
`,
			wantErrLike: "max_concurrency cannot be negative",
		},
		{
			name: "timeout too short",
			yaml: `
extensions:
  - name: ext
    timeout: 500ms
`,
			wantErrLike: "timeout must be at least 1s",
		},
		{
			name: "interval too short",
			yaml: `
extensions:
  - name: ext
    interval: 500ms
`,
			wantErrLike: "interval must be at least",
		},
		{
			name: "interval too long",
			yaml: `
extensions:
  - name: ext
    interval: 48h
`,
			wantErrLike: "interval must not exceed",
		},
		{
			name: "json extractor without path",
			yaml: `
extensions:
  - name: ext
    extractor:
      type: json
`,
			wantErrLike: "requires a path",
		},
		{
			name: "regex without capture group",
			yaml: `
extensions:
  - name: ext
    extractor: 'regex:\d+'
`,
			wantErrLike: "capture group",
		},
		{
			name: "invalid regex",
			yaml: `
extensions:
  - name: ext
    extractor: 'regex:(unclosed'
`,
			wantErrLike: "invalid extractor pattern",
		},
		{
			name: "unknown extractor shorthand",
			yaml: `
extensions:
  - name: ext
    extractor: xml:version
`,
			wantErrLike: "unknown extractor type",
		},
		{
			name: "unknown structured extractor",
			yaml: `
extensions:
  - name: ext
    extractor:
      type: xml
`,
			wantErrLike: "unknown extractor type",
		},
		{
			name: "empty install program",
			yaml: `
extensions:
  - name: ext
    install_command: ["", "--flag"]
`,
			wantErrLike: "install_command program cannot be empty",
		},
		{
			name: "install url without path",
			yaml: `
extensions:
  - name: ext
    install_url: https://example.com/ext/{version}
`,
			wantErrLike: "install_url and install_path must be set together",
		},
		{
			name: "install url and command",
			yaml: `
extensions:
  - name: ext
    install_command: ["ext", "upgrade"]
    install_url: https://example.com/ext/{version}
    install_path: /opt/ext
`,
			wantErrLike: "mutually exclusive",
		},
		{
			name: "install url bad scheme",
			yaml: `
extensions:
  - name: ext
    install_url: ftp://example.com/ext
    install_path: /opt/ext
`,
			wantErrLike: "install_url scheme must be http or https",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErrLike) {
				t.Errorf("Parse() error = %q, want containing %q", err.Error(), tt.wantErrLike)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("extensions: [unclosed"))
	if err == nil {
		t.Fatal("Parse() expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "failed to parse YAML") {
		t.Errorf("error = %q", err)
	}
}

func TestParse_InvalidDuration(t *testing.T) {
	yaml := `
check_interval: soon
extensions:
  - name: ext
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("error = %q", err)
	}
}

func TestParse_InstallURLExpandsEnv(t *testing.T) {
	t.Setenv("RELEASE_HOST", "releases.example.com")

	cfg, err := Parse([]byte(`
extensions:
  - name: ext
    install_url: https://${RELEASE_HOST}/ext/{version}/ext
    install_path: /opt/ext
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := "https://releases.example.com/ext/{version}/ext"
	if got := cfg.Extensions[0].InstallURL; got != want {
		t.Errorf("InstallURL = %q, want %q", got, want)
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"30s", 30 * time.Second, false},
		{"15m", 15 * time.Minute, false},
		{"1h30m", 90 * time.Minute, false},
		{"bogus", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var d Duration
			err := yaml.Unmarshal([]byte(tt.input), &d)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && d.Duration() != tt.want {
				t.Errorf("Duration() = %v, want %v", d.Duration(), tt.want)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "value")
	t.Setenv("EMPTY_VAR", "")

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"no vars", "plain text", "plain text", false},
		{"simple var", "${TEST_VAR}", "value", false},
		{"var in text", "prefix ${TEST_VAR} suffix", "prefix value suffix", false},
		{"multiple vars", "${TEST_VAR}-${TEST_VAR}", "value-value", false},
		{"with default (var set)", "${TEST_VAR:-default}", "value", false},
		{"with default (var unset)", "${UNSET:-default}", "default", false},
		{"missing required", "${MISSING}", "", true},
		{"empty default (var unset)", "${UNSET:-}", "", false},
		{"set but empty var", "${EMPTY_VAR}", "", false},
		{"set but empty with default", "${EMPTY_VAR:-fallback}", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandEnvVars(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expandEnvVars() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expandEnvVars() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("expandEnvVars() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extupdate.yaml")
	content := `
extensions:
  - name: ext
    version: 2.0.0
    manifest_url: https://example.com
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Extensions[0].Version != "2.0.0" {
		t.Errorf("Version = %q, want %q", cfg.Extensions[0].Version, "2.0.0")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("error = %q", err)
	}
}

package config

import (
	"sort"

	"github.com/jpalmerr/extupdate"
)

// BuildExtensions converts parsed configuration into SDK Extension values,
// in file order.
func BuildExtensions(cfg *Config) ([]extupdate.Extension, error) {
	extensions := make([]extupdate.Extension, 0, len(cfg.Extensions))

	for _, ec := range cfg.Extensions {
		ext, err := buildExtension(ec)
		if err != nil {
			return nil, err
		}
		extensions = append(extensions, ext)
	}

	return extensions, nil
}

// BuildOptions returns the [extupdate.Option] values described by cfg:
// its extensions, port, check interval and concurrency limit.
func BuildOptions(cfg *Config) ([]extupdate.Option, error) {
	extensions, err := BuildExtensions(cfg)
	if err != nil {
		return nil, err
	}

	return []extupdate.Option{
		extupdate.WithExtensions(extensions...),
		extupdate.WithPort(cfg.Port),
		extupdate.WithCheckInterval(cfg.CheckInterval.Duration()),
		extupdate.WithMaxConcurrency(cfg.MaxConcurrency),
	}, nil
}

// InstallSpec describes how one extension is updated. Exactly one of
// Command or URL is set.
type InstallSpec struct {
	// Command is the program and arguments to run.
	Command []string

	// URL is downloaded over Path. It may contain {version}.
	URL  string
	Path string
}

// InstallSpecs maps extension names to how they are installed.
// Extensions with neither install_command nor install_url are left out.
func InstallSpecs(cfg *Config) map[string]InstallSpec {
	specs := make(map[string]InstallSpec)
	for _, ec := range cfg.Extensions {
		switch {
		case len(ec.InstallCommand) > 0:
			specs[ec.Name] = InstallSpec{Command: append([]string(nil), ec.InstallCommand...)}
		case ec.InstallURL != "":
			specs[ec.Name] = InstallSpec{URL: ec.InstallURL, Path: ec.InstallPath}
		}
	}
	return specs
}

// buildExtension converts a single ExtensionConfig to an SDK Extension.
func buildExtension(ec ExtensionConfig) (extupdate.Extension, error) {
	var opts []extupdate.ExtensionOption

	if ec.ManifestURL != "" {
		opts = append(opts, extupdate.WithManifestURL(ec.ManifestURL))
	}

	if !ec.IsUpdatable() {
		opts = append(opts, extupdate.NotUpdatable())
	}

	if ec.Timeout != 0 {
		opts = append(opts, extupdate.WithTimeout(ec.Timeout.Duration()))
	}

	if len(ec.Headers) > 0 {
		opts = append(opts, extupdate.WithHeaders(mapToKeyValuePairs(ec.Headers)...))
	}

	extractor, err := buildExtractor(ec.Extractor)
	if err != nil {
		return extupdate.Extension{}, err
	}
	if extractor != nil {
		opts = append(opts, extupdate.WithExtractor(extractor))
	}

	if ec.Interval != 0 {
		opts = append(opts, extupdate.WithInterval(ec.Interval.Duration()))
	}

	return extupdate.NewExtension(ec.Name, ec.Version, opts...)
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}

// buildExtractor converts ExtractorConfig to a VersionExtractor.
// Returns nil for default/empty extractors (SDK uses DefaultExtractor).
func buildExtractor(ec ExtractorConfig) (extupdate.VersionExtractor, error) {
	switch ec.Type {
	case "json":
		return extupdate.JSONFieldExtractor(ec.Path), nil
	case "regex":
		return extupdate.RegexExtractor(ec.Pattern)
	case "text":
		return extupdate.PlainTextExtractor, nil
	default:
		return nil, nil
	}
}

package extupdate

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// JSONFieldExtractor returns a [VersionExtractor] that reads the latest
// version from a JSON field using dot notation to navigate nested objects.
//
// For example, "release.version" navigates to {"release": {"version": "2.1.0"}}.
// Numeric values are formatted without a trailing ".0" so a bare 3 reads as "3".
//
// Returns "" when the response is not 2xx, the body is not JSON, or the
// field is missing or not a string or number.
//
// Example:
//
//	// For response: {"release": {"version": "2.1.0"}}
//	extractor := extupdate.JSONFieldExtractor("release.version")
func JSONFieldExtractor(path string) VersionExtractor {
	parts := strings.Split(path, ".")

	return func(body []byte, statusCode int) string {
		if !isSuccess(statusCode) {
			return ""
		}

		var data interface{}
		if err := json.Unmarshal(body, &data); err != nil {
			return ""
		}

		return strings.TrimSpace(extractJSONPath(data, parts))
	}
}

// extractJSONPath walks a JSON structure using dot notation parts.
func extractJSONPath(data interface{}, parts []string) string {
	current := data

	for _, part := range parts {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return ""
		}
		current, ok = obj[part]
		if !ok {
			return ""
		}
	}

	switch v := current.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// RegexExtractor returns a [VersionExtractor] that matches the response body
// against a regular expression and returns its first capture group.
//
// Returns an error if the pattern is invalid or has no capture group.
//
// Example:
//
//	// Match "latest: v2.3.1" and capture "2.3.1"
//	extractor, err := extupdate.RegexExtractor(`latest:\s*v?(\S+)`)
func RegexExtractor(pattern string) (VersionExtractor, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	if re.NumSubexp() < 1 {
		return nil, errors.New("regex pattern must contain a capture group")
	}

	return func(body []byte, statusCode int) string {
		if !isSuccess(statusCode) {
			return ""
		}
		matches := re.FindSubmatch(body)
		if len(matches) < 2 {
			return ""
		}
		return strings.TrimSpace(string(matches[1]))
	}, nil
}

// MustRegexExtractor is like [RegexExtractor] but panics if the pattern
// is invalid.
//
// Use this for compile-time constant patterns where you want to fail fast
// on invalid regex. For runtime patterns, use [RegexExtractor] instead.
//
// Example:
//
//	var tagExtractor = extupdate.MustRegexExtractor(`"tag_name":\s*"v?([^"]+)"`)
func MustRegexExtractor(pattern string) VersionExtractor {
	extractor, err := RegexExtractor(pattern)
	if err != nil {
		panic("extupdate: invalid regex pattern: " + err.Error())
	}
	return extractor
}

// PlainTextExtractor is a [VersionExtractor] for manifests whose whole body
// is the version, such as a "latest" file containing "1.8.0\n".
//
// Returns "" for non-2xx responses and for bodies that are not a single
// version-like token once surrounding whitespace is trimmed.
var PlainTextExtractor VersionExtractor = func(body []byte, statusCode int) string {
	if !isSuccess(statusCode) {
		return ""
	}
	v := strings.TrimSpace(string(body))
	if !versionToken.MatchString(v) {
		return ""
	}
	return v
}

// versionToken matches the characters a semantic version may contain.
var versionToken = regexp.MustCompile(`^[vV]?[0-9A-Za-z.+-]+$`)

// FirstMatch returns a [VersionExtractor] that tries multiple extractors in
// order, returning the first non-empty version.
//
// Example:
//
//	// Try JSON field first, fall back to a plain text body
//	extractor := extupdate.FirstMatch(
//	    extupdate.JSONFieldExtractor("version"),
//	    extupdate.PlainTextExtractor,
//	)
func FirstMatch(extractors ...VersionExtractor) VersionExtractor {
	return func(body []byte, statusCode int) string {
		for _, extractor := range extractors {
			if v := extractor(body, statusCode); v != "" {
				return v
			}
		}
		return ""
	}
}

// DefaultExtractor is used for extensions without a custom extractor.
// It reads a top-level "version" JSON field and falls back to
// [PlainTextExtractor].
var DefaultExtractor = FirstMatch(JSONFieldExtractor("version"), PlainTextExtractor)

func isSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

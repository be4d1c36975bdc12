package matching

import (
	"net/http"
	"net/url"
	"strings"
)

// MatchHeaderPattern checks if a header matches a pattern.
// Header names are case-insensitive. Supports exact values and simple
// prefix (value*), suffix (*value) and contains (*value*) patterns.
func MatchHeaderPattern(name, pattern string, headers http.Header) bool {
	values, ok := headers[http.CanonicalHeaderKey(name)]
	if !ok || len(values) == 0 {
		return false
	}

	for _, actual := range values {
		if matchValuePattern(pattern, actual) {
			return true
		}
	}
	return false
}

// MatchHeaders checks that every expected header matches.
func MatchHeaders(expected map[string]string, headers http.Header) bool {
	for name, pattern := range expected {
		if !MatchHeaderPattern(name, pattern, headers) {
			return false
		}
	}
	return true
}

func matchValuePattern(pattern, actual string) bool {
	if !strings.Contains(pattern, "*") {
		return actual == pattern
	}
	if pattern == "*" {
		return true
	}

	switch {
	case strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*"):
		return strings.Contains(actual, strings.Trim(pattern, "*"))
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(actual, strings.TrimSuffix(pattern, "*"))
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(actual, strings.TrimPrefix(pattern, "*"))
	}
	return actual == pattern
}

// MatchValues checks that each expected key is present in values with the
// exact expected value. Used for query parameters and form fields.
func MatchValues(expected map[string]string, values url.Values) bool {
	for key, want := range expected {
		got, ok := values[key]
		if !ok {
			return false
		}
		found := false
		for _, v := range got {
			if v == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

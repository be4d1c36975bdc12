package matching

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MatchPath reports whether the request path matches the pattern.
// Supports:
//   - Exact match: "/api/users" matches "/api/users"
//   - Trailing wildcard: "/api/users/*" matches "/api/users/123" and "/api/users"
//   - Wildcard: "/api/*/items" matches "/api/users/items"
//   - Named segments: "/api/users/{id}" matches "/api/users/123"
func MatchPath(pattern, path string) bool {
	if pattern == path {
		return true
	}

	if strings.Contains(pattern, "{") && strings.Contains(pattern, "}") {
		if matchNamedParams(pattern, path) {
			return true
		}
	}

	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.Contains(pattern, "*") {
		return matchWildcard(pattern, path)
	}

	return false
}

// matchNamedParams checks if path matches a pattern with named segments.
// Example: "/users/{id}" matches "/users/123"
func matchNamedParams(pattern, path string) bool {
	patternParts := strings.Split(strings.Trim(pattern, "/"), "/")
	pathParts := strings.Split(strings.Trim(path, "/"), "/")

	if len(patternParts) != len(pathParts) {
		return false
	}

	for i, patternPart := range patternParts {
		if strings.HasPrefix(patternPart, "{") && strings.HasSuffix(patternPart, "}") {
			if pathParts[i] == "" {
				return false
			}
			continue
		}
		if patternPart != pathParts[i] {
			return false
		}
	}

	return true
}

// matchWildcard performs simple wildcard matching where * matches any
// sequence of characters.
func matchWildcard(pattern, path string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == path
	}

	if !strings.HasPrefix(path, parts[0]) {
		return false
	}
	pos := len(parts[0])

	last := parts[len(parts)-1]
	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}
		idx := strings.Index(path[pos:], part)
		if idx == -1 {
			return false
		}
		pos += idx + len(part)
	}

	// The final literal anchors at the end of the path.
	return strings.HasSuffix(path, last) && len(path)-len(last) >= pos
}

// compilePathPattern compiles an RE2 path pattern.
func compilePathPattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid path pattern %q: %w", pattern, err)
	}
	return re, nil
}

// validatePathGlob rejects malformed doublestar patterns at compile time so
// matching never has to deal with doublestar.ErrBadPattern.
func validatePathGlob(pattern string) error {
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("invalid path glob %q: %w", pattern, doublestar.ErrBadPattern)
	}
	return nil
}

// MatchPathGlob reports whether path matches a doublestar glob such as
// "/api/**" or "/files/*.json".
func MatchPathGlob(pattern, path string) bool {
	ok, err := doublestar.Match(pattern, path)
	return err == nil && ok
}

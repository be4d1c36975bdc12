package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	"github.com/getmockd/httpmock/pkg/expectation"
)

// Common errors for seed file loading.
var (
	ErrFileNotFound     = errors.New("expectation file not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidJSON      = errors.New("invalid JSON syntax")
	ErrInvalidYAML      = errors.New("invalid YAML syntax")
	ErrEmptyFile        = errors.New("expectation file is empty")
	ErrNoFilesMatched   = errors.New("no expectation files matched")
)

// Format is a seed file encoding.
type Format int

// Seed file formats.
const (
	FormatYAML Format = iota
	FormatJSON
)

// FormatForPath picks the format from the file extension: .yaml and .yml are
// YAML, everything else (.json, .jsonc, .json5) is JSON with comments allowed.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// seedFile is the mapping form of a seed file.
type seedFile struct {
	Expectations []*expectation.Definition `json:"expectations" yaml:"expectations"`
}

// LoadExpectationFile reads, parses and validates one seed file. Entries are
// returned in file order, which is also their registration order.
func LoadExpectationFile(path string) ([]*expectation.Definition, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	defs, err := ParseExpectations(data, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// ParseExpectations decodes seed file content. The top level is either a
// list of expectations or a mapping with an "expectations" list. ${VAR} and
// ${VAR:-default} references are expanded from the environment first.
func ParseExpectations(data []byte, format Format) ([]*expectation.Definition, error) {
	data = []byte(ExpandEnvVars(string(data)))

	var (
		defs []*expectation.Definition
		err  error
	)
	switch format {
	case FormatYAML:
		defs, err = parseYAML(data)
	default:
		defs, err = parseJSON(data)
	}
	if err != nil {
		return nil, err
	}

	for i, def := range defs {
		if def == nil {
			return nil, fmt.Errorf("expectation %d: empty entry", i)
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("expectation %d: %w", i, err)
		}
	}
	return defs, nil
}

func parseYAML(data []byte) ([]*expectation.Definition, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidYAML, err)
	}
	if len(root.Content) == 0 {
		return nil, ErrEmptyFile
	}

	doc := root.Content[0]
	if doc.Kind == yaml.SequenceNode {
		var defs []*expectation.Definition
		if err := doc.Decode(&defs); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidYAML, err)
		}
		return defs, nil
	}

	var file seedFile
	if err := doc.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidYAML, err)
	}
	return file.Expectations, nil
}

func parseJSON(data []byte) ([]*expectation.Definition, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}

	trimmed := bytes.TrimSpace(std)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var defs []*expectation.Definition
		if err := json.Unmarshal(trimmed, &defs); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}
		return defs, nil
	}

	var file seedFile
	if err := json.Unmarshal(trimmed, &file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	return file.Expectations, nil
}

// LoadExpectations expands each pattern (plain paths, filepath globs, or **
// globs) and loads every matching file. Matches of one pattern are sorted;
// patterns are processed in the order given. A pattern without glob
// characters must name an existing file.
func LoadExpectations(patterns []string) ([]*expectation.Definition, error) {
	var all []*expectation.Definition
	for _, pattern := range patterns {
		files, err := ExpandPattern(pattern)
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			defs, err := LoadExpectationFile(file)
			if err != nil {
				return nil, err
			}
			all = append(all, defs...)
		}
	}
	return all, nil
}

// ExpandPattern resolves a seed file pattern to a sorted list of files.
func ExpandPattern(pattern string) ([]string, error) {
	if !hasGlobMeta(pattern) {
		return []string{pattern}, nil
	}

	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("expanding glob pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFilesMatched, pattern)
	}
	sort.Strings(matches)
	return matches, nil
}

func hasGlobMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnvVars replaces ${VAR} and ${VAR:-default} with environment values.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		submatch := envVarPattern.FindStringSubmatch(match)
		if val := os.Getenv(submatch[1]); val != "" {
			return val
		}
		return submatch[2]
	})
}

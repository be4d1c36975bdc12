package matching

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidPredicate is returned when a predicate cannot be compiled.
var ErrInvalidPredicate = errors.New("invalid predicate")

// Predicate is a declarative, side-effect free condition over a Request.
// Every field that is set must hold; an empty Predicate matches everything.
type Predicate struct {
	Method         string                 `json:"method,omitempty" yaml:"method,omitempty"`
	Path           string                 `json:"path,omitempty" yaml:"path,omitempty"`
	PathPattern    string                 `json:"pathPattern,omitempty" yaml:"pathPattern,omitempty"`
	PathGlob       string                 `json:"pathGlob,omitempty" yaml:"pathGlob,omitempty"`
	Headers        map[string]string      `json:"headers,omitempty" yaml:"headers,omitempty"`
	QueryParams    map[string]string      `json:"queryParams,omitempty" yaml:"queryParams,omitempty"`
	Form           map[string]string      `json:"form,omitempty" yaml:"form,omitempty"`
	BodyEquals     string                 `json:"bodyEquals,omitempty" yaml:"bodyEquals,omitempty"`
	BodyContains   string                 `json:"bodyContains,omitempty" yaml:"bodyContains,omitempty"`
	BodyPattern    string                 `json:"bodyPattern,omitempty" yaml:"bodyPattern,omitempty"`
	BodyJSONPath   map[string]interface{} `json:"bodyJsonPath,omitempty" yaml:"bodyJsonPath,omitempty"`
	BodyXPath      map[string]string      `json:"bodyXPath,omitempty" yaml:"bodyXPath,omitempty"`
	BodyJSONSchema map[string]interface{} `json:"bodyJsonSchema,omitempty" yaml:"bodyJsonSchema,omitempty"`
	JWTClaims      map[string]interface{} `json:"jwtClaims,omitempty" yaml:"jwtClaims,omitempty"`
	Expr           string                 `json:"expr,omitempty" yaml:"expr,omitempty"`

	All []Predicate `json:"all,omitempty" yaml:"all,omitempty"`
	Any []Predicate `json:"any,omitempty" yaml:"any,omitempty"`
	Not *Predicate  `json:"not,omitempty" yaml:"not,omitempty"`
}

// Matcher is a compiled Predicate. It is immutable and safe for concurrent use.
type Matcher struct {
	p Predicate

	pathPattern *regexp.Regexp
	bodyPattern *regexp.Regexp
	jsonPaths   []jsonPathCondition
	schema      *jsonschema.Schema
	program     *vm.Program

	all []*Matcher
	any []*Matcher
	not *Matcher
}

// Compile validates a predicate and prepares it for matching. Regular
// expressions, JSONPath, JSON Schema and expressions are all compiled here so
// that a bad rule is rejected at registration rather than at dispatch.
func Compile(p Predicate) (*Matcher, error) {
	m := &Matcher{p: p}

	if p.Path != "" && p.PathPattern != "" {
		return nil, fmt.Errorf("%w: path and pathPattern are mutually exclusive", ErrInvalidPredicate)
	}

	var err error
	if p.PathPattern != "" {
		if m.pathPattern, err = compilePathPattern(p.PathPattern); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPredicate, err)
		}
	}
	if p.PathGlob != "" {
		if err := validatePathGlob(p.PathGlob); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPredicate, err)
		}
	}
	if p.BodyPattern != "" {
		if m.bodyPattern, err = regexp.Compile(p.BodyPattern); err != nil {
			return nil, fmt.Errorf("%w: invalid body pattern %q: %w", ErrInvalidPredicate, p.BodyPattern, err)
		}
	}
	if len(p.BodyJSONPath) > 0 {
		if m.jsonPaths, err = compileJSONPath(p.BodyJSONPath); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPredicate, err)
		}
	}
	for xpath := range p.BodyXPath {
		if err := validateXPath(xpath); err != nil {
			return nil, fmt.Errorf("%w: invalid XPath %q: %w", ErrInvalidPredicate, xpath, err)
		}
	}
	if len(p.BodyJSONSchema) > 0 {
		if m.schema, err = compileSchema(p.BodyJSONSchema); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPredicate, err)
		}
	}
	if p.Expr != "" {
		m.program, err = expr.Compile(p.Expr, expr.Env(exprSampleEnv()), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("%w: invalid expression %q: %w", ErrInvalidPredicate, p.Expr, err)
		}
	}

	for _, child := range p.All {
		cm, err := Compile(child)
		if err != nil {
			return nil, err
		}
		m.all = append(m.all, cm)
	}
	for _, child := range p.Any {
		cm, err := Compile(child)
		if err != nil {
			return nil, err
		}
		m.any = append(m.any, cm)
	}
	if p.Not != nil {
		if m.not, err = Compile(*p.Not); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// CompileAll compiles a list of predicates in order.
func CompileAll(predicates []Predicate) ([]*Matcher, error) {
	matchers := make([]*Matcher, 0, len(predicates))
	for i, p := range predicates {
		m, err := Compile(p)
		if err != nil {
			return nil, fmt.Errorf("predicate %d: %w", i, err)
		}
		matchers = append(matchers, m)
	}
	return matchers, nil
}

// MatchAll reports whether every matcher accepts r, stopping at the first
// rejection. An empty list matches.
func MatchAll(matchers []*Matcher, r *Request) bool {
	for _, m := range matchers {
		if !m.Match(r) {
			return false
		}
	}
	return true
}

// Predicate returns the source predicate.
func (m *Matcher) Predicate() Predicate {
	return m.p
}

// Match evaluates the compiled predicate against r. Cheap checks run first.
func (m *Matcher) Match(r *Request) bool {
	p := &m.p

	if p.Method != "" && !strings.EqualFold(p.Method, r.Method) {
		return false
	}
	if p.Path != "" && !MatchPath(p.Path, r.Path) {
		return false
	}
	if m.pathPattern != nil && !m.pathPattern.MatchString(r.Path) {
		return false
	}
	if p.PathGlob != "" && !MatchPathGlob(p.PathGlob, r.Path) {
		return false
	}
	if len(p.Headers) > 0 && !MatchHeaders(p.Headers, r.Header) {
		return false
	}
	if len(p.QueryParams) > 0 && !MatchValues(p.QueryParams, r.Query) {
		return false
	}
	if len(p.Form) > 0 && !MatchValues(p.Form, r.Form) {
		return false
	}
	if p.BodyEquals != "" && string(r.Body) != p.BodyEquals {
		return false
	}
	if p.BodyContains != "" && !bytes.Contains(r.Body, []byte(p.BodyContains)) {
		return false
	}
	if m.bodyPattern != nil && !m.bodyPattern.Match(r.Body) {
		return false
	}
	if len(m.jsonPaths) > 0 || m.schema != nil {
		var data interface{}
		if err := json.Unmarshal(r.Body, &data); err != nil {
			return false
		}
		if !matchJSONPath(m.jsonPaths, data) {
			return false
		}
		if m.schema != nil && m.schema.Validate(data) != nil {
			return false
		}
	}
	if len(p.BodyXPath) > 0 && !matchXPath(p.BodyXPath, r.Body) {
		return false
	}
	if len(p.JWTClaims) > 0 && !matchJWTClaims(p.JWTClaims, r.Header) {
		return false
	}
	if m.program != nil && !runBoolProgram(m.program, r) {
		return false
	}

	for _, child := range m.all {
		if !child.Match(r) {
			return false
		}
	}
	if len(m.any) > 0 {
		matched := false
		for _, child := range m.any {
			if child.Match(r) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if m.not != nil && m.not.Match(r) {
		return false
	}

	return true
}

func runBoolProgram(program *vm.Program, r *Request) bool {
	out, err := expr.Run(program, r.exprEnv())
	if err != nil {
		return false
	}
	b, ok := out.(bool)
	return ok && b
}

func compileSchema(schema map[string]interface{}) (*jsonschema.Schema, error) {
	// Round-trip through JSON so YAML-decoded values have JSON types.
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	s, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("invalid JSON schema: %w", err)
	}
	return s, nil
}

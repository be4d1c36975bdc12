package httpmocktest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/getmockd/httpmock/pkg/expectation"
)

// MockBuilder builds an expectation using a fluent API.
type MockBuilder struct {
	server    *MockServer
	predicate expectation.Predicate
	response  expectation.Response
	times     int   // 0 means unlimited
	err       error // First error encountered during building
}

// setError records the first error encountered during building.
func (b *MockBuilder) setError(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Err returns any error encountered during building.
func (b *MockBuilder) Err() error {
	return b.err
}

func (b *MockBuilder) setHeader(key, value string) {
	if b.response.Headers == nil {
		b.response.Headers = expectation.Headers{}
	}
	b.response.Headers[key] = []string{value}
}

// WithStatus sets the HTTP response status code.
// Default is 200 (OK).
func (b *MockBuilder) WithStatus(status int) *MockBuilder {
	b.response.StatusCode = status
	return b
}

// WithBody sets the response body. Strings and byte slices are used as-is;
// anything else is JSON encoded and gets a JSON content type unless one is
// set already.
func (b *MockBuilder) WithBody(body any) *MockBuilder {
	switch v := body.(type) {
	case string:
		b.response.Body = v
	case []byte:
		b.response.Body = string(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			b.setError(fmt.Errorf("WithBody: failed to marshal body: %w", err))
			return b
		}
		b.response.Body = string(data)
		if _, ok := b.response.Headers["Content-Type"]; !ok {
			b.setHeader("Content-Type", "application/json")
		}
	}
	return b
}

// WithJSON sets the response body as JSON.
// Automatically sets Content-Type to application/json.
func (b *MockBuilder) WithJSON(body any) *MockBuilder {
	data, err := json.Marshal(body)
	if err != nil {
		b.setError(fmt.Errorf("WithJSON: failed to marshal body: %w", err))
		return b
	}
	b.response.Body = string(data)
	b.setHeader("Content-Type", "application/json")
	return b
}

// WithHeader sets a response header.
func (b *MockBuilder) WithHeader(key, value string) *MockBuilder {
	b.setHeader(key, value)
	return b
}

// WithDelay delays the response.
// Accepts duration strings like "100ms", "1s", "500ms".
func (b *MockBuilder) WithDelay(delay string) *MockBuilder {
	d, err := time.ParseDuration(delay)
	if err != nil {
		b.setError(fmt.Errorf("WithDelay: invalid duration %q: %w", delay, err))
		return b
	}
	b.response.DelayMs = int(d.Milliseconds())
	return b
}

// WithBodyContains matches requests containing the given substring in the body.
func (b *MockBuilder) WithBodyContains(substr string) *MockBuilder {
	b.predicate.BodyContains = substr
	return b
}

// WithBodyEquals matches requests with exactly matching body.
func (b *MockBuilder) WithBodyEquals(body string) *MockBuilder {
	b.predicate.BodyEquals = body
	return b
}

// WithBodyPattern matches requests with body matching the regex pattern.
func (b *MockBuilder) WithBodyPattern(pattern string) *MockBuilder {
	b.predicate.BodyPattern = pattern
	return b
}

// WithJSONPath matches requests whose JSON body has value at path.
func (b *MockBuilder) WithJSONPath(path string, value any) *MockBuilder {
	if b.predicate.BodyJSONPath == nil {
		b.predicate.BodyJSONPath = map[string]any{}
	}
	b.predicate.BodyJSONPath[path] = value
	return b
}

// WithQueryParam matches requests with a specific query parameter.
func (b *MockBuilder) WithQueryParam(key, value string) *MockBuilder {
	if b.predicate.QueryParams == nil {
		b.predicate.QueryParams = map[string]string{}
	}
	b.predicate.QueryParams[key] = value
	return b
}

// WithFormField matches form-encoded requests with a specific field.
func (b *MockBuilder) WithFormField(key, value string) *MockBuilder {
	if b.predicate.Form == nil {
		b.predicate.Form = map[string]string{}
	}
	b.predicate.Form[key] = value
	return b
}

// WithRequestHeader matches requests with a specific header.
func (b *MockBuilder) WithRequestHeader(key, value string) *MockBuilder {
	if b.predicate.Headers == nil {
		b.predicate.Headers = map[string]string{}
	}
	b.predicate.Headers[key] = value
	return b
}

// WithPathPattern matches the path against a regular expression instead of
// the path given to Mock.
func (b *MockBuilder) WithPathPattern(pattern string) *MockBuilder {
	b.predicate.Path = ""
	b.predicate.PathPattern = pattern
	return b
}

// WithExpr adds an expr-lang condition over the request.
func (b *MockBuilder) WithExpr(expr string) *MockBuilder {
	b.predicate.Expr = expr
	return b
}

// Times sets how many times this expectation should match.
// Once exhausted, requests fall through to older expectations.
// Use 0 for unlimited matches (default).
func (b *MockBuilder) Times(n int) *MockBuilder {
	b.times = n
	return b
}

// Once is a convenience method for Times(1).
func (b *MockBuilder) Once() *MockBuilder {
	return b.Times(1)
}

// Definition returns the expectation the builder describes.
func (b *MockBuilder) Definition() *expectation.Definition {
	resp := b.response.Clone()
	def := &expectation.Definition{
		Matcher:  []expectation.Predicate{b.predicate},
		Response: &resp,
	}
	if b.times > 0 {
		def.Limiter = expectation.Times(b.times)
	}
	return def
}

// Reply registers the expectation. Builder errors fail the test.
func (b *MockBuilder) Reply() {
	b.server.t.Helper()

	if b.err != nil {
		b.server.t.Errorf("invalid expectation %s %s: %v", b.predicate.Method, b.predicate.Path, b.err)
		return
	}
	b.server.add(b.Definition())
}

// RespondWith is a shorthand for setting status and body together.
func (b *MockBuilder) RespondWith(status int, body any) *MockBuilder {
	return b.WithStatus(status).WithBody(body)
}

// RespondJSON is a shorthand for JSON response with status 200.
func (b *MockBuilder) RespondJSON(body any) *MockBuilder {
	return b.WithStatus(http.StatusOK).WithJSON(body)
}

// RespondNotFound configures a 404 Not Found response.
func (b *MockBuilder) RespondNotFound() *MockBuilder {
	return b.WithStatus(http.StatusNotFound).WithJSON(map[string]string{
		"error": "not_found",
	})
}

// RespondServerError configures a 500 Internal Server Error response.
func (b *MockBuilder) RespondServerError(message string) *MockBuilder {
	return b.WithStatus(http.StatusInternalServerError).WithJSON(map[string]string{
		"error": message,
	})
}

// RespondNoContent configures a 204 No Content response.
func (b *MockBuilder) RespondNoContent() *MockBuilder {
	return b.WithStatus(http.StatusNoContent)
}

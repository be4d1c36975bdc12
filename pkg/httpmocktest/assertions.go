package httpmocktest

import (
	"encoding/json"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/ohler55/ojg/jp"

	"github.com/getmockd/httpmock/pkg/requestlog"
)

// RecordedRequest is a request received by the mock server.
type RecordedRequest struct {
	// Method is the HTTP method (GET, POST, etc.)
	Method string
	// Path is the request URL path
	Path string
	// Query holds the decoded query parameters
	Query url.Values
	// Header holds the request headers
	Header http.Header
	// Body is the request body content
	Body string
	// Form holds decoded form fields, nil for non-form bodies
	Form url.Values
}

func newRecordedRequest(e *requestlog.Entry) RecordedRequest {
	return RecordedRequest{
		Method: e.Method,
		Path:   e.Path,
		Query:  e.Query(),
		Header: e.Headers,
		Body:   string(e.Body),
		Form:   e.Form,
	}
}

// AssertJSONBody asserts that the request body matches the expected JSON.
// The expected value can be a string, []byte, or any value that will be JSON encoded.
func (r *RecordedRequest) AssertJSONBody(t testing.TB, expected any) {
	t.Helper()

	var raw []byte
	switch v := expected.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			t.Errorf("failed to marshal expected value: %v", err)
			return
		}
		raw = data
	}

	var expectedJSON, actualJSON any
	if err := json.Unmarshal(raw, &expectedJSON); err != nil {
		t.Errorf("failed to parse expected JSON: %v", err)
		return
	}
	if err := json.Unmarshal([]byte(r.Body), &actualJSON); err != nil {
		t.Errorf("request body is not valid JSON: %v\nbody: %s", err, r.Body)
		return
	}

	if !reflect.DeepEqual(actualJSON, expectedJSON) {
		expectedBytes, _ := json.MarshalIndent(expectedJSON, "", "  ")
		actualBytes, _ := json.MarshalIndent(actualJSON, "", "  ")
		t.Errorf("request body does not match expected JSON\nexpected:\n%s\nactual:\n%s",
			string(expectedBytes), string(actualBytes))
	}
}

// AssertBody asserts that the request body exactly matches the expected string.
func (r *RecordedRequest) AssertBody(t testing.TB, expected string) {
	t.Helper()

	if r.Body != expected {
		t.Errorf("request body does not match\nexpected: %q\nactual: %q", expected, r.Body)
	}
}

// AssertBodyContains asserts that the request body contains the expected substring.
func (r *RecordedRequest) AssertBodyContains(t testing.TB, substr string) {
	t.Helper()

	if !strings.Contains(r.Body, substr) {
		t.Errorf("request body does not contain %q\nbody: %s", substr, r.Body)
	}
}

// AssertHeader asserts that the request had the header with the expected
// first value. Names are case-insensitive.
func (r *RecordedRequest) AssertHeader(t testing.TB, key, expected string) {
	t.Helper()

	values := r.Header.Values(key)
	if len(values) == 0 {
		t.Errorf("request does not have header %q", key)
		return
	}
	if values[0] != expected {
		t.Errorf("header %q value mismatch\nexpected: %q\nactual: %q", key, expected, values[0])
	}
}

// AssertQueryParam asserts that the request had the specified query parameter.
func (r *RecordedRequest) AssertQueryParam(t testing.TB, key, expected string) {
	t.Helper()

	if !r.Query.Has(key) {
		t.Errorf("request does not have query parameter %q", key)
		return
	}
	if actual := r.Query.Get(key); actual != expected {
		t.Errorf("query parameter %q value mismatch\nexpected: %q\nactual: %q", key, expected, actual)
	}
}

// AssertFormField asserts that the request carried the form field.
func (r *RecordedRequest) AssertFormField(t testing.TB, key, expected string) {
	t.Helper()

	if !r.Form.Has(key) {
		t.Errorf("request does not have form field %q", key)
		return
	}
	if actual := r.Form.Get(key); actual != expected {
		t.Errorf("form field %q value mismatch\nexpected: %q\nactual: %q", key, expected, actual)
	}
}

// AssertMethod asserts that the request used the expected HTTP method.
func (r *RecordedRequest) AssertMethod(t testing.TB, expected string) {
	t.Helper()

	if !strings.EqualFold(r.Method, expected) {
		t.Errorf("request method mismatch\nexpected: %q\nactual: %q", expected, r.Method)
	}
}

// AssertPath asserts that the request path matches.
func (r *RecordedRequest) AssertPath(t testing.TB, expected string) {
	t.Helper()

	if r.Path != expected {
		t.Errorf("request path mismatch\nexpected: %q\nactual: %q", expected, r.Path)
	}
}

// JSONField extracts a value from the request body with a JSONPath
// expression such as "$.user.name". A bare "user.name" is read as
// "$.user.name". Returns nil if the body is not JSON or nothing matches.
func (r *RecordedRequest) JSONField(path string) any {
	var data any
	if err := json.Unmarshal([]byte(r.Body), &data); err != nil {
		return nil
	}

	if !strings.HasPrefix(path, "$") {
		path = "$." + path
	}
	x, err := jp.ParseString(path)
	if err != nil {
		return nil
	}

	results := x.Get(data)
	if len(results) == 0 {
		return nil
	}
	return results[0]
}

// AssertJSONField asserts that a JSON field in the request body has the expected value.
func (r *RecordedRequest) AssertJSONField(t testing.TB, path string, expected any) {
	t.Helper()

	actual := r.JSONField(path)
	if actual == nil {
		t.Errorf("JSON field %q not found in request body: %s", path, r.Body)
		return
	}

	if !reflect.DeepEqual(actual, expected) {
		t.Errorf("JSON field %q mismatch\nexpected: %v (%T)\nactual: %v (%T)",
			path, expected, expected, actual, actual)
	}
}

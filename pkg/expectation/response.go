package expectation

import (
	"encoding/json"
	"fmt"
	"net/http"

	"gopkg.in/yaml.v3"
)

// Response is the canned response an expectation returns. It is written
// as-is: no content type is inferred and the body is not re-encoded.
type Response struct {
	// StatusCode defaults to 200 when zero.
	StatusCode int `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`

	// Headers maps a header name to one or more values.
	Headers Headers `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Body is the literal response body. In JSON and YAML definitions a
	// non-string body is serialized to compact JSON.
	Body string `json:"body,omitempty" yaml:"body,omitempty"`

	// DelayMs delays the response by the given number of milliseconds.
	DelayMs int `json:"delayMs,omitempty" yaml:"delayMs,omitempty"`
}

// Status returns the effective status code.
func (r *Response) Status() int {
	if r.StatusCode == 0 {
		return http.StatusOK
	}
	return r.StatusCode
}

// Validate checks the response is writable.
func (r *Response) Validate() error {
	if r.StatusCode != 0 && (r.StatusCode < 200 || r.StatusCode > 599) {
		return fmt.Errorf("%w: status code %d out of range", ErrInvalidResponse, r.StatusCode)
	}
	if r.DelayMs < 0 {
		return fmt.Errorf("%w: negative delay", ErrInvalidResponse)
	}
	for name := range r.Headers {
		if name == "" {
			return fmt.Errorf("%w: empty header name", ErrInvalidResponse)
		}
	}
	return nil
}

// Clone returns a deep copy so callers never share header slices with the stack.
func (r Response) Clone() Response {
	out := r
	if r.Headers != nil {
		out.Headers = make(Headers, len(r.Headers))
		for k, v := range r.Headers {
			out.Headers[k] = append([]string(nil), v...)
		}
	}
	return out
}

// UnmarshalJSON accepts a string body or any other JSON value, which is kept
// as its compact encoding.
func (r *Response) UnmarshalJSON(data []byte) error {
	type alias Response
	var raw struct {
		alias
		Body json.RawMessage `json:"body,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Response(raw.alias)
	r.Body = ""

	if len(raw.Body) == 0 || string(raw.Body) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw.Body, &s); err == nil {
		r.Body = s
		return nil
	}
	var compact any
	if err := json.Unmarshal(raw.Body, &compact); err != nil {
		return err
	}
	b, err := json.Marshal(compact)
	if err != nil {
		return err
	}
	r.Body = string(b)
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for seed files.
func (r *Response) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		StatusCode int       `yaml:"statusCode"`
		Headers    Headers   `yaml:"headers"`
		Body       yaml.Node `yaml:"body"`
		DelayMs    int       `yaml:"delayMs"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*r = Response{StatusCode: raw.StatusCode, Headers: raw.Headers, DelayMs: raw.DelayMs}

	switch {
	case raw.Body.Kind == 0, raw.Body.Tag == "!!null":
		return nil
	case raw.Body.Kind == yaml.ScalarNode && raw.Body.Tag == "!!str":
		r.Body = raw.Body.Value
		return nil
	}

	var v any
	if err := raw.Body.Decode(&v); err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("body is not JSON-serializable: %w", err)
	}
	r.Body = string(b)
	return nil
}

// Headers maps header names to values. Definitions may give a single string
// or a list of strings per name.
type Headers map[string][]string

// UnmarshalJSON implements json.Unmarshaler.
func (h *Headers) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Headers, len(raw))
	for name, value := range raw {
		var single string
		if err := json.Unmarshal(value, &single); err == nil {
			out[name] = []string{single}
			continue
		}
		var list []string
		if err := json.Unmarshal(value, &list); err != nil {
			return fmt.Errorf("header %q: must be a string or a list of strings", name)
		}
		out[name] = list
	}
	*h = out
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (h *Headers) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]yaml.Node
	if err := node.Decode(&raw); err != nil {
		return err
	}
	out := make(Headers, len(raw))
	for name, value := range raw {
		switch value.Kind {
		case yaml.ScalarNode:
			out[name] = []string{value.Value}
		case yaml.SequenceNode:
			var list []string
			if err := value.Decode(&list); err != nil {
				return fmt.Errorf("header %q: %w", name, err)
			}
			out[name] = list
		default:
			return fmt.Errorf("header %q: must be a string or a list of strings", name)
		}
	}
	*h = out
	return nil
}

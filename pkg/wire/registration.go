package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/getmockd/httpmock/internal/matching"
	"github.com/getmockd/httpmock/pkg/expectation"
)

// ExpectationIDHeader carries the id of a newly registered expectation.
const ExpectationIDHeader = "X-Expectation-Id"

// Form keys of a registration request.
const (
	KeyMatcher  = "matcher"
	KeyResponse = "response"
	KeyLimiter  = "limiter"
)

// Registration failures. Their messages are part of the control-plane
// contract and are returned verbatim as the 417 response body.
var (
	ErrMatcherInvalid  = errors.New(`POST data key "matcher" must be a serialized list of closures`)
	ErrResponseMissing = errors.New(`POST data key "response" not found in POST data`)
	ErrResponseInvalid = errors.New(`POST data key "response" must be a serialized response`)
	ErrLimiterInvalid  = errors.New(`POST data key "limiter" must be a serialized closure`)
)

// RegistrationError pairs a contract message with the underlying cause.
type RegistrationError struct {
	// Reason is one of the Err* registration sentinels.
	Reason error
	// Cause is the decode or validation failure, if any.
	Cause error
}

func (e *RegistrationError) Error() string {
	if e.Cause == nil {
		return e.Reason.Error()
	}
	return e.Reason.Error() + ": " + e.Cause.Error()
}

func (e *RegistrationError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Cause}
}

func regErr(reason, cause error) *RegistrationError {
	return &RegistrationError{Reason: reason, Cause: cause}
}

// DecodeRegistration decodes and validates the form fields of a registration.
// Keys are checked in order matcher, response, limiter, and the first
// failure is reported. An absent matcher is an empty predicate list, which
// matches every request.
func DecodeRegistration(form url.Values) (*expectation.Definition, error) {
	def := &expectation.Definition{}

	raw, present, err := field(form, KeyMatcher)
	switch {
	case err != nil:
		return nil, regErr(ErrMatcherInvalid, err)
	case present:
		preds, err := decodePredicates(raw)
		if err != nil {
			return nil, regErr(ErrMatcherInvalid, err)
		}
		def.Matcher = preds
	}

	raw, present, err = field(form, KeyResponse)
	switch {
	case err != nil:
		return nil, regErr(ErrResponseInvalid, err)
	case !present:
		return nil, regErr(ErrResponseMissing, nil)
	}
	var resp expectation.Response
	if err := decodeStrict(raw, &resp); err != nil {
		return nil, regErr(ErrResponseInvalid, err)
	}
	if err := resp.Validate(); err != nil {
		return nil, regErr(ErrResponseInvalid, err)
	}
	def.Response = &resp

	raw, present, err = field(form, KeyLimiter)
	switch {
	case err != nil:
		return nil, regErr(ErrLimiterInvalid, err)
	case present:
		var limiter expectation.Limiter
		if err := decodeStrict(raw, &limiter); err != nil {
			return nil, regErr(ErrLimiterInvalid, err)
		}
		if err := limiter.Validate(); err != nil {
			return nil, regErr(ErrLimiterInvalid, err)
		}
		def.Limiter = &limiter
	}

	return def, nil
}

// AsRegistrationError maps a Stack.Register failure onto the registration
// contract so callers can answer with the same messages.
func AsRegistrationError(err error) *RegistrationError {
	var re *RegistrationError
	switch {
	case errors.As(err, &re):
		return re
	case errors.Is(err, expectation.ErrInvalidMatcher):
		return regErr(ErrMatcherInvalid, err)
	case errors.Is(err, expectation.ErrInvalidLimiter):
		return regErr(ErrLimiterInvalid, err)
	default:
		return regErr(ErrResponseInvalid, err)
	}
}

// field returns the single value of key. A bracketed key such as "matcher[]"
// or "matcher[0]" means the client sent a structured form field instead of a
// serialized value, which is malformed.
func field(form url.Values, key string) (string, bool, error) {
	for k := range form {
		if k != key && strings.HasPrefix(k, key+"[") {
			return "", true, fmt.Errorf("form key %q is not a serialized value", k)
		}
	}
	values, ok := form[key]
	if !ok || len(values) == 0 {
		return "", false, nil
	}
	if len(values) > 1 {
		return "", true, fmt.Errorf("form key %q given %d times", key, len(values))
	}
	if strings.TrimSpace(values[0]) == "" {
		return "", true, errors.New("empty value")
	}
	return values[0], true, nil
}

func decodePredicates(raw string) ([]matching.Predicate, error) {
	var preds []matching.Predicate
	if err := decodeStrict(raw, &preds); err != nil {
		return nil, err
	}
	if preds == nil {
		return nil, errors.New("matcher must be a JSON array")
	}
	if _, err := matching.CompileAll(preds); err != nil {
		return nil, err
	}
	return preds, nil
}

// decodeStrict decodes a single JSON value and rejects unknown fields and
// trailing data.
func decodeStrict(raw string, v any) error {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

// EncodeRegistration is the client-side inverse of DecodeRegistration.
func EncodeRegistration(def *expectation.Definition) (url.Values, error) {
	if def.Response == nil {
		return nil, ErrResponseMissing
	}

	form := url.Values{}

	preds := def.Matcher
	if preds == nil {
		preds = []matching.Predicate{}
	}
	matcher, err := json.Marshal(preds)
	if err != nil {
		return nil, fmt.Errorf("failed to encode matcher: %w", err)
	}
	form.Set(KeyMatcher, string(matcher))

	resp, err := json.Marshal(def.Response)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	form.Set(KeyResponse, string(resp))

	if def.Limiter != nil {
		limiter, err := json.Marshal(def.Limiter)
		if err != nil {
			return nil, fmt.Errorf("failed to encode limiter: %w", err)
		}
		form.Set(KeyLimiter, string(limiter))
	}

	return form, nil
}

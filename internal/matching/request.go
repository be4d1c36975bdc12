package matching

import (
	"net/http"
	"net/url"
	"strings"
)

// Request is the normalized view of an incoming request that predicates are
// evaluated against. It is built once per dispatch and never mutated.
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	Header    http.Header
	Body      []byte
	Form      url.Values
	Host      string
	UserAgent string
}

// exprEnv builds the expression environment for a request.
// Maps carry first values only; header names are lower-cased.
func (r *Request) exprEnv() map[string]interface{} {
	return map[string]interface{}{
		"method":    r.Method,
		"path":      r.Path,
		"query":     firstValues(r.Query, false),
		"headers":   firstValues(url.Values(r.Header), true),
		"body":      string(r.Body),
		"form":      firstValues(r.Form, false),
		"host":      r.Host,
		"userAgent": r.UserAgent,
	}
}

// exprSampleEnv describes the environment's shape for compile-time checking.
func exprSampleEnv() map[string]interface{} {
	return (&Request{}).exprEnv()
}

func firstValues(values url.Values, lower bool) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) == 0 {
			continue
		}
		if lower {
			k = strings.ToLower(k)
		}
		out[k] = v[0]
	}
	return out
}

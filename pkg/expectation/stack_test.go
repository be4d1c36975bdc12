package expectation

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/getmockd/httpmock/internal/matching"
)

func request(method, path string) *matching.Request {
	return &matching.Request{
		Method: method,
		Path:   path,
		Query:  url.Values{},
		Header: http.Header{},
		Form:   url.Values{},
	}
}

func register(t *testing.T, s *Stack, preds []matching.Predicate, body string, limiter *Limiter) string {
	t.Helper()
	id, err := s.Register(&Definition{Matcher: preds, Response: &Response{Body: body}, Limiter: limiter})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	return id
}

func TestStackNewestFirst(t *testing.T) {
	t.Parallel()

	s := NewStack()
	register(t, s, []matching.Predicate{{Path: "/foo"}}, "fake body", nil)
	register(t, s, []matching.Predicate{{Path: "/foo"}}, "newer body", nil)

	m, ok := s.FindMatch(request("GET", "/foo"))
	require.True(t, ok)
	assert.Equal(t, "newer body", m.Response.Body)
	assert.Equal(t, 1, m.Count)
}

func TestStackFallsThroughToOlderMatch(t *testing.T) {
	t.Parallel()

	s := NewStack()
	register(t, s, nil, "catch all", nil)
	register(t, s, []matching.Predicate{{Method: "POST"}}, "posts only", nil)

	m, ok := s.FindMatch(request("GET", "/anything"))
	require.True(t, ok)
	assert.Equal(t, "catch all", m.Response.Body)

	m, ok = s.FindMatch(request("POST", "/anything"))
	require.True(t, ok)
	assert.Equal(t, "posts only", m.Response.Body)
}

func TestStackNoMatch(t *testing.T) {
	t.Parallel()

	s := NewStack()
	register(t, s, []matching.Predicate{{Path: "/foo"}}, "x", nil)

	m, ok := s.FindMatch(request("GET", "/bar"))
	assert.False(t, ok)
	assert.Nil(t, m)
}

func TestStackLimiterExhaustion(t *testing.T) {
	t.Parallel()

	s := NewStack()
	register(t, s, []matching.Predicate{{Path: "/foo"}}, "fallback", nil)
	register(t, s, []matching.Predicate{{Path: "/foo"}}, "limited", Times(2))
	require.Equal(t, 2, s.Len())

	for range 2 {
		m, ok := s.FindMatch(request("GET", "/foo"))
		require.True(t, ok)
		assert.Equal(t, "limited", m.Response.Body)
	}

	m, ok := s.FindMatch(request("GET", "/foo"))
	require.True(t, ok)
	assert.Equal(t, "fallback", m.Response.Body)
	assert.Equal(t, 1, s.Len(), "exhausted expectation is removed")
}

func TestStackLimiterExpression(t *testing.T) {
	t.Parallel()

	s := NewStack()
	register(t, s, nil, "limited", &Limiter{Expr: "count < 3"})

	for range 3 {
		_, ok := s.FindMatch(request("GET", "/"))
		require.True(t, ok)
	}
	_, ok := s.FindMatch(request("GET", "/"))
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestStackLimiterZeroNeverMatches(t *testing.T) {
	t.Parallel()

	s := NewStack()
	register(t, s, nil, "never", Times(0))

	_, ok := s.FindMatch(request("GET", "/"))
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestStackOneShotUnderConcurrency(t *testing.T) {
	t.Parallel()

	s := NewStack()
	register(t, s, nil, "once", Once())

	var hits atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := s.FindMatch(request("GET", "/")); ok {
				hits.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
}

func TestStackClear(t *testing.T) {
	t.Parallel()

	s := NewStack()
	register(t, s, nil, "a", nil)
	register(t, s, nil, "b", nil)
	assert.Equal(t, 2, s.Len())

	s.Clear()
	assert.Equal(t, 0, s.Len())
	_, ok := s.FindMatch(request("GET", "/"))
	assert.False(t, ok)
}

func TestStackListNewestFirst(t *testing.T) {
	t.Parallel()

	s := NewStack()
	register(t, s, nil, "first", nil)
	register(t, s, nil, "second", nil)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Response.Body)
	assert.Equal(t, "first", list[1].Response.Body)
	assert.Greater(t, list[0].Seq, list[1].Seq)
}

func TestStackMatchReturnsCopy(t *testing.T) {
	t.Parallel()

	s := NewStack()
	_, err := s.Register(&Definition{Response: &Response{Headers: Headers{"X-A": {"1"}}}})
	require.NoError(t, err)

	m, ok := s.FindMatch(request("GET", "/"))
	require.True(t, ok)
	m.Response.Headers["X-A"][0] = "changed"

	m, ok = s.FindMatch(request("GET", "/"))
	require.True(t, ok)
	assert.Equal(t, "1", m.Response.Headers["X-A"][0])
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		def  Definition
		want error
	}{
		{"bad predicate", Definition{Matcher: []matching.Predicate{{PathPattern: "("}}, Response: &Response{}}, ErrInvalidMatcher},
		{"missing response", Definition{}, ErrInvalidResponse},
		{"bad status", Definition{Response: &Response{StatusCode: 42}}, ErrInvalidResponse},
		{"empty limiter", Definition{Response: &Response{}, Limiter: &Limiter{}}, ErrInvalidLimiter},
		{"negative times", Definition{Response: &Response{}, Limiter: Times(-1)}, ErrInvalidLimiter},
		{"bad limiter expr", Definition{Response: &Response{}, Limiter: &Limiter{Expr: "count +"}}, ErrInvalidLimiter},
		{"both limiter forms", Definition{Response: &Response{}, Limiter: &Limiter{Times: new(int), Expr: "true"}}, ErrInvalidLimiter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStack()
			_, err := s.Register(&tt.def)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 0, s.Len())
		})
	}
}

func TestResponseJSONBody(t *testing.T) {
	t.Parallel()

	var r Response
	require.NoError(t, json.Unmarshal([]byte(`{"statusCode":201,"headers":{"X-One":"1","X-Many":["a","b"]},"body":{"ok": true}}`), &r))

	assert.Equal(t, 201, r.Status())
	assert.Equal(t, `{"ok":true}`, r.Body)
	assert.Equal(t, []string{"1"}, r.Headers["X-One"])
	assert.Equal(t, []string{"a", "b"}, r.Headers["X-Many"])

	require.NoError(t, json.Unmarshal([]byte(`{"body":"plain"}`), &r))
	assert.Equal(t, "plain", r.Body)
	assert.Equal(t, 200, r.Status())
}

func TestResponseYAMLBody(t *testing.T) {
	t.Parallel()

	src := `
statusCode: 202
headers:
  Content-Type: application/json
  X-Many: [a, b]
body:
  id: 7
delayMs: 5
`
	var r Response
	require.NoError(t, yaml.Unmarshal([]byte(src), &r))

	assert.Equal(t, 202, r.StatusCode)
	assert.Equal(t, `{"id":7}`, r.Body)
	assert.Equal(t, []string{"application/json"}, r.Headers["Content-Type"])
	assert.Equal(t, []string{"a", "b"}, r.Headers["X-Many"])
	assert.Equal(t, 5, r.DelayMs)

	require.NoError(t, yaml.Unmarshal([]byte("body: hello"), &r))
	assert.Equal(t, "hello", r.Body)
}

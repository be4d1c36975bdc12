package client

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/httpmock/internal/matching"
	"github.com/getmockd/httpmock/pkg/engine"
	"github.com/getmockd/httpmock/pkg/expectation"
	"github.com/getmockd/httpmock/pkg/requestlog"
	"github.com/getmockd/httpmock/pkg/wire"
)

func newMock(t *testing.T) (*Client, *httptest.Server) {
	t.Helper()
	h := engine.NewHandler(expectation.NewStack(), requestlog.New(0))
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL + "/"), srv
}

func httpGet(t *testing.T, rawURL string) {
	t.Helper()
	resp, err := http.Get(rawURL)
	require.NoError(t, err)
	_ = resp.Body.Close()
}

func TestRegisterAndInspect(t *testing.T) {
	t.Parallel()
	c, srv := newMock(t)
	ctx := t.Context()

	id, err := c.Register(ctx, &expectation.Definition{
		Matcher:  []matching.Predicate{{Method: http.MethodGet, Path: "/foo"}},
		Response: &expectation.Response{StatusCode: 200, Body: "fake body"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	resp, err := http.Get(srv.URL + "/foo")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	req, err := c.LatestRequest(ctx)
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/foo", req.URL.Path)
}

func TestFormPostRoundTrip(t *testing.T) {
	t.Parallel()
	c, srv := newMock(t)
	ctx := t.Context()

	_, err := c.Register(ctx, &expectation.Definition{
		Matcher:  []matching.Predicate{{Method: http.MethodPost, Form: map[string]string{"post": "data"}}},
		Response: &expectation.Response{StatusCode: 201},
	})
	require.NoError(t, err)

	resp, err := http.PostForm(srv.URL+"/submit", url.Values{"post": {"data"}})
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	rr, err := c.Last(ctx)
	require.NoError(t, err)
	req, err := rr.HTTPRequest()
	require.NoError(t, err)
	require.NoError(t, req.ParseForm())
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/submit", req.URL.Path)
	assert.Equal(t, url.Values{"post": {"data"}}, req.PostForm)
}

func TestLogNavigation(t *testing.T) {
	t.Parallel()
	c, srv := newMock(t)
	ctx := t.Context()

	for _, p := range []string{"/req/0", "/req/1", "/req/2", "/req/3"} {
		httpGet(t, srv.URL+p)
	}

	path := func(rr *wire.RecordedRequest, err error) string {
		t.Helper()
		require.NoError(t, err)
		req, err := rr.HTTPRequest()
		require.NoError(t, err)
		return req.URL.Path
	}

	assert.Equal(t, "/req/0", path(c.First(ctx)))
	assert.Equal(t, "/req/3", path(c.Last(ctx)))
	assert.Equal(t, "/req/3", path(c.Pop(ctx)))
	assert.Equal(t, "/req/0", path(c.Shift(ctx)))
	assert.Equal(t, "/req/1", path(c.At(ctx, 0)))
	assert.Equal(t, "/req/2", path(c.At(ctx, 1)))

	_, err := c.At(ctx, 2)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ErrProtocol)

	require.NoError(t, c.Reset(ctx))
	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	for _, fn := range []func() (*wire.RecordedRequest, error){
		func() (*wire.RecordedRequest, error) { return c.Latest(ctx) },
		func() (*wire.RecordedRequest, error) { return c.First(ctx) },
		func() (*wire.RecordedRequest, error) { return c.Last(ctx) },
		func() (*wire.RecordedRequest, error) { return c.At(ctx, 0) },
		func() (*wire.RecordedRequest, error) { return c.At(ctx, -1) },
	} {
		_, err := fn()
		assert.ErrorIs(t, err, ErrNotFound)
	}
}

func TestRegisterRejected(t *testing.T) {
	t.Parallel()
	c, _ := newMock(t)

	_, err := c.Register(t.Context(), &expectation.Definition{
		Matcher:  []matching.Predicate{{PathPattern: "("}},
		Response: &expectation.Response{Body: "x"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRejected)
	assert.ErrorIs(t, err, wire.ErrMatcherInvalid)

	_, err = c.Register(t.Context(), &expectation.Definition{})
	assert.ErrorIs(t, err, wire.ErrResponseMissing)
}

func TestProtocolErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "json content type",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"request":"R0VUIC8gSFRUUC8xLjENCg0K"}`))
			},
		},
		{
			name: "undecodable body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				_, _ = w.Write([]byte("not a recorded request"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := New(srv.URL).Last(t.Context())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrProtocol)
			assert.NotErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestCountProtocolError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("many"))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Count(t.Context())
	assert.ErrorIs(t, err, ErrProtocol)
	assert.True(t, strings.Contains(err.Error(), "many"))
}

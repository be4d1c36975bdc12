package httpmocktest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, rawURL string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(rawURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestStartAndStop(t *testing.T) {
	mock := New(t)

	mock.Mock("GET", "/test").
		WithStatus(200).
		WithBody("hello").
		Reply()

	url := mock.Start()
	require.True(t, strings.HasPrefix(url, "http://"), url)
	assert.Equal(t, url, mock.Start(), "second Start returns the same URL")

	resp, body := get(t, url+"/test")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", body)

	mock.Stop()
	mock.Stop()
	assert.Equal(t, url, mock.URL())
}

func TestMockWithJSON(t *testing.T) {
	mock := New(t)

	type User struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	mock.Mock("GET", "/users/{id}").
		WithJSON(User{ID: "123", Name: "Test User"}).
		Reply()

	url := mock.Start()

	resp, body := get(t, url+"/users/123")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var user User
	require.NoError(t, json.Unmarshal([]byte(body), &user))
	assert.Equal(t, User{ID: "123", Name: "Test User"}, user)
}

func TestRegisterAfterStart(t *testing.T) {
	mock := New(t)
	url := mock.Start()

	resp, _ := get(t, url+"/late")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	mock.Mock("GET", "/late").
		WithHeader("X-Custom", "v").
		RespondWith(http.StatusAccepted, "queued").
		Reply()

	resp, body := get(t, url+"/late")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "v", resp.Header.Get("X-Custom"))
	assert.Equal(t, "queued", body)
}

func TestNewestExpectationWins(t *testing.T) {
	mock := New(t)
	mock.Mock("GET", "/item").WithBody("old").Reply()
	mock.Mock("GET", "/item").WithBody("new").Once().Reply()
	url := mock.Start()

	_, body := get(t, url+"/item")
	assert.Equal(t, "new", body)

	_, body = get(t, url+"/item")
	assert.Equal(t, "old", body, "exhausted expectation falls through")
}

func TestMatchersNarrowTheMatch(t *testing.T) {
	mock := New(t)
	mock.Mock("GET", "/search").
		WithQueryParam("q", "go").
		WithRequestHeader("X-Team", "core").
		WithBody("found").
		Reply()
	url := mock.Start()

	req, err := http.NewRequest(http.MethodGet, url+"/search?q=go", nil)
	require.NoError(t, err)
	req.Header.Set("X-Team", "core")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = get(t, url+"/search?q=rust")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFormAndBodyMatchers(t *testing.T) {
	mock := New(t)
	mock.Mock("POST", "/login").
		WithFormField("user", "ada").
		RespondNoContent().
		Reply()
	mock.Mock("POST", "/events").
		WithJSONPath("$.type", "click").
		WithBodyContains("button").
		RespondJSON(map[string]bool{"ok": true}).
		Reply()
	url := mock.Start()

	resp, err := http.PostForm(url+"/login", map[string][]string{"user": {"ada"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Post(url+"/events", "application/json", strings.NewReader(`{"type":"click","target":"button"}`))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	mock.AssertCalledTimes(t, "POST", "/login", 1)
	mock.AssertCalled(t, "POST", "/events")
	mock.AssertNotCalled(t, "GET", "/login")
}

func TestPathPatternReplacesPath(t *testing.T) {
	mock := New(t)
	mock.Mock("GET", "/ignored").
		WithPathPattern(`^/v[0-9]+/status$`).
		WithBody("up").
		Reply()
	url := mock.Start()

	_, body := get(t, url+"/v2/status")
	assert.Equal(t, "up", body)
}

func TestRecordedRequests(t *testing.T) {
	mock := New(t)
	mock.Mock("POST", "/users").RespondWith(http.StatusCreated, "").Reply()
	url := mock.Start()

	req, err := http.NewRequest(http.MethodPost, url+"/users?notify=true",
		strings.NewReader(`{"user":{"name":"Ada","age":36}}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.Len(t, mock.Requests(), 1)
	last := mock.LastRequest()
	last.AssertMethod(t, "post")
	last.AssertPath(t, "/users")
	last.AssertHeader(t, "content-type", "application/json")
	last.AssertQueryParam(t, "notify", "true")
	last.AssertBodyContains(t, `"Ada"`)
	last.AssertJSONBody(t, map[string]any{"user": map[string]any{"name": "Ada", "age": 36}})
	last.AssertJSONField(t, "$.user.name", "Ada")
	last.AssertJSONField(t, "user.age", float64(36))
	assert.Nil(t, last.JSONField("$.user.email"))
}

func TestRecordedFormRequest(t *testing.T) {
	mock := New(t)
	base := mock.Start()

	resp, err := http.PostForm(base+"/submit", url.Values{"a": {"1"}})
	require.NoError(t, err)
	resp.Body.Close()

	last := mock.LastRequest()
	last.AssertFormField(t, "a", "1")
	last.AssertBody(t, "a=1")
}

func TestReset(t *testing.T) {
	mock := New(t)
	mock.Mock("GET", "/x").WithBody("x").Reply()
	url := mock.Start()

	get(t, url+"/x")
	require.Len(t, mock.Requests(), 1)

	mock.Reset()
	assert.Empty(t, mock.Requests())

	resp, _ := get(t, url+"/x")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestClientSeesServerState(t *testing.T) {
	mock := New(t)
	url := mock.Start()

	get(t, url+"/a")
	get(t, url+"/b")

	n, err := mock.Client().Count(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, mock.Server().Requests().Count())
}

func TestBuilderErrors(t *testing.T) {
	mock := New(t)

	b := mock.Mock("GET", "/slow").WithDelay("soon")
	require.Error(t, b.Err())
	assert.Contains(t, b.Err().Error(), "WithDelay")

	b = mock.Mock("GET", "/bad").WithJSON(func() {})
	require.Error(t, b.Err())

	b = mock.Mock("GET", "/ok").WithDelay("150ms")
	require.NoError(t, b.Err())
	assert.Equal(t, 150, b.Definition().Response.DelayMs)
}

func TestDefinition(t *testing.T) {
	mock := New(t)
	def := mock.Mock("PUT", "/things/{id}").
		WithBodyEquals("x").
		WithExpr(`method == "PUT"`).
		Times(3).
		RespondServerError("boom").
		Definition()

	require.Len(t, def.Matcher, 1)
	assert.Equal(t, "PUT", def.Matcher[0].Method)
	assert.Equal(t, "/things/{id}", def.Matcher[0].Path)
	assert.Equal(t, "x", def.Matcher[0].BodyEquals)
	require.NotNil(t, def.Limiter)
	require.NotNil(t, def.Limiter.Times)
	assert.Equal(t, 3, *def.Limiter.Times)
	assert.Equal(t, http.StatusInternalServerError, def.Response.StatusCode)
	assert.JSONEq(t, `{"error":"boom"}`, def.Response.Body)
	require.NoError(t, def.Validate())

	assert.Nil(t, mock.Mock("GET", "/").Definition().Limiter)
}

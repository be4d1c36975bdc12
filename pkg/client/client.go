// Package client is a Go client for the httpmock control plane.
//
// A test registers expectations, exercises the code under test against the
// mock server and then inspects what was received:
//
//	c := client.New("http://127.0.0.1:8082")
//	_, err := c.Register(ctx, &expectation.Definition{
//		Matcher:  []expectation.Predicate{{Method: "GET", Path: "/foo"}},
//		Response: &expectation.Response{Body: "fake body"},
//	})
//	...
//	rr, err := c.Latest(ctx)
//	req, err := rr.HTTPRequest()
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getmockd/httpmock/pkg/expectation"
	"github.com/getmockd/httpmock/pkg/wire"
)

// Errors returned by the client.
var (
	// ErrProtocol means the server answered something other than a valid
	// control-plane response: an unexpected status, a non-text content type
	// or an undecodable body.
	ErrProtocol = errors.New("unexpected control plane response")

	// ErrNotFound means the requested log position holds no request. It is
	// always wrapped together with ErrProtocol.
	ErrNotFound = errors.New("recorded request not found")

	// ErrRejected means the server refused a registration. The server's
	// reason is wrapped alongside when it is one of the wire.Err* values.
	ErrRejected = errors.New("expectation rejected")
)

var rejectionReasons = []error{
	wire.ErrMatcherInvalid,
	wire.ErrResponseMissing,
	wire.ErrResponseInvalid,
	wire.ErrLimiterInvalid,
}

const maxResponseSize = 64 << 20

// Client talks to one mock server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a client for the mock server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server URL the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Register installs an expectation and returns its id.
func (c *Client) Register(ctx context.Context, def *expectation.Definition) (string, error) {
	form, err := wire.EncodeRegistration(def)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/_expectation", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusCreated:
		return resp.Header.Get(wire.ExpectationIDHeader), nil
	case http.StatusExpectationFailed:
		body, _ := readLimited(resp.Body)
		return "", rejection(strings.TrimSpace(string(body)))
	default:
		return "", fmt.Errorf("%w: register: status %d", ErrProtocol, resp.StatusCode)
	}
}

func rejection(message string) error {
	for _, reason := range rejectionReasons {
		if reason.Error() == message {
			return fmt.Errorf("%w: %w", ErrRejected, reason)
		}
	}
	return fmt.Errorf("%w: %s", ErrRejected, message)
}

// Reset clears all expectations and recorded requests.
func (c *Client) Reset(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodDelete, "/_all")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: reset: status %d", ErrProtocol, resp.StatusCode)
	}
	return nil
}

// Count returns the number of recorded requests.
func (c *Client) Count(ctx context.Context) (int, error) {
	body, err := c.text(ctx, http.MethodGet, "/_request/count")
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(body)))
	if err != nil {
		return 0, fmt.Errorf("%w: count %q: %w", ErrProtocol, body, err)
	}
	return n, nil
}

// First returns the oldest recorded request.
func (c *Client) First(ctx context.Context) (*wire.RecordedRequest, error) {
	return c.recorded(ctx, http.MethodGet, "first")
}

// Last returns the newest recorded request.
func (c *Client) Last(ctx context.Context) (*wire.RecordedRequest, error) {
	return c.recorded(ctx, http.MethodGet, "last")
}

// Latest is an alias of Last.
func (c *Client) Latest(ctx context.Context) (*wire.RecordedRequest, error) {
	return c.recorded(ctx, http.MethodGet, "latest")
}

// At returns the request at zero-based position n, oldest first.
func (c *Client) At(ctx context.Context, n int) (*wire.RecordedRequest, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: position %d", ErrNotFound, n)
	}
	return c.recorded(ctx, http.MethodGet, strconv.Itoa(n))
}

// Shift removes and returns the oldest recorded request.
func (c *Client) Shift(ctx context.Context) (*wire.RecordedRequest, error) {
	return c.recorded(ctx, http.MethodDelete, "first")
}

// Pop removes and returns the newest recorded request.
func (c *Client) Pop(ctx context.Context) (*wire.RecordedRequest, error) {
	return c.recorded(ctx, http.MethodDelete, "last")
}

// LatestRequest returns the newest recorded request as an *http.Request.
func (c *Client) LatestRequest(ctx context.Context) (*http.Request, error) {
	rr, err := c.Latest(ctx)
	if err != nil {
		return nil, err
	}
	return rr.HTTPRequest()
}

func (c *Client) recorded(ctx context.Context, method, position string) (*wire.RecordedRequest, error) {
	body, err := c.text(ctx, method, "/_request/"+position)
	if err != nil {
		return nil, err
	}
	rr, err := wire.DecodeRecordedRequest(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	return rr, nil
}

// text performs a control request that must answer 200 with a text/plain body.
func (c *Client) text(ctx context.Context, method, path string) ([]byte, error) {
	resp, err := c.do(ctx, method, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %w: %s %s", ErrProtocol, ErrNotFound, method, path)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s %s: status %d", ErrProtocol, method, path, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		return nil, fmt.Errorf("%w: %s %s: content type %q", ErrProtocol, method, path, ct)
	}

	body, err := readLimited(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func readLimited(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxResponseSize))
}

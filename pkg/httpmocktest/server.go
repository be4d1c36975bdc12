package httpmocktest

import (
	"context"
	"sync"
	"testing"

	"github.com/getmockd/httpmock/internal/matching"
	"github.com/getmockd/httpmock/pkg/client"
	"github.com/getmockd/httpmock/pkg/config"
	"github.com/getmockd/httpmock/pkg/engine"
	"github.com/getmockd/httpmock/pkg/expectation"
)

// MockServer is a test helper running an httpmock server in-process.
// It provides a fluent API for configuring expectations and assertions.
type MockServer struct {
	t       testing.TB
	server  *engine.Server
	client  *client.Client
	mu      sync.Mutex
	pending []*expectation.Definition
	started bool
	baseURL string
}

// New creates a new mock server for testing.
// The mock server is stopped automatically when the test completes.
func New(t testing.TB) *MockServer {
	t.Helper()
	m := &MockServer{t: t}
	t.Cleanup(m.Stop)
	return m
}

// Start starts the mock server on a free loopback port, registers the
// expectations configured so far and returns the base URL.
func (m *MockServer) Start() string {
	m.t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return m.baseURL
	}

	cfg := config.DefaultServerConfiguration()
	cfg.Port = 0
	m.server = engine.NewServer(cfg)
	if err := m.server.Start(); err != nil {
		m.t.Fatalf("failed to start mock server: %v", err)
	}
	m.baseURL = m.server.URL()
	m.client = client.New(m.baseURL)
	m.started = true

	for _, def := range m.pending {
		m.register(def)
	}
	m.pending = nil

	return m.baseURL
}

// Stop stops the mock server. It is safe to call more than once.
func (m *MockServer) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server != nil {
		_ = m.server.Stop()
	}
	m.started = false
}

// URL returns the base URL of the mock server.
// Returns empty string if the server is not started.
func (m *MockServer) URL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baseURL
}

// Mock starts an expectation for method and path and returns a builder for
// it. An empty method matches any method; path may contain {name} segments.
// Expectations registered later take precedence over earlier ones.
//
// Example:
//
//	mock.Mock("GET", "/users/{id}").
//	    WithStatus(200).
//	    WithJSON(map[string]string{"id": "123"}).
//	    Reply()
func (m *MockServer) Mock(method, path string) *MockBuilder {
	return &MockBuilder{
		server: m,
		predicate: expectation.Predicate{
			Method: method,
			Path:   path,
		},
		response: expectation.Response{},
	}
}

// add registers def now when the server runs, or on Start otherwise.
func (m *MockServer) add(def *expectation.Definition) {
	m.t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		m.pending = append(m.pending, def)
		return
	}
	m.register(def)
}

func (m *MockServer) register(def *expectation.Definition) {
	m.t.Helper()
	if _, err := m.client.Register(context.Background(), def); err != nil {
		m.t.Errorf("failed to register expectation: %v", err)
	}
}

// Reset clears all expectations and recorded requests.
// Use this between test cases to start fresh.
func (m *MockServer) Reset() {
	m.t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
	if m.client != nil {
		if err := m.client.Reset(context.Background()); err != nil {
			m.t.Errorf("failed to reset mock server: %v", err)
		}
	}
}

// Requests returns all recorded requests, oldest first.
func (m *MockServer) Requests() []RecordedRequest {
	m.mu.Lock()
	srv := m.server
	m.mu.Unlock()
	if srv == nil {
		return nil
	}

	entries := srv.Requests().Entries()
	result := make([]RecordedRequest, len(entries))
	for i, e := range entries {
		result[i] = newRecordedRequest(e)
	}
	return result
}

// LastRequest returns the newest recorded request, failing the test when
// there is none.
func (m *MockServer) LastRequest() *RecordedRequest {
	m.t.Helper()

	reqs := m.Requests()
	if len(reqs) == 0 {
		m.t.Fatalf("no request was recorded")
		return nil
	}
	return &reqs[len(reqs)-1]
}

// AssertCalled asserts that an endpoint was called at least once.
func (m *MockServer) AssertCalled(t testing.TB, method, path string) {
	t.Helper()

	if m.countCalls(method, path) == 0 {
		t.Errorf("expected %s %s to be called, but it was not called", method, path)
	}
}

// AssertCalledTimes asserts that an endpoint was called exactly n times.
func (m *MockServer) AssertCalledTimes(t testing.TB, method, path string, times int) {
	t.Helper()

	count := m.countCalls(method, path)
	if count != times {
		t.Errorf("expected %s %s to be called %d times, but was called %d times",
			method, path, times, count)
	}
}

// AssertNotCalled asserts that an endpoint was not called.
func (m *MockServer) AssertNotCalled(t testing.TB, method, path string) {
	t.Helper()

	if count := m.countCalls(method, path); count > 0 {
		t.Errorf("expected %s %s to not be called, but it was called %d times",
			method, path, count)
	}
}

// countCalls counts recorded requests with method and a path matching path,
// which may contain {name} segments.
func (m *MockServer) countCalls(method, path string) int {
	count := 0
	for _, r := range m.Requests() {
		if method != "" && r.Method != method {
			continue
		}
		if matching.MatchPath(path, r.Path) {
			count++
		}
	}
	return count
}

// Client returns a control-plane client for the running server.
func (m *MockServer) Client() *client.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client
}

// Server returns the underlying engine.Server for advanced use cases.
// Most tests should not need this.
func (m *MockServer) Server() *engine.Server {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.server
}

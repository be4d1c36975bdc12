package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/getmockd/httpmock/pkg/config"
	"github.com/getmockd/httpmock/pkg/expectation"
	"github.com/getmockd/httpmock/pkg/logging"
	"github.com/getmockd/httpmock/pkg/metrics"
	"github.com/getmockd/httpmock/pkg/requestlog"
)

// shutdownTimeout bounds graceful shutdown of both listeners.
const shutdownTimeout = 5 * time.Second

// Server is one mock server: an expectation stack, a request log and the
// HTTP listener that serves them.
type Server struct {
	cfg          *config.ServerConfiguration
	expectations *expectation.Stack
	requests     *requestlog.Log
	handler      *Handler
	metrics      *metrics.Collector
	log          *slog.Logger
	version      string

	mu            sync.RWMutex
	httpServer    *http.Server
	metricsServer *http.Server
	listener      net.Listener
	running       bool
	startTime     time.Time
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the operational logger for the server.
// If not set, logging is disabled.
func WithLogger(log *slog.Logger) ServerOption {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics records server metrics on c instead of a fresh collector.
func WithMetrics(c *metrics.Collector) ServerOption {
	return func(s *Server) {
		if c != nil {
			s.metrics = c
		}
	}
}

// WithVersion sets the version reported in build info metrics.
func WithVersion(version string) ServerOption {
	return func(s *Server) {
		s.version = version
	}
}

// NewServer creates a Server. A nil cfg uses the defaults.
func NewServer(cfg *config.ServerConfiguration, opts ...ServerOption) *Server {
	if cfg == nil {
		cfg = config.DefaultServerConfiguration()
	}

	s := &Server{
		cfg:          cfg,
		expectations: expectation.NewStack(),
		requests:     requestlog.New(cfg.MaxLogEntries),
		log:          logging.Nop(),
		version:      "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	s.metrics.SetBuildInfo(s.version)

	s.handler = NewHandler(s.expectations, s.requests,
		WithHandlerLogger(s.log.With("component", "handler")),
		WithHandlerMetrics(s.metrics),
		WithMaxBodySize(cfg.MaxBodySize),
	)
	return s
}

// Start binds the listener and serves in the background. Port 0 picks a
// free port; URL reports the bound address.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("server is already running")
	}

	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr(), err)
	}

	var metricsLn net.Listener
	if s.cfg.MetricsAddr != "" {
		metricsLn, err = net.Listen("tcp", s.cfg.MetricsAddr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("failed to listen on metrics address %s: %w", s.cfg.MetricsAddr, err)
		}
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeoutDuration(),
		WriteTimeout: s.cfg.WriteTimeoutDuration(),
		ErrorLog:     slog.NewLogLogger(s.log.Handler(), slog.LevelWarn),
	}

	s.log.Info("starting HTTP server", "addr", ln.Addr().String())
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server error", "error", err)
		}
	}()

	if metricsLn != nil {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", s.metrics.Handler())
		s.metricsServer = &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		s.log.Info("starting metrics server", "addr", metricsLn.Addr().String())
		go func() {
			if err := s.metricsServer.Serve(metricsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("metrics server error", "error", err)
			}
		}()
	}

	s.running = true
	s.startTime = time.Now()
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
		}
	}
	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
		}
		s.metricsServer = nil
	}

	s.running = false
	s.log.Info("server stopped")
	return errors.Join(errs...)
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime returns the server uptime in seconds.
func (s *Server) Uptime() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return int(time.Since(s.startTime).Seconds())
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Port returns the bound port, or 0 before Start.
func (s *Server) Port() int {
	if tcp, ok := s.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// URL returns the base URL clients should use, e.g. "http://127.0.0.1:8082".
func (s *Server) URL() string {
	addr := s.Addr()
	if addr == nil {
		return ""
	}
	host := s.cfg.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(host, fmt.Sprint(s.Port())))
}

// Register adds an expectation directly, bypassing the control plane.
func (s *Server) Register(def *expectation.Definition) (string, error) {
	id, err := s.expectations.Register(def)
	if err != nil {
		return "", err
	}
	s.metrics.ExpectationsActive.Set(float64(s.expectations.Len()))
	return id, nil
}

// Seed registers defs in order. It stops at the first failure.
func (s *Server) Seed(defs []*expectation.Definition) error {
	for i, def := range defs {
		if _, err := s.Register(def); err != nil {
			return fmt.Errorf("expectation %d: %w", i, err)
		}
	}
	if len(defs) > 0 {
		s.log.Info("expectations seeded", "count", len(defs))
	}
	return nil
}

// Reset clears the expectation stack and the request log.
func (s *Server) Reset() {
	s.expectations.Clear()
	s.requests.Clear()
	s.metrics.ExpectationsActive.Set(0)
	s.metrics.RequestLogEntries.Set(0)
}

// Config returns the server configuration.
func (s *Server) Config() *config.ServerConfiguration {
	return s.cfg
}

// Handler returns the HTTP handler serving the mock port.
func (s *Server) Handler() *Handler {
	return s.handler
}

// Expectations returns the expectation stack.
func (s *Server) Expectations() *expectation.Stack {
	return s.expectations
}

// Requests returns the request log.
func (s *Server) Requests() *requestlog.Log {
	return s.requests
}

// Metrics returns the server's metrics collector.
func (s *Server) Metrics() *metrics.Collector {
	return s.metrics
}

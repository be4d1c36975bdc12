// Package metrics exposes Prometheus metrics for the mock server.
//
// Each Collector owns its own registry. Metrics are served from a dedicated
// listener, never from the mock port, whose URL space belongs to
// application traffic.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dispatch outcomes.
const (
	OutcomeMatched   = "matched"
	OutcomeUnmatched = "unmatched"
)

// Registration results.
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
)

// Collector holds the server's metrics.
type Collector struct {
	registry *prometheus.Registry

	// DispatchesTotal counts application requests by outcome.
	DispatchesTotal *prometheus.CounterVec

	// DispatchDuration measures application request handling in seconds,
	// including any configured response delay.
	DispatchDuration *prometheus.HistogramVec

	// RegistrationsTotal counts expectation registrations by result.
	RegistrationsTotal *prometheus.CounterVec

	// ControlRequestsTotal counts control-plane requests by operation.
	ControlRequestsTotal *prometheus.CounterVec

	// ExpectationsActive is the number of expectations on the stack.
	ExpectationsActive prometheus.Gauge

	// RequestLogEntries is the number of recorded requests.
	RequestLogEntries prometheus.Gauge

	// BuildInfo is set to 1 with the build version as a label.
	BuildInfo *prometheus.GaugeVec
}

// New creates a Collector with a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		DispatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "httpmock_dispatches_total",
				Help: "Total number of application requests dispatched",
			},
			[]string{"method", "outcome"},
		),
		DispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "httpmock_dispatch_duration_seconds",
				Help:    "Application request handling duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"outcome"},
		),
		RegistrationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "httpmock_registrations_total",
				Help: "Total number of expectation registrations",
			},
			[]string{"result"},
		),
		ControlRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "httpmock_control_requests_total",
				Help: "Total number of control-plane requests",
			},
			[]string{"operation"},
		),
		ExpectationsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "httpmock_expectations_active",
			Help: "Number of expectations currently registered",
		}),
		RequestLogEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "httpmock_request_log_entries",
			Help: "Number of requests currently recorded",
		}),
		BuildInfo: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "httpmock_build_info",
				Help: "Build information",
			},
			[]string{"version"},
		),
	}
}

// SetBuildInfo records the running version.
func (c *Collector) SetBuildInfo(version string) {
	c.BuildInfo.WithLabelValues(version).Set(1)
}

// ObserveDispatch records one application request.
func (c *Collector) ObserveDispatch(method, outcome string, started time.Time) {
	c.DispatchesTotal.WithLabelValues(method, outcome).Inc()
	c.DispatchDuration.WithLabelValues(outcome).Observe(time.Since(started).Seconds())
}

// ObserveRegistration records one registration attempt.
func (c *Collector) ObserveRegistration(accepted bool) {
	result := ResultRejected
	if accepted {
		result = ResultAccepted
	}
	c.RegistrationsTotal.WithLabelValues(result).Inc()
}

// ObserveControl records one control-plane request.
func (c *Collector) ObserveControl(operation string) {
	c.ControlRequestsTotal.WithLabelValues(operation).Inc()
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

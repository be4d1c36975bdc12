package config

import (
	"net"
	"strconv"
	"time"
)

// ServerConfiguration defines the mock server runtime settings.
type ServerConfiguration struct {
	// Host is the interface to bind. Empty binds all interfaces.
	Host string `json:"host,omitempty" yaml:"host,omitempty" mapstructure:"host"`
	// Port is the mock server port (0 = pick a free port)
	Port int `json:"port" yaml:"port" mapstructure:"port"`
	// MaxLogEntries caps the request log (0 = unlimited)
	MaxLogEntries int `json:"maxLogEntries,omitempty" yaml:"maxLogEntries,omitempty" mapstructure:"max-log-entries"`
	// MaxBodySize is the maximum request body size in bytes
	MaxBodySize int64 `json:"maxBodySize,omitempty" yaml:"maxBodySize,omitempty" mapstructure:"max-body-size"`
	// ReadTimeout is the HTTP read timeout in seconds
	ReadTimeout int `json:"readTimeout,omitempty" yaml:"readTimeout,omitempty" mapstructure:"read-timeout"`
	// WriteTimeout is the HTTP write timeout in seconds
	WriteTimeout int `json:"writeTimeout,omitempty" yaml:"writeTimeout,omitempty" mapstructure:"write-timeout"`
	// MetricsAddr is the listen address of the Prometheus endpoint (empty = disabled)
	MetricsAddr string `json:"metricsAddr,omitempty" yaml:"metricsAddr,omitempty" mapstructure:"metrics-addr"`
	// Expectations lists seed files or globs registered at startup, in order
	Expectations []string `json:"expectations,omitempty" yaml:"expectations,omitempty" mapstructure:"expectations"`
}

// DefaultServerConfiguration returns the settings used when nothing is configured.
func DefaultServerConfiguration() *ServerConfiguration {
	return &ServerConfiguration{
		Host:          "127.0.0.1",
		Port:          8082,
		MaxLogEntries: 0,
		MaxBodySize:   10 * 1024 * 1024, // 10MB
		ReadTimeout:   30,
		WriteTimeout:  30,
	}
}

// Addr returns the host:port listen address.
func (s *ServerConfiguration) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ReadTimeoutDuration returns ReadTimeout as a duration.
func (s *ServerConfiguration) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns WriteTimeout as a duration.
func (s *ServerConfiguration) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

package config

import (
	"fmt"
	"net"
)

// ValidationError describes an invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks that the configuration can start a server.
func (s *ServerConfiguration) Validate() error {
	if s.Port < 0 || s.Port >= 65536 {
		return &ValidationError{Field: "port", Message: "port must be between 0 and 65535"}
	}

	if s.MaxLogEntries < 0 {
		return &ValidationError{Field: "maxLogEntries", Message: "maxLogEntries must be >= 0"}
	}

	if s.MaxBodySize <= 0 {
		return &ValidationError{Field: "maxBodySize", Message: "maxBodySize must be > 0"}
	}

	if s.ReadTimeout < 0 {
		return &ValidationError{Field: "readTimeout", Message: "readTimeout must be >= 0"}
	}

	if s.WriteTimeout < 0 {
		return &ValidationError{Field: "writeTimeout", Message: "writeTimeout must be >= 0"}
	}

	if s.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(s.MetricsAddr); err != nil {
			return &ValidationError{Field: "metricsAddr", Message: "metricsAddr must be host:port"}
		}
		if s.MetricsAddr == s.Addr() {
			return &ValidationError{Field: "metricsAddr", Message: "metricsAddr must differ from the mock server address"}
		}
	}

	return nil
}

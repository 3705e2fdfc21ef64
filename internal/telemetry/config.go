package telemetry

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/fyrsmithlabs/vectord/internal/config"
)

// Protocols accepted for OTLP export.
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http/protobuf"
)

// Config controls OTLP export. Spans and propagation work with export
// disabled; only the exporters are skipped.
type Config struct {
	Enabled        bool
	Endpoint       string
	Protocol       string
	Insecure       bool
	ServiceName    string
	ServiceVersion string

	// SampleRate is the root-span sampling ratio in [0, 1]. Child spans
	// follow their parent.
	SampleRate float64

	MetricInterval  time.Duration
	ShutdownTimeout time.Duration

	// Logs exports log records through the otelzap bridge. Only the gRPC
	// protocol carries logs.
	Logs bool
}

// NewDefaultConfig returns defaults for a local collector.
func NewDefaultConfig() *Config {
	return &Config{
		Endpoint:        "localhost:4317",
		Protocol:        ProtocolGRPC,
		Insecure:        true,
		ServiceName:     "vectord",
		ServiceVersion:  "dev",
		SampleRate:      1.0,
		MetricInterval:  15 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		Logs:            true,
	}
}

// Validate checks the config. A disabled config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return errors.New("telemetry endpoint is required when enabled")
	}
	if c.ServiceName == "" {
		return errors.New("telemetry service name is required when enabled")
	}
	switch c.Protocol {
	case ProtocolGRPC, ProtocolHTTP:
	default:
		return fmt.Errorf("telemetry protocol must be %s or %s, got %q", ProtocolGRPC, ProtocolHTTP, c.Protocol)
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("telemetry sample rate must be within [0, 1], got %g", c.SampleRate)
	}
	if c.MetricInterval <= 0 {
		return errors.New("telemetry metric interval must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("telemetry shutdown timeout must be positive")
	}
	// Plaintext export is only allowed to a collector on this host.
	if c.Insecure && !isLoopback(c.Endpoint) {
		return fmt.Errorf("insecure export to non-local endpoint %q; set telemetry.insecure=false", c.Endpoint)
	}
	return nil
}

// isLoopback reports whether endpoint (host, host:port or URL) names
// this machine.
func isLoopback(endpoint string) bool {
	host := stripScheme(endpoint)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// stripScheme removes http:// or https://; the OTLP exporters take
// host:port.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimPrefix(endpoint, "http://")
}

// FromSettings overlays the file/env telemetry settings on the defaults.
func FromSettings(s config.TelemetryConfig, version string) *Config {
	cfg := NewDefaultConfig()
	cfg.Enabled = s.Enabled
	if s.Endpoint != "" {
		cfg.Endpoint = s.Endpoint
	}
	if s.Protocol != "" {
		cfg.Protocol = s.Protocol
	}
	cfg.Insecure = s.Insecure
	cfg.SampleRate = s.SampleRate
	if version != "" {
		cfg.ServiceVersion = version
	}
	return cfg
}

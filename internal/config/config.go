// Package config provides configuration loading for vectord.
//
// Configuration is read from an optional YAML file and overridden by
// VECTORD_* environment variables. See LoadWithFile.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds the complete vectord configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server" json:"server"`
	Admission AdmissionConfig `koanf:"admission" json:"admission"`
	Engine    EngineConfig    `koanf:"engine" json:"engine"`
	Logging   LoggingConfig   `koanf:"logging" json:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry" json:"telemetry"`
}

// ServerConfig holds the gRPC and HTTP listener configuration.
type ServerConfig struct {
	Host            string   `koanf:"host" json:"host"`
	GRPCPort        int      `koanf:"grpc_port" json:"grpc_port"`
	HTTPPort        int      `koanf:"http_port" json:"http_port"`
	MaxMessageSize  ByteSize `koanf:"max_message_size" json:"max_message_size"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout" json:"shutdown_timeout"`
	// PartialEgress keeps well-formed fields when another result field is
	// corrupt instead of failing the whole response.
	PartialEgress bool `koanf:"partial_egress" json:"partial_egress"`
}

// AdmissionConfig bounds the total size of in-flight insert payloads.
type AdmissionConfig struct {
	Budget            ByteSize `koanf:"budget" json:"budget"`
	WaitTimeout       Duration `koanf:"wait_timeout" json:"wait_timeout"`
	IngestBytesPerSec ByteSize `koanf:"ingest_bytes_per_sec" json:"ingest_bytes_per_sec"`
}

// EngineConfig selects and configures the execution engine.
type EngineConfig struct {
	Provider        string       `koanf:"provider" json:"provider"` // "memory" or "qdrant"
	MaxTopK         int64        `koanf:"max_topk" json:"max_topk"`
	SegmentRowLimit int          `koanf:"segment_row_limit" json:"segment_row_limit"`
	Qdrant          QdrantConfig `koanf:"qdrant" json:"qdrant"`
}

// QdrantConfig holds the Qdrant engine connection settings.
type QdrantConfig struct {
	Host           string   `koanf:"host" json:"host"`
	Port           int      `koanf:"port" json:"port"`
	APIKey         Secret   `koanf:"api_key" json:"api_key"`
	UseTLS         bool     `koanf:"use_tls" json:"use_tls"`
	RequestTimeout Duration `koanf:"request_timeout" json:"request_timeout"`
	MaxRetries     int      `koanf:"max_retries" json:"max_retries"`
}

// LoggingConfig is the subset of logging settings exposed in config files.
type LoggingConfig struct {
	Level  string `koanf:"level" json:"level"`
	Format string `koanf:"format" json:"format"`
}

// TelemetryConfig is the subset of OpenTelemetry settings exposed in config files.
type TelemetryConfig struct {
	Enabled    bool    `koanf:"enabled" json:"enabled"`
	Endpoint   string  `koanf:"endpoint" json:"endpoint"`
	Protocol   string  `koanf:"protocol" json:"protocol"` // "grpc" or "http/protobuf"
	Insecure   bool    `koanf:"insecure" json:"insecure"`
	SampleRate float64 `koanf:"sample_rate" json:"sample_rate"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			GRPCPort:        19530,
			HTTPPort:        19121,
			MaxMessageSize:  256 * MiB,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Admission: AdmissionConfig{
			Budget:      256 * MiB,
			WaitTimeout: Duration(30 * time.Second),
		},
		Engine: EngineConfig{
			Provider:        "memory",
			MaxTopK:         16384,
			SegmentRowLimit: 4096,
			Qdrant: QdrantConfig{
				Host:           "localhost",
				Port:           6334,
				RequestTimeout: Duration(30 * time.Second),
				MaxRetries:     3,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Endpoint:   "localhost:4317",
			Protocol:   "grpc",
			Insecure:   true,
			SampleRate: 1.0,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.GRPCPort < 1 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("invalid grpc port: %d (must be 1-65535)", c.Server.GRPCPort)
	}
	if c.Server.HTTPPort < 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port: %d (must be 0-65535)", c.Server.HTTPPort)
	}
	if c.Server.HTTPPort != 0 && c.Server.HTTPPort == c.Server.GRPCPort {
		return errors.New("grpc and http ports must differ")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Server.MaxMessageSize <= 0 {
		return errors.New("max message size must be positive")
	}

	// An insert of exactly budget bytes can never be admitted, so a budget
	// of 1 admits nothing.
	if c.Admission.Budget <= 1 {
		return fmt.Errorf("admission budget must be greater than 1 byte, got %d", c.Admission.Budget)
	}
	if c.Admission.IngestBytesPerSec < 0 {
		return errors.New("admission ingest_bytes_per_sec cannot be negative")
	}

	switch c.Engine.Provider {
	case "memory":
	case "qdrant":
		if c.Engine.Qdrant.Host == "" {
			return errors.New("engine.qdrant.host is required for qdrant provider")
		}
		if c.Engine.Qdrant.Port < 1 || c.Engine.Qdrant.Port > 65535 {
			return fmt.Errorf("invalid qdrant port: %d", c.Engine.Qdrant.Port)
		}
	default:
		return fmt.Errorf("unsupported engine provider: %q (must be memory or qdrant)", c.Engine.Provider)
	}
	if c.Engine.MaxTopK <= 0 {
		return errors.New("engine.max_topk must be positive")
	}
	if c.Engine.SegmentRowLimit <= 0 {
		return errors.New("engine.segment_row_limit must be positive")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("unsupported log format: %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return errors.New("telemetry.endpoint is required when telemetry is enabled")
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			return fmt.Errorf("telemetry.sample_rate must be between 0 and 1, got %f", c.Telemetry.SampleRate)
		}
	}

	return nil
}

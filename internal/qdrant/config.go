package qdrant

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
)

// ClientConfig configures the connection to Qdrant's gRPC port (6334,
// not the 6333 REST port). Zero fields take the defaults.
type ClientConfig struct {
	Host   string
	Port   int
	UseTLS bool
	APIKey string

	MaxMessageSize int
	DialTimeout    time.Duration
	RequestTimeout time.Duration

	// RetryAttempts bounds retries of transient failures; the first call
	// is not counted. Negative disables retries.
	RetryAttempts int
	RetryInterval time.Duration

	// dialOptions are appended last; tests use them to dial bufconn.
	dialOptions []grpc.DialOption
}

const (
	defaultPort           = 6334
	defaultMaxMessageSize = 64 << 20
	defaultDialTimeout    = 5 * time.Second
	defaultRequestTimeout = 30 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryInterval  = 200 * time.Millisecond
)

func (c ClientConfig) withDefaults() ClientConfig {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = defaultDialTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = defaultRetryAttempts
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = defaultRetryInterval
	}
	return c
}

func (c ClientConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("qdrant port %d out of range", c.Port)
	}
	if c.MaxMessageSize < 0 {
		return errors.New("qdrant max message size must not be negative")
	}
	if c.DialTimeout < 0 || c.RequestTimeout < 0 || c.RetryInterval < 0 {
		return errors.New("qdrant timeouts must not be negative")
	}
	return nil
}

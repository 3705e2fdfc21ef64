package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/config"
	"github.com/fyrsmithlabs/vectord/internal/logging"
	vqdrant "github.com/fyrsmithlabs/vectord/internal/qdrant"
)

// New creates the engine selected by cfg.Provider:
//   - "memory" (default): the in-process engine, no external dependencies
//   - "qdrant": collections stored on a Qdrant server over gRPC
//
// version is reported by the "version" command.
func New(ctx context.Context, cfg config.EngineConfig, version string, logger *logging.Logger) (Engine, error) {
	switch cfg.Provider {
	case "memory", "":
		return NewMemory(MemoryConfig{
			MaxTopK:         cfg.MaxTopK,
			SegmentRowLimit: cfg.SegmentRowLimit,
			Version:         version,
		}, logger), nil

	case "qdrant":
		clientCfg := &vqdrant.ClientConfig{
			Host:           cfg.Qdrant.Host,
			Port:           cfg.Qdrant.Port,
			UseTLS:         cfg.Qdrant.UseTLS,
			APIKey:         cfg.Qdrant.APIKey.Value(),
			RequestTimeout: cfg.Qdrant.RequestTimeout.Duration(),
			RetryAttempts:  cfg.Qdrant.MaxRetries,
		}
		client, err := vqdrant.NewGRPCClient(clientCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to qdrant: %w", err)
		}
		e, err := NewQdrant(ctx, client, QdrantConfig{MaxTopK: cfg.MaxTopK, Version: version}, logger)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		logger.Info(ctx, "qdrant engine ready",
			zap.String("host", clientCfg.Host),
			zap.Int("port", clientCfg.Port),
			zap.Bool("tls", clientCfg.UseTLS),
			logging.Secret("api_key", cfg.Qdrant.APIKey))
		return e, nil

	default:
		return nil, fmt.Errorf("unsupported engine provider: %s (supported: memory, qdrant)", cfg.Provider)
	}
}

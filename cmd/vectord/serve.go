package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/vectord/internal/admission"
	"github.com/fyrsmithlabs/vectord/internal/config"
	"github.com/fyrsmithlabs/vectord/internal/engine"
	"github.com/fyrsmithlabs/vectord/internal/grpcapi"
	httpserver "github.com/fyrsmithlabs/vectord/internal/http"
	"github.com/fyrsmithlabs/vectord/internal/logging"
	"github.com/fyrsmithlabs/vectord/internal/reqctx"
	"github.com/fyrsmithlabs/vectord/internal/telemetry"
)

const instrumentationName = "github.com/fyrsmithlabs/vectord"

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gRPC server",
		Long: `Start the VectorService gRPC server.

Configuration is read from --config (default ~/.config/vectord/config.yaml)
and overridden by VECTORD_* environment variables. SIGINT or SIGTERM
triggers a graceful shutdown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWithFile(configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config file")
	return cmd
}

// run starts vectord and blocks until ctx is cancelled.
//
// Startup order:
//  1. Telemetry, so the logger can bridge into its log provider
//  2. Logger
//  3. Engine
//  4. Request registry and admission controller
//  5. gRPC server, and the HTTP server when http_port is set
//
// Both servers shut down gracefully on cancellation.
func run(ctx context.Context, cfg *config.Config) error {
	logCfg, err := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("invalid logging configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "telemetry shutdown: %v\n", err)
		}
	}()

	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	instanceID := uuid.NewString()
	logger = logger.With(zap.String("instance_id", instanceID))
	ctx = logging.WithLogger(ctx, logger)

	grpcAddr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.GRPCPort))
	logger.Info(ctx, "starting vectord",
		zap.String("version", version),
		zap.String("engine", cfg.Engine.Provider),
		zap.String("grpc_addr", grpcAddr),
		zap.Int("http_port", cfg.Server.HTTPPort),
		zap.Bool("telemetry", tel.IsEnabled()))

	eng, err := engine.New(ctx, cfg.Engine, version, logger.Named("engine"))
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Warn(ctx, "engine close failed", zap.Error(err))
		}
	}()

	registry := reqctx.NewRegistry(tel.Tracer(instrumentationName), tel.Propagator(), logger)

	ctrl, err := admission.New(admission.Config{
		Budget:      cfg.Admission.Budget.Int64(),
		WaitTimeout: cfg.Admission.WaitTimeout.Duration(),
		BytesPerSec: cfg.Admission.IngestBytesPerSec.Int64(),
	}, logger.Named("admission"))
	if err != nil {
		return fmt.Errorf("failed to initialize admission: %w", err)
	}

	handler, err := grpcapi.NewHandler(grpcapi.Config{
		Engine:        eng,
		Registry:      registry,
		Admission:     ctrl,
		Logger:        logger,
		PartialEgress: cfg.Server.PartialEgress,
	})
	if err != nil {
		return err
	}

	meter := tel.Meter(instrumentationName)
	grpcServer, err := grpcapi.NewServer(grpcapi.ServerConfig{
		Addr:            grpcAddr,
		MaxMessageSize:  int(cfg.Server.MaxMessageSize.Int64()),
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration(),
	}, handler, registry, grpcapi.NewRPCMetrics(meter, logger), logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return grpcServer.Start(gctx)
	})

	if cfg.Server.HTTPPort != 0 {
		httpServer, err := httpserver.NewServer(httpserver.Deps{
			Engine:     eng,
			Registry:   registry,
			Admission:  ctrl,
			Telemetry:  tel,
			Metrics:    httpserver.NewHTTPMetrics(meter, logger),
			Version:    version,
			InstanceID: instanceID,
		}, logger, &httpserver.Config{
			Host: cfg.Server.Host,
			Port: cfg.Server.HTTPPort,
		})
		if err != nil {
			return err
		}
		g.Go(func() error {
			return httpServer.Start(gctx, cfg.Server.ShutdownTimeout.Duration())
		})
	}

	err = g.Wait()
	if err != nil {
		logger.Error(ctx, "vectord stopped with error", zap.Error(err))
		return err
	}
	logger.Info(ctx, "vectord shutdown complete")
	return nil
}

package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/grpclog"

	"github.com/fyrsmithlabs/vectord/internal/logging"
	"github.com/fyrsmithlabs/vectord/internal/reqctx"
	apiv1 "github.com/fyrsmithlabs/vectord/pkg/api/v1"
)

// ServerConfig configures the gRPC listener.
type ServerConfig struct {
	Addr            string
	MaxMessageSize  int
	ShutdownTimeout time.Duration
}

// Server serves a Handler over gRPC.
type Server struct {
	cfg    ServerConfig
	grpc   *grpc.Server
	logger *logging.Logger
}

// NewServer creates the gRPC server and registers handler under
// VectorService. Calls pass through UnaryInterceptor.
func NewServer(cfg ServerConfig, handler apiv1.VectorServiceServer, registry *reqctx.Registry, metrics *RPCMetrics, logger *logging.Logger) (*Server, error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	if registry == nil {
		return nil, errors.New("request registry is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	grpclog.SetLoggerV2(logger.GRPCLogger())

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(UnaryInterceptor(registry, metrics, logger)),
	}
	if cfg.MaxMessageSize > 0 {
		opts = append(opts,
			grpc.MaxRecvMsgSize(cfg.MaxMessageSize),
			grpc.MaxSendMsgSize(cfg.MaxMessageSize),
		)
	}

	s := &Server{
		cfg:    cfg,
		grpc:   grpc.NewServer(opts...),
		logger: logger.Named("grpc"),
	}
	apiv1.RegisterVectorServiceServer(s.grpc, handler)
	return s, nil
}

// Serve accepts connections on lis until Stop or Shutdown.
func (s *Server) Serve(lis net.Listener) error {
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// Start listens on the configured address and blocks until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", s.cfg.Addr, err)
	}
	s.logger.Info(ctx, "grpc server listening", zap.String("addr", lis.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Serve(lis)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.Shutdown(context.Background())
		return nil
	}
}

// Shutdown stops accepting calls and waits for in-flight calls to finish,
// up to the shutdown timeout. Remaining calls are then cancelled.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info(ctx, "grpc server stopped")
	case <-ctx.Done():
		s.logger.Warn(ctx, "grpc graceful stop timed out, cancelling in-flight calls",
			zap.Duration("timeout", s.cfg.ShutdownTimeout))
		s.grpc.Stop()
	}
}

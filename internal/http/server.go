// Package http serves the operational HTTP endpoints of vectord: liveness,
// readiness, Prometheus metrics and a JSON status summary.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/admission"
	"github.com/fyrsmithlabs/vectord/internal/engine"
	"github.com/fyrsmithlabs/vectord/internal/logging"
	"github.com/fyrsmithlabs/vectord/internal/reqctx"
	"github.com/fyrsmithlabs/vectord/internal/telemetry"
)

// Server provides the HTTP endpoints.
type Server struct {
	echo   *echo.Echo
	deps   Deps
	logger *logging.Logger
	config *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Deps are the components the endpoints report on. Admission and
// Telemetry may be nil.
type Deps struct {
	Engine     engine.Engine
	Registry   *reqctx.Registry
	Admission  *admission.Controller
	Telemetry  *telemetry.Telemetry
	Metrics    *HTTPMetrics
	Version    string
	InstanceID string
}

// readyTimeout bounds the engine probe behind /ready.
const readyTimeout = 2 * time.Second

// NewServer creates a new HTTP server.
func NewServer(deps Deps, logger *logging.Logger, cfg *Config) (*Server, error) {
	if deps.Engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 19121,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if deps.Metrics != nil {
		e.Use(deps.Metrics.MetricsMiddleware())
	}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Debug(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:   e,
		deps:   deps,
		logger: logger.Named("http"),
		config: cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/ready", s.handleReady)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
}

// handleHealth reports process liveness.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleReady reports whether the engine answers its status command.
func (s *Server) handleReady(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readyTimeout)
	defer cancel()

	if _, err := s.deps.Engine.Cmd(ctx, "status"); err != nil {
		s.logger.Warn(ctx, "readiness probe failed", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Reason: err.Error()})
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ready"})
}

// handleStatus summarises the engine, live requests, admission and
// telemetry state.
func (s *Server) handleStatus(c echo.Context) error {
	ctx := c.Request().Context()
	resp := StatusResponse{
		Status:     "ok",
		Version:    s.deps.Version,
		InstanceID: s.deps.InstanceID,
		Services:   map[string]string{"engine": "ok"},
	}

	mode, err := s.deps.Engine.Cmd(ctx, "mode")
	if err != nil {
		resp.Status = "degraded"
		resp.Services["engine"] = err.Error()
	} else {
		resp.Engine = mode
	}
	resp.Counts = CountFromEngine(ctx, s.deps.Engine)

	if s.deps.Registry != nil {
		resp.Counts.ActiveRequests = s.deps.Registry.Len()
	}
	if a := s.deps.Admission; a != nil {
		resp.Admission = &AdmissionStatus{
			BudgetBytes: a.Budget(),
			InUseBytes:  a.InUse(),
		}
	}
	if s.deps.Telemetry != nil {
		h := s.deps.Telemetry.Health()
		switch {
		case !s.deps.Telemetry.IsEnabled() && !h.Degraded:
			resp.Services["telemetry"] = "disabled"
		case h.Degraded:
			resp.Services["telemetry"] = "degraded: " + h.Reason
		default:
			resp.Services["telemetry"] = "ok"
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// Start listens on the configured address and blocks until ctx is
// cancelled, then shuts down within timeout.
func (s *Server) Start(ctx context.Context, timeout time.Duration) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(ctx, "starting http server", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Package server exposes a small status endpoint while a pipeline run is
// active: liveness, the live execution-state snapshot, and prometheus
// metrics. It is read-only; the orchestrator remains the single writer.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/layerrun/internal/pipeline"
)

// StateFunc returns the current execution-state snapshot; nil when the
// run has not started.
type StateFunc func() *pipeline.ExecutionState

// Server serves /healthz, /state and /metrics.
type Server struct {
	echo    *echo.Echo
	listen  string
	logger  *zap.Logger
	stateFn StateFunc
}

// New creates a status server.
func New(listen string, logger *zap.Logger, registry *prometheus.Registry, stateFn StateFunc) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		listen:  listen,
		logger:  logger,
		stateFn: stateFn,
	}

	e.GET("/healthz", s.handleHealth)
	e.GET("/state", s.handleState)
	if registry != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	return s
}

// Handler exposes the underlying mux for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start blocks serving requests until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("status server listening", zap.String("addr", s.listen))
	if err := s.echo.Start(s.listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(c echo.Context) error {
	state := s.stateFn()
	if state == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no run in progress"})
	}
	return c.JSON(http.StatusOK, state)
}

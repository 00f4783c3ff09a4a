// Package httpapi exposes the query pipeline over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/answerforge/answerd/internal/logging"
	"github.com/answerforge/answerd/internal/pipeline"
)

// QueryService answers product-document questions.
type QueryService interface {
	Query(ctx context.Context, query string, opts pipeline.Options) (pipeline.Result, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// QueryTimeout bounds a single query end to end, cancelling
	// outstanding embedding, search and completion calls on expiry.
	QueryTimeout time.Duration `koanf:"query_timeout"`
}

// Server serves the query API.
type Server struct {
	echo     *echo.Echo
	service  QueryService
	logger   *logging.Logger
	metrics  *Metrics
	registry *prometheus.Registry
	config   Config
	defaults pipeline.Options
}

// NewServer creates the HTTP server and registers its routes. defaults
// fill request options the caller leaves unset.
func NewServer(service QueryService, logger *logging.Logger, cfg Config, defaults pipeline.Options) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("query service is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.Port == 0 {
		cfg.Port = 8087
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 60 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogging(logger))

	// Per-server registry so restarts and tests never collide on the
	// global one.
	registry := prometheus.NewRegistry()

	s := &Server{
		echo:     e,
		service:  service,
		logger:   logger,
		metrics:  NewMetrics(registry),
		registry: registry,
		config:   cfg,
		defaults: defaults,
	}
	s.registerRoutes()
	return s, nil
}

// requestLogging logs each request and threads the request id into the
// context so pipeline logs correlate with access logs.
func requestLogging(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := logging.WithRequestID(c.Request().Context(), requestID)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)

			logger.Info(ctx, "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", requestID),
			)
			return err
		}
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/query", s.handleQuery)
}

// QueryRequest is the body for POST /api/v1/query.
type QueryRequest struct {
	Query string `json:"query"`
	pipeline.Options
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if req.Query == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "query is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.config.QueryTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.service.Query(ctx, req.Query, s.mergeOptions(req.Options))
	elapsed := time.Since(start)

	if err != nil {
		// Surface which stage failed, never the internal error payload.
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			s.metrics.observe("unknown", "timeout", elapsed.Seconds(), 0)
			return c.JSON(http.StatusGatewayTimeout, errorResponse{Error: "query timed out"})
		case errors.Is(err, pipeline.ErrRetrieval):
			s.metrics.observe("unknown", "retrieval_error", elapsed.Seconds(), 0)
			return c.JSON(http.StatusBadGateway, errorResponse{Error: pipeline.ErrRetrieval.Error()})
		case errors.Is(err, pipeline.ErrGeneration):
			s.metrics.observe("unknown", "generation_error", elapsed.Seconds(), 0)
			return c.JSON(http.StatusBadGateway, errorResponse{Error: pipeline.ErrGeneration.Error()})
		default:
			s.logger.Error(ctx, "query failed", zap.Error(err))
			s.metrics.observe("unknown", "error", elapsed.Seconds(), 0)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		}
	}

	s.metrics.observe(result.Metadata.Mode, "ok", elapsed.Seconds(), result.Metadata.RetrievedChunks)
	return c.JSON(http.StatusOK, result)
}

// mergeOptions fills fields the request left unset from the server's
// configured defaults. Request values always win, including an explicit
// false on the boolean toggles.
func (s *Server) mergeOptions(opts pipeline.Options) pipeline.Options {
	if opts.RetrievalCount == 0 {
		opts.RetrievalCount = s.defaults.RetrievalCount
	}
	if opts.SimilarityThreshold == 0 {
		opts.SimilarityThreshold = s.defaults.SimilarityThreshold
	}
	if opts.MaxQueries == 0 {
		opts.MaxQueries = s.defaults.MaxQueries
	}
	if opts.FinalChunkCount == 0 {
		opts.FinalChunkCount = s.defaults.FinalChunkCount
	}
	if opts.UseReranking == nil {
		opts.UseReranking = s.defaults.UseReranking
	}
	if opts.UseCompression == nil {
		opts.UseCompression = s.defaults.UseCompression
	}
	if opts.UseMultiQuery == nil {
		opts.UseMultiQuery = s.defaults.UseMultiQuery
	}
	if opts.FormatAsMarkdown == nil {
		opts.FormatAsMarkdown = s.defaults.FormatAsMarkdown
	}
	return opts
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Start begins serving. It blocks until the server stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.echo.Server.ReadHeaderTimeout = 10 * time.Second
	s.logger.Info(context.Background(), "http server starting", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

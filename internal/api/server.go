// Package api serves the fleet snapshot over HTTP as JSON, plus the
// Prometheus metrics endpoint.
package api

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rileyhilliard/gpumon/internal/errors"
	"github.com/rileyhilliard/gpumon/internal/logger"
	"github.com/rileyhilliard/gpumon/internal/metrics"
)

// Server is the read-only HTTP view of a running collector.
type Server struct {
	engine  *gin.Engine
	source  metrics.Source
	metrics http.Handler
	log     logger.Logger
}

// NewServer wires routes for src. metricsHandler may be nil to leave
// /metrics out.
func NewServer(src metrics.Source, metricsHandler http.Handler, log logger.Logger) *Server {
	if log == nil {
		log = logger.Noop()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:  gin.New(),
		source:  src,
		metrics: metricsHandler,
		log:     log.With("component", "api"),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.engine.Use(s.requestLogger())
	s.engine.Use(gin.Recovery())
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.health)

	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics))
	}

	v1 := s.engine.Group("/api/v1")
	{
		v1.GET("/snapshot", s.snapshot)
		v1.GET("/servers", s.listServers)
		v1.GET("/servers/:index", s.getServer)
	}
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Can't listen on "+addr,
			"Pick a free address for api.listen or --listen.")
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.log.Info("serving snapshot on http://%s", ln.Addr())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) health(c *gin.Context) {
	v := s.source.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"servers": len(v.Servers),
		"online":  v.Online(),
	})
}

func (s *Server) snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, ToSnapshotResponse(s.source.Snapshot()))
}

func (s *Server) listServers(c *gin.Context) {
	c.JSON(http.StatusOK, ToSnapshotResponse(s.source.Snapshot()).Servers)
}

func (s *Server) getServer(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "Invalid request",
			Message:   "Server index must be a number, got " + strconv.Quote(c.Param("index")),
			Timestamp: time.Now(),
		})
		return
	}

	v := s.source.Snapshot()
	pos, ok := v.Find(index)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:     "Server not found",
			Message:   "No server with index " + strconv.Itoa(index),
			Timestamp: time.Now(),
		})
		return
	}

	c.JSON(http.StatusOK, ToServerResponse(v, pos))
}

// Package server exposes the live state of a run over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Aidin1998/tradegen/internal/config"
	"github.com/Aidin1998/tradegen/internal/loadgen"
	apierrors "github.com/Aidin1998/tradegen/pkg/errors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ProgressReader is the read side of a running load generator.
type ProgressReader interface {
	Snapshot() loadgen.ProgressSnapshot
}

// Server represents the status HTTP server
type Server struct {
	logger   *zap.Logger
	progress ProgressReader
	cfg      *config.Config

	mu       sync.Mutex
	httpSrv  *http.Server
	listener net.Listener
	done     chan struct{}
}

// NewServer creates a new status server
func NewServer(logger *zap.Logger, progress ProgressReader, cfg *config.Config) *Server {
	return &Server{
		logger:   logger.Named("server"),
		progress: progress,
		cfg:      cfg,
	}
}

// Router creates the HTTP router
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true

	router.Use(ginzap.Ginzap(s.logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(s.logger, true))
	router.Use(MetricsMiddleware())

	router.GET("/health", s.handleHealth)
	router.GET("/status", s.handleStatus)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.NoRoute(func(c *gin.Context) {
		writeProblem(c, apierrors.NewNotFoundError("no such endpoint", c.Request.URL.Path))
	})
	router.NoMethod(func(c *gin.Context) {
		writeProblem(c, apierrors.NewMethodNotAllowedError(c.Request.Method+" is not supported here", c.Request.URL.Path))
	})

	return router
}

func writeProblem(c *gin.Context, p *apierrors.ProblemDetails) {
	c.Header("Content-Type", apierrors.ContentType)
	c.AbortWithStatusJSON(p.Status, p)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"state":  s.progress.Snapshot().State,
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"run":    s.progress.Snapshot(),
		"config": s.cfg,
	})
}

// Start listens on addr and serves in the background. Listen errors are
// returned; serve errors after that are logged.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpSrv != nil {
		return errors.New("server already started")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = ln
	s.done = make(chan struct{})
	s.httpSrv = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func(srv *http.Server, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Status server stopped", zap.Error(err))
		}
	}(s.httpSrv, s.done)

	s.logger.Info("Status server listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.httpSrv, s.done
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("status server shutdown: %w", err)
	}
	<-done
	return nil
}

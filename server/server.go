// Package server exposes a delegation engine over an HTTP admin API.
//
// Routes:
//
//	GET    /health                      liveness
//	GET    /status                      system status snapshot
//	GET    /stats                       registry statistics
//	GET    /workers                     list or filter workers
//	POST   /workers                     register catalog entries (JSON or YAML body)
//	POST   /workers/best                select the best worker for a task
//	GET    /workers/:id                 one registration
//	GET    /workers/:id/capabilities    capability profile
//	DELETE /workers/:id                 unregister
//	POST   /workers/:id/:op             recover, drain, deactivate or reactivate
//	POST   /delegate                    delegate a task (?async=true returns at once)
//	GET    /tasks                       running tasks
//	GET    /tasks/:id                   one running task
//	DELETE /tasks/:id                   cancel a running task
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	delegation "github.com/armatrix/agent-delegation-go"
)

// ShutdownTimeout bounds graceful shutdown in Run.
const ShutdownTimeout = 10 * time.Second

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// Server serves the admin API for one engine.
type Server struct {
	engine *delegation.Engine
	logger *slog.Logger
	router *gin.Engine
}

// New builds a server for e. Callers choose the gin mode before calling New.
func New(e *delegation.Engine, opts ...Option) *Server {
	s := &Server{engine: e}
	for _, fn := range opts {
		fn(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())
	s.setupRoutes(r)
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("admin api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) setupRoutes(r *gin.Engine) {
	r.GET("/health", s.health)
	r.GET("/status", s.status)
	r.GET("/stats", s.stats)

	workers := r.Group("/workers")
	workers.GET("", s.listWorkers)
	workers.POST("", s.registerWorkers)
	workers.POST("/best", s.bestWorker)
	workers.GET("/:id", s.getWorker)
	workers.GET("/:id/capabilities", s.getCapabilities)
	workers.DELETE("/:id", s.unregisterWorker)
	workers.POST("/:id/:op", s.operate)

	r.POST("/delegate", s.delegate)

	tasks := r.Group("/tasks")
	tasks.GET("", s.listTasks)
	tasks.GET("/:id", s.getTask)
	tasks.DELETE("/:id", s.cancelTask)
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}

// abort writes err with the status its sentinel maps to.
func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusOf(err), gin.H{"error": err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, delegation.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, delegation.ErrValidation), errors.Is(err, delegation.ErrMissingCapability):
		return http.StatusBadRequest
	case errors.Is(err, delegation.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

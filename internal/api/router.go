// Package api отдаёт скомпилированную модель приложения по HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"stalmer/internal/ir"
)

// Reloader перекомпилирует исходники; nil — перезагрузка выключена.
type Reloader func(ctx context.Context) (*ir.Application, error)

type Server struct {
	mu       sync.RWMutex
	app      *ir.Application
	loadedAt time.Time
	reload   Reloader
}

func NewServer(app *ir.Application, reload Reloader) *Server {
	return &Server{app: app, loadedAt: time.Now().UTC(), reload: reload}
}

// App: текущая модель; после reload подменяется целиком.
func (s *Server) App() *ir.Application {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.app
}

func (s *Server) swap(app *ir.Application) {
	s.mu.Lock()
	s.app = app
	s.loadedAt = time.Now().UTC()
	s.mu.Unlock()
}

func NewRouter(s *Server, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET("/healthz", HealthHandler(s))

	meta := r.Group("/api/meta")
	{
		meta.GET("", MetaListHandler(s))
		meta.GET("/entities/:entity", MetaEntityHandler(s))
		meta.GET("/enums/:name", MetaEnumHandler(s))
		meta.GET("/pages", MetaPagesHandler(s))
		meta.GET("/ir", MetaIRHandler(s))
		meta.GET("/lint", LintHandler(s))
	}
	r.POST("/api/admin/reload", AdminReloadHandler(s))
	return r
}

// Run слушает addr до отмены ctx, затем мягко останавливается.
func Run(ctx context.Context, addr string, s *Server, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(s, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Meta API listening.", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("Meta API shutting down.")
		return srv.Shutdown(shutdownCtx)
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request.",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func HealthHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.RLock()
		loaded := s.loadedAt
		s.mu.RUnlock()
		c.JSON(http.StatusOK, gin.H{"status": "ok", "app": s.App().Name, "loadedAt": loaded.Format(time.RFC3339)})
	}
}

// Package api implements the HTTP/WebSocket surface: approach listing and
// graph access, chat-turn submission, the real-time event stream, and
// auto-mode start/pause/resume/stop, served with github.com/labstack/echo/v5.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/entailgraph/entailgraph/pkg/config"
)

// Server is the process's HTTP API server, one per running hypergraphd.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server
	cfg        *config.Config
	rt         *Runtime
}

// NewServer constructs a Server wired to rt and registers every route.
func NewServer(cfg *config.Config, rt *Runtime) *Server {
	e := echo.New()
	s := &Server{echo: e, cfg: cfg, rt: rt}

	e.Use(middleware.BodyLimit(4 * 1024 * 1024))
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET("/healthz", s.healthHandler)

	v1 := s.echo.Group("/api/v1")
	v1.GET("/approaches", s.listApproachesHandler)
	v1.GET("/approaches/:id/graph", s.getGraphHandler)
	v1.POST("/approaches/:id/graph", s.createApproachHandler)
	v1.POST("/approaches/:id/chat", s.submitChatHandler)
	v1.GET("/approaches/:id/events", s.wsHandler)
	v1.POST("/approaches/:id/auto/start", s.autoStartHandler)
	v1.POST("/approaches/:id/auto/pause", s.autoPauseHandler)
	v1.POST("/approaches/:id/auto/resume", s.autoResumeHandler)
	v1.POST("/approaches/:id/auto/stop", s.autoStopHandler)
}

// Start serves on addr, blocking until the server stops or errors.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// StartWithListener serves on a pre-created listener, used by tests to bind
// a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops every running auto-mode supervisor, then gracefully stops
// the HTTP server. The file watcher is not stopped here; it ends when the
// context it was started with is cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rt.autoPool.StopAll()
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"active_clients": s.rt.connManager.ActiveConnections(),
		"workspace_dir":  s.cfg.WorkspaceDir,
	})
}

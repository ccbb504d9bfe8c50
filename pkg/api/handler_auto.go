package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/entailgraph/entailgraph/pkg/automode"
)

type autoStartRequest struct {
	SessionID string `json:"session_id"`
}

// autoStartHandler handles POST /api/v1/approaches/:id/auto/start: builds a
// Supervisor bound to a dedicated auto-mode session and registers it with
// the process's automode.Pool.
func (s *Server) autoStartHandler(c *echo.Context) error {
	id := c.Param("id")
	var req autoStartRequest
	_ = c.Bind(&req) // session_id optional; defaults below
	if req.SessionID == "" {
		req.SessionID = "auto"
	}

	ar, err := s.rt.approachRuntimeFor(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("approach %q: %v", id, err))
	}
	sess, err := s.rt.sessionFor(ar, req.SessionID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var unavailable []string
	if !s.cfg.Available.Orchestrator {
		unavailable = append(unavailable, "orchestrator")
	}
	if !s.cfg.Available.Checker {
		unavailable = append(unavailable, "checker")
	}
	if !s.cfg.Available.Evaluator {
		unavailable = append(unavailable, "evaluator")
	}

	cfg := automode.Config{
		MaxTurns:    s.cfg.AutoMode.MaxTurns,
		TurnTimeout: s.cfg.AutoMode.TurnTimeout,
		OnFixpoint:  automode.Fixpoint(s.cfg.AutoMode.OnFixpoint),
		Unavailable: unavailable,
	}
	sup := automode.New(id, ar.store, ar.loop, sess, s.rt.connManager, cfg)

	// Pool.Start only runs the supervisor in the background, so a Start
	// refusal (e.g. Unavailable backends) would otherwise surface only as a
	// silent log line; check it eagerly so the API reports it synchronously.
	if len(unavailable) > 0 {
		return echo.NewHTTPError(http.StatusServiceUnavailable, fmt.Sprintf("auto mode refuses to start for approach %q: missing api key for backend(s) %v", id, unavailable))
	}
	if err := s.rt.autoPool.Start(context.Background(), id, sup); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	slog.Info("auto mode started via API", "approach_id", id, "session_id", req.SessionID)
	return c.JSON(http.StatusAccepted, map[string]any{"approach_id": id, "state": automode.StateRunning})
}

// autoPauseHandler handles POST /api/v1/approaches/:id/auto/pause.
func (s *Server) autoPauseHandler(c *echo.Context) error {
	return s.autoControlHandler(c, s.rt.autoPool.Pause)
}

// autoResumeHandler handles POST /api/v1/approaches/:id/auto/resume.
func (s *Server) autoResumeHandler(c *echo.Context) error {
	return s.autoControlHandler(c, s.rt.autoPool.Resume)
}

// autoStopHandler handles POST /api/v1/approaches/:id/auto/stop.
func (s *Server) autoStopHandler(c *echo.Context) error {
	return s.autoControlHandler(c, s.rt.autoPool.Stop)
}

func (s *Server) autoControlHandler(c *echo.Context, action func(string) bool) error {
	id := c.Param("id")
	if !action(id) {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("no auto mode run in progress for approach %q", id))
	}
	return c.NoContent(http.StatusNoContent)
}

package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"
)

type submitChatRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// submitChatHandler handles POST /api/v1/approaches/:id/chat. A turn runs
// asynchronously — its events arrive over the approach's event stream
// — so this only validates, starts the turn, and
// returns 202. Concurrency is enforced by Session.begin: a second submission
// on a busy session is rejected rather than queued.
func (s *Server) submitChatHandler(c *echo.Context) error {
	id := c.Param("id")
	var req submitChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
	}
	if req.SessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}

	ar, err := s.rt.approachRuntimeFor(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("approach %q: %v", id, err))
	}
	sess, err := s.rt.sessionFor(ar, req.SessionID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// The request's context ends when the HTTP handler returns; the turn
	// itself must keep running past that, so it is detached here and bounded
	// only by the loop's own per-turn timeout.
	go func() {
		if err := ar.loop.RunTurn(context.Background(), sess, req.Text); err != nil {
			slog.Warn("chat turn ended with error", "approach_id", id, "session_id", req.SessionID, "error", err)
		}
	}()

	return c.JSON(http.StatusAccepted, map[string]any{"approach_id": id, "session_id": req.SessionID})
}

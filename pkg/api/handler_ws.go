package api

import (
	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"
)

// wsHandler upgrades GET /api/v1/approaches/:id/events to a WebSocket and
// hands it to the ConnectionManager, which blocks for the connection's
// lifetime. The approach id in the
// path is informational only — clients subscribe to specific approach
// channels over the socket itself.
func (s *Server) wsHandler(c *echo.Context) error {
	origins := s.cfg.Server.AllowedWSOrigins
	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		OriginPatterns: origins,
		// An empty allowlist means local-only use; operators who expose this
		// beyond localhost must set allowed_ws_origins.
		InsecureSkipVerify: len(origins) == 0,
	})
	if err != nil {
		return err
	}
	s.rt.connManager.HandleConnection(c.Request().Context(), conn)
	return nil
}

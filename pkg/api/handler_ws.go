package api

import (
	"net/http"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"
)

// dashboardSocketHandler upgrades GET /ws and hands the connection to the
// hub. Blocks until the socket closes.
func (s *Server) dashboardSocketHandler(c *echo.Context) error {
	if s.hub == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "WebSocket not available")
	}

	// An empty allowlist means the dashboard is served from the same host
	// and origin checks are skipped.
	opts := &websocket.AcceptOptions{InsecureSkipVerify: true}
	if len(s.origins) > 0 {
		opts = &websocket.AcceptOptions{OriginPatterns: s.origins}
	}
	conn, err := websocket.Accept(c.Response(), c.Request(), opts)
	if err != nil {
		return err
	}

	s.hub.HandleConnection(c.Request().Context(), conn)
	return nil
}

// agentSocketHandler upgrades GET /agent and hands the connection to the
// agent gateway.
func (s *Server) agentSocketHandler(c *echo.Context) error {
	if s.gw == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "agent gateway not available")
	}
	s.gw.HandleAgentSocket(c.Response(), c.Request())
	return nil
}

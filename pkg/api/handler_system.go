package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/wardenhq/warden/pkg/version"
)

// healthHandler handles GET /health. Minimal and unauthenticated: the
// supervisor has no external hard dependencies to check (the oracle is
// fail-soft), so a running process is a healthy process.
func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, &HealthResponse{
		Status:  "healthy",
		Version: version.GitCommit,
	})
}

// statusHandler handles GET /api/v1/status.
func (s *Server) statusHandler(c *echo.Context) error {
	resp := &StatusResponse{Status: s.sup.Status()}
	if s.hub != nil {
		resp.DashboardClients = s.hub.ActiveConnections()
	}
	return c.JSON(http.StatusOK, resp)
}

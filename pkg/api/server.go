// Package api exposes warden's control surface: the REST API for the
// parent dashboard, the dashboard WebSocket hub, and the agent WebSocket
// endpoint.
package api

import (
	"context"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/wardenhq/warden/pkg/gateway"
	"github.com/wardenhq/warden/pkg/supervisor"
)

// Server is the HTTP server over the supervisor and the agent gateway.
type Server struct {
	sup     *supervisor.Supervisor
	gw      *gateway.Gateway
	hub     *Hub
	origins []string
	echo    *echo.Echo
	http    *http.Server
	logger  *slog.Logger
}

// NewServer creates the server and registers all routes. allowedOrigins
// restricts dashboard WebSocket upgrades; empty skips origin checks.
func NewServer(sup *supervisor.Supervisor, gw *gateway.Gateway, hub *Hub, allowedOrigins []string) *Server {
	s := &Server{
		sup:     sup,
		gw:      gw,
		hub:     hub,
		origins: allowedOrigins,
		echo:    echo.New(),
		logger:  slog.Default().With("component", "api"),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	e := s.echo
	e.Use(securityHeaders())

	e.GET("/health", s.healthHandler)
	e.GET("/ws", s.dashboardSocketHandler)
	e.GET("/agent", s.agentSocketHandler)

	v1 := e.Group("/api/v1")
	v1.GET("/status", s.statusHandler)

	v1.GET("/agents", s.listAgentsHandler)
	v1.GET("/agents/:id", s.getAgentHandler)
	v1.POST("/agents/:id/link", s.linkAgentHandler)
	v1.POST("/agents/:id/unlink", s.unlinkAgentHandler)
	v1.PUT("/agents/:id/enabled", s.setAgentEnabledHandler)
	v1.PUT("/agents/:id/user-mapping", s.setUserMappingHandler)
	v1.PUT("/agents/:id/parent-accounts", s.setParentAccountsHandler)
	v1.POST("/agents/:id/force-logout", s.forceLogoutHandler)
	v1.POST("/agents/:id/lock", s.lockAgentHandler)
	v1.POST("/agents/:id/focus", s.applyFocusHandler)
	v1.DELETE("/agents/:id/focus", s.clearFocusHandler)

	v1.GET("/children", s.listChildrenHandler)
	v1.GET("/children/:id", s.getChildHandler)
	v1.PUT("/children/:id", s.updateChildHandler)
	v1.DELETE("/children/:id", s.deleteChildHandler)

	v1.GET("/violations", s.listViolationsHandler)
	v1.DELETE("/violations", s.clearViolationsHandler)
	v1.GET("/activity", s.listActivityHandler)

	v1.GET("/settings", s.getSettingsHandler)
	v1.PATCH("/settings", s.updateSettingsHandler)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr. Blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.echo}
	return s.http.ListenAndServe()
}

// Shutdown stops the HTTP server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// listAgentsHandler handles GET /api/v1/agents.
func (s *Server) listAgentsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.sup.Agents())
}

// getAgentHandler handles GET /api/v1/agents/:id.
func (s *Server) getAgentHandler(c *echo.Context) error {
	agentID := c.Param("id")
	if agentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "agent id is required")
	}

	agent, err := s.sup.Agent(agentID)
	if err != nil {
		return mapSupervisorError(err)
	}
	return c.JSON(http.StatusOK, agent)
}

// linkAgentHandler handles POST /api/v1/agents/:id/link.
func (s *Server) linkAgentHandler(c *echo.Context) error {
	var req LinkAgentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if req.ChildID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "childId is required")
	}

	if err := s.sup.LinkAgent(c.Param("id"), req.ChildID); err != nil {
		return mapSupervisorError(err)
	}
	return c.JSON(http.StatusOK, okResponse)
}

// unlinkAgentHandler handles POST /api/v1/agents/:id/unlink.
func (s *Server) unlinkAgentHandler(c *echo.Context) error {
	if err := s.sup.UnlinkAgent(c.Param("id")); err != nil {
		return mapSupervisorError(err)
	}
	return c.JSON(http.StatusOK, okResponse)
}

// setAgentEnabledHandler handles PUT /api/v1/agents/:id/enabled.
func (s *Server) setAgentEnabledHandler(c *echo.Context) error {
	var req SetEnabledRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	if err := s.sup.SetAgentEnabled(c.Param("id"), req.Enabled); err != nil {
		return mapSupervisorError(err)
	}
	return c.JSON(http.StatusOK, okResponse)
}

// setUserMappingHandler handles PUT /api/v1/agents/:id/user-mapping.
func (s *Server) setUserMappingHandler(c *echo.Context) error {
	var req UserMappingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if req.Username == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username is required")
	}

	if err := s.sup.SetUserMapping(c.Param("id"), req.Username, req.ChildID); err != nil {
		return mapSupervisorError(err)
	}
	return c.JSON(http.StatusOK, okResponse)
}

// setParentAccountsHandler handles PUT /api/v1/agents/:id/parent-accounts.
func (s *Server) setParentAccountsHandler(c *echo.Context) error {
	var req ParentAccountsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	if err := s.sup.SetParentAccounts(c.Param("id"), req.Usernames); err != nil {
		return mapSupervisorError(err)
	}
	return c.JSON(http.StatusOK, okResponse)
}

// forceLogoutHandler handles POST /api/v1/agents/:id/force-logout.
func (s *Server) forceLogoutHandler(c *echo.Context) error {
	var req ForceLogoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	if err := s.sup.ForceLogout(c.Param("id"), req.Reason); err != nil {
		return mapSupervisorError(err)
	}
	return c.JSON(http.StatusOK, okResponse)
}

// lockAgentHandler handles POST /api/v1/agents/:id/lock.
func (s *Server) lockAgentHandler(c *echo.Context) error {
	if err := s.sup.LockAgent(c.Param("id")); err != nil {
		return mapSupervisorError(err)
	}
	return c.JSON(http.StatusOK, okResponse)
}

// applyFocusHandler handles POST /api/v1/agents/:id/focus.
func (s *Server) applyFocusHandler(c *echo.Context) error {
	var req ApplyFocusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	if err := s.sup.ApplyFocus(c.Param("id"), req.ChildID, req.Profile); err != nil {
		return mapSupervisorError(err)
	}
	return c.JSON(http.StatusOK, okResponse)
}

// clearFocusHandler handles DELETE /api/v1/agents/:id/focus.
func (s *Server) clearFocusHandler(c *echo.Context) error {
	if err := s.sup.ClearFocus(c.Param("id")); err != nil {
		return mapSupervisorError(err)
	}
	return c.JSON(http.StatusOK, okResponse)
}

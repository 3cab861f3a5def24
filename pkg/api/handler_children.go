package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/wardenhq/warden/pkg/models"
)

// listChildrenHandler handles GET /api/v1/children.
func (s *Server) listChildrenHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.sup.Children())
}

// getChildHandler handles GET /api/v1/children/:id.
func (s *Server) getChildHandler(c *echo.Context) error {
	childID := c.Param("id")
	if childID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "child id is required")
	}

	child, err := s.sup.Child(childID)
	if err != nil {
		return mapSupervisorError(err)
	}
	return c.JSON(http.StatusOK, child)
}

// updateChildHandler handles PUT /api/v1/children/:id. The body is the full
// child configuration; the path id wins over any id in the body.
func (s *Server) updateChildHandler(c *echo.Context) error {
	childID := c.Param("id")
	if childID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "child id is required")
	}

	var cfg models.ChildConfig
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	cfg.ID = childID

	if err := s.sup.UpdateChild(&cfg); err != nil {
		return mapSupervisorError(err)
	}
	return c.JSON(http.StatusOK, okResponse)
}

// deleteChildHandler handles DELETE /api/v1/children/:id.
func (s *Server) deleteChildHandler(c *echo.Context) error {
	if err := s.sup.DeleteChild(c.Param("id")); err != nil {
		return mapSupervisorError(err)
	}
	return c.JSON(http.StatusOK, okResponse)
}

package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"
)

// parseLimit reads a ?limit query param, 0 meaning "all".
func parseLimit(c *echo.Context) (int, error) {
	v := c.QueryParam("limit")
	if v == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(v)
	if err != nil || limit < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid limit: must be a non-negative integer")
	}
	return limit, nil
}

// listViolationsHandler handles GET /api/v1/violations. Newest first.
func (s *Server) listViolationsHandler(c *echo.Context) error {
	limit, err := parseLimit(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.sup.Journal().Violations(limit))
}

// clearViolationsHandler handles DELETE /api/v1/violations.
func (s *Server) clearViolationsHandler(c *echo.Context) error {
	s.sup.ClearViolations()
	return c.JSON(http.StatusOK, okResponse)
}

// listActivityHandler handles GET /api/v1/activity. Newest first.
func (s *Server) listActivityHandler(c *echo.Context) error {
	limit, err := parseLimit(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.sup.Journal().Activity(limit))
}

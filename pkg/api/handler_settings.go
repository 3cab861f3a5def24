package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/wardenhq/warden/pkg/config"
)

// getSettingsHandler handles GET /api/v1/settings.
func (s *Server) getSettingsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.sup.Settings())
}

// updateSettingsHandler handles PATCH /api/v1/settings. Absent fields keep
// their value; an invalid combination rejects the whole patch.
func (s *Server) updateSettingsHandler(c *echo.Context) error {
	var patch config.SettingsPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	updated, err := s.sup.UpdateSettings(patch)
	if err != nil {
		return mapSupervisorError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

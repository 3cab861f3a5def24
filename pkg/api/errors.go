package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/wardenhq/warden/pkg/config"
	"github.com/wardenhq/warden/pkg/gateway"
	"github.com/wardenhq/warden/pkg/supervisor"
)

// mapSupervisorError maps supervisor-layer errors to HTTP error responses.
func mapSupervisorError(err error) *echo.HTTPError {
	var validErr *config.ValidationError
	if errors.As(err, &validErr) {
		return echo.NewHTTPError(http.StatusBadRequest, validErr.Error())
	}
	if errors.Is(err, supervisor.ErrAgentNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "agent not found")
	}
	if errors.Is(err, supervisor.ErrChildNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "child not found")
	}
	if errors.Is(err, supervisor.ErrMissingBinding) {
		return echo.NewHTTPError(http.StatusConflict, "agent is not bound to a child")
	}
	if errors.Is(err, gateway.ErrAgentUnavailable) {
		return echo.NewHTTPError(http.StatusConflict, "agent is not connected")
	}
	if errors.Is(err, supervisor.ErrGatewayNotConfigured) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "agent gateway not available")
	}
	if errors.Is(err, supervisor.ErrStopped) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "supervisor is shutting down")
	}

	// Unexpected error
	slog.Error("Unexpected supervisor error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}

package api

import "github.com/wardenhq/warden/pkg/supervisor"

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// StatusResponse is the /api/v1/status payload.
type StatusResponse struct {
	supervisor.Status
	DashboardClients int `json:"dashboard_clients"`
}

// OKResponse acknowledges a state-changing command.
type OKResponse struct {
	Status string `json:"status"`
}

var okResponse = &OKResponse{Status: "ok"}

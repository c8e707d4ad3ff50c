package handlers

import (
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
)

// SystemHandler handles system-related HTTP requests
type SystemHandler struct {
	version string
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(version string) *SystemHandler {
	return &SystemHandler{
		version: version,
	}
}

// OkResponse represents the response for GET /test
type OkResponse struct {
	Ok bool `json:"ok"`
}

// InfoResponse represents the response for GET /info
type InfoResponse struct {
	Version       string   `json:"version"`
	GoVersion     string   `json:"go_version"`
	Platform      string   `json:"platform"`
	Architecture  string   `json:"arch"`
	Capabilities  []string `json:"capabilities"`
	RuntimeConfig struct {
		Journal string `json:"journal"`
		Cache   string `json:"cache"`
	} `json:"runtime_config"`
}

// Ok handles GET /test (spec §6) - simple health check.
func (h *SystemHandler) Ok(c echo.Context) error {
	return c.JSON(http.StatusOK, OkResponse{Ok: true})
}

// Info handles GET /info - system information
func (h *SystemHandler) Info(c echo.Context) error {
	return c.JSON(http.StatusOK, InfoResponse{
		Version:      h.version,
		GoVersion:    runtime.Version(),
		Platform:     runtime.GOOS,
		Architecture: runtime.GOARCH,
		Capabilities: []string{
			"models",
			"instances",
			"user-tasks",
			"receive-tasks",
			"service-tasks",
			"call-activities",
			"replay-recovery",
		},
		RuntimeConfig: struct {
			Journal string `json:"journal"`
			Cache   string `json:"cache"`
		}{
			Journal: "postgres",
			Cache:   "redis",
		},
	})
}

package handler

import (
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// SystemInfo is the static part of the system information endpoint
type SystemInfo struct {
	Version     string
	Environment string
	InstanceID  string
	Platforms   []string
}

// SystemHandler handles system-related API endpoints
type SystemHandler struct {
	BaseHandler
	info      SystemInfo
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(info SystemInfo) *SystemHandler {
	if info.Version == "" {
		info.Version = "dev"
	}
	return &SystemHandler{
		info:      info,
		startTime: time.Now(),
	}
}

// SystemInfoResponse represents the system information response
// @name HandlerSystemInfoResponse
type SystemInfoResponse struct {
	Name        string   `json:"name" example:"Stocksync API"`
	Version     string   `json:"version" example:"1.0.0"`
	Environment string   `json:"environment" example:"production"`
	InstanceID  string   `json:"instance_id" example:"stocksync-7d9f-1"`
	Platforms   []string `json:"platforms" example:"TRENDYOL,N11"`
	GoVersion   string   `json:"go_version" example:"go1.25.5"`
	Uptime      string   `json:"uptime" example:"1h30m45s"`
}

// GetSystemInfo godoc
// @ID           getSystemSystemInfo
// @Summary      Get system information
// @Description  Returns version, uptime and the marketplaces this instance talks to
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[SystemInfoResponse]
// @Router       /system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	platforms := h.info.Platforms
	if platforms == nil {
		platforms = []string{}
	}
	h.Success(c, SystemInfoResponse{
		Name:        "Stocksync API",
		Version:     h.info.Version,
		Environment: h.info.Environment,
		InstanceID:  h.info.InstanceID,
		Platforms:   platforms,
		GoVersion:   runtime.Version(),
		Uptime:      time.Since(h.startTime).Round(time.Second).String(),
	})
}

// PingResponse represents the ping response
// @name HandlerPingResponse
type PingResponse struct {
	Message   string `json:"message" example:"pong"`
	Timestamp string `json:"timestamp" example:"2026-01-23T12:00:00Z"`
}

// Ping godoc
// @ID           pingSystem
// @Summary      Ping the API
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[PingResponse]
// @Router       /system/ping [get]
func (h *SystemHandler) Ping(c *gin.Context) {
	h.Success(c, PingResponse{
		Message:   "pong",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

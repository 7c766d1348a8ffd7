package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/grievancenet/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

const healthTimeout = 2 * time.Second

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Features reports which optional integrations are live
type Features struct {
	AIDrafting        bool `json:"ai_drafting"`
	AttachmentArchive bool `json:"attachment_archive"`
	MailDryRun        bool `json:"mail_dry_run"`
}

// SystemHandler handles system-related API endpoints
type SystemHandler struct {
	BaseHandler
	db        Pinger
	version   string
	features  Features
	streams   func() int
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler. streams reports the open
// live views and may be nil.
func NewSystemHandler(db Pinger, version string, features Features, streams func() int) *SystemHandler {
	return &SystemHandler{
		db:        db,
		version:   version,
		features:  features,
		streams:   streams,
		startTime: time.Now(),
	}
}

// HealthResponse is the body of GET /health
// @name HandlerHealthResponse
type HealthResponse struct {
	Status   string `json:"status" example:"healthy"`
	Time     string `json:"time" example:"2026-10-14T12:00:00Z"`
	Database string `json:"database" example:"ok"`
}

// SystemInfoResponse represents the system information response
// @name HandlerSystemInfoResponse
type SystemInfoResponse struct {
	Name        string   `json:"name" example:"GrievanceNet API"`
	Version     string   `json:"version" example:"1.0.0"`
	GoVersion   string   `json:"go_version" example:"go1.25.5"`
	Uptime      string   `json:"uptime" example:"1h30m45s"`
	LiveStreams int      `json:"live_streams" example:"3"`
	Features    Features `json:"features"`
}

// Health godoc
// @ID           health
// @Summary      Health check
// @Description  Reports whether the server and its database are up. 503 when the database is unreachable.
// @Tags         system
// @Produce      json
// @Success      200 {object} HealthResponse
// @Failure      503 {object} HealthResponse
// @Router       /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:   "healthy",
		Time:     time.Now().UTC().Format(time.RFC3339),
		Database: "ok",
	}
	status := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			logger.L(c.Request.Context()).Warn("Health check: database unreachable", zap.Error(err))
			resp.Status = "unhealthy"
			resp.Database = "error"
			status = http.StatusServiceUnavailable
		}
	}
	c.JSON(status, resp)
}

// GetSystemInfo godoc
// @ID           getSystemSystemInfo
// @Summary      Get system information
// @Description  Returns version, uptime and which optional integrations are configured
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[SystemInfoResponse]
// @Failure      401 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	info := SystemInfoResponse{
		Name:      "GrievanceNet API",
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Features:  h.features,
	}
	if h.streams != nil {
		info.LiveStreams = h.streams()
	}
	h.Success(c, info)
}

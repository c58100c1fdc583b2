package handlers

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"learnapp/internal/config"
	"learnapp/internal/version"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
)

// ServiceName identifies the server in health and info responses.
const ServiceName = "learning-support-api"

// SystemHandler serves liveness, API information and the JSON 404.
type SystemHandler struct {
	cfg       *config.Config
	routes    *RouteListingHandler
	startedAt time.Time
	now       func() time.Time
}

// NewSystemHandler creates a SystemHandler. routes is filled in after all
// routes are registered.
func NewSystemHandler(cfg *config.Config, routes *RouteListingHandler) *SystemHandler {
	return &SystemHandler{
		cfg:       cfg,
		routes:    routes,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// Health handles GET /health. It always answers 200 while the process is up.
func (h *SystemHandler) Health(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	now := h.now()
	c.JSON(http.StatusOK, gin.H{
		"status":      "OK",
		"timestamp":   now.UTC().Format(time.RFC3339),
		"service":     ServiceName,
		"version":     version.Version,
		"uptime":      int64(now.Sub(h.startedAt).Seconds()),
		"environment": h.cfg.Server.Environment,
		"memory": gin.H{
			"alloc":      mem.HeapAlloc,
			"sys":        mem.Sys,
			"allocHuman": humanize.IBytes(mem.HeapAlloc),
		},
	})
}

// APIInfo handles GET / and GET /api.
func (h *SystemHandler) APIInfo(c *gin.Context) {
	subjects := make([]string, 0, len(h.cfg.Subjects))
	for _, s := range h.cfg.Subjects {
		subjects = append(subjects, s.Name)
	}
	c.JSON(http.StatusOK, gin.H{
		"name":              "Learning Support API",
		"version":           version.Version,
		"commit":            version.Commit,
		"buildTime":         version.BuildTime,
		"description":       "AI学習支援アプリのバックエンドAPI",
		"ai_provider":       h.cfg.AI.Provider,
		"ai_model":          h.cfg.AI.Model,
		"supported_formats": []string{"jpeg", "png", "webp", "gif"},
		"max_file_size":     humanize.IBytes(uint64(h.cfg.Server.MaxUploadBytes)),
		"subjects":          subjects,
		"endpoints":         h.routes.Endpoints(),
	})
}

// NotFound answers unknown routes with the list of available endpoints.
func (h *SystemHandler) NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success":             false,
		"code":                "RECORD_NOT_FOUND",
		"error":               "Endpoint not found",
		"message":             fmt.Sprintf("%s %s は存在しません", c.Request.Method, c.Request.URL.Path),
		"available_endpoints": h.routes.Endpoints(),
	})
}

package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/promptbridge/promptbridge/internal/cache"
	"github.com/promptbridge/promptbridge/internal/config"
	"github.com/promptbridge/promptbridge/internal/dispatch"
	"github.com/promptbridge/promptbridge/internal/domain"
	"github.com/promptbridge/promptbridge/internal/ui"
)

// AdminHandler serves provider status, credential tests, usage totals and
// cache administration.
type AdminHandler struct {
	cfg        *config.Configuration
	dispatcher *dispatch.Dispatcher
	store      *cache.Store
	tally      *dispatch.UsageTally
	logger     *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(cfg *config.Configuration, dispatcher *dispatch.Dispatcher, store *cache.Store, tally *dispatch.UsageTally, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		cfg:        cfg,
		dispatcher: dispatcher,
		store:      store,
		tally:      tally,
		logger:     logger,
	}
}

// providerStatus is one row of the provider listing.
type providerStatus struct {
	Provider     domain.ProviderType `json:"provider"`
	Active       bool                `json:"active"`
	Credentials  int                 `json:"credentials"`
	DefaultModel string              `json:"default_model"`
}

// HandleProviders handles GET /v1/providers.
func (h *AdminHandler) HandleProviders(c *gin.Context) {
	statuses := make([]providerStatus, 0, len(domain.AllProviders))
	for _, p := range domain.AllProviders {
		settings := h.cfg.ProviderSettingsFor(p)
		statuses = append(statuses, providerStatus{
			Provider:     p,
			Active:       h.cfg.HasActiveCredential(p),
			Credentials:  len(settings.Credentials),
			DefaultModel: settings.Model,
		})
	}
	c.JSON(http.StatusOK, gin.H{"providers": statuses})
}

// HandleTestCredential handles POST /v1/providers/:provider/keys/:index/test.
// It delegates to the adapter's one-token health check.
func (h *AdminHandler) HandleTestCredential(c *gin.Context) {
	provider := domain.ProviderType(c.Param("provider"))
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be an integer"})
		return
	}

	res := h.dispatcher.TestCredential(c.Request.Context(), provider, index)

	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
	}
	c.JSON(status, res)
}

// HandleUsage handles GET /v1/usage.
func (h *AdminHandler) HandleUsage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"usage": h.tally.Snapshot()})
}

// HandleCacheStats handles GET /v1/cache/stats.
func (h *AdminHandler) HandleCacheStats(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": true, "stats": h.store.Stats()})
}

// HandleCacheSweep handles POST /v1/cache/sweep.
func (h *AdminHandler) HandleCacheSweep(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusOK, gin.H{"removed": 0})
		return
	}
	removed := h.store.SweepExpired()
	ui.PrintSweep(removed)
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// HandleCacheClear handles DELETE /v1/cache.
func (h *AdminHandler) HandleCacheClear(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusOK, gin.H{"removed": 0})
		return
	}
	removed := h.store.ClearAll()
	h.logger.Info("cache cleared", slog.Int("removed", removed))
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// HandleCacheClearContext handles DELETE /v1/cache/:context.
func (h *AdminHandler) HandleCacheClearContext(c *gin.Context) {
	contextID, err := strconv.Atoi(c.Param("context"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "context must be an integer"})
		return
	}
	if h.store == nil {
		c.JSON(http.StatusOK, gin.H{"removed": 0})
		return
	}
	removed := h.store.ClearContext(contextID)
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// HandleCacheDeleteEntry handles DELETE /v1/cache/:context/:key.
func (h *AdminHandler) HandleCacheDeleteEntry(c *gin.Context) {
	contextID, err := strconv.Atoi(c.Param("context"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "context must be an integer"})
		return
	}
	if h.store == nil {
		c.JSON(http.StatusOK, gin.H{"removed": 0})
		return
	}
	removed := h.store.Delete(contextID, c.Param("key"))
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// HandleHealth handles GET /health.
func (h *AdminHandler) HandleHealth(c *gin.Context) {
	active := 0
	for _, p := range domain.AllProviders {
		if h.cfg.HasActiveCredential(p) {
			active++
		}
	}

	status := "healthy"
	if active == 0 {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":           status,
		"active_providers": active,
	})
}

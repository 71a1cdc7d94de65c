// Package handler provides the HTTP admin/diagnostic surface over the
// dispatch core. Everything here is thin glue: parse, delegate, render.
package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/promptbridge/promptbridge/internal/dispatch"
	"github.com/promptbridge/promptbridge/internal/domain"
)

// DispatchHandler serves the completion endpoints.
type DispatchHandler struct {
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
}

// NewDispatchHandler creates a DispatchHandler.
func NewDispatchHandler(dispatcher *dispatch.Dispatcher, logger *slog.Logger) *DispatchHandler {
	return &DispatchHandler{dispatcher: dispatcher, logger: logger}
}

// callOptions is the wire shape of the per-call options shared by the
// dispatch and field endpoints. The cache field is a string union on the
// wire ("on", "off", "" or a TTL spec like "2W"); it is resolved into the
// typed CacheSetting here at the boundary.
type callOptions struct {
	Provider       string        `json:"provider"`
	Model          string        `json:"model"`
	System         *string       `json:"system"`
	History        []domain.Turn `json:"history"`
	Temperature    *float64      `json:"temperature"`
	MaxTokens      *int          `json:"max_tokens"`
	TimeoutSeconds *int          `json:"timeout_seconds"`
	KeyIndex       *int          `json:"key_index"`
	ContextID      int           `json:"context_id"`
	Cache          string        `json:"cache"`
	Fallbacks      []string      `json:"fallbacks"`
}

// dispatchRequest is the wire shape of a dispatch call.
type dispatchRequest struct {
	Message string `json:"message" binding:"required"`

	// Providers is only used by the broadcast endpoint.
	Providers []string `json:"providers"`

	callOptions
}

func (r *callOptions) options() dispatch.Options {
	o := dispatch.Options{
		Provider:       domain.ProviderType(r.Provider),
		Model:          r.Model,
		System:         r.System,
		History:        r.History,
		Temperature:    r.Temperature,
		MaxTokens:      r.MaxTokens,
		TimeoutSeconds: r.TimeoutSeconds,
		KeyIndex:       r.KeyIndex,
		ContextID:      r.ContextID,
		Cache:          parseCacheField(r.Cache),
	}
	for _, fb := range r.Fallbacks {
		o.Fallbacks = append(o.Fallbacks, domain.ProviderType(fb))
	}
	return o
}

// parseCacheField resolves the wire cache field into a CacheSetting once.
func parseCacheField(value string) dispatch.CacheSetting {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return dispatch.CacheDefault()
	case "on", "true", "1":
		return dispatch.CacheOn()
	case "off", "false", "0":
		return dispatch.CacheOff()
	default:
		return dispatch.CacheFor(value)
	}
}

// HandleDispatch handles POST /v1/dispatch.
// It runs the full fallback loop across keys and any listed fallback vendors.
func (h *DispatchHandler) HandleDispatch(c *gin.Context) {
	var req dispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	res := h.dispatcher.DispatchWithFallback(c.Request.Context(), req.Message, req.options())

	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
	}
	c.JSON(status, res)
}

// HandleBroadcast handles POST /v1/dispatch/broadcast.
// It dispatches once per listed vendor independently.
func (h *DispatchHandler) HandleBroadcast(c *gin.Context) {
	var req dispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(req.Providers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "providers list is required"})
		return
	}

	providers := make([]domain.ProviderType, 0, len(req.Providers))
	for _, p := range req.Providers {
		providers = append(providers, domain.ProviderType(p))
	}

	results := h.dispatcher.DispatchMultiple(c.Request.Context(), req.Message, providers, req.options())
	c.JSON(http.StatusOK, results)
}

package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/promptbridge/promptbridge/internal/field"
)

// FieldHandler serves the ask-and-persist endpoints over the record store.
type FieldHandler struct {
	service *field.Service
	logger  *slog.Logger
}

// NewFieldHandler creates a FieldHandler.
func NewFieldHandler(service *field.Service, logger *slog.Logger) *FieldHandler {
	return &FieldHandler{service: service, logger: logger}
}

type fieldRequest struct {
	Prompt string `json:"prompt" binding:"required"`
	callOptions
}

type batchFieldRequest struct {
	Fields []field.Prompt `json:"fields" binding:"required"`
	callOptions
}

// HandleGenerateField handles POST /v1/records/:id/fields/:name.
func (h *FieldHandler) HandleGenerateField(c *gin.Context) {
	recordID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "record id must be an integer"})
		return
	}

	var req fieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	res := h.service.Generate(c.Request.Context(), recordID, c.Param("name"), req.Prompt, req.options())

	status := http.StatusOK
	if res.Source == field.SourceError {
		status = http.StatusBadGateway
	}
	c.JSON(status, res)
}

// HandleGenerateFields handles POST /v1/records/:id/fields (batch).
func (h *FieldHandler) HandleGenerateFields(c *gin.Context) {
	recordID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "record id must be an integer"})
		return
	}

	var req batchFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(req.Fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fields list is required"})
		return
	}

	results := h.service.GenerateBatch(c.Request.Context(), recordID, req.Fields, req.options())
	c.JSON(http.StatusOK, gin.H{"results": results})
}

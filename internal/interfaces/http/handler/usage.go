package handler

import (
	"github.com/gin-gonic/gin"

	appmetering "github.com/toolforge/backend/internal/application/metering"
)

// UsageHandler answers callers asking about their own standing
type UsageHandler struct {
	BaseHandler
	usage *appmetering.UsageQueryService
}

// NewUsageHandler creates a new usage handler
func NewUsageHandler(usage *appmetering.UsageQueryService) *UsageHandler {
	return &UsageHandler{usage: usage}
}

// Me returns the caller's usage standing for the current UTC day without
// consuming quota.
func (h *UsageHandler) Me(c *gin.Context) {
	summary, err := h.usage.Summary(c.Request.Context(), guardInput(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// RegisterRoutes registers usage routes
func (h *UsageHandler) RegisterRoutes(rg *gin.RouterGroup) {
	usage := rg.Group("/usage")
	{
		usage.GET("/me", h.Me)
	}
}

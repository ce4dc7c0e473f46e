package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	appmetering "github.com/toolforge/backend/internal/application/metering"
	"github.com/toolforge/backend/internal/interfaces/http/dto"
	"github.com/toolforge/backend/internal/interfaces/http/middleware"
)

// GuardHandler exposes the quota gate over HTTP
type GuardHandler struct {
	BaseHandler
	guard *appmetering.GuardService
}

// NewGuardHandler creates a new guard handler
func NewGuardHandler(guard *appmetering.GuardService) *GuardHandler {
	return &GuardHandler{guard: guard}
}

// VerdictResponse is the gate's answer for one tool call
type VerdictResponse struct {
	Allowed bool      `json:"allowed"`
	Tier    string    `json:"tier"`
	Used    int       `json:"used"`
	Limit   int       `json:"limit"`
	Reason  string    `json:"reason,omitempty"`
	ResetAt time.Time `json:"reset_at"`
}

// Check admits one tool call under the caller's daily quota. It resolves the
// caller's identity and tier, then atomically counts the call against the
// daily limit.
func (h *GuardHandler) Check(c *gin.Context) {
	verdict := h.guard.Check(c.Request.Context(), guardInput(c))

	payload := VerdictResponse{
		Allowed: verdict.Allowed,
		Tier:    string(verdict.Tier),
		Used:    verdict.Used,
		Limit:   verdict.Limit,
		Reason:  string(verdict.Reason),
		ResetAt: verdict.ResetAt,
	}

	if verdict.Allowed {
		h.Success(c, payload)
		return
	}

	code, message := denyError(verdict.Reason)
	resp := dto.NewErrorResponseWithRequestID(code, message, getRequestID(c))
	// Denials still carry the verdict so clients can show standing and reset time.
	resp.Data = payload
	c.JSON(dto.GetHTTPStatus(code), resp)
}

// guardInput assembles the identity material the gate works from
func guardInput(c *gin.Context) appmetering.GuardInput {
	return appmetering.GuardInput{
		AccountID:    middleware.GetAccountID(c),
		ForwardedFor: c.GetHeader("X-Forwarded-For"),
		RealIP:       c.GetHeader("X-Real-IP"),
	}
}

// denyError maps a deny reason to the response error code and message
func denyError(reason appmetering.DenyReason) (string, string) {
	switch reason {
	case appmetering.ReasonIdentityUnavailable:
		return dto.ErrCodeIdentityUnavailable, "Sign in to use this tool"
	case appmetering.ReasonQuotaExceeded:
		return dto.ErrCodeQuotaExceeded, "Daily usage limit reached"
	case appmetering.ReasonStoreUnavailable:
		return dto.ErrCodeStoreUnavailable, "Usage store is unavailable, try again shortly"
	default:
		return dto.ErrCodeInternal, "An unexpected error occurred"
	}
}

// RegisterRoutes registers guard routes
func (h *GuardHandler) RegisterRoutes(rg *gin.RouterGroup) {
	guard := rg.Group("/guard")
	{
		guard.POST("/check", h.Check)
	}
}

package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appmetering "github.com/toolforge/backend/internal/application/metering"
	"github.com/toolforge/backend/internal/domain/metering"
	"github.com/toolforge/backend/internal/interfaces/http/dto"
)

// AdminHandler exposes operator overrides: plan assignment, ledger resets
// and usage reports. Routes are mounted behind the admin middleware chain.
type AdminHandler struct {
	BaseHandler
	admin   *appmetering.AdminService
	reports *appmetering.ReportService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(admin *appmetering.AdminService, reports *appmetering.ReportService) *AdminHandler {
	return &AdminHandler{admin: admin, reports: reports}
}

// AssignPlanRequest is the plan override payload
type AssignPlanRequest struct {
	Action       string `json:"action" binding:"required,oneof=free timed lifetime"`
	DurationDays int    `json:"duration_days" binding:"omitempty,min=1"`
}

// ResetUsageRequest selects the cohort and optional day range of a reset
type ResetUsageRequest struct {
	Cohort  string `json:"cohort" binding:"required,oneof=free anonymous"`
	FromDay string `json:"from_day" binding:"omitempty,datetime=2006-01-02"`
	ToDay   string `json:"to_day" binding:"omitempty,datetime=2006-01-02"`
}

// ResetUsageResponse reports how many ledger rows a reset removed
type ResetUsageResponse struct {
	Cohort      string `json:"cohort"`
	RowsRemoved int64  `json:"rows_removed"`
}

// AssignPlan applies an operator plan override to the given account
func (h *AdminHandler) AssignPlan(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("accountId"))
	if err != nil {
		h.BadRequest(c, "Invalid account ID")
		return
	}

	var req AssignPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeValidation), dto.ErrCodeValidation, "Invalid plan assignment payload")
		return
	}

	assignment, err := h.admin.AssignPlan(c.Request.Context(), appmetering.AssignPlanInput{
		AccountID:    accountID,
		Action:       req.Action,
		DurationDays: req.DurationDays,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, assignment)
}

// ResetUsage clears ledger counters for the requested cohort
func (h *AdminHandler) ResetUsage(c *gin.Context) {
	var req ResetUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeValidation), dto.ErrCodeValidation, "Invalid reset payload")
		return
	}

	removed, err := h.admin.ResetUsage(c.Request.Context(), appmetering.ResetUsageInput{
		Cohort:  metering.Cohort(req.Cohort),
		FromDay: req.FromDay,
		ToDay:   req.ToDay,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ResetUsageResponse{Cohort: req.Cohort, RowsRemoved: removed})
}

// TodayTotals returns the current UTC day usage split anonymous vs account
func (h *AdminHandler) TodayTotals(c *gin.Context) {
	totals, err := h.reports.TodayTotals(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, totals)
}

// LastSevenDays returns per-day usage totals for the trailing week
func (h *AdminHandler) LastSevenDays(c *gin.Context) {
	series, err := h.reports.LastSevenDays(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, series)
}

// ListAccounts pages through plan records with their effective tier
func (h *AdminHandler) ListAccounts(c *gin.Context) {
	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeValidation), dto.ErrCodeValidation, "Invalid pagination parameters")
		return
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 50
	}

	accounts, total, err := h.admin.ListAccounts(c.Request.Context(), req.PageSize, (req.Page-1)*req.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, accounts, total, req.Page, req.PageSize)
}

// RegisterRoutes registers admin routes
func (h *AdminHandler) RegisterRoutes(rg *gin.RouterGroup) {
	admin := rg.Group("/admin")
	{
		admin.POST("/plans/:accountId", h.AssignPlan)
		admin.POST("/usage/reset", h.ResetUsage)
		admin.GET("/usage/today", h.TodayTotals)
		admin.GET("/usage/last-7-days", h.LastSevenDays)
		admin.GET("/accounts", h.ListAccounts)
	}
}

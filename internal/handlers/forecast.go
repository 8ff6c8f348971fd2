package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/repos"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/services"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/types"
)

type ForecastHandler struct {
	forecastSvc services.ForecastService
	workflowSvc services.WorkflowService
}

func NewForecastHandler(forecastSvc services.ForecastService, workflowSvc services.WorkflowService) *ForecastHandler {
	return &ForecastHandler{forecastSvc: forecastSvc, workflowSvc: workflowSvc}
}

// POST /api/forecasts
func (h *ForecastHandler) Create(c *gin.Context) {
	var req services.CreateForecastInput
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondValidation(c, "invalid_payload", err.Error())
		return
	}
	forecast, err := h.forecastSvc.Create(c.Request.Context(), nil, req)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, gin.H{"forecast": forecast})
}

// POST /api/forecasts/bulk
func (h *ForecastHandler) BulkCreate(c *gin.Context) {
	var req services.BulkCreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondValidation(c, "invalid_payload", err.Error())
		return
	}
	result, err := h.forecastSvc.BulkCreate(c.Request.Context(), nil, req)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"result": result})
}

// GET /api/forecasts?version_id=&assignment_id=&year=&month=&status=
func (h *ForecastHandler) List(c *gin.Context) {
	var filter repos.ForecastFilter
	if raw := c.Query("version_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			RespondValidation(c, "invalid_id", "invalid version id")
			return
		}
		filter.VersionID = &id
	}
	if raw := c.Query("assignment_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			RespondValidation(c, "invalid_id", "invalid assignment id")
			return
		}
		filter.AssignmentID = &id
	}
	filter.Year = intQuery(c, "year")
	filter.Month = intQuery(c, "month")
	filter.Status = c.Query("status")

	forecasts, err := h.forecastSvc.List(c.Request.Context(), nil, filter)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"forecasts": forecasts})
}

// GET /api/forecasts/:id
func (h *ForecastHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondValidation(c, "invalid_id", "invalid forecast id")
		return
	}
	forecast, err := h.forecastSvc.GetByID(c.Request.Context(), nil, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"forecast": forecast})
}

// PUT /api/forecasts/:id
func (h *ForecastHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondValidation(c, "invalid_id", "invalid forecast id")
		return
	}
	var req services.UpdateForecastInput
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondValidation(c, "invalid_payload", err.Error())
		return
	}
	forecast, err := h.forecastSvc.Update(c.Request.Context(), nil, id, req)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"forecast": forecast})
}

// DELETE /api/forecasts/:id
func (h *ForecastHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondValidation(c, "invalid_id", "invalid forecast id")
		return
	}
	if err := h.forecastSvc.Delete(c.Request.Context(), nil, id); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

// GET /api/forecasts/:id/history
func (h *ForecastHandler) GetHistory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondValidation(c, "invalid_id", "invalid forecast id")
		return
	}
	items, err := h.forecastSvc.GetHistory(c.Request.Context(), nil, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"history": items})
}

// POST /api/forecasts/:id/submit
func (h *ForecastHandler) Submit(c *gin.Context) {
	h.applyTransition(c, func(id uuid.UUID) (*types.Forecast, error) {
		return h.workflowSvc.Submit(c.Request.Context(), nil, id)
	})
}

// POST /api/forecasts/:id/review
func (h *ForecastHandler) Review(c *gin.Context) {
	h.applyTransition(c, func(id uuid.UUID) (*types.Forecast, error) {
		return h.workflowSvc.Review(c.Request.Context(), nil, id)
	})
}

type approveRequest struct {
	Notes string `json:"notes"`
}

// POST /api/forecasts/:id/approve
func (h *ForecastHandler) Approve(c *gin.Context) {
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondValidation(c, "invalid_payload", err.Error())
		return
	}
	h.applyTransition(c, func(id uuid.UUID) (*types.Forecast, error) {
		return h.workflowSvc.Approve(c.Request.Context(), nil, id, req.Notes)
	})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// POST /api/forecasts/:id/reject
func (h *ForecastHandler) Reject(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondValidation(c, "invalid_payload", err.Error())
		return
	}
	h.applyTransition(c, func(id uuid.UUID) (*types.Forecast, error) {
		return h.workflowSvc.Reject(c.Request.Context(), nil, id, req.Reason)
	})
}

type overrideRequest struct {
	NewHours float64 `json:"new_hours"`
	Reason   string  `json:"reason"`
}

// POST /api/forecasts/:id/override
func (h *ForecastHandler) Override(c *gin.Context) {
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondValidation(c, "invalid_payload", err.Error())
		return
	}
	h.applyTransition(c, func(id uuid.UUID) (*types.Forecast, error) {
		return h.workflowSvc.Override(c.Request.Context(), nil, id, req.NewHours, req.Reason)
	})
}

type bulkApproveRequest struct {
	ForecastIDs []uuid.UUID `json:"forecast_ids"`
	Notes       string      `json:"notes"`
}

// POST /api/forecasts/bulk-approve
func (h *ForecastHandler) BulkApprove(c *gin.Context) {
	var req bulkApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondValidation(c, "invalid_payload", err.Error())
		return
	}
	result, err := h.workflowSvc.BulkApprove(c.Request.Context(), nil, req.ForecastIDs, req.Notes)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"result": result})
}

type lockMonthRequest struct {
	ProjectID *uuid.UUID `json:"project_id"`
	UserID    *uuid.UUID `json:"user_id"`
	Year      int        `json:"year"`
	Month     int        `json:"month"`
	Reason    string     `json:"reason"`
}

// POST /api/forecasts/lock-month
func (h *ForecastHandler) LockMonth(c *gin.Context) {
	var req lockMonthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondValidation(c, "invalid_payload", err.Error())
		return
	}
	scope := types.ScopeRef{ProjectID: req.ProjectID, UserID: req.UserID}
	result, err := h.workflowSvc.LockMonth(c.Request.Context(), nil, scope, req.Year, req.Month, req.Reason)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"result": result})
}

func (h *ForecastHandler) applyTransition(c *gin.Context, apply func(id uuid.UUID) (*types.Forecast, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondValidation(c, "invalid_id", "invalid forecast id")
		return
	}
	forecast, err := apply(id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"forecast": forecast})
}

func intQuery(c *gin.Context, key string) int {
	raw := c.Query(key)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

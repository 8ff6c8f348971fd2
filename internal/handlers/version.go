package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/services"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/types"
)

type VersionHandler struct {
	versionSvc    services.VersionService
	comparisonSvc services.ComparisonService
}

func NewVersionHandler(versionSvc services.VersionService, comparisonSvc services.ComparisonService) *VersionHandler {
	return &VersionHandler{versionSvc: versionSvc, comparisonSvc: comparisonSvc}
}

type createVersionRequest struct {
	Name        string     `json:"name"`
	VersionType string     `json:"version_type"`
	ProjectID   *uuid.UUID `json:"project_id"`
	UserID      *uuid.UUID `json:"user_id"`
	StartYear   int        `json:"start_year"`
	StartMonth  int        `json:"start_month"`
	EndYear     int        `json:"end_year"`
	EndMonth    int        `json:"end_month"`
}

// POST /api/forecast-versions
func (h *VersionHandler) Create(c *gin.Context) {
	var req createVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondValidation(c, "invalid_payload", err.Error())
		return
	}
	version, err := h.versionSvc.Create(c.Request.Context(), nil, services.CreateVersionInput{
		Name:        req.Name,
		VersionType: req.VersionType,
		Scope:       types.ScopeRef{ProjectID: req.ProjectID, UserID: req.UserID},
		StartYear:   req.StartYear,
		StartMonth:  req.StartMonth,
		EndYear:     req.EndYear,
		EndMonth:    req.EndMonth,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, gin.H{"version": version})
}

// GET /api/forecast-versions/:id
func (h *VersionHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondValidation(c, "invalid_id", "invalid version id")
		return
	}
	version, err := h.versionSvc.GetByID(c.Request.Context(), nil, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"version": version})
}

func scopeFromQuery(c *gin.Context) (types.ScopeRef, bool) {
	var scope types.ScopeRef
	if raw := c.Query("project_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return scope, false
		}
		scope.ProjectID = &id
	}
	if raw := c.Query("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return scope, false
		}
		scope.UserID = &id
	}
	return scope, true
}

// GET /api/forecast-versions?project_id=|user_id=
func (h *VersionHandler) ListByScope(c *gin.Context) {
	scope, ok := scopeFromQuery(c)
	if !ok {
		RespondValidation(c, "invalid_scope", "invalid scope id")
		return
	}
	versions, err := h.versionSvc.ListByScope(c.Request.Context(), nil, scope)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"versions": versions})
}

// GET /api/forecast-versions/current?project_id=|user_id=
func (h *VersionHandler) GetCurrent(c *gin.Context) {
	scope, ok := scopeFromQuery(c)
	if !ok {
		RespondValidation(c, "invalid_scope", "invalid scope id")
		return
	}
	version, err := h.versionSvc.GetCurrent(c.Request.Context(), nil, scope)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"version": version})
}

type cloneVersionRequest struct {
	Name          string `json:"name"`
	CopyForecasts bool   `json:"copy_forecasts"`
}

// POST /api/forecast-versions/:id/clone
func (h *VersionHandler) Clone(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondValidation(c, "invalid_id", "invalid version id")
		return
	}
	var req cloneVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondValidation(c, "invalid_payload", err.Error())
		return
	}
	version, err := h.versionSvc.Clone(c.Request.Context(), nil, id, services.CloneVersionInput{
		Name:          req.Name,
		CopyForecasts: req.CopyForecasts,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, gin.H{"version": version})
}

// POST /api/forecast-versions/:id/promote
func (h *VersionHandler) Promote(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondValidation(c, "invalid_id", "invalid version id")
		return
	}
	version, err := h.versionSvc.Promote(c.Request.Context(), nil, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"version": version})
}

type archiveVersionRequest struct {
	Reason string `json:"reason"`
}

// POST /api/forecast-versions/:id/archive
func (h *VersionHandler) Archive(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondValidation(c, "invalid_id", "invalid version id")
		return
	}
	var req archiveVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondValidation(c, "invalid_payload", err.Error())
		return
	}
	version, err := h.versionSvc.Archive(c.Request.Context(), nil, id, req.Reason)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"version": version})
}

// DELETE /api/forecast-versions/:id
func (h *VersionHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondValidation(c, "invalid_id", "invalid version id")
		return
	}
	if err := h.versionSvc.Delete(c.Request.Context(), nil, id); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

// GET /api/forecast-versions/compare?version1=&version2=
func (h *VersionHandler) Compare(c *gin.Context) {
	id1, err := uuid.Parse(c.Query("version1"))
	if err != nil {
		RespondValidation(c, "invalid_id", "invalid version1 id")
		return
	}
	id2, err := uuid.Parse(c.Query("version2"))
	if err != nil {
		RespondValidation(c, "invalid_id", "invalid version2 id")
		return
	}
	comparison, err := h.comparisonSvc.Compare(c.Request.Context(), nil, id1, id2)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"comparison": comparison})
}

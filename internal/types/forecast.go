package types

import (
	"time"

	"github.com/google/uuid"
)

// Forecast workflow status codes. Locked is terminal; Approved is
// soft-terminal (a reject/re-submit cycle can reopen it only through Draft).
const (
	ForecastStatusDraft     = "draft"
	ForecastStatusSubmitted = "submitted"
	ForecastStatusReviewed  = "reviewed"
	ForecastStatusApproved  = "approved"
	ForecastStatusLocked    = "locked"
)

// Forecast is one period-level labor-hour line inside a version. The natural
// key (assignment_id, version_id, year, month, week) is unique; week 0 means
// the row covers the whole month.
type Forecast struct {
	ID                      uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID                uuid.UUID  `gorm:"type:uuid;not null;index" json:"tenant_id"`
	AssignmentID            uuid.UUID  `gorm:"type:uuid;not null;index:idx_forecast_natural_key,unique" json:"assignment_id"`
	VersionID               uuid.UUID  `gorm:"type:uuid;not null;index:idx_forecast_natural_key,unique;index:idx_forecast_version_period" json:"version_id"`
	Year                    int        `gorm:"not null;index:idx_forecast_natural_key,unique;index:idx_forecast_version_period" json:"year"`
	Month                   int        `gorm:"not null;index:idx_forecast_natural_key,unique;index:idx_forecast_version_period" json:"month"`
	Week                    int        `gorm:"not null;default:0;index:idx_forecast_natural_key,unique" json:"week"`
	ForecastedHours         float64    `gorm:"type:numeric(10,2);not null;column:forecasted_hours" json:"forecasted_hours"`
	RecommendedHours        *float64   `gorm:"type:numeric(10,2);column:recommended_hours" json:"recommended_hours,omitempty"`
	Status                  string     `gorm:"not null;default:'draft';index;column:status" json:"status"`
	SubmittedAt             *time.Time `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	ApprovedAt              *time.Time `gorm:"column:approved_at" json:"approved_at,omitempty"`
	ApprovalNotes           string     `gorm:"column:approval_notes" json:"approval_notes,omitempty"`
	IsOverride              bool       `gorm:"not null;default:false;column:is_override" json:"is_override"`
	OverrideReason          string     `gorm:"column:override_reason" json:"override_reason,omitempty"`
	OriginalForecastedHours *float64   `gorm:"type:numeric(10,2);column:original_forecasted_hours" json:"original_forecasted_hours,omitempty"`
	Notes                   string     `gorm:"column:notes" json:"notes,omitempty"`
	CreatedBy               uuid.UUID  `gorm:"type:uuid;column:created_by" json:"created_by"`
	CreatedAt               time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt               time.Time  `gorm:"not null" json:"updated_at"`
}

func (Forecast) TableName() string { return "forecast" }

// IsLocked reports whether the record reached the immutable terminal state.
func (f *Forecast) IsLocked() bool { return f.Status == ForecastStatusLocked }

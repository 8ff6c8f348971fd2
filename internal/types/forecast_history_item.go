package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// History change-type codes. One history row is written per mutating
// operation on a Forecast.
const (
	ChangeTypeCreate   = "create"
	ChangeTypeUpdate   = "update"
	ChangeTypeSubmit   = "submit"
	ChangeTypeReview   = "review"
	ChangeTypeApprove  = "approve"
	ChangeTypeReject   = "reject"
	ChangeTypeOverride = "override"
	ChangeTypeLock     = "lock"
	ChangeTypeDelete   = "delete"
)

// ForecastHistoryItem is an append-only audit row. ForecastID is a plain
// indexed column, not a foreign key: the ledger observes forecasts, it does
// not own them, and it survives forecast deletion.
type ForecastHistoryItem struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ForecastID     uuid.UUID      `gorm:"type:uuid;not null;index:idx_history_forecast" json:"forecast_id"`
	ChangedByID    uuid.UUID      `gorm:"type:uuid;not null;column:changed_by_id" json:"changed_by_id"`
	ChangedAt      time.Time      `gorm:"not null;column:changed_at" json:"changed_at"`
	ChangeType     string         `gorm:"not null;column:change_type" json:"change_type"`
	PreviousHours  *float64       `gorm:"type:numeric(10,2);column:previous_hours" json:"previous_hours,omitempty"`
	NewHours       *float64       `gorm:"type:numeric(10,2);column:new_hours" json:"new_hours,omitempty"`
	PreviousStatus string         `gorm:"column:previous_status" json:"previous_status,omitempty"`
	NewStatus      string         `gorm:"column:new_status" json:"new_status,omitempty"`
	ChangeReason   string         `gorm:"column:change_reason" json:"change_reason,omitempty"`
	Metadata       datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata,omitempty"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
}

func (ForecastHistoryItem) TableName() string { return "forecast_history_item" }

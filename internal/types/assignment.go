package types

import (
	"time"

	"github.com/google/uuid"
)

// Assignment is owned by the staffing collaborator; this core only checks
// that a referenced assignment exists in the caller's tenant and copies its
// display metadata into comparison output. Never written here.
type Assignment struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ProjectID     *uuid.UUID `gorm:"type:uuid;index" json:"project_id,omitempty"`
	AssignedTo    *uuid.UUID `gorm:"type:uuid;index;column:assigned_to" json:"assigned_to,omitempty"`
	ProjectName   string     `gorm:"column:project_name" json:"project_name"`
	PositionTitle string     `gorm:"column:position_title" json:"position_title"`
	IsActive      bool       `gorm:"not null;default:true;column:is_active" json:"is_active"`
	CreatedAt     time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null" json:"updated_at"`
}

func (Assignment) TableName() string { return "assignment" }

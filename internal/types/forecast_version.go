package types

import (
	"time"

	"github.com/google/uuid"
)

// Version type codes.
const (
	VersionTypeCurrent    = "current"
	VersionTypeWhatIf     = "what_if"
	VersionTypeHistorical = "historical"
	VersionTypeImport     = "import"
)

// ForecastVersion is one named labor-hour forecast for a scope: either a
// project or a user, never both. At most one version per (tenant, scope)
// carries IsCurrent = true. The flip happens inside a single transaction, and
// the partial unique indexes below enforce the invariant at the storage layer
// so a promote that raced past the in-transaction demotion fails on write
// instead of leaving two current rows.
type ForecastVersion struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID         uuid.UUID  `gorm:"type:uuid;not null;index:idx_version_scope;index:idx_version_one_current_project,unique,where:is_current,priority:1;index:idx_version_one_current_user,unique,where:is_current,priority:1" json:"tenant_id"`
	Name             string     `gorm:"not null;column:name" json:"name"`
	VersionType      string     `gorm:"not null;default:'what_if';column:version_type" json:"version_type"`
	ProjectID        *uuid.UUID `gorm:"type:uuid;index:idx_version_scope;index:idx_version_one_current_project,unique,priority:2" json:"project_id,omitempty"`
	ScopeUserID      *uuid.UUID `gorm:"type:uuid;index:idx_version_scope;index:idx_version_one_current_user,unique,priority:2" json:"scope_user_id,omitempty"`
	IsCurrent        bool       `gorm:"not null;default:false;column:is_current" json:"is_current"`
	VersionNumber    int        `gorm:"not null;default:1;column:version_number" json:"version_number"`
	BasedOnVersionID *uuid.UUID `gorm:"type:uuid;index;column:based_on_version_id" json:"based_on_version_id,omitempty"`
	StartYear        int        `gorm:"not null;column:start_year" json:"start_year"`
	StartMonth       int        `gorm:"not null;column:start_month" json:"start_month"`
	EndYear          int        `gorm:"not null;column:end_year" json:"end_year"`
	EndMonth         int        `gorm:"not null;column:end_month" json:"end_month"`
	PromotedAt       *time.Time `gorm:"column:promoted_at" json:"promoted_at,omitempty"`
	ArchivedAt       *time.Time `gorm:"column:archived_at" json:"archived_at,omitempty"`
	ArchiveReason    string     `gorm:"column:archive_reason" json:"archive_reason,omitempty"`
	CreatedBy        uuid.UUID  `gorm:"type:uuid;column:created_by" json:"created_by"`
	CreatedAt        time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"not null" json:"updated_at"`
}

func (ForecastVersion) TableName() string { return "forecast_version" }

// IsArchived reports whether the version reached its terminal archived state.
func (v *ForecastVersion) IsArchived() bool { return v.ArchivedAt != nil }

// ScopeRef identifies the boundary a version is current within: exactly one
// of ProjectID / UserID is set.
type ScopeRef struct {
	ProjectID *uuid.UUID `json:"project_id,omitempty"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
}

func (s ScopeRef) Valid() bool {
	return (s.ProjectID != nil) != (s.UserID != nil)
}

// Scope returns the version's own scope reference.
func (v *ForecastVersion) Scope() ScopeRef {
	return ScopeRef{ProjectID: v.ProjectID, UserID: v.ScopeUserID}
}

// ContainsPeriod reports whether (year, month) falls inside the version's
// inclusive period range.
func (v *ForecastVersion) ContainsPeriod(year, month int) bool {
	start := v.StartYear*100 + v.StartMonth
	end := v.EndYear*100 + v.EndMonth
	p := year*100 + month
	return p >= start && p <= end
}

package types

import "github.com/google/uuid"

// BulkCreateResult is the summary-count shape returned by bulk upsert. Bulk
// calls never return partial success lists; per-item failures are folded into
// FailedCount.
type BulkCreateResult struct {
	TotalRequested int `json:"total_requested"`
	CreatedCount   int `json:"created_count"`
	UpdatedCount   int `json:"updated_count"`
	SkippedCount   int `json:"skipped_count"`
	FailedCount    int `json:"failed_count"`
}

type BulkApproveResult struct {
	TotalRequested int `json:"total_requested"`
	ApprovedCount  int `json:"approved_count"`
	SkippedCount   int `json:"skipped_count"`
	FailedCount    int `json:"failed_count"`
}

type LockMonthResult struct {
	Year           int `json:"year"`
	Month          int `json:"month"`
	TotalForecasts int `json:"total_forecasts"`
	LockedCount    int `json:"locked_count"`
}

// ForecastComparisonItem is one (assignment, year, month) line of a version
// diff. A nil hours pointer means the side has no row at all, which is
// distinct from a row carrying zero hours.
type ForecastComparisonItem struct {
	AssignmentID    uuid.UUID `json:"assignment_id"`
	ProjectName     string    `json:"project_name,omitempty"`
	PositionTitle   string    `json:"position_title,omitempty"`
	Year            int       `json:"year"`
	Month           int       `json:"month"`
	Version1Hours   *float64  `json:"version1_hours"`
	Version2Hours   *float64  `json:"version2_hours"`
	Version1Status  string    `json:"version1_status,omitempty"`
	Version2Status  string    `json:"version2_status,omitempty"`
	HoursDifference float64   `json:"hours_difference"`
	IsNew           bool      `json:"is_new"`
	IsRemoved       bool      `json:"is_removed"`
	IsChanged       bool      `json:"is_changed"`
}

// ForecastComparison aggregates a full diff between two versions.
type ForecastComparison struct {
	Version1ID              uuid.UUID                 `json:"version1_id"`
	Version2ID              uuid.UUID                 `json:"version2_id"`
	Version1Name            string                    `json:"version1_name"`
	Version2Name            string                    `json:"version2_name"`
	Version1TotalHours      float64                   `json:"version1_total_hours"`
	Version2TotalHours      float64                   `json:"version2_total_hours"`
	HoursDifference         float64                   `json:"hours_difference"`
	PercentChange           float64                   `json:"percent_change"`
	NewForecastsCount       int                       `json:"new_forecasts_count"`
	RemovedForecastsCount   int                       `json:"removed_forecasts_count"`
	ChangedForecastsCount   int                       `json:"changed_forecasts_count"`
	UnchangedForecastsCount int                       `json:"unchanged_forecasts_count"`
	Items                   []*ForecastComparisonItem `json:"items"`
}

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/apierr"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/logger"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/repos"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/types"
)

type CreateForecastInput struct {
	AssignmentID     uuid.UUID `json:"assignment_id"`
	VersionID        uuid.UUID `json:"version_id"`
	Year             int       `json:"year"`
	Month            int       `json:"month"`
	Week             int       `json:"week"`
	ForecastedHours  float64   `json:"forecasted_hours"`
	RecommendedHours *float64  `json:"recommended_hours"`
	Notes            string    `json:"notes"`
}

type BulkCreateItem struct {
	AssignmentID     uuid.UUID `json:"assignment_id"`
	Year             int       `json:"year"`
	Month            int       `json:"month"`
	Week             int       `json:"week"`
	ForecastedHours  float64   `json:"forecasted_hours"`
	RecommendedHours *float64  `json:"recommended_hours"`
	Notes            string    `json:"notes"`
}

type BulkCreateInput struct {
	VersionID      uuid.UUID        `json:"version_id"`
	UpdateExisting bool             `json:"update_existing"`
	Items          []BulkCreateItem `json:"items"`
}

type UpdateForecastInput struct {
	ForecastedHours *float64 `json:"forecasted_hours"`
	Notes           *string  `json:"notes"`
}

// ForecastService is the forecast store: it owns period-level records and the
// natural-key uniqueness invariant. Status progression lives in the workflow
// service, not here.
type ForecastService interface {
	Create(ctx context.Context, tx *gorm.DB, input CreateForecastInput) (*types.Forecast, error)
	BulkCreate(ctx context.Context, tx *gorm.DB, input BulkCreateInput) (*types.BulkCreateResult, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Forecast, error)
	List(ctx context.Context, tx *gorm.DB, filter repos.ForecastFilter) ([]*types.Forecast, error)
	Update(ctx context.Context, tx *gorm.DB, id uuid.UUID, input UpdateForecastInput) (*types.Forecast, error)
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	GetHistory(ctx context.Context, tx *gorm.DB, id uuid.UUID) ([]*types.ForecastHistoryItem, error)
}

type forecastService struct {
	db             *gorm.DB
	log            *logger.Logger
	forecastRepo   repos.ForecastRepo
	versionRepo    repos.ForecastVersionRepo
	assignmentRepo repos.AssignmentRepo
	historyRepo    repos.ForecastHistoryRepo
}

func NewForecastService(
	db *gorm.DB,
	baseLog *logger.Logger,
	forecastRepo repos.ForecastRepo,
	versionRepo repos.ForecastVersionRepo,
	assignmentRepo repos.AssignmentRepo,
	historyRepo repos.ForecastHistoryRepo,
) ForecastService {
	serviceLog := baseLog.With("service", "ForecastService")
	return &forecastService{
		db:             db,
		log:            serviceLog,
		forecastRepo:   forecastRepo,
		versionRepo:    versionRepo,
		assignmentRepo: assignmentRepo,
		historyRepo:    historyRepo,
	}
}

func (s *forecastService) resolve(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

func (s *forecastService) Create(ctx context.Context, tx *gorm.DB, input CreateForecastInput) (*types.Forecast, error) {
	rd, err := callerIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if input.ForecastedHours < 0 {
		return nil, apierr.Validation("invalid_hours", "forecasted hours cannot be negative")
	}
	if !validPeriod(input.Year, input.Month) {
		return nil, apierr.Validation("invalid_period", "period %d-%d is not a valid year/month", input.Year, input.Month)
	}
	if input.Week < 0 || input.Week > 5 {
		return nil, apierr.Validation("invalid_week", "week must be between 0 (whole month) and 5")
	}

	var created *types.Forecast
	err = s.resolve(tx).Transaction(func(txn *gorm.DB) error {
		version, err := s.versionRepo.GetByID(ctx, txn, rd.TenantID, input.VersionID)
		if err != nil {
			return fmt.Errorf("load version: %w", err)
		}
		if version == nil {
			return apierr.NotFound("version_not_found", "forecast version %s not found", input.VersionID)
		}
		if version.IsArchived() {
			return apierr.State("version_archived", "cannot add forecasts to an archived version")
		}
		if !version.ContainsPeriod(input.Year, input.Month) {
			return apierr.Validation("period_out_of_range", "period %d-%d is outside the version range", input.Year, input.Month)
		}
		exists, err := s.assignmentRepo.Exists(ctx, txn, rd.TenantID, input.AssignmentID)
		if err != nil {
			return fmt.Errorf("check assignment: %w", err)
		}
		if !exists {
			return apierr.NotFound("assignment_not_found", "assignment %s not found", input.AssignmentID)
		}

		forecast := &types.Forecast{
			ID:               uuid.New(),
			TenantID:         rd.TenantID,
			AssignmentID:     input.AssignmentID,
			VersionID:        input.VersionID,
			Year:             input.Year,
			Month:            input.Month,
			Week:             input.Week,
			ForecastedHours:  input.ForecastedHours,
			RecommendedHours: input.RecommendedHours,
			Status:           types.ForecastStatusDraft,
			Notes:            input.Notes,
			CreatedBy:        rd.UserID,
		}
		// The unique index is the real guard; a lost race shows up as zero
		// rows affected, never as a duplicate row.
		affected, err := s.forecastRepo.CreateIgnoreConflict(ctx, txn, forecast)
		if err != nil {
			return fmt.Errorf("create forecast: %w", err)
		}
		if affected == 0 {
			return apierr.Conflict("duplicate_forecast", "a forecast already exists for this assignment and period")
		}

		hours := forecast.ForecastedHours
		item := &types.ForecastHistoryItem{
			ID:          uuid.New(),
			TenantID:    rd.TenantID,
			ForecastID:  forecast.ID,
			ChangedByID: rd.UserID,
			ChangedAt:   time.Now(),
			ChangeType:  types.ChangeTypeCreate,
			NewHours:    &hours,
			NewStatus:   types.ForecastStatusDraft,
		}
		if err := s.historyRepo.Create(ctx, txn, []*types.ForecastHistoryItem{item}); err != nil {
			return fmt.Errorf("write history: %w", err)
		}
		created = forecast
		return nil
	})
	if err != nil {
		s.log.Error("Create forecast failed", "error", err)
		return nil, err
	}
	s.log.Info("Forecast created", "forecast_id", created.ID, "version_id", created.VersionID)
	return created, nil
}

// BulkCreate upserts a batch of period/hours items into one version. Each
// item resolves independently: absent keys are created, present keys are
// updated when UpdateExisting is set and skipped otherwise, and structurally
// bad items (unknown assignment, invalid period, locked row) fail without
// aborting the rest.
func (s *forecastService) BulkCreate(ctx context.Context, tx *gorm.DB, input BulkCreateInput) (*types.BulkCreateResult, error) {
	rd, err := callerIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if len(input.Items) == 0 {
		return nil, apierr.Validation("missing_items", "at least one item is required")
	}

	version, err := s.versionRepo.GetByID(ctx, s.resolve(tx), rd.TenantID, input.VersionID)
	if err != nil {
		return nil, fmt.Errorf("load version: %w", err)
	}
	if version == nil {
		return nil, apierr.NotFound("version_not_found", "forecast version %s not found", input.VersionID)
	}
	if version.IsArchived() {
		return nil, apierr.State("version_archived", "cannot add forecasts to an archived version")
	}

	// One existence probe for the whole batch instead of one per item.
	assignmentIDs := make([]uuid.UUID, 0, len(input.Items))
	seen := map[uuid.UUID]bool{}
	for _, item := range input.Items {
		if !seen[item.AssignmentID] {
			seen[item.AssignmentID] = true
			assignmentIDs = append(assignmentIDs, item.AssignmentID)
		}
	}
	assignments, err := s.assignmentRepo.GetByIDs(ctx, s.resolve(tx), rd.TenantID, assignmentIDs)
	if err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}
	known := make(map[uuid.UUID]bool, len(assignments))
	for _, a := range assignments {
		known[a.ID] = true
	}

	result := &types.BulkCreateResult{TotalRequested: len(input.Items)}
	for _, item := range input.Items {
		outcome, err := s.upsertOne(ctx, tx, rd.TenantID, rd.UserID, version, item, input.UpdateExisting, known)
		if err != nil {
			s.log.Warn("Bulk upsert item failed", "assignment_id", item.AssignmentID, "year", item.Year, "month", item.Month, "error", err)
			result.FailedCount++
			continue
		}
		switch outcome {
		case upsertCreated:
			result.CreatedCount++
		case upsertUpdated:
			result.UpdatedCount++
		case upsertSkipped:
			result.SkippedCount++
		}
	}

	s.log.Info("Bulk upsert finished",
		"version_id", input.VersionID,
		"total", result.TotalRequested,
		"created", result.CreatedCount,
		"updated", result.UpdatedCount,
		"skipped", result.SkippedCount,
		"failed", result.FailedCount,
	)
	return result, nil
}

type upsertOutcome int

const (
	upsertCreated upsertOutcome = iota
	upsertUpdated
	upsertSkipped
)

func (s *forecastService) upsertOne(
	ctx context.Context,
	tx *gorm.DB,
	tenantID, userID uuid.UUID,
	version *types.ForecastVersion,
	item BulkCreateItem,
	updateExisting bool,
	knownAssignments map[uuid.UUID]bool,
) (upsertOutcome, error) {
	if !knownAssignments[item.AssignmentID] {
		return 0, apierr.NotFound("assignment_not_found", "assignment %s not found", item.AssignmentID)
	}
	if !validPeriod(item.Year, item.Month) || item.Week < 0 || item.Week > 5 {
		return 0, apierr.Validation("invalid_period", "period %d-%d week %d is invalid", item.Year, item.Month, item.Week)
	}
	if !version.ContainsPeriod(item.Year, item.Month) {
		return 0, apierr.Validation("period_out_of_range", "period %d-%d is outside the version range", item.Year, item.Month)
	}
	if item.ForecastedHours < 0 {
		return 0, apierr.Validation("invalid_hours", "forecasted hours cannot be negative")
	}

	var outcome upsertOutcome
	err := s.resolve(tx).Transaction(func(txn *gorm.DB) error {
		existing, err := s.forecastRepo.GetByNaturalKey(ctx, txn, tenantID, item.AssignmentID, version.ID, item.Year, item.Month, item.Week)
		if err != nil {
			return fmt.Errorf("resolve natural key: %w", err)
		}

		if existing == nil {
			forecast := &types.Forecast{
				ID:               uuid.New(),
				TenantID:         tenantID,
				AssignmentID:     item.AssignmentID,
				VersionID:        version.ID,
				Year:             item.Year,
				Month:            item.Month,
				Week:             item.Week,
				ForecastedHours:  item.ForecastedHours,
				RecommendedHours: item.RecommendedHours,
				Status:           types.ForecastStatusDraft,
				Notes:            item.Notes,
				CreatedBy:        userID,
			}
			affected, err := s.forecastRepo.CreateIgnoreConflict(ctx, txn, forecast)
			if err != nil {
				return fmt.Errorf("create forecast: %w", err)
			}
			if affected == 0 {
				// Raced another upsert for the same key; fall back to the
				// existing-row branches below on re-read.
				existing, err = s.forecastRepo.GetByNaturalKey(ctx, txn, tenantID, item.AssignmentID, version.ID, item.Year, item.Month, item.Week)
				if err != nil {
					return fmt.Errorf("re-resolve natural key: %w", err)
				}
				if existing == nil {
					// The racing row was deleted before the re-read.
					return apierr.Conflict("duplicate_forecast", "forecast for this period changed concurrently")
				}
			} else {
				hours := forecast.ForecastedHours
				outcome = upsertCreated
				return s.historyRepo.Create(ctx, txn, []*types.ForecastHistoryItem{{
					ID:          uuid.New(),
					TenantID:    tenantID,
					ForecastID:  forecast.ID,
					ChangedByID: userID,
					ChangedAt:   time.Now(),
					ChangeType:  types.ChangeTypeCreate,
					NewHours:    &hours,
					NewStatus:   types.ForecastStatusDraft,
				}})
			}
		}

		if existing.IsLocked() {
			return apierr.Locked("forecast_locked", "forecast for this period is locked")
		}
		if !updateExisting {
			outcome = upsertSkipped
			return nil
		}

		fields := map[string]interface{}{
			"forecasted_hours": item.ForecastedHours,
			"notes":            item.Notes,
		}
		if item.RecommendedHours != nil {
			fields["recommended_hours"] = *item.RecommendedHours
		}
		if err := s.forecastRepo.UpdateFields(ctx, txn, tenantID, existing.ID, fields); err != nil {
			return fmt.Errorf("update forecast: %w", err)
		}
		prevHours := existing.ForecastedHours
		newHours := item.ForecastedHours
		outcome = upsertUpdated
		return s.historyRepo.Create(ctx, txn, []*types.ForecastHistoryItem{{
			ID:             uuid.New(),
			TenantID:       tenantID,
			ForecastID:     existing.ID,
			ChangedByID:    userID,
			ChangedAt:      time.Now(),
			ChangeType:     types.ChangeTypeUpdate,
			PreviousHours:  &prevHours,
			NewHours:       &newHours,
			PreviousStatus: existing.Status,
			NewStatus:      existing.Status,
		}})
	})
	if err != nil {
		return 0, err
	}
	return outcome, nil
}

func (s *forecastService) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Forecast, error) {
	rd, err := callerIdentity(ctx)
	if err != nil {
		return nil, err
	}
	forecast, err := s.forecastRepo.GetByID(ctx, s.resolve(tx), rd.TenantID, id)
	if err != nil {
		return nil, fmt.Errorf("load forecast: %w", err)
	}
	if forecast == nil {
		return nil, apierr.NotFound("forecast_not_found", "forecast %s not found", id)
	}
	return forecast, nil
}

func (s *forecastService) List(ctx context.Context, tx *gorm.DB, filter repos.ForecastFilter) ([]*types.Forecast, error) {
	rd, err := callerIdentity(ctx)
	if err != nil {
		return nil, err
	}
	forecasts, err := s.forecastRepo.List(ctx, s.resolve(tx), rd.TenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("list forecasts: %w", err)
	}
	return forecasts, nil
}

func (s *forecastService) Update(ctx context.Context, tx *gorm.DB, id uuid.UUID, input UpdateForecastInput) (*types.Forecast, error) {
	rd, err := callerIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if input.ForecastedHours == nil && input.Notes == nil {
		return nil, apierr.Validation("empty_update", "nothing to update")
	}
	if input.ForecastedHours != nil && *input.ForecastedHours < 0 {
		return nil, apierr.Validation("invalid_hours", "forecasted hours cannot be negative")
	}

	var updated *types.Forecast
	err = s.resolve(tx).Transaction(func(txn *gorm.DB) error {
		forecast, err := s.forecastRepo.GetByID(ctx, txn, rd.TenantID, id)
		if err != nil {
			return fmt.Errorf("load forecast: %w", err)
		}
		if forecast == nil {
			return apierr.NotFound("forecast_not_found", "forecast %s not found", id)
		}
		if forecast.IsLocked() {
			return apierr.Locked("forecast_locked", "forecast is locked and cannot be modified")
		}

		fields := map[string]interface{}{}
		if input.ForecastedHours != nil {
			fields["forecasted_hours"] = *input.ForecastedHours
		}
		if input.Notes != nil {
			fields["notes"] = *input.Notes
		}
		if err := s.forecastRepo.UpdateFields(ctx, txn, rd.TenantID, id, fields); err != nil {
			return fmt.Errorf("update forecast: %w", err)
		}

		prevHours := forecast.ForecastedHours
		newHours := forecast.ForecastedHours
		if input.ForecastedHours != nil {
			newHours = *input.ForecastedHours
		}
		item := &types.ForecastHistoryItem{
			ID:             uuid.New(),
			TenantID:       rd.TenantID,
			ForecastID:     id,
			ChangedByID:    rd.UserID,
			ChangedAt:      time.Now(),
			ChangeType:     types.ChangeTypeUpdate,
			PreviousHours:  &prevHours,
			NewHours:       &newHours,
			PreviousStatus: forecast.Status,
			NewStatus:      forecast.Status,
		}
		if err := s.historyRepo.Create(ctx, txn, []*types.ForecastHistoryItem{item}); err != nil {
			return fmt.Errorf("write history: %w", err)
		}

		updated, err = s.forecastRepo.GetByID(ctx, txn, rd.TenantID, id)
		if err != nil {
			return fmt.Errorf("reload forecast: %w", err)
		}
		return nil
	})
	if err != nil {
		s.log.Error("Update forecast failed", "error", err, "forecast_id", id)
		return nil, err
	}
	return updated, nil
}

func (s *forecastService) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	rd, err := callerIdentity(ctx)
	if err != nil {
		return err
	}

	err = s.resolve(tx).Transaction(func(txn *gorm.DB) error {
		forecast, err := s.forecastRepo.GetByID(ctx, txn, rd.TenantID, id)
		if err != nil {
			return fmt.Errorf("load forecast: %w", err)
		}
		if forecast == nil {
			return apierr.NotFound("forecast_not_found", "forecast %s not found", id)
		}
		if forecast.IsLocked() {
			return apierr.Locked("forecast_locked", "forecast is locked and cannot be deleted")
		}

		// Ledger row first: it survives the forecast it describes.
		hours := forecast.ForecastedHours
		item := &types.ForecastHistoryItem{
			ID:             uuid.New(),
			TenantID:       rd.TenantID,
			ForecastID:     id,
			ChangedByID:    rd.UserID,
			ChangedAt:      time.Now(),
			ChangeType:     types.ChangeTypeDelete,
			PreviousHours:  &hours,
			PreviousStatus: forecast.Status,
		}
		if err := s.historyRepo.Create(ctx, txn, []*types.ForecastHistoryItem{item}); err != nil {
			return fmt.Errorf("write history: %w", err)
		}
		return s.forecastRepo.Delete(ctx, txn, rd.TenantID, id)
	})
	if err != nil {
		s.log.Error("Delete forecast failed", "error", err, "forecast_id", id)
		return err
	}
	s.log.Info("Forecast deleted", "forecast_id", id)
	return nil
}

func (s *forecastService) GetHistory(ctx context.Context, tx *gorm.DB, id uuid.UUID) ([]*types.ForecastHistoryItem, error) {
	rd, err := callerIdentity(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.historyRepo.ListByForecastID(ctx, s.resolve(tx), rd.TenantID, id)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return items, nil
}

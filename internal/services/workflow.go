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

type workflowAction string

const (
	actionSubmit  workflowAction = "submit"
	actionReview  workflowAction = "review"
	actionApprove workflowAction = "approve"
	actionReject  workflowAction = "reject"
	actionLock    workflowAction = "lock"
)

// workflowTransitions is the full state machine: (action, current status) ->
// next status. An absent entry is an illegal transition. Lock is reachable
// from every non-locked status because month locking bypasses review
// adjacency.
var workflowTransitions = map[workflowAction]map[string]string{
	actionSubmit: {
		types.ForecastStatusDraft: types.ForecastStatusSubmitted,
	},
	actionReview: {
		types.ForecastStatusSubmitted: types.ForecastStatusReviewed,
	},
	actionApprove: {
		types.ForecastStatusSubmitted: types.ForecastStatusApproved,
		types.ForecastStatusReviewed:  types.ForecastStatusApproved,
	},
	actionReject: {
		types.ForecastStatusSubmitted: types.ForecastStatusDraft,
		types.ForecastStatusReviewed:  types.ForecastStatusDraft,
	},
	actionLock: {
		types.ForecastStatusDraft:     types.ForecastStatusLocked,
		types.ForecastStatusSubmitted: types.ForecastStatusLocked,
		types.ForecastStatusReviewed:  types.ForecastStatusLocked,
		types.ForecastStatusApproved:  types.ForecastStatusLocked,
	},
}

// nextStatus resolves one transition. Locked records reject every action with
// LockedError; anything else missing from the table is a StateError.
func nextStatus(action workflowAction, current string) (string, error) {
	if current == types.ForecastStatusLocked {
		return "", apierr.Locked("forecast_locked", "forecast is locked and cannot be modified")
	}
	next, ok := workflowTransitions[action][current]
	if !ok {
		return "", apierr.State("invalid_transition", "cannot %s a forecast in status %q", action, current)
	}
	return next, nil
}

// WorkflowService drives a forecast through its review lifecycle, applies
// reason-audited overrides, and bulk-locks whole months. Every mutation
// writes exactly one history ledger row.
type WorkflowService interface {
	Submit(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Forecast, error)
	Review(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Forecast, error)
	Approve(ctx context.Context, tx *gorm.DB, id uuid.UUID, notes string) (*types.Forecast, error)
	Reject(ctx context.Context, tx *gorm.DB, id uuid.UUID, reason string) (*types.Forecast, error)
	Override(ctx context.Context, tx *gorm.DB, id uuid.UUID, newHours float64, reason string) (*types.Forecast, error)
	BulkApprove(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, notes string) (*types.BulkApproveResult, error)
	LockMonth(ctx context.Context, tx *gorm.DB, scope types.ScopeRef, year, month int, reason string) (*types.LockMonthResult, error)
}

type workflowService struct {
	db           *gorm.DB
	log          *logger.Logger
	forecastRepo repos.ForecastRepo
	versionRepo  repos.ForecastVersionRepo
	historyRepo  repos.ForecastHistoryRepo
}

func NewWorkflowService(
	db *gorm.DB,
	baseLog *logger.Logger,
	forecastRepo repos.ForecastRepo,
	versionRepo repos.ForecastVersionRepo,
	historyRepo repos.ForecastHistoryRepo,
) WorkflowService {
	serviceLog := baseLog.With("service", "WorkflowService")
	return &workflowService{
		db:           db,
		log:          serviceLog,
		forecastRepo: forecastRepo,
		versionRepo:  versionRepo,
		historyRepo:  historyRepo,
	}
}

func (s *workflowService) resolve(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

// transition applies one action to one forecast inside its own transaction:
// the status is re-read inside the transaction, so a concurrent lock is seen
// before the write happens.
func (s *workflowService) transition(
	ctx context.Context,
	tx *gorm.DB,
	id uuid.UUID,
	action workflowAction,
	reason string,
	mutate func(f *types.Forecast, next string, fields map[string]interface{}),
) (*types.Forecast, error) {
	rd, err := callerIdentity(ctx)
	if err != nil {
		return nil, err
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
		next, err := nextStatus(action, forecast.Status)
		if err != nil {
			return err
		}

		fields := map[string]interface{}{"status": next}
		if mutate != nil {
			mutate(forecast, next, fields)
		}
		if err := s.forecastRepo.UpdateFields(ctx, txn, rd.TenantID, id, fields); err != nil {
			return fmt.Errorf("update forecast: %w", err)
		}

		prevHours := forecast.ForecastedHours
		item := &types.ForecastHistoryItem{
			ID:             uuid.New(),
			TenantID:       rd.TenantID,
			ForecastID:     id,
			ChangedByID:    rd.UserID,
			ChangedAt:      time.Now(),
			ChangeType:     string(action),
			PreviousHours:  &prevHours,
			NewHours:       &prevHours,
			PreviousStatus: forecast.Status,
			NewStatus:      next,
			ChangeReason:   reason,
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
		return nil, err
	}
	s.log.Info("Forecast transition applied", "forecast_id", id, "action", string(action), "status", updated.Status)
	return updated, nil
}

func (s *workflowService) Submit(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Forecast, error) {
	return s.transition(ctx, tx, id, actionSubmit, "", func(f *types.Forecast, next string, fields map[string]interface{}) {
		fields["submitted_at"] = time.Now()
	})
}

func (s *workflowService) Review(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Forecast, error) {
	return s.transition(ctx, tx, id, actionReview, "", nil)
}

func (s *workflowService) Approve(ctx context.Context, tx *gorm.DB, id uuid.UUID, notes string) (*types.Forecast, error) {
	return s.transition(ctx, tx, id, actionApprove, notes, func(f *types.Forecast, next string, fields map[string]interface{}) {
		fields["approved_at"] = time.Now()
		fields["approval_notes"] = notes
	})
}

// Reject returns the forecast to draft for correction; the submission and
// approval marks are cleared so the next submit starts a clean cycle.
func (s *workflowService) Reject(ctx context.Context, tx *gorm.DB, id uuid.UUID, reason string) (*types.Forecast, error) {
	if reason == "" {
		return nil, apierr.Validation("missing_reason", "a rejection reason is required")
	}
	return s.transition(ctx, tx, id, actionReject, reason, func(f *types.Forecast, next string, fields map[string]interface{}) {
		fields["submitted_at"] = nil
		fields["approved_at"] = nil
		fields["approval_notes"] = ""
	})
}

// Override corrects hours directly without moving the workflow status. The
// original hours are captured only on the first override of a record.
func (s *workflowService) Override(ctx context.Context, tx *gorm.DB, id uuid.UUID, newHours float64, reason string) (*types.Forecast, error) {
	rd, err := callerIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, apierr.Validation("missing_reason", "an override reason is required")
	}
	if newHours < 0 {
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

		fields := map[string]interface{}{
			"forecasted_hours": newHours,
			"is_override":      true,
			"override_reason":  reason,
		}
		if forecast.OriginalForecastedHours == nil {
			fields["original_forecasted_hours"] = forecast.ForecastedHours
		}
		if err := s.forecastRepo.UpdateFields(ctx, txn, rd.TenantID, id, fields); err != nil {
			return fmt.Errorf("update forecast: %w", err)
		}

		prevHours := forecast.ForecastedHours
		item := &types.ForecastHistoryItem{
			ID:             uuid.New(),
			TenantID:       rd.TenantID,
			ForecastID:     id,
			ChangedByID:    rd.UserID,
			ChangedAt:      time.Now(),
			ChangeType:     types.ChangeTypeOverride,
			PreviousHours:  &prevHours,
			NewHours:       &newHours,
			PreviousStatus: forecast.Status,
			NewStatus:      forecast.Status,
			ChangeReason:   reason,
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
		s.log.Error("Override failed", "error", err, "forecast_id", id)
		return nil, err
	}
	s.log.Info("Forecast overridden", "forecast_id", id, "new_hours", newHours)
	return updated, nil
}

// BulkApprove evaluates every id independently against the same eligibility
// rule as single approve. Missing or locked records count as failed, records
// in a non-approvable status as skipped; one bad id never aborts the batch.
func (s *workflowService) BulkApprove(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, notes string) (*types.BulkApproveResult, error) {
	if _, err := callerIdentity(ctx); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, apierr.Validation("missing_ids", "at least one forecast id is required")
	}

	result := &types.BulkApproveResult{TotalRequested: len(ids)}
	for _, id := range ids {
		_, err := s.Approve(ctx, tx, id, notes)
		switch {
		case err == nil:
			result.ApprovedCount++
		case apierr.IsKind(err, apierr.KindState):
			result.SkippedCount++
		default:
			s.log.Warn("Bulk approve item failed", "forecast_id", id, "error", err)
			result.FailedCount++
		}
	}
	s.log.Info("Bulk approve finished",
		"total", result.TotalRequested,
		"approved", result.ApprovedCount,
		"skipped", result.SkippedCount,
		"failed", result.FailedCount,
	)
	return result, nil
}

// LockMonth transitions every non-locked forecast of the scope's versions in
// (year, month) to locked. Idempotent: re-running over the same period locks
// zero additional records.
func (s *workflowService) LockMonth(ctx context.Context, tx *gorm.DB, scope types.ScopeRef, year, month int, reason string) (*types.LockMonthResult, error) {
	rd, err := callerIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if !scope.Valid() {
		return nil, apierr.Validation("invalid_scope", "exactly one of project_id or user_id must be set")
	}
	if !validPeriod(year, month) {
		return nil, apierr.Validation("invalid_period", "period %d-%d is not a valid year/month", year, month)
	}

	versions, err := s.versionRepo.ListByScope(ctx, s.resolve(tx), rd.TenantID, scope)
	if err != nil {
		return nil, fmt.Errorf("list scope versions: %w", err)
	}
	versionIDs := make([]uuid.UUID, 0, len(versions))
	for _, v := range versions {
		versionIDs = append(versionIDs, v.ID)
	}

	result := &types.LockMonthResult{Year: year, Month: month}
	if len(versionIDs) == 0 {
		return result, nil
	}

	forecasts, err := s.forecastRepo.List(ctx, s.resolve(tx), rd.TenantID, repos.ForecastFilter{
		VersionIDs: versionIDs,
		Year:       year,
		Month:      month,
	})
	if err != nil {
		return nil, fmt.Errorf("list period forecasts: %w", err)
	}
	result.TotalForecasts = len(forecasts)

	for _, forecast := range forecasts {
		if forecast.IsLocked() {
			continue
		}
		if err := s.lockOne(ctx, tx, rd.TenantID, rd.UserID, forecast.ID, reason); err != nil {
			// Each record locks in its own transaction; a straggler that was
			// locked concurrently is not a batch error.
			if apierr.IsKind(err, apierr.KindLocked) {
				continue
			}
			s.log.Warn("Lock month item failed", "forecast_id", forecast.ID, "error", err)
			continue
		}
		result.LockedCount++
	}

	s.log.Info("Month locked",
		"year", year,
		"month", month,
		"total_forecasts", result.TotalForecasts,
		"locked_count", result.LockedCount,
	)
	return result, nil
}

func (s *workflowService) lockOne(ctx context.Context, tx *gorm.DB, tenantID, userID, id uuid.UUID, reason string) error {
	return s.resolve(tx).Transaction(func(txn *gorm.DB) error {
		forecast, err := s.forecastRepo.GetByID(ctx, txn, tenantID, id)
		if err != nil {
			return fmt.Errorf("load forecast: %w", err)
		}
		if forecast == nil {
			return apierr.NotFound("forecast_not_found", "forecast %s not found", id)
		}
		next, err := nextStatus(actionLock, forecast.Status)
		if err != nil {
			return err
		}
		if err := s.forecastRepo.UpdateFields(ctx, txn, tenantID, id, map[string]interface{}{"status": next}); err != nil {
			return fmt.Errorf("lock forecast: %w", err)
		}
		hours := forecast.ForecastedHours
		item := &types.ForecastHistoryItem{
			ID:             uuid.New(),
			TenantID:       tenantID,
			ForecastID:     id,
			ChangedByID:    userID,
			ChangedAt:      time.Now(),
			ChangeType:     types.ChangeTypeLock,
			PreviousHours:  &hours,
			NewHours:       &hours,
			PreviousStatus: forecast.Status,
			NewStatus:      next,
			ChangeReason:   reason,
		}
		return s.historyRepo.Create(ctx, txn, []*types.ForecastHistoryItem{item})
	})
}

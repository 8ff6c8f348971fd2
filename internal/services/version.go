package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/apierr"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/logger"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/repos"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/types"
)

type CreateVersionInput struct {
	Name        string         `json:"name"`
	VersionType string         `json:"version_type"`
	Scope       types.ScopeRef `json:"scope"`
	StartYear   int            `json:"start_year"`
	StartMonth  int            `json:"start_month"`
	EndYear     int            `json:"end_year"`
	EndMonth    int            `json:"end_month"`
}

type CloneVersionInput struct {
	Name          string `json:"name"`
	CopyForecasts bool   `json:"copy_forecasts"`
}

// VersionService is the version registry: it owns version metadata, lineage
// and the single-current-version invariant per (tenant, scope).
type VersionService interface {
	Create(ctx context.Context, tx *gorm.DB, input CreateVersionInput) (*types.ForecastVersion, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ForecastVersion, error)
	GetCurrent(ctx context.Context, tx *gorm.DB, scope types.ScopeRef) (*types.ForecastVersion, error)
	ListByScope(ctx context.Context, tx *gorm.DB, scope types.ScopeRef) ([]*types.ForecastVersion, error)
	Clone(ctx context.Context, tx *gorm.DB, sourceID uuid.UUID, input CloneVersionInput) (*types.ForecastVersion, error)
	Promote(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ForecastVersion, error)
	Archive(ctx context.Context, tx *gorm.DB, id uuid.UUID, reason string) (*types.ForecastVersion, error)
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type versionService struct {
	db          *gorm.DB
	log         *logger.Logger
	versionRepo repos.ForecastVersionRepo
	forecastRepo repos.ForecastRepo
	historyRepo repos.ForecastHistoryRepo
}

func NewVersionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	versionRepo repos.ForecastVersionRepo,
	forecastRepo repos.ForecastRepo,
	historyRepo repos.ForecastHistoryRepo,
) VersionService {
	serviceLog := baseLog.With("service", "VersionService")
	return &versionService{
		db:          db,
		log:         serviceLog,
		versionRepo: versionRepo,
		forecastRepo: forecastRepo,
		historyRepo: historyRepo,
	}
}

func (s *versionService) resolve(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

func validVersionType(t string) bool {
	switch t {
	case types.VersionTypeCurrent, types.VersionTypeWhatIf, types.VersionTypeHistorical, types.VersionTypeImport:
		return true
	default:
		return false
	}
}

func (s *versionService) Create(ctx context.Context, tx *gorm.DB, input CreateVersionInput) (*types.ForecastVersion, error) {
	rd, err := callerIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if input.Name == "" {
		return nil, apierr.Validation("missing_name", "version name is required")
	}
	if !input.Scope.Valid() {
		return nil, apierr.Validation("invalid_scope", "exactly one of project_id or user_id must be set")
	}
	if input.VersionType == "" {
		input.VersionType = types.VersionTypeWhatIf
	}
	if !validVersionType(input.VersionType) {
		return nil, apierr.Validation("invalid_version_type", "unknown version type %q", input.VersionType)
	}
	if !validPeriod(input.StartYear, input.StartMonth) || !validPeriod(input.EndYear, input.EndMonth) {
		return nil, apierr.Validation("invalid_period", "version period range is invalid")
	}
	if input.StartYear*100+input.StartMonth > input.EndYear*100+input.EndMonth {
		return nil, apierr.Validation("invalid_period", "version period range ends before it starts")
	}

	version := &types.ForecastVersion{
		ID:          uuid.New(),
		TenantID:    rd.TenantID,
		Name:        input.Name,
		VersionType: input.VersionType,
		ProjectID:   input.Scope.ProjectID,
		ScopeUserID: input.Scope.UserID,
		StartYear:   input.StartYear,
		StartMonth:  input.StartMonth,
		EndYear:     input.EndYear,
		EndMonth:    input.EndMonth,
		CreatedBy:   rd.UserID,
	}

	err = s.resolve(tx).Transaction(func(txn *gorm.DB) error {
		maxNumber, err := s.versionRepo.MaxVersionNumber(ctx, txn, rd.TenantID, input.Scope)
		if err != nil {
			return fmt.Errorf("resolve version number: %w", err)
		}
		version.VersionNumber = maxNumber + 1
		if err := s.versionRepo.Create(ctx, txn, version); err != nil {
			return fmt.Errorf("create version: %w", err)
		}
		return nil
	})
	if err != nil {
		s.log.Error("Create version failed", "error", err)
		return nil, err
	}
	s.log.Info("Forecast version created", "version_id", version.ID, "version_number", version.VersionNumber)
	return version, nil
}

func (s *versionService) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ForecastVersion, error) {
	rd, err := callerIdentity(ctx)
	if err != nil {
		return nil, err
	}
	version, err := s.versionRepo.GetByID(ctx, s.resolve(tx), rd.TenantID, id)
	if err != nil {
		return nil, fmt.Errorf("load version: %w", err)
	}
	if version == nil {
		return nil, apierr.NotFound("version_not_found", "forecast version %s not found", id)
	}
	return version, nil
}

func (s *versionService) GetCurrent(ctx context.Context, tx *gorm.DB, scope types.ScopeRef) (*types.ForecastVersion, error) {
	rd, err := callerIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if !scope.Valid() {
		return nil, apierr.Validation("invalid_scope", "exactly one of project_id or user_id must be set")
	}
	version, err := s.versionRepo.GetCurrent(ctx, s.resolve(tx), rd.TenantID, scope)
	if err != nil {
		return nil, fmt.Errorf("load current version: %w", err)
	}
	if version == nil {
		return nil, apierr.NotFound("current_version_not_found", "scope has no current forecast version")
	}
	return version, nil
}

func (s *versionService) ListByScope(ctx context.Context, tx *gorm.DB, scope types.ScopeRef) ([]*types.ForecastVersion, error) {
	rd, err := callerIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if !scope.Valid() {
		return nil, apierr.Validation("invalid_scope", "exactly one of project_id or user_id must be set")
	}
	versions, err := s.versionRepo.ListByScope(ctx, s.resolve(tx), rd.TenantID, scope)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return versions, nil
}

// Clone creates a new what-if version based on sourceID. With CopyForecasts
// every source forecast is duplicated under a new id with status reset to
// draft and all override/approval state cleared, hours preserved.
func (s *versionService) Clone(ctx context.Context, tx *gorm.DB, sourceID uuid.UUID, input CloneVersionInput) (*types.ForecastVersion, error) {
	rd, err := callerIdentity(ctx)
	if err != nil {
		return nil, err
	}

	source, err := s.versionRepo.GetByID(ctx, s.resolve(tx), rd.TenantID, sourceID)
	if err != nil {
		return nil, fmt.Errorf("load source version: %w", err)
	}
	if source == nil {
		return nil, apierr.NotFound("version_not_found", "forecast version %s not found", sourceID)
	}

	name := input.Name
	if name == "" {
		name = source.Name + " (copy)"
	}

	clone := &types.ForecastVersion{
		ID:               uuid.New(),
		TenantID:         rd.TenantID,
		Name:             name,
		VersionType:      types.VersionTypeWhatIf,
		ProjectID:        source.ProjectID,
		ScopeUserID:      source.ScopeUserID,
		BasedOnVersionID: &source.ID,
		StartYear:        source.StartYear,
		StartMonth:       source.StartMonth,
		EndYear:          source.EndYear,
		EndMonth:         source.EndMonth,
		CreatedBy:        rd.UserID,
	}

	err = s.resolve(tx).Transaction(func(txn *gorm.DB) error {
		maxNumber, err := s.versionRepo.MaxVersionNumber(ctx, txn, rd.TenantID, source.Scope())
		if err != nil {
			return fmt.Errorf("resolve version number: %w", err)
		}
		clone.VersionNumber = maxNumber + 1
		if err := s.versionRepo.Create(ctx, txn, clone); err != nil {
			return fmt.Errorf("create clone: %w", err)
		}
		if !input.CopyForecasts {
			return nil
		}

		sourceForecasts, err := s.forecastRepo.ListByVersionID(ctx, txn, rd.TenantID, sourceID)
		if err != nil {
			return fmt.Errorf("load source forecasts: %w", err)
		}
		now := time.Now()
		copies := make([]*types.Forecast, 0, len(sourceForecasts))
		historyItems := make([]*types.ForecastHistoryItem, 0, len(sourceForecasts))
		for _, src := range sourceForecasts {
			hours := src.ForecastedHours
			dup := &types.Forecast{
				ID:               uuid.New(),
				TenantID:         rd.TenantID,
				AssignmentID:     src.AssignmentID,
				VersionID:        clone.ID,
				Year:             src.Year,
				Month:            src.Month,
				Week:             src.Week,
				ForecastedHours:  hours,
				RecommendedHours: src.RecommendedHours,
				Status:           types.ForecastStatusDraft,
				Notes:            src.Notes,
				CreatedBy:        rd.UserID,
			}
			copies = append(copies, dup)
			historyItems = append(historyItems, &types.ForecastHistoryItem{
				ID:          uuid.New(),
				TenantID:    rd.TenantID,
				ForecastID:  dup.ID,
				ChangedByID: rd.UserID,
				ChangedAt:   now,
				ChangeType:  types.ChangeTypeCreate,
				NewHours:    &hours,
				NewStatus:   types.ForecastStatusDraft,
				ChangeReason: fmt.Sprintf("cloned from version %s", sourceID),
			})
		}
		if err := s.forecastRepo.CreateBatch(ctx, txn, copies); err != nil {
			return fmt.Errorf("copy forecasts: %w", err)
		}
		if err := s.historyRepo.Create(ctx, txn, historyItems); err != nil {
			return fmt.Errorf("write history: %w", err)
		}
		return nil
	})
	if err != nil {
		s.log.Error("Clone version failed", "error", err, "source_version_id", sourceID)
		return nil, err
	}
	s.log.Info("Forecast version cloned", "source_version_id", sourceID, "version_id", clone.ID, "copy_forecasts", input.CopyForecasts)
	return clone, nil
}

// Promote flips is_current inside one transaction: the old current row is
// cleared and the target set in the same unit of work, so no observer ever
// sees two current versions in a scope.
func (s *versionService) Promote(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ForecastVersion, error) {
	rd, err := callerIdentity(ctx)
	if err != nil {
		return nil, err
	}

	var promoted *types.ForecastVersion
	err = s.resolve(tx).Transaction(func(txn *gorm.DB) error {
		version, err := s.versionRepo.GetByID(ctx, txn, rd.TenantID, id)
		if err != nil {
			return fmt.Errorf("load version: %w", err)
		}
		if version == nil {
			return apierr.NotFound("version_not_found", "forecast version %s not found", id)
		}
		if version.IsArchived() {
			return apierr.Conflict("version_archived", "cannot promote archived version %s", id)
		}

		if _, err := s.versionRepo.ClearCurrent(ctx, txn, rd.TenantID, version.Scope(), id); err != nil {
			return fmt.Errorf("clear current version: %w", err)
		}
		affected, err := s.versionRepo.SetCurrent(ctx, txn, rd.TenantID, id, time.Now())
		if err != nil {
			// The partial unique index on the current flag trips when another
			// promote committed between our demotion snapshot and this write.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apierr.Conflict("promote_conflict", "another version was promoted concurrently in this scope")
			}
			return fmt.Errorf("set current version: %w", err)
		}
		if affected == 0 {
			// Lost a race against a concurrent archive of the same row.
			return apierr.Conflict("promote_conflict", "version %s changed concurrently", id)
		}

		promoted, err = s.versionRepo.GetByID(ctx, txn, rd.TenantID, id)
		if err != nil {
			return fmt.Errorf("reload version: %w", err)
		}
		return nil
	})
	if err != nil {
		s.log.Error("Promote version failed", "error", err, "version_id", id)
		return nil, err
	}
	s.log.Info("Forecast version promoted", "version_id", id)
	return promoted, nil
}

func (s *versionService) Archive(ctx context.Context, tx *gorm.DB, id uuid.UUID, reason string) (*types.ForecastVersion, error) {
	rd, err := callerIdentity(ctx)
	if err != nil {
		return nil, err
	}

	var archived *types.ForecastVersion
	err = s.resolve(tx).Transaction(func(txn *gorm.DB) error {
		version, err := s.versionRepo.GetByID(ctx, txn, rd.TenantID, id)
		if err != nil {
			return fmt.Errorf("load version: %w", err)
		}
		if version == nil {
			return apierr.NotFound("version_not_found", "forecast version %s not found", id)
		}
		if version.IsCurrent {
			return apierr.State("version_is_current", "cannot archive the current version; promote another version first")
		}
		if version.IsArchived() {
			return apierr.State("version_archived", "version %s is already archived", id)
		}
		if err := s.versionRepo.Archive(ctx, txn, rd.TenantID, id, reason, time.Now()); err != nil {
			return fmt.Errorf("archive version: %w", err)
		}
		archived, err = s.versionRepo.GetByID(ctx, txn, rd.TenantID, id)
		if err != nil {
			return fmt.Errorf("reload version: %w", err)
		}
		return nil
	})
	if err != nil {
		s.log.Error("Archive version failed", "error", err, "version_id", id)
		return nil, err
	}
	s.log.Info("Forecast version archived", "version_id", id)
	return archived, nil
}

func (s *versionService) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	rd, err := callerIdentity(ctx)
	if err != nil {
		return err
	}

	err = s.resolve(tx).Transaction(func(txn *gorm.DB) error {
		version, err := s.versionRepo.GetByID(ctx, txn, rd.TenantID, id)
		if err != nil {
			return fmt.Errorf("load version: %w", err)
		}
		if version == nil {
			return apierr.NotFound("version_not_found", "forecast version %s not found", id)
		}
		if version.IsCurrent {
			return apierr.State("version_is_current", "cannot delete the current version")
		}
		dependents, err := s.versionRepo.CountBasedOn(ctx, txn, rd.TenantID, id)
		if err != nil {
			return fmt.Errorf("count dependent versions: %w", err)
		}
		if dependents > 0 {
			return apierr.State("version_has_dependents", "%d versions are based on version %s", dependents, id)
		}
		if err := s.forecastRepo.DeleteByVersionID(ctx, txn, rd.TenantID, id); err != nil {
			return fmt.Errorf("delete version forecasts: %w", err)
		}
		if err := s.versionRepo.Delete(ctx, txn, rd.TenantID, id); err != nil {
			return fmt.Errorf("delete version: %w", err)
		}
		return nil
	})
	if err != nil {
		s.log.Error("Delete version failed", "error", err, "version_id", id)
		return err
	}
	s.log.Info("Forecast version deleted", "version_id", id)
	return nil
}

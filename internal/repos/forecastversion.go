package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/logger"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/types"
)

type ForecastVersionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, version *types.ForecastVersion) error
	GetByID(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) (*types.ForecastVersion, error)
	ListByScope(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, scope types.ScopeRef) ([]*types.ForecastVersion, error)
	GetCurrent(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, scope types.ScopeRef) (*types.ForecastVersion, error)
	MaxVersionNumber(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, scope types.ScopeRef) (int, error)
	ClearCurrent(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, scope types.ScopeRef, exceptID uuid.UUID) (int64, error)
	SetCurrent(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID, promotedAt time.Time) (int64, error)
	Archive(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID, reason string, archivedAt time.Time) error
	CountBasedOn(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) (int64, error)
	Delete(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) error
}

type forecastVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewForecastVersionRepo(db *gorm.DB, baseLog *logger.Logger) ForecastVersionRepo {
	repoLog := baseLog.With("repo", "ForecastVersionRepo")
	return &forecastVersionRepo{db: db, log: repoLog}
}

func (r *forecastVersionRepo) resolve(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// scoped narrows a query to one (tenant, scope) pair. Exactly one of the
// scope's sides is set; the other side must be NULL on the row so that a
// project scope never matches user-scoped versions.
func scopedVersions(q *gorm.DB, tenantID uuid.UUID, scope types.ScopeRef) *gorm.DB {
	q = q.Where("tenant_id = ?", tenantID)
	if scope.ProjectID != nil {
		return q.Where("project_id = ? AND scope_user_id IS NULL", *scope.ProjectID)
	}
	return q.Where("scope_user_id = ? AND project_id IS NULL", *scope.UserID)
}

func (r *forecastVersionRepo) Create(ctx context.Context, tx *gorm.DB, version *types.ForecastVersion) error {
	if version == nil {
		return nil
	}
	return r.resolve(tx).WithContext(ctx).Create(version).Error
}

func (r *forecastVersionRepo) GetByID(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) (*types.ForecastVersion, error) {
	var results []*types.ForecastVersion
	if err := r.resolve(tx).WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Limit(1).
		Find(&results).Error; err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func (r *forecastVersionRepo) ListByScope(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, scope types.ScopeRef) ([]*types.ForecastVersion, error) {
	var results []*types.ForecastVersion
	if err := scopedVersions(r.resolve(tx).WithContext(ctx), tenantID, scope).
		Order("version_number DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *forecastVersionRepo) GetCurrent(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, scope types.ScopeRef) (*types.ForecastVersion, error) {
	var results []*types.ForecastVersion
	if err := scopedVersions(r.resolve(tx).WithContext(ctx), tenantID, scope).
		Where("is_current = ? AND archived_at IS NULL", true).
		Limit(1).
		Find(&results).Error; err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func (r *forecastVersionRepo) MaxVersionNumber(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, scope types.ScopeRef) (int, error) {
	var max *int
	if err := scopedVersions(r.resolve(tx).WithContext(ctx).Model(&types.ForecastVersion{}), tenantID, scope).
		Select("MAX(version_number)").
		Scan(&max).Error; err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

// ClearCurrent demotes whatever the scope currently flags. The demoted row
// drops back to the what_if type so its metadata no longer claims currency.
func (r *forecastVersionRepo) ClearCurrent(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, scope types.ScopeRef, exceptID uuid.UUID) (int64, error) {
	res := scopedVersions(r.resolve(tx).WithContext(ctx).Model(&types.ForecastVersion{}), tenantID, scope).
		Where("is_current = ? AND id <> ?", true, exceptID).
		Updates(map[string]interface{}{
			"is_current":   false,
			"version_type": types.VersionTypeWhatIf,
			"updated_at":   time.Now(),
		})
	return res.RowsAffected, res.Error
}

// SetCurrent flips the target version current. The archived guard is part of
// the UPDATE predicate so a concurrent archive can never race the promote
// into a current-but-archived row.
func (r *forecastVersionRepo) SetCurrent(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID, promotedAt time.Time) (int64, error) {
	res := r.resolve(tx).WithContext(ctx).Model(&types.ForecastVersion{}).
		Where("tenant_id = ? AND id = ? AND archived_at IS NULL", tenantID, id).
		Updates(map[string]interface{}{
			"is_current":   true,
			"version_type": types.VersionTypeCurrent,
			"promoted_at":  promotedAt,
			"updated_at":   time.Now(),
		})
	return res.RowsAffected, res.Error
}

func (r *forecastVersionRepo) Archive(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID, reason string, archivedAt time.Time) error {
	return r.resolve(tx).WithContext(ctx).Model(&types.ForecastVersion{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(map[string]interface{}{
			"archived_at":    archivedAt,
			"archive_reason": reason,
			"version_type":   types.VersionTypeHistorical,
			"updated_at":     time.Now(),
		}).Error
}

func (r *forecastVersionRepo) CountBasedOn(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) (int64, error) {
	var count int64
	if err := r.resolve(tx).WithContext(ctx).Model(&types.ForecastVersion{}).
		Where("tenant_id = ? AND based_on_version_id = ?", tenantID, id).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *forecastVersionRepo) Delete(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) error {
	return r.resolve(tx).WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&types.ForecastVersion{}).Error
}

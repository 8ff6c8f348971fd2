package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/logger"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/types"
)

// ForecastFilter narrows list queries. Zero values mean "no filter".
type ForecastFilter struct {
	VersionID    *uuid.UUID
	VersionIDs   []uuid.UUID
	AssignmentID *uuid.UUID
	Year         int
	Month        int
	Status       string
}

type ForecastRepo interface {
	// CreateIgnoreConflict inserts the row guarded by the natural-key unique
	// index. Returns rows affected: 0 means the key already existed.
	CreateIgnoreConflict(ctx context.Context, tx *gorm.DB, forecast *types.Forecast) (int64, error)
	CreateBatch(ctx context.Context, tx *gorm.DB, forecasts []*types.Forecast) error
	GetByID(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) (*types.Forecast, error)
	GetByNaturalKey(ctx context.Context, tx *gorm.DB, tenantID, assignmentID, versionID uuid.UUID, year, month, week int) (*types.Forecast, error)
	List(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, filter ForecastFilter) ([]*types.Forecast, error)
	ListByVersionID(ctx context.Context, tx *gorm.DB, tenantID, versionID uuid.UUID) ([]*types.Forecast, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID, fields map[string]interface{}) error
	Delete(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) error
	DeleteByVersionID(ctx context.Context, tx *gorm.DB, tenantID, versionID uuid.UUID) error
}

type forecastRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewForecastRepo(db *gorm.DB, baseLog *logger.Logger) ForecastRepo {
	repoLog := baseLog.With("repo", "ForecastRepo")
	return &forecastRepo{db: db, log: repoLog}
}

func (r *forecastRepo) resolve(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *forecastRepo) CreateIgnoreConflict(ctx context.Context, tx *gorm.DB, forecast *types.Forecast) (int64, error) {
	if forecast == nil {
		return 0, nil
	}
	res := r.resolve(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "assignment_id"},
				{Name: "version_id"},
				{Name: "year"},
				{Name: "month"},
				{Name: "week"},
			},
			DoNothing: true,
		}).
		Create(forecast)
	return res.RowsAffected, res.Error
}

func (r *forecastRepo) CreateBatch(ctx context.Context, tx *gorm.DB, forecasts []*types.Forecast) error {
	if len(forecasts) == 0 {
		return nil
	}
	return r.resolve(tx).WithContext(ctx).Create(&forecasts).Error
}

func (r *forecastRepo) GetByID(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) (*types.Forecast, error) {
	var results []*types.Forecast
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

func (r *forecastRepo) GetByNaturalKey(ctx context.Context, tx *gorm.DB, tenantID, assignmentID, versionID uuid.UUID, year, month, week int) (*types.Forecast, error) {
	var results []*types.Forecast
	if err := r.resolve(tx).WithContext(ctx).
		Where("tenant_id = ? AND assignment_id = ? AND version_id = ? AND year = ? AND month = ? AND week = ?",
			tenantID, assignmentID, versionID, year, month, week).
		Limit(1).
		Find(&results).Error; err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func (r *forecastRepo) List(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, filter ForecastFilter) ([]*types.Forecast, error) {
	q := r.resolve(tx).WithContext(ctx).Where("tenant_id = ?", tenantID)
	if filter.VersionID != nil {
		q = q.Where("version_id = ?", *filter.VersionID)
	}
	if len(filter.VersionIDs) > 0 {
		q = q.Where("version_id IN ?", filter.VersionIDs)
	}
	if filter.AssignmentID != nil {
		q = q.Where("assignment_id = ?", *filter.AssignmentID)
	}
	if filter.Year != 0 {
		q = q.Where("year = ?", filter.Year)
	}
	if filter.Month != 0 {
		q = q.Where("month = ?", filter.Month)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var results []*types.Forecast
	if err := q.Order("year, month, week").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *forecastRepo) ListByVersionID(ctx context.Context, tx *gorm.DB, tenantID, versionID uuid.UUID) ([]*types.Forecast, error) {
	var results []*types.Forecast
	if err := r.resolve(tx).WithContext(ctx).
		Where("tenant_id = ? AND version_id = ?", tenantID, versionID).
		Order("year, month, week").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *forecastRepo) UpdateFields(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	if _, ok := fields["updated_at"]; !ok {
		fields["updated_at"] = time.Now()
	}
	return r.resolve(tx).WithContext(ctx).Model(&types.Forecast{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(fields).Error
}

func (r *forecastRepo) Delete(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) error {
	return r.resolve(tx).WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&types.Forecast{}).Error
}

func (r *forecastRepo) DeleteByVersionID(ctx context.Context, tx *gorm.DB, tenantID, versionID uuid.UUID) error {
	return r.resolve(tx).WithContext(ctx).
		Where("tenant_id = ? AND version_id = ?", tenantID, versionID).
		Delete(&types.Forecast{}).Error
}

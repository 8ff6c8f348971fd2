package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/logger"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/types"
)

// ForecastHistoryRepo is append-only: create and read, no update or delete.
type ForecastHistoryRepo interface {
	Create(ctx context.Context, tx *gorm.DB, items []*types.ForecastHistoryItem) error
	ListByForecastID(ctx context.Context, tx *gorm.DB, tenantID, forecastID uuid.UUID) ([]*types.ForecastHistoryItem, error)
}

type forecastHistoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewForecastHistoryRepo(db *gorm.DB, baseLog *logger.Logger) ForecastHistoryRepo {
	repoLog := baseLog.With("repo", "ForecastHistoryRepo")
	return &forecastHistoryRepo{db: db, log: repoLog}
}

func (r *forecastHistoryRepo) resolve(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *forecastHistoryRepo) Create(ctx context.Context, tx *gorm.DB, items []*types.ForecastHistoryItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.resolve(tx).WithContext(ctx).Create(&items).Error
}

func (r *forecastHistoryRepo) ListByForecastID(ctx context.Context, tx *gorm.DB, tenantID, forecastID uuid.UUID) ([]*types.ForecastHistoryItem, error) {
	var results []*types.ForecastHistoryItem
	if err := r.resolve(tx).WithContext(ctx).
		Where("tenant_id = ? AND forecast_id = ?", tenantID, forecastID).
		Order("changed_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

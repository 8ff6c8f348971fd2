package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/logger"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/types"
)

// AssignmentRepo is read-only: assignment rows are owned by the staffing
// collaborator and this core only resolves them for existence checks and
// display metadata.
type AssignmentRepo interface {
	GetByIDs(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, ids []uuid.UUID) ([]*types.Assignment, error)
	Exists(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) (bool, error)
}

type assignmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssignmentRepo(db *gorm.DB, baseLog *logger.Logger) AssignmentRepo {
	repoLog := baseLog.With("repo", "AssignmentRepo")
	return &assignmentRepo{db: db, log: repoLog}
}

func (r *assignmentRepo) resolve(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *assignmentRepo) GetByIDs(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, ids []uuid.UUID) ([]*types.Assignment, error) {
	var results []*types.Assignment
	if len(ids) == 0 {
		return results, nil
	}
	if err := r.resolve(tx).WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *assignmentRepo) Exists(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.resolve(tx).WithContext(ctx).Model(&types.Assignment{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

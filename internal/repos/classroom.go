package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agenticcms/agenticcms-backend/internal/logger"
	"github.com/agenticcms/agenticcms-backend/internal/types"
)

type ClassroomRepo interface {
	Create(ctx context.Context, tx *gorm.DB, classrooms []*types.Classroom) ([]*types.Classroom, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Classroom, error)
	ListByOwnerID(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) ([]*types.Classroom, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
}

type classroomRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewClassroomRepo(db *gorm.DB, baseLog *logger.Logger) ClassroomRepo {
	repoLog := baseLog.With("repo", "ClassroomRepo")
	return &classroomRepo{db: db, log: repoLog}
}

func (r *classroomRepo) Create(ctx context.Context, tx *gorm.DB, classrooms []*types.Classroom) ([]*types.Classroom, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(classrooms) == 0 {
		return []*types.Classroom{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&classrooms).Error; err != nil {
		return nil, err
	}
	return classrooms, nil
}

func (r *classroomRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Classroom, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Classroom
	if len(ids) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *classroomRepo) ListByOwnerID(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) ([]*types.Classroom, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Classroom
	if err := transaction.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *classroomRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.Classroom{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *classroomRepo) SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&types.Classroom{}).Error
}

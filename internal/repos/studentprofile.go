package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agenticcms/agenticcms-backend/internal/logger"
	"github.com/agenticcms/agenticcms-backend/internal/types"
)

type StudentProfileRepo interface {
	Create(ctx context.Context, tx *gorm.DB, profiles []*types.StudentProfile) ([]*types.StudentProfile, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.StudentProfile, error)
	ListByOwnerID(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) ([]*types.StudentProfile, error)
	ListByClassroomID(ctx context.Context, tx *gorm.DB, classroomID uuid.UUID) ([]*types.StudentProfile, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
}

type studentProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStudentProfileRepo(db *gorm.DB, baseLog *logger.Logger) StudentProfileRepo {
	repoLog := baseLog.With("repo", "StudentProfileRepo")
	return &studentProfileRepo{db: db, log: repoLog}
}

func (r *studentProfileRepo) Create(ctx context.Context, tx *gorm.DB, profiles []*types.StudentProfile) ([]*types.StudentProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(profiles) == 0 {
		return []*types.StudentProfile{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *studentProfileRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.StudentProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.StudentProfile
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

func (r *studentProfileRepo) ListByOwnerID(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) ([]*types.StudentProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.StudentProfile
	if err := transaction.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *studentProfileRepo) ListByClassroomID(ctx context.Context, tx *gorm.DB, classroomID uuid.UUID) ([]*types.StudentProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.StudentProfile
	if classroomID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("classroom_id = ?", classroomID).
		Order("student_name ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *studentProfileRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.StudentProfile{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *studentProfileRepo) SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&types.StudentProfile{}).Error
}

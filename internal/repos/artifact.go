package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agenticcms/agenticcms-backend/internal/logger"
	"github.com/agenticcms/agenticcms-backend/internal/types"
)

type ArtifactRepo interface {
	Create(ctx context.Context, tx *gorm.DB, artifacts []*types.Artifact) ([]*types.Artifact, error)
	ListByParentID(ctx context.Context, tx *gorm.DB, parentID uuid.UUID) ([]*types.Artifact, error)
	CountByParentID(ctx context.Context, tx *gorm.DB, parentID uuid.UUID) (int64, error)
}

type artifactRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArtifactRepo(db *gorm.DB, baseLog *logger.Logger) ArtifactRepo {
	repoLog := baseLog.With("repo", "ArtifactRepo")
	return &artifactRepo{db: db, log: repoLog}
}

func (r *artifactRepo) Create(ctx context.Context, tx *gorm.DB, artifacts []*types.Artifact) ([]*types.Artifact, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(artifacts) == 0 {
		return []*types.Artifact{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&artifacts).Error; err != nil {
		return nil, err
	}
	return artifacts, nil
}

func (r *artifactRepo) ListByParentID(ctx context.Context, tx *gorm.DB, parentID uuid.UUID) ([]*types.Artifact, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Artifact
	if parentID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *artifactRepo) CountByParentID(ctx context.Context, tx *gorm.DB, parentID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Artifact{}).
		Where("parent_id = ?", parentID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

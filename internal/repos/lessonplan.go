package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/agenticcms/agenticcms-backend/internal/agent"
	"github.com/agenticcms/agenticcms-backend/internal/logger"
	apperrors "github.com/agenticcms/agenticcms-backend/internal/pkg/errors"
	"github.com/agenticcms/agenticcms-backend/internal/types"
)

type LessonPlanRepo interface {
	Create(ctx context.Context, tx *gorm.DB, plans []*types.LessonPlan) ([]*types.LessonPlan, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.LessonPlan, error)
	ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.LessonPlan, error)
	ListByParentResourceID(ctx context.Context, tx *gorm.DB, parentID uuid.UUID) ([]*types.LessonPlan, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error

	// ClaimForRun is the start guard and the first checkpoint in one
	// conditional UPDATE: only a row whose status is idle or failed moves
	// to gathering_context, so two callers can never both claim the same
	// resource. Error, cost and metadata are reset for the new run.
	ClaimForRun(ctx context.Context, tx *gorm.DB, id uuid.UUID) error

	// Transition advances the run to the next phase, keyed on the expected
	// prior status so an out-of-order write surfaces as a persistence
	// failure instead of silently clobbering state.
	Transition(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to agent.Status) error

	// MarkFailed records the terminal failure state and its message.
	MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, message string) error

	// SaveGenerated persists tool-mutated domain fields mid-run without
	// touching the run status.
	SaveGenerated(ctx context.Context, tx *gorm.DB, plan *types.LessonPlan) error
}

type lessonPlanRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLessonPlanRepo(db *gorm.DB, baseLog *logger.Logger) LessonPlanRepo {
	repoLog := baseLog.With("repo", "LessonPlanRepo")
	return &lessonPlanRepo{db: db, log: repoLog}
}

func (r *lessonPlanRepo) Create(ctx context.Context, tx *gorm.DB, plans []*types.LessonPlan) ([]*types.LessonPlan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(plans) == 0 {
		return []*types.LessonPlan{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *lessonPlanRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.LessonPlan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.LessonPlan
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

func (r *lessonPlanRepo) ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.LessonPlan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.LessonPlan
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *lessonPlanRepo) ListByParentResourceID(ctx context.Context, tx *gorm.DB, parentID uuid.UUID) ([]*types.LessonPlan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.LessonPlan
	if parentID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("parent_resource_id = ?", parentID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *lessonPlanRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.LessonPlan{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *lessonPlanRepo) SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&types.LessonPlan{}).Error
}

func (r *lessonPlanRepo) ClaimForRun(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	res := transaction.WithContext(ctx).
		Model(&types.LessonPlan{}).
		Where("id = ? AND status IN ?", id, []agent.Status{agent.StatusIdle, agent.StatusFailed}).
		Updates(map[string]interface{}{
			"status":     agent.StatusGatheringContext,
			"error":      "",
			"cost":       0,
			"metadata":   datatypes.JSON([]byte(`{}`)),
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// Claim missed: report why.
	plans, err := r.GetByIDs(ctx, transaction, []uuid.UUID{id})
	if err != nil {
		return err
	}
	if len(plans) == 0 {
		return apperrors.ErrNotFound
	}
	if plans[0].Status == agent.StatusCompleted {
		return apperrors.ErrNotRestartable
	}
	return apperrors.ErrRunInProgress
}

func (r *lessonPlanRepo) Transition(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to agent.Status) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if !agent.CanTransition(from, to) {
		return apperrors.ErrInvalidArgument
	}
	res := transaction.WithContext(ctx).
		Model(&types.LessonPlan{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *lessonPlanRepo) MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, message string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.LessonPlan{}).
		Where("id = ? AND status NOT IN ?", id, []agent.Status{agent.StatusCompleted}).
		Updates(map[string]interface{}{
			"status":     agent.StatusFailed,
			"error":      message,
			"updated_at": time.Now(),
		}).Error
}

func (r *lessonPlanRepo) SaveGenerated(ctx context.Context, tx *gorm.DB, plan *types.LessonPlan) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if plan == nil || plan.ID == uuid.Nil {
		return apperrors.ErrInvalidArgument
	}
	return transaction.WithContext(ctx).
		Model(&types.LessonPlan{}).
		Where("id = ?", plan.ID).
		Updates(map[string]interface{}{
			"title":      plan.Title,
			"content":    plan.Content,
			"objectives": plan.Objectives,
			"duration":   plan.Duration,
			"updated_at": time.Now(),
		}).Error
}

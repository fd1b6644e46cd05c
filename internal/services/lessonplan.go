package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/agenticcms/agenticcms-backend/internal/agent"
	"github.com/agenticcms/agenticcms-backend/internal/logger"
	apperrors "github.com/agenticcms/agenticcms-backend/internal/pkg/errors"
	"github.com/agenticcms/agenticcms-backend/internal/repos"
	"github.com/agenticcms/agenticcms-backend/internal/types"
)

type CreateLessonPlanInput struct {
	Topic       string    `json:"topic" binding:"required"`
	ClassroomID uuid.UUID `json:"classroom_id" binding:"required"`
}

type UpdateLessonPlanInput struct {
	Topic *string `json:"topic"`
}

type LessonPlanService interface {
	Create(ctx context.Context, input CreateLessonPlanInput) (*types.LessonPlan, error)
	Get(ctx context.Context, id uuid.UUID) (*types.LessonPlan, error)
	List(ctx context.Context) ([]*types.LessonPlan, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateLessonPlanInput) (*types.LessonPlan, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListArtifacts(ctx context.Context, id uuid.UUID) ([]*types.Artifact, error)
	Actions(ctx context.Context, id uuid.UUID) ([]agent.ActionState, error)
}

type lessonPlanService struct {
	db            *gorm.DB
	log           *logger.Logger
	planRepo      repos.LessonPlanRepo
	classroomRepo repos.ClassroomRepo
	artifactRepo  repos.ArtifactRepo
	registry      *agent.Registry
}

func NewLessonPlanService(
	db *gorm.DB,
	baseLog *logger.Logger,
	planRepo repos.LessonPlanRepo,
	classroomRepo repos.ClassroomRepo,
	artifactRepo repos.ArtifactRepo,
	registry *agent.Registry,
) LessonPlanService {
	return &lessonPlanService{
		db:            db,
		log:           baseLog.With("service", "LessonPlanService"),
		planRepo:      planRepo,
		classroomRepo: classroomRepo,
		artifactRepo:  artifactRepo,
		registry:      registry,
	}
}

func (s *lessonPlanService) Create(ctx context.Context, input CreateLessonPlanInput) (*types.LessonPlan, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Topic) == "" {
		return nil, fmt.Errorf("topic required: %w", apperrors.ErrInvalidArgument)
	}

	rooms, err := s.classroomRepo.GetByIDs(ctx, nil, []uuid.UUID{input.ClassroomID})
	if err != nil {
		return nil, err
	}
	if len(rooms) == 0 || rooms[0] == nil || rooms[0].OwnerID != userID {
		return nil, fmt.Errorf("classroom %s: %w", input.ClassroomID, apperrors.ErrNotFound)
	}

	plan := &types.LessonPlan{
		ID:     uuid.New(),
		UserID: userID,
		Fields: agent.Fields{
			ParentResourceID:   input.ClassroomID,
			ParentResourceType: "classroom",
			Status:             agent.StatusIdle,
			Metadata:           datatypes.JSON([]byte(`{}`)),
		},
		Topic: strings.TrimSpace(input.Topic),
	}
	if _, err := s.planRepo.Create(ctx, nil, []*types.LessonPlan{plan}); err != nil {
		return nil, fmt.Errorf("create lesson plan: %w", err)
	}
	return plan, nil
}

func (s *lessonPlanService) Get(ctx context.Context, id uuid.UUID) (*types.LessonPlan, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	plans, err := s.planRepo.GetByIDs(ctx, nil, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 || plans[0] == nil || plans[0].UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	return plans[0], nil
}

func (s *lessonPlanService) List(ctx context.Context) ([]*types.LessonPlan, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.planRepo.ListByUserID(ctx, nil, userID)
}

func (s *lessonPlanService) Update(ctx context.Context, id uuid.UUID, input UpdateLessonPlanInput) (*types.LessonPlan, error) {
	plan, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan.Status.InFlight() {
		return nil, fmt.Errorf("cannot edit while a run is active: %w", apperrors.ErrRunInProgress)
	}

	updates := map[string]interface{}{}
	if input.Topic != nil {
		updates["topic"] = strings.TrimSpace(*input.Topic)
	}
	if err := s.planRepo.UpdateFields(ctx, nil, id, updates); err != nil {
		return nil, fmt.Errorf("update lesson plan: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *lessonPlanService) Delete(ctx context.Context, id uuid.UUID) error {
	plan, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if plan.Status.InFlight() {
		return fmt.Errorf("cannot delete while a run is active: %w", apperrors.ErrRunInProgress)
	}
	return s.planRepo.SoftDeleteByIDs(ctx, nil, []uuid.UUID{id})
}

func (s *lessonPlanService) ListArtifacts(ctx context.Context, id uuid.UUID) ([]*types.Artifact, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.artifactRepo.ListByParentID(ctx, nil, id)
}

func (s *lessonPlanService) Actions(ctx context.Context, id uuid.UUID) ([]agent.ActionState, error) {
	plan, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.registry.Actions(plan), nil
}

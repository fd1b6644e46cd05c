package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/agenticcms/agenticcms-backend/internal/logger"
	apperrors "github.com/agenticcms/agenticcms-backend/internal/pkg/errors"
	"github.com/agenticcms/agenticcms-backend/internal/repos"
	"github.com/agenticcms/agenticcms-backend/internal/types"
)

type CreateStudentProfileInput struct {
	StudentName    string         `json:"student_name" binding:"required"`
	Needs          string         `json:"needs"`
	LearningStyle  string         `json:"learning_style"`
	ClassroomID    *uuid.UUID     `json:"classroom_id"`
	GradeLevel     string         `json:"grade_level"`
	AdditionalInfo datatypes.JSON `json:"additional_info"`
}

type UpdateStudentProfileInput struct {
	StudentName    *string         `json:"student_name"`
	Needs          *string         `json:"needs"`
	LearningStyle  *string         `json:"learning_style"`
	ClassroomID    *uuid.UUID      `json:"classroom_id"`
	GradeLevel     *string         `json:"grade_level"`
	AdditionalInfo *datatypes.JSON `json:"additional_info"`
}

type StudentProfileService interface {
	Create(ctx context.Context, input CreateStudentProfileInput) (*types.StudentProfile, error)
	Get(ctx context.Context, id uuid.UUID) (*types.StudentProfile, error)
	List(ctx context.Context) ([]*types.StudentProfile, error)
	ListByClassroom(ctx context.Context, classroomID uuid.UUID) ([]*types.StudentProfile, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateStudentProfileInput) (*types.StudentProfile, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type studentProfileService struct {
	db            *gorm.DB
	log           *logger.Logger
	profileRepo   repos.StudentProfileRepo
	classroomRepo repos.ClassroomRepo
}

func NewStudentProfileService(
	db *gorm.DB,
	baseLog *logger.Logger,
	profileRepo repos.StudentProfileRepo,
	classroomRepo repos.ClassroomRepo,
) StudentProfileService {
	return &studentProfileService{
		db:            db,
		log:           baseLog.With("service", "StudentProfileService"),
		profileRepo:   profileRepo,
		classroomRepo: classroomRepo,
	}
}

func (s *studentProfileService) Create(ctx context.Context, input CreateStudentProfileInput) (*types.StudentProfile, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.StudentName) == "" {
		return nil, fmt.Errorf("student name required: %w", apperrors.ErrInvalidArgument)
	}
	if input.ClassroomID != nil {
		if err := s.checkClassroom(ctx, userID, *input.ClassroomID); err != nil {
			return nil, err
		}
	}

	profile := &types.StudentProfile{
		ID:             uuid.New(),
		StaticFields:   types.StaticFields{OwnerID: userID},
		StudentName:    strings.TrimSpace(input.StudentName),
		Needs:          input.Needs,
		LearningStyle:  input.LearningStyle,
		ClassroomID:    input.ClassroomID,
		GradeLevel:     input.GradeLevel,
		AdditionalInfo: input.AdditionalInfo,
	}
	if _, err := s.profileRepo.Create(ctx, nil, []*types.StudentProfile{profile}); err != nil {
		return nil, fmt.Errorf("create student profile: %w", err)
	}
	return profile, nil
}

func (s *studentProfileService) Get(ctx context.Context, id uuid.UUID) (*types.StudentProfile, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	profiles, err := s.profileRepo.GetByIDs(ctx, nil, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 || profiles[0] == nil || profiles[0].OwnerID != userID {
		return nil, apperrors.ErrNotFound
	}
	return profiles[0], nil
}

func (s *studentProfileService) List(ctx context.Context) ([]*types.StudentProfile, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.profileRepo.ListByOwnerID(ctx, nil, userID)
}

func (s *studentProfileService) ListByClassroom(ctx context.Context, classroomID uuid.UUID) ([]*types.StudentProfile, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.checkClassroom(ctx, userID, classroomID); err != nil {
		return nil, err
	}
	return s.profileRepo.ListByClassroomID(ctx, nil, classroomID)
}

func (s *studentProfileService) Update(ctx context.Context, id uuid.UUID, input UpdateStudentProfileInput) (*types.StudentProfile, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.StudentName != nil {
		updates["student_name"] = strings.TrimSpace(*input.StudentName)
	}
	if input.Needs != nil {
		updates["needs"] = *input.Needs
	}
	if input.LearningStyle != nil {
		updates["learning_style"] = *input.LearningStyle
	}
	if input.ClassroomID != nil {
		if err := s.checkClassroom(ctx, existing.OwnerID, *input.ClassroomID); err != nil {
			return nil, err
		}
		updates["classroom_id"] = *input.ClassroomID
	}
	if input.GradeLevel != nil {
		updates["grade_level"] = *input.GradeLevel
	}
	if input.AdditionalInfo != nil {
		updates["additional_info"] = *input.AdditionalInfo
	}
	if err := s.profileRepo.UpdateFields(ctx, nil, id, updates); err != nil {
		return nil, fmt.Errorf("update student profile: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *studentProfileService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.profileRepo.SoftDeleteByIDs(ctx, nil, []uuid.UUID{id})
}

func (s *studentProfileService) checkClassroom(ctx context.Context, ownerID, classroomID uuid.UUID) error {
	rooms, err := s.classroomRepo.GetByIDs(ctx, nil, []uuid.UUID{classroomID})
	if err != nil {
		return err
	}
	if len(rooms) == 0 || rooms[0] == nil || rooms[0].OwnerID != ownerID {
		return fmt.Errorf("classroom %s: %w", classroomID, apperrors.ErrNotFound)
	}
	return nil
}

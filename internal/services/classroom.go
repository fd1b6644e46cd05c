package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agenticcms/agenticcms-backend/internal/logger"
	apperrors "github.com/agenticcms/agenticcms-backend/internal/pkg/errors"
	"github.com/agenticcms/agenticcms-backend/internal/repos"
	"github.com/agenticcms/agenticcms-backend/internal/requestdata"
	"github.com/agenticcms/agenticcms-backend/internal/types"
)

type CreateClassroomInput struct {
	Name       string `json:"name" binding:"required"`
	GradeLevel string `json:"grade_level" binding:"required"`
	Subject    string `json:"subject" binding:"required"`
}

type UpdateClassroomInput struct {
	Name       *string `json:"name"`
	GradeLevel *string `json:"grade_level"`
	Subject    *string `json:"subject"`
}

type ClassroomService interface {
	Create(ctx context.Context, input CreateClassroomInput) (*types.Classroom, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Classroom, error)
	List(ctx context.Context) ([]*types.Classroom, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateClassroomInput) (*types.Classroom, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type classroomService struct {
	db            *gorm.DB
	log           *logger.Logger
	classroomRepo repos.ClassroomRepo
}

func NewClassroomService(db *gorm.DB, baseLog *logger.Logger, classroomRepo repos.ClassroomRepo) ClassroomService {
	return &classroomService{
		db:            db,
		log:           baseLog.With("service", "ClassroomService"),
		classroomRepo: classroomRepo,
	}
}

func requireUser(ctx context.Context) (uuid.UUID, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return uuid.Nil, apperrors.ErrUnauthorized
	}
	return rd.UserID, nil
}

func (s *classroomService) Create(ctx context.Context, input CreateClassroomInput) (*types.Classroom, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("classroom name required: %w", apperrors.ErrInvalidArgument)
	}

	classroom := &types.Classroom{
		ID:           uuid.New(),
		StaticFields: types.StaticFields{OwnerID: userID},
		Name:         strings.TrimSpace(input.Name),
		GradeLevel:   strings.TrimSpace(input.GradeLevel),
		Subject:      strings.TrimSpace(input.Subject),
	}
	if _, err := s.classroomRepo.Create(ctx, nil, []*types.Classroom{classroom}); err != nil {
		return nil, fmt.Errorf("create classroom: %w", err)
	}
	return classroom, nil
}

func (s *classroomService) Get(ctx context.Context, id uuid.UUID) (*types.Classroom, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	rooms, err := s.classroomRepo.GetByIDs(ctx, nil, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(rooms) == 0 || rooms[0] == nil || rooms[0].OwnerID != userID {
		return nil, apperrors.ErrNotFound
	}
	return rooms[0], nil
}

func (s *classroomService) List(ctx context.Context) ([]*types.Classroom, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.classroomRepo.ListByOwnerID(ctx, nil, userID)
}

func (s *classroomService) Update(ctx context.Context, id uuid.UUID, input UpdateClassroomInput) (*types.Classroom, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		updates["name"] = strings.TrimSpace(*input.Name)
	}
	if input.GradeLevel != nil {
		updates["grade_level"] = strings.TrimSpace(*input.GradeLevel)
	}
	if input.Subject != nil {
		updates["subject"] = strings.TrimSpace(*input.Subject)
	}
	if err := s.classroomRepo.UpdateFields(ctx, nil, id, updates); err != nil {
		return nil, fmt.Errorf("update classroom: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *classroomService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.classroomRepo.SoftDeleteByIDs(ctx, nil, []uuid.UUID{id})
}

package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agenticcms/agenticcms-backend/internal/logger"
	apperrors "github.com/agenticcms/agenticcms-backend/internal/pkg/errors"
	"github.com/agenticcms/agenticcms-backend/internal/types"
)

type UserRepo interface {
	Create(ctx context.Context, tx *gorm.DB, users []*types.User) ([]*types.User, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.User, error)
	GetByEmails(ctx context.Context, tx *gorm.DB, userEmails []string) ([]*types.User, error)
	EmailExists(ctx context.Context, tx *gorm.DB, userEmail string) (bool, error)

	// SubtractCredits decrements the balance in one guarded UPDATE
	// (credits >= amount) and returns the new balance. The conditional
	// write is what keeps concurrent debits from racing a balance below
	// zero; callers still pre-check sufficiency for a friendlier error.
	SubtractCredits(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount int) (int, error)
	AddCredits(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount int) (int, error)
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	repoLog := baseLog.With("repo", "UserRepo")
	return &userRepo{db: db, log: repoLog}
}

func (ur *userRepo) Create(ctx context.Context, tx *gorm.DB, users []*types.User) ([]*types.User, error) {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}
	if len(users) == 0 {
		return []*types.User{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (ur *userRepo) GetByIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.User, error) {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}
	var results []*types.User
	if len(userIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", userIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ur *userRepo) GetByEmails(ctx context.Context, tx *gorm.DB, userEmails []string) ([]*types.User, error) {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}
	var results []*types.User
	if len(userEmails) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("email IN ?", userEmails).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ur *userRepo) EmailExists(ctx context.Context, tx *gorm.DB, userEmail string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.User{}).
		Where("email = ?", userEmail).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (ur *userRepo) SubtractCredits(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount int) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}
	if amount <= 0 {
		return 0, apperrors.ErrInvalidArgument
	}
	res := transaction.WithContext(ctx).
		Model(&types.User{}).
		Where("id = ? AND credits >= ?", userID, amount).
		UpdateColumn("credits", gorm.Expr("credits - ?", amount))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		exists, err := ur.idExists(ctx, transaction, userID)
		if err != nil {
			return 0, err
		}
		if !exists {
			return 0, apperrors.ErrUserNotFound
		}
		return 0, apperrors.ErrInsufficientCredits
	}
	return ur.readBalance(ctx, transaction, userID)
}

func (ur *userRepo) AddCredits(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount int) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}
	if amount <= 0 {
		return 0, apperrors.ErrInvalidArgument
	}
	res := transaction.WithContext(ctx).
		Model(&types.User{}).
		Where("id = ?", userID).
		UpdateColumn("credits", gorm.Expr("credits + ?", amount))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, apperrors.ErrUserNotFound
	}
	return ur.readBalance(ctx, transaction, userID)
}

func (ur *userRepo) idExists(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (bool, error) {
	var count int64
	if err := tx.WithContext(ctx).
		Model(&types.User{}).
		Where("id = ?", userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (ur *userRepo) readBalance(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int, error) {
	var balance int
	if err := tx.WithContext(ctx).
		Model(&types.User{}).
		Where("id = ?", userID).
		Pluck("credits", &balance).Error; err != nil {
		return 0, err
	}
	return balance, nil
}

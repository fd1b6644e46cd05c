package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agenticcms/agenticcms-backend/internal/logger"
	"github.com/agenticcms/agenticcms-backend/internal/types"
)

// CreditTransactionRepo is append-only: there is deliberately no update or
// delete operation on ledger rows.
type CreditTransactionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, txns []*types.CreditTransaction) ([]*types.CreditTransaction, error)
	ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.CreditTransaction, error)
}

type creditTransactionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCreditTransactionRepo(db *gorm.DB, baseLog *logger.Logger) CreditTransactionRepo {
	repoLog := baseLog.With("repo", "CreditTransactionRepo")
	return &creditTransactionRepo{db: db, log: repoLog}
}

func (r *creditTransactionRepo) Create(ctx context.Context, tx *gorm.DB, txns []*types.CreditTransaction) ([]*types.CreditTransaction, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(txns) == 0 {
		return []*types.CreditTransaction{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *creditTransactionRepo) ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.CreditTransaction, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.CreditTransaction
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

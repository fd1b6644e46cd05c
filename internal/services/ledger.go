package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agenticcms/agenticcms-backend/internal/logger"
	apperrors "github.com/agenticcms/agenticcms-backend/internal/pkg/errors"
	"github.com/agenticcms/agenticcms-backend/internal/repos"
	"github.com/agenticcms/agenticcms-backend/internal/types"
)

// CreditLedgerService is the only writer of user balances. Every balance
// change happens inside one DB transaction together with the append of
// exactly one immutable transaction row whose BalanceAfter snapshots the
// post-change balance. Debits are guarded (credits >= amount) so concurrent
// runs can never race a balance below zero.
type CreditLedgerService interface {
	Debit(ctx context.Context, userID uuid.UUID, amount int, description string) (int, error)
	Credit(ctx context.Context, userID uuid.UUID, amount int, description string) (int, error)
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
	Transactions(ctx context.Context, userID uuid.UUID) ([]*types.CreditTransaction, error)
}

type creditLedgerService struct {
	db       *gorm.DB
	log      *logger.Logger
	userRepo repos.UserRepo
	txnRepo  repos.CreditTransactionRepo
}

func NewCreditLedgerService(
	db *gorm.DB,
	baseLog *logger.Logger,
	userRepo repos.UserRepo,
	txnRepo repos.CreditTransactionRepo,
) CreditLedgerService {
	return &creditLedgerService{
		db:       db,
		log:      baseLog.With("service", "CreditLedgerService"),
		userRepo: userRepo,
		txnRepo:  txnRepo,
	}
}

func (s *creditLedgerService) Debit(ctx context.Context, userID uuid.UUID, amount int, description string) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("debit amount must be positive: %w", apperrors.ErrInvalidArgument)
	}
	return s.apply(ctx, userID, -amount, description)
}

func (s *creditLedgerService) Credit(ctx context.Context, userID uuid.UUID, amount int, description string) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credit amount must be positive: %w", apperrors.ErrInvalidArgument)
	}
	return s.apply(ctx, userID, amount, description)
}

func (s *creditLedgerService) apply(ctx context.Context, userID uuid.UUID, delta int, description string) (int, error) {
	var newBalance int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var balance int
		var err error
		if delta < 0 {
			balance, err = s.userRepo.SubtractCredits(ctx, tx, userID, -delta)
		} else {
			balance, err = s.userRepo.AddCredits(ctx, tx, userID, delta)
		}
		if err != nil {
			return err
		}

		txn := &types.CreditTransaction{
			ID:           uuid.New(),
			UserID:       userID,
			Amount:       delta,
			BalanceAfter: balance,
			Description:  description,
		}
		if _, err := s.txnRepo.Create(ctx, tx, []*types.CreditTransaction{txn}); err != nil {
			return fmt.Errorf("append credit transaction: %w", err)
		}
		newBalance = balance
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Debug("ledger entry applied", "user_id", userID, "amount", delta, "balance_after", newBalance)
	return newBalance, nil
}

func (s *creditLedgerService) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	users, err := s.userRepo.GetByIDs(ctx, nil, []uuid.UUID{userID})
	if err != nil {
		return 0, err
	}
	if len(users) == 0 || users[0] == nil {
		return 0, apperrors.ErrUserNotFound
	}
	return users[0].Credits, nil
}

func (s *creditLedgerService) Transactions(ctx context.Context, userID uuid.UUID) ([]*types.CreditTransaction, error) {
	return s.txnRepo.ListByUserID(ctx, nil, userID)
}

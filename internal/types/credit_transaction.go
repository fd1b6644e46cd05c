package types

import (
	"time"

	"github.com/google/uuid"
)

// CreditTransaction is an append-only ledger row. Rows are never updated or
// deleted; BalanceAfter snapshots the user balance immediately after this
// transaction was applied.
type CreditTransaction struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Amount       int       `gorm:"not null;column:amount" json:"amount"`
	BalanceAfter int       `gorm:"not null;column:balance_after" json:"balance_after"`
	Description  string    `gorm:"not null;column:description" json:"description"`
	CreatedAt    time.Time `gorm:"not null;index" json:"created_at"`
}

func (CreditTransaction) TableName() string { return "credit_transaction" }

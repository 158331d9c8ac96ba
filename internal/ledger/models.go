package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is the per-user balance record. One wallet per user, created at
// registration time and never deleted.
//
// Invariant: balance >= 0 after every committed call-charge debit under
// sequential use. Overlapping calls admitted against the same balance can
// overdraw it; see the call engine for the documented limitation.
type Wallet struct {
	ID          string          `json:"id" db:"id"`
	OwnerUserID string          `json:"owner_user_id" db:"owner_user_id"`
	Balance     decimal.Decimal `json:"balance" db:"balance"`
	Currency    string          `json:"currency" db:"currency"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// Transaction is an append-only ledger entry. A row is never mutated after
// insert except status pending -> completed, exactly once.
//
// Reference is the idempotency key: MON_<uuid> for deposits,
// CALL_<call_id> for call charges. Unique across all transactions.
type Transaction struct {
	ID        string            `json:"id" db:"id"`
	WalletID  string            `json:"wallet_id" db:"wallet_id"`
	Type      TransactionType   `json:"type" db:"type"`
	Amount    decimal.Decimal   `json:"amount" db:"amount"` // always > 0
	Reference string            `json:"reference" db:"reference"`
	Status    TransactionStatus `json:"status" db:"status"`
	Metadata  string            `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}

type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeCallCharge TransactionType = "call_charge"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
)

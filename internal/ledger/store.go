package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("ledger: not found")
	// ErrAlreadyProcessed reports that no pending transaction exists for a
	// reference: it was either never created or already confirmed. Funding
	// confirmations treat it as a no-op, never a double credit.
	ErrAlreadyProcessed = errors.New("ledger: reference already processed")
	ErrInvalidArgument  = errors.New("ledger: invalid argument")
)

// Store is the durable wallet + transaction-log contract. Two
// implementations exist: PostgresStore (row locks inside transactions)
// and MemoryStore (in-process guarded tables). Call-charge debits are not
// part of this interface on purpose: they are only ever issued by the
// call session engine atomically with the session's terminal write, via
// the backend-specific helpers each implementation exposes.
type Store interface {
	CreateWallet(ctx context.Context, ownerUserID, currency string) (Wallet, error)
	WalletByUser(ctx context.Context, userID string) (Wallet, error)
	Balance(ctx context.Context, walletID string) (decimal.Decimal, error)

	// CreateDeposit appends a pending deposit transaction (a funding
	// intent). The reference must be fresh and unique.
	CreateDeposit(ctx context.Context, walletID string, amount decimal.Decimal, reference string) (Transaction, error)

	// ConfirmDeposit credits the wallet by the pending transaction's amount
	// and marks it completed, atomically. Safe under concurrent duplicate
	// delivery: at most one caller succeeds per reference, the rest get
	// ErrAlreadyProcessed.
	ConfirmDeposit(ctx context.Context, reference string) (Transaction, error)

	// TransactionsByWallet returns a page ordered newest-first plus the
	// unpaged total. An empty typeFilter matches all types.
	TransactionsByWallet(ctx context.Context, walletID string, typeFilter TransactionType, limit, offset int) ([]Transaction, int, error)
}

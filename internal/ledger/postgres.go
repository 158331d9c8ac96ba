package ledger

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"voicebill/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PostgresStore persists wallets and transactions in Postgres.
//
// Assumed tables:
// - wallets (unique owner_user_id)
// - transactions (unique reference; append-only, status is the only
//   mutable column and only moves pending -> completed)
type PostgresStore struct {
	db *sql.DB
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, clock: time.Now}
}

const walletColumns = `id, owner_user_id, balance, currency, created_at, updated_at`
const transactionColumns = `id, wallet_id, type, amount, reference, status, metadata, created_at`

func (s *PostgresStore) CreateWallet(ctx context.Context, ownerUserID, currency string) (Wallet, error) {
	if ownerUserID == "" || currency == "" {
		return Wallet{}, ErrInvalidArgument
	}
	now := s.clock().UTC()
	w := Wallet{
		ID:          uuid.NewString(),
		OwnerUserID: ownerUserID,
		Balance:     decimal.Zero,
		Currency:    currency,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	const q = `
INSERT INTO wallets (id, owner_user_id, balance, currency, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
`
	if _, err := s.db.ExecContext(ctx, q, w.ID, w.OwnerUserID, w.Balance, w.Currency, w.CreatedAt, w.UpdatedAt); err != nil {
		return Wallet{}, err
	}
	return w, nil
}

func (s *PostgresStore) WalletByUser(ctx context.Context, userID string) (Wallet, error) {
	if userID == "" {
		return Wallet{}, ErrInvalidArgument
	}
	const q = `SELECT ` + walletColumns + ` FROM wallets WHERE owner_user_id = $1`
	return scanWallet(s.db.QueryRowContext(ctx, q, userID))
}

func (s *PostgresStore) Balance(ctx context.Context, walletID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM wallets WHERE id = $1`, walletID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ErrNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func (s *PostgresStore) CreateDeposit(ctx context.Context, walletID string, amount decimal.Decimal, reference string) (Transaction, error) {
	if walletID == "" || reference == "" || !amount.IsPositive() {
		return Transaction{}, ErrInvalidArgument
	}
	t := Transaction{
		ID:        uuid.NewString(),
		WalletID:  walletID,
		Type:      TransactionTypeDeposit,
		Amount:    amount,
		Reference: reference,
		Status:    TransactionStatusPending,
		CreatedAt: s.clock().UTC(),
	}
	if err := InsertTransactionTxless(ctx, s.db, t); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

func (s *PostgresStore) ConfirmDeposit(ctx context.Context, reference string) (Transaction, error) {
	if reference == "" {
		return Transaction{}, ErrInvalidArgument
	}

	now := s.clock().UTC()
	var out Transaction

	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		// Conditional update is the idempotency gate: under concurrent
		// duplicate delivery only one caller flips pending -> completed.
		const confirm = `
UPDATE transactions
SET status = $1
WHERE reference = $2 AND status = $3
RETURNING ` + transactionColumns + `
`
		t, err := scanTransaction(tx.QueryRowContext(ctx, confirm, TransactionStatusCompleted, reference, TransactionStatusPending))
		if errors.Is(err, ErrNotFound) {
			return ErrAlreadyProcessed
		}
		if err != nil {
			return err
		}

		const credit = `
UPDATE wallets SET balance = balance + $1, updated_at = $2 WHERE id = $3
`
		if _, err := tx.ExecContext(ctx, credit, t.Amount, now, t.WalletID); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	return out, nil
}

func (s *PostgresStore) TransactionsByWallet(ctx context.Context, walletID string, typeFilter TransactionType, limit, offset int) ([]Transaction, int, error) {
	if walletID == "" {
		return nil, 0, ErrInvalidArgument
	}

	where := `WHERE wallet_id = $1`
	args := []any{walletID}
	if typeFilter != "" {
		where += ` AND type = $2`
		args = append(args, typeFilter)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + transactionColumns + ` FROM transactions ` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

/* ===================== call-engine tx helpers ===================== */

// The end-of-call debit must commit in the same database transaction as
// the session's terminal write. The call engine owns that transaction;
// these helpers let it reuse the ledger's SQL inside it.

// LockWalletByUserTx locks the user's wallet row to serialize concurrent
// money operations per wallet.
func LockWalletByUserTx(ctx context.Context, tx *sql.Tx, userID string) (Wallet, error) {
	const q = `SELECT ` + walletColumns + ` FROM wallets WHERE owner_user_id = $1 FOR UPDATE`
	return scanWallet(tx.QueryRowContext(ctx, q, userID))
}

// DebitWalletTx decrements the wallet balance inside the caller's
// transaction. No sufficiency check: admission happened at initiation and
// the balance is allowed to go negative under overlapping calls.
func DebitWalletTx(ctx context.Context, tx *sql.Tx, walletID string, amount decimal.Decimal, now time.Time) error {
	const q = `UPDATE wallets SET balance = balance - $1, updated_at = $2 WHERE id = $3`
	res, err := tx.ExecContext(ctx, q, amount, now, walletID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertTransactionTx appends a ledger entry inside the caller's transaction.
func InsertTransactionTx(ctx context.Context, tx *sql.Tx, t Transaction) error {
	return insertTransaction(ctx, tx, t)
}

// InsertTransactionTxless appends a ledger entry outside any transaction.
func InsertTransactionTxless(ctx context.Context, db *sql.DB, t Transaction) error {
	return insertTransaction(ctx, db, t)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTransaction(ctx context.Context, db execer, t Transaction) error {
	const q = `
INSERT INTO transactions (id, wallet_id, type, amount, reference, status, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`
	_, err := db.ExecContext(ctx, q,
		t.ID,
		t.WalletID,
		t.Type,
		t.Amount,
		t.Reference,
		t.Status,
		t.Metadata,
		t.CreatedAt,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWallet(r rowScanner) (Wallet, error) {
	var w Wallet
	err := r.Scan(&w.ID, &w.OwnerUserID, &w.Balance, &w.Currency, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Wallet{}, ErrNotFound
	}
	if err != nil {
		return Wallet{}, err
	}
	return w, nil
}

func scanTransaction(r rowScanner) (Transaction, error) {
	var t Transaction
	var metadata sql.NullString
	err := r.Scan(&t.ID, &t.WalletID, &t.Type, &t.Amount, &t.Reference, &t.Status, &metadata, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Transaction{}, ErrNotFound
	}
	if err != nil {
		return Transaction{}, err
	}
	t.Metadata = metadata.String
	return t, nil
}

package calls

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"voicebill/internal/ledger"
	"voicebill/pkg/utils"

	"github.com/google/uuid"
)

// PostgresRepository persists call sessions in Postgres.
//
// Assumed table: call_sessions, keyed by id, with a status column that
// only ever moves forward through the lifecycle.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `id, caller_id, receiver_id, status, rate_per_minute, created_at, started_at, ended_at, duration_seconds, billed_minutes, total_charge, end_reason`

func (r *PostgresRepository) Create(ctx context.Context, c CallSession) error {
	const q = `
INSERT INTO call_sessions (` + sessionColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`
	_, err := r.db.ExecContext(ctx, q,
		c.ID,
		c.CallerID,
		c.ReceiverID,
		c.Status,
		c.RatePerMinute,
		c.CreatedAt,
		c.StartedAt,
		c.EndedAt,
		c.DurationSeconds,
		c.BilledMinutes,
		c.TotalCharge,
		c.EndReason,
	)
	return err
}

func (r *PostgresRepository) Get(ctx context.Context, callID string) (CallSession, error) {
	const q = `SELECT ` + sessionColumns + ` FROM call_sessions WHERE id = $1`
	return scanSession(r.db.QueryRowContext(ctx, q, callID))
}

func (r *PostgresRepository) Answer(ctx context.Context, callID string, at time.Time) (CallSession, error) {
	// Conditional update: only a pre-answer session transitions. A lost
	// race shows up as zero rows, then the re-select tells us whether the
	// session is missing or just past answering.
	const q = `
UPDATE call_sessions
SET status = $1, started_at = $2
WHERE id = $3 AND status IN ($4, $5)
RETURNING ` + sessionColumns + `
`
	c, err := scanSession(r.db.QueryRowContext(ctx, q, StatusOngoing, at, callID, StatusInitiated, StatusRinging))
	if errors.Is(err, ErrNotFound) {
		if _, getErr := r.Get(ctx, callID); getErr != nil {
			return CallSession{}, getErr
		}
		return CallSession{}, ErrAlreadyAnswered
	}
	if err != nil {
		return CallSession{}, err
	}
	return c, nil
}

func (r *PostgresRepository) Finalize(ctx context.Context, callID, reason string, at time.Time) (CallSession, error) {
	var out CallSession

	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		// Session row lock serializes concurrent end attempts; the first
		// committer wins and the rest observe the terminal state.
		const lock = `SELECT ` + sessionColumns + ` FROM call_sessions WHERE id = $1 FOR UPDATE`
		c, err := scanSession(tx.QueryRowContext(ctx, lock, callID))
		if err != nil {
			return err
		}
		if c.Status == StatusEnded {
			return ErrAlreadyEnded
		}

		if c.Status == StatusOngoing && c.StartedAt != nil {
			c.DurationSeconds, c.BilledMinutes, c.TotalCharge = billingFor(*c.StartedAt, at, c.RatePerMinute)
		}

		if c.TotalCharge.IsPositive() {
			// Wallet lock second, always after the session lock.
			w, err := ledger.LockWalletByUserTx(ctx, tx, c.CallerID)
			if err != nil {
				return err
			}
			if err := ledger.DebitWalletTx(ctx, tx, w.ID, c.TotalCharge, at); err != nil {
				return err
			}
			t := ledger.Transaction{
				ID:        uuid.NewString(),
				WalletID:  w.ID,
				Type:      ledger.TransactionTypeCallCharge,
				Amount:    c.TotalCharge,
				Reference: "CALL_" + c.ID,
				Status:    ledger.TransactionStatusCompleted,
				Metadata:  callChargeMetadata(c.ID),
				CreatedAt: at,
			}
			if err := ledger.InsertTransactionTx(ctx, tx, t); err != nil {
				return err
			}
		}

		endedAt := at
		c.Status = StatusEnded
		c.EndedAt = &endedAt
		c.EndReason = reason

		const finish = `
UPDATE call_sessions
SET status = $1, ended_at = $2, duration_seconds = $3, billed_minutes = $4, total_charge = $5, end_reason = $6
WHERE id = $7
`
		if _, err := tx.ExecContext(ctx, finish, c.Status, c.EndedAt, c.DurationSeconds, c.BilledMinutes, c.TotalCharge, c.EndReason, c.ID); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return CallSession{}, err
	}
	return out, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, role Role, limit, offset int) ([]CallSession, int, error) {
	var where string
	switch role {
	case RoleCaller:
		where = `WHERE caller_id = $1`
	case RoleReceiver:
		where = `WHERE receiver_id = $1`
	default:
		where = `WHERE (caller_id = $1 OR receiver_id = $1)`
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM call_sessions `+where, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + sessionColumns + ` FROM call_sessions ` + where + ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []CallSession
	for rows.Next() {
		c, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func callChargeMetadata(callID string) string {
	b, _ := json.Marshal(map[string]string{"call_id": callID})
	return string(b)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (CallSession, error) {
	var c CallSession
	var startedAt, endedAt sql.NullTime
	var endReason sql.NullString
	err := r.Scan(
		&c.ID,
		&c.CallerID,
		&c.ReceiverID,
		&c.Status,
		&c.RatePerMinute,
		&c.CreatedAt,
		&startedAt,
		&endedAt,
		&c.DurationSeconds,
		&c.BilledMinutes,
		&c.TotalCharge,
		&endReason,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return CallSession{}, ErrNotFound
	}
	if err != nil {
		return CallSession{}, err
	}
	if startedAt.Valid {
		t := startedAt.Time
		c.StartedAt = &t
	}
	if endedAt.Valid {
		t := endedAt.Time
		c.EndedAt = &t
	}
	c.EndReason = endReason.String
	return c, nil
}

package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends audit events to an INSERT-only table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (id, type, actor_user_id, wallet_id, call_id, reference, message, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`
	_, err := r.db.ExecContext(ctx, q, insertArgs(e)...)
	return err
}

// insertArgs maps optional fields to NULL. The UUID columns reject empty
// strings at the cast, and funding confirmations legitimately carry no
// actor or call.
func insertArgs(e Event) []any {
	return []any{
		e.ID,
		e.Type,
		nullIfEmpty(e.ActorUserID),
		nullIfEmpty(e.WalletID),
		nullIfEmpty(e.CallID),
		nullIfEmpty(e.Reference),
		nullIfEmpty(e.Message),
		nullIfEmpty(e.Metadata),
		e.CreatedAt,
	}
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

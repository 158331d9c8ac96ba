package audit

import "time"

// Event is an immutable, append-only audit record for money movements.
//
// Invariants:
// - Events are never updated or deleted.
// - Audit writes are best-effort; the billing path must never block or
//   fail because an audit append failed.
type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated user causing the event, when known.
	// Funding confirmations arrive on an unauthenticated channel and leave
	// it empty.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`

	WalletID string `json:"wallet_id,omitempty" db:"wallet_id"`
	CallID   string `json:"call_id,omitempty" db:"call_id"`

	// Reference is the ledger reference the event correlates with
	// (MON_* or CALL_*).
	Reference string `json:"reference,omitempty" db:"reference"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeFundingConfirmed EventType = "funding_confirmed"
	EventTypeCallBilled       EventType = "call_billed"
)

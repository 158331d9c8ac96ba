package calls

import (
	"context"
	"time"
)

// Role filters call history by which leg the user was on.
type Role string

const (
	RoleAll      Role = "all"
	RoleCaller   Role = "caller"
	RoleReceiver Role = "receiver"
)

// Repository is the session persistence contract. Finalize is the heart
// of it: the session's terminal write and the caller's debit must land as
// one atomic unit, so each backend owns its own transaction/locking
// strategy rather than composing it from smaller calls.
type Repository interface {
	Create(ctx context.Context, c CallSession) error
	Get(ctx context.Context, callID string) (CallSession, error)

	// Answer moves initiated/ringing -> ongoing and stamps StartedAt.
	// Returns ErrAlreadyAnswered if the session left the pre-answer states,
	// ErrNotFound if it does not exist.
	Answer(ctx context.Context, callID string, at time.Time) (CallSession, error)

	// Finalize ends the session: computes billing if it was ongoing, debits
	// the caller's wallet, appends the call-charge ledger entry and writes
	// the terminal session state, atomically. Ending a never-answered
	// session bills zero and writes no ledger entry.
	// Returns ErrAlreadyEnded if the session is already terminal.
	Finalize(ctx context.Context, callID, reason string, at time.Time) (CallSession, error)

	// ListByUser returns a page of the user's sessions, newest first, plus
	// the unpaged total.
	ListByUser(ctx context.Context, userID string, role Role, limit, offset int) ([]CallSession, int, error)
}

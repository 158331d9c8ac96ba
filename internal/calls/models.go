package calls

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the call session lifecycle state.
//
//	initiated/ringing --answer--> ongoing --end--> ended
//	initiated/ringing ----------------end--------> ended (bills zero)
//
// ended is terminal: no transition leaves it.
type Status string

const (
	StatusInitiated Status = "initiated"
	StatusRinging   Status = "ringing"
	StatusOngoing   Status = "ongoing"
	StatusEnded     Status = "ended"
)

// CallSession is one voice call between two users. The caller pays; the
// per-minute rate is frozen into the session at initiation so later rate
// changes never affect in-flight calls.
type CallSession struct {
	ID            string          `json:"id" db:"id"`
	CallerID      string          `json:"caller_id" db:"caller_id"`
	ReceiverID    string          `json:"receiver_id" db:"receiver_id"`
	Status        Status          `json:"status" db:"status"`
	RatePerMinute decimal.Decimal `json:"rate_per_minute" db:"rate_per_minute"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	StartedAt     *time.Time      `json:"started_at,omitempty" db:"started_at"`
	EndedAt       *time.Time      `json:"ended_at,omitempty" db:"ended_at"`

	// Billing outcome, populated only once Status is ended.
	DurationSeconds int             `json:"duration_seconds" db:"duration_seconds"`
	BilledMinutes   int             `json:"billed_minutes" db:"billed_minutes"`
	TotalCharge     decimal.Decimal `json:"total_charge" db:"total_charge"`
	EndReason       string          `json:"end_reason,omitempty" db:"end_reason"`
}

// CanAnswer reports whether the session is still in a pre-answer state.
func (c CallSession) CanAnswer() bool {
	return c.Status == StatusInitiated || c.Status == StatusRinging
}

// Participant reports whether the user is on either leg of the call.
func (c CallSession) Participant(userID string) bool {
	return c.CallerID == userID || c.ReceiverID == userID
}

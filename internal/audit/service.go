package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events. It is
// append-only: there are no update or delete methods.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information. Callers treat audit logging as
// best-effort: errors are reported but never abort the money operation
// that triggered the event.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogFundingConfirmed records a wallet credit applied from a funding
// confirmation.
func (s *Service) LogFundingConfirmed(ctx context.Context, walletID, reference, metadata string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeFundingConfirmed,
		WalletID:  walletID,
		Reference: reference,
		Message:   "funding confirmed",
		Metadata:  metadata,
	})
}

// LogCallBilled records the debit applied when a call session ended.
func (s *Service) LogCallBilled(ctx context.Context, actorUserID, walletID, callID, reference, metadata string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeCallBilled,
		ActorUserID: actorUserID,
		WalletID:    walletID,
		CallID:      callID,
		Reference:   reference,
		Message:     "call billed",
		Metadata:    metadata,
	})
}

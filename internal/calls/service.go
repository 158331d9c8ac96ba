package calls

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"voicebill/internal/audit"
	"voicebill/internal/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UserDirectory is the slice of the user store the call engine needs.
type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// Service drives the call session lifecycle and its billing.
//
// Admission control happens once, at initiation: the caller must afford at
// least one minute at the current rate. The end-of-call debit never
// re-checks sufficiency, so overlapping calls admitted against the same
// balance can overdraw it. Sequential calls cannot.
type Service struct {
	repo   Repository
	ledger ledger.Store
	users  UserDirectory
	audit  *audit.Service

	rate  decimal.Decimal
	clock func() time.Time
}

func NewService(repo Repository, store ledger.Store, users UserDirectory, auditSvc *audit.Service, ratePerMinute decimal.Decimal) *Service {
	return &Service{
		repo:   repo,
		ledger: store,
		users:  users,
		audit:  auditSvc,
		rate:   ratePerMinute,
		clock:  time.Now,
	}
}

// Initiate admits a new call and returns the session plus the caller's
// current balance for the response payload.
func (s *Service) Initiate(ctx context.Context, callerID, receiverID string) (CallSession, decimal.Decimal, error) {
	if callerID == receiverID {
		return CallSession{}, decimal.Zero, ErrSelfCall
	}

	ok, err := s.users.Exists(ctx, receiverID)
	if err != nil {
		return CallSession{}, decimal.Zero, err
	}
	if !ok {
		return CallSession{}, decimal.Zero, ErrReceiverNotFound
	}

	w, err := s.ledger.WalletByUser(ctx, callerID)
	if errors.Is(err, ledger.ErrNotFound) {
		return CallSession{}, decimal.Zero, &InsufficientBalanceError{Required: s.rate, Available: decimal.Zero}
	}
	if err != nil {
		return CallSession{}, decimal.Zero, err
	}
	if w.Balance.LessThan(s.rate) {
		return CallSession{}, decimal.Zero, &InsufficientBalanceError{Required: s.rate, Available: w.Balance}
	}

	c := CallSession{
		ID:            uuid.NewString(),
		CallerID:      callerID,
		ReceiverID:    receiverID,
		Status:        StatusInitiated,
		RatePerMinute: s.rate,
		CreatedAt:     s.clock().UTC(),
		TotalCharge:   decimal.Zero,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return CallSession{}, decimal.Zero, err
	}
	return c, w.Balance, nil
}

// Answer connects the call. Only the receiver may answer, and only while
// the session is still pre-answer.
func (s *Service) Answer(ctx context.Context, userID, callID string) (CallSession, error) {
	c, err := s.repo.Get(ctx, callID)
	if err != nil {
		return CallSession{}, err
	}
	if c.ReceiverID != userID {
		return CallSession{}, ErrForbidden
	}
	if !c.CanAnswer() {
		return CallSession{}, ErrAlreadyAnswered
	}
	return s.repo.Answer(ctx, callID, s.clock().UTC())
}

// End terminates the call. Either participant may end it; ending a
// never-answered call bills nothing.
func (s *Service) End(ctx context.Context, userID, callID, reason string) (CallSession, error) {
	c, err := s.repo.Get(ctx, callID)
	if err != nil {
		return CallSession{}, err
	}
	if !c.Participant(userID) {
		return CallSession{}, ErrForbidden
	}
	if c.Status == StatusEnded {
		return CallSession{}, ErrAlreadyEnded
	}

	ended, err := s.repo.Finalize(ctx, callID, reason, s.clock().UTC())
	if err != nil {
		return CallSession{}, err
	}

	if s.audit != nil && ended.TotalCharge.IsPositive() {
		w, werr := s.ledger.WalletByUser(ctx, ended.CallerID)
		if werr == nil {
			if auditErr := s.audit.LogCallBilled(ctx, userID, w.ID, ended.ID, "CALL_"+ended.ID, callChargeMetadata(ended.ID)); auditErr != nil {
				slog.Warn("audit append failed", "call_id", ended.ID, "err", auditErr)
			}
		}
	}
	return ended, nil
}

// Details returns the session to a participant.
func (s *Service) Details(ctx context.Context, userID, callID string) (CallSession, error) {
	c, err := s.repo.Get(ctx, callID)
	if err != nil {
		return CallSession{}, err
	}
	if !c.Participant(userID) {
		return CallSession{}, ErrForbidden
	}
	return c, nil
}

// History returns a page of the user's calls, newest first.
func (s *Service) History(ctx context.Context, userID string, role Role, page, limit int) ([]CallSession, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	switch role {
	case RoleCaller, RoleReceiver:
	default:
		role = RoleAll
	}
	return s.repo.ListByUser(ctx, userID, role, limit, (page-1)*limit)
}

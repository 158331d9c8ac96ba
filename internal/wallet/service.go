package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"voicebill/internal/audit"
	"voicebill/internal/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StatusPaid is the only funding-notification status that credits a wallet.
const StatusPaid = "PAID"

var (
	// ErrInvalidAmount rejects funding amounts that are not positive
	// decimals with at most 2 fractional digits.
	ErrInvalidAmount = errors.New("wallet: amount must be a positive decimal with at most 2 decimal places")
)

// Service provides wallet operations: balance lookup, funding intents,
// funding confirmation, and transaction history.
//
// Money invariants:
// - Every balance change goes through the ledger store.
// - A funding reference credits its wallet at most once, no matter how
//   many times the notification channel delivers it.
type Service struct {
	store ledger.Store
	audit *audit.Service

	// paymentURLBase prefixes the hosted payment page for funding intents.
	paymentURLBase string
}

func NewService(store ledger.Store, auditSvc *audit.Service, paymentURLBase string) *Service {
	return &Service{store: store, audit: auditSvc, paymentURLBase: paymentURLBase}
}

// FundingIntent is a pending deposit awaiting external confirmation.
type FundingIntent struct {
	TransactionID string          `json:"transaction_id"`
	Reference     string          `json:"reference"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	PaymentURL    string          `json:"payment_url"`
}

// ConfirmOutcome distinguishes a credit that was applied from a duplicate
// or unknown delivery, which is a success for the notifying channel.
type ConfirmOutcome string

const (
	ConfirmOutcomeConfirmed ConfirmOutcome = "confirmed"
	ConfirmOutcomeIgnored   ConfirmOutcome = "ignored"
)

// GetWallet returns the user's wallet. A missing wallet after
// registration is a data-integrity failure surfaced as ErrNotFound.
func (s *Service) GetWallet(ctx context.Context, userID string) (ledger.Wallet, error) {
	return s.store.WalletByUser(ctx, userID)
}

// Fund creates a funding intent: a pending deposit transaction with a
// fresh unique reference and the payment URL the user should be sent to.
func (s *Service) Fund(ctx context.Context, userID string, amount decimal.Decimal) (FundingIntent, error) {
	// Truncate comparison rather than exponent inspection: 10.120 is a
	// valid two-decimal amount even though its exponent is -3.
	if !amount.IsPositive() || !amount.Equal(amount.Truncate(2)) {
		return FundingIntent{}, ErrInvalidAmount
	}

	w, err := s.store.WalletByUser(ctx, userID)
	if err != nil {
		return FundingIntent{}, err
	}

	reference := "MON_" + uuid.NewString()
	t, err := s.store.CreateDeposit(ctx, w.ID, amount, reference)
	if err != nil {
		return FundingIntent{}, err
	}

	return FundingIntent{
		TransactionID: t.ID,
		Reference:     t.Reference,
		Amount:        t.Amount,
		Status:        string(t.Status),
		PaymentURL:    fmt.Sprintf("%s/%s", s.paymentURLBase, t.Reference),
	}, nil
}

// ConfirmFunding processes a funding notification. Only PAID credits the
// wallet; anything else is acknowledged and ignored. Unknown or already
// completed references are also ignored because the channel delivers
// at-least-once.
func (s *Service) ConfirmFunding(ctx context.Context, reference, reportedStatus string) (ConfirmOutcome, error) {
	if reportedStatus != StatusPaid {
		return ConfirmOutcomeIgnored, nil
	}

	t, err := s.store.ConfirmDeposit(ctx, reference)
	if errors.Is(err, ledger.ErrAlreadyProcessed) {
		return ConfirmOutcomeIgnored, nil
	}
	if err != nil {
		return "", err
	}

	if s.audit != nil {
		if auditErr := s.audit.LogFundingConfirmed(ctx, t.WalletID, t.Reference, ""); auditErr != nil {
			slog.Warn("audit append failed", "reference", t.Reference, "err", auditErr)
		}
	}
	return ConfirmOutcomeConfirmed, nil
}

// Transactions returns a page of the user's ledger entries, newest first.
// typeFilter may be empty, "deposit" or "call_charge".
func (s *Service) Transactions(ctx context.Context, userID string, page, limit int, typeFilter string) ([]ledger.Transaction, int, error) {
	w, err := s.store.WalletByUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	page, limit = NormalizePage(page, limit)
	return s.store.TransactionsByWallet(ctx, w.ID, ledger.TransactionType(typeFilter), limit, (page-1)*limit)
}

// NormalizePage applies the shared pagination defaults: 1-indexed pages,
// default limit 20, capped at 100.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

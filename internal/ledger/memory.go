package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryStore is the in-process guarded table variant of Store. A single
// mutex serializes all wallet and transaction mutations, which gives the
// same isolation the Postgres row locks provide. Never ambient: callers
// receive an injected *MemoryStore, there is no package-level instance.
//
// The call engine's memory repository acquires its per-session lock before
// calling into this store, so the lock order on the billing path is always
// session first, wallet table second.
type MemoryStore struct {
	mu sync.Mutex

	wallets      map[string]*Wallet // by wallet id
	walletByUser map[string]string  // user id -> wallet id
	transactions []Transaction
	txnByRef     map[string]int // reference -> index into transactions

	clock func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		wallets:      make(map[string]*Wallet),
		walletByUser: make(map[string]string),
		txnByRef:     make(map[string]int),
		clock:        time.Now,
	}
}

func (s *MemoryStore) CreateWallet(ctx context.Context, ownerUserID, currency string) (Wallet, error) {
	if ownerUserID == "" || currency == "" {
		return Wallet{}, ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.walletByUser[ownerUserID]; ok {
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
	s.wallets[w.ID] = &w
	s.walletByUser[ownerUserID] = w.ID
	return w, nil
}

func (s *MemoryStore) WalletByUser(ctx context.Context, userID string) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.walletByUser[userID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return *s.wallets[id], nil
}

func (s *MemoryStore) Balance(ctx context.Context, walletID string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[walletID]
	if !ok {
		return decimal.Zero, ErrNotFound
	}
	return w.Balance, nil
}

func (s *MemoryStore) CreateDeposit(ctx context.Context, walletID string, amount decimal.Decimal, reference string) (Transaction, error) {
	if walletID == "" || reference == "" || !amount.IsPositive() {
		return Transaction{}, ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.wallets[walletID]; !ok {
		return Transaction{}, ErrNotFound
	}
	if _, ok := s.txnByRef[reference]; ok {
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
	s.append(t)
	return t, nil
}

func (s *MemoryStore) ConfirmDeposit(ctx context.Context, reference string) (Transaction, error) {
	if reference == "" {
		return Transaction{}, ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check-then-credit inside one critical section: duplicate deliveries
	// of the same reference cannot both observe pending.
	i, ok := s.txnByRef[reference]
	if !ok || s.transactions[i].Status != TransactionStatusPending {
		return Transaction{}, ErrAlreadyProcessed
	}

	s.transactions[i].Status = TransactionStatusCompleted
	t := s.transactions[i]

	w := s.wallets[t.WalletID]
	w.Balance = w.Balance.Add(t.Amount)
	w.UpdatedAt = s.clock().UTC()

	return t, nil
}

// DebitForCall posts a completed call-charge entry and decrements the
// wallet in one critical section. Only the call engine's memory
// repository calls this, while holding the session lock.
func (s *MemoryStore) DebitForCall(ctx context.Context, walletID string, amount decimal.Decimal, reference, metadata string) (Transaction, error) {
	if walletID == "" || reference == "" || !amount.IsPositive() {
		return Transaction{}, ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[walletID]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	if _, ok := s.txnByRef[reference]; ok {
		return Transaction{}, ErrAlreadyProcessed
	}

	now := s.clock().UTC()
	t := Transaction{
		ID:        uuid.NewString(),
		WalletID:  walletID,
		Type:      TransactionTypeCallCharge,
		Amount:    amount,
		Reference: reference,
		Status:    TransactionStatusCompleted,
		Metadata:  metadata,
		CreatedAt: now,
	}
	s.append(t)

	// No sufficiency check here; see DebitWalletTx.
	w.Balance = w.Balance.Sub(amount)
	w.UpdatedAt = now

	return t, nil
}

func (s *MemoryStore) TransactionsByWallet(ctx context.Context, walletID string, typeFilter TransactionType, limit, offset int) ([]Transaction, int, error) {
	if walletID == "" {
		return nil, 0, ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Newest first; the slice is in insertion order.
	var matched []Transaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		t := s.transactions[i]
		if t.WalletID != walletID {
			continue
		}
		if typeFilter != "" && t.Type != typeFilter {
			continue
		}
		matched = append(matched, t)
	}

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	out := make([]Transaction, end-offset)
	copy(out, matched[offset:end])
	return out, total, nil
}

func (s *MemoryStore) append(t Transaction) {
	s.txnByRef[t.Reference] = len(s.transactions)
	s.transactions = append(s.transactions, t)
}

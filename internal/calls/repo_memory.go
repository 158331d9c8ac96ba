package calls

import (
	"context"
	"sync"
	"time"

	"voicebill/internal/ledger"
)

// MemoryRepository keeps call sessions in process memory. A per-session
// mutex gives each session the same mutual exclusion the Postgres row
// lock provides, so concurrent answer/end attempts on one call serialize.
//
// Lock order on the billing path is session lock first, then the ledger
// store's table lock inside DebitForCall. Nothing acquires them the other
// way around.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]*CallSession
	locks    map[string]*sync.Mutex
	order    []string // session ids in creation order

	ledger *ledger.MemoryStore
}

func NewMemoryRepository(store *ledger.MemoryStore) *MemoryRepository {
	return &MemoryRepository{
		sessions: make(map[string]*CallSession),
		locks:    make(map[string]*sync.Mutex),
		ledger:   store,
	}
}

func (r *MemoryRepository) Create(ctx context.Context, c CallSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := c
	r.sessions[c.ID] = &cp
	r.locks[c.ID] = &sync.Mutex{}
	r.order = append(r.order, c.ID)
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, callID string) (CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.sessions[callID]
	if !ok {
		return CallSession{}, ErrNotFound
	}
	return *c, nil
}

// sessionLock returns the session's mutex, or ErrNotFound.
func (r *MemoryRepository) sessionLock(callID string) (*sync.Mutex, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.locks[callID]
	if !ok {
		return nil, ErrNotFound
	}
	return l, nil
}

func (r *MemoryRepository) Answer(ctx context.Context, callID string, at time.Time) (CallSession, error) {
	l, err := r.sessionLock(callID)
	if err != nil {
		return CallSession{}, err
	}
	l.Lock()
	defer l.Unlock()

	r.mu.Lock()
	c := r.sessions[callID]
	r.mu.Unlock()

	if !c.CanAnswer() {
		return CallSession{}, ErrAlreadyAnswered
	}

	startedAt := at
	c.Status = StatusOngoing
	c.StartedAt = &startedAt
	return *c, nil
}

func (r *MemoryRepository) Finalize(ctx context.Context, callID, reason string, at time.Time) (CallSession, error) {
	l, err := r.sessionLock(callID)
	if err != nil {
		return CallSession{}, err
	}
	l.Lock()
	defer l.Unlock()

	r.mu.Lock()
	c := r.sessions[callID]
	r.mu.Unlock()

	if c.Status == StatusEnded {
		return CallSession{}, ErrAlreadyEnded
	}

	if c.Status == StatusOngoing && c.StartedAt != nil {
		c.DurationSeconds, c.BilledMinutes, c.TotalCharge = billingFor(*c.StartedAt, at, c.RatePerMinute)
	}

	if c.TotalCharge.IsPositive() {
		w, err := r.ledger.WalletByUser(ctx, c.CallerID)
		if err != nil {
			return CallSession{}, err
		}
		// The session lock held above makes debit + terminal write one
		// unit: no competing end can interleave between them.
		if _, err := r.ledger.DebitForCall(ctx, w.ID, c.TotalCharge, "CALL_"+c.ID, callChargeMetadata(c.ID)); err != nil {
			return CallSession{}, err
		}
	}

	endedAt := at
	c.Status = StatusEnded
	c.EndedAt = &endedAt
	c.EndReason = reason
	return *c, nil
}

func (r *MemoryRepository) ListByUser(ctx context.Context, userID string, role Role, limit, offset int) ([]CallSession, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Newest first; order holds ids in creation order.
	var matched []CallSession
	for i := len(r.order) - 1; i >= 0; i-- {
		c := r.sessions[r.order[i]]
		switch role {
		case RoleCaller:
			if c.CallerID != userID {
				continue
			}
		case RoleReceiver:
			if c.ReceiverID != userID {
				continue
			}
		default:
			if !c.Participant(userID) {
				continue
			}
		}
		matched = append(matched, *c)
	}

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	out := make([]CallSession, end-offset)
	copy(out, matched[offset:end])
	return out, total, nil
}

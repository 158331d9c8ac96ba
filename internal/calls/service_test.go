package calls

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voicebill/internal/audit"
	"voicebill/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type stubDirectory map[string]bool

func (d stubDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	return d[userID], nil
}

type fixture struct {
	svc    *Service
	store  *ledger.MemoryStore
	audit  *audit.MemoryRepo
	now    time.Time
	caller ledger.Wallet
}

func newFixture(t *testing.T, balance string) *fixture {
	t.Helper()

	store := ledger.NewMemoryStore()
	auditRepo := audit.NewMemoryRepo()
	dir := stubDirectory{"alice": true, "bob": true}

	f := &fixture{
		store: store,
		audit: auditRepo,
		now:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	repo := NewMemoryRepository(store)
	f.svc = NewService(repo, store, dir, audit.NewService(auditRepo), decimal.RequireFromString("50.00"))
	f.svc.clock = func() time.Time { return f.now }

	w, err := store.CreateWallet(context.Background(), "alice", "NGN")
	require.NoError(t, err)
	f.caller = w

	if balance != "0" {
		ref := "MON_seed"
		_, err = store.CreateDeposit(context.Background(), w.ID, decimal.RequireFromString(balance), ref)
		require.NoError(t, err)
		_, err = store.ConfirmDeposit(context.Background(), ref)
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func TestFullCallBillsAndDebitsOnce(t *testing.T) {
	f := newFixture(t, "100.00")
	ctx := context.Background()

	c, balance, err := f.svc.Initiate(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Equal(t, StatusInitiated, c.Status)
	require.True(t, balance.Equal(decimal.RequireFromString("100.00")))

	c, err = f.svc.Answer(ctx, "bob", c.ID)
	require.NoError(t, err)
	require.Equal(t, StatusOngoing, c.Status)
	require.NotNil(t, c.StartedAt)

	f.advance(61 * time.Second)
	ended, err := f.svc.End(ctx, "alice", c.ID, "caller hung up")
	require.NoError(t, err)
	require.Equal(t, StatusEnded, ended.Status)
	require.Equal(t, 61, ended.DurationSeconds)
	require.Equal(t, 2, ended.BilledMinutes)
	require.True(t, ended.TotalCharge.Equal(decimal.RequireFromString("100.00")))
	require.Equal(t, "caller hung up", ended.EndReason)

	got, err := f.store.Balance(ctx, f.caller.ID)
	require.NoError(t, err)
	require.True(t, got.IsZero(), "balance %s", got)

	items, total, err := f.store.TransactionsByWallet(ctx, f.caller.ID, ledger.TransactionTypeCallCharge, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "CALL_"+c.ID, items[0].Reference)
	require.Equal(t, ledger.TransactionStatusCompleted, items[0].Status)

	evs := f.audit.Events()
	require.Len(t, evs, 1)
	require.Equal(t, audit.EventTypeCallBilled, evs[0].Type)
	require.Equal(t, c.ID, evs[0].CallID)
}

func TestInitiate_RejectsInsufficientBalance(t *testing.T) {
	f := newFixture(t, "10.00")
	ctx := context.Background()

	_, _, err := f.svc.Initiate(ctx, "alice", "bob")
	var insufficient *InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	require.True(t, insufficient.Required.Equal(decimal.RequireFromString("50.00")))
	require.True(t, insufficient.Available.Equal(decimal.RequireFromString("10.00")))
}

func TestInitiate_RejectsSelfCallAndUnknownReceiver(t *testing.T) {
	f := newFixture(t, "100.00")
	ctx := context.Background()

	_, _, err := f.svc.Initiate(ctx, "alice", "alice")
	require.ErrorIs(t, err, ErrSelfCall)

	_, _, err = f.svc.Initiate(ctx, "alice", "nobody")
	require.ErrorIs(t, err, ErrReceiverNotFound)
}

func TestAnswer_OnlyReceiverWhilePreAnswer(t *testing.T) {
	f := newFixture(t, "100.00")
	ctx := context.Background()

	c, _, err := f.svc.Initiate(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = f.svc.Answer(ctx, "alice", c.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Answer(ctx, "bob", c.ID)
	require.NoError(t, err)

	_, err = f.svc.Answer(ctx, "bob", c.ID)
	require.ErrorIs(t, err, ErrAlreadyAnswered)
}

func TestEnd_BeforeAnswerBillsNothing(t *testing.T) {
	f := newFixture(t, "100.00")
	ctx := context.Background()

	c, _, err := f.svc.Initiate(ctx, "alice", "bob")
	require.NoError(t, err)

	f.advance(30 * time.Second)
	ended, err := f.svc.End(ctx, "bob", c.ID, "rejected")
	require.NoError(t, err)
	require.Equal(t, StatusEnded, ended.Status)
	require.Equal(t, 0, ended.BilledMinutes)
	require.True(t, ended.TotalCharge.IsZero())

	// No charge means no ledger entry and no audit event.
	_, total, err := f.store.TransactionsByWallet(ctx, f.caller.ID, ledger.TransactionTypeCallCharge, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 0, total)
	require.Empty(t, f.audit.Events())
}

func TestEnd_SecondAttemptFails(t *testing.T) {
	f := newFixture(t, "100.00")
	ctx := context.Background()

	c, _, err := f.svc.Initiate(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = f.svc.Answer(ctx, "bob", c.ID)
	require.NoError(t, err)

	f.advance(time.Minute)
	_, err = f.svc.End(ctx, "alice", c.ID, "done")
	require.NoError(t, err)

	_, err = f.svc.End(ctx, "bob", c.ID, "done again")
	require.ErrorIs(t, err, ErrAlreadyEnded)

	// The single charge stands.
	got, err := f.store.Balance(ctx, f.caller.ID)
	require.NoError(t, err)
	require.True(t, got.Equal(decimal.RequireFromString("50.00")), "balance %s", got)
}

func TestEnd_ConcurrentAttemptsBillOnce(t *testing.T) {
	f := newFixture(t, "1000.00")
	ctx := context.Background()

	c, _, err := f.svc.Initiate(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = f.svc.Answer(ctx, "bob", c.ID)
	require.NoError(t, err)
	f.advance(61 * time.Second)

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.End(ctx, "alice", c.ID, "race")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, alreadyEnded int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrAlreadyEnded):
			alreadyEnded++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, succeeded, "exactly one end may bill")
	require.Equal(t, workers-1, alreadyEnded)

	// Two minutes at 50.00, debited exactly once.
	got, err := f.store.Balance(ctx, f.caller.ID)
	require.NoError(t, err)
	require.True(t, got.Equal(decimal.RequireFromString("900.00")), "balance %s", got)

	_, total, err := f.store.TransactionsByWallet(ctx, f.caller.ID, ledger.TransactionTypeCallCharge, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
}

func TestEnd_NonParticipantForbidden(t *testing.T) {
	f := newFixture(t, "100.00")
	ctx := context.Background()

	c, _, err := f.svc.Initiate(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = f.svc.End(ctx, "mallory", c.ID, "nope")
	require.ErrorIs(t, err, ErrForbidden)
}

func TestHistory_PagesNewestFirst(t *testing.T) {
	f := newFixture(t, "10000.00")
	ctx := context.Background()

	var ids []string
	for i := 0; i < 25; i++ {
		c, _, err := f.svc.Initiate(ctx, "alice", "bob")
		require.NoError(t, err)
		ids = append(ids, c.ID)
		f.advance(time.Second)
	}

	items, total, err := f.svc.History(ctx, "alice", RoleAll, 2, 10)
	require.NoError(t, err)
	require.Equal(t, 25, total)
	require.Len(t, items, 10)
	// Page 2 of newest-first covers creations 15 down to 6 (0-indexed 14..5).
	require.Equal(t, ids[14], items[0].ID)
	require.Equal(t, ids[5], items[9].ID)

	// Role filters.
	_, total, err = f.svc.History(ctx, "bob", RoleCaller, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 0, total)

	_, total, err = f.svc.History(ctx, "bob", RoleReceiver, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 25, total)
}

func TestDetails_ParticipantsOnly(t *testing.T) {
	f := newFixture(t, "100.00")
	ctx := context.Background()

	c, _, err := f.svc.Initiate(ctx, "alice", "bob")
	require.NoError(t, err)

	got, err := f.svc.Details(ctx, "bob", c.ID)
	require.NoError(t, err)
	require.Equal(t, c.ID, got.ID)

	_, err = f.svc.Details(ctx, "mallory", c.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Details(ctx, "alice", "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

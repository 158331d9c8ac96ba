package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_DepositLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	w, err := s.CreateWallet(ctx, "user-1", "NGN")
	require.NoError(t, err)
	require.True(t, w.Balance.IsZero())

	dep, err := s.CreateDeposit(ctx, w.ID, decimal.RequireFromString("100.00"), "MON_abc")
	require.NoError(t, err)
	require.Equal(t, TransactionStatusPending, dep.Status)

	// Pending deposits do not move the balance.
	bal, err := s.Balance(ctx, w.ID)
	require.NoError(t, err)
	require.True(t, bal.IsZero())

	confirmed, err := s.ConfirmDeposit(ctx, "MON_abc")
	require.NoError(t, err)
	require.Equal(t, TransactionStatusCompleted, confirmed.Status)

	bal, err = s.Balance(ctx, w.ID)
	require.NoError(t, err)
	require.True(t, bal.Equal(decimal.RequireFromString("100.00")), "balance = %s", bal)
}

func TestMemoryStore_ConfirmDepositIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	w, err := s.CreateWallet(ctx, "user-1", "NGN")
	require.NoError(t, err)
	_, err = s.CreateDeposit(ctx, w.ID, decimal.NewFromInt(50), "MON_once")
	require.NoError(t, err)

	_, err = s.ConfirmDeposit(ctx, "MON_once")
	require.NoError(t, err)

	_, err = s.ConfirmDeposit(ctx, "MON_once")
	require.ErrorIs(t, err, ErrAlreadyProcessed)

	bal, err := s.Balance(ctx, w.ID)
	require.NoError(t, err)
	require.True(t, bal.Equal(decimal.NewFromInt(50)), "balance = %s", bal)
}

func TestMemoryStore_ConfirmDepositUnknownReference(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.ConfirmDeposit(context.Background(), "MON_missing")
	require.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestMemoryStore_ConcurrentConfirmCreditsOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	w, err := s.CreateWallet(ctx, "user-1", "NGN")
	require.NoError(t, err)
	_, err = s.CreateDeposit(ctx, w.ID, decimal.NewFromInt(25), "MON_race")
	require.NoError(t, err)

	const workers = 16
	var wg sync.WaitGroup
	successes := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ConfirmDeposit(ctx, "MON_race"); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	var n int
	for range successes {
		n++
	}
	require.Equal(t, 1, n, "exactly one confirm may succeed")

	bal, err := s.Balance(ctx, w.ID)
	require.NoError(t, err)
	require.True(t, bal.Equal(decimal.NewFromInt(25)))
}

func TestMemoryStore_DebitForCallAllowsOverdraw(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.clock = func() time.Time { return time.Unix(1700000000, 0).UTC() }

	w, err := s.CreateWallet(ctx, "user-1", "NGN")
	require.NoError(t, err)

	txn, err := s.DebitForCall(ctx, w.ID, decimal.NewFromInt(50), "CALL_x", `{"call_id":"x"}`)
	require.NoError(t, err)
	require.Equal(t, TransactionTypeCallCharge, txn.Type)
	require.Equal(t, TransactionStatusCompleted, txn.Status)

	bal, err := s.Balance(ctx, w.ID)
	require.NoError(t, err)
	require.True(t, bal.Equal(decimal.NewFromInt(-50)), "balance = %s", bal)

	// A second debit for the same call reference must be rejected.
	_, err = s.DebitForCall(ctx, w.ID, decimal.NewFromInt(50), "CALL_x", "")
	require.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestMemoryStore_TransactionsByWalletPaginatesNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	base := time.Unix(1700000000, 0).UTC()
	i := 0
	s.clock = func() time.Time {
		i++
		return base.Add(time.Duration(i) * time.Second)
	}

	w, err := s.CreateWallet(ctx, "user-1", "NGN")
	require.NoError(t, err)

	refs := []string{"MON_1", "MON_2", "MON_3"}
	for _, ref := range refs {
		_, err := s.CreateDeposit(ctx, w.ID, decimal.NewFromInt(10), ref)
		require.NoError(t, err)
	}
	_, err = s.DebitForCall(ctx, w.ID, decimal.NewFromInt(5), "CALL_1", "")
	require.NoError(t, err)

	page, total, err := s.TransactionsByWallet(ctx, w.ID, "", 2, 0)
	require.NoError(t, err)
	require.Equal(t, 4, total)
	require.Len(t, page, 2)
	require.Equal(t, "CALL_1", page[0].Reference)
	require.Equal(t, "MON_3", page[1].Reference)

	deposits, total, err := s.TransactionsByWallet(ctx, w.ID, TransactionTypeDeposit, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, deposits, 3)
}

package users

import (
	"context"
	"errors"
	"testing"

	"voicebill/internal/ledger"

	"github.com/stretchr/testify/require"
)

func TestService_RegisterCreatesWallet(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	svc := NewService(NewMemoryRepository(), store, "NGN")

	u, err := svc.Register(ctx, "a@b.com", "password123", "Ada B")
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)
	require.NotEqual(t, "password123", u.PasswordHash)

	w, err := store.WalletByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "NGN", w.Currency)
	require.True(t, w.Balance.IsZero())
}

type failingWalletStore struct {
	*ledger.MemoryStore
}

func (s failingWalletStore) CreateWallet(ctx context.Context, ownerUserID, currency string) (ledger.Wallet, error) {
	return ledger.Wallet{}, errors.New("wallet store down")
}

func TestService_RegisterUndoesUserOnWalletFailure(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	broken := NewService(repo, failingWalletStore{ledger.NewMemoryStore()}, "NGN")

	_, err := broken.Register(ctx, "a@b.com", "password123", "Ada B")
	require.Error(t, err)

	// The half-registered user must not linger.
	_, err = repo.ByEmail(ctx, "a@b.com")
	require.ErrorIs(t, err, ErrNotFound)

	// Same email registers cleanly once the wallet store recovers.
	working := NewService(repo, ledger.NewMemoryStore(), "NGN")
	u, err := working.Register(ctx, "a@b.com", "password123", "Ada B")
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)
}

func TestService_RegisterRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository(), ledger.NewMemoryStore(), "NGN")

	_, err := svc.Register(ctx, "a@b.com", "password123", "Ada B")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "a@b.com", "password456", "Ada C")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository(), ledger.NewMemoryStore(), "NGN")

	reg, err := svc.Register(ctx, "a@b.com", "password123", "Ada B")
	require.NoError(t, err)

	u, err := svc.Login(ctx, "a@b.com", "password123")
	require.NoError(t, err)
	require.Equal(t, reg.ID, u.ID)

	_, err = svc.Login(ctx, "a@b.com", "wrong-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@b.com", "password123")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

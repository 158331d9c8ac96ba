package users

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"voicebill/internal/ledger"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("users: invalid credentials")

// Service handles registration and credential checks. Registration also
// provisions the user's wallet: one wallet per user, created here and
// never deleted.
type Service struct {
	repo     Repository
	wallets  ledger.Store
	currency string
	clock    func() time.Time
}

func NewService(repo Repository, wallets ledger.Store, currency string) *Service {
	return &Service{repo: repo, wallets: wallets, currency: currency, clock: time.Now}
}

func (s *Service) Register(ctx context.Context, email, password, fullName string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     fullName,
		CreatedAt:    s.clock().UTC(),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return User{}, err
	}

	// Undo the user insert if wallet provisioning fails; a user without a
	// wallet cannot fund or call, so registration must be retryable.
	if _, err := s.wallets.CreateWallet(ctx, u.ID, s.currency); err != nil {
		if delErr := s.repo.Delete(ctx, u.ID); delErr != nil {
			slog.Error("orphaned user after wallet creation failure", "user_id", u.ID, "err", delErr)
		}
		return User{}, err
	}
	return u, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (User, error) {
	u, err := s.repo.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) ByID(ctx context.Context, id string) (User, error) {
	return s.repo.ByID(ctx, id)
}

// Exists satisfies the call engine's receiver lookup.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	return s.repo.Exists(ctx, id)
}

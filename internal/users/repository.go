package users

import (
	"context"
	"errors"
)

var (
	ErrNotFound   = errors.New("users: not found")
	ErrEmailTaken = errors.New("users: email already registered")
)

type Repository interface {
	Create(ctx context.Context, u User) error
	ByEmail(ctx context.Context, email string) (User, error)
	ByID(ctx context.Context, id string) (User, error)
	Exists(ctx context.Context, id string) (bool, error)

	// Delete removes a user. Only registration uses it, to undo the user
	// insert when wallet provisioning fails.
	Delete(ctx context.Context, id string) error
}

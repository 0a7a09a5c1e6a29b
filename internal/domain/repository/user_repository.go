package repository

import (
	"context"
	"errors"
	"time"

	"github.com/lucasbm92/go-auth-service/internal/domain/entity"
)

var (
	ErrNotFound          = errors.New("user not found")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrTokenNotFound     = errors.New("reset token not found")
	ErrTokenExpired      = errors.New("reset token expired")
	ErrUnavailable       = errors.New("store unavailable")
)

// UserRepository is the credential store contract. Implementations must
// guarantee username and email uniqueness and make every mutation durable
// before returning.
type UserRepository interface {
	// Create persists a new user and fills ID and CreatedAt. Returns
	// ErrDuplicateUsername or ErrDuplicateEmail on uniqueness conflicts.
	Create(ctx context.Context, u *entity.User) error

	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetByResetToken(ctx context.Context, token string) (*entity.User, error)

	// UpdatePassword replaces the stored hash. Reset-token fields are left
	// untouched; callers decide whether to clear them.
	UpdatePassword(ctx context.Context, id string, hash string) error

	// SetResetToken stores token and expiry in one update, replacing any
	// previously outstanding token for the user.
	SetResetToken(ctx context.Context, id string, token string, expiry time.Time) error

	ClearResetToken(ctx context.Context, id string) error

	// RedeemResetToken replaces the password hash and clears both token
	// fields in a single atomic update, provided the token is still live at
	// the given instant. Returns ErrTokenNotFound for an unknown token and
	// ErrTokenExpired for a known but stale one.
	RedeemResetToken(ctx context.Context, token string, hash string, now time.Time) (*entity.User, error)

	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

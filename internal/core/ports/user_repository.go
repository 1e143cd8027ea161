package ports

import (
	"context"

	"github.com/videotube/account-service/internal/core/domain"
)

// UserRepository is the credential store.
type UserRepository interface {
	// FindByIdentifier returns the user whose username equals username or
	// whose email equals email. Both are expected to be normalized.
	FindByIdentifier(ctx context.Context, username, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// Create inserts a new user and returns it with its assigned ID.
	// Returns domain.ErrUserExists on a uniqueness violation.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	// SwapRefreshToken atomically replaces the stored refresh token with next
	// only when the current value equals expected ("" matches an absent token).
	// Returns domain.ErrRefreshTokenConflict when the current value differs and
	// domain.ErrUserNotFound when no such user exists.
	SwapRefreshToken(ctx context.Context, id, expected, next string) error
	// ClearRefreshToken removes the stored refresh token without validation.
	ClearRefreshToken(ctx context.Context, id string) error
}

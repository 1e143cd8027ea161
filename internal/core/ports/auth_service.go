package ports

import (
	"context"
	"io"

	"github.com/videotube/account-service/internal/core/domain"
)

// Upload is an untrusted file received with a registration request.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// RegisterInput carries the registration form.
type RegisterInput struct {
	FullName   string
	Email      string
	Username   string
	Password   string
	Avatar     *Upload
	CoverImage *Upload
}

// LoginInput carries a credential pair. Identifier is a username or email.
type LoginInput struct {
	Identifier string
	Password   string
}

// LoginResult is returned when a session is established or refreshed.
type LoginResult struct {
	User   *domain.PublicUser
	Tokens domain.TokenPair
}

// SessionService orchestrates registration and the session lifecycle.
type SessionService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.PublicUser, error)
	Login(ctx context.Context, in LoginInput) (*LoginResult, error)
	Logout(ctx context.Context, userID string) error
	Refresh(ctx context.Context, refreshToken string) (*LoginResult, error)
}

// TokenIssuer mints token pairs and persists the refresh token.
type TokenIssuer interface {
	Issue(ctx context.Context, userID string) (domain.TokenPair, error)
	Rotate(ctx context.Context, userID, presented string) (domain.TokenPair, error)
	TokenVerifier
}

// TokenVerifier checks signatures and token types.
type TokenVerifier interface {
	ParseAccessToken(token string) (*domain.TokenClaims, error)
	ParseRefreshToken(token string) (*domain.TokenClaims, error)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/videotube/account-service/internal/api/metrics"
	"github.com/videotube/account-service/internal/core/domain"
	"github.com/videotube/account-service/internal/core/ports"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 10 * 24 * time.Hour

	// swapAttempts bounds the reload-and-swap loop when concurrent logins for
	// the same user keep replacing the refresh token underneath us.
	swapAttempts = 3
)

// TokenConfig holds the signing secrets and lifetimes. It is built once from
// process configuration and handed to NewTokenIssuer.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type sessionClaims struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Type     string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenIssuer mints access/refresh token pairs with HS256 and stores the
// refresh token on the user record.
type TokenIssuer struct {
	repo          ports.UserRepository
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
	log           zerolog.Logger
}

func NewTokenIssuer(repo ports.UserRepository, cfg TokenConfig, log zerolog.Logger) *TokenIssuer {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	return &TokenIssuer{
		repo:          repo,
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
		log:           log,
	}
}

// Issue mints a new pair for userID and overwrites whatever refresh token the
// user currently holds. Every failure is reported as domain.ErrTokenIssuance.
func (t *TokenIssuer) Issue(ctx context.Context, userID string) (domain.TokenPair, error) {
	var lastErr error
	for attempt := 1; attempt <= swapAttempts; attempt++ {
		user, err := t.repo.FindByID(ctx, userID)
		if err != nil {
			return domain.TokenPair{}, t.fail(userID, fmt.Errorf("load user: %w", err))
		}

		pair, err := t.mint(user)
		if err != nil {
			return domain.TokenPair{}, t.fail(userID, err)
		}

		err = t.repo.SwapRefreshToken(ctx, user.ID, user.RefreshToken, pair.RefreshToken)
		if err == nil {
			return pair, nil
		}
		if !errors.Is(err, domain.ErrRefreshTokenConflict) {
			return domain.TokenPair{}, t.fail(userID, fmt.Errorf("store refresh token: %w", err))
		}
		t.log.Debug().Str("user_id", userID).Int("attempt", attempt).Msg("refresh token changed concurrently, retrying")
		lastErr = err
	}
	return domain.TokenPair{}, t.fail(userID, fmt.Errorf("store refresh token: %w", lastErr))
}

// Rotate replaces presented with a fresh pair. It fails with
// domain.ErrRefreshTokenReused when presented is no longer the stored token.
func (t *TokenIssuer) Rotate(ctx context.Context, userID, presented string) (domain.TokenPair, error) {
	user, err := t.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.TokenPair{}, domain.ErrInvalidRefreshToken
		}
		return domain.TokenPair{}, t.fail(userID, fmt.Errorf("load user: %w", err))
	}

	pair, err := t.mint(user)
	if err != nil {
		return domain.TokenPair{}, t.fail(userID, err)
	}

	switch err := t.repo.SwapRefreshToken(ctx, user.ID, presented, pair.RefreshToken); {
	case err == nil:
		return pair, nil
	case errors.Is(err, domain.ErrRefreshTokenConflict):
		return domain.TokenPair{}, domain.ErrRefreshTokenReused
	default:
		return domain.TokenPair{}, t.fail(userID, fmt.Errorf("store refresh token: %w", err))
	}
}

func (t *TokenIssuer) ParseAccessToken(token string) (*domain.TokenClaims, error) {
	return parseToken(token, t.accessSecret, domain.TokenTypeAccess)
}

func (t *TokenIssuer) ParseRefreshToken(token string) (*domain.TokenClaims, error) {
	return parseToken(token, t.refreshSecret, domain.TokenTypeRefresh)
}

func (t *TokenIssuer) mint(user *domain.User) (domain.TokenPair, error) {
	now := t.now()
	accessExp := now.Add(t.accessTTL)
	refreshExp := now.Add(t.refreshTTL)

	access, err := sign(t.accessSecret, sessionClaims{
		Username: user.Username,
		Email:    user.Email,
		Type:     domain.TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExp),
		},
	})
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := sign(t.refreshSecret, sessionClaims{
		Type: domain.TokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExp),
		},
	})
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return domain.TokenPair{
		AccessToken:           access,
		AccessTokenExpiresAt:  accessExp,
		RefreshToken:          refresh,
		RefreshTokenExpiresAt: refreshExp,
	}, nil
}

func (t *TokenIssuer) fail(userID string, cause error) error {
	t.log.Error().Err(cause).Str("user_id", userID).Msg("token issuance failed")
	metrics.TokenIssuanceFailuresTotal.Inc()
	return domain.InternalError(domain.ErrTokenIssuance.Message, cause)
}

func sign(secret []byte, claims sessionClaims) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("empty signing secret")
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseToken(token string, secret []byte, wantType string) (*domain.TokenClaims, error) {
	claims := &sessionClaims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !tkn.Valid {
		return nil, fmt.Errorf("parse %s token: %w", wantType, err)
	}
	if claims.Type != wantType || claims.Subject == "" {
		return nil, fmt.Errorf("parse %s token: unexpected token type %q", wantType, claims.Type)
	}

	out := &domain.TokenClaims{
		UserID:   claims.Subject,
		Username: claims.Username,
		Email:    claims.Email,
		Type:     claims.Type,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

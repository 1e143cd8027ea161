package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/videotube/account-service/internal/core/domain"
	"github.com/videotube/account-service/internal/core/ports"
)

const (
	avatarPrefix = "avatars"
	coverPrefix  = "covers"

	// bcrypt only reads the first 72 bytes of a password.
	maxPasswordBytes = 72
)

// SessionService implements registration, login, logout and refresh on top of
// the credential store and the token issuer.
type SessionService struct {
	repo     ports.UserRepository
	issuer   ports.TokenIssuer
	hasher   ports.PasswordHasher
	uploader ports.MediaUploader
	reclaim  ports.MediaReclaimer
	lock     ports.RegistrationLock
	log      zerolog.Logger
}

// SessionDeps groups the collaborators of SessionService. Reclaimer and Lock
// are optional.
type SessionDeps struct {
	Users     ports.UserRepository
	Issuer    ports.TokenIssuer
	Hasher    ports.PasswordHasher
	Uploader  ports.MediaUploader
	Reclaimer ports.MediaReclaimer
	Lock      ports.RegistrationLock
}

func NewSessionService(deps SessionDeps, log zerolog.Logger) *SessionService {
	return &SessionService{
		repo:     deps.Users,
		issuer:   deps.Issuer,
		hasher:   deps.Hasher,
		uploader: deps.Uploader,
		reclaim:  deps.Reclaimer,
		lock:     deps.Lock,
		log:      log,
	}
}

// Register creates a new user. Steps run strictly in order: validate, check
// uniqueness, upload media, persist, re-read.
func (s *SessionService) Register(ctx context.Context, in ports.RegisterInput) (*domain.PublicUser, error) {
	// 1. Validate.
	fullName := strings.TrimSpace(in.FullName)
	username := domain.NormalizeIdentifier(in.Username)
	email := domain.NormalizeIdentifier(in.Email)
	if fullName == "" || username == "" || email == "" || strings.TrimSpace(in.Password) == "" {
		return nil, domain.ErrFieldsRequired
	}
	if len(in.Password) > maxPasswordBytes {
		return nil, domain.ErrPasswordTooLong
	}
	if in.Avatar == nil || in.Avatar.Open == nil {
		return nil, domain.ErrAvatarRequired
	}

	// 2. Uniqueness, serialized per identity when a lock is configured.
	if s.lock != nil {
		release, err := s.lock.Acquire(ctx, "username:"+username, "email:"+email)
		switch {
		case errors.Is(err, domain.ErrRegistrationPending):
			return nil, domain.ErrUserExists
		case err != nil:
			s.log.Warn().Err(err).Str("username", username).Msg("registration lock unavailable, relying on unique indexes")
		default:
			defer release()
		}
	}

	existing, err := s.repo.FindByIdentifier(ctx, username, email)
	switch {
	case err == nil && existing != nil:
		return nil, domain.ErrUserExists
	case err != nil && !errors.Is(err, domain.ErrUserNotFound):
		return nil, domain.InternalError(domain.ErrRegistrationFailed.Message, fmt.Errorf("check uniqueness: %w", err))
	}

	// 3. Media. The avatar is mandatory; the cover image is best-effort.
	avatar, err := s.upload(ctx, avatarPrefix, in.Avatar)
	if err != nil {
		s.log.Warn().Err(err).Str("username", username).Msg("avatar upload failed")
		return nil, domain.ErrAvatarRequired
	}
	uploaded := []string{avatar.Key}

	var cover domain.Media
	if in.CoverImage != nil && in.CoverImage.Open != nil {
		if cover, err = s.upload(ctx, coverPrefix, in.CoverImage); err != nil {
			s.log.Warn().Err(err).Str("username", username).Msg("cover image upload failed, storing empty")
			cover = domain.Media{}
		} else {
			uploaded = append(uploaded, cover.Key)
		}
	}

	// 4. Persist.
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.reclaimMedia(uploaded)
		return nil, domain.InternalError(domain.ErrRegistrationFailed.Message, fmt.Errorf("hash password: %w", err))
	}

	now := time.Now().UTC()
	created, err := s.repo.Create(ctx, &domain.User{
		FullName:      fullName,
		Username:      username,
		Email:         email,
		PasswordHash:  hash,
		AvatarURL:     avatar.URL,
		CoverImageURL: cover.URL,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		s.reclaimMedia(uploaded)
		if errors.Is(err, domain.ErrUserExists) {
			return nil, domain.ErrUserExists
		}
		return nil, domain.InternalError(domain.ErrRegistrationFailed.Message, fmt.Errorf("create user: %w", err))
	}

	// 5. Confirm the record exists and build the public projection.
	stored, err := s.repo.FindByID(ctx, created.ID)
	if err != nil {
		return nil, domain.InternalError(domain.ErrRegistrationFailed.Message, fmt.Errorf("re-read user %s: %w", created.ID, err))
	}

	s.log.Info().Str("user_id", stored.ID).Str("username", stored.Username).Msg("user registered")
	return stored.Public(), nil
}

// Login authenticates a credential pair and establishes a session.
func (s *SessionService) Login(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
	identifier := domain.NormalizeIdentifier(in.Identifier)
	if identifier == "" {
		return nil, domain.ErrIdentifierRequired
	}
	if in.Password == "" {
		return nil, domain.ErrPasswordRequired
	}

	user, err := s.repo.FindByIdentifier(ctx, identifier, identifier)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, domain.InternalError("login failed", fmt.Errorf("find user: %w", err))
	}

	if !s.hasher.Compare(user.PasswordHash, in.Password) {
		return nil, domain.ErrInvalidCredentials
	}

	pair, err := s.issuer.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	result, err := s.project(ctx, user.ID, pair)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", user.ID).Msg("user logged in")
	return result, nil
}

// Logout drops the stored refresh token of userID.
func (s *SessionService) Logout(ctx context.Context, userID string) error {
	if err := s.repo.ClearRefreshToken(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrUserNotFound
		}
		return domain.InternalError("logout failed", fmt.Errorf("clear refresh token: %w", err))
	}
	s.log.Info().Str("user_id", userID).Msg("user logged out")
	return nil
}

// Refresh exchanges a valid, current refresh token for a new pair.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*ports.LoginResult, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, domain.ErrRefreshRequired
	}

	claims, err := s.issuer.ParseRefreshToken(refreshToken)
	if err != nil {
		s.log.Debug().Err(err).Msg("refresh token rejected")
		return nil, domain.ErrInvalidRefreshToken
	}

	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidRefreshToken
		}
		return nil, domain.InternalError("refresh failed", fmt.Errorf("find user: %w", err))
	}
	if user.RefreshToken != refreshToken {
		return nil, domain.ErrRefreshTokenReused
	}

	pair, err := s.issuer.Rotate(ctx, user.ID, refreshToken)
	if err != nil {
		return nil, err
	}
	return s.project(ctx, user.ID, pair)
}

func (s *SessionService) project(ctx context.Context, userID string, pair domain.TokenPair) (*ports.LoginResult, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, domain.InternalError("session established but user could not be loaded", err)
	}
	return &ports.LoginResult{User: user.Public(), Tokens: pair}, nil
}

func (s *SessionService) upload(ctx context.Context, prefix string, up *ports.Upload) (domain.Media, error) {
	body, err := up.Open()
	if err != nil {
		return domain.Media{}, fmt.Errorf("open %s: %w", up.Filename, err)
	}
	defer body.Close()

	media, err := s.uploader.Upload(ctx, prefix, up.Filename, up.ContentType, body)
	if err != nil {
		return domain.Media{}, err
	}
	if media.URL == "" {
		return domain.Media{}, fmt.Errorf("upload %s: empty url", up.Filename)
	}
	return media, nil
}

func (s *SessionService) reclaimMedia(keys []string) {
	if s.reclaim == nil || len(keys) == 0 {
		return
	}
	s.reclaim.Reclaim(keys...)
}

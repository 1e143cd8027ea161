package domain

import (
	"strings"
	"time"
)

// User is the identity and session record kept in the credential store.
type User struct {
	ID            string    `json:"id"`
	FullName      string    `json:"fullName"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	AvatarURL     string    `json:"avatar"`
	CoverImageURL string    `json:"coverImage"`
	RefreshToken  string    `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// PublicUser is the projection of a User that is safe to return to clients.
// It carries neither the password hash nor the refresh token.
type PublicUser struct {
	ID            string    `json:"id"`
	FullName      string    `json:"fullName"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	AvatarURL     string    `json:"avatar"`
	CoverImageURL string    `json:"coverImage"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Public returns the public projection of u.
func (u *User) Public() *PublicUser {
	if u == nil {
		return nil
	}
	return &PublicUser{
		ID:            u.ID,
		FullName:      u.FullName,
		Username:      u.Username,
		Email:         u.Email,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// NormalizeIdentifier lower-cases and trims a username or email so lookups
// and uniqueness are case-insensitive.
func NormalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

package domain

import "time"

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenPair is the result of establishing a session. Neither expiry is
// persisted; only RefreshToken is stored on the user record.
type TokenPair struct {
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
}

// TokenClaims is the verified content of an access or refresh token.
// Username and Email are only present on access tokens.
type TokenClaims struct {
	UserID    string
	Username  string
	Email     string
	Type      string
	ExpiresAt time.Time
}

// Media is an object stored by the media uploader.
type Media struct {
	Key string
	URL string
}

package ports

import (
	"context"
	"io"

	"github.com/videotube/account-service/internal/core/domain"
)

// PasswordHasher derives and verifies password hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

// MediaUploader stores image files in remote storage.
type MediaUploader interface {
	Upload(ctx context.Context, prefix, filename, contentType string, body io.Reader) (domain.Media, error)
	Delete(ctx context.Context, key string) error
}

// MediaReclaimer schedules deletion of uploaded objects that no user references.
type MediaReclaimer interface {
	Reclaim(keys ...string)
}

// RegistrationLock serializes concurrent registrations for the same identity.
// The returned release func must be called once the registration finishes.
type RegistrationLock interface {
	Acquire(ctx context.Context, keys ...string) (release func(), err error)
}

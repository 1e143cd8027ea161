package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/videotube/account-service/internal/core/domain"
)

const defaultLockTTL = 30 * time.Second

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by another request is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RegistrationLock holds short-lived SET NX keys per username and email while
// a registration is between its uniqueness check and its insert.
// Key format: register:lock:<kind>:<value>
type RegistrationLock struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewRegistrationLock creates a RegistrationLock. ttl <= 0 uses defaultLockTTL.
func NewRegistrationLock(client *redis.Client, ttl time.Duration, log zerolog.Logger) *RegistrationLock {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RegistrationLock{client: client, ttl: ttl, log: log}
}

// Acquire takes every key or none. It returns domain.ErrRegistrationPending
// when another registration holds one of them.
func (l *RegistrationLock) Acquire(ctx context.Context, keys ...string) (func(), error) {
	token := uuid.NewString()
	held := make([]string, 0, len(keys))

	release := func() {
		// Release must not depend on the request context, which may already be done.
		rctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		defer cancel()
		for _, k := range held {
			if err := releaseScript.Run(rctx, l.client, []string{k}, token).Err(); err != nil {
				l.log.Warn().Err(err).Str("key", k).Msg("failed to release registration lock")
			}
		}
	}

	for _, k := range keys {
		key := l.key(k)
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			release()
			return nil, fmt.Errorf("registration lock: %w", err)
		}
		if !ok {
			release()
			return nil, domain.ErrRegistrationPending
		}
		held = append(held, key)
	}

	return release, nil
}

func (l *RegistrationLock) key(k string) string {
	return "register:lock:" + k
}

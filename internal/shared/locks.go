package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ImportLockKey builds redis keys for the per-property import critical section.
// The day-index merge is not safe under concurrent writers, so at most one
// import job may run per property at a time.
func ImportLockKey(propertyID int64) string {
	return fmt.Sprintf("pos:import:property:%d:lock", propertyID)
}

// ImportLock serializes import runs per property via redis.
type ImportLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewImportLock constructs the lock helper.
func NewImportLock(client *redis.Client, ttl time.Duration) *ImportLock {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &ImportLock{client: client, ttl: ttl}
}

// Acquire takes the property lock and returns a release token.
// It fails fast with ErrImportRunning rather than queueing.
func (l *ImportLock) Acquire(ctx context.Context, propertyID int64) (string, error) {
	if l == nil || l.client == nil {
		return "", errors.New("import lock not initialised")
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, ImportLockKey(propertyID), token, l.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("shared: acquire import lock: %w", err)
	}
	if !ok {
		return "", ErrImportRunning
	}
	return token, nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Release frees the lock if the token still owns it.
func (l *ImportLock) Release(ctx context.Context, propertyID int64, token string) error {
	if l == nil || l.client == nil {
		return errors.New("import lock not initialised")
	}
	n, err := releaseScript.Run(ctx, l.client, []string{ImportLockKey(propertyID)}, token).Int()
	if err != nil {
		return fmt.Errorf("shared: release import lock: %w", err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

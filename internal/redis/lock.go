package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotHeld is returned when a release finds the lock expired or taken over.
var ErrLockNotHeld = errors.New("trip lock not held")

// releaseScript deletes the lock only while it still carries the caller's token.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client   *redis.Client
	newToken func() string
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client, newToken: uuid.NewString}
}

func tripLockKey(tripID string) string {
	return fmt.Sprintf("lock:trip:%s", tripID)
}

// AcquireTripLock attempts to acquire a lock for the given trip.
// On success it returns the token that must be presented to release it.
func (s *LockStore) AcquireTripLock(ctx context.Context, tripID string, ttl time.Duration) (string, bool, error) {
	token := s.newToken()
	ok, err := s.client.SetNX(ctx, tripLockKey(tripID), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// ReleaseTripLock releases the lock if token still owns it. A lock that expired and
// was re-acquired by another request is left alone and ErrLockNotHeld is returned.
func (s *LockStore) ReleaseTripLock(ctx context.Context, tripID, token string) error {
	deleted, err := s.client.Eval(ctx, releaseScript, []string{tripLockKey(tripID)}, token).Int()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrLockNotHeld
	}
	return nil
}

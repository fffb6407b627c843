package concurrency

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

var acquireScript = redis.NewScript(`
local key = KEYS[1]
local holder = ARGV[1]
local ttl = tonumber(ARGV[2])
local current = redis.call('GET', key)
if not current then
  redis.call('SET', key, holder, 'PX', ttl)
  return 1
end
if current == holder then
  redis.call('PEXPIRE', key, ttl)
  return 1
end
return 0
`)

var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// OwnerLock makes sure only one replica dials a given owner's customers at a
// time. The lock expires after ttl if the holder dies without releasing it.
type OwnerLock struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewOwnerLock constructs the lock.
func NewOwnerLock(client *redis.Client, prefix string, ttl time.Duration) *OwnerLock {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	if prefix == "" {
		prefix = "dialer"
	}
	return &OwnerLock{client: client, prefix: prefix, ttl: ttl}
}

// Acquire takes the lock for ownerID on behalf of holder. Re-acquiring with
// the same holder extends the lease.
func (l *OwnerLock) Acquire(ctx context.Context, ownerID int64, holder string) (bool, error) {
	res, err := acquireScript.Run(ctx, l.client, []string{l.key(ownerID)}, holder, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("owner lock acquire: %w", err)
	}
	return res == 1, nil
}

// Release frees the lock if holder still owns it.
func (l *OwnerLock) Release(ctx context.Context, ownerID int64, holder string) error {
	if _, err := releaseScript.Run(ctx, l.client, []string{l.key(ownerID)}, holder).Int(); err != nil {
		return fmt.Errorf("owner lock release: %w", err)
	}
	return nil
}

func (l *OwnerLock) key(ownerID int64) string {
	return fmt.Sprintf("%s:owner:%d:run-lock", l.prefix, ownerID)
}

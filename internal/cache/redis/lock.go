package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/tontine/internal/domain"
)

// releaseLua deletes the lock only while it still holds the caller's token.
const releaseLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

const releaseTimeout = 5 * time.Second

// LockManager implements domain.LockManager with SET NX and a token-checked
// release. Monitor replicas use it so only one of them refreshes a given
// user's dashboard at a time.
type LockManager struct {
	rdb     *redis.Client
	keys    Keyspace
	release *redis.Script
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		rdb:     c.rdb,
		keys:    c.keys,
		release: redis.NewScript(releaseLua),
	}
}

// Acquire takes the lock for key for at most ttl. It returns
// domain.ErrLockHeld when another holder has it. The returned release
// function is idempotent and still works after ctx is cancelled.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	lk := lm.keys.Lock(key)

	ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
			defer cancel()
			_ = lm.release.Run(rctx, lm.rdb, []string{lk}, token).Err()
		})
	}
	return release, nil
}

var _ domain.LockManager = (*LockManager)(nil)

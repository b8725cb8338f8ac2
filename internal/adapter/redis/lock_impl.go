package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/moicben/calendar-agent/internal/repository"
)

const lockPrefix = "lock:"

// releaseScript deletes the key only if it still holds our token, so an
// expired lock taken over by someone else is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockRepoImpl implements repository.LockRepository with SET NX PX.
type LockRepoImpl struct {
	client *redis.Client
}

// NewLockRepo creates a new instance of LockRepoImpl.
func NewLockRepo(client *redis.Client) *LockRepoImpl {
	return &LockRepoImpl{client: client}
}

// Acquire takes name for ttl or returns repository.ErrLockHeld.
func (r *LockRepoImpl) Acquire(ctx context.Context, name string, ttl time.Duration) (repository.ReleaseFunc, error) {
	key := lockPrefix + name
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", name, err)
	}
	if !ok {
		return nil, repository.ErrLockHeld
	}

	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, r.client, []string{key}, token).Err()
	}, nil
}

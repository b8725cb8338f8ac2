package memory

import (
	"context"
	"sync"
	"time"

	"github.com/moicben/calendar-agent/internal/repository"
)

// LockRepoImpl is a process-local named lock. The ttl is honoured so a
// forgotten release does not block forever.
type LockRepoImpl struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

// NewLockRepo creates an empty lock table.
func NewLockRepo() *LockRepoImpl {
	return &LockRepoImpl{held: make(map[string]time.Time), clock: time.Now}
}

// Acquire takes name for ttl or returns repository.ErrLockHeld.
func (r *LockRepoImpl) Acquire(_ context.Context, name string, ttl time.Duration) (repository.ReleaseFunc, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	if until, ok := r.held[name]; ok && now.Before(until) {
		return nil, repository.ErrLockHeld
	}
	until := now.Add(ttl)
	r.held[name] = until

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.held[name].Equal(until) {
				delete(r.held, name)
			}
		})
		return nil
	}, nil
}

package repository

import (
	"context"
	"errors"
	"time"
)

// ErrLockHeld is returned when another holder owns the lock.
var ErrLockHeld = errors.New("lock is held by another process")

// ReleaseFunc gives a lock back.
type ReleaseFunc func(ctx context.Context) error

// LockRepository provides named mutual exclusion, used to keep a single
// writer on the historic and new files.
type LockRepository interface {
	// Acquire takes the named lock for at most ttl. It returns ErrLockHeld
	// without blocking when the lock is taken.
	Acquire(ctx context.Context, name string, ttl time.Duration) (ReleaseFunc, error)
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/moicben/calendar-agent/internal/entity"
	"github.com/moicben/calendar-agent/pkg/metrics"
)

var (
	// ErrRunNotFound is returned by Get for an unknown run id.
	ErrRunNotFound = errors.New("run not found")
	// ErrRegistryClosed is returned by Submit after Shutdown.
	ErrRegistryClosed = errors.New("run registry is shut down")
)

// RunFunc is the work executed by a run. Its return value becomes the run's
// result, its error the run's failure reason.
type RunFunc func(ctx context.Context) (any, error)

// RunRegistry tracks asynchronous runs. Each run is executed by its own
// goroutine, which is the only writer of that run's record; readers get
// snapshots.
type RunRegistry struct {
	mu     sync.RWMutex
	runs   map[string]*entity.Run
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now     func() time.Time
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewRunRegistry creates an empty registry.
func NewRunRegistry(m *metrics.Metrics, logger *zap.Logger) *RunRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RunRegistry{
		runs:    make(map[string]*entity.Run),
		ctx:     ctx,
		cancel:  cancel,
		now:     time.Now,
		metrics: m,
		logger:  logger,
	}
}

// Submit registers a queued run, starts work in the background and returns
// the run id without waiting.
func (r *RunRegistry) Submit(work RunFunc) (string, error) {
	id := uuid.NewString()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", ErrRegistryClosed
	}
	r.runs[id] = &entity.Run{ID: id, Status: entity.RunQueued, CreatedAt: r.now()}
	r.wg.Add(1)
	r.mu.Unlock()

	r.metrics.RunTransition(string(entity.RunQueued), 1)
	r.logger.Info("run queued", zap.String("run_id", id))

	go r.execute(id, work)
	return id, nil
}

// Get returns a snapshot of the run.
func (r *RunRegistry) Get(id string) (entity.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return entity.Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return *run, nil
}

// Shutdown stops accepting runs, cancels running work and waits for the
// workers to record their final status, or for ctx to expire.
func (r *RunRegistry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *RunRegistry) execute(id string, work RunFunc) {
	defer r.wg.Done()

	r.update(id, func(run *entity.Run) {
		t := r.now()
		run.Status = entity.RunRunning
		run.StartedAt = &t
	})
	r.metrics.RunTransition(string(entity.RunRunning), 0)

	result, err := r.safeRun(work)

	r.update(id, func(run *entity.Run) {
		t := r.now()
		run.FinishedAt = &t
		if err != nil {
			run.Status = entity.RunFailed
			run.Error = err.Error()
			return
		}
		run.Status = entity.RunSucceeded
		run.Result = result
	})

	if err != nil {
		r.metrics.RunTransition(string(entity.RunFailed), -1)
		r.logger.Warn("run failed", zap.String("run_id", id), zap.Error(err))
		return
	}
	r.metrics.RunTransition(string(entity.RunSucceeded), -1)
	r.logger.Info("run succeeded", zap.String("run_id", id))
}

func (r *RunRegistry) safeRun(work RunFunc) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("run panicked: %v", p)
		}
	}()
	return work(r.ctx)
}

func (r *RunRegistry) update(id string, fn func(run *entity.Run)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run, ok := r.runs[id]; ok {
		fn(run)
	}
}

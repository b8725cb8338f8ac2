package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/moicben/calendar-agent/internal/entity"
	"github.com/moicben/calendar-agent/pkg/metrics"
)

// BookingAttempter performs one booking attempt on target. proxy is nil for
// a direct attempt. The raw agent result is returned uninterpreted.
type BookingAttempter interface {
	Attempt(ctx context.Context, target string, proxy *entity.Proxy) (entity.AgentResult, error)
}

// Outcome is the final state of the retry loop for one target.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeExhausted Outcome = "exhausted"
)

// Attempt records one try.
type Attempt struct {
	Index    int
	Proxy    *entity.Proxy
	Phase    DrawPhase
	Status   entity.BookingStatus
	Err      error
	Duration time.Duration
}

// BookingReport is what the orchestrator hands back for one target.
type BookingReport struct {
	Target       string
	Outcome      Outcome
	Status       entity.BookingStatus
	ProxyUsed    *entity.Proxy
	AttemptsMade int
	Attempts     []Attempt
	// Err is set when the loop stopped before using its attempt budget,
	// e.g. on cancellation.
	Err error
}

// RetryOrchestrator retries a booking across distinct proxies until one
// attempt succeeds or the attempt budget is spent.
type RetryOrchestrator struct {
	pool           *ProxyPool
	attempter      BookingAttempter
	maxAttempts    int
	attemptTimeout time.Duration
	metrics        *metrics.Metrics
	logger         *zap.Logger
}

// RetryOptions tunes the orchestrator.
type RetryOptions struct {
	// MaxAttempts caps the attempts per target. The effective bound is
	// min(MaxAttempts, pool size).
	MaxAttempts int
	// AttemptTimeout bounds the wall-clock time of one attempt. Zero means no bound.
	AttemptTimeout time.Duration
}

// NewRetryOrchestrator wires an orchestrator.
func NewRetryOrchestrator(pool *ProxyPool, attempter BookingAttempter, opts RetryOptions, m *metrics.Metrics, logger *zap.Logger) *RetryOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &RetryOrchestrator{
		pool:           pool,
		attempter:      attempter,
		maxAttempts:    opts.MaxAttempts,
		attemptTimeout: opts.AttemptTimeout,
		metrics:        m,
		logger:         logger,
	}
}

// MaxAttempts returns the attempt budget for one target.
func (o *RetryOrchestrator) MaxAttempts() int {
	size := o.pool.Size()
	if size == 0 {
		return 1
	}
	return min(o.maxAttempts, size)
}

// AttemptBooking runs attempts for target sequentially, each through a proxy
// not yet used for this target, and stops at the first success.
func (o *RetryOrchestrator) AttemptBooking(ctx context.Context, target string) BookingReport {
	report := BookingReport{Target: target, Outcome: OutcomeExhausted, Status: entity.StatusError}
	used := make(map[entity.Proxy]struct{})
	budget := o.MaxAttempts()
	log := o.logger.With(zap.String("url", target))

	for i := 1; i <= budget; i++ {
		if err := ctx.Err(); err != nil {
			report.Err = err
			break
		}

		var (
			proxy *entity.Proxy
			phase = PhaseDirect
		)
		if o.pool.Size() > 0 {
			px, ph, err := o.pool.DrawExcluding(used)
			if err != nil {
				report.Err = err
				break
			}
			used[px] = struct{}{}
			proxy, phase = &px, ph
		}

		att := o.runAttempt(ctx, i, target, proxy, phase)
		report.Attempts = append(report.Attempts, att)
		report.AttemptsMade = i
		report.Status = att.Status
		report.ProxyUsed = proxy

		fields := []zap.Field{
			zap.Int("attempt", i),
			zap.Int("max_attempts", budget),
			zap.String("phase", string(phase)),
			zap.String("status", string(att.Status)),
			zap.Duration("duration", att.Duration),
		}
		if proxy != nil {
			fields = append(fields, zap.Stringer("proxy", proxy))
		}
		if att.Err != nil {
			log.Warn("booking attempt failed", append(fields, zap.Error(att.Err))...)
		} else {
			log.Info("booking attempt finished", fields...)
		}

		if att.Status == entity.StatusSuccess {
			report.Outcome = OutcomeSuccess
			break
		}
	}

	o.metrics.IncOutcome(string(report.Outcome))
	return report
}

func (o *RetryOrchestrator) runAttempt(ctx context.Context, index int, target string, proxy *entity.Proxy, phase DrawPhase) Attempt {
	attemptCtx := ctx
	if o.attemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, o.attemptTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := o.attempter.Attempt(attemptCtx, target, proxy)
	att := Attempt{Index: index, Proxy: proxy, Phase: phase, Duration: time.Since(start)}

	switch {
	case err != nil:
		att.Err = err
		att.Status = entity.StatusError
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			att.Err = &AttemptTimeoutError{Timeout: o.attemptTimeout, Err: err}
		}
	default:
		att.Status = StatusOrError(result)
	}

	o.metrics.ObserveAttempt(string(att.Status), string(phase), att.Duration)
	return att
}

// AttemptTimeoutError reports an attempt stopped by the watchdog.
type AttemptTimeoutError struct {
	Timeout time.Duration
	Err     error
}

func (e *AttemptTimeoutError) Error() string {
	return "booking attempt exceeded " + e.Timeout.String() + ": " + e.Err.Error()
}

func (e *AttemptTimeoutError) Unwrap() error {
	return e.Err
}

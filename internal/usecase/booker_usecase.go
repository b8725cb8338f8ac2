package usecase

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/moicben/calendar-agent/internal/entity"
	"github.com/moicben/calendar-agent/internal/repository"
)

// BatchSummary counts per-URL outcomes of a batch.
type BatchSummary struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	// NoSlot counts exhausted URLs whose last answer was "no slot available".
	NoSlot    int `json:"no_slot"`
	Exhausted int `json:"exhausted"`
	// Failed counts URLs where no attempt produced an agent answer.
	Failed int `json:"failed"`
}

// BatchBooker books pending URLs, several URLs at a time, and records each
// processed URL exactly once: appended to the booked list and removed from
// the pending list, whatever the outcome.
type BatchBooker struct {
	orchestrator *RetryOrchestrator
	pending      repository.PendingRepository
	booked       repository.BookedRepository
	parallelism  int
	logger       *zap.Logger

	mu sync.Mutex
}

// NewBatchBooker wires a batch booker.
func NewBatchBooker(orchestrator *RetryOrchestrator, pending repository.PendingRepository, booked repository.BookedRepository, parallelism int, logger *zap.Logger) *BatchBooker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if parallelism < 1 {
		parallelism = 1
	}
	return &BatchBooker{
		orchestrator: orchestrator,
		pending:      pending,
		booked:       booked,
		parallelism:  parallelism,
		logger:       logger,
	}
}

// Run books the first limit pending URLs, or all of them when limit <= 0.
// A failure on one URL never stops the others.
func (b *BatchBooker) Run(ctx context.Context, limit int) (*BatchSummary, error) {
	urls, err := b.pending.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending urls: %w", err)
	}
	if limit > 0 && len(urls) > limit {
		urls = urls[:limit]
	}
	summary := &BatchSummary{}
	if len(urls) == 0 {
		b.logger.Info("no pending calendar url")
		return summary, nil
	}
	b.logger.Info("batch started", zap.Int("urls", len(urls)), zap.Int("parallelism", b.parallelism))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.parallelism)
	for i, u := range urls {
		g.Go(func() error {
			report := b.orchestrator.AttemptBooking(gctx, u)
			b.record(ctx, i+1, len(urls), report, summary)
			return nil
		})
	}
	_ = g.Wait()

	b.logger.Info("batch finished",
		zap.Int("processed", summary.Processed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("no_slot", summary.NoSlot),
		zap.Int("exhausted", summary.Exhausted),
		zap.Int("failed", summary.Failed),
	)
	return summary, ctx.Err()
}

func (b *BatchBooker) record(ctx context.Context, index, total int, report BookingReport, summary *BatchSummary) {
	b.mu.Lock()
	defer b.mu.Unlock()

	log := b.logger.With(
		zap.String("url", report.Target),
		zap.Int("index", index),
		zap.Int("total", total),
		zap.String("outcome", string(report.Outcome)),
		zap.Int("attempts", report.AttemptsMade),
	)

	if report.AttemptsMade == 0 {
		summary.Failed++
		log.Warn("url left pending, no attempt ran", zap.Error(report.Err))
		return
	}

	bookkeeping := context.WithoutCancel(ctx)
	if err := b.booked.Append(bookkeeping, report.Target); err != nil {
		log.Error("failed to record booked url", zap.Error(err))
	}
	if found, err := b.pending.Remove(bookkeeping, report.Target); err != nil {
		log.Error("failed to remove url from pending list", zap.Error(err))
	} else if !found {
		log.Warn("url already gone from pending list")
	}
	summary.Processed++

	switch {
	case report.Outcome == OutcomeSuccess:
		summary.Succeeded++
		log.Info("booking succeeded")
	case !hasVerdict(report):
		summary.Failed++
		log.Warn("booking failed on every attempt")
	default:
		summary.Exhausted++
		if report.Status == entity.StatusNoSlot {
			summary.NoSlot++
		}
		log.Info("booking attempts exhausted", zap.String("status", string(report.Status)))
	}
}

func hasVerdict(report BookingReport) bool {
	for _, a := range report.Attempts {
		if a.Err == nil {
			return true
		}
	}
	return false
}

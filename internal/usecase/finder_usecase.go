package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/moicben/calendar-agent/internal/entity"
	"github.com/moicben/calendar-agent/internal/repository"
	"github.com/moicben/calendar-agent/pkg/metrics"
	"github.com/moicben/calendar-agent/pkg/utils"
)

const harvestLockName = "calendar-agent:harvest"

// FinderSummary is printed after a harvesting run.
type FinderSummary struct {
	Query    string       `json:"query"`
	Endpoint string       `json:"endpoint"`
	Found    int          `json:"found"`
	New      int          `json:"new"`
	Paths    SummaryPaths `json:"paths"`
}

// SummaryPaths locates the files a run wrote.
type SummaryPaths struct {
	New      string `json:"new"`
	Historic string `json:"historic"`
}

// FinderOptions tunes a Finder.
type FinderOptions struct {
	PageSize int
	Domains  []string
	LockTTL  time.Duration
	Paths    SummaryPaths
}

// Finder turns a search query into newly discovered calendar URLs: it
// harvests every tracked domain, canonicalizes and deduplicates the links
// against history, rewrites the new set and appends it to history.
type Finder struct {
	harvester *Harvester
	dedup     *DedupStore
	newSet    repository.PendingRepository
	lock      repository.LockRepository
	opts      FinderOptions
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewFinder wires a Finder.
func NewFinder(
	harvester *Harvester,
	dedup *DedupStore,
	newSet repository.PendingRepository,
	lock repository.LockRepository,
	opts FinderOptions,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Finder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(opts.Domains) == 0 {
		opts.Domains = TrackedDomains
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Minute
	}
	return &Finder{
		harvester: harvester,
		dedup:     dedup,
		newSet:    newSet,
		lock:      lock,
		opts:      opts,
		metrics:   m,
		logger:    logger,
	}
}

// Run harvests query on endpoint with up to maxPages pages per domain.
// Per-domain search failures are logged and do not fail the run.
func (f *Finder) Run(ctx context.Context, query string, endpoint entity.SearchEndpoint, maxPages int) (*FinderSummary, error) {
	if !endpoint.Valid() {
		return nil, fmt.Errorf("unsupported endpoint %q", endpoint)
	}
	if maxPages < 1 {
		maxPages = 1
	}

	release, err := f.lock.Acquire(ctx, harvestLockName, f.opts.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire harvest lock: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			f.logger.Warn("failed to release harvest lock", zap.Error(err))
		}
	}()

	log := f.logger.With(zap.String("query", query), zap.String("endpoint", string(endpoint)))
	log.Info("harvest started", zap.Strings("domains", f.opts.Domains), zap.Int("max_pages", maxPages))

	raw, errs := f.harvester.WithEndpoint(endpoint).HarvestDomains(ctx, query, f.opts.Domains, f.opts.PageSize, maxPages)
	for _, err := range errs {
		log.Warn("query harvested partially", zap.Error(err))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := make([]string, 0, len(raw))
	for _, r := range raw {
		if c := utils.Canonicalize(r); c != "" {
			candidates = append(candidates, c)
		}
	}

	res, err := f.dedup.Filter(ctx, candidates)
	if err != nil {
		return nil, err
	}
	log.Info("candidates filtered",
		zap.Int("raw", len(candidates)),
		zap.Int("duplicates", len(res.Duplicates)),
		zap.Int("known", len(res.Known)-len(res.Duplicates)),
		zap.Int("new", len(res.New)),
	)
	if len(res.Duplicates) > 0 {
		log.Debug("duplicate candidates", zap.Strings("urls", res.Duplicates))
	}

	if err := f.newSet.Replace(ctx, res.New); err != nil {
		return nil, fmt.Errorf("failed to write new urls: %w", err)
	}
	if err := f.dedup.Record(ctx, res.New); err != nil {
		return nil, err
	}
	f.metrics.AddNewURLs(len(res.New))

	if len(res.New) == 0 {
		log.Info("no new calendar found, new set emptied")
	}

	return &FinderSummary{
		Query:    query,
		Endpoint: string(endpoint),
		Found:    len(candidates) - len(res.Duplicates),
		New:      len(res.New),
		Paths:    f.opts.Paths,
	}, nil
}

// IsLockHeld reports whether err means another harvest is running.
func IsLockHeld(err error) bool {
	return errors.Is(err, repository.ErrLockHeld)
}

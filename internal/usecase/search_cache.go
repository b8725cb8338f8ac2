package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/moicben/calendar-agent/internal/entity"
	"github.com/moicben/calendar-agent/internal/repository"
	"github.com/moicben/calendar-agent/pkg/metrics"
)

// CachedSearch serves search pages from a cache before calling the search
// API. Cache failures degrade to a direct call.
type CachedSearch struct {
	inner   repository.SearchRepository
	cache   repository.SearchCacheRepository
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewCachedSearch wraps inner with cache.
func NewCachedSearch(inner repository.SearchRepository, cache repository.SearchCacheRepository, ttl time.Duration, m *metrics.Metrics, logger *zap.Logger) *CachedSearch {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedSearch{inner: inner, cache: cache, ttl: ttl, metrics: m, logger: logger}
}

// Search implements repository.SearchRepository.
func (c *CachedSearch) Search(ctx context.Context, req entity.SearchRequest) (*entity.SearchPage, error) {
	page, ok, err := c.cache.Get(ctx, req)
	switch {
	case err != nil:
		c.metrics.IncSearchCache("error")
		c.logger.Warn("search cache lookup failed", zap.String("query", req.Query), zap.Int("page", req.Page), zap.Error(err))
	case ok:
		c.metrics.IncSearchCache("hit")
		return page, nil
	default:
		c.metrics.IncSearchCache("miss")
	}

	page, err = c.inner.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, req, page, c.ttl); err != nil {
		c.logger.Warn("failed to cache search page", zap.String("query", req.Query), zap.Int("page", req.Page), zap.Error(err))
	}
	return page, nil
}

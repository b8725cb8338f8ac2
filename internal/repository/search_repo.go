package repository

import (
	"context"
	"time"

	"github.com/moicben/calendar-agent/internal/entity"
)

// SearchRepository fetches one page of web search results.
type SearchRepository interface {
	Search(ctx context.Context, req entity.SearchRequest) (*entity.SearchPage, error)
}

// SearchCacheRepository memoises search pages so repeated harvests of the
// same query do not spend API quota.
type SearchCacheRepository interface {
	// Get returns the cached page and whether it was present.
	Get(ctx context.Context, req entity.SearchRequest) (*entity.SearchPage, bool, error)
	// Set stores page for ttl.
	Set(ctx context.Context, req entity.SearchRequest, page *entity.SearchPage, ttl time.Duration) error
}

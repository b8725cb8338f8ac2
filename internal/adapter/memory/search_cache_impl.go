package memory

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/moicben/calendar-agent/internal/entity"
)

// SearchCacheRepoImpl is an in-process LRU of search pages, used when no
// Redis is configured. Entries expire after the ttl given at construction.
type SearchCacheRepoImpl struct {
	lru *expirable.LRU[string, *entity.SearchPage]
}

// NewSearchCacheRepo creates a cache of at most size pages.
func NewSearchCacheRepo(size int, ttl time.Duration) *SearchCacheRepoImpl {
	if size <= 0 {
		size = 256
	}
	return &SearchCacheRepoImpl{lru: expirable.NewLRU[string, *entity.SearchPage](size, nil, ttl)}
}

// Get returns the cached page.
func (r *SearchCacheRepoImpl) Get(_ context.Context, req entity.SearchRequest) (*entity.SearchPage, bool, error) {
	page, ok := r.lru.Get(req.CacheKey())
	return page, ok, nil
}

// Set stores page. The per-call ttl is ignored; the LRU has a single ttl.
func (r *SearchCacheRepoImpl) Set(_ context.Context, req entity.SearchRequest, page *entity.SearchPage, _ time.Duration) error {
	r.lru.Add(req.CacheKey(), page)
	return nil
}

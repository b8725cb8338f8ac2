package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/moicben/calendar-agent/internal/entity"
	"github.com/moicben/calendar-agent/pkg/utils"
)

const searchCachePrefix = "search:"

// SearchCacheRepoImpl caches search pages in Redis as JSON with a TTL.
type SearchCacheRepoImpl struct {
	client *redis.Client
}

// NewSearchCacheRepo creates a new instance of SearchCacheRepoImpl.
func NewSearchCacheRepo(client *redis.Client) *SearchCacheRepoImpl {
	return &SearchCacheRepoImpl{client: client}
}

// generateKey creates a consistent Redis key for a request by hashing it.
func (r *SearchCacheRepoImpl) generateKey(req entity.SearchRequest) string {
	return fmt.Sprintf("%s%s", searchCachePrefix, utils.HashURL(req.CacheKey()))
}

// Get returns the cached page, or false when absent or expired.
func (r *SearchCacheRepoImpl) Get(ctx context.Context, req entity.SearchRequest) (*entity.SearchPage, bool, error) {
	raw, err := r.client.Get(ctx, r.generateKey(req)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var page entity.SearchPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, false, fmt.Errorf("decode cached page: %w", err)
	}
	return &page, true, nil
}

// Set stores page; SET with EX is atomic.
func (r *SearchCacheRepoImpl) Set(ctx context.Context, req entity.SearchRequest, page *entity.SearchPage, ttl time.Duration) error {
	raw, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("encode page: %w", err)
	}
	return r.client.Set(ctx, r.generateKey(req), raw, ttl).Err()
}

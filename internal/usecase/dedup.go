package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/moicben/calendar-agent/internal/entity"
	"github.com/moicben/calendar-agent/internal/repository"
	"github.com/moicben/calendar-agent/pkg/utils"
)

// DedupResult partitions a batch of candidates. Known holds every candidate
// that is not new, in input order; Duplicates is the subset of Known whose key
// already appeared earlier in the same batch.
type DedupResult struct {
	New        []string
	Known      []string
	Duplicates []string
}

// FilterNew splits candidates into those whose canonical key is neither in
// historic nor seen earlier in the batch, and the rest. Every repeat of a key
// after its first occurrence is a duplicate, historic or not. historic is not
// modified, so calling it twice with the same inputs gives the same result.
func FilterNew(candidates []string, historic entity.HistoricSet) DedupResult {
	var res DedupResult
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		key := utils.Canonicalize(c)
		if _, dup := seen[key]; dup {
			res.Known = append(res.Known, c)
			res.Duplicates = append(res.Duplicates, c)
			continue
		}
		seen[key] = struct{}{}
		if historic.Contains(key) {
			res.Known = append(res.Known, c)
			continue
		}
		res.New = append(res.New, c)
	}
	return res
}

// DedupStore keeps the historic set in memory in sync with its append-only
// backing file.
type DedupStore struct {
	repo repository.HistoricRepository

	mu     sync.Mutex
	set    entity.HistoricSet
	loaded bool
}

// NewDedupStore creates a store backed by repo.
func NewDedupStore(repo repository.HistoricRepository) *DedupStore {
	return &DedupStore{repo: repo}
}

// Load reads the backing file into memory and returns the set.
func (s *DedupStore) Load(ctx context.Context) (entity.HistoricSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	urls, err := s.repo.Load(ctx)
	if err != nil {
		return entity.HistoricSet{}, fmt.Errorf("failed to load historic urls: %w", err)
	}
	set := entity.NewHistoricSet()
	for _, u := range urls {
		set.Add(utils.Canonicalize(u))
	}
	s.set = set
	s.loaded = true
	return s.snapshot(), nil
}

// Filter runs FilterNew against the loaded set.
func (s *DedupStore) Filter(ctx context.Context, candidates []string) (DedupResult, error) {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if !loaded {
		if _, err := s.Load(ctx); err != nil {
			return DedupResult{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return FilterNew(candidates, s.set), nil
}

// Record appends newURLs to the backing file and merges their keys into the
// in-memory set. Keys are only merged once the append succeeded.
func (s *DedupStore) Record(ctx context.Context, newURLs []string) error {
	if len(newURLs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Append(ctx, newURLs); err != nil {
		return fmt.Errorf("failed to append historic urls: %w", err)
	}
	for _, u := range newURLs {
		s.set.Add(utils.Canonicalize(u))
	}
	return nil
}

// Len returns the number of distinct keys held in memory.
func (s *DedupStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set.Len()
}

func (s *DedupStore) snapshot() entity.HistoricSet {
	cp := entity.NewHistoricSet()
	cp.Merge(s.set.Keys())
	return cp
}

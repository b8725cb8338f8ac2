package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/moicben/calendar-agent/internal/entity"
	"github.com/moicben/calendar-agent/internal/repository"
	"github.com/moicben/calendar-agent/pkg/metrics"
)

// TrackedDomains are the booking platforms searched for, one harvest each.
var TrackedDomains = []string{"calendly.com/", "cal.com/", "calendar.app.google/"}

// calendarLinkPatterns match calendar links inside free text.
var calendarLinkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?\bcalendly\.com/[^\s<>"']+`),
	regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?\bcal\.com/[^\s<>"']+`),
	regexp.MustCompile(`(?i)(?:https?://)?\bcalendar\.app\.google/[^\s<>"']+`),
}

// QueryError reports that harvesting one query stopped early. Candidates
// gathered before the failure are still returned alongside it.
type QueryError struct {
	Query string
	Page  int
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %q page %d: %v", e.Query, e.Page, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// HarvestResult is the outcome of one paginated harvest.
type HarvestResult struct {
	Candidates   []string
	PagesFetched int
}

// Harvester walks search result pages and extracts calendar links.
type Harvester struct {
	search   repository.SearchRepository
	endpoint entity.SearchEndpoint
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewHarvester creates a harvester querying endpoint through search.
func NewHarvester(search repository.SearchRepository, endpoint entity.SearchEndpoint, m *metrics.Metrics, logger *zap.Logger) *Harvester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Harvester{search: search, endpoint: endpoint, metrics: m, logger: logger}
}

// WithEndpoint returns a copy of h querying endpoint.
func (h *Harvester) WithEndpoint(endpoint entity.SearchEndpoint) *Harvester {
	cp := *h
	cp.endpoint = endpoint
	return &cp
}

// Harvest fetches pages 1..maxPages of query and stops at the first page
// that yields no calendar link. A failed page aborts the query: the
// candidates accumulated so far are returned together with a *QueryError.
func (h *Harvester) Harvest(ctx context.Context, query string, pageSize, maxPages int) (HarvestResult, error) {
	var res HarvestResult
	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return res, &QueryError{Query: query, Page: page, Err: err}
		}

		resp, err := h.search.Search(ctx, entity.SearchRequest{
			Query:    query,
			Endpoint: h.endpoint,
			Page:     page,
			PageSize: pageSize,
		})
		if err != nil {
			h.metrics.IncSearchPage(string(h.endpoint), "error")
			h.logger.Warn("search page failed, keeping partial results",
				zap.String("query", query),
				zap.Int("page", page),
				zap.Int("candidates", len(res.Candidates)),
				zap.Error(err),
			)
			return res, &QueryError{Query: query, Page: page, Err: err}
		}
		res.PagesFetched++

		var found []string
		for _, r := range resp.Results {
			found = append(found, ExtractCalendarLinks(r.Snippet)...)
		}
		if len(found) == 0 {
			h.metrics.IncSearchPage(string(h.endpoint), "empty")
			h.logger.Debug("no calendar link on page, stopping",
				zap.String("query", query),
				zap.Int("page", page),
				zap.Int("results", len(resp.Results)),
			)
			break
		}
		h.metrics.IncSearchPage(string(h.endpoint), "ok")
		res.Candidates = append(res.Candidates, found...)
	}
	h.metrics.AddCandidates(len(res.Candidates))
	return res, nil
}

// HarvestDomains runs one harvest per domain with the query
// "<baseQuery>" "<domain>" and concatenates the candidates. Per-domain
// failures are collected; only context cancellation stops the loop.
func (h *Harvester) HarvestDomains(ctx context.Context, baseQuery string, domains []string, pageSize, maxPages int) ([]string, []error) {
	var (
		all  []string
		errs []error
	)
	for _, domain := range domains {
		q := fmt.Sprintf("%q %q", baseQuery, domain)
		res, err := h.Harvest(ctx, q, pageSize, maxPages)
		all = append(all, res.Candidates...)
		if err != nil {
			errs = append(errs, err)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
		}
		h.logger.Info("domain harvested",
			zap.String("domain", domain),
			zap.Int("pages", res.PagesFetched),
			zap.Int("candidates", len(res.Candidates)),
		)
	}
	return all, errs
}

// ExtractCalendarLinks returns every calendar link found in text, in order of
// appearance per pattern.
func ExtractCalendarLinks(text string) []string {
	if text == "" {
		return nil
	}
	var out []string
	for _, re := range calendarLinkPatterns {
		out = append(out, re.FindAllString(text, -1)...)
	}
	return out
}

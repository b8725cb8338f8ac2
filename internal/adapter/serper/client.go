package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/moicben/calendar-agent/internal/entity"
)

// DefaultBaseURL is the Serper.dev API root.
const DefaultBaseURL = "https://google.serper.dev"

// Options configures the client.
type Options struct {
	APIKey  string
	BaseURL string
	// Country and Language are the gl and hl search parameters.
	Country  string
	Language string
	// RatePerSecond paces requests; zero disables pacing.
	RatePerSecond float64
	Timeout       time.Duration
}

// Client calls the Serper.dev search API.
type Client struct {
	opts    Options
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a search client. transport may be nil.
func NewClient(opts Options, transport http.RoundTripper, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}
	return &Client{
		opts:    opts,
		http:    &http.Client{Timeout: opts.Timeout, Transport: transport},
		limiter: limiter,
		logger:  logger,
	}
}

type searchPayload struct {
	Q    string `json:"q"`
	Num  int    `json:"num"`
	Page int    `json:"page"`
	GL   string `json:"gl,omitempty"`
	HL   string `json:"hl,omitempty"`
}

type searchResponse struct {
	Organic []entity.SearchResult `json:"organic"`
	News    []entity.SearchResult `json:"news"`
}

// Search implements repository.SearchRepository.
func (c *Client) Search(ctx context.Context, req entity.SearchRequest) (*entity.SearchPage, error) {
	endpoint := req.Endpoint
	if endpoint == "" {
		endpoint = entity.EndpointSearch
	}
	if !endpoint.Valid() {
		return nil, fmt.Errorf("unsupported endpoint %q", endpoint)
	}

	body, err := json.Marshal(searchPayload{
		Q:    req.Query,
		Num:  req.PageSize,
		Page: req.Page,
		GL:   c.opts.Country,
		HL:   c.opts.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search payload: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, classifyError(err)
	}

	url := strings.TrimSuffix(c.opts.BaseURL, "/") + "/" + string(endpoint)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	httpReq.Header.Set("X-API-KEY", c.opts.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Debug("search request", zap.String("url", url), zap.String("query", req.Query), zap.Int("page", req.Page))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		err = classifyError(err)
		c.logger.Warn("search API unreachable", zap.String("error_type", ErrorTypeLabel(err)), zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, classifyError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := ErrHTTPStatus{StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
		var err error = statusErr
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			err = ErrUnauthorized{Err: statusErr}
		case http.StatusTooManyRequests:
			err = ErrRateLimited{Err: statusErr}
		}
		c.logger.Error("search API call failed",
			zap.Int("status", resp.StatusCode),
			zap.String("error_type", ErrorTypeLabel(err)),
			zap.String("body", statusErr.Body),
		)
		return nil, err
	}

	var decoded searchResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := decoded.Organic
	if endpoint == entity.EndpointNews {
		results = decoded.News
	}
	return &entity.SearchPage{Results: results}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

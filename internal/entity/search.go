package entity

import "fmt"

// SearchEndpoint selects which search index is queried.
type SearchEndpoint string

const (
	EndpointSearch SearchEndpoint = "search"
	EndpointNews   SearchEndpoint = "news"
)

// Valid reports whether e is a supported endpoint.
func (e SearchEndpoint) Valid() bool {
	return e == EndpointSearch || e == EndpointNews
}

// SearchRequest identifies one page of results.
type SearchRequest struct {
	Query    string
	Endpoint SearchEndpoint
	Page     int
	PageSize int
}

// SearchResult is a single hit. Only Snippet is mined for links.
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// SearchPage is one page of results. An empty page ends pagination.
type SearchPage struct {
	Results []SearchResult `json:"results"`
}

// Empty reports whether the page carries no results.
func (p *SearchPage) Empty() bool {
	return p == nil || len(p.Results) == 0
}

// CacheKey identifies the request in caches.
func (r SearchRequest) CacheKey() string {
	return fmt.Sprintf("%s|%d|%d|%s", r.Endpoint, r.Page, r.PageSize, r.Query)
}

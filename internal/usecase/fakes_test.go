package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/moicben/calendar-agent/internal/entity"
	"github.com/moicben/calendar-agent/internal/repository"
)

// fakeSearch serves pages from a function and records every request.
type fakeSearch struct {
	mu    sync.Mutex
	calls []entity.SearchRequest
	page  func(req entity.SearchRequest) (*entity.SearchPage, error)
}

func (f *fakeSearch) Search(_ context.Context, req entity.SearchRequest) (*entity.SearchPage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.page(req)
}

func (f *fakeSearch) requests() []entity.SearchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entity.SearchRequest(nil), f.calls...)
}

func snippetPage(snippets ...string) *entity.SearchPage {
	page := &entity.SearchPage{}
	for i, s := range snippets {
		page.Results = append(page.Results, entity.SearchResult{Title: fmt.Sprintf("result %d", i+1), Snippet: s})
	}
	return page
}

// memList is an in-memory url list usable as pending, booked and historic store.
type memList struct {
	mu   sync.Mutex
	urls []string
}

func (m *memList) List(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.urls...), nil
}

func (m *memList) Load(ctx context.Context) ([]string, error) {
	return m.List(ctx)
}

func (m *memList) Replace(_ context.Context, urls []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls = append([]string(nil), urls...)
	return nil
}

func (m *memList) Append(_ context.Context, urls []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls = append(m.urls, urls...)
	return nil
}

func (m *memList) Remove(_ context.Context, url string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, u := range m.urls {
		if u == url {
			m.urls = append(m.urls[:i], m.urls[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type memBooked struct {
	memList
}

func (m *memBooked) Append(ctx context.Context, url string) error {
	return m.memList.Append(ctx, []string{url})
}

// fakeAttempter answers through fn and records the proxy of every attempt.
type fakeAttempter struct {
	mu      sync.Mutex
	proxies []*entity.Proxy
	fn      func(ctx context.Context, target string, proxy *entity.Proxy) (entity.AgentResult, error)
}

func (f *fakeAttempter) Attempt(ctx context.Context, target string, proxy *entity.Proxy) (entity.AgentResult, error) {
	f.mu.Lock()
	f.proxies = append(f.proxies, proxy)
	f.mu.Unlock()
	return f.fn(ctx, target, proxy)
}

func (f *fakeAttempter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.proxies)
}

func answer(status entity.BookingStatus) func(context.Context, string, *entity.Proxy) (entity.AgentResult, error) {
	return func(context.Context, string, *entity.Proxy) (entity.AgentResult, error) {
		return entity.Text("Final answer: " + string(status)), nil
	}
}

// fakeBrowser is a browser that records what was asked of it.
type fakeBrowser struct {
	probe    *entity.PageProbe
	probeErr error
	probed   []string
	closed   bool
}

func (b *fakeBrowser) DebugURL() string { return "http://127.0.0.1:9222" }

func (b *fakeBrowser) Probe(_ context.Context, url string) (*entity.PageProbe, error) {
	b.probed = append(b.probed, url)
	if b.probeErr != nil {
		return nil, b.probeErr
	}
	if b.probe != nil {
		return b.probe, nil
	}
	return &entity.PageProbe{URL: url, HasWidget: true}, nil
}

func (b *fakeBrowser) Close() error {
	b.closed = true
	return nil
}

type fakeBrowsers struct {
	mu       sync.Mutex
	browser  *fakeBrowser
	launched []entity.BrowserOptions
	err      error
}

func (f *fakeBrowsers) Launch(_ context.Context, opts entity.BrowserOptions) (repository.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.launched = append(f.launched, opts)
	if f.err != nil {
		return nil, f.err
	}
	if f.browser == nil {
		f.browser = &fakeBrowser{}
	}
	return f.browser, nil
}

type fakeAgent struct {
	mu     sync.Mutex
	tasks  []entity.AgentTask
	result entity.AgentResult
	err    error
}

func (f *fakeAgent) Run(_ context.Context, task entity.AgentTask) (entity.AgentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
	return f.result, f.err
}

func testProxies(n int) []entity.Proxy {
	out := make([]entity.Proxy, n)
	for i := range out {
		out[i] = entity.Proxy{Host: fmt.Sprintf("10.0.0.%d", i+1), Port: 8000 + i, Username: "user", Password: "secret"}
	}
	return out
}

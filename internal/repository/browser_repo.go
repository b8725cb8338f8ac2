package repository

import (
	"context"
	"errors"

	"github.com/moicben/calendar-agent/internal/entity"
)

var (
	// ErrBrowserLaunch means the browser process could not be started.
	ErrBrowserLaunch = errors.New("browser launch failed")
	// ErrNavigationFailed means the page could not be loaded, usually a dead proxy.
	ErrNavigationFailed = errors.New("navigation failed")
)

// Browser is a running browser instance an agent can attach to.
type Browser interface {
	// DebugURL is the DevTools websocket endpoint.
	DebugURL() string
	// Probe loads url and reports what it found.
	Probe(ctx context.Context, url string) (*entity.PageProbe, error)
	Close() error
}

// BrowserRepository launches browsers.
type BrowserRepository interface {
	Launch(ctx context.Context, opts entity.BrowserOptions) (Browser, error)
}

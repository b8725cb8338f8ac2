package repository

import (
	"context"

	"github.com/moicben/calendar-agent/internal/entity"
)

// ProxyRepository loads the egress proxy pool.
type ProxyRepository interface {
	// LoadProxies returns every well-formed proxy. Malformed records are skipped.
	LoadProxies(ctx context.Context) ([]entity.Proxy, error)
}

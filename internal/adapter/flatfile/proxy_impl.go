package flatfile

import (
	"context"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/moicben/calendar-agent/internal/entity"
)

// ProxyRepo reads "host:port:username:password" records.
type ProxyRepo struct {
	fs     afero.Fs
	path   string
	logger *zap.Logger
}

// NewProxyRepo creates a proxy repository over path.
func NewProxyRepo(fs afero.Fs, path string, logger *zap.Logger) *ProxyRepo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProxyRepo{fs: fs, path: path, logger: logger}
}

// LoadProxies returns the well-formed proxies and logs the malformed ones.
func (r *ProxyRepo) LoadProxies(ctx context.Context) ([]entity.Proxy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lines, err := ReadLines(r.fs, r.path)
	if err != nil {
		return nil, err
	}
	proxies, errs := entity.ParseProxies(lines)
	for _, e := range errs {
		r.logger.Warn("skipping malformed proxy record", zap.String("file", r.path), zap.Error(e))
	}
	r.logger.Info("proxies loaded", zap.String("file", r.path), zap.Int("count", len(proxies)), zap.Int("skipped", len(errs)))
	return proxies, nil
}

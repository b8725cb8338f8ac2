package flatfile

import (
	"context"
	"sync"

	"github.com/spf13/afero"
)

// URLListRepo is a line-per-URL file. It implements the historic, pending
// and booked repositories; which methods are used depends on the file's role.
type URLListRepo struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

// NewURLListRepo creates a repository over path on fs.
func NewURLListRepo(fs afero.Fs, path string) *URLListRepo {
	return &URLListRepo{fs: fs, path: path}
}

// Path returns the backing file path.
func (r *URLListRepo) Path() string {
	return r.path
}

// Load returns every URL in file order.
func (r *URLListRepo) Load(ctx context.Context) ([]string, error) {
	return r.List(ctx)
}

// List returns every URL in file order.
func (r *URLListRepo) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return ReadLines(r.fs, r.path)
}

// Append adds urls after the existing lines.
func (r *URLListRepo) Append(ctx context.Context, urls []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return AppendLines(r.fs, r.path, urls)
}

// Replace rewrites the file with urls; an empty slice empties it.
func (r *URLListRepo) Replace(ctx context.Context, urls []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return WriteLines(r.fs, r.path, urls)
}

// Remove drops the first line equal to url.
func (r *URLListRepo) Remove(ctx context.Context, url string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	lines, err := ReadLines(r.fs, r.path)
	if err != nil {
		return false, err
	}
	for i, l := range lines {
		if l == url {
			lines = append(lines[:i], lines[i+1:]...)
			return true, WriteLines(r.fs, r.path, lines)
		}
	}
	return false, nil
}

// BookedRepo adapts a URLListRepo to single-URL appends.
type BookedRepo struct {
	*URLListRepo
}

// NewBookedRepo creates the booked list repository.
func NewBookedRepo(fs afero.Fs, path string) *BookedRepo {
	return &BookedRepo{URLListRepo: NewURLListRepo(fs, path)}
}

// Append records url as processed.
func (r *BookedRepo) Append(ctx context.Context, url string) error {
	return r.URLListRepo.Append(ctx, []string{url})
}

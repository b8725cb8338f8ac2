package repository

import "context"

// HistoricRepository is the append-only record of every URL ever accepted.
type HistoricRepository interface {
	// Load returns every recorded URL in file order.
	Load(ctx context.Context) ([]string, error)
	// Append records urls after the existing entries. It never rewrites.
	Append(ctx context.Context, urls []string) error
}

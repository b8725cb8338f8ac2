package repository

import "context"

// PendingRepository holds URLs waiting for a booking attempt.
type PendingRepository interface {
	// List returns the pending URLs in order.
	List(ctx context.Context) ([]string, error)
	// Replace rewrites the whole set.
	Replace(ctx context.Context, urls []string) error
	// Remove deletes the first entry equal to url and reports whether one was found.
	Remove(ctx context.Context, url string) (bool, error)
}

// BookedRepository records URLs whose booking has been processed.
type BookedRepository interface {
	Append(ctx context.Context, url string) error
}

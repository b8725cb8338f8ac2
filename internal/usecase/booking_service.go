package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/moicben/calendar-agent/internal/entity"
)

// ErrMissingCalendarURL is returned when a booking request has no target.
var ErrMissingCalendarURL = errors.New("calendar_url is required")

// CalendarBookingRequest is a synchronous single-attempt booking.
type CalendarBookingRequest struct {
	CalendarURL string
	// Contact fields override the configured defaults when non-empty.
	Contact  entity.Contact
	Headless *bool
	MaxSteps int
}

// BookingService serves one-shot bookings: one random proxy, one attempt,
// no retry across proxies.
type BookingService struct {
	pool      *ProxyPool
	attempter *AgentAttempter
	logger    *zap.Logger
}

// NewBookingService wires a booking service.
func NewBookingService(pool *ProxyPool, attempter *AgentAttempter, logger *zap.Logger) *BookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{pool: pool, attempter: attempter, logger: logger}
}

// BookOnce performs a single attempt and returns the coerced status.
func (s *BookingService) BookOnce(ctx context.Context, req CalendarBookingRequest) (entity.BookingStatus, error) {
	if req.CalendarURL == "" {
		return "", ErrMissingCalendarURL
	}

	contact, opts := s.attempter.Defaults()
	contact = contact.Merge(req.Contact)
	if req.Headless != nil {
		opts.Headless = *req.Headless
	}
	if req.MaxSteps > 0 {
		opts.MaxSteps = req.MaxSteps
	}

	var proxy *entity.Proxy
	px, err := s.pool.Draw()
	switch {
	case err == nil:
		proxy = &px
	case errors.Is(err, ErrEmptyPool):
		s.logger.Warn("no proxy available, booking directly", zap.String("url", req.CalendarURL))
	default:
		return "", fmt.Errorf("failed to draw proxy: %w", err)
	}

	result, err := s.attempter.Book(ctx, BookRequest{
		Target:  req.CalendarURL,
		Proxy:   proxy,
		Contact: contact,
		Options: opts,
	})
	if err != nil {
		return "", err
	}
	status := StatusOrError(result)
	s.logger.Info("calendar booking finished", zap.String("url", req.CalendarURL), zap.String("status", string(status)))
	return status, nil
}

package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/moicben/calendar-agent/internal/delivery/http/handler"
	"github.com/moicben/calendar-agent/internal/delivery/http/middleware"
	"github.com/moicben/calendar-agent/pkg/metrics"
)

// New builds the HTTP surface. Synchronous agent routes run for minutes, so
// only the fast routes get a request timeout.
func New(h *handler.Handler, m *metrics.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(m))
	r.Use(chimw.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))
		r.Get("/health", h.HandleHealthCheck)
		r.Post("/runs", h.HandleCreateRun)
		r.Get("/runs/{runID}", h.HandleGetRun)
	})

	r.Post("/run-goal", h.HandleRunGoal)
	r.Post("/book-calendar", h.HandleBookCalendar)

	if m != nil {
		r.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	}

	return r
}

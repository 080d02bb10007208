package api

import (
	"net/http"

	"github.com/calendaria/duration-engine/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterConfig holds the dependencies of the HTTP router
type RouterConfig struct {
	Handler  *Handler
	Logger   *zap.Logger
	Metrics  *metrics.DurationMetrics
	Gatherer prometheus.Gatherer
}

// NewRouter creates a new chi router with all routes configured
func NewRouter(cfg *RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger, cfg.Metrics))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", cfg.Handler.Health)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/process-email", func(r chi.Router) {
		r.Get("/", cfg.Handler.Describe)
		r.Post("/", cfg.Handler.ProcessEmail)
		r.Put("/", cfg.Handler.ProcessBatch)
	})

	r.Route("/feedback", func(r chi.Router) {
		r.Get("/", cfg.Handler.ListFeedback)
		r.Post("/", cfg.Handler.SubmitFeedback)
		r.Delete("/{id}", cfg.Handler.DeleteFeedback)
	})

	return r
}

// Package httptransport assembles the public HTTP surface from the domain handlers.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dsrengine/internal/platform/health"
	"dsrengine/internal/platform/metrics"
	authmw "dsrengine/pkg/platform/middleware/auth"
	request "dsrengine/pkg/platform/middleware/request"
)

// RouteRegistrar is implemented by every domain handler.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// Downloads serves capability URLs that bypass bearer authentication.
type Downloads interface {
	RegisterDownloads(r chi.Router)
}

// Config wires the router. Validator is nil when authentication is disabled
// and RateLimit is nil when throttling is off.
type Config struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Health         *health.Handler
	Validator      *authmw.Validator
	RateLimit      func(http.Handler) http.Handler
	RequestTimeout time.Duration
	Handlers       []RouteRegistrar
	Downloads      Downloads
}

// NewRouter wires all public endpoints with middleware.
func NewRouter(cfg Config) http.Handler {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(cfg.Logger))
	r.Use(request.RequestID)
	r.Use(request.Logger(cfg.Logger))
	r.Use(request.Latency(cfg.Metrics))

	if cfg.Health != nil {
		cfg.Health.Register(r)
	}
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(timeout))
		if cfg.Downloads != nil {
			cfg.Downloads.RegisterDownloads(r)
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(timeout))
		r.Use(request.ContentTypeJSON)
		if cfg.Validator != nil {
			r.Use(authmw.RequireAuth(cfg.Validator, cfg.Logger))
		}
		if cfg.RateLimit != nil {
			r.Use(cfg.RateLimit)
		}
		for _, h := range cfg.Handlers {
			h.Register(r)
		}
	})

	return r
}

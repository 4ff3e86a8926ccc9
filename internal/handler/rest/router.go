package rest

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"studentgit.kata.academy/KonstantinDolgov/currency-converter/pkg/telemetry"
)

type RouterConfig struct {
	ServiceName   string
	EnableTracing bool
	EnableMetrics bool
}

func NewRouter(h *Handler, config RouterConfig) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	switch {
	case config.EnableTracing:
		router.Use(telemetry.TracingMiddleware(config.ServiceName))
	case config.EnableMetrics:
		router.Use(telemetry.MetricsMiddleware)
	}

	router.Get("/health", h.Health)

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/rates/{base}", h.GetRates)
		r.Get("/currencies", h.ListCurrencies)
		r.Post("/conversions", h.Convert)
		r.Get("/conversions", h.ListConversions)
		r.Post("/maintenance/cleanup", h.Cleanup)
	})

	return router
}

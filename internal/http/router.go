package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-proxy/internal/observability"
)

// RouterConfig controls the middleware applied to the weather route.
type RouterConfig struct {
	RequestTimeout time.Duration
	// Limiter, when non-nil, rate limits /weather.
	Limiter *rate.Limiter
}

// NewRouter wires the handler into a gorilla/mux router with the standard middleware chain.
func NewRouter(h *Handler, cfg RouterConfig, logger *zap.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)

	weather := router.PathPrefix("/weather").Subrouter()
	if cfg.RequestTimeout > 0 {
		weather.Use(TimeoutMiddleware(cfg.RequestTimeout))
	}
	weather.Use(RateLimitMiddleware(cfg.Limiter))
	weather.HandleFunc("/{city}", h.GetWeather).Methods(http.MethodGet)

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	return router
}

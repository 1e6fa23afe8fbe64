package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-proxy/internal/client"
	"github.com/kjstillabower/weather-proxy/internal/health"
	"github.com/kjstillabower/weather-proxy/internal/models"
	"github.com/kjstillabower/weather-proxy/internal/observability"
	"github.com/kjstillabower/weather-proxy/internal/store"
	"github.com/kjstillabower/weather-proxy/internal/validation"
)

// WeatherLookup is the service operation behind GET /weather/{city}.
type WeatherLookup interface {
	GetWeatherByCity(ctx context.Context, city string) (models.WeatherResult, error)
}

// HealthConfig holds thresholds and dependency checks for the health handler.
type HealthConfig struct {
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	RateLimitRPS         int
	DegradedWindow       time.Duration
	DegradedErrorPct     int
	// StorePing, when set, checks the weather store. A failure reports degraded.
	StorePing func(ctx context.Context) error
	// CachePing, when set, checks the cache backend. Used when backend is memcached.
	CachePing func() error
	Version   string
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	lookup           WeatherLookup
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(lookup WeatherLookup, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		lookup:       lookup,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// GetWeather handles GET /weather/{city}. The path value is used verbatim as the lookup key.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	city, err := validation.ValidateCity(mux.Vars(r)["city"], validation.DefaultMaxLen)
	if err != nil {
		observability.LookupErrorsTotal.WithLabelValues(string(client.ErrorCategoryValidation)).Inc()
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", err.Error())
		return
	}

	result, err := h.lookup.GetWeatherByCity(r.Context(), city)
	if err != nil {
		health.RecordError()
		writeServiceError(w, r, err)
		return
	}
	health.RecordSuccess()
	writeJSON(w, http.StatusOK, result)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	checks := h.runChecks(r.Context())
	result := h.computeHealthStatus(checks)

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	version := "dev"
	if h.healthConfig != nil && h.healthConfig.Version != "" {
		version = h.healthConfig.Version
	}
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   observability.ServiceName,
		"version":   version,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// runChecks pings the configured dependencies. Missing checks are omitted.
func (h *Handler) runChecks(ctx context.Context) map[string]string {
	checks := make(map[string]string)
	if h.healthConfig == nil {
		return checks
	}
	if h.healthConfig.StorePing != nil {
		checks["store"] = checkStatus(h.healthConfig.StorePing(ctx))
	}
	if h.healthConfig.CachePing != nil {
		checks["cache"] = checkStatus(h.healthConfig.CachePing())
	}
	return checks
}

func checkStatus(err error) string {
	if err != nil {
		return "unhealthy"
	}
	return "healthy"
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > store unreachable > overloaded > degraded > healthy.
// An unreachable cache is reported in checks only; lookups still work without it.
func (h *Handler) computeHealthStatus(checks map[string]string) healthResult {
	if health.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	if checks["store"] == "unhealthy" {
		return healthResult{"degraded", http.StatusServiceUnavailable, "store_unreachable"}
	}
	if h.healthConfig.RateLimitRPS > 0 && h.healthConfig.OverloadWindow > 0 && h.healthConfig.OverloadThresholdPct > 0 {
		threshold := float64(h.healthConfig.RateLimitRPS) * h.healthConfig.OverloadWindow.Seconds() * float64(h.healthConfig.OverloadThresholdPct) / 100
		if float64(health.RequestCount(h.healthConfig.OverloadWindow)) > threshold {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
		}
	}
	if h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errs, total := health.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 {
			pct := float64(errs) * 100 / float64(total)
			if pct >= float64(h.healthConfig.DegradedErrorPct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

// writeServiceError maps a lookup failure to a status code. Deadline is checked first
// because upstream transport errors may wrap it.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := http.StatusInternalServerError, "INTERNAL_ERROR", "Internal error"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		status, code, msg = http.StatusGatewayTimeout, "TIMEOUT", "Request timed out"
	case errors.Is(err, client.ErrParse):
		status, code, msg = http.StatusBadGateway, "UPSTREAM_INVALID_RESPONSE", "Weather provider returned an invalid response"
	case errors.Is(err, client.ErrUpstream):
		status, code, msg = http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to fetch weather data"
	case errors.Is(err, store.ErrStore):
		status, code, msg = http.StatusInternalServerError, "STORE_UNAVAILABLE", "Weather store unavailable"
	}
	writeError(w, r, status, code, msg)
	observability.LoggerFromContext(r.Context(), zap.NewNop()).Debug("lookup error", zap.Int("status", status), zap.Error(err))
}

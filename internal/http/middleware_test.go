package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-proxy/internal/health"
	"github.com/kjstillabower/weather-proxy/internal/observability"
)

func TestCorrelationIDMiddleware_Generated(t *testing.T) {
	var seen string
	h := CorrelationIDMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.CorrelationID(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/weather/London", nil))

	got := w.Header().Get("X-Correlation-ID")
	if got == "" {
		t.Fatal("X-Correlation-ID header missing")
	}
	if seen != got {
		t.Errorf("context correlation ID = %q, want %q", seen, got)
	}
}

func TestCorrelationIDMiddleware_Propagated(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	h := CorrelationIDMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		observability.LoggerFromContext(r.Context(), zap.NewNop()).Info("inside")
	}))

	req := httptest.NewRequest(http.MethodGet, "/weather/London", nil)
	req.Header.Set("X-Correlation-ID", "client-provided-id")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get("X-Correlation-ID"); got != "client-provided-id" {
		t.Errorf("X-Correlation-ID = %q, want client-provided-id", got)
	}
	entries := logs.FilterMessage("inside").All()
	if len(entries) != 1 || entries[0].ContextMap()["correlation_id"] != "client-provided-id" {
		t.Errorf("request logger entries = %v, want correlation_id field", entries)
	}
}

func TestMetricsMiddleware_TracksInFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	h := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusTeapot)
	}))

	before := InFlightCount()
	var wg sync.WaitGroup
	wg.Add(1)
	rec := httptest.NewRecorder()
	go func() {
		defer wg.Done()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	}()

	<-entered
	if got := InFlightCount(); got != before+1 {
		t.Errorf("InFlightCount() during request = %d, want %d", got, before+1)
	}
	close(release)
	wg.Wait()

	if got := InFlightCount(); got != before {
		t.Errorf("InFlightCount() after request = %d, want %d", got, before)
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", rec.Code)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := WaitForInFlight(ctx, time.Millisecond); err != nil {
		t.Errorf("WaitForInFlight() error = %v", err)
	}
}

func TestGetRoute(t *testing.T) {
	tests := map[string]string{
		"/health":          "/health",
		"/metrics":         "/metrics",
		"/weather/London":  "/weather/{city}",
		"/weather/New%20Y": "/weather/{city}",
		"/random/path":     "other",
	}
	for path, want := range tests {
		if got := getRoute(httptest.NewRequest(http.MethodGet, path, nil)); got != want {
			t.Errorf("getRoute(%s) = %q, want %q", path, got, want)
		}
	}
}

func TestStatusCodeString(t *testing.T) {
	for code, want := range map[int]string{200: "2xx", 404: "4xx", 503: "5xx"} {
		if got := statusCodeString(code); got != want {
			t.Errorf("statusCodeString(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestTimeoutMiddleware_SetsDeadline(t *testing.T) {
	var hasDeadline bool
	h := TimeoutMiddleware(50 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/weather/London", nil))
	if !hasDeadline {
		t.Error("TimeoutMiddleware did not set a deadline")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	health.Reset()
	defer health.Reset()

	limiter := rate.NewLimiter(rate.Limit(1), 1)
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.NewNop()))
	router.Use(RateLimitMiddleware(limiter))
	router.HandleFunc("/weather/{city}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/weather/London", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", first.Code)
	}

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/weather/London", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", second.Code)
	}
	body := decodeError(t, second)
	if body.Error.Code != "RATE_LIMITED" {
		t.Errorf("code = %q, want RATE_LIMITED", body.Error.Code)
	}
	if body.Error.RequestID == "" || body.Error.RequestID != second.Header().Get("X-Correlation-ID") {
		t.Errorf("requestId = %q, want correlation ID", body.Error.RequestID)
	}
	if got := health.DenialCount(time.Minute); got != 1 {
		t.Errorf("DenialCount() = %d, want 1", got)
	}
}

func TestRateLimitMiddleware_NilLimiter(t *testing.T) {
	called := 0
	h := RateLimitMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called++ }))
	for i := 0; i < 5; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/weather/London", nil))
	}
	if called != 5 {
		t.Errorf("handler calls = %d, want 5", called)
	}
}

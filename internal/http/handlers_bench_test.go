package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-proxy/internal/cache"
	"github.com/kjstillabower/weather-proxy/internal/models"
	"github.com/kjstillabower/weather-proxy/internal/service"
	"github.com/kjstillabower/weather-proxy/internal/store"
)

type benchClient struct{}

func (benchClient) FetchFromProvider(ctx context.Context, city string) (models.WeatherRecord, error) {
	return models.WeatherRecord{RequestedCityName: city, ResolvedCityName: city, Temperature: 15}, nil
}

// BenchmarkHandler_GetWeather_CacheHit measures the full router path when the result cache is warm.
func BenchmarkHandler_GetWeather_CacheHit(b *testing.B) {
	svc := service.NewLookupService(benchClient{}, store.NewMemoryStore(), cache.NewInMemoryCache(), zap.NewNop(), false)
	router := NewRouter(NewHandler(svc, nil, zap.NewNop()), RouterConfig{}, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/weather/Seattle", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
}

// BenchmarkHandler_GetWeather_Validation measures rejection of invalid input.
func BenchmarkHandler_GetWeather_Validation(b *testing.B) {
	h := NewHandler(&mockLookup{}, nil, zap.NewNop())
	router := mux.NewRouter()
	router.HandleFunc("/weather/{city}", h.GetWeather)
	req := httptest.NewRequest(http.MethodGet, "/weather/bad%3Bcity", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
}

func BenchmarkHandler_GetHealth(b *testing.B) {
	h := NewHandler(&mockLookup{}, &HealthConfig{StorePing: func(context.Context) error { return nil }}, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.GetHealth(httptest.NewRecorder(), req)
	}
}

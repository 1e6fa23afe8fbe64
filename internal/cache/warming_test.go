package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kjstillabower/weather-proxy/internal/models"
)

type mockWeatherFetcher struct {
	mu     sync.Mutex
	calls  []string
	result models.WeatherResult
	failOn map[string]error
}

func (m *mockWeatherFetcher) GetWeatherByCity(ctx context.Context, city string) (models.WeatherResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, city)
	m.mu.Unlock()
	if err := m.failOn[city]; err != nil {
		return models.WeatherResult{}, err
	}
	out := m.result
	out.RequestedCityName = city
	return out, nil
}

func (m *mockWeatherFetcher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func TestStoreWarmer_Warm_Success(t *testing.T) {
	fetcher := &mockWeatherFetcher{result: models.WeatherResult{Temperature: 10}}
	warmer := NewStoreWarmer(fetcher, nil)

	if err := warmer.Warm(context.Background(), []string{"London", "Paris"}); err != nil {
		t.Fatalf("Warm() error = %v, want nil", err)
	}
	if got := fetcher.callCount(); got != 2 {
		t.Errorf("fetcher calls = %d, want 2", got)
	}
}

func TestStoreWarmer_Warm_EmptyCities(t *testing.T) {
	fetcher := &mockWeatherFetcher{}
	warmer := NewStoreWarmer(fetcher, nil)
	ctx := context.Background()

	if err := warmer.Warm(ctx, nil); err != nil {
		t.Fatalf("Warm() with nil cities error = %v, want nil", err)
	}
	if err := warmer.Warm(ctx, []string{}); err != nil {
		t.Fatalf("Warm() with empty cities error = %v, want nil", err)
	}
	if got := fetcher.callCount(); got != 0 {
		t.Errorf("fetcher calls = %d, want 0", got)
	}
}

func TestStoreWarmer_Warm_PartialFailure(t *testing.T) {
	apiDown := errors.New("api down")
	fetcher := &mockWeatherFetcher{failOn: map[string]error{"Paris": apiDown}}
	warmer := NewStoreWarmer(fetcher, nil)

	err := warmer.Warm(context.Background(), []string{"London", "Paris"})
	if !errors.Is(err, apiDown) {
		t.Fatalf("Warm() error = %v, want wrapping %v", err, apiDown)
	}
	if !strings.Contains(err.Error(), "warm Paris") {
		t.Errorf("Warm() error = %q, want city in message", err)
	}
	if got := fetcher.callCount(); got != 2 {
		t.Errorf("fetcher calls = %d, want 2 (failure must not stop other cities)", got)
	}
}

func TestStoreWarmer_WarmPeriodic_StopsOnCancel(t *testing.T) {
	fetcher := &mockWeatherFetcher{}
	warmer := NewStoreWarmer(fetcher, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- warmer.WarmPeriodic(ctx, []string{"London"}, 5*time.Millisecond) }()

	deadline := time.Now().Add(time.Second)
	for fetcher.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("WarmPeriodic() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WarmPeriodic() did not return after cancel")
	}
	if fetcher.callCount() < 2 {
		t.Errorf("fetcher calls = %d, want initial warm plus at least one tick", fetcher.callCount())
	}
}

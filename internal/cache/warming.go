package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-proxy/internal/models"
	"github.com/kjstillabower/weather-proxy/internal/observability"
)

// WeatherFetcher is implemented by the service layer.
// Used by StoreWarmer to avoid a circular dependency on the service package.
type WeatherFetcher interface {
	GetWeatherByCity(ctx context.Context, city string) (models.WeatherResult, error)
}

// StoreWarmer runs lookups for a fixed list of cities so that their persisted
// records stay within the freshness window.
type StoreWarmer struct {
	fetcher WeatherFetcher
	logger  *zap.Logger
}

// NewStoreWarmer creates a StoreWarmer that uses the given fetcher and logger.
func NewStoreWarmer(fetcher WeatherFetcher, logger *zap.Logger) *StoreWarmer {
	return &StoreWarmer{fetcher: fetcher, logger: logger}
}

// Warm looks up each city concurrently. Returns the joined errors of failed cities.
func (w *StoreWarmer) Warm(ctx context.Context, cities []string) error {
	start := time.Now()
	observability.StoreWarmingTotal.Inc()
	if w.logger != nil {
		w.logger.Info("warming store", zap.Int("cities", len(cities)))
	}
	var wg sync.WaitGroup
	errCh := make(chan error, len(cities))
	for _, city := range cities {
		city := city
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := w.fetcher.GetWeatherByCity(ctx, city); err != nil {
				errCh <- fmt.Errorf("warm %s: %w", city, err)
			}
		}()
	}
	wg.Wait()
	close(errCh)
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	duration := time.Since(start).Seconds()
	observability.StoreWarmingDurationSeconds.Observe(duration)
	if w.logger != nil {
		w.logger.Info("store warming complete", zap.Int("cities", len(cities)), zap.Int("errors", len(errs)), zap.Float64("duration_seconds", duration))
	}
	if len(errs) > 0 {
		observability.StoreWarmingErrorsTotal.Inc()
		return errors.Join(errs...)
	}
	return nil
}

// WarmPeriodic runs an initial Warm, then repeats at interval until ctx is done.
func (w *StoreWarmer) WarmPeriodic(ctx context.Context, cities []string, interval time.Duration) error {
	if err := w.Warm(ctx, cities); err != nil && w.logger != nil {
		w.logger.Warn("initial store warm failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Warm(ctx, cities); err != nil && w.logger != nil {
				w.logger.Warn("periodic store warm failed", zap.Error(err))
			}
		}
	}
}

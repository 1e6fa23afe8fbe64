package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kjstillabower/weather-proxy/internal/cache"
	"github.com/kjstillabower/weather-proxy/internal/client"
	"github.com/kjstillabower/weather-proxy/internal/models"
	"github.com/kjstillabower/weather-proxy/internal/observability"
	"github.com/kjstillabower/weather-proxy/internal/store"
)

// StalenessWindow is the maximum age of a persisted record that may be served
// without refetching. A record is stale iff FetchedAt < now - StalenessWindow.
const StalenessWindow = 30 * time.Minute

// LookupService serves weather by city: result cache first, then the latest
// persisted record if fresh, otherwise an upstream fetch that is persisted.
type LookupService struct {
	client client.WeatherClient
	store  store.Store
	cache  cache.Cache
	logger *zap.Logger
	now    func() time.Time

	// group collapses concurrent fetch+persist for one city; nil when disabled.
	group *singleflight.Group
}

// NewLookupService creates a LookupService. When coalesce is true, concurrent
// misses for the same city share a single upstream fetch and persist.
func NewLookupService(c client.WeatherClient, st store.Store, ch cache.Cache, logger *zap.Logger, coalesce bool) *LookupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &LookupService{
		client: c,
		store:  st,
		cache:  ch,
		logger: logger,
		now:    time.Now,
	}
	if coalesce {
		s.group = &singleflight.Group{}
	}
	return s
}

// IsStale reports whether a record fetched at fetchedAt is stale at now.
// A record exactly StalenessWindow old is still fresh.
func IsStale(fetchedAt, now time.Time) bool {
	return fetchedAt.Before(now.Add(-StalenessWindow))
}

// GetWeatherByCity returns current weather for city. city is used verbatim as
// both the cache key and the store lookup key.
// Errors wrap client.ErrUpstream, client.ErrParse or store.ErrStore; on error
// nothing is persisted and the cache is left untouched.
func (s *LookupService) GetWeatherByCity(ctx context.Context, city string) (models.WeatherResult, error) {
	logger := observability.LoggerFromContext(ctx, s.logger)

	cached, ok, err := s.cache.Get(ctx, city)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get").Inc()
		logger.Warn("cache get failed, continuing to store", zap.String("city", city), zap.Error(err))
	} else if ok {
		observability.LookupsTotal.WithLabelValues(observability.SourceCache).Inc()
		logger.Debug("cache hit", zap.String("city", city))
		return cached, nil
	}

	rec, found, err := s.findLatest(ctx, city)
	if err != nil {
		return s.fail(logger, city, err)
	}

	source := observability.SourceStore
	now := s.now()
	switch {
	case found && !IsStale(rec.FetchedAt, now):
		logger.Debug("fresh record in store", zap.String("city", city), zap.Time("fetched_at", rec.FetchedAt))
	default:
		if found {
			logger.Info("stale record, refetching", zap.String("city", city), zap.Duration("age", now.Sub(rec.FetchedAt)))
		}
		rec, err = s.refresh(ctx, city)
		if err != nil {
			return s.fail(logger, city, err)
		}
		source = observability.SourceUpstream
	}

	result := rec.ToResult()
	if err := s.cache.Set(ctx, city, result); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set").Inc()
		logger.Warn("cache set failed", zap.String("city", city), zap.Error(err))
	}
	observability.LookupsTotal.WithLabelValues(source).Inc()
	return result, nil
}

// ClearCache empties the entire result cache.
func (s *LookupService) ClearCache(ctx context.Context) error {
	return s.cache.Clear(ctx)
}

func (s *LookupService) fail(logger *zap.Logger, city string, err error) (models.WeatherResult, error) {
	category := client.CategorizeError(err)
	observability.LookupErrorsTotal.WithLabelValues(string(category)).Inc()
	logger.Warn("weather lookup failed", zap.String("city", city), zap.String("category", string(category)), zap.Error(err))
	return models.WeatherResult{}, err
}

// refresh fetches city upstream and persists the new record, coalescing
// concurrent callers when enabled. A coalesced fetch is detached from the
// caller that started it; each caller stops waiting when its own ctx is done.
func (s *LookupService) refresh(ctx context.Context, city string) (models.WeatherRecord, error) {
	if s.group == nil {
		return s.fetchAndSave(ctx, city)
	}
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(city, func() (interface{}, error) {
		return s.fetchAndSave(shared, city)
	})
	select {
	case <-ctx.Done():
		return models.WeatherRecord{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			observability.CoalescedFetchesTotal.Inc()
		}
		if res.Err != nil {
			return models.WeatherRecord{}, res.Err
		}
		return res.Val.(models.WeatherRecord), nil
	}
}

func (s *LookupService) fetchAndSave(ctx context.Context, city string) (models.WeatherRecord, error) {
	logger := observability.LoggerFromContext(ctx, s.logger)

	fetched, err := s.client.FetchFromProvider(ctx, city)
	if err != nil {
		return models.WeatherRecord{}, err
	}
	logger.Debug("fetched from provider", zap.String("city", city), zap.String("resolved", fetched.ResolvedCityName))

	start := time.Now()
	saved, err := s.store.Save(ctx, fetched)
	observeStore("save", start, err)
	if err != nil {
		return models.WeatherRecord{}, err
	}
	logger.Info("persisted weather record", zap.String("city", city), zap.String("id", saved.ID.String()))
	return saved, nil
}

func (s *LookupService) findLatest(ctx context.Context, city string) (models.WeatherRecord, bool, error) {
	start := time.Now()
	rec, found, err := s.store.FindLatestByRequestedCity(ctx, city)
	observeStore("find_latest", start, err)
	return rec, found, err
}

func observeStore(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.StoreOperationDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
}

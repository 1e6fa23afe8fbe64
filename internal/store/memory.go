package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/kjstillabower/weather-proxy/internal/models"
)

// MemoryStore is a concurrency-safe in-memory Store. History per city is kept in insert order.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]models.WeatherRecord
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]models.WeatherRecord)}
}

// FindLatestByRequestedCity implements Store. Ties on FetchedAt resolve to the later insert.
func (s *MemoryStore) FindLatestByRequestedCity(ctx context.Context, city string) (models.WeatherRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.WeatherRecord{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.data[city]
	if len(history) == 0 {
		return models.WeatherRecord{}, false, nil
	}
	latest := history[0]
	for _, rec := range history[1:] {
		if !rec.FetchedAt.Before(latest.FetchedAt) {
			latest = rec
		}
	}
	return latest, true, nil
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, rec models.WeatherRecord) (models.WeatherRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.WeatherRecord{}, err
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[rec.RequestedCityName] = append(s.data[rec.RequestedCityName], rec)
	return rec, nil
}

// Count returns the number of records held for city.
func (s *MemoryStore) Count(city string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data[city])
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

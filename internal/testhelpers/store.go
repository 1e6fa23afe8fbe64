package testhelpers

import (
	"context"
	"sync"

	"github.com/kjstillabower/weather-proxy/internal/models"
	"github.com/kjstillabower/weather-proxy/internal/store"
)

// CountingStore wraps a store.Store, counting calls and optionally injecting errors.
type CountingStore struct {
	Inner store.Store

	mu      sync.Mutex
	finds   int
	saves   int
	findErr error
	saveErr error
}

// NewCountingStore wraps inner.
func NewCountingStore(inner store.Store) *CountingStore {
	return &CountingStore{Inner: inner}
}

// FailFind makes every FindLatestByRequestedCity return err (nil to clear).
func (s *CountingStore) FailFind(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findErr = err
}

// FailSave makes every Save return err (nil to clear).
func (s *CountingStore) FailSave(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

// Finds returns the number of FindLatestByRequestedCity calls.
func (s *CountingStore) Finds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finds
}

// Saves returns the number of Save calls.
func (s *CountingStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *CountingStore) FindLatestByRequestedCity(ctx context.Context, city string) (models.WeatherRecord, bool, error) {
	s.mu.Lock()
	s.finds++
	err := s.findErr
	s.mu.Unlock()
	if err != nil {
		return models.WeatherRecord{}, false, err
	}
	return s.Inner.FindLatestByRequestedCity(ctx, city)
}

func (s *CountingStore) Save(ctx context.Context, rec models.WeatherRecord) (models.WeatherRecord, error) {
	s.mu.Lock()
	s.saves++
	err := s.saveErr
	s.mu.Unlock()
	if err != nil {
		return models.WeatherRecord{}, err
	}
	return s.Inner.Save(ctx, rec)
}

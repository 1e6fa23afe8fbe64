package store

import (
	"context"
	"errors"

	"github.com/kjstillabower/weather-proxy/internal/models"
)

// ErrStore wraps every persistence failure surfaced by a Store.
var ErrStore = errors.New("store failure")

// Store persists weather records and resolves the latest one per requested city.
// Implementations are insert-only: no update or delete.
type Store interface {
	// FindLatestByRequestedCity returns the record with the greatest FetchedAt among
	// records whose RequestedCityName equals city (case-sensitive). ok is false when none exist.
	FindLatestByRequestedCity(ctx context.Context, city string) (rec models.WeatherRecord, ok bool, err error)
	// Save inserts a new record and returns it with its storage identity attached.
	Save(ctx context.Context, rec models.WeatherRecord) (models.WeatherRecord, error)
}

// Pinger is implemented by backends that can report reachability for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

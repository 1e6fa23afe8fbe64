package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kjstillabower/weather-proxy/internal/models"
)

const pgxSchema = `
CREATE TABLE IF NOT EXISTS weather_records (
	id                     UUID PRIMARY KEY,
	requested_city_name    TEXT NOT NULL,
	resolved_city_name     TEXT NOT NULL,
	country                TEXT NOT NULL,
	temperature            DOUBLE PRECISION NOT NULL,
	fetched_at             TIMESTAMPTZ NOT NULL,
	local_time_at_location TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_requested_city_fetched
	ON weather_records (requested_city_name, fetched_at DESC);
`

// PgxStore implements Store with raw SQL over a pgx connection pool.
type PgxStore struct {
	pool *pgxpool.Pool
}

// NewPgxStore connects to dsn and returns a store. Call EnsureSchema before first use.
func NewPgxStore(ctx context.Context, dsn string) (*PgxStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", ErrStore, err)
	}
	return &PgxStore{pool: pool}, nil
}

// EnsureSchema creates the weather_records table and index if missing.
func (s *PgxStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, pgxSchema); err != nil {
		return fmt.Errorf("%w: ensure schema: %v", ErrStore, err)
	}
	return nil
}

// FindLatestByRequestedCity implements Store.
func (s *PgxStore) FindLatestByRequestedCity(ctx context.Context, city string) (models.WeatherRecord, bool, error) {
	query := `
		SELECT id, requested_city_name, resolved_city_name, country,
			   temperature, fetched_at, local_time_at_location
		FROM weather_records
		WHERE requested_city_name = $1
		ORDER BY fetched_at DESC
		LIMIT 1
	`
	var (
		rec models.WeatherRecord
		id  string
	)
	err := s.pool.QueryRow(ctx, query, city).Scan(
		&id, &rec.RequestedCityName, &rec.ResolvedCityName, &rec.Country,
		&rec.Temperature, &rec.FetchedAt, &rec.LocalTimeAtLocation,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.WeatherRecord{}, false, nil
		}
		return models.WeatherRecord{}, false, fmt.Errorf("%w: find latest for %q: %v", ErrStore, city, err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return models.WeatherRecord{}, false, fmt.Errorf("%w: scan id: %v", ErrStore, err)
	}
	rec.ID = parsed
	return rec, true, nil
}

// Save implements Store.
func (s *PgxStore) Save(ctx context.Context, rec models.WeatherRecord) (models.WeatherRecord, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	query := `
		INSERT INTO weather_records (
			id, requested_city_name, resolved_city_name, country,
			temperature, fetched_at, local_time_at_location
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.pool.Exec(ctx, query,
		rec.ID.String(), rec.RequestedCityName, rec.ResolvedCityName, rec.Country,
		rec.Temperature, rec.FetchedAt, rec.LocalTimeAtLocation,
	)
	if err != nil {
		return models.WeatherRecord{}, fmt.Errorf("%w: save record for %q: %v", ErrStore, rec.RequestedCityName, err)
	}
	return rec, nil
}

// Ping checks database connectivity.
func (s *PgxStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrStore, err)
	}
	return nil
}

// Close closes the pool.
func (s *PgxStore) Close() {
	s.pool.Close()
}

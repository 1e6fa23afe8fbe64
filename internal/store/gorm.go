package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kjstillabower/weather-proxy/internal/models"
)

// GormStore implements Store on a gorm database (postgres or sqlite).
type GormStore struct {
	db *gorm.DB
}

// PostgresDSN builds a libpq-style DSN. sslMode defaults to disable.
func PostgresDSN(user, password, dbName, host, port, sslMode string) string {
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC", host, user, password, dbName, port, sslMode)
}

// OpenPostgres opens a gorm connection to postgres.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), gormConfig())
}

// OpenSQLite opens a gorm connection to sqlite. Use "file::memory:?cache=shared" for an ephemeral database.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(dsn), gormConfig())
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
}

// NewGormStore migrates the weather_records table and returns a store over db.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&models.WeatherRecord{}); err != nil {
		return nil, fmt.Errorf("%w: migrate weather_records: %v", ErrStore, err)
	}
	return &GormStore{db: db}, nil
}

// FindLatestByRequestedCity implements Store.
func (s *GormStore) FindLatestByRequestedCity(ctx context.Context, city string) (models.WeatherRecord, bool, error) {
	var rec models.WeatherRecord
	err := s.db.WithContext(ctx).
		Where("requested_city_name = ?", city).
		Order("fetched_at DESC").
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.WeatherRecord{}, false, nil
		}
		return models.WeatherRecord{}, false, fmt.Errorf("%w: find latest for %q: %v", ErrStore, city, err)
	}
	return rec, true, nil
}

// Save implements Store. A UUID is assigned when rec.ID is unset. Times are stored
// in UTC: sqlite keeps them as text, and ordering by fetched_at compares that text.
func (s *GormStore) Save(ctx context.Context, rec models.WeatherRecord) (models.WeatherRecord, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.FetchedAt = rec.FetchedAt.UTC()
	rec.LocalTimeAtLocation = rec.LocalTimeAtLocation.UTC()
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return models.WeatherRecord{}, fmt.Errorf("%w: save record for %q: %v", ErrStore, rec.RequestedCityName, err)
	}
	return rec, nil
}

// Ping checks database reachability.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrStore, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

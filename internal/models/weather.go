package models

import (
	"time"

	"github.com/google/uuid"
)

// ProviderTimeLayout is the layout of location.localtime in provider responses.
const ProviderTimeLayout = "2006-01-02 15:04"

// WeatherRecord is one persisted upstream observation for a requested city.
// Records are insert-only; the latest for a city is the one with the greatest FetchedAt.
type WeatherRecord struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RequestedCityName   string    `gorm:"index:idx_requested_city_fetched,priority:1;not null" json:"requestedCityName"`
	ResolvedCityName    string    `json:"resolvedCityName"`
	Country             string    `json:"country"`
	Temperature         float64   `json:"temperature"`
	FetchedAt           time.Time `gorm:"index:idx_requested_city_fetched,priority:2;not null" json:"fetchedAt"`
	LocalTimeAtLocation time.Time `json:"localTimeAtLocation"`
}

// TableName pins the table name independent of gorm naming strategy.
func (WeatherRecord) TableName() string {
	return "weather_records"
}

// WeatherResult is the response view of a WeatherRecord. No storage identity is exposed.
type WeatherResult struct {
	RequestedCityName   string    `json:"requestedCityName"`
	ResolvedCityName    string    `json:"resolvedCityName"`
	Country             string    `json:"country"`
	Temperature         float64   `json:"temperature"`
	FetchedAt           time.Time `json:"fetchedAt"`
	LocalTimeAtLocation time.Time `json:"localTimeAtLocation"`
}

// ToResult projects the record into its response shape.
func (r WeatherRecord) ToResult() WeatherResult {
	return WeatherResult{
		RequestedCityName:   r.RequestedCityName,
		ResolvedCityName:    r.ResolvedCityName,
		Country:             r.Country,
		Temperature:         r.Temperature,
		FetchedAt:           r.FetchedAt,
		LocalTimeAtLocation: r.LocalTimeAtLocation,
	}
}

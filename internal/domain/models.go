// Package domain defines the persistence model for stored weather requests.
// The single entity is mapped with GORM and forms the core data layer of
// the application.
package domain

import (
	"time"
)

// DefaultProvider is the label recorded for the weather data source.
const DefaultProvider = "open-meteo"

// WeatherRequest is one stored lookup: the raw user input, the location it
// resolved to, the requested date range, and the weather payload fetched for
// that range.
//
// Fields:
//   - ID: integer primary key, assigned on creation, never reused.
//   - CreatedAt: set once at creation, immutable afterwards.
//   - LocationInput: the raw string the user supplied (name, landmark,
//     "lat,lon" pair, or US postal code).
//   - ResolvedName: human-readable place name from the resolver; nil when
//     reverse lookup produced nothing.
//   - Latitude / Longitude: degrees; always consistent with ResolvedName at
//     the time of the last resolve.
//   - DateFrom / DateTo: inclusive ISO calendar dates (YYYY-MM-DD) with
//     DateFrom <= DateTo and a span of at most 31 days.
//   - Provider: fixed data-source label ("open-meteo").
//   - WeatherJSON: the serialized WeatherPayload for the range.
//   - Notes: free text, user-settable, otherwise untouched.
type WeatherRequest struct {
	ID            uint      `json:"id"             gorm:"primaryKey"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"-"`
	LocationInput string    `json:"location_input" gorm:"type:varchar(255);not null"`
	ResolvedName  *string   `json:"resolved_name"  gorm:"type:varchar(255)"`
	Latitude      float64   `json:"latitude"       gorm:"not null"`
	Longitude     float64   `json:"longitude"      gorm:"not null"`
	DateFrom      string    `json:"date_from"      gorm:"type:date;not null"`
	DateTo        string    `json:"date_to"        gorm:"type:date;not null"`
	Provider      string    `json:"provider"       gorm:"type:varchar(32);not null;default:'open-meteo'"`
	WeatherJSON   string    `json:"-"              gorm:"type:text;not null"`
	Notes         *string   `json:"notes"          gorm:"type:text"`
}

// TableName returns the database table name for WeatherRequest.
func (WeatherRequest) TableName() string { return "weather_requests" }

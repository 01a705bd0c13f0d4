// Package weather defines the weather data model and the fetch service
// consumed by the home-screen coordinator.
package weather

import (
	"context"
	"time"
)

// Unit is the temperature unit weather is fetched and displayed in.
type Unit string

const (
	UnitCelsius    Unit = "celsius"
	UnitFahrenheit Unit = "fahrenheit"
)

// LatLong is a geographic coordinate pair.
type LatLong struct {
	Lat  float64 `json:"lat" toml:"lat"`
	Long float64 `json:"long" toml:"long"`
}

// Condition is a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionFog     Condition = "fog"
	ConditionDrizzle Condition = "drizzle"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
)

// Snapshot is one observed weather reading. Temperature is expressed in the
// unit the fetch was issued with.
type Snapshot struct {
	Temperature float64   `json:"temperature"`
	Condition   Condition `json:"condition"`
	WindSpeed   float64   `json:"windSpeed"`
	Humidity    float64   `json:"humidity"`
	ObservedAt  time.Time `json:"observedAt"`
}

// Info pairs a snapshot with the unit it was fetched in. A nil *Info in the
// view state means weather is unavailable or disabled.
type Info struct {
	Unit     Unit     `json:"unit"`
	Snapshot Snapshot `json:"snapshot"`
}

// Service fetches current weather for a location. Implementations must not
// retry on failure; the caller's scheduling policy owns re-triggering.
type Service interface {
	Fetch(ctx context.Context, loc LatLong, unit Unit) (*Snapshot, error)
}

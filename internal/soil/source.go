package soil

import (
	"context"
	"time"
)

// WeatherObservation is the typed view a weather source yields. Pointer fields
// distinguish a value absent from the payload from a genuine zero, so the
// builder can fall back per field.
type WeatherObservation struct {
	TemperatureC *float64
	HumidityPct  *float64
}

// AtmosphericSummary aggregates a reanalysis window into per-parameter means.
// A nil field means the upstream series carried no usable values.
type AtmosphericSummary struct {
	TemperatureC *float64
	HumidityPct  *float64
	PrecipMm     *float64
}

// SoilSample carries raw topsoil properties as reported upstream.
// Absent or malformed lookups arrive as 0; interpretation happens in the builder.
type SoilSample struct {
	ClayPct       float64
	SandPct       float64
	SiltPct       float64
	PH            float64
	OrganicCarbon float64
}

// WeatherResult pairs a weather observation with its fetch outcome.
type WeatherResult struct {
	Name        string
	Observation WeatherObservation
	OK          bool
}

// AtmosphericResult pairs an atmospheric summary with its fetch outcome.
type AtmosphericResult struct {
	Name    string
	Summary AtmosphericSummary
	OK      bool
}

// SoilResult pairs a soil sample with its fetch outcome.
type SoilResult struct {
	Name   string
	Sample SoilSample
	OK     bool
}

// WeatherSource abstracts a current-weather data source (e.g. OpenWeatherMap).
type WeatherSource interface {
	Name() string
	Current(ctx context.Context, c Coordinate) (WeatherObservation, bool)
}

// AtmosphericSource abstracts a reanalysis data source (e.g. NASA POWER).
type AtmosphericSource interface {
	Name() string
	Recent(ctx context.Context, c Coordinate) (AtmosphericSummary, bool)
}

// SoilPropertySource abstracts a mapped soil-property source (e.g. SoilGrids).
type SoilPropertySource interface {
	Name() string
	Properties(ctx context.Context, c Coordinate) (SoilSample, bool)
}

// Store is the contract any result store (memory or persistent) must satisfy.
type Store interface {
	SaveResult(ctx context.Context, res AnalysisResult) error
	GetLatest(ctx context.Context, c Coordinate) (AnalysisResult, error)
	GetRange(ctx context.Context, c Coordinate, from, to time.Time) ([]AnalysisResult, error)
	Close() error
}

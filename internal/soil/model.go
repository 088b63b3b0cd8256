package soil

import (
	"fmt"
	"math"
	"time"

	"github.com/rotisserie/eris"
)

// DataQuality represents how much of an analysis is backed by live,
// in-range source data.
type DataQuality string

const (
	QualityHigh         DataQuality = "high"
	QualityMedium       DataQuality = "medium"
	QualityLow          DataQuality = "low"
	QualityInsufficient DataQuality = "insufficient"
)

// Texture represents a classified soil texture label.
type Texture string

const (
	TextureSandy     Texture = "Sandy"
	TextureClay      Texture = "Clay"
	TextureSilty     Texture = "Silty"
	TextureSandyLoam Texture = "Sandy Loam"
	TextureClayLoam  Texture = "Clay Loam"
	TextureLoam      Texture = "Loam"
	TextureUnknown   Texture = "Unknown"
)

// Coordinate represents the WGS84 point an analysis is performed for.
// It is validated once at the orchestrator boundary and never mutated.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks that the coordinate lies on the globe.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return eris.Errorf("latitude %v outside [-90, 90]", c.Latitude)
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return eris.Errorf("longitude %v outside [-180, 180]", c.Longitude)
	}
	return nil
}

// Key returns a canonical string key for indexing this coordinate in stores.
func (c Coordinate) Key() string {
	return fmt.Sprintf("%.4f:%.4f", c.Latitude, c.Longitude)
}

// Measurement is a range-validated scalar. Valid is false when the raw value
// was absent, clamped, or synthesized from a default.
type Measurement struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// SoilComposition holds the clay/sand/silt split, rescaled to sum to 100.
// Valid is false when any component was missing or out of range.
type SoilComposition struct {
	ClayPct float64 `json:"clayPct"`
	SandPct float64 `json:"sandPct"`
	SiltPct float64 `json:"siltPct"`
	Valid   bool    `json:"valid"`
}

// EnvironmentalConditions is the normalized ambient view at the coordinate.
// Each field degrades independently when its source value is unusable.
type EnvironmentalConditions struct {
	Temperature   Measurement `json:"temperatureC"`
	Humidity      Measurement `json:"humidityPercent"`
	Precipitation Measurement `json:"precipMm"`
}

// SoilProfile is the validated agronomic view of the topsoil at the coordinate.
type SoilProfile struct {
	Composition   SoilComposition `json:"composition"`
	PH            Measurement     `json:"ph"`
	OrganicMatter Measurement     `json:"organicMatterPct"`
	Nitrogen      Measurement     `json:"nitrogenPct"`
	Moisture      Measurement     `json:"moisturePct"`
	Texture       Texture         `json:"texture"`
}

// AnalysisResult is the single structured artifact an analysis produces.
// It is immutable once built; the worst possible outcome is still a
// well-formed result with insufficient quality and an error description.
type AnalysisResult struct {
	Coordinate Coordinate              `json:"coordinate"`
	Conditions EnvironmentalConditions `json:"conditions"`
	Soil       SoilProfile             `json:"soil"`
	Quality    DataQuality             `json:"quality"`

	// Sources lists the upstream sources that contributed data.
	Sources []string `json:"sources,omitempty"`

	// Error carries the fault description for insufficient-quality results.
	Error string `json:"error,omitempty"`

	Timestamp time.Time `json:"timestamp"` // always UTC
}

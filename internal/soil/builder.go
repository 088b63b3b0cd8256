package soil

import (
	"math"

	"github.com/croptrace/soil-analysis/internal/common"
)

// Conversion factors for derived soil properties. Organic matter is estimated
// from soil organic carbon; nitrogen from organic matter.
const (
	organicMatterPerSOC = 0.058
	nitrogenPerOM       = 0.05
	neutralPH           = 7.0
)

// floatOrNaN unwraps an optional reading. NaN marks absence for Validate.
func floatOrNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

// BuildProfile merges the three source results into a validated profile and
// grades its quality. It is a pure function: identical inputs produce an
// identical result. Coordinate and Timestamp are stamped by the caller.
func BuildProfile(weather WeatherResult, atmospheric AtmosphericResult, soilRes SoilResult) AnalysisResult {
	// Ambient conditions: the live weather reading wins per field, the
	// reanalysis mean stands in when weather failed or omitted the field.
	// Precipitation only ever comes from the reanalysis source.
	tempRaw := math.NaN()
	if weather.OK && weather.Observation.TemperatureC != nil {
		tempRaw = *weather.Observation.TemperatureC
	} else if atmospheric.OK {
		tempRaw = floatOrNaN(atmospheric.Summary.TemperatureC)
	}

	humidityRaw := math.NaN()
	if weather.OK && weather.Observation.HumidityPct != nil {
		humidityRaw = *weather.Observation.HumidityPct
	} else if atmospheric.OK {
		humidityRaw = floatOrNaN(atmospheric.Summary.HumidityPct)
	}

	precipRaw := math.NaN()
	if atmospheric.OK {
		precipRaw = floatOrNaN(atmospheric.Summary.PrecipMm)
	}

	temp, tempValid := Validate(tempRaw, TemperatureRange)
	humidity, humidityValid := Validate(humidityRaw, HumidityRange)
	precip, precipValid := Validate(precipRaw, PrecipitationRange)

	conditions := EnvironmentalConditions{
		Temperature:   Measurement{Value: temp, Valid: tempValid},
		Humidity:      Measurement{Value: humidity, Valid: humidityValid},
		Precipitation: Measurement{Value: precip, Valid: precipValid},
	}

	sample := soilRes.Sample
	comp, _ := ValidateComposition(sample.ClayPct, sample.SandPct, sample.SiltPct)

	// A raw pH of exactly 0 means the layer was absent upstream: assume a
	// neutral default and flag it synthesized. Genuine out-of-range readings
	// are clamped by Validate instead, never replaced by the default.
	var ph Measurement
	if sample.PH == 0 {
		ph = Measurement{Value: neutralPH, Valid: false}
	} else {
		v, ok := Validate(sample.PH, PHRange)
		ph = Measurement{Value: v, Valid: ok}
	}

	om, omValid := Validate(sample.OrganicCarbon*organicMatterPerSOC, OrganicMatterRange)
	nitrogen, nitrogenValid := Validate(om*nitrogenPerOM, NitrogenRange)

	profile := SoilProfile{
		Composition:   comp,
		PH:            ph,
		OrganicMatter: Measurement{Value: om, Valid: omValid},
		Nitrogen:      Measurement{Value: nitrogen, Valid: nitrogenValid},
		Moisture:      estimateMoisture(comp, conditions),
		Texture:       ClassifyTexture(comp.ClayPct, comp.SandPct, comp.SiltPct),
	}

	sources := make([]string, 0, 3)
	if weather.OK && weather.Name != "" {
		sources = append(sources, weather.Name)
	}
	if atmospheric.OK && atmospheric.Name != "" {
		sources = append(sources, atmospheric.Name)
	}
	if soilRes.OK && soilRes.Name != "" {
		sources = append(sources, soilRes.Name)
	}

	return AnalysisResult{
		Conditions: conditions,
		Soil:       profile,
		Quality:    gradeQuality(weather.OK, atmospheric.OK, soilRes.OK, conditions, comp),
		Sources:    sources,
	}
}

// estimateMoisture derives a coarse topsoil moisture percentage from field
// capacity and recent ambient conditions. The estimate is flagged valid only
// when every value it derives from was itself valid.
func estimateMoisture(comp SoilComposition, cond EnvironmentalConditions) Measurement {
	fieldCapacity := (0.3*comp.ClayPct + 0.2*(100-comp.SandPct-comp.ClayPct)) / 100
	adjustment := (0.4*cond.Precipitation.Value + 0.4*cond.Humidity.Value - 0.2*cond.Temperature.Value) / 100
	estimate := common.Clamp(fieldCapacity*(1+adjustment)*100, MoistureRange.Low, MoistureRange.High)

	valid := comp.Valid && cond.Temperature.Valid && cond.Humidity.Valid && cond.Precipitation.Valid
	return Measurement{Value: common.Round2(estimate), Valid: valid}
}

// gradeQuality maps source availability and field validity to a verdict.
// Adding a source or upgrading a field to valid never lowers the verdict.
func gradeQuality(weatherOK, atmosphericOK, soilOK bool, cond EnvironmentalConditions, comp SoilComposition) DataQuality {
	okCount := 0
	for _, ok := range []bool{weatherOK, atmosphericOK, soilOK} {
		if ok {
			okCount++
		}
	}

	envValid := cond.Temperature.Valid && cond.Humidity.Valid && cond.Precipitation.Valid

	switch {
	case okCount == 0:
		return QualityInsufficient
	case okCount == 3 && envValid && comp.Valid:
		return QualityHigh
	case cond.Temperature.Valid && comp.Valid:
		return QualityMedium
	default:
		return QualityLow
	}
}

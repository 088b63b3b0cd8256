package soil

import "math"

// Range bounds one physical quantity. Values outside the bounds are pinned to
// the nearer bound rather than rejected.
type Range struct {
	Low  float64
	High float64
}

// Validation bounds for every quantity a profile carries.
// The table is fixed at startup and never mutated.
var (
	TemperatureRange   = Range{Low: -50, High: 60}
	HumidityRange      = Range{Low: 0, High: 100}
	PrecipitationRange = Range{Low: 0, High: 100}
	CompositionRange   = Range{Low: 0, High: 100}
	PHRange            = Range{Low: 3, High: 10}
	OrganicMatterRange = Range{Low: 0, High: 30}
	NitrogenRange      = Range{Low: 0, High: 5}
	MoistureRange      = Range{Low: 0, High: 100}
)

// Validate pins value into r. NaN marks an absent reading and pins to the low
// bound. The boolean is false whenever the returned value differs from the raw
// input, so no silent NaN or out-of-range value ever propagates downstream.
func Validate(value float64, r Range) (float64, bool) {
	if math.IsNaN(value) {
		return r.Low, false
	}
	if value < r.Low {
		return r.Low, false
	}
	if value > r.High {
		return r.High, false
	}
	return value, true
}

// ValidateComposition validates the clay/sand/silt triple component-wise and
// rescales it so the parts sum to 100. An all-zero triple cannot be rescaled
// and comes back as the zero composition, invalid.
func ValidateComposition(clay, sand, silt float64) (SoilComposition, bool) {
	c, cvalid := Validate(clay, CompositionRange)
	s, svalid := Validate(sand, CompositionRange)
	si, sivalid := Validate(silt, CompositionRange)

	sum := c + s + si
	if sum == 0 {
		return SoilComposition{}, false
	}

	factor := 100 / sum
	allValid := cvalid && svalid && sivalid
	return SoilComposition{
		ClayPct: c * factor,
		SandPct: s * factor,
		SiltPct: si * factor,
		Valid:   allValid,
	}, allValid
}

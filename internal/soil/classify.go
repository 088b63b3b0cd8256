package soil

import "math"

// ClassifyTexture maps a clay/sand/silt split to its texture class.
// The checks run in a fixed order and the first match wins, so boundary
// compositions always classify the same way.
func ClassifyTexture(clay, sand, silt float64) Texture {
	for _, v := range []float64{clay, sand, silt} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return TextureUnknown
		}
	}

	switch {
	case sand >= 85:
		return TextureSandy
	case clay >= 40:
		return TextureClay
	case silt >= 80:
		return TextureSilty
	case sand >= 70:
		return TextureSandyLoam
	case clay >= 27 && silt >= 28 && sand <= 45:
		return TextureClayLoam
	default:
		return TextureLoam
	}
}

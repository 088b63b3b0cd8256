package sources

import "strconv"

// formatCoord renders a coordinate component for a query string without
// trailing zeros.
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

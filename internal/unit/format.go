package unit

import "strconv"

// FormatMagnitude renders a magnitude the way every output path does:
// shortest representation that round-trips. Observers rely on this
// being stable so replayed runs produce byte-identical output.
func FormatMagnitude(m float64) string {
	return strconv.FormatFloat(m, 'g', -1, 64)
}

func formatValue(m float64, u Unit) string {
	return FormatMagnitude(m) + " " + u.String()
}

package angle

import "math"

// Normalize maps an angle in degrees of any magnitude into (-180, 180] by
// adding or subtracting whole turns.  -180 maps to 180.
func Normalize(a float64) float64 {
	if a > -180 && a <= 180 {
		return a
	}
	d := math.Mod(a, 360)
	if d <= -180 {
		d += 360
	} else if d > 180 {
		d -= 360
	}
	return d
}

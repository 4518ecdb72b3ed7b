package math

import "math"

// Lerp returns a + (b-a)*t.
func Lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

// Clamp limits v to [lo, hi]. NaN is returned as lo.
func Clamp(v, lo, hi float32) float32 {
	if !(v >= lo) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 limits v to [0, 1].
func Clamp01(v float32) float32 {
	return Clamp(v, 0, 1)
}

// SinCosDeg returns the sine and cosine of deg degrees.
// Multiples of 90 return exact values so axis-aligned footprints keep crisp edges.
func SinCosDeg(deg float32) (sin, cos float32) {
	d := math.Mod(float64(deg), 360)
	if d < 0 {
		d += 360
	}
	switch d {
	case 0:
		return 0, 1
	case 90:
		return 1, 0
	case 180:
		return 0, -1
	case 270:
		return -1, 0
	}
	s, c := math.Sincos(d * math.Pi / 180)
	return float32(s), float32(c)
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}

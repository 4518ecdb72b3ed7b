package math

import "math"

// Rect is an axis-aligned ground-plane rectangle, Min inclusive and Max exclusive.
type Rect struct {
	Min, Max Vec2
}

// BoundsOf returns the smallest Rect containing all points.
func BoundsOf(points ...Vec2) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	r := Rect{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		r.Min.X = min(r.Min.X, p.X)
		r.Min.Y = min(r.Min.Y, p.Y)
		r.Max.X = max(r.Max.X, p.X)
		r.Max.Y = max(r.Max.Y, p.Y)
	}
	return r
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return !(r.Min.X < r.Max.X && r.Min.Y < r.Max.Y)
}

// IntRect is an integer texel range, Min inclusive and Max exclusive.
type IntRect struct {
	MinX, MinY, MaxX, MaxY int
}

// Empty reports whether the range covers no texels.
func (r IntRect) Empty() bool {
	return r.MinX >= r.MaxX || r.MinY >= r.MaxY
}

// TexelRange converts a rectangle given in texel units (0..w, 0..h) to the
// texels whose centers it may contain, clipped to a w×h grid.
func (r Rect) TexelRange(w, h int) IntRect {
	fw, fh := float64(w), float64(h)
	return IntRect{
		MinX: int(math.Floor(clamp64(float64(r.Min.X), 0, fw))),
		MinY: int(math.Floor(clamp64(float64(r.Min.Y), 0, fh))),
		MaxX: int(math.Ceil(clamp64(float64(r.Max.X), 0, fw))),
		MaxY: int(math.Ceil(clamp64(float64(r.Max.Y), 0, fh))),
	}
}

func clamp64(v, lo, hi float64) float64 {
	if !(v >= lo) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Package heightmap provides the terrain height grid and its world-space placement.
//
// Samples are normalized to [0, 1] and stored row-major: column x runs along
// world +X and row y along world +Z. Texel (x, y) is centered at UV
// ((x+0.5)/Width, (y+0.5)/Height).
package heightmap

import (
	"errors"
	"fmt"

	"github.com/Faultbox/terrain-projector/pkg/math"
)

// ErrResourceMismatch is returned when buffers disagree on resolution or layout.
var ErrResourceMismatch = errors.New("resource mismatch")

// Buffer is a readable and writable 2D scalar grid.
type Buffer interface {
	Size() (width, height int)
	At(x, y int) float32
	Set(x, y int, v float32)
}

// Extent places a heightmap in the world.
type Extent struct {
	Origin math.Vec3 // World position of the (0, 0) corner
	Size   math.Vec2 // World size along X (Size.X) and Z (Size.Y)
}

// Bounds returns the ground-plane rectangle covered by the extent.
func (e Extent) Bounds() math.Rect {
	o := e.Origin.XZ()
	return math.Rect{Min: o, Max: o.Add(e.Size)}
}

// Heightmap is a terrain height grid anchored in the world.
type Heightmap struct {
	Width   int
	Height  int
	Samples []float32
	Extent  Extent
}

// New creates a heightmap filled with fill.
func New(width, height int, extent Extent, fill float32) *Heightmap {
	samples := make([]float32, width*height)
	if fill != 0 {
		for i := range samples {
			samples[i] = fill
		}
	}
	return &Heightmap{
		Width:   width,
		Height:  height,
		Samples: samples,
		Extent:  extent,
	}
}

// Validate checks that the sample buffer and extent are consistent.
func (h *Heightmap) Validate() error {
	if h.Width <= 0 || h.Height <= 0 {
		return fmt.Errorf("%w: heightmap resolution %dx%d", ErrResourceMismatch, h.Width, h.Height)
	}
	if len(h.Samples) != h.Width*h.Height {
		return fmt.Errorf("%w: heightmap has %d samples, want %d", ErrResourceMismatch, len(h.Samples), h.Width*h.Height)
	}
	if !h.Extent.Size.Positive() {
		return fmt.Errorf("%w: terrain size %v", ErrResourceMismatch, h.Extent.Size)
	}
	return nil
}

// Size returns the grid resolution.
func (h *Heightmap) Size() (width, height int) {
	return h.Width, h.Height
}

// At returns the sample at (x, y). Coordinates must be in range.
func (h *Heightmap) At(x, y int) float32 {
	return h.Samples[y*h.Width+x]
}

// Set writes the sample at (x, y). Coordinates must be in range.
func (h *Heightmap) Set(x, y int, v float32) {
	h.Samples[y*h.Width+x] = v
}

// Clone returns a deep copy.
func (h *Heightmap) Clone() *Heightmap {
	c := *h
	c.Samples = make([]float32, len(h.Samples))
	copy(c.Samples, h.Samples)
	return &c
}

// SameResolution reports whether other has the same width and height.
func (h *Heightmap) SameResolution(other *Heightmap) bool {
	return h.Width == other.Width && h.Height == other.Height
}

// Equal reports whether both heightmaps have identical resolution, extent and samples.
func (h *Heightmap) Equal(other *Heightmap) bool {
	if !h.SameResolution(other) || h.Extent != other.Extent || len(h.Samples) != len(other.Samples) {
		return false
	}
	for i, v := range h.Samples {
		if v != other.Samples[i] {
			return false
		}
	}
	return true
}

// TexelUV returns the UV of the center of texel (x, y) in a width×height grid.
func TexelUV(x, y, width, height int) (u, v float32) {
	return (float32(x) + 0.5) / float32(width), (float32(y) + 0.5) / float32(height)
}

// HeightAt returns the bilinearly interpolated height at a world ground
// position. Positions off the terrain take the height of the nearest edge.
func (h *Heightmap) HeightAt(worldX, worldZ float32) float32 {
	u, v := WorldToUV(math.Vec3{X: worldX, Z: worldZ}, h.Extent.Origin, h.Extent.Size)

	// Texel space with texel centers on integers
	fx := math.Clamp(u*float32(h.Width)-0.5, 0, float32(h.Width-1))
	fy := math.Clamp(v*float32(h.Height)-0.5, 0, float32(h.Height-1))

	x0, y0 := int(fx), int(fy)
	x1, y1 := min(x0+1, h.Width-1), min(y0+1, h.Height-1)
	tx, ty := fx-float32(x0), fy-float32(y0)

	// Lerp along X on both rows, then along Z
	near := math.Lerp(h.At(x0, y0), h.At(x1, y0), tx)
	far := math.Lerp(h.At(x0, y1), h.At(x1, y1), tx)
	return math.Lerp(near, far, ty)
}

// Stats summarizes the sample distribution.
type Stats struct {
	Min, Max, Mean float32
}

// Stats returns the minimum, maximum and mean sample.
func (h *Heightmap) Stats() Stats {
	if len(h.Samples) == 0 {
		return Stats{}
	}
	s := Stats{Min: h.Samples[0], Max: h.Samples[0]}
	var sum float64
	for _, v := range h.Samples {
		s.Min = min(s.Min, v)
		s.Max = max(s.Max, v)
		sum += float64(v)
	}
	s.Mean = float32(sum / float64(len(h.Samples)))
	return s
}

// WorldToUV maps a world position onto terrain UV space.
// Results outside [0, 1] mean the point lies off the terrain; no clamping is done.
func WorldToUV(worldPos, origin math.Vec3, size math.Vec2) (u, v float32) {
	u = (worldPos.X - origin.X) / size.X
	v = (worldPos.Z - origin.Z) / size.Y
	return u, v
}

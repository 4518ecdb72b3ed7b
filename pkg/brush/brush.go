// Package brush provides grayscale brush images and their UV sampling.
//
// Brushes are sampled in zero-based UV space: (0, 0) is the bottom-left
// corner of the image and (1, 1) the top-right, so the top of the image
// points along the projector's local +Z axis.
package brush

import (
	"fmt"
	"math"
	"strings"

	"github.com/Faultbox/terrain-projector/pkg/heightmap"
)

// Filter selects how a brush is sampled between texel centers.
type Filter uint8

const (
	// FilterBilinear interpolates between the 4 nearest texels.
	FilterBilinear Filter = iota
	// FilterNearest picks the texel containing the coordinate.
	FilterNearest
)

// String returns the config name of the filter.
func (f Filter) String() string {
	switch f {
	case FilterBilinear:
		return "bilinear"
	case FilterNearest:
		return "nearest"
	default:
		return fmt.Sprintf("Filter(%d)", f)
	}
}

// ParseFilter parses a filter name. An empty name selects bilinear.
func ParseFilter(s string) (Filter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bilinear", "linear":
		return FilterBilinear, nil
	case "nearest", "point":
		return FilterNearest, nil
	default:
		return 0, fmt.Errorf("unknown brush filter %q", s)
	}
}

// Brush is an immutable grayscale image with values in [0, 1].
// Pix is row-major with row 0 at the top of the image.
type Brush struct {
	Name   string
	Width  int
	Height int
	Pix    []float32
}

// New creates a brush from row-major pixel values.
func New(name string, width, height int, pix []float32) (*Brush, error) {
	b := &Brush{Name: name, Width: width, Height: height, Pix: pix}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Solid returns a 1×1 brush of constant value.
func Solid(value float32) *Brush {
	return &Brush{Name: fmt.Sprintf("solid(%g)", value), Width: 1, Height: 1, Pix: []float32{value}}
}

// Validate checks that the pixel buffer matches the declared resolution.
func (b *Brush) Validate() error {
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("%w: brush %q resolution %dx%d", heightmap.ErrResourceMismatch, b.Name, b.Width, b.Height)
	}
	if len(b.Pix) != b.Width*b.Height {
		return fmt.Errorf("%w: brush %q has %d pixels, want %d", heightmap.ErrResourceMismatch, b.Name, len(b.Pix), b.Width*b.Height)
	}
	return nil
}

// at returns the pixel at (x, y) clamped to the image edge.
func (b *Brush) at(x, y int) float32 {
	x = clamp(x, 0, b.Width-1)
	y = clamp(y, 0, b.Height-1)
	return b.Pix[y*b.Width+x]
}

// Sample returns the brush value at (u, v) using the given filter.
// Coordinates outside [0, 1] clamp to the edge.
func (b *Brush) Sample(u, v float32, f Filter) float32 {
	if f == FilterNearest {
		return b.SampleNearest(u, v)
	}
	return b.SampleBilinear(u, v)
}

// SampleNearest returns the texel containing (u, v).
func (b *Brush) SampleNearest(u, v float32) float32 {
	x := int(math.Floor(float64(u) * float64(b.Width)))
	y := int(math.Floor((1 - float64(v)) * float64(b.Height)))
	return b.at(x, y)
}

// SampleBilinear interpolates between the 4 texels around (u, v).
func (b *Brush) SampleBilinear(u, v float32) float32 {
	fx := float64(u)*float64(b.Width) - 0.5
	fy := (1-float64(v))*float64(b.Height) - 0.5

	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	tx := fx - float64(x0)
	ty := fy - float64(y0)

	v00 := float64(b.at(x0, y0))
	v10 := float64(b.at(x0+1, y0))
	v01 := float64(b.at(x0, y0+1))
	v11 := float64(b.at(x0+1, y0+1))

	return float32(lerp(lerp(v00, v10, tx), lerp(v01, v11, tx), ty))
}

func clamp(val, minVal, maxVal int) int {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

func lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

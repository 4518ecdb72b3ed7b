package composite

import (
	"github.com/Faultbox/terrain-projector/internal/projector"
	"github.com/Faultbox/terrain-projector/pkg/math"
)

// Contribution is the height a projector proposes at a texel: brush*strength + offset.
func Contribution(brush, strength, offset float32) float32 {
	return brush*strength + offset
}

// Blend combines a brush sample with the accumulated base height.
// The result is not clamped; Apply clamps it to the valid height range.
func Blend(mode projector.BlendMode, base, brush, strength, offset float32) float32 {
	c := Contribution(brush, strength, offset)
	switch mode {
	case projector.BlendMax:
		return max(base, c)
	case projector.BlendMin:
		return min(base, c)
	case projector.BlendOverlay:
		return base + c
	case projector.BlendBlend:
		return math.Lerp(base, c, brush)
	default:
		return base
	}
}

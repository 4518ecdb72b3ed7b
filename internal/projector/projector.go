// Package projector holds the ordered list of height projectors placed over a terrain.
package projector

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/Faultbox/terrain-projector/pkg/brush"
	"github.com/Faultbox/terrain-projector/pkg/math"
)

// BlendMode selects how a projector combines with the height beneath it.
type BlendMode uint8

// Blend modes.
const (
	BlendMax     BlendMode = iota // Raise terrain where the brush is higher
	BlendOverlay                  // Add the brush on top of the terrain
	BlendMin                      // Lower terrain where the brush is lower
	BlendBlend                    // Fade toward the brush, weighted by the brush itself
)

// String returns the lowercase name of the mode.
func (m BlendMode) String() string {
	switch m {
	case BlendMax:
		return "max"
	case BlendOverlay:
		return "overlay"
	case BlendMin:
		return "min"
	case BlendBlend:
		return "blend"
	default:
		return fmt.Sprintf("BlendMode(%d)", m)
	}
}

// Valid reports whether m is one of the defined modes.
func (m BlendMode) Valid() bool {
	return m <= BlendBlend
}

// ParseBlendMode parses a mode name. The paint_* keyword spellings are accepted too.
func ParseBlendMode(s string) (BlendMode, error) {
	name := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "paint_")
	switch name {
	case "max":
		return BlendMax, nil
	case "overlay":
		return BlendOverlay, nil
	case "min":
		return BlendMin, nil
	case "blend":
		return BlendBlend, nil
	default:
		return 0, fmt.Errorf("unknown blend mode %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m BlendMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid blend mode %d", m)
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *BlendMode) UnmarshalText(text []byte) error {
	parsed, err := ParseBlendMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Transform is the placement of a projector: a world position and a yaw in degrees.
type Transform struct {
	Position math.Vec3
	Yaw      float32
}

// ID identifies a projector within a Model.
type ID uint64

// Projector projects a brush straight down onto the terrain.
type Projector struct {
	ID         ID
	Name       string
	Transform  Transform
	Scale      math.Vec2 // Footprint width (local X) and depth (local Z) in world units
	Brush      *brush.Brush
	Mode       BlendMode
	Strength   float32
	Offset     float32
	GizmoColor color.RGBA

	last Transform
}

// Default returns a projector with the standard starting parameters.
func Default() Projector {
	return Projector{
		Scale:      math.Vec2{X: 100, Y: 100},
		Mode:       BlendMax,
		Strength:   0.1,
		Offset:     0,
		GizmoColor: color.RGBA{G: 255, A: 255},
	}
}

// Moved reports whether the transform differs from the last recorded one.
func (p *Projector) Moved() bool {
	return p.Transform != p.last
}

// Corners returns the four world ground-plane corners of the rotated footprint.
func (p *Projector) Corners() [4]math.Vec2 {
	c := p.Transform.Position.XZ()
	hx, hz := p.Scale.X/2, p.Scale.Y/2
	local := [4]math.Vec2{{X: -hx, Y: -hz}, {X: hx, Y: -hz}, {X: hx, Y: hz}, {X: -hx, Y: hz}}
	var out [4]math.Vec2
	for i, l := range local {
		out[i] = c.Add(l.RotateYaw(p.Transform.Yaw))
	}
	return out
}

// Problem describes why a projector cannot cover any terrain, or "" if it can.
func (p *Projector) Problem() string {
	switch {
	case p.Brush == nil:
		return "missing brush"
	case !p.Scale.Positive() || !math.IsFinite(p.Scale.X) || !math.IsFinite(p.Scale.Y):
		return fmt.Sprintf("invalid footprint scale %v", p.Scale)
	case !math.IsFinite(p.Transform.Position.X) || !math.IsFinite(p.Transform.Position.Z) || !math.IsFinite(p.Transform.Yaw):
		return "non-finite transform"
	case !p.Mode.Valid():
		return fmt.Sprintf("invalid blend mode %d", p.Mode)
	}
	return ""
}

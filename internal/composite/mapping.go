package composite

import (
	"github.com/Faultbox/terrain-projector/internal/projector"
	"github.com/Faultbox/terrain-projector/pkg/heightmap"
	"github.com/Faultbox/terrain-projector/pkg/math"
)

// footprint maps texels of one heightmap into the brush space of one projector.
type footprint struct {
	center   math.Vec2 // projector position in terrain UV
	size     math.Vec2 // terrain world size
	scale    math.Vec2 // projector footprint size
	sin, cos float32   // rotation from world into projector-local space
}

func newFootprint(ext heightmap.Extent, p *projector.Projector) footprint {
	u, v := heightmap.WorldToUV(p.Transform.Position, ext.Origin, ext.Size)
	s, c := math.SinCosDeg(-p.Transform.Yaw)
	return footprint{
		center: math.Vec2{X: u, Y: v},
		size:   ext.Size,
		scale:  p.Scale,
		sin:    s,
		cos:    c,
	}
}

// brushUV returns the zero-based brush coordinate of the texel centered at
// terrain UV (u, v), and whether it falls inside the footprint.
func (f *footprint) brushUV(u, v float32) (bu, bv float32, inside bool) {
	offset := math.Vec2{X: u, Y: v}.Sub(f.center).Mul(f.size)
	local := offset.RotateSinCos(f.sin, f.cos).Div(f.scale)
	bu = local.X + 0.5
	bv = local.Y + 0.5
	inside = bu >= 0 && bu <= 1 && bv >= 0 && bv <= 1
	return bu, bv, inside
}

// texelRange returns the texels whose centers may lie inside the projector's
// rotated footprint, clipped to the grid. It is empty when the footprint is
// entirely off the terrain.
func texelRange(ext heightmap.Extent, width, height int, p *projector.Projector) math.IntRect {
	corners := p.Corners()
	var texel [4]math.Vec2
	for i, c := range corners {
		u, v := heightmap.WorldToUV(math.Vec3{X: c.X, Z: c.Y}, ext.Origin, ext.Size)
		texel[i] = math.Vec2{X: u * float32(width), Y: v * float32(height)}
	}
	return math.BoundsOf(texel[:]...).TexelRange(width, height)
}

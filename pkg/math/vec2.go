// Package math provides the small float32 vector toolkit used for terrain placement.
package math

// Vec2 is a 2D vector. On the ground plane X is world X and Y is world Z.
type Vec2 struct {
	X, Y float32
}

// Add returns v + other.
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{v.X + other.X, v.Y + other.Y}
}

// Sub returns v - other.
func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{v.X - other.X, v.Y - other.Y}
}

// Scale returns v * scalar.
func (v Vec2) Scale(s float32) Vec2 {
	return Vec2{v.X * s, v.Y * s}
}

// Mul returns the component-wise product.
func (v Vec2) Mul(other Vec2) Vec2 {
	return Vec2{v.X * other.X, v.Y * other.Y}
}

// Div returns the component-wise quotient. Zero components of other yield Inf/NaN.
func (v Vec2) Div(other Vec2) Vec2 {
	return Vec2{v.X / other.X, v.Y / other.Y}
}

// RotateYaw rotates a ground-plane vector by deg degrees, clockwise when
// viewed from above. A yaw of 90 turns +Z (Y) into +X.
func (v Vec2) RotateYaw(deg float32) Vec2 {
	return v.RotateSinCos(SinCosDeg(deg))
}

// RotateSinCos is RotateYaw with the sine and cosine of the angle precomputed.
func (v Vec2) RotateSinCos(sin, cos float32) Vec2 {
	return Vec2{
		X: v.X*cos + v.Y*sin,
		Y: -v.X*sin + v.Y*cos,
	}
}

// Positive reports whether both components are strictly greater than zero.
// NaN components are not positive.
func (v Vec2) Positive() bool {
	return v.X > 0 && v.Y > 0
}

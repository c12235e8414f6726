// Package geometry provides the planar primitives the navigation graph and
// the graph constructor are built on: positions and line segments.
package geometry

import "math"

// Position is a point (or displacement) in the plane
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPosition creates a position from two coordinates
func NewPosition(x, y float64) Position {
	return Position{X: x, Y: y}
}

// Add returns p + other
func (p Position) Add(other Position) Position {
	return Position{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns p - other
func (p Position) Sub(other Position) Position {
	return Position{X: p.X - other.X, Y: p.Y - other.Y}
}

// Scale multiplies both coordinates by factor
func (p Position) Scale(factor float64) Position {
	return Position{X: p.X * factor, Y: p.Y * factor}
}

// Magnitude is the Euclidean length of p taken as a vector
func (p Position) Magnitude() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y)
}

// DistanceTo calculates the Euclidean distance between two positions
func (p Position) DistanceTo(other Position) float64 {
	return p.Sub(other).Magnitude()
}

// Dot computes the dot product of p and other
func (p Position) Dot(other Position) float64 {
	return p.X*other.X + p.Y*other.Y
}

// Orthogonal returns p rotated by 90 degrees clockwise
func (p Position) Orthogonal() Position {
	return Position{X: p.Y, Y: -p.X}
}

// Normalized returns the magnitude of p and p scaled to unit length.
// The zero vector normalizes to itself.
func (p Position) Normalized() (float64, Position) {
	mag := p.Magnitude()
	if mag == 0 {
		return 0, Position{}
	}
	return mag, Position{X: p.X / mag, Y: p.Y / mag}
}

// ApproxEqual reports whether both coordinates differ by at most tolerance
func (p Position) ApproxEqual(other Position, tolerance float64) bool {
	return math.Abs(p.X-other.X) <= tolerance && math.Abs(p.Y-other.Y) <= tolerance
}

// Distance calculates Euclidean distance between two positions
func Distance(a, b Position) float64 {
	return a.DistanceTo(b)
}

package geometry

import (
	"errors"
	"fmt"
	"math"
)

// Epsilon is the parametric tolerance used by the segment tests. It keeps
// endpoint touches and near-parallel near misses out of the results.
const Epsilon = 1e-5

// ErrShorteningTooLarge is the panic value of Shortened when the requested
// distance would consume half of the segment or more.
var ErrShorteningTooLarge = errors.New("geometry: shortening distance is too large")

// Segment is a line segment between two positions. Direction data is derived
// once at construction.
type Segment struct {
	start      Position
	end        Position
	delta      Position
	length     float64
	unit       Position
	orthogonal Position
}

// NewSegment creates the segment from start to end
func NewSegment(start, end Position) Segment {
	delta := end.Sub(start)
	length, unit := delta.Normalized()
	return Segment{
		start:      start,
		end:        end,
		delta:      delta,
		length:     length,
		unit:       unit,
		orthogonal: unit.Orthogonal(),
	}
}

// Start returns the first endpoint
func (s Segment) Start() Position { return s.start }

// End returns the second endpoint
func (s Segment) End() Position { return s.end }

// Length returns the Euclidean length of the segment
func (s Segment) Length() float64 { return s.length }

// Direction returns the unit vector from start to end (zero for a degenerate segment)
func (s Segment) Direction() Position { return s.unit }

// Normal returns Direction rotated by 90 degrees
func (s Segment) Normal() Position { return s.orthogonal }

// Bounds returns the lower-left and upper-right corners of the axis-aligned
// bounding box.
func (s Segment) Bounds() (Position, Position) {
	return Position{X: math.Min(s.start.X, s.end.X), Y: math.Min(s.start.Y, s.end.Y)},
		Position{X: math.Max(s.start.X, s.end.X), Y: math.Max(s.start.Y, s.end.Y)}
}

// Intersects reports whether the two segments properly cross.
//
// Both parametric intersection coordinates, solved with Cramer's rule, have to
// lie strictly inside (Epsilon, 1-Epsilon). Shared endpoints therefore do not
// count as crossings, and parallel or collinear segments never intersect.
func (s Segment) Intersects(other Segment) bool {
	startDelta := other.start.Sub(s.start)

	baseDet := -s.delta.X*other.delta.Y + s.delta.Y*other.delta.X
	if baseDet == 0 {
		return false
	}
	ownDet := -startDelta.X*other.delta.Y + startDelta.Y*other.delta.X
	otherDet := s.delta.X*startDelta.Y - s.delta.Y*startDelta.X

	own := ownDet / baseDet
	lambda := otherDet / baseDet

	return insideUnit(own) && insideUnit(lambda)
}

// InCriticalRange reports whether point lies inside the band of half-width
// r along the segment: its projection onto the segment has to fall strictly
// between the endpoints and its perpendicular offset must not exceed r.
func (s Segment) InCriticalRange(point Position, r float64) bool {
	relToStart := point.Sub(s.start)

	along := relToStart.Dot(s.unit)
	if along <= Epsilon || along >= s.length-Epsilon {
		return false
	}

	return math.Abs(s.orthogonal.Dot(relToStart)) <= r
}

// Shortened returns the segment with distance removed from both ends.
// It panics with ErrShorteningTooLarge unless distance is below half the length.
func (s Segment) Shortened(distance float64) Segment {
	if s.length == 0 {
		panic(fmt.Errorf("%w: segment has zero length", ErrShorteningTooLarge))
	}
	ratio := distance / s.length
	if ratio >= 0.5 {
		panic(fmt.Errorf("%w: %.6f of %.6f", ErrShorteningTooLarge, distance, s.length))
	}

	offset := s.delta.Scale(ratio)
	return NewSegment(s.start.Add(offset), s.end.Sub(offset))
}

func insideUnit(t float64) bool {
	return t > Epsilon && t < 1-Epsilon
}

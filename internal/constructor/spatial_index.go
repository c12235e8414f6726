package constructor

import (
	"github.com/dhconnelly/rtreego"

	"astar-navgraph/internal/geometry"
)

// pointEntry wraps a generated point for R-tree storage
type pointEntry struct {
	index int
	bbox  rtreego.Rect
}

// Bounds implements rtreego.Spatial interface
func (p *pointEntry) Bounds() rtreego.Rect {
	return p.bbox
}

// segmentEntry wraps an accepted link segment for R-tree storage
type segmentEntry struct {
	segment geometry.Segment
	bbox    rtreego.Rect
}

// Bounds implements rtreego.Spatial interface
func (s *segmentEntry) Bounds() rtreego.Rect {
	return s.bbox
}

// spatialIndex keeps the generated points and accepted segments in two
// R-trees so the rejection tests only look at nearby geometry.
type spatialIndex struct {
	points   *rtreego.Rtree
	segments *rtreego.Rtree
}

func newSpatialIndex() *spatialIndex {
	return &spatialIndex{
		points:   rtreego.NewTree(2, 25, 50), // 2D, min 25, max 50 entries per node
		segments: rtreego.NewTree(2, 25, 50),
	}
}

func (si *spatialIndex) clearSegments() {
	si.segments = rtreego.NewTree(2, 25, 50)
}

func (si *spatialIndex) insertPoint(index int, p geometry.Position) {
	si.points.Insert(&pointEntry{index: index, bbox: boundingBox(p, p, geometry.Epsilon)})
}

func (si *spatialIndex) insertSegment(s geometry.Segment) {
	lo, hi := s.Bounds()
	si.segments.Insert(&segmentEntry{segment: s, bbox: boundingBox(lo, hi, geometry.Epsilon)})
}

// pointsNear returns the indexes of points whose boxes meet the square of
// half-width radius around center. Callers apply the exact distance test.
func (si *spatialIndex) pointsNear(center geometry.Position, radius float64) []int {
	return si.pointsInBox(center, center, radius)
}

// pointsInBox returns the indexes of points inside the box spanned by lo and
// hi, grown by margin on every side.
func (si *spatialIndex) pointsInBox(lo, hi geometry.Position, margin float64) []int {
	results := si.points.SearchIntersect(boundingBox(lo, hi, margin+geometry.Epsilon))
	indexes := make([]int, 0, len(results))
	for _, item := range results {
		indexes = append(indexes, item.(*pointEntry).index)
	}
	return indexes
}

// segmentsNear returns accepted segments whose boxes meet the box of s
func (si *spatialIndex) segmentsNear(s geometry.Segment) []geometry.Segment {
	lo, hi := s.Bounds()
	results := si.segments.SearchIntersect(boundingBox(lo, hi, geometry.Epsilon))
	segments := make([]geometry.Segment, 0, len(results))
	for _, item := range results {
		segments = append(segments, item.(*segmentEntry).segment)
	}
	return segments
}

// boundingBox computes the axis-aligned box between lo and hi grown by
// margin. A positive margin keeps every side length positive, which
// rtreego requires.
func boundingBox(lo, hi geometry.Position, margin float64) rtreego.Rect {
	bbox, _ := rtreego.NewRect(
		rtreego.Point{lo.X - margin, lo.Y - margin},
		[]float64{hi.X - lo.X + 2*margin, hi.Y - lo.Y + 2*margin},
	)
	return bbox
}

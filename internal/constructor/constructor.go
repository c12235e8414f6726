// Package constructor synthesizes navigation graphs by rejection sampling.
//
// A Constructor runs two bounded passes. The point pass scatters nodes so
// that no two are closer than twice the exclusion radius. The link pass then
// joins nearby points with segments that neither cross each other nor pass
// within the edge clearance of an unrelated point. Both passes give up after
// a fixed number of attempts and keep whatever they accepted so far.
package constructor

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"time"

	"go.uber.org/zap"

	"astar-navgraph/internal/geometry"
	"astar-navgraph/internal/navgraph"
)

// ErrNothingToEmit is raised when a graph is requested before both passes
// produced at least one point and one link.
var ErrNothingToEmit = errors.New("constructor: no points or links to emit")

// Pair is an accepted link as indexes into the point collection, in the
// order anchor, partner.
type Pair struct {
	A, B int
}

func (p Pair) key() Pair {
	if p.A > p.B {
		return Pair{A: p.B, B: p.A}
	}
	return p
}

// Rejections counts why samples of the last passes were thrown away
type Rejections struct {
	Exclusion int `json:"exclusion"`  // point too close to an accepted point
	NoPartner int `json:"no_partner"` // anchor without a point in range
	Duplicate int `json:"duplicate"`  // pair already linked
	Crossing  int `json:"crossing"`   // segment crosses an accepted link
	Clearance int `json:"clearance"`  // a point lies alongside the segment
}

// Stats summarizes the last point and link passes
type Stats struct {
	PointTarget   int        `json:"point_target"`
	PointAttempts int        `json:"point_attempts"`
	Points        int        `json:"points"`
	LinkTarget    int        `json:"link_target"`
	LinkAttempts  int        `json:"link_attempts"`
	Links         int        `json:"links"`
	Rejections    Rejections `json:"rejections"`
}

// Constructor generates well-formed graphs. It is reusable: emitting a graph
// clears the scratch state for the next round. Not safe for concurrent use.
type Constructor struct {
	cfg         Config
	logger      *zap.Logger
	rng         *rand.Rand
	maxAttempts int

	points []geometry.Position
	pairs  []Pair
	linked map[Pair]struct{}
	index  *spatialIndex
	stats  Stats
}

// New creates a constructor for cfg
func New(cfg Config, opts ...Option) (*Constructor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid constructor config: %w", err)
	}

	c := &Constructor{
		cfg:         cfg,
		logger:      zap.NewNop(),
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxAttempts <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrBadMaxAttempts, c.maxAttempts)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	c.clearScratch()
	return c, nil
}

// Config returns the parameters the constructor was created with
func (c *Constructor) Config() Config { return c.cfg }

// GeneratePoints samples up to n points in the extension square. A candidate
// is accepted when it lies further than the exclusion distance from every
// accepted point. The pass stops after the attempt budget, so dense
// configurations yield fewer than n points. Previously accepted points and
// links are discarded. It returns the number of accepted points.
func (c *Constructor) GeneratePoints(n int) int {
	startTime := time.Now()
	c.clearScratch()
	c.stats = Stats{PointTarget: n}

	ext := c.cfg.Extension
	exclusion := c.cfg.ExclusionDistance()

	for len(c.points) < n && c.stats.PointAttempts < c.maxAttempts {
		c.stats.PointAttempts++
		candidate := geometry.NewPosition(
			-ext+c.rng.Float64()*2*ext,
			-ext+c.rng.Float64()*2*ext,
		)

		if c.crowded(candidate, exclusion) {
			c.stats.Rejections.Exclusion++
			continue
		}

		c.index.insertPoint(len(c.points), candidate)
		c.points = append(c.points, candidate)
	}
	c.stats.Points = len(c.points)

	fields := []zap.Field{
		zap.Int("accepted", c.stats.Points),
		zap.Int("target", n),
		zap.Int("attempts", c.stats.PointAttempts),
		zap.Duration("elapsed", time.Since(startTime)),
	}
	if len(c.points) < n {
		c.logger.Warn("Point pass fell short of target", fields...)
	} else {
		c.logger.Debug("Point pass completed", fields...)
	}
	return len(c.points)
}

func (c *Constructor) crowded(candidate geometry.Position, exclusion float64) bool {
	for _, i := range c.index.pointsNear(candidate, exclusion) {
		if candidate.DistanceTo(c.points[i]) <= exclusion {
			return true
		}
	}
	return false
}

// GenerateLinks tries to accept up to m links between the generated points.
// Each attempt picks a random anchor and a random partner closer than the
// max edge length. The link is rejected if the pair is already linked, if
// it crosses an accepted link, or if any point lies within the edge
// clearance alongside it. Previously accepted links are discarded. It
// returns the number of accepted links, zero when there are no points.
func (c *Constructor) GenerateLinks(m int) int {
	startTime := time.Now()
	c.resetLinks()
	c.stats.LinkTarget = m

	if len(c.points) == 0 {
		c.logger.Warn("Link pass skipped, no points generated", zap.Int("target", m))
		return 0
	}

	for len(c.pairs) < m && c.stats.LinkAttempts < c.maxAttempts {
		c.stats.LinkAttempts++

		anchor := c.rng.Intn(len(c.points))
		partners := c.partners(anchor)
		if len(partners) == 0 {
			c.stats.Rejections.NoPartner++
			continue
		}
		pair := Pair{A: anchor, B: partners[c.rng.Intn(len(partners))]}

		if _, dup := c.linked[pair.key()]; dup {
			c.stats.Rejections.Duplicate++
			continue
		}

		segment := geometry.NewSegment(c.points[pair.A], c.points[pair.B])
		if c.crosses(segment) {
			c.stats.Rejections.Crossing++
			continue
		}
		if c.obstructed(segment) {
			c.stats.Rejections.Clearance++
			continue
		}

		c.linked[pair.key()] = struct{}{}
		c.pairs = append(c.pairs, pair)
		c.index.insertSegment(segment)
	}
	c.stats.Links = len(c.pairs)

	r := c.stats.Rejections
	fields := []zap.Field{
		zap.Int("accepted", c.stats.Links),
		zap.Int("target", m),
		zap.Int("attempts", c.stats.LinkAttempts),
		zap.Int("rejected_no_partner", r.NoPartner),
		zap.Int("rejected_duplicate", r.Duplicate),
		zap.Int("rejected_crossing", r.Crossing),
		zap.Int("rejected_clearance", r.Clearance),
		zap.Duration("elapsed", time.Since(startTime)),
	}
	if len(c.pairs) < m {
		c.logger.Warn("Link pass fell short of target", fields...)
	} else {
		c.logger.Debug("Link pass completed", fields...)
	}
	return len(c.pairs)
}

// partners lists, in index order, the points closer to anchor than the max
// edge length, excluding anchor itself.
func (c *Constructor) partners(anchor int) []int {
	origin := c.points[anchor]
	maxLen := c.cfg.MaxEdgeLength

	var out []int
	for _, i := range c.index.pointsNear(origin, maxLen) {
		if i != anchor && origin.DistanceTo(c.points[i]) < maxLen {
			out = append(out, i)
		}
	}
	slices.Sort(out)
	return out
}

func (c *Constructor) crosses(segment geometry.Segment) bool {
	for _, other := range c.index.segmentsNear(segment) {
		if other.Intersects(segment) {
			return true
		}
	}
	return false
}

func (c *Constructor) obstructed(segment geometry.Segment) bool {
	lo, hi := segment.Bounds()
	for _, i := range c.index.pointsInBox(lo, hi, c.cfg.EdgeClearance) {
		if segment.InCriticalRange(c.points[i], c.cfg.EdgeClearance) {
			return true
		}
	}
	return false
}

// EmitGraph builds a navigation graph from the accepted points and links.
// Node i of the graph is point i, links are connected in acceptance order.
// The scratch state is cleared afterwards. It panics with ErrNothingToEmit
// unless both passes produced something.
func (c *Constructor) EmitGraph() *navgraph.Graph {
	if len(c.points) == 0 || len(c.pairs) == 0 {
		panic(fmt.Errorf("%w: %d points, %d links", ErrNothingToEmit, len(c.points), len(c.pairs)))
	}

	g := navgraph.New()
	handles := make([]navgraph.Handle, len(c.points))
	for i, p := range c.points {
		handles[i] = g.AddNode(p)
	}
	for _, pair := range c.pairs {
		g.ConnectNodes(handles[pair.A], handles[pair.B])
	}

	c.logger.Info("Graph emitted",
		zap.Int("nodes", g.Len()),
		zap.Int("links", g.LinkCount()),
	)

	c.clearScratch()
	return g
}

// Build runs both passes and emits the graph. Unlike EmitGraph it reports an
// empty result as an error wrapping ErrNothingToEmit.
func (c *Constructor) Build(nodes, links int) (*navgraph.Graph, error) {
	c.GeneratePoints(nodes)
	c.GenerateLinks(links)

	if len(c.points) == 0 || len(c.pairs) == 0 {
		err := fmt.Errorf("%w: %d points, %d links", ErrNothingToEmit, len(c.points), len(c.pairs))
		c.clearScratch()
		return nil, err
	}
	return c.EmitGraph(), nil
}

// Stats returns the counters of the last passes. They survive EmitGraph.
func (c *Constructor) Stats() Stats { return c.stats }

// Points returns a copy of the accepted points
func (c *Constructor) Points() []geometry.Position {
	return slices.Clone(c.points)
}

// Pairs returns a copy of the accepted links
func (c *Constructor) Pairs() []Pair {
	return slices.Clone(c.pairs)
}

// clearScratch drops points, links and both indexes
func (c *Constructor) clearScratch() {
	c.points = nil
	c.pairs = nil
	c.linked = make(map[Pair]struct{})
	c.index = newSpatialIndex()
}

// resetLinks drops the links but keeps the points and their index
func (c *Constructor) resetLinks() {
	c.pairs = nil
	c.linked = make(map[Pair]struct{})
	c.index.clearSegments()

	c.stats.LinkTarget = 0
	c.stats.LinkAttempts = 0
	c.stats.Links = 0
	c.stats.Rejections = Rejections{Exclusion: c.stats.Rejections.Exclusion}
}

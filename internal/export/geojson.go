// Package export renders a navigation graph as GeoJSON for the visualiser.
//
// Nodes become Point features carrying their handle and search state. Links
// become two-vertex LineString features flagged when they belong to the path
// of the last search. Coordinates are the graph's planar positions as is.
package export

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"astar-navgraph/internal/geometry"
	"astar-navgraph/internal/navgraph"
)

// Feature kinds stored under the "kind" property
const (
	KindNode = "node"
	KindLink = "link"
)

type options struct {
	graphID string
	trim    float64
}

// Option customizes the rendered collection
type Option func(*options)

// WithGraphID adds a top level "graph_id" member to the collection
func WithGraphID(id string) Option {
	return func(o *options) { o.graphID = id }
}

// WithTrim pulls both ends of every link back by radius so links stop at
// the edge of the node discs. Links too short to trim are left whole.
func WithTrim(radius float64) Option {
	return func(o *options) { o.trim = radius }
}

// FeatureCollection builds the GeoJSON view of g
func FeatureCollection(g *navgraph.Graph, opts ...Option) *geojson.FeatureCollection {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	fc := geojson.NewFeatureCollection()
	if o.graphID != "" {
		fc.ExtraMembers = geojson.Properties{"graph_id": o.graphID}
	}

	var bound orb.Bound
	handle := 0
	for position, state := range g.Nodes() {
		point := toPoint(position)
		if handle == 0 {
			bound = point.Bound()
		} else {
			bound = bound.Extend(point)
		}

		f := geojson.NewFeature(point)
		f.Properties["kind"] = KindNode
		f.Properties["handle"] = handle
		f.Properties["state"] = state.String()
		fc.Append(f)
		handle++
	}

	for _, link := range g.Links() {
		segment := geometry.NewSegment(g.Position(link.A), g.Position(link.B))
		if o.trim > 0 && 2*o.trim < segment.Length() {
			segment = segment.Shortened(o.trim)
		}

		f := geojson.NewFeature(orb.LineString{toPoint(segment.Start()), toPoint(segment.End())})
		f.Properties["kind"] = KindLink
		f.Properties["a"] = int(link.A)
		f.Properties["b"] = int(link.B)
		f.Properties["solution"] = g.IsSolutionLink(link)
		fc.Append(f)
	}

	if handle > 0 {
		fc.BBox = geojson.NewBBox(bound)
	}
	return fc
}

// Marshal encodes the GeoJSON view of g
func Marshal(g *navgraph.Graph, opts ...Option) ([]byte, error) {
	data, err := FeatureCollection(g, opts...).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal feature collection: %w", err)
	}
	return data, nil
}

func toPoint(p geometry.Position) orb.Point {
	return orb.Point{p.X, p.Y}
}

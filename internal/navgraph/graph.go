// Package navgraph holds a two-dimensional navigation graph and runs A*
// searches over it.
//
// Nodes are addressed by Handle, a plain index into the graph's storage.
// Handles stay valid for the lifetime of the graph since nodes are never
// removed. Every edge is undirected and weighted with the Euclidean distance
// between its endpoints, which keeps the straight-line heuristic admissible.
//
// The graph is not safe for concurrent use. Searches write per-node state
// that the introspection iterators expose afterwards, so callers must
// serialize searches and reads of the same graph.
package navgraph

import (
	"errors"
	"fmt"
	"iter"
	"math"

	"astar-navgraph/internal/geometry"
)

// ErrInvalidHandle is the panic value for operations given a handle the
// graph does not own.
var ErrInvalidHandle = errors.New("navgraph: invalid node handle")

// Handle identifies a node within one graph
type Handle int

// NodeState is the search bookkeeping state of a node
type NodeState uint8

const (
	// Clear nodes have not been reached by the current search.
	Clear NodeState = iota
	// Visited nodes are in the open set.
	Visited
	// Closed nodes have their final cost.
	Closed
	// Solution nodes lie on the path returned by the last search.
	Solution
)

func (s NodeState) String() string {
	switch s {
	case Clear:
		return "clear"
	case Visited:
		return "visited"
	case Closed:
		return "closed"
	case Solution:
		return "solution"
	default:
		return fmt.Sprintf("NodeState(%d)", uint8(s))
	}
}

// neighbor is one adjacency entry with its edge cost
type neighbor struct {
	to     Handle
	weight float64
}

type node struct {
	position  geometry.Position
	adjacency []neighbor
}

// Link is one undirected connection, stored once in connection order
type Link struct {
	A, B Handle
}

// Edge is the renderer view of a link
type Edge struct {
	Start    geometry.Position
	End      geometry.Position
	Solution bool
}

// Graph is a navigation graph with positioned nodes
type Graph struct {
	nodes []node
	links []Link

	// search scratch, parallel to nodes
	scratch  []searchState
	expanded int
}

// New creates an empty graph
func New() *Graph {
	return &Graph{}
}

// AddNode appends a node at position and returns its handle
func (g *Graph) AddNode(position geometry.Position) Handle {
	h := Handle(len(g.nodes))
	g.nodes = append(g.nodes, node{position: position})
	g.scratch = append(g.scratch, searchState{ancestor: noAncestor, index: -1})
	return h
}

// ConnectNodes links a and b with an undirected edge weighted by their
// distance. It panics if either handle is invalid.
func (g *Graph) ConnectNodes(a, b Handle) {
	g.mustValid(a)
	g.mustValid(b)

	dist := g.nodes[a].position.DistanceTo(g.nodes[b].position)
	g.nodes[a].adjacency = append(g.nodes[a].adjacency, neighbor{to: b, weight: dist})
	g.nodes[b].adjacency = append(g.nodes[b].adjacency, neighbor{to: a, weight: dist})
	g.links = append(g.links, Link{A: a, B: b})
}

// Len returns the number of nodes
func (g *Graph) Len() int { return len(g.nodes) }

// LinkCount returns the number of links
func (g *Graph) LinkCount() int { return len(g.links) }

// Valid reports whether h addresses a node of g
func (g *Graph) Valid(h Handle) bool {
	return h >= 0 && int(h) < len(g.nodes)
}

// Position returns the position of node h
func (g *Graph) Position(h Handle) geometry.Position {
	g.mustValid(h)
	return g.nodes[h].position
}

// State returns the search state of node h
func (g *Graph) State(h Handle) NodeState {
	g.mustValid(h)
	return g.scratch[h].state
}

// Neighbors yields the adjacency of h as (neighbor, weight) in connection order
func (g *Graph) Neighbors(h Handle) iter.Seq2[Handle, float64] {
	g.mustValid(h)
	return func(yield func(Handle, float64) bool) {
		for _, n := range g.nodes[h].adjacency {
			if !yield(n.to, n.weight) {
				return
			}
		}
	}
}

// Links returns a copy of the link list
func (g *Graph) Links() []Link {
	out := make([]Link, len(g.links))
	copy(out, g.links)
	return out
}

// Nodes yields every node's position and state in handle order
func (g *Graph) Nodes() iter.Seq2[geometry.Position, NodeState] {
	return func(yield func(geometry.Position, NodeState) bool) {
		for i := range g.nodes {
			if !yield(g.nodes[i].position, g.scratch[i].state) {
				return
			}
		}
	}
}

// Edges yields every link with its endpoint positions and whether it is
// part of the path found by the last search.
func (g *Graph) Edges() iter.Seq[Edge] {
	return func(yield func(Edge) bool) {
		for _, l := range g.links {
			e := Edge{
				Start:    g.nodes[l.A].position,
				End:      g.nodes[l.B].position,
				Solution: g.IsSolutionLink(l),
			}
			if !yield(e) {
				return
			}
		}
	}
}

// IsSolutionLink reports whether l joins two consecutive nodes of the last
// path. It panics if either endpoint is invalid.
func (g *Graph) IsSolutionLink(l Link) bool {
	g.mustValid(l.A)
	g.mustValid(l.B)
	a, b := g.scratch[l.A], g.scratch[l.B]
	if a.state != Solution || b.state != Solution {
		return false
	}
	return b.ancestor == l.A || a.ancestor == l.B
}

// FindNearestNode finds the closest node to position. Ties go to the node
// added first. It returns false only for an empty graph.
func (g *Graph) FindNearestNode(position geometry.Position) (Handle, bool) {
	if len(g.nodes) == 0 {
		return -1, false
	}

	nearest := Handle(0)
	minDist := math.Inf(1)
	for i := range g.nodes {
		dist := g.nodes[i].position.DistanceTo(position)
		if dist < minDist {
			minDist = dist
			nearest = Handle(i)
		}
	}

	return nearest, true
}

// FindNearestNodeWithin is FindNearestNode restricted to nodes no further
// than radius from position.
func (g *Graph) FindNearestNodeWithin(position geometry.Position, radius float64) (Handle, bool) {
	h, ok := g.FindNearestNode(position)
	if !ok || g.nodes[h].position.DistanceTo(position) > radius {
		return -1, false
	}
	return h, true
}

// PathCost sums the edge weights along path. Consecutive handles must be
// adjacent; a pair without a connecting edge panics with ErrInvalidHandle.
func (g *Graph) PathCost(path []Handle) float64 {
	var cost float64
	for i := 1; i < len(path); i++ {
		w, ok := g.weight(path[i-1], path[i])
		if !ok {
			panic(fmt.Errorf("%w: %d and %d are not adjacent", ErrInvalidHandle, path[i-1], path[i]))
		}
		cost += w
	}
	return cost
}

// Expanded returns how many nodes the last search closed
func (g *Graph) Expanded() int { return g.expanded }

func (g *Graph) weight(a, b Handle) (float64, bool) {
	g.mustValid(a)
	g.mustValid(b)
	for _, n := range g.nodes[a].adjacency {
		if n.to == b {
			return n.weight, true
		}
	}
	return 0, false
}

func (g *Graph) mustValid(h Handle) {
	if !g.Valid(h) {
		panic(fmt.Errorf("%w: %d (graph has %d nodes)", ErrInvalidHandle, h, len(g.nodes)))
	}
}

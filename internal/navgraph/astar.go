package navgraph

import (
	"container/heap"
	"fmt"
)

const noAncestor Handle = -1

// searchState is the per-node scratch of a search
type searchState struct {
	state    NodeState
	ancestor Handle
	g        float64 // cost from start
	f        float64 // g + heuristic
	index    int     // position in the open set, -1 when not queued
}

// openSet implements heap.Interface over handles keyed by f-value.
// Equal f-values are ordered by handle so the search is deterministic.
type openSet struct {
	items   []Handle
	scratch []searchState
}

func (os *openSet) Len() int { return len(os.items) }

func (os *openSet) Less(i, j int) bool {
	a, b := os.items[i], os.items[j]
	fa, fb := os.scratch[a].f, os.scratch[b].f
	if fa != fb {
		return fa < fb
	}
	return a < b
}

func (os *openSet) Swap(i, j int) {
	os.items[i], os.items[j] = os.items[j], os.items[i]
	os.scratch[os.items[i]].index = i
	os.scratch[os.items[j]].index = j
}

func (os *openSet) Push(x any) {
	h := x.(Handle)
	os.scratch[h].index = len(os.items)
	os.items = append(os.items, h)
}

func (os *openSet) Pop() any {
	old := os.items
	n := len(old)
	h := old[n-1]
	os.scratch[h].index = -1
	os.items = old[:n-1]
	return h
}

// Search computes the shortest path from start to destination with A* and
// the straight-line distance heuristic. The path runs from start to
// destination inclusive. It returns false when destination is unreachable.
//
// Node states written by the search remain readable through Nodes, State
// and Edges until the next search. It panics if either handle is invalid.
func (g *Graph) Search(start, destination Handle) ([]Handle, bool) {
	g.mustValid(start)
	g.mustValid(destination)

	g.resetSearch()
	goal := g.nodes[destination].position

	open := &openSet{scratch: g.scratch}
	heap.Init(open)

	s := &g.scratch[start]
	s.state = Visited
	s.g = 0
	s.f = g.nodes[start].position.DistanceTo(goal)
	heap.Push(open, start)

	for open.Len() > 0 {
		current := heap.Pop(open).(Handle)
		g.scratch[current].state = Closed
		g.expanded++

		if current == destination {
			return g.tracePath(start, destination), true
		}

		currentG := g.scratch[current].g
		for _, edge := range g.nodes[current].adjacency {
			next := &g.scratch[edge.to]
			tentativeG := currentG + edge.weight

			switch next.state {
			case Clear:
				next.state = Visited
				next.ancestor = current
				next.g = tentativeG
				next.f = tentativeG + g.nodes[edge.to].position.DistanceTo(goal)
				heap.Push(open, edge.to)
			case Visited:
				if tentativeG < next.g {
					next.g = tentativeG
					next.f = tentativeG + g.nodes[edge.to].position.DistanceTo(goal)
					next.ancestor = current
					heap.Fix(open, next.index)
				}
			case Closed:
				// consistent heuristic: closed costs are final
			case Solution:
				panic(fmt.Sprintf("navgraph: node %d in solution state during search", edge.to))
			}
		}
	}

	return nil, false
}

func (g *Graph) resetSearch() {
	if len(g.scratch) != len(g.nodes) {
		g.scratch = make([]searchState, len(g.nodes))
	}
	for i := range g.scratch {
		g.scratch[i] = searchState{state: Clear, ancestor: noAncestor, index: -1}
	}
	g.expanded = 0
}

// tracePath follows ancestors back from destination, marking the path nodes
func (g *Graph) tracePath(start, destination Handle) []Handle {
	var path []Handle
	for scan := destination; scan != start; scan = g.scratch[scan].ancestor {
		g.scratch[scan].state = Solution
		path = append(path, scan)
	}
	g.scratch[start].state = Solution
	path = append(path, start)

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

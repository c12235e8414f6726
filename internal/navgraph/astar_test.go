package navgraph_test

import (
	"math"
	"math/rand"
	"testing"

	"astar-navgraph/internal/navgraph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenarioGraph builds the five-node graph used across the search tests,
// plus an isolated sixth node at (2,2).
func scenarioGraph() *navgraph.Graph {
	g := navgraph.New()
	p0 := g.AddNode(pos(0, 0))
	p1 := g.AddNode(pos(0.5, 0.5))
	p2 := g.AddNode(pos(1, 0))
	p3 := g.AddNode(pos(1, 1))
	p4 := g.AddNode(pos(0.1, 0))
	g.AddNode(pos(2, 2))

	g.ConnectNodes(p0, p1)
	g.ConnectNodes(p1, p2)
	g.ConnectNodes(p0, p2)
	g.ConnectNodes(p1, p4)
	g.ConnectNodes(p4, p3)
	g.ConnectNodes(p2, p3)
	return g
}

func TestSearch_Scenario(t *testing.T) {
	g := scenarioGraph()

	path, ok := g.Search(0, 3)
	require.True(t, ok)
	assert.Equal(t, []navgraph.Handle{0, 2, 3}, path)
	assert.InDelta(t, 2.0, g.PathCost(path), 1e-12)
	assert.Positive(t, g.Expanded())
}

func TestSearch_NoPath(t *testing.T) {
	g := scenarioGraph()

	path, ok := g.Search(0, 5)
	assert.False(t, ok)
	assert.Empty(t, path)

	// every reachable node was closed, no node is on a solution
	for _, state := range g.Nodes() {
		assert.NotEqual(t, navgraph.Solution, state)
	}
	assert.Equal(t, navgraph.Closed, g.State(4))
	assert.Equal(t, navgraph.Clear, g.State(5))
}

func TestSearch_StartIsDestination(t *testing.T) {
	g := scenarioGraph()

	path, ok := g.Search(2, 2)
	require.True(t, ok)
	assert.Equal(t, []navgraph.Handle{2}, path)
	assert.Equal(t, navgraph.Solution, g.State(2))

	for e := range g.Edges() {
		assert.False(t, e.Solution, "a single-node path has no edges")
	}
}

func TestSearch_IsolatedNode(t *testing.T) {
	g := navgraph.New()
	a := g.AddNode(pos(0, 0))
	b := g.AddNode(pos(1, 0))

	_, ok := g.Search(a, b)
	assert.False(t, ok, "a graph without edges has no paths")
}

func TestSearch_InvalidHandlePanics(t *testing.T) {
	g := scenarioGraph()
	requirePanicIs(t, navgraph.ErrInvalidHandle, func() { g.Search(0, 42) })
	requirePanicIs(t, navgraph.ErrInvalidHandle, func() { g.Search(-3, 0) })

	empty := navgraph.New()
	requirePanicIs(t, navgraph.ErrInvalidHandle, func() { empty.Search(0, 0) })
}

func TestSearch_SolutionEdges(t *testing.T) {
	g := scenarioGraph()
	_, ok := g.Search(0, 3)
	require.True(t, ok)

	var solution []navgraph.Link
	for _, l := range g.Links() {
		if g.IsSolutionLink(l) {
			solution = append(solution, l)
		}
	}
	assert.ElementsMatch(t, []navgraph.Link{{A: 0, B: 2}, {A: 2, B: 3}}, solution)

	n := 0
	for e := range g.Edges() {
		if e.Solution {
			n++
		}
	}
	assert.Equal(t, 2, n)
}

func TestSearch_SolutionEdgesNeedConsecutiveNodes(t *testing.T) {
	// a and c both end up on the path, but only through b
	g := navgraph.New()
	a := g.AddNode(pos(0, 0))
	b := g.AddNode(pos(1, 0.1))
	c := g.AddNode(pos(2, 0))
	g.ConnectNodes(a, b)
	g.ConnectNodes(b, c)
	d := g.AddNode(pos(1, -5))
	g.ConnectNodes(a, d)
	g.ConnectNodes(d, c)

	path, ok := g.Search(a, c)
	require.True(t, ok)
	assert.Equal(t, []navgraph.Handle{a, b, c}, path)

	assert.True(t, g.IsSolutionLink(navgraph.Link{A: a, B: b}))
	assert.True(t, g.IsSolutionLink(navgraph.Link{A: b, B: c}))
	assert.False(t, g.IsSolutionLink(navgraph.Link{A: a, B: d}))
	assert.False(t, g.IsSolutionLink(navgraph.Link{A: a, B: c}), "a and c are both on the path but not adjacent in it")
}

func TestSearch_StateResetBetweenSearches(t *testing.T) {
	g := scenarioGraph()

	_, ok := g.Search(0, 3)
	require.True(t, ok)
	assert.Equal(t, navgraph.Solution, g.State(0))

	path, ok := g.Search(4, 1)
	require.True(t, ok)
	assert.Equal(t, []navgraph.Handle{4, 1}, path)
	assert.NotEqual(t, navgraph.Solution, g.State(0))
	assert.NotEqual(t, navgraph.Solution, g.State(3))

	for e := range g.Edges() {
		if e.Solution {
			assert.ElementsMatch(t, []float64{0.1, 0.5}, []float64{e.Start.X, e.End.X})
		}
	}
}

// dijkstra is a quadratic reference implementation used to check optimality
func dijkstra(g *navgraph.Graph, start navgraph.Handle) []float64 {
	dist := make([]float64, g.Len())
	done := make([]bool, g.Len())
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	dist[start] = 0

	for {
		u := -1
		for i := range dist {
			if !done[i] && !math.IsInf(dist[i], 1) && (u < 0 || dist[i] < dist[u]) {
				u = i
			}
		}
		if u < 0 {
			return dist
		}
		done[u] = true
		for v, w := range g.Neighbors(navgraph.Handle(u)) {
			if dist[u]+w < dist[v] {
				dist[v] = dist[u] + w
			}
		}
	}
}

func TestSearch_OptimalOnRandomGraphs(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 20; round++ {
		g := navgraph.New()
		n := 40
		for i := 0; i < n; i++ {
			g.AddNode(pos(rng.Float64(), rng.Float64()))
		}
		for i := 0; i < 70; i++ {
			a, b := navgraph.Handle(rng.Intn(n)), navgraph.Handle(rng.Intn(n))
			if a != b {
				g.ConnectNodes(a, b)
			}
		}

		start := navgraph.Handle(rng.Intn(n))
		want := dijkstra(g, start)

		for dest := 0; dest < n; dest++ {
			path, ok := g.Search(start, navgraph.Handle(dest))
			if math.IsInf(want[dest], 1) {
				assert.False(t, ok, "round %d: %d should be unreachable", round, dest)
				continue
			}
			require.True(t, ok, "round %d: %d should be reachable", round, dest)
			assert.Equal(t, start, path[0])
			assert.Equal(t, navgraph.Handle(dest), path[len(path)-1])
			assert.InDelta(t, want[dest], g.PathCost(path), 1e-9, "round %d: path to %d is not optimal", round, dest)
		}
	}
}

func TestSearch_EqualCostTieBreak(t *testing.T) {
	// two mirrored routes of identical cost, middle nodes added in both orders
	for _, tc := range []struct {
		name        string
		first, next float64
	}{
		{"left first", -1, 1},
		{"right first", 1, -1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			g := navgraph.New()
			start := g.AddNode(pos(0, 0))
			low := g.AddNode(pos(tc.first, 1))
			high := g.AddNode(pos(tc.next, 1))
			dest := g.AddNode(pos(0, 2))
			g.ConnectNodes(start, low)
			g.ConnectNodes(start, high)
			g.ConnectNodes(low, dest)
			g.ConnectNodes(high, dest)

			path, ok := g.Search(start, dest)
			require.True(t, ok)
			assert.Equal(t, []navgraph.Handle{start, low, dest}, path, "equal f-values go to the lower handle")
			assert.Equal(t, navgraph.Closed, g.State(high))
			assert.InDelta(t, 2*math.Sqrt2, g.PathCost(path), 1e-12)
		})
	}
}

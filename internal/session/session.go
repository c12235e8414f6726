// Package session is the interaction core behind the HTTP service. It owns
// the current graph and the node picked as search start, and runs hover and
// route searches on behalf of the visualiser.
//
// navgraph.Graph has no locking of its own; a Session serializes every
// access to it with a single mutex.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"astar-navgraph/internal/config"
	"astar-navgraph/internal/constructor"
	"astar-navgraph/internal/geometry"
	"astar-navgraph/internal/navgraph"
)

var (
	// ErrNoNodeNearby means no node lies within the pick radius of a position.
	ErrNoNodeNearby = errors.New("session: no node within pick radius")
	// ErrNoSelection means a hover search was requested before a start node was picked.
	ErrNoSelection = errors.New("session: no start node selected")
)

// Recorder receives search and generation measurements
type Recorder interface {
	ObserveSearch(found bool, duration time.Duration, expanded int)
	ObserveGeneration(stats constructor.Stats, duration time.Duration, nodes, links int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveSearch(bool, time.Duration, int) {}

func (nopRecorder) ObserveGeneration(constructor.Stats, time.Duration, int, int) {}

// RouteResult is the outcome of one search. Found is false when the two
// nodes are not connected.
type RouteResult struct {
	Found    bool                `json:"found"`
	Start    navgraph.Handle     `json:"start"`
	End      navgraph.Handle     `json:"end"`
	Path     []navgraph.Handle   `json:"path"`
	Points   []geometry.Position `json:"points"`
	Cost     float64             `json:"cost"`
	Expanded int                 `json:"expanded"`
}

// Info describes the current graph
type Info struct {
	GraphID     uuid.UUID         `json:"graph_id"`
	Nodes       int               `json:"nodes"`
	Links       int               `json:"links"`
	Selected    *navgraph.Handle  `json:"selected,omitempty"`
	PickRadius  float64           `json:"pick_radius"`
	GeneratedAt time.Time         `json:"generated_at"`
	Stats       constructor.Stats `json:"stats"`
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the session logger, also handed to the constructor
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder sets where measurements go
func WithRecorder(r Recorder) Option {
	return func(s *Session) {
		if r != nil {
			s.recorder = r
		}
	}
}

// Session holds the graph shown to the visualiser
type Session struct {
	mu       sync.Mutex
	logger   *zap.Logger
	recorder Recorder

	cfg     *config.Config
	builder *constructor.Constructor

	graph       *navgraph.Graph
	graphID     uuid.UUID
	generatedAt time.Time
	stats       constructor.Stats
	selected    navgraph.Handle
	hasSelected bool
}

// New creates a session and generates its first graph
func New(cfg *config.Config, opts ...Option) (*Session, error) {
	s := &Session{
		logger:   zap.NewNop(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}

	builder, err := s.newConstructor(cfg)
	if err != nil {
		return nil, err
	}
	s.cfg = cfg
	s.builder = builder

	if _, err := s.regenerate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) newConstructor(cfg *config.Config) (*constructor.Constructor, error) {
	opts := []constructor.Option{
		constructor.WithLogger(s.logger.Named("constructor")),
		constructor.WithMaxAttempts(cfg.Generator.MaxAttempts),
	}
	if cfg.Generator.Seed != 0 {
		opts = append(opts, constructor.WithSeed(cfg.Generator.Seed))
	}
	return constructor.New(cfg.Generator.Config, opts...)
}

// Regenerate replaces the graph with a freshly generated one and clears the
// selection. On failure the current graph stays in place.
func (s *Session) Regenerate() (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regenerate()
}

func (s *Session) regenerate() (Info, error) {
	startTime := time.Now()
	gen := s.cfg.Generator

	g, err := s.builder.Build(gen.Nodes, gen.Links)
	if err != nil {
		s.logger.Error("Graph generation failed", zap.Error(err))
		return Info{}, fmt.Errorf("failed to generate graph: %w", err)
	}
	elapsed := time.Since(startTime)

	s.graph = g
	s.graphID = uuid.New()
	s.generatedAt = time.Now()
	s.stats = s.builder.Stats()
	s.hasSelected = false
	s.recorder.ObserveGeneration(s.stats, elapsed, g.Len(), g.LinkCount())

	s.logger.Info("Graph generated",
		zap.String("graph_id", s.graphID.String()),
		zap.Int("nodes", g.Len()),
		zap.Int("links", g.LinkCount()),
		zap.Duration("elapsed", elapsed),
	)
	return s.info(), nil
}

// Reconfigure swaps in new settings and regenerates. The old settings and
// graph are kept when cfg is invalid or generation fails.
func (s *Session) Reconfigure(cfg *config.Config) (Info, error) {
	if err := cfg.Validate(); err != nil {
		return Info{}, fmt.Errorf("invalid configuration: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	builder, err := s.newConstructor(cfg)
	if err != nil {
		return Info{}, err
	}

	oldCfg, oldBuilder := s.cfg, s.builder
	s.cfg, s.builder = cfg, builder
	info, err := s.regenerate()
	if err != nil {
		s.cfg, s.builder = oldCfg, oldBuilder
		return Info{}, err
	}

	s.logger.Info("Session reconfigured",
		zap.Int("nodes", cfg.Generator.Nodes),
		zap.Int("links", cfg.Generator.Links),
		zap.Float64("pick_radius", cfg.Interaction.PickRadius),
	)
	return info, nil
}

// Pick selects the node under position as the search start and returns it
// with its exact position. A miss leaves the selection unchanged and
// returns ErrNoNodeNearby.
func (s *Session) Pick(position geometry.Position) (navgraph.Handle, geometry.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.nodeAt(position)
	if err != nil {
		return -1, geometry.Position{}, err
	}
	s.selected = h
	s.hasSelected = true

	s.logger.Debug("Start node picked", zap.Int("handle", int(h)))
	return h, s.graph.Position(h), nil
}

// Hover searches from the picked node to the node under position
func (s *Session) Hover(position geometry.Position) (RouteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasSelected {
		return RouteResult{}, ErrNoSelection
	}
	dest, err := s.nodeAt(position)
	if err != nil {
		return RouteResult{}, err
	}
	return s.search(s.selected, dest), nil
}

// Route searches between the nodes under from and to without touching the
// selection.
func (s *Session) Route(from, to geometry.Position) (RouteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start, err := s.nodeAt(from)
	if err != nil {
		return RouteResult{}, fmt.Errorf("start: %w", err)
	}
	dest, err := s.nodeAt(to)
	if err != nil {
		return RouteResult{}, fmt.Errorf("end: %w", err)
	}
	return s.search(start, dest), nil
}

func (s *Session) nodeAt(position geometry.Position) (navgraph.Handle, error) {
	h, ok := s.graph.FindNearestNodeWithin(position, s.cfg.Interaction.PickRadius)
	if !ok {
		return -1, fmt.Errorf("%w: (%g, %g)", ErrNoNodeNearby, position.X, position.Y)
	}
	return h, nil
}

func (s *Session) search(start, dest navgraph.Handle) RouteResult {
	startTime := time.Now()
	path, found := s.graph.Search(start, dest)
	elapsed := time.Since(startTime)

	result := RouteResult{
		Found:    found,
		Start:    start,
		End:      dest,
		Expanded: s.graph.Expanded(),
	}
	if found {
		result.Path = path
		result.Cost = s.graph.PathCost(path)
		result.Points = make([]geometry.Position, len(path))
		for i, h := range path {
			result.Points[i] = s.graph.Position(h)
		}
	}
	s.recorder.ObserveSearch(found, elapsed, result.Expanded)

	s.logger.Debug("Search finished",
		zap.Int("start", int(start)),
		zap.Int("end", int(dest)),
		zap.Bool("found", found),
		zap.Int("waypoints", len(path)),
		zap.Int("expanded", result.Expanded),
		zap.Duration("elapsed", elapsed),
	)
	return result
}

// View runs fn with read access to the current graph. fn must not keep the
// graph or call back into the session.
func (s *Session) View(fn func(g *navgraph.Graph, id uuid.UUID)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.graph, s.graphID)
}

// Info describes the current graph
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info()
}

// PickRadius returns the radius used to hit nodes
func (s *Session) PickRadius() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Interaction.PickRadius
}

func (s *Session) info() Info {
	info := Info{
		GraphID:     s.graphID,
		Nodes:       s.graph.Len(),
		Links:       s.graph.LinkCount(),
		PickRadius:  s.cfg.Interaction.PickRadius,
		GeneratedAt: s.generatedAt,
		Stats:       s.stats,
	}
	if s.hasSelected {
		h := s.selected
		info.Selected = &h
	}
	return info
}

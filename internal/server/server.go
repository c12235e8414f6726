// Package server exposes a session over HTTP: GeoJSON for drawing the
// graph, and pick, hover and route calls for pointer interaction.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"astar-navgraph/internal/export"
	"astar-navgraph/internal/geometry"
	"astar-navgraph/internal/navgraph"
	"astar-navgraph/internal/session"
	"astar-navgraph/internal/validation"
)

// maxBodyBytes bounds request bodies, they only ever carry a few numbers
const maxBodyBytes = 1 << 16

// PointRequest is a position in graph coordinates
type PointRequest struct {
	X *float64 `json:"x" validate:"required,finite"`
	Y *float64 `json:"y" validate:"required,finite"`
}

func (p PointRequest) position() geometry.Position {
	return geometry.NewPosition(*p.X, *p.Y)
}

// RouteRequest asks for the shortest path between the nodes under two positions
type RouteRequest struct {
	Start *PointRequest `json:"start" validate:"required"`
	End   *PointRequest `json:"end" validate:"required"`
}

// RouteResponse is the answer to hover and route requests
type RouteResponse struct {
	Success  bool                `json:"success"`
	Message  string              `json:"message,omitempty"`
	Path     []navgraph.Handle   `json:"path"`
	Points   []geometry.Position `json:"points"`
	Cost     float64             `json:"cost"`
	Expanded int                 `json:"expanded"`
}

// PickResponse reports the node picked as search start
type PickResponse struct {
	Handle   navgraph.Handle   `json:"handle"`
	Position geometry.Position `json:"position"`
}

// Server serves a session
type Server struct {
	session        *session.Session
	metrics        http.Handler
	logger         *zap.Logger
	validate       *validator.Validate
	allowedOrigins []string
}

// Option configures a Server
type Option func(*Server)

// WithMetrics mounts h on GET /metrics
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithAllowedOrigins sets the CORS origins, all origins by default
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.allowedOrigins = origins
		}
	}
}

// New creates a server for sess
func New(sess *session.Session, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		session:        sess,
		logger:         logger,
		validate:       newValidator(),
		allowedOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router with all routes and middleware
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(requestID)
	router.Use(chimiddleware.RealIP)
	router.Use(requestLogger(s.logger))
	router.Use(chimiddleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	}))

	router.Get("/health", s.health)

	router.Route("/graph", func(r chi.Router) {
		r.Get("/", s.getGraph)
		r.Get("/info", s.getInfo)
		r.Post("/regenerate", s.regenerate)
	})

	router.Post("/pick", s.pick)
	router.Post("/hover", s.hover)
	router.Post("/route", s.route)

	if s.metrics != nil {
		router.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return router
}

// GET /health
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	info := s.session.Info()
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ready",
		"graph_id": info.GraphID,
		"nodes":    info.Nodes,
		"links":    info.Links,
	})
}

// GET /graph, ?trim=1 pulls links back to the node discs
func (s *Server) getGraph(w http.ResponseWriter, r *http.Request) {
	var trim float64
	if v := r.URL.Query().Get("trim"); v == "1" || v == "true" {
		trim = s.session.PickRadius()
	}

	var (
		data []byte
		err  error
	)
	s.session.View(func(g *navgraph.Graph, id uuid.UUID) {
		data, err = export.Marshal(g, export.WithGraphID(id.String()), export.WithTrim(trim))
	})
	if err != nil {
		s.logger.Error("Failed to export graph", zap.Error(err))
		s.respondError(w, r, http.StatusInternalServerError, "Failed to export graph")
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Debug("Failed to write response", zap.Error(err))
	}
}

// GET /graph/info
func (s *Server) getInfo(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.session.Info())
}

// POST /graph/regenerate
func (s *Server) regenerate(w http.ResponseWriter, r *http.Request) {
	info, err := s.session.Regenerate()
	if err != nil {
		s.respondSessionError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, info)
}

// POST /pick
func (s *Server) pick(w http.ResponseWriter, r *http.Request) {
	var req PointRequest
	if !s.decode(w, r, &req) {
		return
	}

	h, position, err := s.session.Pick(req.position())
	if err != nil {
		s.respondSessionError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, PickResponse{Handle: h, Position: position})
}

// POST /hover
func (s *Server) hover(w http.ResponseWriter, r *http.Request) {
	var req PointRequest
	if !s.decode(w, r, &req) {
		return
	}

	result, err := s.session.Hover(req.position())
	if err != nil {
		s.respondSessionError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, routeResponse(result))
}

// POST /route
func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if !s.decode(w, r, &req) {
		return
	}

	result, err := s.session.Route(req.Start.position(), req.End.position())
	if err != nil {
		s.respondSessionError(w, r, err)
		return
	}

	s.logger.Info("Route computed",
		zap.Bool("found", result.Found),
		zap.Int("waypoints", len(result.Path)),
		zap.Float64("cost", result.Cost),
		zap.String("requestID", chimiddleware.GetReqID(r.Context())),
	)
	s.respondJSON(w, http.StatusOK, routeResponse(result))
}

func routeResponse(result session.RouteResult) RouteResponse {
	resp := RouteResponse{
		Success:  result.Found,
		Path:     result.Path,
		Points:   result.Points,
		Cost:     result.Cost,
		Expanded: result.Expanded,
	}
	if resp.Path == nil {
		resp.Path = []navgraph.Handle{}
		resp.Points = []geometry.Position{}
	}
	if !result.Found {
		resp.Message = "No path found"
	}
	return resp
}

// decode reads and validates a JSON body, answering 400 on failure
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "Validation error: "+validation.FormatError(err).Error())
		return false
	}
	return true
}

func (s *Server) respondSessionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrNoNodeNearby):
		s.respondError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrNoSelection):
		s.respondError(w, r, http.StatusConflict, err.Error())
	default:
		s.logger.Error("Session request failed",
			zap.Error(err),
			zap.String("requestID", chimiddleware.GetReqID(r.Context())),
		)
		s.respondError(w, r, http.StatusInternalServerError, err.Error())
	}
}

// Helper methods

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.respondJSON(w, status, map[string]any{
		"error":      true,
		"message":    message,
		"code":       status,
		"request_id": chimiddleware.GetReqID(r.Context()),
	})
}

package constructor

import (
	"errors"
	"fmt"
	"math/rand"

	"go.uber.org/zap"
)

// DefaultMaxAttempts bounds the samples drawn by a single generation pass
const DefaultMaxAttempts = 100000

var (
	ErrBadExtension       = errors.New("constructor: extension must be positive")
	ErrBadMaxEdgeLength   = errors.New("constructor: max edge length must be positive")
	ErrBadExclusionRadius = errors.New("constructor: exclusion radius must be positive")
	ErrBadEdgeClearance   = errors.New("constructor: edge clearance must be positive")
	ErrBadMaxAttempts     = errors.New("constructor: max attempts must be positive")
)

// Config holds the geometric parameters of generated graphs
type Config struct {
	// Extension is the half-width of the square points are drawn from,
	// positions range over [-Extension, Extension).
	Extension float64 `yaml:"extension" json:"extension" validate:"gt=0"`
	// MaxEdgeLength is the exclusive upper bound on link length.
	MaxEdgeLength float64 `yaml:"max_edge_length" json:"max_edge_length" validate:"gt=0"`
	// ExclusionRadius is the radius of the disc kept clear around every
	// point. Two points are never closer than twice this value.
	ExclusionRadius float64 `yaml:"exclusion_radius" json:"exclusion_radius" validate:"gt=0"`
	// EdgeClearance is the minimum distance between a link and any point
	// lying alongside it.
	EdgeClearance float64 `yaml:"edge_clearance" json:"edge_clearance" validate:"gt=0"`
}

// DefaultConfig returns the parameters of the stock demo graph
func DefaultConfig() Config {
	return Config{
		Extension:       1.0,
		MaxEdgeLength:   0.25,
		ExclusionRadius: 0.04,
		EdgeClearance:   0.05,
	}
}

// Validate checks that every parameter is positive
func (c Config) Validate() error {
	var errs []error
	if !(c.Extension > 0) {
		errs = append(errs, fmt.Errorf("%w: got %v", ErrBadExtension, c.Extension))
	}
	if !(c.MaxEdgeLength > 0) {
		errs = append(errs, fmt.Errorf("%w: got %v", ErrBadMaxEdgeLength, c.MaxEdgeLength))
	}
	if !(c.ExclusionRadius > 0) {
		errs = append(errs, fmt.Errorf("%w: got %v", ErrBadExclusionRadius, c.ExclusionRadius))
	}
	if !(c.EdgeClearance > 0) {
		errs = append(errs, fmt.Errorf("%w: got %v", ErrBadEdgeClearance, c.EdgeClearance))
	}
	return errors.Join(errs...)
}

// ExclusionDistance is the minimum distance between two accepted points
func (c Config) ExclusionDistance() float64 {
	return 2 * c.ExclusionRadius
}

// Option configures a Constructor
type Option func(*Constructor)

// WithLogger sets the logger for pass summaries
func WithLogger(logger *zap.Logger) Option {
	return func(c *Constructor) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSeed makes generation reproducible
func WithSeed(seed int64) Option {
	return func(c *Constructor) {
		c.rng = rand.New(rand.NewSource(seed))
	}
}

// WithRand sets the random source directly
func WithRand(rng *rand.Rand) Option {
	return func(c *Constructor) {
		if rng != nil {
			c.rng = rng
		}
	}
}

// WithMaxAttempts overrides DefaultMaxAttempts
func WithMaxAttempts(n int) Option {
	return func(c *Constructor) {
		c.maxAttempts = n
	}
}

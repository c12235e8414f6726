// Package config loads the service configuration.
//
// Values are layered from lowest to highest priority:
//  1. Defaults (in code)
//  2. YAML file, when a path is given
//  3. Environment variables NAVGRAPH_ADDR, NAVGRAPH_LOG_LEVEL, NAVGRAPH_SEED
//
// The result is validated with struct tags plus cross-field rules.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"astar-navgraph/internal/constructor"
	"astar-navgraph/internal/validation"
)

// Environment variables read by Load
const (
	EnvPath     = "NAVGRAPH_CONFIG"
	EnvAddr     = "NAVGRAPH_ADDR"
	EnvLogLevel = "NAVGRAPH_LOG_LEVEL"
	EnvSeed     = "NAVGRAPH_SEED"
)

// ErrPickRadiusTooLarge is returned when the pick radius could select more
// than one node at a time.
var ErrPickRadiusTooLarge = errors.New("config: pick radius must be smaller than the exclusion radius")

var validate = validator.New()

// Config is the full service configuration
type Config struct {
	Generator   Generator   `yaml:"generator"`
	Interaction Interaction `yaml:"interaction"`
	Server      Server      `yaml:"server"`
	Log         Log         `yaml:"log"`
}

// Generator drives graph generation
type Generator struct {
	constructor.Config `yaml:",inline"`

	Nodes       int `yaml:"nodes" validate:"gt=0"`
	Links       int `yaml:"links" validate:"gt=0"`
	MaxAttempts int `yaml:"max_attempts" validate:"gt=0"`
	// Seed fixes the random source, zero picks a time based seed.
	Seed int64 `yaml:"seed"`
}

// Interaction holds pointer interaction settings
type Interaction struct {
	PickRadius float64 `yaml:"pick_radius" validate:"gt=0"`
}

// Server holds HTTP server settings
type Server struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
	AllowedOrigins  []string      `yaml:"allowed_origins" validate:"dive,required"`
}

// Log holds logger settings
type Log struct {
	Level       string `yaml:"level" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Generator: Generator{
			Config:      constructor.DefaultConfig(),
			Nodes:       300,
			Links:       800,
			MaxAttempts: constructor.DefaultMaxAttempts,
		},
		Interaction: Interaction{
			PickRadius: 0.015,
		},
		Server: Server{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Path returns flagValue, or the NAVGRAPH_CONFIG variable when the flag is empty
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(EnvPath)
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is not empty) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(bytes.NewReader(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvironment(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// decode overlays YAML onto cfg. Unknown keys are rejected.
func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnvironment() error {
	if val := os.Getenv(EnvAddr); val != "" {
		c.Server.Addr = val
	}
	if val := os.Getenv(EnvLogLevel); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv(EnvSeed); val != "" {
		seed, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvSeed, err)
		}
		c.Generator.Seed = seed
	}
	return nil
}

// Validate checks struct tags and cross-field rules
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return validation.FormatError(err)
	}
	if c.Interaction.PickRadius >= c.Generator.ExclusionRadius {
		return fmt.Errorf("%w: %v >= %v", ErrPickRadiusTooLarge,
			c.Interaction.PickRadius, c.Generator.ExclusionRadius)
	}
	return nil
}

// Logger builds the zap logger described by l
func (l Log) Logger() (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if l.Development {
		zcfg = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zcfg.Level = level

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

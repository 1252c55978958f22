// Package config loads the controller configuration from YAML.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/raist/go-controller/internal/acceptance"
	"github.com/danielpatrickdp/raist/go-controller/internal/audit"
	"github.com/danielpatrickdp/raist/go-controller/internal/commitment"
	"github.com/danielpatrickdp/raist/go-controller/internal/engine"
	"github.com/danielpatrickdp/raist/go-controller/internal/quorum"
	"github.com/danielpatrickdp/raist/go-controller/internal/retrieval"
)

// #region types
// Config represents the complete controller configuration.
type Config struct {
	Engine     EngineConfig     `yaml:"engine"`
	Acceptance AcceptanceConfig `yaml:"acceptance"`
	Quorum     QuorumConfig     `yaml:"quorum"`
	Journal    JournalConfig    `yaml:"journal"`
	Producer   ProducerConfig   `yaml:"producer"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// EngineConfig configures the cycle controller, retrieval and drift audit.
type EngineConfig struct {
	// Ideal is the target vector; its length fixes the dimension.
	Ideal              []float64 `yaml:"ideal" validate:"required,min=1"`
	AlignmentThreshold float64   `yaml:"alignment_threshold" validate:"gte=-1,lte=1"`
	RetrievalThreshold float64   `yaml:"retrieval_threshold" validate:"gte=-1,lte=1"`
	DriftThreshold     float64   `yaml:"drift_threshold" validate:"gte=-1,lte=1"`
	AuditRhythm        int       `yaml:"audit_rhythm" validate:"gte=1"`
	MinSamples         int       `yaml:"min_samples" validate:"gte=1"`
	IDPrefix           string    `yaml:"id_prefix" validate:"required"`
}

// AcceptanceConfig configures the five-criteria rule and node noise.
type AcceptanceConfig struct {
	GoodThreshold       float64 `yaml:"good_threshold" validate:"gte=-1,lte=1"`
	ObligatoryThreshold float64 `yaml:"obligatory_threshold"`
	KnownThreshold      float64 `yaml:"known_threshold"`
	EvidentThreshold    float64 `yaml:"evident_threshold"`

	// Noise maps node name to the probability its K criterion is forced false.
	// A noise key in the file replaces the default map; noise: {} disables it.
	Noise map[string]float64 `yaml:"noise" validate:"dive,gte=0,lte=1"`
	Seed  uint64             `yaml:"seed"`
}

// QuorumConfig lists the validating nodes.
type QuorumConfig struct {
	Nodes []string `yaml:"nodes" validate:"required,min=1,unique,dive,required"`
	Size  int      `yaml:"size" validate:"gte=1"`
}

// JournalConfig configures the SQLite provenance journal.
type JournalConfig struct {
	// Path is the database file (empty = journal disabled)
	Path string `yaml:"path"`
}

// ProducerConfig selects the commitment producer.
type ProducerConfig struct {
	// Addr is a gRPC producer address (empty = built-in canned producer)
	Addr string `yaml:"addr"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics and /status (empty = not served)
	Addr string `yaml:"addr"`
}

// #endregion types

// #region defaults
// DefaultConfig returns the reference instance.
func DefaultConfig() *Config {
	e := engine.DefaultConfig()
	return &Config{
		Engine: EngineConfig{
			Ideal:              []float64(e.Ideal.Clone()),
			AlignmentThreshold: e.AlignmentThreshold,
			RetrievalThreshold: e.Retrieval.Threshold,
			DriftThreshold:     e.Audit.DriftThreshold,
			AuditRhythm:        e.AuditRhythm,
			MinSamples:         e.Audit.MinSamples,
			IDPrefix:           e.IDPrefix,
		},
		Acceptance: AcceptanceConfig{
			GoodThreshold:       e.Acceptance.GoodThreshold,
			ObligatoryThreshold: e.Acceptance.ObligatoryThreshold,
			KnownThreshold:      e.Acceptance.KnownThreshold,
			EvidentThreshold:    e.Acceptance.EvidentThreshold,
			Noise:               e.Acceptance.Noise,
			Seed:                e.Acceptance.Seed,
		},
		Quorum: QuorumConfig{
			Nodes: e.Quorum.Nodes,
			Size:  e.Quorum.QuorumSize,
		},
	}
}

// #endregion defaults

// #region load
// LoadFromFile loads configuration from a YAML file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	defaultNoise := config.Acceptance.Noise
	// a noise key in the file replaces the default map, never merges into it
	config.Acceptance.Noise = nil
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if config.Acceptance.Noise == nil {
		config.Acceptance.Noise = defaultNoise
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return config, nil
}

// Load returns the defaults when path is empty, otherwise LoadFromFile(path).
func Load(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFromFile(path)
}

// #endregion load

// #region validate
var validate = validator.New()

// Validate checks field ranges and the cross-field rules the tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if c.Quorum.Size > len(c.Quorum.Nodes) {
		return fmt.Errorf("quorum.size %d exceeds %d nodes", c.Quorum.Size, len(c.Quorum.Nodes))
	}
	known := make(map[string]bool, len(c.Quorum.Nodes))
	for _, n := range c.Quorum.Nodes {
		known[n] = true
	}
	for node := range c.Acceptance.Noise {
		if !known[node] {
			return fmt.Errorf("acceptance.noise: unknown node %q (set acceptance.noise when renaming quorum.nodes)", node)
		}
	}
	return nil
}

// #endregion validate

// #region conversion
// Dimension is the vector dimension implied by the ideal vector.
func (c *Config) Dimension() int {
	return len(c.Engine.Ideal)
}

// ToEngine converts to the engine's configuration.
func (c *Config) ToEngine() engine.Config {
	ideal := commitment.Vector(c.Engine.Ideal).Clone()

	noise := make(map[string]float64, len(c.Acceptance.Noise))
	for k, v := range c.Acceptance.Noise {
		noise[k] = v
	}

	return engine.Config{
		Dimension:          len(ideal),
		Ideal:              ideal,
		AlignmentThreshold: c.Engine.AlignmentThreshold,
		AuditRhythm:        c.Engine.AuditRhythm,
		IDPrefix:           c.Engine.IDPrefix,
		Retrieval:          retrieval.Config{Threshold: c.Engine.RetrievalThreshold},
		Audit: audit.Config{
			Ideal:          ideal,
			DriftThreshold: c.Engine.DriftThreshold,
			MinSamples:     c.Engine.MinSamples,
		},
		Acceptance: acceptance.Config{
			GoodThreshold:       c.Acceptance.GoodThreshold,
			ObligatoryThreshold: c.Acceptance.ObligatoryThreshold,
			KnownThreshold:      c.Acceptance.KnownThreshold,
			EvidentThreshold:    c.Acceptance.EvidentThreshold,
			Noise:               noise,
			Seed:                c.Acceptance.Seed,
		},
		Quorum: quorum.Config{
			Nodes:      append([]string(nil), c.Quorum.Nodes...),
			QuorumSize: c.Quorum.Size,
		},
	}
}

// #endregion conversion

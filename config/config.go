// Package config loads the vault configuration from file and environment.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/osintlab/embedvault/distance"
)

// Modality configures one named vector index.
type Modality struct {
	// Name is the modality name callers address, e.g. "image" or "text".
	Name string `mapstructure:"name"`

	// Dimension is the fixed embedding dimensionality.
	Dimension int `mapstructure:"dimension"`

	// Metric names the distance metric ("l2" or "cosine").
	Metric string `mapstructure:"metric"`
}

// Mirror configures optional off-box snapshot mirroring.
// Object-store backends (minio, s3) carry credentials outside this file
// and are injected programmatically; see embedvault.WithMirror.
type Mirror struct {
	Enabled bool   `mapstructure:"enabled"`
	Backend string `mapstructure:"backend"` // "local" or "memory"
	Path    string `mapstructure:"path"`    // root dir for the local backend
}

// Config is the full vault configuration.
type Config struct {
	// DataDir holds one snapshot file and one metadata database per modality.
	DataDir string `mapstructure:"data_dir"`

	Modalities []Modality `mapstructure:"modalities"`

	// DedupThreshold is the duplicate-suppression distance: an ingested
	// vector whose nearest neighbor is at or below this distance reuses
	// the neighbor's external id. This is policy, not a constant.
	DedupThreshold float64 `mapstructure:"dedup_threshold"`

	// IngestRateLimit caps ingestions per second; 0 disables the limiter.
	IngestRateLimit float64 `mapstructure:"ingest_rate_limit"`

	// IngestBurst is the limiter burst size when rate limiting is enabled.
	IngestBurst int `mapstructure:"ingest_burst"`

	Mirror Mirror `mapstructure:"mirror"`
}

// Default returns the default configuration: the two stock modalities of
// the upstream extractors (CLIP vision at 512, MiniLM text at 384).
func Default() *Config {
	return &Config{
		DataDir: "./data",
		Modalities: []Modality{
			{Name: "image", Dimension: 512, Metric: "l2"},
			{Name: "text", Dimension: 384, Metric: "l2"},
		},
		DedupThreshold: 1e-6,
		IngestBurst:    1,
	}
}

// Load reads configuration from the given file (optional) and from
// EMBEDVAULT_* environment variables, on top of defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("dedup_threshold", def.DedupThreshold)
	v.SetDefault("ingest_rate_limit", 0)
	v.SetDefault("ingest_burst", def.IngestBurst)

	v.SetEnvPrefix("EMBEDVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if len(cfg.Modalities) == 0 {
		cfg.Modalities = def.Modalities
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir must not be empty")
	}
	if c.DedupThreshold < 0 {
		return fmt.Errorf("config: dedup_threshold must not be negative")
	}
	if c.IngestRateLimit < 0 {
		return fmt.Errorf("config: ingest_rate_limit must not be negative")
	}

	seen := make(map[string]bool, len(c.Modalities))
	for _, m := range c.Modalities {
		if m.Name == "" {
			return fmt.Errorf("config: modality with empty name")
		}
		if seen[m.Name] {
			return fmt.Errorf("config: duplicate modality %q", m.Name)
		}
		seen[m.Name] = true

		if m.Dimension <= 0 {
			return fmt.Errorf("config: modality %q: invalid dimension %d", m.Name, m.Dimension)
		}
		if _, err := distance.ParseMetric(m.Metric); err != nil {
			return fmt.Errorf("config: modality %q: %w", m.Name, err)
		}
	}

	switch c.Mirror.Backend {
	case "", "local", "memory":
	default:
		if c.Mirror.Enabled {
			return fmt.Errorf("config: unsupported mirror backend %q (minio/s3 mirrors are injected programmatically)", c.Mirror.Backend)
		}
	}
	if c.Mirror.Enabled && c.Mirror.Backend == "local" && c.Mirror.Path == "" {
		return fmt.Errorf("config: mirror.path required for the local backend")
	}

	return nil
}

// Package config loads the run configuration of the lom command from JSON
// or YAML files. Every field is optional; the Get* accessors return the
// default for fields a file leaves out.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/lom/internal/metric"
	"github.com/banshee-data/lom/internal/pipeline"
	"github.com/banshee-data/lom/internal/sensitivity"
	"github.com/banshee-data/lom/internal/stats"
	"github.com/banshee-data/lom/internal/units"
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Config is the root run configuration.
type Config struct {
	// Sensitivities is the artifact path or s3:// location. Empty means
	// optical_sensitivities.bin under $LOM.
	Sensitivities *string `json:"sensitivities,omitempty" yaml:"sensitivities,omitempty"`

	// Metrics lists the metric kinds to compute. Empty means every stored kind.
	Metrics []string `json:"metrics,omitempty" yaml:"metrics,omitempty"`

	// Input units of rigid body motion files.
	TranslationUnit *string `json:"translation_unit,omitempty" yaml:"translation_unit,omitempty"`
	RotationUnit    *string `json:"rotation_unit,omitempty" yaml:"rotation_unit,omitempty"`

	// Pipeline params
	BatchSize *int `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
	Window    *int `json:"window,omitempty" yaml:"window,omitempty"`
	Workers   *int `json:"workers,omitempty" yaml:"workers,omitempty"`

	// PSD params
	SegmentLength *int `json:"segment_length,omitempty" yaml:"segment_length,omitempty"`
	Overlap       *int `json:"overlap,omitempty" yaml:"overlap,omitempty"`

	// Database is a SQLite path receiving every run. Empty disables storage.
	Database *string `json:"database,omitempty" yaml:"database,omitempty"`
}

// Load reads a configuration file. The extension selects the format:
// .json, .yaml or .yml. Files over 1MB are rejected.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filepath.Base(cleanPath), err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the values that are set.
func (c *Config) Validate() error {
	for _, name := range c.Metrics {
		if _, err := metric.ParseKind(name); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}
	if c.TranslationUnit != nil || c.RotationUnit != nil {
		b, err := c.basis()
		if err != nil {
			return err
		}
		if err := b.Validate(); err != nil {
			return err
		}
	}
	if c.BatchSize != nil && *c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be positive, got %d", *c.BatchSize)
	}
	if c.Window != nil && *c.Window < 0 {
		return fmt.Errorf("window must be non-negative, got %d", *c.Window)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", *c.Workers)
	}
	if c.SegmentLength != nil && *c.SegmentLength < 2 {
		return fmt.Errorf("segment_length must be at least 2, got %d", *c.SegmentLength)
	}
	if c.Overlap != nil && *c.Overlap >= c.GetSegmentLength() {
		return fmt.Errorf("overlap %d must be shorter than segment_length %d", *c.Overlap, c.GetSegmentLength())
	}
	return nil
}

func (c *Config) basis() (units.Basis, error) {
	b := units.SI
	if c.TranslationUnit != nil {
		u, err := units.ParseUnit(*c.TranslationUnit)
		if err != nil {
			return units.Basis{}, fmt.Errorf("translation_unit: %w", err)
		}
		b.Translation = u
	}
	if c.RotationUnit != nil {
		u, err := units.ParseUnit(*c.RotationUnit)
		if err != nil {
			return units.Basis{}, fmt.Errorf("rotation_unit: %w", err)
		}
		b.Rotation = u
	}
	return b, nil
}

// GetSensitivities returns the artifact location or the default path.
func (c *Config) GetSensitivities() string {
	if c.Sensitivities == nil || *c.Sensitivities == "" {
		return sensitivity.DefaultPath()
	}
	return *c.Sensitivities
}

// GetMetrics returns the configured metric kinds, or nil for every stored
// kind. Names that fail to parse are dropped; Validate reports them.
func (c *Config) GetMetrics() []metric.Kind {
	var out []metric.Kind
	for _, name := range c.Metrics {
		if k, err := metric.ParseKind(name); err == nil {
			out = append(out, k)
		}
	}
	return out
}

// GetBasis returns the units of input rigid body motions, SI by default.
func (c *Config) GetBasis() units.Basis {
	b, err := c.basis()
	if err != nil {
		return units.SI
	}
	return b
}

// GetBatchSize returns the batch_size value or the default.
func (c *Config) GetBatchSize() int {
	if c.BatchSize == nil {
		return pipeline.DefaultBatchSize
	}
	return *c.BatchSize
}

// GetWindow returns the window value or the default.
func (c *Config) GetWindow() int {
	if c.Window == nil {
		return 0 // default: no window
	}
	return *c.Window
}

// GetWorkers returns the workers value or the default.
func (c *Config) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	return *c.Workers
}

// GetSegmentLength returns the segment_length value or the default.
func (c *Config) GetSegmentLength() int {
	if c.SegmentLength == nil {
		return stats.DefaultSegmentLength
	}
	return *c.SegmentLength
}

// GetOverlap returns the overlap value, 0 meaning half a segment.
func (c *Config) GetOverlap() int {
	if c.Overlap == nil {
		return 0
	}
	return *c.Overlap
}

// GetDatabase returns the database path, empty when storage is disabled.
func (c *Config) GetDatabase() string {
	if c.Database == nil {
		return ""
	}
	return *c.Database
}

// PipelineOptions returns the pipeline options the configuration selects.
func (c *Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		BatchSize: c.GetBatchSize(),
		Window:    c.GetWindow(),
		Workers:   c.GetWorkers(),
	}
}

// WelchOptions returns the PSD options the configuration selects.
func (c *Config) WelchOptions() stats.WelchOptions {
	return stats.WelchOptions{SegmentLength: c.GetSegmentLength(), Overlap: c.GetOverlap()}
}

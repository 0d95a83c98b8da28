// Package config provides unified configuration for the spatialbench CLI.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	spatialerrors "github.com/arkilian/spatialbench/internal/errors"
)

// EnvPrefix is the prefix of every environment variable read by LoadFromEnv.
const EnvPrefix = "SPATIALBENCH"

// Mode selects how the benchmark harness schedules queries.
type Mode string

const (
	ModeInterQuery Mode = "inter-query"
	ModePerQuery   Mode = "per-query"
	ModeSerial     Mode = "serial"
)

// Boundary selects whether range filters include the box surface.
type Boundary string

const (
	BoundaryInclusive Boundary = "inclusive"
	BoundaryExclusive Boundary = "exclusive"
)

// Config holds the complete configuration of a spatialbench invocation.
type Config struct {
	// Index is the spatial index service to query
	Index IndexConfig `json:"index" yaml:"index"`

	// Bench controls the benchmark harness
	Bench BenchConfig `json:"bench" yaml:"bench"`

	// Output is where reports and exports are written
	Output OutputConfig `json:"output" yaml:"output"`

	// Archive optionally copies reports to durable storage
	Archive ArchiveConfig `json:"archive" yaml:"archive"`

	// History is the run-history catalog
	History HistoryConfig `json:"history" yaml:"history"`

	// Metrics exposes prometheus metrics while a run is in progress
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Log configures the zap logger
	Log LogConfig `json:"log" yaml:"log"`
}

// IndexConfig holds index service connection settings.
type IndexConfig struct {
	// URL is the service base URL, e.g. http://localhost:8983/solr
	URL string `json:"url" yaml:"url" validate:"omitempty,url"`

	// Core is the collection name
	Core string `json:"core" yaml:"core"`

	// Timeout bounds every request to the service
	Timeout time.Duration `json:"timeout" yaml:"timeout" validate:"gte=0"`

	// RetryMax is the transport retry budget; 0 disables retries
	RetryMax int `json:"retry_max" yaml:"retry_max" split_words:"true" validate:"gte=0,lte=10"`

	// LabelConcurrency bounds the per-label stats queries of the label resolver
	LabelConcurrency int `json:"label_concurrency" yaml:"label_concurrency" split_words:"true" validate:"gte=1"`

	// Dimensions is the dimensionality of the indexed points
	Dimensions int `json:"dimensions" yaml:"dimensions" validate:"gte=1,lte=4"`

	// Boundary is the range-filter surface semantics: inclusive or exclusive
	Boundary Boundary `json:"boundary" yaml:"boundary" validate:"oneof=inclusive exclusive"`

	// Fields overrides the document field names
	Fields FieldsConfig `json:"fields" yaml:"fields"`
}

// FieldsConfig names the document fields queries are built on.
type FieldsConfig struct {
	ID          string `json:"id" yaml:"id" validate:"required"`
	Space       string `json:"space" yaml:"space" validate:"required"`
	Coordinates string `json:"coordinates" yaml:"coordinates" validate:"required"`
}

// BenchConfig holds benchmark harness settings.
type BenchConfig struct {
	// Mode is inter-query, per-query or serial
	Mode Mode `json:"mode" yaml:"mode" validate:"oneof=inter-query per-query serial"`

	// Repetitions is the number of timed executions per query type
	Repetitions int `json:"repetitions" yaml:"repetitions" validate:"gte=1"`

	// Workers is the number of concurrent workers
	Workers int `json:"workers" yaml:"workers" validate:"gte=1"`

	// Shuffle randomizes the task order before partitioning
	Shuffle bool `json:"shuffle" yaml:"shuffle"`

	// Seed fixes the shuffle; 0 derives a seed from the run id
	Seed int64 `json:"seed" yaml:"seed"`

	// Rate limits each worker to this many queries per second; 0 is unlimited
	Rate float64 `json:"rate" yaml:"rate" validate:"gte=0"`

	// BoxLow and BoxHigh are the corners of the standard bbox query
	BoxLow  []float64 `json:"box_low" yaml:"box_low" split_words:"true" validate:"min=1,max=4"`
	BoxHigh []float64 `json:"box_high" yaml:"box_high" split_words:"true" validate:"min=1,max=4"`

	// Format is the report format: samples or summary
	Format string `json:"format" yaml:"format" validate:"oneof=samples summary"`
}

// OutputConfig controls where local files are written.
type OutputConfig struct {
	// Path is the report file; empty writes to stdout
	Path string `json:"path" yaml:"path"`
}

// ArchiveConfig holds report archive configuration.
type ArchiveConfig struct {
	// Type is the archive type: none, local, s3
	Type string `json:"type" yaml:"type" validate:"oneof=none local s3"`

	// Path is the local archive directory (for local type)
	Path string `json:"path" yaml:"path"`

	// Compress snappy-compresses archived reports
	Compress bool `json:"compress" yaml:"compress"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Prefix is prepended to every object key
	Prefix string `json:"prefix" yaml:"prefix"`
}

// HistoryConfig holds the run catalog configuration.
type HistoryConfig struct {
	// Path is the SQLite database file; empty disables history
	Path string `json:"path" yaml:"path"`
}

// MetricsConfig holds the metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables the endpoint
	Addr string `json:"addr" yaml:"addr"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `json:"format" yaml:"format" validate:"oneof=json console"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Timeout:          60 * time.Second,
			RetryMax:         0,
			LabelConcurrency: 1,
			Dimensions:       3,
			Boundary:         BoundaryInclusive,
			Fields: FieldsConfig{
				ID:          "properties.id",
				Space:       "geometry.referenceSpace_str",
				Coordinates: "geometry.coordinates",
			},
		},
		Bench: BenchConfig{
			Mode:        ModeInterQuery,
			Repetitions: 1,
			Workers:     1,
			Shuffle:     true,
			BoxLow:      []float64{0, 0, 0},
			BoxHigh:     []float64{0.1, 0.1, 0.1},
			Format:      "samples",
		},
		Archive: ArchiveConfig{
			Type: "none",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Resolve fills in derived defaults.
func (c *Config) Resolve() {
	if c.Archive.Type == "local" && c.Archive.Path == "" {
		c.Archive.Path = filepath.Join(".", "archive")
	}
	c.Index.URL = strings.TrimRight(c.Index.URL, "/")
	if c.Bench.Mode == ModeSerial {
		c.Bench.Workers = 1
		c.Bench.Shuffle = false
	}
}

var validate = validator.New()

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return spatialerrors.NewValidationError(spatialerrors.CodeInvalidConfig,
				fmt.Sprintf("invalid %s: failed %q check (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
		return spatialerrors.Wrap(spatialerrors.ErrCategoryValidation, spatialerrors.CodeInvalidConfig, "invalid configuration", err)
	}

	if len(c.Bench.BoxLow) != len(c.Bench.BoxHigh) {
		return spatialerrors.NewValidationError(spatialerrors.CodeMismatchedBox,
			fmt.Sprintf("bench.box_low has %d coordinates but bench.box_high has %d", len(c.Bench.BoxLow), len(c.Bench.BoxHigh)))
	}

	if c.Archive.Type == "s3" && c.Archive.S3.Bucket == "" {
		return spatialerrors.NewValidationError(spatialerrors.CodeInvalidConfig, "archive.s3.bucket is required when archive type is s3")
	}

	return nil
}

// RequireIndex checks the settings needed to talk to the index service.
func (c *Config) RequireIndex() error {
	if c.Index.URL == "" {
		return spatialerrors.NewValidationError(spatialerrors.CodeMissingParameter, "index url is required")
	}
	if c.Index.Core == "" {
		return spatialerrors.NewValidationError(spatialerrors.CodeMissingParameter, "index core is required")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// LoadFromEnv overlays SPATIALBENCH_* environment variables onto cfg.
// Nested sections use their field name as an infix, e.g.
// SPATIALBENCH_INDEX_URL or SPATIALBENCH_ARCHIVE_S3_BUCKET.
func LoadFromEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return spatialerrors.Wrap(spatialerrors.ErrCategoryValidation, spatialerrors.CodeInvalidConfig, "failed to read environment", err)
	}
	return nil
}

// Load builds a configuration from defaults, an optional file, .env files and
// the environment, in that order of increasing precedence.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		cfg, err = LoadFromFile(path)
		if err != nil {
			return nil, err
		}
	}
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EnsureDirectories creates the directories local outputs are written to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Archive.Path}
	if c.Output.Path != "" {
		dirs = append(dirs, filepath.Dir(c.Output.Path))
	}
	if c.History.Path != "" {
		dirs = append(dirs, filepath.Dir(c.History.Path))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

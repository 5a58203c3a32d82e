package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/face-sorter/internal/constants"
	"github.com/kozaktomas/face-sorter/internal/workerpool"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Metric names.
const (
	MetricCosine    = "cosine"
	MetricEuclidean = "euclidean"
)

// Index names.
const (
	IndexNone = "none"
	IndexHNSW = "hnsw"
)

type Config struct {
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Matching   MatchingConfig   `yaml:"matching"`
	Preprocess PreprocessConfig `yaml:"preprocess"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type EmbeddingConfig struct {
	URL     string        `yaml:"url"`     // face embedding server
	Timeout time.Duration `yaml:"timeout"` // per request
}

type MatchingConfig struct {
	Tolerance float64 `yaml:"tolerance"` // maximum distance for a match; 0 = metric default
	Metric    string  `yaml:"metric"`    // cosine or euclidean
	Index     string  `yaml:"index"`     // none or hnsw
}

type PreprocessConfig struct {
	MaxWidth    int `yaml:"max_width"`
	MaxHeight   int `yaml:"max_height"`
	JPEGQuality int `yaml:"jpeg_quality"`
}

type PipelineConfig struct {
	Workers         int           `yaml:"workers"`
	RegistryFile    string        `yaml:"registry_file"`
	ReportFile      string        `yaml:"report_file"`
	UnknownFolder   string        `yaml:"unknown_folder"`
	StagingDir      string        `yaml:"staging_dir"`
	PausePoll       time.Duration `yaml:"pause_poll"`
	StaleStagingAge time.Duration `yaml:"stale_staging_age"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a positive float, falling back like envInt.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration reads a positive duration such as "30s", falling back like envInt.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}

// Load builds the configuration from the embedded defaults, the optional
// YAML file at path, and environment variables, in that order.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Embedding.URL = envString("EMBEDDING_URL", c.Embedding.URL)
	c.Embedding.Timeout = envDuration("EMBEDDING_TIMEOUT", c.Embedding.Timeout)

	c.Matching.Tolerance = envFloat("FACE_TOLERANCE", c.Matching.Tolerance)
	c.Matching.Metric = envString("FACE_METRIC", c.Matching.Metric)
	c.Matching.Index = envString("FACE_INDEX", c.Matching.Index)

	c.Preprocess.MaxWidth = envInt("MAX_IMAGE_WIDTH", c.Preprocess.MaxWidth)
	c.Preprocess.MaxHeight = envInt("MAX_IMAGE_HEIGHT", c.Preprocess.MaxHeight)

	c.Pipeline.Workers = envInt("FACE_SORTER_WORKERS", c.Pipeline.Workers)
	c.Pipeline.RegistryFile = envString("REGISTRY_FILE", c.Pipeline.RegistryFile)
	c.Pipeline.ReportFile = envString("REPORT_FILE", c.Pipeline.ReportFile)
	c.Pipeline.StagingDir = envString("STAGING_DIR", c.Pipeline.StagingDir)

	c.Logging.Level = envString("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = envString("LOG_FORMAT", c.Logging.Format)
	c.Logging.File = envString("LOG_FILE", c.Logging.File)
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Matching.Tolerance < 0 {
		errs = append(errs, fmt.Errorf("matching.tolerance must not be negative, got %v", c.Matching.Tolerance))
	}
	switch c.Matching.Metric {
	case MetricCosine, MetricEuclidean:
	default:
		errs = append(errs, fmt.Errorf("unknown matching.metric %q", c.Matching.Metric))
	}
	switch c.Matching.Index {
	case IndexNone, "":
	case IndexHNSW:
		if c.Matching.Metric != MetricCosine {
			errs = append(errs, errors.New("matching.index hnsw requires the cosine metric"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown matching.index %q", c.Matching.Index))
	}
	if c.Preprocess.MaxWidth <= 0 || c.Preprocess.MaxHeight <= 0 {
		errs = append(errs, fmt.Errorf("preprocess dimensions must be positive, got %dx%d",
			c.Preprocess.MaxWidth, c.Preprocess.MaxHeight))
	}
	if c.Preprocess.JPEGQuality < 1 || c.Preprocess.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("preprocess.jpeg_quality must be 1-100, got %d", c.Preprocess.JPEGQuality))
	}
	if c.Pipeline.Workers < 0 {
		errs = append(errs, fmt.Errorf("pipeline.workers must not be negative, got %d", c.Pipeline.Workers))
	}
	if c.Pipeline.ReportFile == "" {
		errs = append(errs, errors.New("pipeline.report_file is required"))
	}
	if c.Pipeline.UnknownFolder == "" || filepath.Base(c.Pipeline.UnknownFolder) != c.Pipeline.UnknownFolder {
		errs = append(errs, fmt.Errorf("pipeline.unknown_folder must be a plain folder name, got %q", c.Pipeline.UnknownFolder))
	}
	return errors.Join(errs...)
}

// EffectiveTolerance returns the configured tolerance, or the default for
// the selected metric when none is set.
func (c *MatchingConfig) EffectiveTolerance() float64 {
	if c.Tolerance > 0 {
		return c.Tolerance
	}
	if c.Metric == MetricEuclidean {
		return constants.DefaultEuclideanThreshold
	}
	return constants.DefaultDistanceThreshold
}

// UseIndex reports whether the HNSW index is enabled.
func (c *MatchingConfig) UseIndex() bool {
	return c.Index == IndexHNSW
}

// WorkerCount returns the configured worker count, or one sized from the
// CPU count when unset.
func (c *PipelineConfig) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return workerpool.Size(runtime.NumCPU())
}

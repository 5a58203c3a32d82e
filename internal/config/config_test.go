package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Embedding.URL != "http://localhost:8000" {
		t.Errorf("expected default embedding URL, got '%s'", cfg.Embedding.URL)
	}
	if cfg.Embedding.Timeout != 60*time.Second {
		t.Errorf("expected default timeout 60s, got %v", cfg.Embedding.Timeout)
	}
	if cfg.Matching.Metric != MetricCosine {
		t.Errorf("expected cosine metric, got '%s'", cfg.Matching.Metric)
	}
	if cfg.Preprocess.MaxWidth != 2560 || cfg.Preprocess.MaxHeight != 1440 {
		t.Errorf("expected 2560x1440, got %dx%d", cfg.Preprocess.MaxWidth, cfg.Preprocess.MaxHeight)
	}
	if cfg.Pipeline.ReportFile != "relatorio.txt" {
		t.Errorf("expected report file relatorio.txt, got '%s'", cfg.Pipeline.ReportFile)
	}
	if cfg.Pipeline.UnknownFolder != "unknown" {
		t.Errorf("expected unknown folder 'unknown', got '%s'", cfg.Pipeline.UnknownFolder)
	}
	if cfg.Pipeline.PausePoll != 100*time.Millisecond {
		t.Errorf("expected pause poll 100ms, got %v", cfg.Pipeline.PausePoll)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Matching.EffectiveTolerance() != 0.5 {
		t.Errorf("expected tolerance 0.5, got %v", cfg.Matching.EffectiveTolerance())
	}
}

func TestLoad_FileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "face-sorter.yaml")
	content := `
matching:
  tolerance: 0.35
pipeline:
  workers: 3
  report_file: /tmp/report.txt
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Matching.Tolerance != 0.35 {
		t.Errorf("expected tolerance 0.35, got %v", cfg.Matching.Tolerance)
	}
	if cfg.Pipeline.Workers != 3 {
		t.Errorf("expected 3 workers, got %d", cfg.Pipeline.Workers)
	}
	if cfg.Pipeline.ReportFile != "/tmp/report.txt" {
		t.Errorf("expected overridden report file, got '%s'", cfg.Pipeline.ReportFile)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Matching.Metric != MetricCosine {
		t.Errorf("expected metric to keep default, got '%s'", cfg.Matching.Metric)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("EMBEDDING_URL", "http://embed.test:9000")
	t.Setenv("EMBEDDING_TIMEOUT", "5s")
	t.Setenv("FACE_TOLERANCE", "0.3")
	t.Setenv("FACE_METRIC", "euclidean")
	t.Setenv("FACE_SORTER_WORKERS", "7")
	t.Setenv("MAX_IMAGE_WIDTH", "1024")
	t.Setenv("REPORT_FILE", "out.txt")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Embedding.URL != "http://embed.test:9000" {
		t.Errorf("expected URL override, got '%s'", cfg.Embedding.URL)
	}
	if cfg.Embedding.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", cfg.Embedding.Timeout)
	}
	if cfg.Matching.Tolerance != 0.3 {
		t.Errorf("expected tolerance 0.3, got %v", cfg.Matching.Tolerance)
	}
	if cfg.Matching.Metric != MetricEuclidean {
		t.Errorf("expected euclidean metric, got '%s'", cfg.Matching.Metric)
	}
	if cfg.Pipeline.WorkerCount() != 7 {
		t.Errorf("expected 7 workers, got %d", cfg.Pipeline.WorkerCount())
	}
	if cfg.Preprocess.MaxWidth != 1024 {
		t.Errorf("expected max width 1024, got %d", cfg.Preprocess.MaxWidth)
	}
	if cfg.Pipeline.ReportFile != "out.txt" {
		t.Errorf("expected report file out.txt, got '%s'", cfg.Pipeline.ReportFile)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got '%s'", cfg.Logging.Level)
	}
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("FACE_SORTER_WORKERS", "invalid")
	t.Setenv("FACE_TOLERANCE", "-1")
	t.Setenv("EMBEDDING_TIMEOUT", "soon")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Pipeline.Workers != 0 {
		t.Errorf("expected workers to keep default 0, got %d", cfg.Pipeline.Workers)
	}
	if cfg.Matching.Tolerance != 0 {
		t.Errorf("expected tolerance to keep default, got %v", cfg.Matching.Tolerance)
	}
	if cfg.Embedding.Timeout != 60*time.Second {
		t.Errorf("expected timeout to keep default, got %v", cfg.Embedding.Timeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"negative tolerance", func(c *Config) { c.Matching.Tolerance = -0.1 }, "tolerance"},
		{"unknown metric", func(c *Config) { c.Matching.Metric = "manhattan" }, "metric"},
		{"unknown index", func(c *Config) { c.Matching.Index = "faiss" }, "index"},
		{"hnsw with euclidean", func(c *Config) {
			c.Matching.Index = IndexHNSW
			c.Matching.Metric = MetricEuclidean
		}, "requires the cosine metric"},
		{"zero width", func(c *Config) { c.Preprocess.MaxWidth = 0 }, "dimensions"},
		{"quality out of range", func(c *Config) { c.Preprocess.JPEGQuality = 101 }, "jpeg_quality"},
		{"negative workers", func(c *Config) { c.Pipeline.Workers = -2 }, "workers"},
		{"empty report file", func(c *Config) { c.Pipeline.ReportFile = "" }, "report_file"},
		{"nested unknown folder", func(c *Config) { c.Pipeline.UnknownFolder = "a/b" }, "unknown_folder"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestEffectiveTolerance(t *testing.T) {
	tests := []struct {
		metric    string
		tolerance float64
		want      float64
	}{
		{MetricCosine, 0, 0.5},
		{MetricEuclidean, 0, 0.4},
		{MetricCosine, 0.25, 0.25},
		{MetricEuclidean, 0.6, 0.6},
	}

	for _, tt := range tests {
		m := MatchingConfig{Metric: tt.metric, Tolerance: tt.tolerance}
		if got := m.EffectiveTolerance(); got != tt.want {
			t.Errorf("EffectiveTolerance(%s, %v) = %v, want %v", tt.metric, tt.tolerance, got, tt.want)
		}
	}
}

func TestWorkerCount_Auto(t *testing.T) {
	p := PipelineConfig{}
	if p.WorkerCount() < 1 {
		t.Errorf("expected at least one worker, got %d", p.WorkerCount())
	}
}

package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-sorter/internal/config"
	"github.com/kozaktomas/face-sorter/internal/facematch"
	"github.com/kozaktomas/face-sorter/internal/fingerprint"
	"github.com/kozaktomas/face-sorter/internal/imaging"
	"github.com/kozaktomas/face-sorter/internal/logging"
)

// newCollaborator wires the embedding server client and the configured
// matcher.
func newCollaborator(cfg *config.Config) facematch.Collaborator {
	var matcher facematch.Matcher = facematch.CosineMatcher{}
	if cfg.Matching.Metric == config.MetricEuclidean {
		matcher = facematch.EuclideanMatcher{}
	}
	return facematch.Collaborator{
		Embedder:  fingerprint.NewEmbeddingClient(cfg.Embedding.URL, cfg.Embedding.Timeout),
		Matcher:   matcher,
		Tolerance: cfg.Matching.EffectiveTolerance(),
		UseIndex:  cfg.Matching.UseIndex(),
	}
}

// newLogger builds the base logger. Console output of the separate command
// comes from the sorter's log queue, so stderr is only used by commands
// without one.
func newLogger(cfg *config.Config, stderr bool) (*zap.Logger, error) {
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
		Stderr: stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return logger, nil
}

func newProcessor(cfg *config.Config, logger *zap.Logger) *imaging.Processor {
	return imaging.NewProcessor(cfg.Preprocess.MaxWidth, cfg.Preprocess.MaxHeight, cfg.Preprocess.JPEGQuality, logger)
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

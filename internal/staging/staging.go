// Package staging manages the per-session scratch directory holding
// preprocessed copies of input and reference images.
package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-sorter/internal/constants"
)

// Area is a session staging directory. It is removed exactly once by Remove.
type Area struct {
	path string
	once sync.Once
	err  error
}

// New creates a staging directory under parent (the system temp dir when
// empty). The directory name carries the session ID so leftovers can be
// traced back to a run.
func New(parent, sessionID string) (*Area, error) {
	if parent == "" {
		parent = os.TempDir()
	}
	parent, err := filepath.Abs(parent)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve staging parent: %w", err)
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging parent: %w", err)
	}
	dir, err := os.MkdirTemp(parent, constants.StagingPrefix+sessionID+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	return &Area{path: dir}, nil
}

// Path returns the staging directory.
func (a *Area) Path() string {
	return a.path
}

// File returns the path of name inside the staging directory.
func (a *Area) File(name string) string {
	return filepath.Join(a.path, filepath.Base(name))
}

// Contains reports whether path lies inside the staging directory.
func (a *Area) Contains(path string) bool {
	rel, err := filepath.Rel(a.path, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Remove deletes the staging directory and everything in it. Later calls
// return the result of the first.
func (a *Area) Remove() error {
	a.once.Do(func() {
		if err := os.RemoveAll(a.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			a.err = fmt.Errorf("failed to remove staging directory: %w", err)
		}
	})
	return a.err
}

// CleanStale removes staging directories under parent that are older than
// maxAge, left behind by sessions that crashed before teardown. Failures are
// logged and skipped. It returns the number of directories removed.
func CleanStale(parent string, maxAge time.Duration, logger *zap.Logger) int {
	if parent == "" {
		parent = os.TempDir()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	entries, err := os.ReadDir(parent)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to list staging parent", zap.String("dir", parent), zap.Error(err))
		}
		return 0
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), constants.StagingPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(parent, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			logger.Warn("failed to remove stale staging directory", zap.String("dir", path), zap.Error(err))
			continue
		}
		logger.Info("removed stale staging directory", zap.String("dir", path))
		removed++
	}
	return removed
}

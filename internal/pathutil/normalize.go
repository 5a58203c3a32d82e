// Package pathutil canonicalizes filesystem paths and keeps them inside an allowed root.
package pathutil

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrPathEscape is matched by every *PathEscapeError.
var ErrPathEscape = errors.New("path escapes allowed root")

// PathEscapeError reports a path that resolves outside its allowed root.
type PathEscapeError struct {
	Path string
	Root string
}

func (e *PathEscapeError) Error() string {
	return fmt.Sprintf("path %s is outside allowed root %s", e.Path, e.Root)
}

// Is lets errors.Is(err, ErrPathEscape) match.
func (e *PathEscapeError) Is(target error) bool {
	return target == ErrPathEscape
}

// Normalize returns the absolute, NFC-normalized, forward-slash form of path.
// If allowedRoot is non-empty the result must be the root itself or lie beneath it.
func Normalize(path, allowedRoot string) (string, error) {
	p, err := canonical(path)
	if err != nil {
		return "", err
	}
	if allowedRoot == "" {
		return p, nil
	}

	root, err := canonical(allowedRoot)
	if err != nil {
		return "", err
	}
	if !Within(p, root) {
		return "", &PathEscapeError{Path: p, Root: root}
	}
	return p, nil
}

// Within reports whether path equals root or is nested beneath it.
// Both arguments are expected to be canonical (see Normalize).
func Within(path, root string) bool {
	rel, err := filepath.Rel(filepath.FromSlash(root), filepath.FromSlash(path))
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return rel != ".." && !strings.HasPrefix(rel, "../") && !filepath.IsAbs(rel)
}

func canonical(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("empty path")
	}
	abs, err := filepath.Abs(norm.NFC.String(path))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return filepath.ToSlash(filepath.Clean(abs)), nil
}

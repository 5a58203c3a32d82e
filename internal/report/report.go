// Package report tallies the output folders of a session and writes the
// plain-text summary.
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kozaktomas/face-sorter/internal/imaging"
)

// FolderCount is the number of images in one output folder.
type FolderCount struct {
	Name   string `json:"name"`
	Images int    `json:"images"`
}

// Summary is the content of a report.
type Summary struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Folders     []FolderCount `json:"folders"`
	Errors      []string      `json:"errors"`
}

// Tally counts image files in each immediate subdirectory of outputRoot,
// sorted by folder name. A missing outputRoot has no folders.
func Tally(outputRoot string) ([]FolderCount, error) {
	entries, err := os.ReadDir(outputRoot)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list output folder: %w", err)
	}

	var folders []FolderCount
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(outputRoot, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", entry.Name(), err)
		}
		count := 0
		for _, f := range files {
			if f.Type().IsRegular() && imaging.IsImageFile(f.Name()) {
				count++
			}
		}
		folders = append(folders, FolderCount{Name: entry.Name(), Images: count})
	}

	sort.Slice(folders, func(i, j int) bool {
		return folders[i].Name < folders[j].Name
	})
	return folders, nil
}

// Generate tallies outputRoot and writes the report to reportPath. The
// returned summary is complete even when writing fails; a tally failure is
// recorded as one more error line rather than aborting the report.
func Generate(outputRoot string, errs []string, reportPath string, now time.Time) (*Summary, error) {
	summary := &Summary{
		GeneratedAt: now,
		Errors:      append([]string(nil), errs...),
	}

	folders, err := Tally(outputRoot)
	if err != nil {
		summary.Errors = append(summary.Errors, err.Error())
	}
	summary.Folders = folders

	if err := write(reportPath, summary.Render()); err != nil {
		return summary, err
	}
	return summary, nil
}

// Render formats the summary as report text.
func (s *Summary) Render() string {
	var b strings.Builder
	b.WriteString("Relatório de Separação\n")
	fmt.Fprintf(&b, "Data: %s\n\n", s.GeneratedAt.Format("2006-01-02 15:04:05"))
	for _, f := range s.Folders {
		fmt.Fprintf(&b, "%s: %d fotos\n", f.Name, f.Images)
	}
	b.WriteString("\nErros Encontrados:\n")
	for _, e := range s.Errors {
		fmt.Fprintf(&b, "- %s\n", e)
	}
	return b.String()
}

func write(path, content string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report folder: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

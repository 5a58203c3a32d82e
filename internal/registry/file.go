package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Record is the persisted form of the registry: name -> reference image
// paths, relative to the reference folder when inside it.
type Record map[string][]string

type entry struct {
	Images []string `json:"images" yaml:"images"`
	// Legacy key written by older tools.
	Imagens []string `json:"imagens,omitempty" yaml:"imagens,omitempty"`
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// ReadRecord reads a registry file. A missing file yields an empty record
// and an error wrapping os.ErrNotExist.
func ReadRecord(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, err
		}
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	var raw map[string]entry
	if isYAML(path) {
		err = yaml.Unmarshal(data, &raw)
	} else {
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry %s: %w", path, err)
	}

	rec := make(Record, len(raw))
	for name, e := range raw {
		rec[name] = append(e.Images, e.Imagens...)
	}
	return rec, nil
}

// WriteRecord writes rec to path atomically. The format follows the file
// extension: YAML for .yaml/.yml, indented JSON otherwise.
func WriteRecord(path string, rec Record) error {
	raw := make(map[string]entry, len(rec))
	for name, images := range rec {
		if images == nil {
			images = []string{}
		}
		raw[name] = entry{Images: images}
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(raw)
	} else {
		data, err = json.MarshalIndent(raw, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create registry folder: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".registry-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write registry: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("failed to set registry permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace registry: %w", err)
	}
	return nil
}

package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/gnowledge/nodeBook-sub003/pkg/core"
)

const (
	catalogFile     = "catalog.yaml"
	preferencesFile = "preferences.yaml"
)

// catalog is the per-user list of documents in creation order.
type catalog struct {
	Version int                 `yaml:"version"`
	Graphs  []core.DocumentInfo `yaml:"graphs"`
}

func (c *catalog) find(id string) (core.DocumentInfo, bool) {
	i := slices.IndexFunc(c.Graphs, func(info core.DocumentInfo) bool { return info.ID == id })
	if i < 0 {
		return core.DocumentInfo{}, false
	}
	return c.Graphs[i], true
}

// preferences is the per-user preferences file.
type preferences struct {
	Difficulty string `yaml:"difficulty"`
}

// loadYAML reads path into v. A missing file leaves v untouched.
func loadYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func saveYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return writeFileAtomic(path, data, 0644)
}

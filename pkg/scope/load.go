package scope

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed default_hierarchy.yaml
var defaultHierarchyYAML []byte

var (
	defaultOnce      sync.Once
	defaultHierarchy *Hierarchy
)

// Parse builds a hierarchy from YAML
func Parse(data []byte) (*Hierarchy, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse hierarchy: %w", err)
	}
	if len(def.Colleges) == 0 {
		return nil, fmt.Errorf("hierarchy has no colleges")
	}
	return New(def)
}

// Load reads a hierarchy file. An empty path returns the embedded default.
func Load(path string) (*Hierarchy, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read hierarchy file: %w", err)
	}
	h, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

// Default returns the hierarchy compiled into the binary
func Default() *Hierarchy {
	defaultOnce.Do(func() {
		h, err := Parse(defaultHierarchyYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded hierarchy is invalid: %v", err))
		}
		defaultHierarchy = h
	})
	return defaultHierarchy
}

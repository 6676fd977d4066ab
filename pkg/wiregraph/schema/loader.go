package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the on-disk form of a registry: an ordered list of types.
type Document struct {
	Types []*TypeSchema `yaml:"types" json:"types"`
}

// LoadFile reads a registry document, choosing the format by extension.
// Supported extensions: .yaml, .yml, .json
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return nil, fmt.Errorf("unsupported schema file extension: %s", ext)
	}
}

// FromYAML builds a registry from a YAML document.
func FromYAML(data []byte) (*Registry, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return fromDocument(doc)
}

// FromJSON builds a registry from a JSON document.
func FromJSON(data []byte) (*Registry, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return fromDocument(doc)
}

func fromDocument(doc Document) (*Registry, error) {
	reg := NewRegistry()
	if err := reg.RegisterMany(doc.Types); err != nil {
		return nil, err
	}
	return reg, nil
}

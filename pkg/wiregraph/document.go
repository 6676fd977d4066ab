package wiregraph

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidDocument indicates a workflow document failed field validation.
var ErrInvalidDocument = errors.New("invalid workflow document")

// Workflow is the on-disk form of one workflow.
type Workflow struct {
	ID    string  `json:"id" yaml:"id" validate:"required"`
	Name  string  `json:"name,omitempty" yaml:"name,omitempty"`
	Nodes []*Node `json:"nodes" yaml:"nodes" validate:"dive,required"`
	Edges []*Edge `json:"edges" yaml:"edges" validate:"dive,required"`
}

// Graph returns the workflow's graph. The slices are shared, not copied.
func (w *Workflow) Graph() *Graph {
	return &Graph{Nodes: w.Nodes, Edges: w.Edges}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks required fields and enumerations.
// Graph structure is checked separately by ValidateGraph.
func (w *Workflow) Validate() error {
	if err := validate.Struct(w); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			errs := make([]error, 0, len(verrs))
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%w: %s failed %s", ErrInvalidDocument, fe.Namespace(), fe.Tag()))
			}
			return errors.Join(errs...)
		}
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return nil
}

// LoadWorkflow reads a workflow document, auto-detecting format by extension.
// Supported extensions: .yaml, .yml, .json
func LoadWorkflow(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow file: %w", err)
	}
	format, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	return ParseWorkflow(data, format)
}

// ParseWorkflow decodes and validates a workflow document.
// format is "yaml" or "json".
func ParseWorkflow(data []byte, format string) (*Workflow, error) {
	var w Workflow
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case "json":
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported workflow format: %s", format)
	}

	for _, n := range w.Nodes {
		if n != nil {
			n.Status = n.Status.orNone()
		}
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}

// SaveWorkflow writes w to path in the format implied by its extension.
func SaveWorkflow(path string, w *Workflow) error {
	format, err := formatOf(path)
	if err != nil {
		return err
	}
	data, err := MarshalWorkflow(w, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write workflow file: %w", err)
	}
	return nil
}

// MarshalWorkflow encodes w as "yaml" or "json".
func MarshalWorkflow(w *Workflow, format string) ([]byte, error) {
	switch format {
	case "yaml":
		data, err := yaml.Marshal(w)
		if err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return data, nil
	case "json":
		data, err := json.MarshalIndent(w, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("unsupported workflow format: %s", format)
	}
}

func formatOf(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return "yaml", nil
	case ".json":
		return "json", nil
	default:
		return "", fmt.Errorf("unsupported workflow file extension: %s", ext)
	}
}

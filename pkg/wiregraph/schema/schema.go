package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownType indicates a type name has no registered schema.
var ErrUnknownType = errors.New("unknown node type")

// ErrInvalidSchema indicates a type schema failed registration checks.
var ErrInvalidSchema = errors.New("invalid type schema")

// ErrDuplicateType indicates a type name is already registered.
var ErrDuplicateType = errors.New("duplicate node type")

// Kind is the closed set of node variants the editor knows how to treat.
type Kind string

const (
	// KindDynamic is a generic node whose ports come straight from its schema.
	KindDynamic Kind = "dynamic"

	// KindInput is a workflow entry node; its config holds the initial inputs.
	KindInput Kind = "input"

	// KindGroup is a container node that other nodes can be parented to.
	KindGroup Kind = "group"

	// KindRouter exposes one output branch per configured route.
	KindRouter Kind = "router"
)

// ParseKind converts a document value to a Kind.
// Empty input yields KindDynamic.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindDynamic:
		return KindDynamic, nil
	case KindInput:
		return KindInput, nil
	case KindGroup:
		return KindGroup, nil
	case KindRouter:
		return KindRouter, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidSchema, s)
	}
}

// Field is one named, typed entry of an input, output or config schema.
type Field struct {
	Name        string   `yaml:"name" json:"name"`
	Type        string   `yaml:"type,omitempty" json:"type,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Default     any      `yaml:"default,omitempty" json:"default,omitempty"`
	Required    bool     `yaml:"required,omitempty" json:"required,omitempty"`
	Enum        []any    `yaml:"enum,omitempty" json:"enum,omitempty"`
	Minimum     *float64 `yaml:"minimum,omitempty" json:"minimum,omitempty"`
	Maximum     *float64 `yaml:"maximum,omitempty" json:"maximum,omitempty"`
	MinLength   *int     `yaml:"min_length,omitempty" json:"min_length,omitempty"`
	MaxLength   *int     `yaml:"max_length,omitempty" json:"max_length,omitempty"`
}

// TypeOrAny returns the declared type, or "any" when none was declared.
func (f Field) TypeOrAny() string {
	if f.Type == "" {
		return "any"
	}
	return f.Type
}

// TypeSchema describes one node type.
// It must not be modified after registration.
type TypeSchema struct {
	Name    string  `yaml:"name" json:"name"`
	Title   string  `yaml:"title,omitempty" json:"title,omitempty"`
	Kind    Kind    `yaml:"kind,omitempty" json:"kind,omitempty"`
	Inputs  []Field `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Outputs []Field `yaml:"outputs,omitempty" json:"outputs,omitempty"`
	Config  []Field `yaml:"config,omitempty" json:"config,omitempty"`
}

// ConfigField returns the config field with the given name.
func (ts *TypeSchema) ConfigField(name string) (Field, bool) {
	if ts == nil {
		return Field{}, false
	}
	for _, f := range ts.Config {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// check verifies the schema is registrable and normalizes its kind.
func (ts *TypeSchema) check() error {
	if ts == nil {
		return fmt.Errorf("%w: nil schema", ErrInvalidSchema)
	}
	if strings.TrimSpace(ts.Name) == "" {
		return fmt.Errorf("%w: type name is required", ErrInvalidSchema)
	}

	kind, err := ParseKind(string(ts.Kind))
	if err != nil {
		return fmt.Errorf("type %s: %w", ts.Name, err)
	}
	ts.Kind = kind

	var errs []error
	sections := []struct {
		name   string
		fields []Field
	}{
		{"inputs", ts.Inputs},
		{"outputs", ts.Outputs},
		{"config", ts.Config},
	}
	for _, s := range sections {
		section := s.name
		seen := make(map[string]bool, len(s.fields))
		for _, f := range s.fields {
			if f.Name == "" {
				errs = append(errs, fmt.Errorf("%w: type %s: empty field name in %s", ErrInvalidSchema, ts.Name, section))
				continue
			}
			if seen[f.Name] {
				errs = append(errs, fmt.Errorf("%w: type %s: duplicate field %q in %s", ErrInvalidSchema, ts.Name, f.Name, section))
			}
			seen[f.Name] = true
		}
	}
	return errors.Join(errs...)
}

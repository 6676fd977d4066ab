package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidConfig indicates a live config does not satisfy its config schema.
var ErrInvalidConfig = errors.New("invalid node config")

// JSONSchema renders the config fields as a JSON Schema object.
// Unknown keys are allowed; the editor keeps UI-only values in config too.
func (ts *TypeSchema) JSONSchema() map[string]any {
	props := make(map[string]any)
	required := []any{}

	if ts != nil {
		for _, f := range ts.Config {
			props[f.Name] = fieldSchema(f)
			if f.Required {
				required = append(required, f.Name)
			}
		}
	}

	doc := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

func fieldSchema(f Field) map[string]any {
	s := make(map[string]any)
	if t := f.TypeOrAny(); t != "any" {
		s["type"] = t
	}
	if f.Description != "" {
		s["description"] = f.Description
	}
	if len(f.Enum) > 0 {
		s["enum"] = f.Enum
	}
	if f.Minimum != nil {
		s["minimum"] = *f.Minimum
	}
	if f.Maximum != nil {
		s["maximum"] = *f.Maximum
	}
	if f.MinLength != nil {
		s["minLength"] = *f.MinLength
	}
	if f.MaxLength != nil {
		s["maxLength"] = *f.MaxLength
	}
	return s
}

// ValidateConfig checks cfg against the config schema.
// A nil schema (unknown type) accepts any config.
func (ts *TypeSchema) ValidateConfig(cfg map[string]any) error {
	if ts == nil {
		return nil
	}
	if cfg == nil {
		cfg = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(ts.JSONSchema()),
		gojsonschema.NewGoLoader(cfg),
	)
	if err != nil {
		return fmt.Errorf("validate config for %s: %w", ts.Name, err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, ts.Name, strings.Join(msgs, "; "))
	}
	return nil
}

// ApplyDefaults returns a copy of cfg with declared defaults filled in for
// missing keys. cfg itself is not modified.
func (ts *TypeSchema) ApplyDefaults(cfg map[string]any) map[string]any {
	out := make(map[string]any, len(cfg))
	for k, v := range cfg {
		out[k] = v
	}
	if ts == nil {
		return out
	}
	for _, f := range ts.Config {
		if _, ok := out[f.Name]; !ok && f.Default != nil {
			out[f.Name] = f.Default
		}
	}
	return out
}

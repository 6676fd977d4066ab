package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidSettings indicates a settings file loaded but failed validation.
var ErrInvalidSettings = errors.New("invalid settings")

// LayoutSettings configures auto-layout.
type LayoutSettings struct {
	Direction        string  `validate:"oneof=top_to_bottom left_to_right"`
	RankSpacing      float64 `validate:"gte=0"`
	NodeSpacing      float64 `validate:"gte=0"`
	ComponentSpacing float64 `validate:"gte=0"`
	GroupPadding     float64 `validate:"gte=0"`
	DefaultWidth     float64 `validate:"gt=0"`
	DefaultHeight    float64 `validate:"gt=0"`
}

// ConnectSettings configures the connection guard.
type ConnectSettings struct {
	CrossScope bool
}

// RunSettings configures run dispatch and status polling.
type RunSettings struct {
	WorkflowID   string
	PollInterval time.Duration `validate:"gt=0"`
	GroupPolicy  string        `validate:"oneof=detach cascade"`
}

// LogSettings configures the logger.
type LogSettings struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=text json"`
}

// StoreSettings configures the output cache.
type StoreSettings struct {
	Driver string `validate:"oneof=memory sqlite"`
	Path   string `validate:"required_if=Driver sqlite"`
}

// TelemetrySettings configures trace export.
type TelemetrySettings struct {
	OTLPEndpoint string
	Insecure     bool
	ServiceName  string `validate:"required"`
}

// Settings is the editor-side configuration file.
type Settings struct {
	Layout    LayoutSettings
	Connect   ConnectSettings
	Runs      RunSettings
	Log       LogSettings
	Store     StoreSettings
	Telemetry TelemetrySettings
}

// Defaults returns the settings used when no file is given.
func Defaults() Settings {
	return Settings{
		Layout: LayoutSettings{
			Direction:        "top_to_bottom",
			RankSpacing:      80,
			NodeSpacing:      40,
			ComponentSpacing: 120,
			GroupPadding:     24,
			DefaultWidth:     200,
			DefaultHeight:    80,
		},
		Runs: RunSettings{
			PollInterval: 2 * time.Second,
			GroupPolicy:  "detach",
		},
		Log: LogSettings{
			Level:  "info",
			Format: "text",
		},
		Store: StoreSettings{
			Driver: "memory",
		},
		Telemetry: TelemetrySettings{
			ServiceName: "wiregraph",
		},
	}
}

// FromValues overlays v onto the defaults and validates the result.
func FromValues(v Values) (Settings, error) {
	s := Defaults()

	layout := v.Section("layout")
	s.Layout.Direction = layout.String("direction", s.Layout.Direction)
	s.Layout.RankSpacing = layout.Float("rank_spacing", s.Layout.RankSpacing)
	s.Layout.NodeSpacing = layout.Float("node_spacing", s.Layout.NodeSpacing)
	s.Layout.ComponentSpacing = layout.Float("component_spacing", s.Layout.ComponentSpacing)
	s.Layout.GroupPadding = layout.Float("group_padding", s.Layout.GroupPadding)
	s.Layout.DefaultWidth = layout.Float("default_width", s.Layout.DefaultWidth)
	s.Layout.DefaultHeight = layout.Float("default_height", s.Layout.DefaultHeight)

	s.Connect.CrossScope = v.Section("connect").Bool("cross_scope", s.Connect.CrossScope)

	runs := v.Section("runs")
	s.Runs.WorkflowID = runs.String("workflow_id", s.Runs.WorkflowID)
	s.Runs.PollInterval = runs.Duration("poll_interval", s.Runs.PollInterval)
	s.Runs.GroupPolicy = runs.String("group_policy", s.Runs.GroupPolicy)

	logv := v.Section("log")
	s.Log.Level = strings.ToLower(logv.String("level", s.Log.Level))
	s.Log.Format = strings.ToLower(logv.String("format", s.Log.Format))

	store := v.Section("store")
	s.Store.Driver = store.String("driver", s.Store.Driver)
	s.Store.Path = store.String("path", s.Store.Path)

	tel := v.Section("telemetry")
	s.Telemetry.OTLPEndpoint = tel.String("otlp_endpoint", s.Telemetry.OTLPEndpoint)
	s.Telemetry.Insecure = tel.Bool("insecure", s.Telemetry.Insecure)
	s.Telemetry.ServiceName = tel.String("service_name", s.Telemetry.ServiceName)

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks field constraints. All violations are reported together.
func (s Settings) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidSettings, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return nil
}

// Load reads settings from a file, auto-detecting format by extension.
// Supported extensions: .yaml, .yml, .json
// An empty path returns the defaults.
func Load(path string) (Settings, error) {
	if path == "" {
		return Defaults(), nil
	}
	v, err := FromFile(path)
	if err != nil {
		return Settings{}, err
	}
	return FromValues(v)
}

// FromFile loads raw values from a file, auto-detecting format by extension.
func FromFile(path string) (Values, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return nil, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// FromYAML parses YAML data into Values.
func FromYAML(data []byte) (Values, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return Values(m), nil
}

// FromJSON parses JSON data into Values.
func FromJSON(data []byte) (Values, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return Values(m), nil
}

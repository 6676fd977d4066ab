/*
Package config provides typed access to loosely typed maps and the editor's
settings file.

# Values

Values wraps a map[string]any, such as a node's live config or a decoded
YAML document, and returns defaults on missing keys or type mismatches:

	v := config.Values{"poll_interval": "5s", "cross_scope": true}
	v.Duration("poll_interval", time.Second) // 5s
	v.Bool("cross_scope", false)             // true
	v.String("missing", "fallback")          // "fallback"

Duration accepts strings ("1m30s") and numbers (seconds). Int accepts a
float64 only when it has no fractional part.

# Settings

Load reads a YAML or JSON settings file and overlays it onto Defaults:

	layout:
	  direction: left_to_right
	  rank_spacing: 100
	runs:
	  poll_interval: 2s
	store:
	  driver: sqlite
	  path: outputs.db

The result is validated; every violation is reported in one error wrapping
ErrInvalidSettings.
*/
package config

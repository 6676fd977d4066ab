package layout

// Direction is the axis ranks advance along.
type Direction int

const (
	// TopToBottom places rank 0 at the top; Y increases with rank.
	TopToBottom Direction = iota

	// LeftToRight places rank 0 on the left; X increases with rank.
	LeftToRight
)

// ParseDirection converts a settings value. Unknown values yield TopToBottom.
func ParseDirection(s string) Direction {
	switch s {
	case "left_to_right", "LR", "horizontal":
		return LeftToRight
	default:
		return TopToBottom
	}
}

// String returns the settings form of d.
func (d Direction) String() string {
	if d == LeftToRight {
		return "left_to_right"
	}
	return "top_to_bottom"
}

// Config configures the layout pass.
// Zero spacing values are kept; zero default sizes fall back to DefaultConfig.
type Config struct {
	Direction Direction

	// RankSpacing is the gap between consecutive ranks along the primary axis.
	RankSpacing float64

	// NodeSpacing is the gap between nodes of one rank along the secondary axis.
	NodeSpacing float64

	// ComponentSpacing is the gap between disconnected components.
	ComponentSpacing float64

	// GroupPadding insets children from their group's edges.
	GroupPadding float64

	// DefaultWidth and DefaultHeight size items that report no size.
	DefaultWidth  float64
	DefaultHeight float64
}

// DefaultConfig returns a top-to-bottom layout with editor-sized nodes.
func DefaultConfig() Config {
	return Config{
		Direction:        TopToBottom,
		RankSpacing:      80,
		NodeSpacing:      40,
		ComponentSpacing: 120,
		GroupPadding:     24,
		DefaultWidth:     200,
		DefaultHeight:    80,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.DefaultWidth <= 0 {
		c.DefaultWidth = def.DefaultWidth
	}
	if c.DefaultHeight <= 0 {
		c.DefaultHeight = def.DefaultHeight
	}
	c.RankSpacing = max(c.RankSpacing, 0)
	c.NodeSpacing = max(c.NodeSpacing, 0)
	c.ComponentSpacing = max(c.ComponentSpacing, 0)
	c.GroupPadding = max(c.GroupPadding, 0)
	return c
}

package layout

import "sort"

// Item is one node to place. Parent names the group it lives in, if any.
type Item struct {
	ID     string
	Parent string
	Width  float64
	Height float64
}

// Link is a directed dependency between two items.
type Link struct {
	Source string
	Target string
}

// Point is a position. Children of a group are positioned relative to the
// group's origin; top-level items are absolute.
type Point struct {
	X float64
	Y float64
}

// Size is an item's extent.
type Size struct {
	Width  float64
	Height float64
}

// Result holds the computed placement.
type Result struct {
	// Positions maps item IDs to their top-left corner.
	Positions map[string]Point

	// Ranks maps item IDs to their longest-path depth within their scope.
	Ranks map[string]int

	// Sizes maps item IDs to their extent. Groups grow to contain their children.
	Sizes map[string]Size
}

// Layout assigns layered positions to items.
//
// Within each scope (the top level and every group) items are split into
// connected components. Each component is ranked by longest path from its
// sources; ranks advance along the primary axis and nodes of one rank are
// spread along the secondary axis in input order. Components are stacked
// along the secondary axis. Groups are laid out before their parents so a
// group's size reflects its contents.
//
// The result depends only on the input: ties are broken by input order.
// Cyclic links never loop; nodes left unranked get the rank after the last.
func Layout(items []Item, links []Link, cfg Config) Result {
	l := newLayouter(items, links, cfg.normalized())
	for _, scope := range l.scopeOrder() {
		l.layoutScope(scope)
	}
	return l.result
}

type layouter struct {
	cfg     Config
	ids     []string
	order   map[string]int
	parent  map[string]string
	members map[string][]string
	links   []Link
	result  Result
}

func newLayouter(items []Item, links []Link, cfg Config) *layouter {
	l := &layouter{
		cfg:     cfg,
		order:   make(map[string]int, len(items)),
		parent:  make(map[string]string, len(items)),
		members: make(map[string][]string),
		links:   links,
		result: Result{
			Positions: make(map[string]Point, len(items)),
			Ranks:     make(map[string]int, len(items)),
			Sizes:     make(map[string]Size, len(items)),
		},
	}

	for _, it := range items {
		if _, dup := l.order[it.ID]; dup {
			continue
		}
		l.order[it.ID] = len(l.ids)
		l.ids = append(l.ids, it.ID)
		l.parent[it.ID] = it.Parent

		size := Size{Width: it.Width, Height: it.Height}
		if size.Width <= 0 {
			size.Width = cfg.DefaultWidth
		}
		if size.Height <= 0 {
			size.Height = cfg.DefaultHeight
		}
		l.result.Sizes[it.ID] = size
	}

	// Missing parents and parent chains that loop are treated as top level.
	for _, id := range l.ids {
		if !l.validChain(id) {
			l.parent[id] = ""
		}
	}
	for _, id := range l.ids {
		p := l.parent[id]
		l.members[p] = append(l.members[p], id)
	}
	return l
}

func (l *layouter) validChain(id string) bool {
	seen := map[string]bool{id: true}
	for p := l.parent[id]; p != ""; p = l.parent[p] {
		if _, ok := l.order[p]; !ok || seen[p] {
			return false
		}
		seen[p] = true
	}
	return true
}

func (l *layouter) depth(id string) int {
	d := 0
	for p := l.parent[id]; p != ""; p = l.parent[p] {
		d++
	}
	return d
}

// scopeOrder lists scopes deepest first, then by input order; the top level is last.
func (l *layouter) scopeOrder() []string {
	var scopes []string
	for _, id := range l.ids {
		if _, ok := l.members[id]; ok {
			scopes = append(scopes, id)
		}
	}
	sort.SliceStable(scopes, func(i, j int) bool {
		return l.depth(scopes[i]) > l.depth(scopes[j])
	})
	if _, ok := l.members[""]; ok {
		scopes = append(scopes, "")
	}
	return scopes
}

func (l *layouter) layoutScope(scope string) {
	members := l.members[scope]
	inScope := make(map[string]bool, len(members))
	for _, id := range members {
		inScope[id] = true
	}

	succ := make(map[string][]string)
	indeg := make(map[string]int, len(members))
	uf := newUnionFind(members)
	for _, lk := range l.links {
		if lk.Source == lk.Target || !inScope[lk.Source] || !inScope[lk.Target] {
			continue
		}
		succ[lk.Source] = append(succ[lk.Source], lk.Target)
		indeg[lk.Target]++
		uf.union(lk.Source, lk.Target)
	}

	origin := 0.0
	if scope != "" {
		origin = l.cfg.GroupPadding
	}

	cursor := 0.0
	var boxW, boxH float64
	for i, comp := range uf.components(members) {
		if i > 0 {
			cursor += l.cfg.ComponentSpacing
		}
		ranks := rankComponent(comp, succ, indeg)
		secExtent, primExtent := l.placeComponent(comp, ranks, origin, origin+cursor)
		cursor += secExtent

		if l.cfg.Direction == LeftToRight {
			boxW = max(boxW, primExtent)
			boxH = cursor
		} else {
			boxW = cursor
			boxH = max(boxH, primExtent)
		}
	}

	if scope != "" {
		own := l.result.Sizes[scope]
		pad := 2 * l.cfg.GroupPadding
		l.result.Sizes[scope] = Size{
			Width:  max(own.Width, boxW+pad),
			Height: max(own.Height, boxH+pad),
		}
	}
}

// rankComponent assigns longest-path ranks with a Kahn pass seeded in input order.
func rankComponent(comp []string, succ map[string][]string, indeg map[string]int) map[string]int {
	remaining := make(map[string]int, len(comp))
	ranks := make(map[string]int, len(comp))
	var queue []string
	for _, id := range comp {
		remaining[id] = indeg[id]
		if indeg[id] == 0 {
			queue = append(queue, id)
		}
	}

	done := make(map[string]bool, len(comp))
	last := -1
	for i := 0; i < len(queue); i++ {
		u := queue[i]
		done[u] = true
		last = max(last, ranks[u])
		for _, v := range succ[u] {
			ranks[v] = max(ranks[v], ranks[u]+1)
			remaining[v]--
			if remaining[v] == 0 {
				queue = append(queue, v)
			}
		}
	}

	for _, id := range comp {
		if !done[id] {
			ranks[id] = last + 1
		}
	}
	return ranks
}

// placeComponent positions one component and returns its secondary and
// primary extents.
func (l *layouter) placeComponent(comp []string, ranks map[string]int, primOrigin, secOrigin float64) (float64, float64) {
	maxRank := 0
	for _, id := range comp {
		maxRank = max(maxRank, ranks[id])
	}
	layers := make([][]string, maxRank+1)
	for _, id := range comp {
		layers[ranks[id]] = append(layers[ranks[id]], id)
	}

	layerExtent := make([]float64, len(layers))
	layerWidth := make([]float64, len(layers))
	widest := 0.0
	for r, layer := range layers {
		for i, id := range layer {
			prim, sec := l.extents(id)
			layerExtent[r] = max(layerExtent[r], prim)
			if i > 0 {
				layerWidth[r] += l.cfg.NodeSpacing
			}
			layerWidth[r] += sec
		}
		widest = max(widest, layerWidth[r])
	}

	primary := 0.0
	for r, layer := range layers {
		if len(layer) == 0 {
			continue
		}
		sec := (widest - layerWidth[r]) / 2
		for _, id := range layer {
			prim, width := l.extents(id)
			l.result.Ranks[id] = ranks[id]
			l.result.Positions[id] = l.point(primOrigin+primary+(layerExtent[r]-prim)/2, secOrigin+sec)
			sec += width + l.cfg.NodeSpacing
		}
		primary += layerExtent[r] + l.cfg.RankSpacing
	}
	primary -= l.cfg.RankSpacing

	return widest, max(primary, 0)
}

func (l *layouter) extents(id string) (primary, secondary float64) {
	s := l.result.Sizes[id]
	if l.cfg.Direction == LeftToRight {
		return s.Width, s.Height
	}
	return s.Height, s.Width
}

func (l *layouter) point(primary, secondary float64) Point {
	if l.cfg.Direction == LeftToRight {
		return Point{X: primary, Y: secondary}
	}
	return Point{X: secondary, Y: primary}
}

type unionFind struct {
	parent map[string]string
}

func newUnionFind(ids []string) *unionFind {
	uf := &unionFind{parent: make(map[string]string, len(ids))}
	for _, id := range ids {
		uf.parent[id] = id
	}
	return uf
}

func (uf *unionFind) find(id string) string {
	for uf.parent[id] != id {
		uf.parent[id] = uf.parent[uf.parent[id]]
		id = uf.parent[id]
	}
	return id
}

func (uf *unionFind) union(a, b string) {
	ra, rb := uf.find(a), uf.find(b)
	if ra != rb {
		uf.parent[rb] = ra
	}
}

// components groups ids by root, ordered by each component's first member.
func (uf *unionFind) components(ids []string) [][]string {
	index := make(map[string]int)
	var out [][]string
	for _, id := range ids {
		root := uf.find(id)
		i, ok := index[root]
		if !ok {
			i = len(out)
			index[root] = i
			out = append(out, nil)
		}
		out[i] = append(out[i], id)
	}
	return out
}

package wiregraph

import (
	"maps"

	"github.com/randalmurphal/wiregraph/pkg/wiregraph/config"
	"github.com/randalmurphal/wiregraph/pkg/wiregraph/schema"
)

// RoutesKey is the router config key listing its output branches.
const RoutesKey = "routes"

// Behavior is what the core needs to know about a node kind.
type Behavior interface {
	// Kind returns the variant this behavior implements.
	Kind() schema.Kind

	// Ports derives the node's ports from its schema and live config.
	Ports(n *Node, ts *schema.TypeSchema) Ports

	// AcceptsChildren reports whether other nodes may be parented to this kind.
	AcceptsChildren() bool

	// InitialInputs returns the values this node feeds into a run, or nil.
	InitialInputs(n *Node) map[string]any
}

var behaviors = map[schema.Kind]Behavior{
	schema.KindDynamic: dynamicBehavior{},
	schema.KindInput:   inputBehavior{},
	schema.KindGroup:   groupBehavior{},
	schema.KindRouter:  routerBehavior{},
}

// BehaviorFor returns the behavior of kind. Unknown kinds behave as KindDynamic.
func BehaviorFor(kind schema.Kind) Behavior {
	if b, ok := behaviors[kind]; ok {
		return b
	}
	return dynamicBehavior{}
}

type dynamicBehavior struct{}

func (dynamicBehavior) Kind() schema.Kind { return schema.KindDynamic }

func (dynamicBehavior) Ports(n *Node, ts *schema.TypeSchema) Ports {
	return Ports{
		Inputs:  fieldPorts(n.ID, DirectionInput, ts.Inputs),
		Outputs: fieldPorts(n.ID, DirectionOutput, ts.Outputs),
	}
}

func (dynamicBehavior) AcceptsChildren() bool { return false }

func (dynamicBehavior) InitialInputs(*Node) map[string]any { return nil }

type inputBehavior struct{ dynamicBehavior }

func (inputBehavior) Kind() schema.Kind { return schema.KindInput }

func (inputBehavior) InitialInputs(n *Node) map[string]any {
	in := maps.Clone(n.Config)
	if in == nil {
		in = map[string]any{}
	}
	return in
}

type groupBehavior struct{ dynamicBehavior }

func (groupBehavior) Kind() schema.Kind { return schema.KindGroup }

func (groupBehavior) AcceptsChildren() bool { return true }

type routerBehavior struct{ dynamicBehavior }

func (routerBehavior) Kind() schema.Kind { return schema.KindRouter }

func (b routerBehavior) Ports(n *Node, ts *schema.TypeSchema) Ports {
	p := b.dynamicBehavior.Ports(n, ts)
	if routes := routeNames(n.Config); len(routes) > 0 {
		p.Outputs = make([]Port, 0, len(routes))
		for _, r := range routes {
			p.Outputs = append(p.Outputs, Port{NodeID: n.ID, Direction: DirectionOutput, Name: r, Type: "any"})
		}
	}
	return p
}

// routeNames reads the configured branches. Entries are strings or maps
// with a "name" key; blanks and repeats are ignored.
func routeNames(cfg map[string]any) []string {
	var names []string
	seen := make(map[string]bool)
	for _, v := range config.Values(cfg).List(RoutesKey) {
		var name string
		switch r := v.(type) {
		case string:
			name = r
		case map[string]any:
			name = config.Values(r).String("name", "")
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

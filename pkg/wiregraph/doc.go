/*
Package wiregraph is the graph-consistency core of a visual workflow editor.

# Overview

A workflow is a directed graph of typed nodes wired together through named
ports. wiregraph owns that graph in memory and keeps it consistent while a
user edits it:

  - ports are derived from node type schemas (see the schema package)
  - connections are guarded against fan-in violations, scope crossings and cycles
  - auto-layout assigns deterministic layered positions (see the layout package)
  - partial runs resolve which upstream nodes must run and which outputs are cached

Rendering and the transport to the execution backend live elsewhere.

# Basic Usage

Load a type registry, build a graph and wrap it in an Editor:

	reg, err := schema.LoadFile("types.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	g := &wiregraph.Graph{
	    Nodes: []*wiregraph.Node{
	        {ID: "a", Type: "input"},
	        {ID: "b", Type: "llm_call"},
	    },
	}

	ed := wiregraph.NewEditor(g, reg)
	edge, err := ed.Connect(wiregraph.Connection{Source: "a", Target: "b", TargetHandle: "prompt"})
	if err != nil {
	    // the edit was rejected and the graph is unchanged
	}

# Connection Rules

CheckConnection applies its rules in a fixed order and returns the first
violation: missing node, self loop, duplicate edge, fan-in, scope, cycle.
Handles whose name contains HandleSeparator are branch ports and accept
more than one incoming edge.

# Partial Runs

BuildRunRequest walks backward from a target node. Ancestors with a known
output become cached leaves unless predecessors are forced to re-run:

	req, err := wiregraph.BuildRunRequest(g, "wf-1", "c", known, false)

The run package dispatches requests through an Executor and merges responses
back into the editor.
*/
package wiregraph

// Package schema holds the node type registry: for each node type name, its
// declared input ports, output ports and configuration fields.
//
// The registry is loaded once per editing session from the execution backend
// (or a file exported from it) and is read-only afterwards. Field order is the
// declared order and is preserved everywhere ports are derived.
//
// Loading a registry document:
//
//	reg, err := schema.LoadFile("node_types.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ts, err := reg.Lookup("llm_call")
//	if errors.Is(err, schema.ErrUnknownType) {
//	    // degraded node: no ports, empty config
//	}
package schema

// Package layout computes deterministic layered positions for auto-arrange.
//
// Layout is a pure function of its input: items keep their input order as
// the tie-breaker, so repeated calls on an unchanged graph place every node
// identically.
package layout

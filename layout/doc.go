// Package layout turns a routing graph into a positioned flowchart.
//
// Layout happens in two phases. Provisional places every node using a
// placeholder size; once the renderer has measured the nodes, Refine places
// them again with their real sizes. Engine wraps both phases, rebuilds only
// when the routing changes structurally, and keeps user drags out of the
// automatic layout.
package layout

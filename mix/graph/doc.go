// Package graph is the signal graph of the mixer: a DAG of processing nodes
// rendered block by block against an audio clock.
//
// Two timelines touch a Graph. The render path calls [Graph.Render] from the
// audio callback and owns all sample state. The control path creates nodes,
// changes topology and automates parameters; it never touches render state
// directly. Parameter automation and source start/stop travel through a
// single-consumer command ring that the render path drains at the start of
// every block. Topology changes are compiled into an immutable, topologically
// sorted plan and published atomically; the render path loads it once per
// block.
//
// Every control call on a disposed node, and every disconnect of a node that
// has no connections, is a silent no-op.
package graph

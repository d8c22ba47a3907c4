// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vfg builds the Value-Flow Graph: a directed
// graph over pointer SSA values with unlabeled intra-procedural
// def-use edges and matched inter-procedural call-i/return-i edges,
// the structure gvfa's forward/backward and CFL-reachability passes
// walk.
package vfg

import (
	"github.com/lotusaa/core/memmodel"
)

// Kind classifies one Edge.
type Kind int

const (
	// KindDefUse is an unlabeled intra-procedural data-flow edge: a
	// Copy/Offset/Load/Select/PHI consuming another node's value.
	KindDefUse Kind = iota
	// KindMemory is an unlabeled store-to-load edge added when a
	// Store's pointer may-aliases a later Load's source pointer.
	KindMemory
	// KindCall is a "+i" edge from a caller argument to the matching
	// callee parameter.
	KindCall
	// KindReturn is a "-i" edge from a callee return value to the
	// matching call site's destination.
	KindReturn
)

func (k Kind) String() string {
	switch k {
	case KindDefUse:
		return "def-use"
	case KindMemory:
		return "memory"
	case KindCall:
		return "call"
	case KindReturn:
		return "return"
	default:
		return "?"
	}
}

// Edge is one outgoing connection from a node. Label is the call-site
// id for KindCall/KindReturn (matched by CFL-reachability's Dyck
// check) and zero otherwise.
type Edge struct {
	Kind  Kind
	Label int
	To    memmodel.Pointer
}

// Graph is a built Value-Flow Graph: succ/pred adjacency over
// memmodel.Pointer nodes (the same (context, value) abstraction the
// rest of the analysis core uses, so a VFG built from an
// andersen.Solver or a tpa.Result indexes identically).
type Graph struct {
	succ map[memmodel.Pointer][]Edge
	pred map[memmodel.Pointer][]Edge
}

// NewGraph returns an empty Graph.
func NewGraph() *Graph {
	return &Graph{succ: make(map[memmodel.Pointer][]Edge), pred: make(map[memmodel.Pointer][]Edge)}
}

// AddEdge records a directed edge from-to, keeping succ/pred in sync.
// Duplicate edges (same from, to, kind, label) are not deduplicated;
// callers that build from a worklist already visit each (ctx, node)
// pair once, so duplicates only arise from genuinely distinct flows
// (e.g. two different Store sites feeding the same Load).
func (g *Graph) AddEdge(from, to memmodel.Pointer, kind Kind, label int) {
	g.succ[from] = append(g.succ[from], Edge{Kind: kind, Label: label, To: to})
	g.pred[to] = append(g.pred[to], Edge{Kind: kind, Label: label, To: from})
}

// Successors returns from's outgoing edges.
func (g *Graph) Successors(from memmodel.Pointer) []Edge { return g.succ[from] }

// Predecessors returns to's incoming edges, each carrying the Pointer
// it flows in from (not to).
func (g *Graph) Predecessors(to memmodel.Pointer) []Edge { return g.pred[to] }

// NodeCount reports how many distinct nodes have at least one
// recorded edge (incoming or outgoing).
func (g *Graph) NodeCount() int {
	seen := make(map[memmodel.Pointer]bool, len(g.succ))
	for p := range g.succ {
		seen[p] = true
	}
	for p := range g.pred {
		seen[p] = true
	}
	return len(seen)
}

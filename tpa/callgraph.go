// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tpa

import (
	"sync"

	"github.com/lotusaa/core/flowstate"
	"github.com/lotusaa/core/memmodel"
	"github.com/lotusaa/core/pts"
	"github.com/lotusaa/core/transfer"
)

// callGraph is the on-the-fly (callsite, ctx) <-> (function, ctx')
// relation. Edges are added only while evaluating a
// Call node, and are never removed: once a caller is seen to reach a
// callee under a given pair of contexts, every later return from that
// callee must also flow back to that caller.
type callGraph struct {
	mu      sync.Mutex
	seen    map[callEdge]bool
	callers map[funcCtx][]transfer.ProgramPoint // callee funcCtx -> call sites that reach it
}

type callEdge struct {
	Site   transfer.ProgramPoint
	Callee funcCtx
}

func newCallGraph() *callGraph {
	return &callGraph{
		seen:    make(map[callEdge]bool),
		callers: make(map[funcCtx][]transfer.ProgramPoint),
	}
}

// record adds the (site -> callee) edge, reporting whether it is new.
func (g *callGraph) record(site transfer.ProgramPoint, callee funcCtx) bool {
	e := callEdge{Site: site, Callee: callee}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seen[e] {
		return false
	}
	g.seen[e] = true
	g.callers[callee] = append(g.callers[callee], site)
	return true
}

// callersOf returns every call site recorded as reaching callee.
func (g *callGraph) callersOf(callee funcCtx) []transfer.ProgramPoint {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]transfer.ProgramPoint, len(g.callers[callee]))
	copy(out, g.callers[callee])
	return out
}

// pruneStore computes the callee-entry Store: the
// transitive closure, under both "field offset within the same block"
// (memmodel.GetReachablePointerObjects) and "pointer content"
// (Store lookup), of the union of the call arguments' points-to sets
// and every implicitly globally-accessible object (globals,
// functions, passed in as roots).
//
// Copying the whole store unconditionally would be equally sound;
// pruning keeps each memoized Store bounded by what the callee can
// actually reach.
func pruneStore(store flowstate.Store, mem *memmodel.Manager, argSets []pts.Set, globalRoots []pts.ObjID) flowstate.Store {
	reach := make(map[pts.ObjID]bool)
	var queue []pts.ObjID
	enqueue := func(o pts.ObjID) {
		if o == 0 || reach[o] {
			return
		}
		reach[o] = true
		queue = append(queue, o)
	}
	for _, s := range argSets {
		s.ForEach(func(o pts.ObjID) bool { enqueue(o); return true })
	}
	for _, o := range globalRoots {
		enqueue(o)
	}
	for len(queue) > 0 {
		o := queue[0]
		queue = queue[1:]
		for _, fo := range mem.GetReachablePointerObjects(o) {
			enqueue(fo)
		}
		store.Get(o).ForEach(func(t pts.ObjID) bool { enqueue(t); return true })
	}

	pruned := flowstate.NewStore()
	for o := range reach {
		if s := store.Get(o); s.Size() > 0 {
			pruned = pruned.WeakUpdate(o, s)
		}
	}
	return pruned
}

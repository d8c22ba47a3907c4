// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gvfa implements the Global Value-Flow Analysis engines
// layered on a built vfg.Graph: the Fast bit-mask
// engine, the Precise per-source/per-sink set engine, CFL-reachability,
// and best-effort witness-path extraction.
package gvfa

import (
	"github.com/eapache/queue"
	"github.com/willf/bitset"

	"github.com/lotusaa/core/memmodel"
	"github.com/lotusaa/core/vfg"
)

// Source is one forward-flow origin: a node and the bit it occupies in
// every Fast-engine mask (up to 32 sources, one per bit of a uint32).
type Source struct {
	Node memmodel.Pointer
	Bit  uint
}

// Fast is the bit-mask GVFA engine: up to 32 sources share one forward
// pass, trading per-source precision for a single BFS sweep.
type Fast struct {
	g *vfg.Graph

	forward  map[memmodel.Pointer]uint32
	backward map[memmodel.Pointer]int
}

// NewFast constructs a Fast engine over g. Sources are widened first
// (extendSources) so an alias or pass-through of a source counts as
// the source itself.
func NewFast(g *vfg.Graph, sources []Source, sinks []memmodel.Pointer) *Fast {
	f := &Fast{g: g, forward: make(map[memmodel.Pointer]uint32), backward: make(map[memmodel.Pointer]int)}
	sources = extendSources(g, sources)
	for _, src := range sources {
		f.bfsForward(src)
	}
	for _, sink := range sinks {
		f.bfsBackward(sink)
	}
	return f
}

func (f *Fast) bfsForward(src Source) {
	mask := uint32(1) << src.Bit
	q := queue.New()
	q.Add(src.Node)
	visited := map[memmodel.Pointer]bool{src.Node: true}
	f.forward[src.Node] |= mask
	for q.Length() > 0 {
		n := q.Remove().(memmodel.Pointer)
		for _, e := range f.g.Successors(n) {
			f.forward[e.To] |= mask
			if visited[e.To] {
				continue
			}
			visited[e.To] = true
			q.Add(e.To)
		}
	}
}

func (f *Fast) bfsBackward(sink memmodel.Pointer) {
	q := queue.New()
	q.Add(sink)
	visited := map[memmodel.Pointer]bool{sink: true}
	f.backward[sink]++
	for q.Length() > 0 {
		n := q.Remove().(memmodel.Pointer)
		for _, e := range f.g.Predecessors(n) {
			f.backward[e.To]++
			if !visited[e.To] {
				visited[e.To] = true
				q.Add(e.To)
			}
		}
	}
}

// Reachable returns the bits of m that a forward pass actually
// propagated to v.
func (f *Fast) Reachable(v memmodel.Pointer, m uint32) uint32 {
	return f.forward[v] & m
}

// BackwardReachable reports whether any sink's backward pass reached
// v.
func (f *Fast) BackwardReachable(v memmodel.Pointer) bool {
	return f.backward[v] > 0
}

// SrcReachable is unsupported by the Fast engine:
// distinguishing one source among a shared mask requires the Precise
// engine's per-source sets.
func (f *Fast) SrcReachable(memmodel.Pointer, memmodel.Pointer) bool {
	return false
}

// extendSources walks backward from each source over the VFG,
// widening the source set to include any predecessor that can reach a
// caller argument or return value for that source — i.e. aliases and
// pass-through values the literal source node doesn't itself name.
// This mirrors the forward BFS's own traversal code against
// Predecessors instead of Successors, stopping at KindCall/KindReturn
// boundaries (crossing into a caller's frame is not "the same value"
// for widening purposes, only sharing a def-use/memory chain within a
// frame is).
func extendSources(g *vfg.Graph, sources []Source) []Source {
	out := append([]Source(nil), sources...)
	seen := make(map[memmodel.Pointer]bool, len(sources))
	for _, s := range sources {
		seen[s.Node] = true
	}
	for _, s := range sources {
		for _, w := range widenBackward(g, s.Node) {
			if seen[w] {
				continue
			}
			seen[w] = true
			out = append(out, Source{Node: w, Bit: s.Bit})
		}
	}
	return out
}

// widenBackward returns every predecessor of node reachable through
// unlabeled/def-use/memory edges, stopping at call/return boundaries.
func widenBackward(g *vfg.Graph, node memmodel.Pointer) []memmodel.Pointer {
	var out []memmodel.Pointer
	seen := map[memmodel.Pointer]bool{node: true}
	q := queue.New()
	q.Add(node)
	for q.Length() > 0 {
		n := q.Remove().(memmodel.Pointer)
		for _, e := range g.Predecessors(n) {
			if e.Kind == vfg.KindCall || e.Kind == vfg.KindReturn || seen[e.To] {
				continue
			}
			seen[e.To] = true
			out = append(out, e.To)
			q.Add(e.To)
		}
	}
	return out
}

// BitsetMask renders a uint32 mask as a willf/bitset.BitSet, the same
// sparse-bitmap representation pts.Set's Sparse backend uses, for
// callers that want set-style operations (Intersection, Union, None)
// over a Fast-engine mask instead of raw bitwise arithmetic.
func BitsetMask(m uint32) *bitset.BitSet {
	bs := bitset.New(32)
	for i := uint(0); i < 32; i++ {
		if m&(1<<i) != 0 {
			bs.Set(i)
		}
	}
	return bs
}

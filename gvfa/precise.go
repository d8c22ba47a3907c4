// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gvfa

import (
	"github.com/eapache/queue"

	"github.com/lotusaa/core/memmodel"
	"github.com/lotusaa/core/vfg"
)

// Precise is the per-source/per-sink GVFA engine: every source (and
// every sink) gets its own BFS, so a query can ask which specific
// source(s) reach a node instead of only an OR'd mask.
type Precise struct {
	sinks []memmodel.Pointer

	allForward  map[memmodel.Pointer]map[memmodel.Pointer]bool // value -> set of sources
	allBackward map[memmodel.Pointer]map[memmodel.Pointer]bool // value -> set of sinks
}

// NewPrecise constructs a Precise engine over g for the given source
// and sink nodes, after the same backward source-extension pass Fast
// applies.
func NewPrecise(g *vfg.Graph, sourceNodes, sinks []memmodel.Pointer) *Precise {
	p := &Precise{
		sinks:       sinks,
		allForward:  make(map[memmodel.Pointer]map[memmodel.Pointer]bool),
		allBackward: make(map[memmodel.Pointer]map[memmodel.Pointer]bool),
	}
	for _, src := range sourceNodes {
		p.bfsForward(g, src, src)
		for _, w := range widenBackward(g, src) {
			p.bfsForward(g, w, src)
		}
	}
	for _, sink := range sinks {
		p.bfsBackward(g, sink)
	}
	return p
}

func (p *Precise) mark(set *map[memmodel.Pointer]map[memmodel.Pointer]bool, node, tag memmodel.Pointer) {
	m := *set
	s, ok := m[node]
	if !ok {
		s = make(map[memmodel.Pointer]bool)
		m[node] = s
	}
	s[tag] = true
}

func (p *Precise) bfsForward(g *vfg.Graph, start, src memmodel.Pointer) {
	q := queue.New()
	q.Add(start)
	visited := map[memmodel.Pointer]bool{start: true}
	p.mark(&p.allForward, start, src)
	for q.Length() > 0 {
		n := q.Remove().(memmodel.Pointer)
		for _, e := range g.Successors(n) {
			p.mark(&p.allForward, e.To, src)
			if visited[e.To] {
				continue
			}
			visited[e.To] = true
			q.Add(e.To)
		}
	}
}

func (p *Precise) bfsBackward(g *vfg.Graph, sink memmodel.Pointer) {
	q := queue.New()
	q.Add(sink)
	visited := map[memmodel.Pointer]bool{sink: true}
	p.mark(&p.allBackward, sink, sink)
	for q.Length() > 0 {
		n := q.Remove().(memmodel.Pointer)
		for _, e := range g.Predecessors(n) {
			p.mark(&p.allBackward, e.To, sink)
			if visited[e.To] {
				continue
			}
			visited[e.To] = true
			q.Add(e.To)
		}
	}
}

// SrcReachable reports whether source's forward pass reached v.
func (p *Precise) SrcReachable(v, source memmodel.Pointer) bool {
	return p.allForward[v][source]
}

// BackwardReachableAllSinks reports whether every sink's backward pass
// reached v.
func (p *Precise) BackwardReachableAllSinks(v memmodel.Pointer) bool {
	return len(p.allBackward[v]) == len(p.sinks)
}

// BackwardReachable reports whether any sink's backward pass reached
// v.
func (p *Precise) BackwardReachable(v memmodel.Pointer) bool {
	return len(p.allBackward[v]) > 0
}

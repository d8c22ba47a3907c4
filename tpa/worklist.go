// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tpa

import (
	"container/heap"

	"github.com/eapache/queue"

	"github.com/lotusaa/core/ctxt"
	"github.com/lotusaa/core/ir"
	"github.com/lotusaa/core/semicfg"
	"github.com/lotusaa/core/transfer"
)

// funcCtx names one (function, calling context) pair: the unit the
// outer worklist FIFO rotates over.
type funcCtx struct {
	Fn  *ir.Function
	Ctx ctxt.Context
}

// nodeHeap orders a function-context's pending nodes by ascending
// RPO, implementing container/heap.Interface.
type nodeHeap []*semicfg.Node

func (h nodeHeap) Len() int            { return len(h) }
func (h nodeHeap) Less(i, j int) bool  { return h[i].RPO < h[j].RPO }
func (h nodeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x interface{}) { *h = append(*h, x.(*semicfg.Node)) }
func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// worklist is the two-level propagator worklist: an outer FIFO
// (github.com/eapache/queue) over funcCtx, and one inner RPO-ordered
// heap per funcCtx. Dequeuing returns the pending node with the
// smallest RPO in whichever funcCtx is at the front of the outer FIFO,
// then rotates that funcCtx to the back so every function gets a turn
// (function rotation is FIFO).
type worklist struct {
	outer   *queue.Queue
	inOuter map[funcCtx]bool
	inner   map[funcCtx]*nodeHeap
	pending map[funcCtx]map[*semicfg.Node]bool
}

func newWorklist() *worklist {
	return &worklist{
		outer:   queue.New(),
		inOuter: make(map[funcCtx]bool),
		inner:   make(map[funcCtx]*nodeHeap),
		pending: make(map[funcCtx]map[*semicfg.Node]bool),
	}
}

// push enqueues pp, a no-op if it is already pending.
func (w *worklist) push(pp transfer.ProgramPoint) {
	fc := funcCtx{Fn: pp.Node.Fn, Ctx: pp.Ctx}
	set := w.pending[fc]
	if set == nil {
		set = make(map[*semicfg.Node]bool)
		w.pending[fc] = set
	}
	if set[pp.Node] {
		return
	}
	set[pp.Node] = true

	h := w.inner[fc]
	if h == nil {
		h = &nodeHeap{}
		heap.Init(h)
		w.inner[fc] = h
	}
	heap.Push(h, pp.Node)

	if !w.inOuter[fc] {
		w.inOuter[fc] = true
		w.outer.Add(fc)
	}
}

// pop removes and returns the globally-next program point, or
// ok=false if the worklist is empty.
func (w *worklist) pop() (transfer.ProgramPoint, bool) {
	for w.outer.Length() > 0 {
		fc := w.outer.Peek().(funcCtx)
		h := w.inner[fc]
		if h == nil || h.Len() == 0 {
			w.outer.Remove()
			w.inOuter[fc] = false
			continue
		}
		w.outer.Remove()
		node := heap.Pop(h).(*semicfg.Node)
		delete(w.pending[fc], node)
		if h.Len() > 0 {
			w.outer.Add(fc) // still work left in fc: rotate it to the back
		} else {
			w.inOuter[fc] = false
		}
		return transfer.ProgramPoint{Ctx: fc.Ctx, Node: node}, true
	}
	return transfer.ProgramPoint{}, false
}

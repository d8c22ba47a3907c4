// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vfg

// Builder walks every reachable (function, context) pair the same way
// andersen.Solver.Generate does (a pending-function queue drained with
// github.com/eapache/queue, one CFG walk per pair), turning semicfg.Node
// values into Graph edges instead of constraint-graph edges. It is
// built on top of an existing alias/points-to summary:
// PointsToOracle supplies the resolved points-to sets an already-run
// andersen.Solver or tpa.Result computed, and AliasOracle supplies the
// may-alias predicate used to connect a Load to every Store that could
// have produced its value.
import (
	"github.com/eapache/queue"

	"github.com/lotusaa/core/ctxt"
	"github.com/lotusaa/core/ir"
	"github.com/lotusaa/core/memmodel"
	"github.com/lotusaa/core/pts"
	"github.com/lotusaa/core/semicfg"
)

// PointsToOracle is the points-to query surface vfg needs from
// whichever pointer-analysis backend it is layered on.
type PointsToOracle interface {
	PointsTo(ctx ctxt.Context, v ir.Value) pts.Set
}

// AliasOracle is the may-alias query surface vfg needs to connect a
// Load to the Stores that may have produced its value.
type AliasOracle interface {
	Alias(ctx1 ctxt.Context, v1 ir.Value, ctx2 ctxt.Context, v2 ir.Value) bool
}

// Builder constructs a Graph over a program already solved by some
// pointer-analysis backend.
type Builder struct {
	Prog   ir.Program
	CFGs   *semicfg.Builder
	Mem    *memmodel.Manager
	PtrM   *memmodel.PointerManager
	Policy ctxt.Policy
	Pts    PointsToOracle
	Alias  AliasOracle

	g        *Graph
	visited  map[funcCtx]bool
	siteIDs  map[siteKey]int
	nextSite int
}

type funcCtx struct {
	Fn  *ir.Function
	Ctx ctxt.Context
}

type siteKey struct {
	Node *semicfg.Node
	Ctx  ctxt.Context
}

// NewBuilder constructs a Builder over prog, using the given
// collaborators (normally the same Mem/PtrM/Policy/CFGs an already-run
// andersen.Solver or tpa.Engine used, so the VFG's Pointer nodes
// coincide with the ones the oracle has answers for).
func NewBuilder(prog ir.Program, cfgs *semicfg.Builder, mem *memmodel.Manager, ptrM *memmodel.PointerManager, policy ctxt.Policy, ptsOracle PointsToOracle, aliasOracle AliasOracle) *Builder {
	return &Builder{
		Prog: prog, CFGs: cfgs, Mem: mem, PtrM: ptrM, Policy: policy,
		Pts: ptsOracle, Alias: aliasOracle,
		visited: make(map[funcCtx]bool),
		siteIDs: make(map[siteKey]int),
	}
}

// Build walks every (function, context) pair reachable from entries
// (conservatively, every non-external, non-synthetic function if
// entries is empty, mirroring andersen.Solver.Generate; unlike
// tpa.Engine.entryFunctions, a function named "main" is not preferred
// over the others) and returns the resulting Graph.
func (b *Builder) Build(entries []*ir.Function) *Graph {
	b.g = NewGraph()
	pending := queue.New()

	enqueue := func(fn *ir.Function, ctx ctxt.Context) {
		fc := funcCtx{Fn: fn, Ctx: ctx}
		if b.visited[fc] || fn.IsExternal() {
			return
		}
		b.visited[fc] = true
		pending.Add(fc)
	}

	if len(entries) == 0 {
		for _, fn := range b.Prog.Functions() {
			if !fn.IsExternal() && fn.Synthetic == "" {
				entries = append(entries, fn)
			}
		}
	}
	for _, fn := range entries {
		enqueue(fn, ctxt.Global())
	}

	for pending.Length() > 0 {
		fc := pending.Remove().(funcCtx)
		b.walkFunc(fc, enqueue)
	}
	return b.g
}

func (b *Builder) ptrOf(ctx ctxt.Context, v ir.Value) memmodel.Pointer {
	return b.PtrM.GetOrCreate(ctx, v)
}

func (b *Builder) walkFunc(fc funcCtx, enqueue func(*ir.Function, ctxt.Context)) {
	cfg := b.CFGs.Get(fc.Fn)

	// def-use edges: every producer's Dst flows to every consumer node
	// that also produces a value, per semicfg's precomputed DefUse list.
	for _, n := range cfg.Nodes {
		if n.Dst == nil {
			continue
		}
		from := b.ptrOf(fc.Ctx, n.Dst)
		for _, use := range n.DefUse {
			if use.Dst == nil {
				continue
			}
			b.g.AddEdge(from, b.ptrOf(fc.Ctx, use.Dst), KindDefUse, 0)
		}
	}

	// memory edges: a Load's value may come from any Store in the same
	// function whose pointer may-aliases the Load's source and whose
	// RPO number precedes the Load's — semicfg's already-computed RPO
	// numbering standing in for full program-order/dominance analysis,
	// the same proxy the engine itself uses to order convergence.
	for _, load := range cfg.Nodes {
		if load.Kind != semicfg.KindLoad {
			continue
		}
		for _, store := range cfg.Nodes {
			if store.Kind != semicfg.KindStore || store.RPO >= load.RPO {
				continue
			}
			if !b.Alias.Alias(fc.Ctx, load.Src, fc.Ctx, store.Ptr) {
				continue
			}
			b.g.AddEdge(b.ptrOf(fc.Ctx, store.Val), b.ptrOf(fc.Ctx, load.Dst), KindMemory, 0)
		}
	}

	// call/return edges.
	for _, n := range cfg.Nodes {
		if n.Kind != semicfg.KindCall {
			continue
		}
		b.wireCall(fc, n, enqueue)
	}
}

func (b *Builder) siteID(fc funcCtx, n *semicfg.Node) int {
	k := siteKey{Node: n, Ctx: fc.Ctx}
	if id, ok := b.siteIDs[k]; ok {
		return id
	}
	b.nextSite++
	b.siteIDs[k] = b.nextSite
	return b.nextSite
}

func (b *Builder) wireCall(fc funcCtx, n *semicfg.Node, enqueue func(*ir.Function, ctxt.Context)) {
	var callees []*ir.Function
	if fn, ok := n.Callee.(*ir.Function); ok {
		callees = []*ir.Function{fn}
	} else {
		targets := b.Pts.PointsTo(fc.Ctx, n.Callee)
		if targets.Size() == 0 {
			return
		}
		callees = b.Mem.GetCallees(targets, b.addressTakenCandidates(n))
	}

	id := b.siteID(fc, n)
	for _, fn := range callees {
		if fn.IsExternal() {
			continue
		}
		calleeCtx := b.Policy.Push(fc.Ctx, n.Inst.(ir.CallInstruction))
		enqueue(fn, calleeCtx)

		for i, p := range fn.Params {
			if i >= len(n.Args) || !ir.IsPointer(p.Type()) {
				continue
			}
			b.g.AddEdge(b.ptrOf(fc.Ctx, n.Args[i]), b.ptrOf(calleeCtx, p), KindCall, id)
		}
		if n.Dst == nil {
			continue
		}
		calleeCFG := b.CFGs.Get(fn)
		for _, rn := range calleeCFG.Nodes {
			if rn.Kind == semicfg.KindRet && rn.RetVal != nil {
				b.g.AddEdge(b.ptrOf(calleeCtx, rn.RetVal), b.ptrOf(fc.Ctx, n.Dst), KindReturn, id)
			}
		}
	}
}

// addressTakenCandidates mirrors tpa.addressTakenCandidates and
// andersen.addressTakenCandidates (duplicated rather than shared: each
// package's signatureCompatible is a two-line arity/return check, not
// worth a shared package for, and vfg must not depend on tpa or
// andersen to stay layerable over whichever one produced its oracle).
func (b *Builder) addressTakenCandidates(n *semicfg.Node) []*ir.Function {
	var out []*ir.Function
	for _, fn := range b.Prog.Functions() {
		if signatureCompatible(n, fn) {
			out = append(out, fn)
		}
	}
	return out
}

func signatureCompatible(n *semicfg.Node, fn *ir.Function) bool {
	nArgs, nParams := len(n.Args), len(fn.Params)
	if fn.Sig.Variadic {
		if nArgs < nParams {
			return false
		}
	} else if nArgs != nParams {
		return false
	}
	if n.Dst != nil && len(fn.Sig.Results) == 0 {
		return false
	}
	return true
}

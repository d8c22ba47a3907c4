// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package andersen

// This file implements constraint generation: the walk over every
// reachable (function, context) pair that turns semicfg.Node values
// into Solver.Add* constraints: a single type switch over node kinds,
// cloned once per calling context a ctxt.Policy produces.
//
// Calls to a statically known function wire directly. Calls through a
// function pointer register as indirect and are re-resolved against
// the callee pointer's growing points-to set on every Generate/Solve
// round (dynamic edge addition): a callee discovered on a later round
// gets its constraints generated then, exactly once, and a Load/Store's
// resolvable targets are re-derived only when the underlying points-to
// set actually grew.

import (
	"github.com/lotusaa/core/ctxt"
	"github.com/lotusaa/core/extcall"
	"github.com/lotusaa/core/ir"
	"github.com/lotusaa/core/memmodel"
	"github.com/lotusaa/core/pts"
	"github.com/lotusaa/core/semicfg"
)

// retValue is the synthetic ir.Value standing for "the value returned
// by Fn": AddCopy into it from every Ret node in Fn's context, and
// AddCopy out of it to every call site's destination, the same way
// tpa's calleeReturn aggregates multiple return statements, but
// expressed as ordinary Solver constraints instead of a dedicated
// merge step since Andersen has no per-program-point Store to key on.
type retValue struct{ fn *ir.Function }

func (r *retValue) Name() string  { return r.fn.Name() + ".ret" }
func (r *retValue) Type() ir.Type { return r.fn.Sig }
func (r *retValue) Pos() int      { return 0 }

var _ ir.Value = (*retValue)(nil)

type indirectCall struct {
	Ctx       ctxt.Context
	Node      *semicfg.Node
	Site      ir.CallInstruction
	CalleePtr memmodel.Pointer
	Resolved  map[*ir.Function]bool
}

func (s *Solver) retValuePtr(fn *ir.Function, ctx ctxt.Context) memmodel.Pointer {
	if s.retVals == nil {
		s.retVals = make(map[*ir.Function]*retValue)
	}
	rv, ok := s.retVals[fn]
	if !ok {
		rv = &retValue{fn: fn}
		s.retVals[fn] = rv
	}
	return s.PtrM.GetOrCreate(ctx, rv)
}

// Generate runs constraint generation to a fixpoint starting from
// entries (conservatively, every non-external, non-synthetic function
// if entries is empty; unlike tpa.Engine.entryFunctions, a function
// named "main" is not preferred over the others). It
// repeatedly drains the pending-function queue, solves, and
// re-resolves indirect calls and external memcpy-shaped reachable
// copies until a full round produces nothing new.
func (s *Solver) Generate(entries []*ir.Function) {
	s.env[memmodel.NullPointer()] = pts.Singleton(memmodel.NullObjID)
	s.env[memmodel.UniversalPointer()] = pts.Singleton(memmodel.UniversalObjID)
	s.markDirty(memmodel.NullPointer())
	s.markDirty(memmodel.UniversalPointer())
	s.seedGlobals()

	if len(entries) == 0 {
		for _, fn := range s.Prog.Functions() {
			if !fn.IsExternal() && fn.Synthetic == "" {
				entries = append(entries, fn)
			}
		}
	}
	for _, fn := range entries {
		s.enqueueFunc(fn, ctxt.Global())
	}

	for {
		for s.fnQueue.Length() > 0 {
			fc := s.fnQueue.Remove().(funcCtx)
			s.genFunc(fc)
		}
		s.Solve()

		changed := s.reapplyReachCopies()
		changed = s.resolveIndirectCalls() || changed

		if s.fnQueue.Length() == 0 && !changed {
			return
		}
	}
}

func (s *Solver) enqueueFunc(fn *ir.Function, ctx ctxt.Context) {
	fc := funcCtx{Fn: fn, Ctx: ctx}
	if s.visited[fc] {
		return
	}
	s.visited[fc] = true
	s.fnQueue.Add(fc)
}

func (s *Solver) genFunc(fc funcCtx) {
	if fc.Fn.IsExternal() {
		return
	}
	cfg := s.CFGs.Get(fc.Fn)
	for _, n := range cfg.Nodes {
		s.genNode(fc, n)
	}
}

func (s *Solver) ptrOf(ctx ctxt.Context, v ir.Value) memmodel.Pointer {
	return s.PtrM.GetOrCreate(ctx, v)
}

func (s *Solver) genNode(fc funcCtx, n *semicfg.Node) {
	switch n.Kind {
	case semicfg.KindEntry:
		return

	case semicfg.KindAlloc:
		alloca := n.Inst.(*ir.Alloca)
		obj := s.Mem.AllocateStack(fc.Ctx, alloca)
		s.AddAddrOf(s.ptrOf(fc.Ctx, n.Dst), obj)

	case semicfg.KindCopy:
		if n.Universal {
			s.AddAddrOf(s.ptrOf(fc.Ctx, n.Dst), memmodel.UniversalObjID)
			return
		}
		dst := s.ptrOf(fc.Ctx, n.Dst)
		for _, src := range n.Srcs {
			s.AddCopy(dst, s.ptrOf(fc.Ctx, src))
		}

	case semicfg.KindOffset:
		s.AddOffset(s.ptrOf(fc.Ctx, n.Dst), s.ptrOf(fc.Ctx, n.Src), n.ConstOffset)

	case semicfg.KindLoad:
		s.AddLoad(s.ptrOf(fc.Ctx, n.Dst), s.ptrOf(fc.Ctx, n.Src))

	case semicfg.KindStore:
		s.AddStore(s.ptrOf(fc.Ctx, n.Ptr), s.ptrOf(fc.Ctx, n.Val))

	case semicfg.KindCall:
		s.genCall(fc, n)

	case semicfg.KindRet:
		if n.RetVal != nil {
			s.AddCopy(s.retValuePtr(fc.Fn, fc.Ctx), s.ptrOf(fc.Ctx, n.RetVal))
		}
	}
}

func (s *Solver) genCall(fc funcCtx, n *semicfg.Node) {
	site, _ := n.Inst.(ir.CallInstruction)
	if fn, ok := n.Callee.(*ir.Function); ok {
		s.wireCall(fc, n, site, fn)
		return
	}
	calleePtr := s.ptrOf(fc.Ctx, n.Callee)
	s.indirect = append(s.indirect, &indirectCall{
		Ctx: fc.Ctx, Node: n, Site: site, CalleePtr: calleePtr,
		Resolved: make(map[*ir.Function]bool),
	})
}

// wireCall generates the constraints for one statically-known callee
// of a call site: either the external-call effect table's contract
// (evalExternalCall's style, expressed as Add* primitives instead of
// a snapshot Store rewrite) or, for a user-defined function, actual-to-
// formal and return-value copy constraints plus enqueuing the callee's
// (function, context) pair.
func (s *Solver) wireCall(fc funcCtx, n *semicfg.Node, site ir.CallInstruction, fn *ir.Function) {
	if fn.IsExternal() {
		s.genExternalCall(fc, n, site, fn)
		return
	}
	calleeCtx := s.Policy.Push(fc.Ctx, site)
	for i, p := range fn.Params {
		if i >= len(n.Args) || !ir.IsPointer(p.Type()) {
			continue
		}
		s.AddCopy(s.ptrOf(calleeCtx, p), s.ptrOf(fc.Ctx, n.Args[i]))
	}
	if n.Dst != nil {
		s.AddCopy(s.ptrOf(fc.Ctx, n.Dst), s.retValuePtr(fn, calleeCtx))
	}
	s.enqueueFunc(fn, calleeCtx)
}

var opaqueHeapElem ir.Type = &ir.Basic{Name: "<opaque-heap>"}

func (s *Solver) genExternalCall(fc funcCtx, n *semicfg.Node, site ir.CallInstruction, fn *ir.Function) {
	dstPtr, hasDst := memmodel.Pointer{}, false
	if n.Dst != nil {
		dstPtr, hasDst = s.ptrOf(fc.Ctx, n.Dst), true
	}
	argPtr := func(idx int) (memmodel.Pointer, bool) {
		if idx < 0 || idx >= len(n.Args) {
			return memmodel.Pointer{}, false
		}
		return s.ptrOf(fc.Ctx, n.Args[idx]), true
	}

	effects, ok := s.Ext.Lookup(fn.Name())
	if !ok {
		if hasDst {
			s.AddAddrOf(dstPtr, memmodel.UniversalObjID)
		}
		return
	}

	for _, eff := range effects {
		switch x := eff.(type) {
		case extcall.AllocEffect:
			if !hasDst {
				continue
			}
			obj := s.Mem.AllocateHeap(fc.Ctx, site, opaqueHeapElem)
			s.AddAddrOf(dstPtr, obj)

		case extcall.CopyEffect:
			s.genCopyEffect(fc, x, dstPtr, hasDst, argPtr)

		case extcall.ExitEffect:
			if hasDst {
				s.AddAddrOf(dstPtr, memmodel.UniversalObjID)
			}
		}
	}
}

func (s *Solver) operandPtr(op extcall.Operand, dstPtr memmodel.Pointer, hasDst bool, argPtr func(int) (memmodel.Pointer, bool)) (memmodel.Pointer, bool) {
	switch op.Kind {
	case extcall.KindUniversal, extcall.KindStatic:
		return memmodel.UniversalPointer(), true
	case extcall.KindNull:
		return memmodel.NullPointer(), true
	case extcall.KindValue, extcall.KindMemory, extcall.KindReachable:
		if op.ArgIndex == extcall.RetArg {
			if hasDst {
				return dstPtr, true
			}
			return memmodel.Pointer{}, false
		}
		return argPtr(op.ArgIndex)
	default:
		return memmodel.Pointer{}, false
	}
}

// genCopyEffect wires one COPY effect's src/dst operand pair. The
// value/value, value/memory and memory/value combinations map
// directly onto AddCopy/AddStore/AddLoad; the reachable/reachable
// (memcpy) combination needs a dedicated dynamic constraint (see
// reachcopy.go) since neither operand is a single object. A
// reachable() destination paired with any other source is wired
// through AddReachableCopy as well.
func (s *Solver) genCopyEffect(fc funcCtx, eff extcall.CopyEffect, dstPtr memmodel.Pointer, hasDst bool, argPtr func(int) (memmodel.Pointer, bool)) {
	if eff.Src.Kind == extcall.KindReachable && eff.Dst.Kind == extcall.KindReachable {
		srcPtr, ok1 := argPtr(eff.Src.ArgIndex)
		dstArgPtr, ok2 := argPtr(eff.Dst.ArgIndex)
		if ok1 && ok2 {
			s.AddReachableCopy(dstArgPtr, srcPtr)
		}
		return
	}

	srcPtr, okSrc := s.operandPtr(eff.Src, dstPtr, hasDst, argPtr)
	if !okSrc {
		return
	}

	switch eff.Dst.Kind {
	case extcall.KindValue:
		if eff.Dst.ArgIndex == extcall.RetArg && hasDst {
			if eff.Src.Kind == extcall.KindMemory {
				s.AddLoad(dstPtr, srcPtr)
			} else {
				s.AddCopy(dstPtr, srcPtr)
			}
		}
		// Writing "value" into an argument slot has no operational
		// meaning for a by-value SSA actual (see tpa.applyDst).
	case extcall.KindMemory:
		if p, ok := argPtr(eff.Dst.ArgIndex); ok {
			s.AddStore(p, srcPtr)
		}
	case extcall.KindReachable:
		if p, ok := argPtr(eff.Dst.ArgIndex); ok {
			s.AddReachableCopy(p, srcPtr)
		}
	}
}

// resolveIndirectCalls re-evaluates every registered indirect call
// site against its callee pointer's current points-to set, wiring
// constraints for any newly-discovered callee exactly once. Reports
// whether any new callee was wired (the caller's signal to run
// another Generate/Solve round).
func (s *Solver) resolveIndirectCalls() bool {
	changed := false
	for _, ic := range s.indirect {
		targets := s.env[ic.CalleePtr]
		if targets.Size() == 0 {
			continue
		}
		candidates := s.addressTakenCandidates(ic.Node)
		for _, fn := range s.Mem.GetCallees(targets, candidates) {
			if ic.Resolved[fn] {
				continue
			}
			ic.Resolved[fn] = true
			changed = true
			fc := funcCtx{Fn: ic.Node.Fn, Ctx: ic.Ctx}
			s.wireCall(fc, ic.Node, ic.Site, fn)
		}
	}
	return changed
}

func (s *Solver) addressTakenCandidates(n *semicfg.Node) []*ir.Function {
	var out []*ir.Function
	for _, fn := range s.Prog.Functions() {
		if signatureCompatible(n, fn) {
			out = append(out, fn)
		}
	}
	return out
}

// signatureCompatible mirrors tpa.signatureCompatible (duplicated
// rather than imported: andersen does not depend on tpa, and the
// predicate is a two-line arity/return check, not worth a shared
// package for).
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

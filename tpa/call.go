// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tpa

import (
	"github.com/lotusaa/core/extcall"
	"github.com/lotusaa/core/flowstate"
	"github.com/lotusaa/core/ir"
	"github.com/lotusaa/core/memmodel"
	"github.com/lotusaa/core/pts"
	"github.com/lotusaa/core/semicfg"
	"github.com/lotusaa/core/transfer"
)

// opaqueHeapElem is the element type recorded for a heap object created
// by an external ALLOC effect (e.g. malloc), which carries no static
// element type of its own.
var opaqueHeapElem ir.Type = &ir.Basic{Name: "<opaque-heap>"}

// evalCall evaluates a Call/Invoke node: resolve its callee set, bind
// actuals to formals and prune the Store for every user-defined callee,
// apply the external-call effect table for every external callee, and
// merge the union of all paths' return values/stores back into the
// call's own successors.
func (e *Engine) evalCall(pp transfer.ProgramPoint, store flowstate.Store) {
	n := pp.Node
	site, _ := n.Inst.(ir.CallInstruction)

	callees := e.resolveCallees(pp)
	if len(callees) == 0 {
		e.eval.Loss.Record(pp, transfer.ReasonUnresolvedCallee)
		e.finishCall(pp, store, pts.Singleton(memmodel.UniversalObjID))
		return
	}

	argSets := make([]pts.Set, len(n.Args))
	for i, a := range n.Args {
		argSets[i] = e.env.Get(e.PtrM.GetOrCreate(pp.Ctx, a))
	}

	ret := pts.Empty()
	for _, fn := range callees {
		if fn.IsExternal() {
			var r pts.Set
			store, r = e.evalExternalCall(pp, store, fn, argSets)
			ret = ret.Union(r)
			continue
		}

		calleeCtx := e.Policy.Push(pp.Ctx, site)
		fc := funcCtx{Fn: fn, Ctx: calleeCtx}
		cfg := e.CFGs.Get(fn)

		for i, p := range fn.Params {
			if i >= len(argSets) || !ir.IsPointer(p.Type()) {
				continue
			}
			e.env.WeakUpdate(e.PtrM.GetOrCreate(calleeCtx, p), argSets[i])
		}

		calleeStore := pruneStore(store, e.Mem, argSets, e.globalRoots)
		e.mergeMemo(progPoint(calleeCtx, cfg.Entry), calleeStore)
		e.cg.record(pp, fc)

		if r, ok := e.returns[fc]; ok {
			ret = ret.Union(r.Val)
			store = store.Merge(r.Store)
		}
	}
	if ret.Size() == 0 {
		ret = pts.Singleton(memmodel.UniversalObjID)
	}
	e.finishCall(pp, store, ret)
}

// finishCall writes the merged return value to the call's Dst (if any)
// and propagates the merged Store to the node's control-flow
// successors, re-enqueuing DefUse consumers only if Dst actually grew.
func (e *Engine) finishCall(pp transfer.ProgramPoint, store flowstate.Store, retVal pts.Set) {
	n := pp.Node
	changed := false
	if n.Dst != nil {
		changed = e.env.WeakUpdate(e.PtrM.GetOrCreate(pp.Ctx, n.Dst), retVal)
	}
	if changed {
		for _, du := range n.DefUse {
			e.wl.push(progPoint(pp.Ctx, du))
		}
	}
	for _, s := range n.Succs {
		e.mergeMemo(progPoint(pp.Ctx, s), store)
	}
}

// evalRet folds ret's value and the Store at the return point into its
// function-context's accumulated calleeReturn, and, if that changed
// anything, re-enqueues every call site recorded so far as reaching
// this function-context (a return must flow to every caller, including
// one discovered after the callee already returned).
func (e *Engine) evalRet(pp transfer.ProgramPoint, store flowstate.Store) {
	n := pp.Node
	fc := funcCtx{Fn: n.Fn, Ctx: pp.Ctx}

	var val pts.Set
	if n.RetVal != nil {
		val = e.env.Get(e.PtrM.GetOrCreate(pp.Ctx, n.RetVal))
	}

	cur, ok := e.returns[fc]
	if !ok {
		cur = &calleeReturn{}
		e.returns[fc] = cur
	}

	changed := false
	if newVal := cur.Val.Union(val); !newVal.Equal(cur.Val) {
		cur.Val = newVal
		changed = true
	}
	if newStore := cur.Store.Merge(store); !newStore.Equal(cur.Store) {
		cur.Store = newStore
		changed = true
	}
	if !changed {
		return
	}
	for _, site := range e.cg.callersOf(fc) {
		// Re-running the call site folds the now-updated calleeReturn
		// back in via evalCall's e.returns[fc] lookup.
		e.wl.push(site)
	}
}

// evalExternalCall applies every effect the table records for fn (or,
// absent an entry, falls back to the conservative "no-op, Universal
// return" behavior), returning the updated Store and the external
// call's return-value points-to set.
func (e *Engine) evalExternalCall(pp transfer.ProgramPoint, store flowstate.Store, fn *ir.Function, argSets []pts.Set) (flowstate.Store, pts.Set) {
	effects, ok := e.Ext.Lookup(fn.Name())
	if !ok {
		e.eval.Loss.Record(pp, transfer.ReasonExternalTableMiss)
		return store, pts.Singleton(memmodel.UniversalObjID)
	}

	ret := pts.Empty()
	for _, eff := range effects {
		switch x := eff.(type) {
		case extcall.AllocEffect:
			call, _ := pp.Node.Inst.(ir.CallInstruction)
			obj := e.Mem.AllocateHeap(pp.Ctx, call, opaqueHeapElem)
			ret = ret.Insert(obj)

		case extcall.CopyEffect:
			src := e.resolveOperand(x.Src, pp, store, argSets)
			var delta pts.Set
			store, delta = e.applyDst(x.Dst, pp, store, argSets, src)
			ret = ret.Union(delta)

		case extcall.ExitEffect:
			// No successor state actually matters (the process exits),
			// but a conservative Universal return keeps any unreachable
			// use of the call's result sound rather than empty.
			ret = ret.Insert(memmodel.UniversalObjID)
		}
	}
	if ret.Size() == 0 {
		ret = pts.Singleton(memmodel.UniversalObjID)
	}
	return store, ret
}

// resolveOperand reads the points-to set an effect operand refers to.
func (e *Engine) resolveOperand(op extcall.Operand, pp transfer.ProgramPoint, store flowstate.Store, argSets []pts.Set) pts.Set {
	switch op.Kind {
	case extcall.KindUniversal:
		return pts.Singleton(memmodel.UniversalObjID)
	case extcall.KindNull:
		return pts.Singleton(memmodel.NullObjID)
	case extcall.KindStatic:
		// A "static" source (e.g. strerror's internal buffer) behaves
		// like an opaque, address-unknown value to the caller.
		return pts.Singleton(memmodel.UniversalObjID)
	case extcall.KindValue:
		return e.argOrRetSet(op.ArgIndex, argSets)
	case extcall.KindMemory:
		out := pts.Empty()
		e.argOrRetSet(op.ArgIndex, argSets).ForEach(func(o pts.ObjID) bool {
			out = out.Union(store.Get(o))
			return true
		})
		return out
	case extcall.KindReachable:
		out := pts.Empty()
		e.argOrRetSet(op.ArgIndex, argSets).ForEach(func(o pts.ObjID) bool {
			for _, r := range e.Mem.GetReachablePointerObjects(o) {
				out = out.Union(store.Get(r))
			}
			return true
		})
		return out
	default:
		return pts.Empty()
	}
}

// applyDst writes val to the location an effect operand names, and
// reports any delta that belongs in the call's own return value
// (non-empty only for a KindValue(ret) destination).
func (e *Engine) applyDst(op extcall.Operand, pp transfer.ProgramPoint, store flowstate.Store, argSets []pts.Set, val pts.Set) (flowstate.Store, pts.Set) {
	switch op.Kind {
	case extcall.KindValue:
		if op.ArgIndex == extcall.RetArg {
			return store, val
		}
		// Writing "value" into an argument slot has no operational
		// meaning for a by-value SSA actual; nothing to do.
		return store, pts.Empty()
	case extcall.KindMemory:
		e.argOrRetSet(op.ArgIndex, argSets).ForEach(func(o pts.ObjID) bool {
			store = store.WeakUpdate(o, val)
			return true
		})
		return store, pts.Empty()
	case extcall.KindReachable:
		e.argOrRetSet(op.ArgIndex, argSets).ForEach(func(o pts.ObjID) bool {
			for _, r := range e.Mem.GetReachablePointerObjects(o) {
				store = store.WeakUpdate(r, val)
			}
			return true
		})
		return store, pts.Empty()
	default:
		return store, pts.Empty()
	}
}

// argOrRetSet looks up argument idx's points-to set; an out-of-range
// index (a malformed table entry, or a call with fewer actuals than
// the table assumes) falls back to Universal rather than panicking.
func (e *Engine) argOrRetSet(idx int, argSets []pts.Set) pts.Set {
	if idx == extcall.RetArg || idx < 0 || idx >= len(argSets) {
		return pts.Singleton(memmodel.UniversalObjID)
	}
	return argSets[idx]
}

// resolveCallees computes a Call node's callee set: the single direct
// target if the (canonicalized) callee operand is a *ir.Function
// literal, otherwise every address-taken, signature-compatible
// function whose function-object is a member of the callee pointer's
// points-to set.
func (e *Engine) resolveCallees(pp transfer.ProgramPoint) []*ir.Function {
	n := pp.Node
	if fn, ok := n.Callee.(*ir.Function); ok {
		return []*ir.Function{fn}
	}
	targets := e.env.Get(e.PtrM.GetOrCreate(pp.Ctx, n.Callee))
	if targets.Size() == 0 {
		return nil
	}
	return e.Mem.GetCallees(targets, e.addressTakenCandidates(n))
}

// addressTakenCandidates lists every function in the program whose
// signature is compatible with an indirect call at n: every function
// object was pre-allocated in the global pointer analysis pre-pass
// (initializer.go), so memmodel.GetCallees only needs this list
// filtered down to plausible targets, not literally every
// address-taken function.
func (e *Engine) addressTakenCandidates(n *semicfg.Node) []*ir.Function {
	var out []*ir.Function
	for _, fn := range e.Prog.Functions() {
		if signatureCompatible(n, fn) {
			out = append(out, fn)
		}
	}
	return out
}

// signatureCompatible reports whether fn could plausibly be the target
// of a call site with n's shape: matching arity (or, for a variadic
// callee, at-least-arity) and a return value whenever the call site
// consumes one.
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

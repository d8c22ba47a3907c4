// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package transfer implements the per-node transfer functions for the
// intra-procedural CFG node kinds: Entry, Alloc, Copy, Offset, Load,
// and Store. Call and Ret are evaluated by package tpa instead, since
// their semantics require the dynamic call graph and store pruner,
// which only the worklist propagator owns; see tpa/call.go.
//
// A node's DefUse edges (semicfg.Node.DefUse) are its
// "top-level successors" — re-run because this node's Dst grew in
// Env, regardless of whether the Store changed — and its control
// edges (semicfg.Node.Succs) are its "memory-level successors," each
// carried forward with the (possibly unchanged) Store this node
// produced.
package transfer

import (
	"github.com/rs/zerolog"

	"github.com/lotusaa/core/ctxt"
	"github.com/lotusaa/core/flowstate"
	"github.com/lotusaa/core/ir"
	"github.com/lotusaa/core/memmodel"
	"github.com/lotusaa/core/pts"
	"github.com/lotusaa/core/rtlog"
	"github.com/lotusaa/core/semicfg"
)

// ProgramPoint names one (context, node) pair, the unit the worklist
// schedules and the memoization table is keyed by.
type ProgramPoint struct {
	Ctx  ctxt.Context
	Node *semicfg.Node
}

// MemorySuccessor pairs a control-flow successor program point with
// the Store this transfer produced for it.
type MemorySuccessor struct {
	PP    ProgramPoint
	Store flowstate.Store
}

// EvalResult is everything one transfer-function evaluation produces:
// successors reachable through Env alone, and successors paired with
// a new Store.
type EvalResult struct {
	TopLevel []ProgramPoint
	Memory   []MemorySuccessor

	// EnvChanged reports whether this evaluation grew Env at all;
	// TopLevel is non-empty only when it is true.
	EnvChanged bool
}

// Reason classifies why a transfer fell back to a Universal result,
// feeding the precision-loss log.
type Reason int

const (
	ReasonUnsupportedInstr Reason = iota
	ReasonOutOfBoundsOffset
	ReasonEmptyLoadSource
	ReasonExternalTableMiss
	ReasonUnresolvedCallee
)

func (r Reason) String() string {
	switch r {
	case ReasonUnsupportedInstr:
		return "unsupported-instruction"
	case ReasonOutOfBoundsOffset:
		return "out-of-bounds-offset"
	case ReasonEmptyLoadSource:
		return "empty-load-source"
	case ReasonExternalTableMiss:
		return "external-table-miss"
	case ReasonUnresolvedCallee:
		return "unresolved-callee"
	default:
		return "other"
	}
}

// Loss is one recorded precision-loss event.
type Loss struct {
	PP     ProgramPoint
	Reason Reason
}

// PrecisionLog accumulates every Loss event raised during one run,
// exposed from the tpa Result as Result.PrecisionLoss().
type PrecisionLog struct {
	events []Loss
}

func (p *PrecisionLog) record(pp ProgramPoint, r Reason) {
	if p == nil {
		return
	}
	p.events = append(p.events, Loss{PP: pp, Reason: r})
}

// Record is the exported form of record, for callers outside this
// package (tpa's Call/Ret handling) that raise the same precision-loss
// events the local transfer functions do.
func (p *PrecisionLog) Record(pp ProgramPoint, r Reason) { p.record(pp, r) }

// Events returns every recorded Loss, in recording order.
func (p *PrecisionLog) Events() []Loss {
	if p == nil {
		return nil
	}
	return p.events
}

// Evaluator holds the collaborators every local transfer function
// needs: the memory manager (for fresh stack objects and offset
// arithmetic), the pointer manager (for canonicalizing operands into
// interned Pointers), and an optional trace logger and precision-loss
// accumulator.
type Evaluator struct {
	Mem  *memmodel.Manager
	Ptr  *memmodel.PointerManager
	Log  *zerolog.Logger
	Loss *PrecisionLog
}

// NewEvaluator constructs an Evaluator; log may be nil.
func NewEvaluator(mem *memmodel.Manager, ptr *memmodel.PointerManager, log *zerolog.Logger) *Evaluator {
	return &Evaluator{Mem: mem, Ptr: ptr, Log: rtlog.Or(log), Loss: &PrecisionLog{}}
}

func (e *Evaluator) ptrOf(ctx ctxt.Context, v ir.Value) memmodel.Pointer {
	return e.Ptr.GetOrCreate(ctx, v)
}

// successors builds an EvalResult from the node's static DefUse/Succs
// edges, the caller-supplied Store, and whether this evaluation grew
// Env.
func (e *Evaluator) successors(pp ProgramPoint, store flowstate.Store, envChanged bool) EvalResult {
	var res EvalResult
	res.EnvChanged = envChanged
	if envChanged {
		for _, du := range pp.Node.DefUse {
			res.TopLevel = append(res.TopLevel, ProgramPoint{Ctx: pp.Ctx, Node: du})
		}
	}
	for _, s := range pp.Node.Succs {
		res.Memory = append(res.Memory, MemorySuccessor{PP: ProgramPoint{Ctx: pp.Ctx, Node: s}, Store: store})
	}
	return res
}

// Eval evaluates one local node kind (Entry, Alloc, Copy, Offset,
// Load, Store) against env/store and returns its EvalResult. Call and
// Ret must never reach this function; see the package doc.
func (e *Evaluator) Eval(pp ProgramPoint, env *flowstate.Env, store flowstate.Store) EvalResult {
	n := pp.Node
	switch n.Kind {
	case semicfg.KindEntry:
		return e.successors(pp, store, false)

	case semicfg.KindAlloc:
		alloca := n.Inst.(*ir.Alloca)
		obj := e.Mem.AllocateStack(pp.Ctx, alloca)
		dst := e.ptrOf(pp.Ctx, n.Dst)
		changed := env.StrongUpdate(dst, pts.Singleton(obj))
		return e.successors(pp, store, changed)

	case semicfg.KindCopy:
		var result pts.Set
		if n.Universal {
			result = pts.Singleton(memmodel.UniversalObjID)
			e.Loss.record(pp, ReasonUnsupportedInstr)
		} else {
			var sets []pts.Set
			for _, s := range n.Srcs {
				sets = append(sets, env.Get(e.ptrOf(pp.Ctx, s)))
			}
			result = pts.MergeAll(sets)
		}
		dst := e.ptrOf(pp.Ctx, n.Dst)
		changed := env.StrongUpdate(dst, result)
		return e.successors(pp, store, changed)

	case semicfg.KindOffset:
		src := env.Get(e.ptrOf(pp.Ctx, n.Src))
		result := pts.Empty()
		lostBounds := false
		src.ForEach(func(o pts.ObjID) bool {
			next := e.Mem.OffsetMemory(o, n.ConstOffset)
			if next == memmodel.UniversalObjID && o != memmodel.UniversalObjID && o != memmodel.NullObjID {
				lostBounds = true
			}
			result = result.Insert(next)
			return true
		})
		if lostBounds {
			e.Loss.record(pp, ReasonOutOfBoundsOffset)
		}
		dst := e.ptrOf(pp.Ctx, n.Dst)
		changed := env.StrongUpdate(dst, result)
		return e.successors(pp, store, changed)

	case semicfg.KindLoad:
		src := env.Get(e.ptrOf(pp.Ctx, n.Src))
		var result pts.Set
		if src.Size() == 0 {
			result = pts.Singleton(memmodel.UniversalObjID)
			e.Loss.record(pp, ReasonEmptyLoadSource)
		} else {
			var sets []pts.Set
			src.ForEach(func(o pts.ObjID) bool {
				sets = append(sets, store.Get(o))
				return true
			})
			result = pts.MergeAll(sets)
		}
		dst := e.ptrOf(pp.Ctx, n.Dst)
		changed := env.StrongUpdate(dst, result)
		return e.successors(pp, store, changed)

	case semicfg.KindStore:
		ptrSet := env.Get(e.ptrOf(pp.Ctx, n.Ptr))
		valSet := env.Get(e.ptrOf(pp.Ctx, n.Val))
		newStore := store
		strong := ptrSet.Size() == 1
		ptrSet.ForEach(func(o pts.ObjID) bool {
			switch o {
			case memmodel.UniversalObjID:
				// Storing through Universal is a no-op.
			case memmodel.NullObjID:
				e.Log.Debug().Str("pp", n.String()).Msg("possible null-pointer store")
			default:
				obj, ok := e.Mem.Object(o)
				if strong && ok && !obj.Summary {
					newStore = newStore.StrongUpdate(o, valSet)
				} else {
					newStore = newStore.WeakUpdate(o, valSet)
				}
			}
			return true
		})
		return e.successors(pp, newStore, false)

	default:
		// Call/Ret: owned by tpa; reaching here is a caller bug, not an
		// IR malformedness the framework has to tolerate.
		panic("transfer: Eval called on a Call/Ret node; use tpa's call handling")
	}
}

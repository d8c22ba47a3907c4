// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tpa implements the flow- and context-sensitive semi-sparse
// propagator: the two-level worklist that drives transfer.Evaluator
// over every function's semicfg.CFG, the dynamic call graph it
// discovers along the way (call.go), and the global pointer analysis
// pre-pass that seeds the initial Env and Store (initializer.go).
package tpa

import (
	"github.com/rs/zerolog"

	"github.com/lotusaa/core/ctxt"
	"github.com/lotusaa/core/extcall"
	"github.com/lotusaa/core/flowstate"
	"github.com/lotusaa/core/ir"
	"github.com/lotusaa/core/memmodel"
	"github.com/lotusaa/core/pts"
	"github.com/lotusaa/core/rtlog"
	"github.com/lotusaa/core/semicfg"
	"github.com/lotusaa/core/transfer"
)

// calleeReturn accumulates one function-context's merged return value
// and merged post-call Store across every Ret node it contains; a
// function with multiple return statements merges all of them here.
type calleeReturn struct {
	Val   pts.Set
	Store flowstate.Store
}

// Engine owns one whole-program TPA run: the shared Env, the call-site
// Store memoization table, the worklist, and the incrementally
// discovered call graph.
type Engine struct {
	Prog   ir.Program
	Mem    *memmodel.Manager
	PtrM   *memmodel.PointerManager
	CFGs   *semicfg.Builder
	Policy ctxt.Policy
	Ext    *extcall.Table
	Log    *zerolog.Logger

	env  *flowstate.Env
	memo map[transfer.ProgramPoint]flowstate.Store
	wl   *worklist
	cg   *callGraph
	eval *transfer.Evaluator

	globalRoots []pts.ObjID
	returns     map[funcCtx]*calleeReturn
}

// NewEngine constructs an Engine over prog. policy governs call-string
// extension; ext is the external-call effect table (extcall.Empty() is
// a valid, fully-functional choice). log may be nil.
func NewEngine(prog ir.Program, policy ctxt.Policy, ext *extcall.Table, log *zerolog.Logger) *Engine {
	log = rtlog.Or(log)
	mem := memmodel.NewManager(prog.DataLayout())
	ptrM := memmodel.NewPointerManager()
	e := &Engine{
		Prog:    prog,
		Mem:     mem,
		PtrM:    ptrM,
		CFGs:    semicfg.NewBuilder(prog.DataLayout()),
		Policy:  policy,
		Ext:     ext,
		Log:     log,
		env:     flowstate.NewEnv(),
		memo:    make(map[transfer.ProgramPoint]flowstate.Store),
		wl:      newWorklist(),
		cg:      newCallGraph(),
		returns: make(map[funcCtx]*calleeReturn),
	}
	e.eval = transfer.NewEvaluator(mem, ptrM, log)
	return e
}

func progPoint(ctx ctxt.Context, n *semicfg.Node) transfer.ProgramPoint {
	return transfer.ProgramPoint{Ctx: ctx, Node: n}
}

// Run seeds the analysis (initialize) and drains the worklist to
// a fixpoint, returning a queryable Result.
func (e *Engine) Run() *Result {
	e.initialize()
	for {
		pp, ok := e.wl.pop()
		if !ok {
			break
		}
		e.step(pp)
	}
	return &Result{eng: e}
}

// step dispatches one program point: Call and Ret need the dynamic
// call graph and store pruner, so they bypass transfer.Evaluator and
// go to call.go; every other kind is a pure local transfer function.
func (e *Engine) step(pp transfer.ProgramPoint) {
	store := e.memo[pp]
	switch pp.Node.Kind {
	case semicfg.KindCall:
		e.evalCall(pp, store)
	case semicfg.KindRet:
		e.evalRet(pp, store)
	default:
		e.apply(e.eval.Eval(pp, e.env, store))
	}
}

// apply enqueues a local transfer's successors: TopLevel unconditionally
// (they were only produced because Env actually grew), Memory only if
// merging the carried Store into the target's memo entry changes it.
func (e *Engine) apply(res transfer.EvalResult) {
	for _, pp := range res.TopLevel {
		e.wl.push(pp)
	}
	for _, succ := range res.Memory {
		e.mergeMemo(succ.PP, succ.Store)
	}
}

// mergeMemo merges store into pp's memoized Store, pushing pp onto the
// worklist only the first time it is seen or when the merge actually
// grows its entry, the fixpoint-termination condition.
func (e *Engine) mergeMemo(pp transfer.ProgramPoint, store flowstate.Store) {
	old, ok := e.memo[pp]
	if !ok {
		e.memo[pp] = store
		e.wl.push(pp)
		return
	}
	merged := old.Merge(store)
	if merged.Equal(old) {
		return
	}
	e.memo[pp] = merged
	e.wl.push(pp)
}

// Result is the read-only query surface over a completed Engine.Run().
type Result struct{ eng *Engine }

// PtsSet returns the points-to set the analysis computed for v under
// ctx.
func (r *Result) PtsSet(ctx ctxt.Context, v ir.Value) pts.Set {
	return r.eng.env.Get(r.eng.PtrM.GetOrCreate(ctx, v))
}

// PointsTo is PtsSet under the name vfg.PointsToOracle and
// andersen.Solver share, so either backend can build a Value-Flow
// Graph without vfg depending on which one produced it.
func (r *Result) PointsTo(ctx ctxt.Context, v ir.Value) pts.Set {
	return r.PtsSet(ctx, v)
}

// Alias reports whether (ctx1, v1) and (ctx2, v2)'s solved points-to
// sets intersect, the same may-alias predicate andersen.Solver.Alias
// exposes for its backend.
func (r *Result) Alias(ctx1 ctxt.Context, v1 ir.Value, ctx2 ctxt.Context, v2 ir.Value) bool {
	return r.PtsSet(ctx1, v1).Intersects(r.PtsSet(ctx2, v2))
}

// Snapshot returns every abstract pointer this run's Env has an entry
// for, paired with its current points-to set; see andersen.Solver's
// identical method for why aawrapper needs this enumeration.
func (r *Result) Snapshot() map[memmodel.Pointer]pts.Set {
	return r.eng.env.Snapshot()
}

// PrecisionLoss returns every precision-loss event recorded during the
// run, in recording order.
func (r *Result) PrecisionLoss() []transfer.Loss {
	return r.eng.eval.Loss.Events()
}

// Callees resolves inst (a Call or Invoke site within fn, evaluated
// under ctx) to the set of functions the analysis determined it may
// invoke. ok is false if inst produced no call node (it is not a call
// at all, or fn was never visited).
func (r *Result) Callees(ctx ctxt.Context, fn *ir.Function, inst ir.Instruction) ([]*ir.Function, bool) {
	cfg := r.eng.CFGs.Get(fn)
	n, ok := cfg.NodeFor(inst)
	if !ok || n.Kind != semicfg.KindCall {
		return nil, false
	}
	return r.eng.resolveCallees(progPoint(ctx, n)), true
}

// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package aawrapper

import (
	"github.com/rs/zerolog"

	"github.com/lotusaa/core/andersen"
	"github.com/lotusaa/core/ctxt"
	"github.com/lotusaa/core/extcall"
	"github.com/lotusaa/core/ir"
	"github.com/lotusaa/core/memmodel"
	"github.com/lotusaa/core/pts"
	"github.com/lotusaa/core/tpa"
)

// oracle is the subset of andersen.Solver and tpa.Result this package
// actually drives: a solved-and-queryable backend, independent of which
// one produced it. vfg.Builder defines the identical pair of methods
// for the identical reason (the VFG cannot care which engine fed it).
type oracle interface {
	PointsTo(ctx ctxt.Context, v ir.Value) pts.Set
	Alias(ctx1 ctxt.Context, v1 ir.Value, ctx2 ctxt.Context, v2 ir.Value) bool
	Snapshot() map[memmodel.Pointer]pts.Set
}

// classify turns a raw points-to/alias predicate pair into the
// four-valued AliasResult every backend answers with:
// MustAlias requires both singleton sets to coincide exactly (the same
// rule andersen.Query and tpa use internally), NoAlias requires
// disjointness, and anything else is MayAlias. classify never produces
// PartialAlias: AliasWrapper.QueryLocation derives it from differing
// access extents, and Combined only passes a backend's PartialAlias
// through.
func classify(o oracle, ctx1 ctxt.Context, v1 ir.Value, ctx2 ctxt.Context, v2 ir.Value) AliasResult {
	a := o.PointsTo(ctx1, v1)
	b := o.PointsTo(ctx2, v2)
	if !a.Intersects(b) {
		return NoAlias
	}
	if a.Size() == 1 && a.Equal(b) {
		return MustAlias
	}
	return MayAlias
}

// valuesFor renders a solved points-to set as representative ir.Values:
// the global, function, or allocating instruction backing each member
// object, per memmodel.AllocSite's three real (non-Null/Universal)
// kinds. Objects the memory model can't resolve to a single value
// (Null, Universal, or an object this Manager never created) are
// skipped; GetPointsToSet/GetAliasSet are best-effort.
func valuesFor(mem *memmodel.Manager, set pts.Set) []ir.Value {
	var out []ir.Value
	set.ForEach(func(id pts.ObjID) bool {
		obj, ok := mem.Object(id)
		if !ok {
			return true
		}
		switch obj.Block.Site.Kind {
		case memmodel.SiteGlobal:
			out = append(out, obj.Block.Site.G)
		case memmodel.SiteFunction:
			out = append(out, obj.Block.Site.Fn)
		case memmodel.SiteStack, memmodel.SiteHeap:
			if v, ok := obj.Block.Site.Inst.(ir.Value); ok {
				out = append(out, v)
			}
		}
		return true
	})
	return out
}

// aliasSetFor scans every pointer o has ever solved an entry for and
// returns the ir.Values of the ones (other than (ctx, v) itself) whose
// set intersects v's. This is the only way to answer "who else points
// here" against a solver that only ever indexed by pointer, not by
// object.
func aliasSetFor(mem *memmodel.Manager, o oracle, ctx ctxt.Context, v ir.Value) []ir.Value {
	target := o.PointsTo(ctx, v)
	if target.Size() == 0 {
		return nil
	}
	var out []ir.Value
	for p, set := range o.Snapshot() {
		if p.Ctx.Equal(ctx) && p.V == v {
			continue
		}
		if set.Intersects(target) {
			out = append(out, p.V)
		}
	}
	return out
}

// andersenBackend is the flow-insensitive whole-program backend.
type andersenBackend struct {
	mem *memmodel.Manager
	s   *andersen.Solver
}

func newAndersenBackend(prog ir.Program, policy ctxt.Policy, ext *extcall.Table, log *zerolog.Logger) *andersenBackend {
	s := andersen.NewSolver(prog, policy, ext, log)
	s.Generate(prog.Functions())
	s.Solve()
	return &andersenBackend{mem: s.Mem, s: s}
}

func (b *andersenBackend) query(ctx1 ctxt.Context, v1 ir.Value, ctx2 ctxt.Context, v2 ir.Value) AliasResult {
	return classify(b.s, ctx1, v1, ctx2, v2)
}

func (b *andersenBackend) pointsToValues(ctx ctxt.Context, v ir.Value) []ir.Value {
	return valuesFor(b.mem, b.s.PointsTo(ctx, v))
}

func (b *andersenBackend) aliasSetValues(ctx ctxt.Context, v ir.Value) []ir.Value {
	return aliasSetFor(b.mem, b.s, ctx, v)
}

// tpaBackend is the flow- and context-sensitive backend.
type tpaBackend struct {
	mem *memmodel.Manager
	r   *tpa.Result
}

func newTPABackend(prog ir.Program, policy ctxt.Policy, ext *extcall.Table, log *zerolog.Logger) *tpaBackend {
	e := tpa.NewEngine(prog, policy, ext, log)
	r := e.Run()
	return &tpaBackend{mem: e.Mem, r: r}
}

func (b *tpaBackend) query(ctx1 ctxt.Context, v1 ir.Value, ctx2 ctxt.Context, v2 ir.Value) AliasResult {
	return classify(b.r, ctx1, v1, ctx2, v2)
}

func (b *tpaBackend) pointsToValues(ctx ctxt.Context, v ir.Value) []ir.Value {
	return valuesFor(b.mem, b.r.PtsSet(ctx, v))
}

func (b *tpaBackend) aliasSetValues(ctx ctxt.Context, v ir.Value) []ir.Value {
	return aliasSetFor(b.mem, b.r, ctx, v)
}

// delegatingBackend implements the adapter-shell backends
// (Dyck-CFL-reachability, CFL-Andersen, CFL-Steensgaard): each one
// answers by delegating straight to whichever real engine its own
// literature is closest to. It does not expose
// GetPointsToSet/GetAliasSet, since none of the three actually builds
// an explicit per-pointer solution here.
type delegatingBackend struct {
	o oracle
}

func (b *delegatingBackend) query(ctx1 ctxt.Context, v1 ir.Value, ctx2 ctxt.Context, v2 ir.Value) AliasResult {
	return classify(b.o, ctx1, v1, ctx2, v2)
}

// newDyckBackend answers via TPA: Dyck-CFL-reachability is a
// flow-sensitive call/return-matched reachability query, the same
// family TPA's own per-context Env belongs to.
func newDyckBackend(prog ir.Program, policy ctxt.Policy, ext *extcall.Table, log *zerolog.Logger) *delegatingBackend {
	e := tpa.NewEngine(prog, policy, ext, log)
	return &delegatingBackend{o: e.Run()}
}

// newCFLAndersenBackend answers via the flow-insensitive inclusion
// solver, matching CFL-Andersen's own inclusion-based constraint
// system.
func newCFLAndersenBackend(prog ir.Program, policy ctxt.Policy, ext *extcall.Table, log *zerolog.Logger) *delegatingBackend {
	s := andersen.NewSolver(prog, policy, ext, log)
	s.Generate(prog.Functions())
	s.Solve()
	return &delegatingBackend{o: s}
}

// newCFLSteensgaardBackend answers via the same inclusion solver:
// Steensgaard's unification-based algorithm is strictly coarser than
// Andersen's, so reusing Andersen's (more precise) solution is always
// sound for CFL-Steensgaard's query contract, even though it is not
// literally the unification algorithm.
func newCFLSteensgaardBackend(prog ir.Program, policy ctxt.Policy, ext *extcall.Table, log *zerolog.Logger) *delegatingBackend {
	s := andersen.NewSolver(prog, policy, ext, log)
	s.Generate(prog.Functions())
	s.Solve()
	return &delegatingBackend{o: s}
}

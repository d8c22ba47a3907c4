// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package aawrapper implements the alias-query façade: AliasWrapper,
// the single client entry point, dispatching to one of {Andersen, TPA,
// Dyck, CFL-Anders, CFL-Steens, under-approx, combined} and defining
// the Combined merge law.
package aawrapper

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lotusaa/core/config"
	"github.com/lotusaa/core/ctxt"
	"github.com/lotusaa/core/extcall"
	"github.com/lotusaa/core/ir"
	"github.com/lotusaa/core/rtlog"
)

// AliasResult is the four-valued answer the query API returns: finer
// than andersen.AliasResult's three values because the
// façade also has to represent PartialAlias, a value no single backend
// here actually produces on its own but that the Combined law must
// still be able to propagate from a hypothetical future backend that
// does (Sea-DSA-style field-sensitive unification, most plausibly).
type AliasResult int

const (
	NoAlias AliasResult = iota
	MayAlias
	PartialAlias
	MustAlias
)

func (r AliasResult) String() string {
	switch r {
	case NoAlias:
		return "no-alias"
	case PartialAlias:
		return "partial-alias"
	case MustAlias:
		return "must-alias"
	default:
		return "may-alias"
	}
}

// backend is the minimal query surface every AliasWrapper backend must
// implement.
type backend interface {
	query(ctx1 ctxt.Context, v1 ir.Value, ctx2 ctxt.Context, v2 ir.Value) AliasResult
}

// ptsExposer is implemented by backends that can answer
// getPointsToSet/getAliasSet (others report the query unsupported).
// Andersen and TPA both implement it; Dyck/CFL-*/under-approx do not,
// matching the adapter-shell backends' reduced query surface.
type ptsExposer interface {
	pointsToValues(ctx ctxt.Context, v ir.Value) []ir.Value
	aliasSetValues(ctx ctxt.Context, v ir.Value) []ir.Value
}

// AliasWrapper is the single client entry point: construction takes a
// module and an AAConfig and initializes exactly one backend (or, for
// Combined, several) inside New itself, before the first query.
// Failure to initialize leaves the
// wrapper in the "uninitialized" state, in which every query
// conservatively answers MayAlias rather than returning an error that
// could abort a client checker.
type AliasWrapper struct {
	cfg config.AAConfig
	log *zerolog.Logger

	initialized bool
	primary     backend
	combined    []backend
}

// New constructs an AliasWrapper over prog per cfg. ext is the
// external-call effect table (extcall.Empty() is valid); log may be
// nil. New never panics: a backend that fails to build (an unknown
// Impl, or a BDD-switch-after-latch configuration error surfacing
// from pts) is caught at this single outermost entry point and
// converted into the uninitialized state rather than propagated as a
// panic into the caller.
func New(prog ir.Program, cfg config.AAConfig, ext *extcall.Table, log *zerolog.Logger) (w *AliasWrapper) {
	log = rtlog.Or(log)
	w = &AliasWrapper{cfg: cfg, log: log}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("impl", cfg.Impl.String()).
				Msg("aawrapper: backend initialization failed; wrapper stays uninitialized")
			w.initialized = false
			w.primary, w.combined = nil, nil
		}
	}()

	if cfg.Impl == config.ImplCombined {
		if len(cfg.Combined) == 0 {
			panic(fmt.Errorf("aawrapper: combined config names no backends"))
		}
		for _, impl := range cfg.Combined {
			w.combined = append(w.combined, buildBackend(prog, cfg, impl, ext, log))
		}
		w.initialized = true
		return w
	}

	w.primary = buildBackend(prog, cfg, cfg.Impl, ext, log)
	w.initialized = true
	return w
}

func buildBackend(prog ir.Program, cfg config.AAConfig, impl config.Impl, ext *extcall.Table, log *zerolog.Logger) backend {
	policy := policyFor(cfg)
	switch impl {
	case config.ImplAndersen:
		return newAndersenBackend(prog, policy, ext, log)
	case config.ImplTPA:
		return newTPABackend(prog, policy, ext, log)
	case config.ImplDyck:
		return newDyckBackend(prog, policy, ext, log)
	case config.ImplCFLAndersen:
		return newCFLAndersenBackend(prog, policy, ext, log)
	case config.ImplCFLSteensgaard:
		return newCFLSteensgaardBackend(prog, policy, ext, log)
	case config.ImplUnderApprox:
		return newUnderApproxBackend(prog)
	default:
		panic(fmt.Errorf("aawrapper: unrecognized backend impl %v", impl))
	}
}

func policyFor(cfg config.AAConfig) ctxt.Policy {
	switch cfg.CtxSens {
	case config.CtxKCallSite:
		return ctxt.KCallSitePolicy{K: cfg.KLimit}
	default:
		// CtxAdaptive with no tracked-site set supplied through AAConfig
		// degrades to context-insensitive, the same conservative default
		// NonePolicy already is; a future CLI surface that can name
		// tracked call sites would construct ctxt.AdaptivePolicy directly
		// instead of going through config.Parse.
		return ctxt.NonePolicy{}
	}
}

// Query answers how (ctx1, v1) and (ctx2, v2) relate under this
// wrapper's configured backend(s). An uninitialized wrapper always
// answers MayAlias.
func (w *AliasWrapper) Query(ctx1 ctxt.Context, v1 ir.Value, ctx2 ctxt.Context, v2 ir.Value) AliasResult {
	if !w.initialized {
		return MayAlias
	}
	if w.cfg.Impl == config.ImplCombined {
		return combine(w.combined, ctx1, v1, ctx2, v2)
	}
	return w.primary.query(ctx1, v1, ctx2, v2)
}

// combine implements the Combined-mode merge law: collect every
// backend's answer, then:
//   - any NoAlias and no MustAlias -> NoAlias
//   - any MustAlias and no NoAlias -> MustAlias
//   - both NoAlias and MustAlias appear (a contradiction assumed
//     impossible under each backend's own soundness) -> MayAlias
//   - otherwise, any PartialAlias and nothing stronger -> PartialAlias
//   - otherwise -> MayAlias
func combine(backends []backend, ctx1 ctxt.Context, v1 ir.Value, ctx2 ctxt.Context, v2 ir.Value) AliasResult {
	var sawNo, sawMust, sawPartial bool
	for _, b := range backends {
		switch b.query(ctx1, v1, ctx2, v2) {
		case NoAlias:
			sawNo = true
		case MustAlias:
			sawMust = true
		case PartialAlias:
			sawPartial = true
		}
	}
	switch {
	case sawNo && sawMust:
		return MayAlias
	case sawNo:
		return NoAlias
	case sawMust:
		return MustAlias
	case sawPartial:
		return PartialAlias
	default:
		return MayAlias
	}
}

// Location is a memory operand for location-typed queries: a pointer
// value plus the byte extent the memory operation touches.
type Location struct {
	Ctx  ctxt.Context
	V    ir.Value
	Size uint64
}

// QueryLocation answers Query over two sized locations. Two locations
// that provably share a starting address still only partially alias
// when their extents differ, which makes this the one query surface
// that produces PartialAlias from this module's own backends.
func (w *AliasWrapper) QueryLocation(l1, l2 Location) AliasResult {
	r := w.Query(l1.Ctx, l1.V, l2.Ctx, l2.V)
	if r == MustAlias && l1.Size != l2.Size {
		return PartialAlias
	}
	return r
}

// MayAlias reports whether the two operands could refer to overlapping
// storage.
func (w *AliasWrapper) MayAlias(ctx1 ctxt.Context, v1 ir.Value, ctx2 ctxt.Context, v2 ir.Value) bool {
	return w.Query(ctx1, v1, ctx2, v2) != NoAlias
}

// MustAlias reports whether the two operands provably always refer to
// the same storage.
func (w *AliasWrapper) MustAlias(ctx1 ctxt.Context, v1 ir.Value, ctx2 ctxt.Context, v2 ir.Value) bool {
	return w.Query(ctx1, v1, ctx2, v2) == MustAlias
}

// nullQueryValue is a dedicated *ir.Const used only to pose "does v
// alias null" as an ordinary two-operand Query: memmodel.canonicalPointer
// collapses any ir.Const with IsNull set to the single NullPointer
// singleton regardless of identity, so this sentinel's own identity
// never matters.
var nullQueryValue = ir.NewNullConst(&ir.Basic{Name: "<null-query>"})

// MayNull reports whether v's points-to set may include the null
// pointer.
func (w *AliasWrapper) MayNull(ctx ctxt.Context, v ir.Value) bool {
	return w.MayAlias(ctx, v, ctxt.Global(), nullQueryValue)
}

// GetPointsToSet returns the representative values (allocation-site
// globals, functions, or Alloca/Call instructions) the backend's solved
// points-to set for (ctx, v) names. ok is false for a backend that
// doesn't expose a points-to set (the adapter-shell and under-approx
// backends) or an uninitialized wrapper.
func (w *AliasWrapper) GetPointsToSet(ctx ctxt.Context, v ir.Value) (out []ir.Value, ok bool) {
	b := w.resolveExposer()
	if b == nil {
		return nil, false
	}
	return b.pointsToValues(ctx, v), true
}

// GetAliasSet returns every other known SSA value whose points-to set
// intersects v's, per the same exposer restriction as GetPointsToSet.
func (w *AliasWrapper) GetAliasSet(ctx ctxt.Context, v ir.Value) (out []ir.Value, ok bool) {
	b := w.resolveExposer()
	if b == nil {
		return nil, false
	}
	return b.aliasSetValues(ctx, v), true
}

func (w *AliasWrapper) resolveExposer() ptsExposer {
	if !w.initialized {
		return nil
	}
	if w.cfg.Impl == config.ImplCombined {
		return nil
	}
	e, _ := w.primary.(ptsExposer)
	return e
}

// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package aawrapper

import (
	"testing"

	"github.com/lotusaa/core/config"
	"github.com/lotusaa/core/ctxt"
	"github.com/lotusaa/core/extcall"
	"github.com/lotusaa/core/ir"
	"github.com/lotusaa/core/ir/fixture"
)

func underApproxWrapper(mod ir.Program) *AliasWrapper {
	return New(mod, config.AAConfig{Impl: config.ImplUnderApprox}, extcall.Empty(), nil)
}

func TestUnderApproxIdenticalConstOffsetGEPs(t *testing.T) {
	mod := fixture.NewModule()
	fn := mod.NewFunc("f", &ir.Func{}, nil)
	blk := fn.Block()
	base := blk.Alloca("base", fixture.I64)
	g1 := blk.GEP("g1", base, 4, false, fixture.PtrTo(fixture.I32))
	g2 := blk.GEP("g2", base, 4, false, fixture.PtrTo(fixture.I32))
	blk.Return(nil)

	w := underApproxWrapper(mod)
	g := ctxt.Global()
	if got := w.Query(g, g1, g, g2); got != MustAlias {
		t.Fatalf("identical constant-offset GEPs: Query = %v, want MustAlias", got)
	}
}

func TestUnderApproxTrivialPHIAndSelect(t *testing.T) {
	mod := fixture.NewModule()
	ptrI32 := fixture.PtrTo(fixture.I32)
	fn := mod.NewFunc("f", &ir.Func{}, nil)
	blk := fn.Block()
	q := blk.Alloca("q", fixture.I32)
	p := blk.PHI("p", ptrI32, q, q)
	s := blk.Select("s", q, q)
	blk.Return(nil)

	w := underApproxWrapper(mod)
	g := ctxt.Global()
	if got := w.Query(g, p, g, q); got != MustAlias {
		t.Fatalf("PHI with one distinct incoming value: Query = %v, want MustAlias", got)
	}
	if got := w.Query(g, s, g, q); got != MustAlias {
		t.Fatalf("Select between identical arms: Query = %v, want MustAlias", got)
	}
}

func TestUnderApproxSharedUnderlyingObject(t *testing.T) {
	mod := fixture.NewModule()
	fn := mod.NewFunc("f", &ir.Func{}, nil)
	blk := fn.Block()
	base := blk.Alloca("base", fixture.I64)
	g1 := blk.GEP("g1", base, 0, false, fixture.PtrTo(fixture.I32))
	g2 := blk.GEP("g2", base, 8, false, fixture.PtrTo(fixture.I32))
	blk.Return(nil)

	w := underApproxWrapper(mod)
	g := ctxt.Global()
	if got := w.Query(g, g1, g, g2); got != MustAlias {
		t.Fatalf("GEPs sharing an alloca underlying object: Query = %v, want MustAlias", got)
	}
}

func TestUnderApproxStaysSilentWhenUnproven(t *testing.T) {
	mod := fixture.NewModule()
	fn := mod.NewFunc("f", &ir.Func{}, nil)
	blk := fn.Block()
	a := blk.Alloca("a", fixture.I32)
	b := blk.Alloca("b", fixture.I32)
	blk.Return(nil)

	w := underApproxWrapper(mod)
	g := ctxt.Global()
	if got := w.Query(g, a, g, b); got != MayAlias {
		t.Fatalf("unproven pair: Query = %v, want MayAlias (never NoAlias)", got)
	}
}

func TestDyckStoreLoadScenarios(t *testing.T) {
	// In f: %x = alloca; %p = alloca; store %x, %p; %q = load %p.
	// The loaded pointer may alias the stored one; the two unrelated
	// allocas in g never alias; a slot holding null makes its load
	// possibly-null.
	mod := fixture.NewModule()
	ptrI32 := fixture.PtrTo(fixture.I32)

	f := mod.NewFunc("f", &ir.Func{}, nil)
	fb := f.Block()
	x := fb.Alloca("x", fixture.I32)
	p := fb.Alloca("p", ptrI32)
	fb.Store(p, x)
	q := fb.Load("q", p)
	pn := fb.Alloca("pn", ptrI32)
	fb.Store(pn, ir.NewNullConst(ptrI32))
	l := fb.Load("l", pn)
	fb.Return(nil)

	gfn := mod.NewFunc("g", &ir.Func{}, nil)
	gb := gfn.Block()
	a := gb.Alloca("a", fixture.I32)
	b := gb.Alloca("b", fixture.I32)
	gb.Return(nil)

	w := New(mod, config.AAConfig{Impl: config.ImplDyck}, extcall.Empty(), nil)
	ctx := ctxt.Global()

	if !w.MayAlias(ctx, x, ctx, q) {
		t.Fatalf("MayAlias(x, q) = false, want true")
	}
	if w.MayAlias(ctx, a, ctx, b) {
		t.Fatalf("MayAlias(a, b) = true, want false")
	}
	if !w.MayNull(ctx, l) {
		t.Fatalf("MayNull(l) = false, want true")
	}
}

// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tpa

import (
	"strings"
	"testing"

	"github.com/lotusaa/core/ctxt"
	"github.com/lotusaa/core/extcall"
	"github.com/lotusaa/core/ir"
	"github.com/lotusaa/core/ir/fixture"
	"github.com/lotusaa/core/memmodel"
)

func TestStoreLoadThroughStackSlot(t *testing.T) {
	// %x = alloca i32; %p = alloca i32*; store %x, %p; %q = load %p
	mod := fixture.NewModule()
	fn := mod.NewFunc("main", &ir.Func{}, nil)
	blk := fn.Block()
	x := blk.Alloca("x", fixture.I32)
	p := blk.Alloca("p", fixture.PtrTo(fixture.I32))
	blk.Store(p, x)
	q := blk.Load("q", p)
	blk.Return(nil)

	res := NewEngine(mod, ctxt.NonePolicy{}, extcall.Empty(), nil).Run()
	g := ctxt.Global()

	if !res.Alias(g, q, g, x) {
		t.Fatalf("q was loaded from a slot storing x; they must alias")
	}
	if !res.PtsSet(g, q).Equal(res.PtsSet(g, x)) {
		t.Fatalf("pts(q) = %v, want exactly pts(x) = %v", res.PtsSet(g, q), res.PtsSet(g, x))
	}
	if res.Alias(g, q, g, p) {
		t.Fatalf("q points at x's object, not at p's slot")
	}
}

func TestSecondStoreIsStrongUpdate(t *testing.T) {
	// store null, %p; store %x, %p; %q = load %p  — the second store
	// overwrites the singleton non-summary slot, so q is never null.
	mod := fixture.NewModule()
	ptrI32 := fixture.PtrTo(fixture.I32)
	fn := mod.NewFunc("main", &ir.Func{}, nil)
	blk := fn.Block()
	x := blk.Alloca("x", fixture.I32)
	p := blk.Alloca("p", ptrI32)
	blk.Store(p, ir.NewNullConst(ptrI32))
	blk.Store(p, x)
	q := blk.Load("q", p)
	blk.Return(nil)

	res := NewEngine(mod, ctxt.NonePolicy{}, extcall.Empty(), nil).Run()
	g := ctxt.Global()

	if res.PtsSet(g, q).Has(memmodel.NullObjID) {
		t.Fatalf("pts(q) = %v still contains null after a strong update", res.PtsSet(g, q))
	}
	if !res.Alias(g, q, g, x) {
		t.Fatalf("q must point at x after the second store")
	}
}

func TestBranchMergeIsWeak(t *testing.T) {
	// Two predecessors each store a different alloca into the same
	// slot; the load at the merge point must see both.
	mod := fixture.NewModule()
	ptrI32 := fixture.PtrTo(fixture.I32)
	fn := mod.NewFunc("main", &ir.Func{}, nil)
	b0 := fn.Block()
	b1 := fn.Block()
	b2 := fn.Block()
	b3 := fn.Block()
	b0.SetSuccs(b1, b2)
	b1.SetSuccs(b3)
	b2.SetSuccs(b3)

	x := b0.Alloca("x", fixture.I32)
	y := b0.Alloca("y", fixture.I32)
	p := b0.Alloca("p", ptrI32)
	b1.Store(p, x)
	b2.Store(p, y)
	q := b3.Load("q", p)
	b3.Return(nil)

	res := NewEngine(mod, ctxt.NonePolicy{}, extcall.Empty(), nil).Run()
	g := ctxt.Global()

	if !res.Alias(g, q, g, x) || !res.Alias(g, q, g, y) {
		t.Fatalf("the merge-point load must see both branches' stores: pts(q) = %v", res.PtsSet(g, q))
	}
}

func TestCallBindsParamsAndReturn(t *testing.T) {
	// id(%a) { ret %a } ; main: %x = alloca; %r = id(%x)
	mod := fixture.NewModule()
	ptrI32 := fixture.PtrTo(fixture.I32)
	id := mod.NewFunc("id", &ir.Func{Params: []ir.Type{ptrI32}, Results: []ir.Type{ptrI32}}, []string{"a"})
	ib := id.Block()
	ib.Return(id.Function().Params[0])

	fn := mod.NewFunc("main", &ir.Func{}, nil)
	blk := fn.Block()
	x := blk.Alloca("x", fixture.I32)
	r := blk.Call("r", id.Function(), []ir.Value{x}, ptrI32)
	blk.Return(nil)

	res := NewEngine(mod, ctxt.KCallSitePolicy{K: 1}, extcall.Empty(), nil).Run()
	g := ctxt.Global()

	if !res.Alias(g, r, g, x) {
		t.Fatalf("id returns its argument; r must alias x, pts(r) = %v", res.PtsSet(g, r))
	}

	callees, ok := res.Callees(g, fn.Function(), r)
	if !ok || len(callees) != 1 || callees[0] != id.Function() {
		t.Fatalf("Callees = %v, %v; want exactly [id]", callees, ok)
	}
}

func TestExternalAllocThroughTable(t *testing.T) {
	// Two malloc sites flowing into a select: the select's set covers
	// both heap objects.
	mod := fixture.NewModule()
	voidPtr := fixture.PtrTo(fixture.I8)
	malloc := mod.NewFunc("malloc", &ir.Func{Results: []ir.Type{voidPtr}}, nil).Function()

	fn := mod.NewFunc("main", &ir.Func{}, nil)
	blk := fn.Block()
	m1 := blk.Call("m1", malloc, nil, voidPtr)
	m2 := blk.Call("m2", malloc, nil, voidPtr)
	s := blk.Select("s", m1, m2)
	blk.Return(nil)

	table, err := extcall.Parse(strings.NewReader("malloc ALLOC\n"))
	if err != nil {
		t.Fatalf("extcall.Parse: %v", err)
	}
	res := NewEngine(mod, ctxt.NonePolicy{}, table, nil).Run()
	g := ctxt.Global()

	set := res.PtsSet(g, s)
	if set.Size() != 2 {
		t.Fatalf("pts(select) = %v, want both malloc objects", set)
	}
	if !set.Includes(res.PtsSet(g, m1)) || !set.Includes(res.PtsSet(g, m2)) {
		t.Fatalf("pts(select) = %v must cover pts(m1) = %v and pts(m2) = %v", set, res.PtsSet(g, m1), res.PtsSet(g, m2))
	}
}

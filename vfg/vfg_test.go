package vfg

import (
	"testing"

	"github.com/lotusaa/core/andersen"
	"github.com/lotusaa/core/ctxt"
	"github.com/lotusaa/core/extcall"
	"github.com/lotusaa/core/ir"
	"github.com/lotusaa/core/ir/fixture"
	"github.com/lotusaa/core/memmodel"
	"github.com/lotusaa/core/semicfg"
)

func solve(mod *fixture.Module, entries []*ir.Function) *andersen.Solver {
	s := andersen.NewSolver(mod, ctxt.NonePolicy{}, extcall.Empty(), nil)
	s.Generate(entries)
	return s
}

// TestDefUseEdge builds a straight-line alloc/offset chain and checks
// the builder records a KindDefUse edge from the defining node to its
// use.
func TestDefUseEdge(t *testing.T) {
	mod := fixture.NewModule()
	fn := mod.NewFunc("f", &ir.Func{Results: []ir.Type{}}, nil)
	blk := fn.Block()
	a := blk.Alloca("a", fixture.I64)
	p := blk.GEP("p", a, 4, false, fixture.PtrTo(fixture.I32))
	blk.Return(nil)

	s := solve(mod, []*ir.Function{fn.Function()})
	mem := memmodel.NewManager(fixture.Layout{})
	ptrM := memmodel.NewPointerManager()
	cfgs := semicfg.NewBuilder(fixture.Layout{})

	b := NewBuilder(mod, cfgs, mem, ptrM, ctxt.NonePolicy{}, s, s)
	g := b.Build([]*ir.Function{fn.Function()})

	ctx := ctxt.Global()
	from := ptrM.GetOrCreate(ctx, a)
	to := ptrM.GetOrCreate(ctx, p)

	var found bool
	for _, e := range g.Successors(from) {
		if e.Kind == KindDefUse && e.To == to {
			found = true
		}
	}
	if !found {
		t.Fatalf("no def-use edge from a to p; successors=%v", g.Successors(from))
	}
}

// TestMemoryEdgeGatedOnAlias builds a store/load pair through the same
// alloca and checks a KindMemory edge connects the stored value to the
// loaded destination.
func TestMemoryEdgeGatedOnAlias(t *testing.T) {
	mod := fixture.NewModule()
	fn := mod.NewFunc("f", &ir.Func{Results: []ir.Type{}}, nil)
	blk := fn.Block()
	x := blk.Alloca("x", fixture.I32)
	slot := blk.Alloca("slot", fixture.PtrTo(fixture.I32))
	blk.Store(slot, x)
	q := blk.Load("q", slot)
	blk.Return(nil)

	s := solve(mod, []*ir.Function{fn.Function()})
	mem := memmodel.NewManager(fixture.Layout{})
	ptrM := memmodel.NewPointerManager()
	cfgs := semicfg.NewBuilder(fixture.Layout{})

	b := NewBuilder(mod, cfgs, mem, ptrM, ctxt.NonePolicy{}, s, s)
	g := b.Build([]*ir.Function{fn.Function()})

	ctx := ctxt.Global()
	from := ptrM.GetOrCreate(ctx, x)
	to := ptrM.GetOrCreate(ctx, q)

	var found bool
	for _, e := range g.Successors(from) {
		if e.Kind == KindMemory && e.To == to {
			found = true
		}
	}
	if !found {
		t.Fatalf("no memory edge from x to q; successors=%v", g.Successors(from))
	}
}

// TestCallReturnEdgesShareMatchingLabel builds a caller that passes
// one argument to a callee and consumes its return value, and checks
// the KindCall and KindReturn edges for that site share one label (the
// property gvfa's CFL-reachability pass relies on to match calls to
// returns).
func TestCallReturnEdgesShareMatchingLabel(t *testing.T) {
	mod := fixture.NewModule()
	ptrI32 := fixture.PtrTo(fixture.I32)

	callee := mod.NewFunc("callee", &ir.Func{Params: []ir.Type{ptrI32}, Results: []ir.Type{ptrI32}}, []string{"x"})
	cblk := callee.Block()
	cblk.Return(callee.Function().Params[0])

	main := mod.NewFunc("main", &ir.Func{Results: []ir.Type{}}, nil)
	mblk := main.Block()
	a := mblk.Alloca("a", fixture.I32)
	dst := mblk.Call("dst", callee.Function(), []ir.Value{a}, ptrI32)
	mblk.Return(nil)

	s := solve(mod, []*ir.Function{main.Function()})
	mem := memmodel.NewManager(fixture.Layout{})
	ptrM := memmodel.NewPointerManager()
	cfgs := semicfg.NewBuilder(fixture.Layout{})

	b := NewBuilder(mod, cfgs, mem, ptrM, ctxt.NonePolicy{}, s, s)
	g := b.Build([]*ir.Function{main.Function()})

	ctx := ctxt.Global()
	argPtr := ptrM.GetOrCreate(ctx, a)
	paramPtr := ptrM.GetOrCreate(ctx, callee.Function().Params[0])
	retPtr := ptrM.GetOrCreate(ctx, callee.Function().Params[0]) // callee returns its own param
	dstPtr := ptrM.GetOrCreate(ctx, dst)

	var callLabel, retLabel int = -1, -1
	for _, e := range g.Successors(argPtr) {
		if e.Kind == KindCall && e.To == paramPtr {
			callLabel = e.Label
		}
	}
	for _, e := range g.Successors(retPtr) {
		if e.Kind == KindReturn && e.To == dstPtr {
			retLabel = e.Label
		}
	}
	if callLabel == -1 || retLabel == -1 {
		t.Fatalf("missing call/return edge: call=%d ret=%d", callLabel, retLabel)
	}
	if callLabel != retLabel {
		t.Fatalf("call label %d != return label %d, want matched parentheses", callLabel, retLabel)
	}
}

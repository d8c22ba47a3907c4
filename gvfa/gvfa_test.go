package gvfa

import (
	"testing"

	"github.com/lotusaa/core/andersen"
	"github.com/lotusaa/core/ctxt"
	"github.com/lotusaa/core/extcall"
	"github.com/lotusaa/core/ir"
	"github.com/lotusaa/core/ir/fixture"
	"github.com/lotusaa/core/memmodel"
	"github.com/lotusaa/core/semicfg"
	"github.com/lotusaa/core/vfg"
)

func buildGraph(t *testing.T, mod *fixture.Module, entries []*ir.Function) *vfg.Graph {
	t.Helper()
	s := andersen.NewSolver(mod, ctxt.NonePolicy{}, extcall.Empty(), nil)
	s.Generate(entries)

	mem := memmodel.NewManager(fixture.Layout{})
	ptrM := memmodel.NewPointerManager()
	cfgs := semicfg.NewBuilder(fixture.Layout{})
	b := vfg.NewBuilder(mod, cfgs, mem, ptrM, ctxt.NonePolicy{}, s, s)
	return b.Build(entries)
}

// TestCFLReachableThroughMatchedCallReturn builds a caller passing a
// pointer into a callee that copies it into its return value: the
// caller's argument must CFL-reach the caller's call destination
// through the call/return pair's matched labels (the well-matched
// parentheses requirement on a minimal example).
func TestCFLReachableThroughMatchedCallReturn(t *testing.T) {
	mod := fixture.NewModule()
	ptrI32 := fixture.PtrTo(fixture.I32)

	callee := mod.NewFunc("callee", &ir.Func{Params: []ir.Type{ptrI32}, Results: []ir.Type{ptrI32}}, []string{"x"})
	cblk := callee.Block()
	y := cblk.BitCast("y", callee.Function().Params[0], ptrI32)
	cblk.Return(y)

	main := mod.NewFunc("main", &ir.Func{Results: []ir.Type{}}, nil)
	mblk := main.Block()
	a := mblk.Alloca("a", fixture.I32)
	dst := mblk.Call("dst", callee.Function(), []ir.Value{a}, ptrI32)
	mblk.Return(nil)

	g := buildGraph(t, mod, []*ir.Function{main.Function()})
	ptrM := memmodel.NewPointerManager()
	ctx := ctxt.Global()
	from := ptrM.GetOrCreate(ctx, a)
	to := ptrM.GetOrCreate(ctx, dst)

	cfl := NewCFL(g)
	if !cfl.Reachable(from, to) {
		t.Fatalf("expected %v to CFL-reach %v through the call/return pair", from, to)
	}
	if !cfl.BalancedReachable(from, to) {
		t.Fatalf("expected a fully-matched (balanced) path from %v to %v", from, to)
	}
}

// TestCFLRejectsCrossedCallReturn builds two sibling calls to the same
// callee and checks that entering through one call site's argument
// edge and leaving through the *other* call site's return edge is
// rejected: their labels differ, so no well-matched path exists even
// though an unlabeled-edge-only search would wrongly find one.
func TestCFLRejectsCrossedCallReturn(t *testing.T) {
	mod := fixture.NewModule()
	ptrI32 := fixture.PtrTo(fixture.I32)

	callee := mod.NewFunc("callee", &ir.Func{Params: []ir.Type{ptrI32}, Results: []ir.Type{ptrI32}}, []string{"x"})
	cblk := callee.Block()
	cblk.Return(callee.Function().Params[0])

	main := mod.NewFunc("main", &ir.Func{Results: []ir.Type{}}, nil)
	mblk := main.Block()
	a := mblk.Alloca("a", fixture.I32)
	b := mblk.Alloca("b", fixture.I32)
	mblk.Call("d1", callee.Function(), []ir.Value{a}, ptrI32)
	dst2 := mblk.Call("d2", callee.Function(), []ir.Value{b}, ptrI32)
	mblk.Return(nil)

	g := buildGraph(t, mod, []*ir.Function{main.Function()})
	ptrM := memmodel.NewPointerManager()
	ctx := ctxt.Global()
	fromA := ptrM.GetOrCreate(ctx, a)
	toD2 := ptrM.GetOrCreate(ctx, dst2)

	cfl := NewCFL(g)
	if cfl.BalancedReachable(fromA, toD2) {
		t.Fatalf("a's call-site label must not match d2's return label")
	}
}

// TestWitnessPathEndpointsAndAdjacency checks property 9: a non-empty
// witness path starts with "from", ends with "to", and every
// consecutive pair is either VFG-adjacent or separated by Ellipsis.
func TestWitnessPathEndpointsAndAdjacency(t *testing.T) {
	mod := fixture.NewModule()
	fn := mod.NewFunc("f", &ir.Func{Results: []ir.Type{}}, nil)
	blk := fn.Block()
	a := blk.Alloca("a", fixture.I64)
	p1 := blk.GEP("p1", a, 0, false, fixture.PtrTo(fixture.I32))
	p2 := blk.GEP("p2", p1, 4, false, fixture.PtrTo(fixture.I32))
	blk.Return(nil)

	g := buildGraph(t, mod, []*ir.Function{fn.Function()})
	ptrM := memmodel.NewPointerManager()
	ctx := ctxt.Global()
	from := ptrM.GetOrCreate(ctx, a)
	to := ptrM.GetOrCreate(ctx, p2)

	path := WitnessPath(g, from, to, 0)
	if len(path) == 0 {
		t.Fatalf("expected a non-empty witness path from %v to %v", from, to)
	}
	if path[0] != from {
		t.Fatalf("path[0] = %v, want from = %v", path[0], from)
	}
	if path[len(path)-1] != to {
		t.Fatalf("path[last] = %v, want to = %v", path[len(path)-1], to)
	}
	for i := 1; i < len(path); i++ {
		if path[i] == Ellipsis {
			continue
		}
		if path[i-1] == Ellipsis {
			continue
		}
		adjacent := false
		for _, e := range g.Successors(path[i-1]) {
			if e.To == path[i] {
				adjacent = true
				break
			}
		}
		if !adjacent {
			t.Fatalf("path[%d]=%v is not VFG-adjacent to path[%d]=%v", i, path[i], i-1, path[i-1])
		}
	}
}

// TestFastEngineReachableMask exercises the bit-mask forward pass over
// a two-source graph: each source's bit must propagate to its own
// descendants without leaking into the other source's exclusive
// descendant.
func TestFastEngineReachableMask(t *testing.T) {
	mod := fixture.NewModule()
	fn := mod.NewFunc("f", &ir.Func{Results: []ir.Type{}}, nil)
	blk := fn.Block()
	a := blk.Alloca("a", fixture.I64)
	b := blk.Alloca("b", fixture.I64)
	pa := blk.GEP("pa", a, 0, false, fixture.PtrTo(fixture.I32))
	pb := blk.GEP("pb", b, 0, false, fixture.PtrTo(fixture.I32))
	blk.Return(nil)

	g := buildGraph(t, mod, []*ir.Function{fn.Function()})
	ptrM := memmodel.NewPointerManager()
	ctx := ctxt.Global()
	srcA := ptrM.GetOrCreate(ctx, a)
	srcB := ptrM.GetOrCreate(ctx, b)
	descA := ptrM.GetOrCreate(ctx, pa)
	descB := ptrM.GetOrCreate(ctx, pb)

	fast := NewFast(g, []Source{{Node: srcA, Bit: 0}, {Node: srcB, Bit: 1}}, nil)
	if fast.Reachable(descA, 1<<0) == 0 {
		t.Fatalf("expected source a's bit to reach its own descendant")
	}
	if fast.Reachable(descA, 1<<1) != 0 {
		t.Fatalf("source b's bit must not leak into a's exclusive descendant")
	}
	if fast.Reachable(descB, 1<<1) == 0 {
		t.Fatalf("expected source b's bit to reach its own descendant")
	}
}

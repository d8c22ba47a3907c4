package memmodel

import (
	"testing"

	"github.com/lotusaa/core/ctxt"
	"github.com/lotusaa/core/ir"
	"github.com/lotusaa/core/ir/fixture"
	"github.com/lotusaa/core/pts"
)

func TestAllocateGlobalIsStable(t *testing.T) {
	m := NewManager(fixture.Layout{})
	g := &ir.Global{GName: "x", GType: fixture.I32}
	a := m.AllocateGlobal(g)
	b := m.AllocateGlobal(g)
	if a != b {
		t.Fatalf("AllocateGlobal not idempotent: %d vs %d", a, b)
	}
	if a == NullObjID || a == UniversalObjID {
		t.Fatalf("global object collided with a singleton: %d", a)
	}
}

func TestAllocateStackIsContextSensitive(t *testing.T) {
	m := NewManager(fixture.Layout{})
	mod := fixture.NewModule()
	fn := mod.NewFunc("f", &ir.Func{Results: []ir.Type{}}, nil)
	blk := fn.Block()
	alloca := blk.Alloca("p", fixture.I32)

	c0 := ctxt.Global()
	call := &ir.Call{}
	c1 := ctxt.Push(c0, call)

	o0 := m.AllocateStack(c0, alloca)
	o1 := m.AllocateStack(c1, alloca)
	if o0 == o1 {
		t.Fatalf("same Alloca under different contexts should yield distinct objects")
	}
	if m.AllocateStack(c0, alloca) != o0 {
		t.Fatalf("AllocateStack not idempotent within a context")
	}
}

func TestAllocateHeapIsAlwaysSummary(t *testing.T) {
	m := NewManager(fixture.Layout{})
	call := &ir.Call{}
	id := m.AllocateHeap(ctxt.Global(), call, fixture.I32)
	obj, ok := m.Object(id)
	if !ok {
		t.Fatalf("heap object not found")
	}
	if !obj.Summary {
		t.Fatalf("heap object must always be a summary object")
	}
}

func TestOffsetMemoryStructField(t *testing.T) {
	m := NewManager(fixture.Layout{})
	st := &ir.Struct{Name: "S", Fields: []ir.Type{fixture.I32, fixture.PtrTo(fixture.I32)}}
	g := &ir.Global{GName: "s", GType: st}
	base := m.AllocateGlobal(g)

	fieldObj := m.OffsetMemory(base, 4) // second field, the pointer
	obj, ok := m.Object(fieldObj)
	if !ok {
		t.Fatalf("expected a resolved field object")
	}
	if obj.Offset != 4 || obj.Summary {
		t.Fatalf("got offset=%d summary=%v, want offset=4 summary=false", obj.Offset, obj.Summary)
	}
}

func TestOffsetMemoryArrayNormalizes(t *testing.T) {
	m := NewManager(fixture.Layout{})
	arr := &ir.Array{Elem: fixture.PtrTo(fixture.I32), Len: 4}
	g := &ir.Global{GName: "arr", GType: arr}
	base := m.AllocateGlobal(g)

	elem0 := m.OffsetMemory(base, 0)
	elem3 := m.OffsetMemory(base, 3*8)
	if elem0 != elem3 {
		t.Fatalf("array elements must collapse to one summary object: %d vs %d", elem0, elem3)
	}
	obj, _ := m.Object(elem0)
	if !obj.Summary {
		t.Fatalf("array element object must be a summary object")
	}
}

func TestOffsetMemoryOutOfBoundsIsUniversal(t *testing.T) {
	m := NewManager(fixture.Layout{})
	g := &ir.Global{GName: "x", GType: fixture.I32}
	base := m.AllocateGlobal(g)
	if got := m.OffsetMemory(base, 1000); got != UniversalObjID {
		t.Fatalf("out-of-bounds offset should collapse to Universal, got %d", got)
	}
}

func TestGetReachablePointerObjects(t *testing.T) {
	m := NewManager(fixture.Layout{})
	st := &ir.Struct{Name: "S", Fields: []ir.Type{fixture.PtrTo(fixture.I32), fixture.I32, fixture.PtrTo(fixture.I32)}}
	g := &ir.Global{GName: "s", GType: st}
	base := m.AllocateGlobal(g)

	ptrs := m.GetReachablePointerObjects(base)
	if len(ptrs) != 2 {
		t.Fatalf("expected 2 reachable pointer objects, got %d", len(ptrs))
	}
}

func TestGetCalleesUniversalFallsBackToAll(t *testing.T) {
	m := NewManager(fixture.Layout{})
	mod := fixture.NewModule()
	fA := mod.NewFunc("a", &ir.Func{}, nil).Function()
	fB := mod.NewFunc("b", &ir.Func{}, nil).Function()
	m.AllocateFunction(fA)
	m.AllocateFunction(fB)

	universal := pts.Singleton(UniversalObjID)
	got := m.GetCallees(universal, []*ir.Function{fA, fB})
	if len(got) != 2 {
		t.Fatalf("Universal target should resolve to every candidate, got %d", len(got))
	}
}

func TestGetCalleesFiltersByTargetSet(t *testing.T) {
	m := NewManager(fixture.Layout{})
	mod := fixture.NewModule()
	fA := mod.NewFunc("a", &ir.Func{}, nil).Function()
	fB := mod.NewFunc("b", &ir.Func{}, nil).Function()
	oA := m.AllocateFunction(fA)
	m.AllocateFunction(fB)

	got := m.GetCallees(pts.Singleton(oA), []*ir.Function{fA, fB})
	if len(got) != 1 || got[0] != fA {
		t.Fatalf("expected only fA, got %v", got)
	}
}

func TestCanonicalizeNoOpChains(t *testing.T) {
	mod := fixture.NewModule()
	fn := mod.NewFunc("f", &ir.Func{Results: []ir.Type{}}, nil)
	blk := fn.Block()
	alloca := blk.Alloca("p", fixture.I32)
	cast := blk.BitCast("q", alloca, fixture.PtrTo(fixture.I32))
	if got := Canonicalize(cast); got != ir.Value(alloca) {
		t.Fatalf("BitCast should canonicalize to its Base, got %v", got)
	}

	phi := blk.PHI("m", fixture.PtrTo(fixture.I32), alloca)
	if got := Canonicalize(phi); got != ir.Value(alloca) {
		t.Fatalf("single-edge PHI should canonicalize to its edge, got %v", got)
	}

	multiPhi := blk.PHI("n", fixture.PtrTo(fixture.I32), alloca, cast)
	if got := Canonicalize(multiPhi); got != ir.Value(multiPhi) {
		t.Fatalf("multi-edge PHI should not canonicalize away")
	}
}

func TestCanonicalizeIntToPtrIsUndef(t *testing.T) {
	mod := fixture.NewModule()
	fn := mod.NewFunc("f", &ir.Func{Results: []ir.Type{}}, nil)
	blk := fn.Block()
	alloca := blk.Alloca("p", fixture.I32)
	c := blk.IntToPtr("q", alloca, fixture.PtrTo(fixture.I32))

	got := Canonicalize(c)
	if got == ir.Value(c) {
		t.Fatalf("IntToPtr should canonicalize away to Undef")
	}
	cst, ok := got.(*ir.Const)
	if !ok || !cst.IsUndef {
		t.Fatalf("IntToPtr should canonicalize to an Undef constant, got %v", got)
	}
}

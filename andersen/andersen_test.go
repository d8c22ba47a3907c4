package andersen

import (
	"strings"
	"testing"

	"github.com/lotusaa/core/ctxt"
	"github.com/lotusaa/core/extcall"
	"github.com/lotusaa/core/ir"
	"github.com/lotusaa/core/ir/fixture"
	"github.com/lotusaa/core/pts"
)

func newSolver(mod *fixture.Module, ext *extcall.Table, policy ctxt.Policy) *Solver {
	if ext == nil {
		ext = extcall.Empty()
	}
	if policy == nil {
		policy = ctxt.NonePolicy{}
	}
	return NewSolver(mod, policy, ext, nil)
}

func TestAddCopyPropagatesAfterTheFact(t *testing.T) {
	mod := fixture.NewModule()
	fn := mod.NewFunc("f", &ir.Func{Results: []ir.Type{}}, nil)
	blk := fn.Block()
	a := blk.Alloca("a", fixture.I32)
	p := blk.Alloca("p", fixture.PtrTo(fixture.I32))

	s := newSolver(mod, nil, nil)
	ctx := ctxt.Global()
	aObj := s.Mem.AllocateStack(ctx, a)
	s.AddAddrOf(s.ptrOf(ctx, a), aObj)

	dst := s.ptrOf(ctx, p)
	src := s.ptrOf(ctx, a)
	s.AddCopy(dst, src)
	s.Solve()

	got := s.PointsTo(ctx, p)
	if got.Size() != 1 || !got.Has(aObj) {
		t.Fatalf("pts(p) = %v, want {%d}", got.Slice(), aObj)
	}
}

// TestSelectBetweenTwoMallocsMergesBothObjects builds the malloc/select/
// store scenario: two distinct malloc call sites m1, m2, a value p
// selecting between their results, and a store of a known pointer
// through p. Both call sites must flow into pts(p), and the weak
// (summary) store at each resulting heap object must pick up the
// stored value.
func TestSelectBetweenTwoMallocsMergesBothObjects(t *testing.T) {
	mod := fixture.NewModule()
	voidPtr := fixture.PtrTo(fixture.I8)
	malloc := mod.NewFunc("malloc", &ir.Func{Results: []ir.Type{voidPtr}}, nil).Function()

	fn := mod.NewFunc("f", &ir.Func{Results: []ir.Type{}}, nil)
	blk := fn.Block()
	q := blk.Alloca("q", fixture.I32)
	m1 := blk.Call("m1", malloc, nil, voidPtr)
	m2 := blk.Call("m2", malloc, nil, voidPtr)
	p := blk.Select("p", m1, m2)
	blk.Store(p, q)
	blk.Return(nil)

	ext, err := extcall.Parse(strings.NewReader("malloc ALLOC\n"))
	if err != nil {
		t.Fatalf("extcall.Parse: %v", err)
	}

	s := newSolver(mod, ext, nil)
	s.Generate(nil)

	ctx := ctxt.Global()
	pSet := s.PointsTo(ctx, p)
	if pSet.Size() != 2 {
		t.Fatalf("pts(p) = %v, want exactly the two malloc objects", pSet.Slice())
	}

	qObj := s.Mem.AllocateStack(ctx, q)
	pSet.ForEach(func(o pts.ObjID) bool {
		if got := s.store[o]; got.Size() != 1 || !got.Has(qObj) {
			t.Fatalf("store(%d) = %v, want {%d} (q's object)", o, got.Slice(), qObj)
		}
		return true
	})

	if s.Query(ctx, m1, ctx, m2) != NoAlias {
		t.Fatalf("m1 and m2 are distinct allocations, want NoAlias, got %v", s.Query(ctx, m1, ctx, m2))
	}
	if s.Query(ctx, p, ctx, m1) == NoAlias {
		t.Fatalf("p may alias m1 (one of the select arms), want MayAlias or MustAlias")
	}
}

func TestQueryReportsMustAliasForSingletonEqualSets(t *testing.T) {
	mod := fixture.NewModule()
	fn := mod.NewFunc("f", &ir.Func{Results: []ir.Type{}}, nil)
	blk := fn.Block()
	a := blk.Alloca("a", fixture.I32)

	s := newSolver(mod, nil, nil)
	ctx := ctxt.Global()
	s.AddAddrOf(s.ptrOf(ctx, a), s.Mem.AllocateStack(ctx, a))

	if got := s.Query(ctx, a, ctx, a); got != MustAlias {
		t.Fatalf("Query(a, a) = %v, want MustAlias", got)
	}
}

// TestResolveIndirectCallWiresCalleeOnceDiscovered calls through a
// function pointer loaded out of memory (not a bitcast, which
// memmodel.Canonicalize would sink straight to the callee and turn
// this into an ordinary direct call): main stores &callee into a
// slot, loads it back, and calls through the load. genCall can only
// see this as an indirect call; the callee must still get wired once
// resolveIndirectCalls matches the loaded pointer's solved points-to
// set against it.
func TestResolveIndirectCallWiresCalleeOnceDiscovered(t *testing.T) {
	mod := fixture.NewModule()

	callee := mod.NewFunc("callee", &ir.Func{Params: []ir.Type{fixture.PtrTo(fixture.I32)}, Results: []ir.Type{}}, []string{"x"})
	cblk := callee.Block()
	cblk.Return(nil)

	main := mod.NewFunc("main", &ir.Func{Results: []ir.Type{}}, nil)
	mblk := main.Block()
	a := mblk.Alloca("a", fixture.I32)
	slot := mblk.Alloca("slot", fixture.PtrTo(fixture.I8))
	mblk.Store(slot, callee.Function())
	fp := mblk.Load("fp", slot)
	mblk.Call("c", fp, []ir.Value{a}, nil)
	mblk.Return(nil)

	s := newSolver(mod, nil, nil)
	s.Generate([]*ir.Function{main.Function()})

	fc := funcCtx{Fn: callee.Function(), Ctx: ctxt.Global()}
	if !s.visited[fc] {
		t.Fatalf("indirect call to callee was never resolved")
	}
}

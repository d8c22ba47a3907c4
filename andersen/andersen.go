// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package andersen implements the inclusion-based, flow-insensitive
// pointer analysis: Andersen's algorithm over the same
// Pointer/MemoryObject model the flow-sensitive tpa package uses, with
// a single whole-program points-to solution per (context, pointer)
// pair rather than one per program point.
//
// Constraint generation (gen.go) walks every reachable (function,
// context) pair once through its copy/addressOf/load/store/offsetAddr
// constraint builders, cloning a
// function's constraints once per distinct calling context a Policy
// produces — the mechanism by which this engine supports 0/1/2-CFA,
// configured the same way tpa's context policy is.
package andersen

import (
	"sync"

	"github.com/eapache/queue"
	"github.com/rs/zerolog"

	"github.com/lotusaa/core/ctxt"
	"github.com/lotusaa/core/extcall"
	"github.com/lotusaa/core/ir"
	"github.com/lotusaa/core/memmodel"
	"github.com/lotusaa/core/pts"
	"github.com/lotusaa/core/rtlog"
	"github.com/lotusaa/core/semicfg"
)

// offsetEdge is one Offset constraint's (dst, k) pair, keyed by source
// pointer in Solver.offsetEdges.
type offsetEdge struct {
	Dst    memmodel.Pointer
	Offset uint64
}

// Solver holds the whole constraint graph and its worklist solution.
// A Solver is built once per analysis run via NewSolver, populated via
// Generate (or the Add* primitives directly, e.g. from a test), and
// solved via Solve.
type Solver struct {
	Prog   ir.Program
	Mem    *memmodel.Manager
	PtrM   *memmodel.PointerManager
	CFGs   *semicfg.Builder
	Policy ctxt.Policy
	Ext    *extcall.Table
	Log    *zerolog.Logger

	mu sync.Mutex

	// env is the whole-program points-to solution for each abstract
	// pointer; store is the single flow-insensitive memory-object
	// solution both share the analysis's notion of "object."
	env   map[memmodel.Pointer]pts.Set
	store map[pts.ObjID]pts.Set

	// Simple (copy) constraints: src's growth copies into every dst.
	copyEdges map[memmodel.Pointer][]memmodel.Pointer
	// Offset constraints: src's growth offsets into every (dst, k).
	offsetEdges map[memmodel.Pointer][]offsetEdge
	// Load constraints (dst ⊇ *src): src's growth to include a new
	// object o both reads store(o) into dst once, and registers dst as
	// an object-load-dependent of o so future store(o) growth keeps
	// flowing into dst.
	loadDst map[memmodel.Pointer][]memmodel.Pointer
	// Store constraints (*ptr ⊇ val): ptr's growth to include a new
	// object o makes val's current and future points-to set flow into
	// store(o); val's own growth is symmetrically propagated via
	// registeredStore (see its doc comment).
	storeVal map[memmodel.Pointer][]memmodel.Pointer

	// objLoadDeps[o] lists every pointer whose Load constraint's src
	// set already includes o, so that future growth of store(o) keeps
	// flowing into it.
	objLoadDeps map[pts.ObjID][]memmodel.Pointer

	// registeredLoad dedups Load's object-dependency registration: each
	// (dst, o) pair is wired into objLoadDeps at most once, even though
	// the owning pointer's points-to set only ever grows and is
	// reprocessed in full on every dirty-queue pass.
	//
	// registeredStore plays the same dedup role for Store, but it also
	// doubles as the reverse index Store's other growth direction
	// needs: when val itself (not ptr) is the pointer that just grew,
	// registeredStore[val]'s keys are exactly the objects ptr's
	// points-to set already covers, i.e. the store(o) entries that need
	// val's newly-added members unioned in.
	registeredLoad  map[memmodel.Pointer]map[pts.ObjID]bool
	registeredStore map[memmodel.Pointer]map[pts.ObjID]bool

	dirty   *queue.Queue
	inDirty map[memmodel.Pointer]bool

	visited map[funcCtx]bool
	fnQueue *queue.Queue

	// retVals interns the synthetic return-value pointer per function
	// (gen.go); indirect accumulates every call site whose callee could
	// not be resolved statically, re-checked each Generate round.
	retVals  map[*ir.Function]*retValue
	indirect []*indirectCall
	reach    []reachCopy
}

type funcCtx struct {
	Fn  *ir.Function
	Ctx ctxt.Context
}

// NewSolver constructs an empty Solver over prog.
func NewSolver(prog ir.Program, policy ctxt.Policy, ext *extcall.Table, log *zerolog.Logger) *Solver {
	return &Solver{
		Prog:            prog,
		Mem:             memmodel.NewManager(prog.DataLayout()),
		PtrM:            memmodel.NewPointerManager(),
		CFGs:            semicfg.NewBuilder(prog.DataLayout()),
		Policy:          policy,
		Ext:             ext,
		Log:             rtlog.Or(log),
		env:             make(map[memmodel.Pointer]pts.Set),
		store:           make(map[pts.ObjID]pts.Set),
		copyEdges:       make(map[memmodel.Pointer][]memmodel.Pointer),
		offsetEdges:     make(map[memmodel.Pointer][]offsetEdge),
		loadDst:         make(map[memmodel.Pointer][]memmodel.Pointer),
		storeVal:        make(map[memmodel.Pointer][]memmodel.Pointer),
		objLoadDeps:     make(map[pts.ObjID][]memmodel.Pointer),
		registeredLoad:  make(map[memmodel.Pointer]map[pts.ObjID]bool),
		registeredStore: make(map[memmodel.Pointer]map[pts.ObjID]bool),
		dirty:           queue.New(),
		inDirty:         make(map[memmodel.Pointer]bool),
		visited:         make(map[funcCtx]bool),
		fnQueue:         queue.New(),
	}
}

// PointsTo returns the solved points-to set for (ctx, v). Solve must
// have been called first; querying before that returns whatever
// partial solution has been computed so far.
func (s *Solver) PointsTo(ctx ctxt.Context, v ir.Value) pts.Set {
	return s.env[s.PtrM.GetOrCreate(ctx, v)]
}

// Alias reports whether (ctx1, v1) and (ctx2, v2)'s solved points-to
// sets intersect (may-alias) under the solved solution.
func (s *Solver) Alias(ctx1 ctxt.Context, v1 ir.Value, ctx2 ctxt.Context, v2 ir.Value) bool {
	return s.PointsTo(ctx1, v1).Intersects(s.PointsTo(ctx2, v2))
}

// markDirty enqueues p for re-propagation if it is not already queued.
func (s *Solver) markDirty(p memmodel.Pointer) {
	if s.inDirty[p] {
		return
	}
	s.inDirty[p] = true
	s.dirty.Add(p)
}

// union grows p's points-to set by delta, marking p dirty if it
// actually changed, and reports whether it changed.
func (s *Solver) union(p memmodel.Pointer, delta pts.Set) bool {
	old := s.env[p]
	merged := old.Union(delta)
	if merged.Equal(old) {
		return false
	}
	s.env[p] = merged
	s.markDirty(p)
	return true
}

// unionStore grows object o's store set by delta, propagating to every
// registered load-dependent pointer if it changed.
func (s *Solver) unionStore(o pts.ObjID, delta pts.Set) {
	old := s.store[o]
	merged := old.Union(delta)
	if merged.Equal(old) {
		return
	}
	s.store[o] = merged
	for _, dst := range s.objLoadDeps[o] {
		s.union(dst, merged)
	}
}

// AddAddrOf adds the constraint pts(dst) ⊇ {obj}.
func (s *Solver) AddAddrOf(dst memmodel.Pointer, obj pts.ObjID) {
	s.union(dst, pts.Singleton(obj))
}

// AddCopy adds the constraint pts(dst) ⊇ pts(src).
func (s *Solver) AddCopy(dst, src memmodel.Pointer) {
	s.copyEdges[src] = append(s.copyEdges[src], dst)
	s.union(dst, s.env[src])
}

// AddOffset adds the constraint pts(dst) ⊇ { offsetMemory(o, k) | o ∈ pts(src) }.
func (s *Solver) AddOffset(dst, src memmodel.Pointer, k uint64) {
	s.offsetEdges[src] = append(s.offsetEdges[src], offsetEdge{Dst: dst, Offset: k})
	s.propagateOffset(dst, s.env[src], k)
}

func (s *Solver) propagateOffset(dst memmodel.Pointer, srcSet pts.Set, k uint64) {
	if srcSet.Size() == 0 {
		return
	}
	result := pts.Empty()
	srcSet.ForEach(func(o pts.ObjID) bool {
		result = result.Insert(s.Mem.OffsetMemory(o, k))
		return true
	})
	s.union(dst, result)
}

// AddLoad adds the constraint pts(dst) ⊇ ⋃_{o ∈ pts(src)} store(o).
func (s *Solver) AddLoad(dst, src memmodel.Pointer) {
	s.loadDst[src] = append(s.loadDst[src], dst)
	s.registerLoad(dst, s.env[src])
}

func (s *Solver) registerLoad(dst memmodel.Pointer, srcSet pts.Set) {
	seen := s.registeredLoad[dst]
	if seen == nil {
		seen = make(map[pts.ObjID]bool)
		s.registeredLoad[dst] = seen
	}
	srcSet.ForEach(func(o pts.ObjID) bool {
		if seen[o] {
			return true
		}
		seen[o] = true
		s.objLoadDeps[o] = append(s.objLoadDeps[o], dst)
		s.union(dst, s.store[o])
		return true
	})
}

// AddStore adds the constraint ⋃_{o ∈ pts(ptr)} store(o) ⊇ pts(val).
func (s *Solver) AddStore(ptr, val memmodel.Pointer) {
	s.storeVal[ptr] = append(s.storeVal[ptr], val)
	s.registerStore(val, s.env[ptr])
}

func (s *Solver) registerStore(val memmodel.Pointer, ptrSet pts.Set) {
	seen := s.registeredStore[val]
	if seen == nil {
		seen = make(map[pts.ObjID]bool)
		s.registeredStore[val] = seen
	}
	ptrSet.ForEach(func(o pts.ObjID) bool {
		if seen[o] {
			return true
		}
		seen[o] = true
		s.unionStore(o, s.env[val])
		return true
	})
}

// Solve drains the dirty-pointer worklist to a fixpoint: whenever a
// pointer's points-to set grows, every constraint reading from it
// (copy, offset, and newly-covered load/store object dependencies) is
// re-applied. Solve is idempotent and may be called again after adding
// more constraints (e.g. Generate discovering a new indirect callee).
func (s *Solver) Solve() {
	for s.dirty.Length() > 0 {
		p := s.dirty.Remove().(memmodel.Pointer)
		s.inDirty[p] = false
		cur := s.env[p]

		for _, dst := range s.copyEdges[p] {
			s.union(dst, cur)
		}
		for _, oe := range s.offsetEdges[p] {
			s.propagateOffset(oe.Dst, cur, oe.Offset)
		}
		for _, dst := range s.loadDst[p] {
			s.registerLoad(dst, cur)
		}
		for _, val := range s.storeVal[p] {
			s.registerStore(val, cur)
		}
		// p may itself be a Store's val operand: its growth must flow
		// into every store(o) that ptr's points-to set already covers,
		// i.e. every object key registeredStore[p] already holds.
		for o := range s.registeredStore[p] {
			s.unionStore(o, cur)
		}
	}
}

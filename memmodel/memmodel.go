// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package memmodel implements the pointer and memory model: abstract
// memory objects, their allocation sites, the pointer
// manager that canonicalizes ir.Value operands before they enter the
// solver, and the memory manager that assigns every object a pts.ObjID.
package memmodel

import (
	"fmt"
	"sync"

	"github.com/lotusaa/core/ctxt"
	"github.com/lotusaa/core/ir"
	"github.com/lotusaa/core/pts"
)

// SiteKind classifies an AllocSite.
type SiteKind int

const (
	SiteGlobal SiteKind = iota
	SiteFunction
	SiteStack
	SiteHeap
	SiteArgv
	SiteEnvp
)

func (k SiteKind) String() string {
	switch k {
	case SiteGlobal:
		return "global"
	case SiteFunction:
		return "function"
	case SiteStack:
		return "stack"
	case SiteHeap:
		return "heap"
	case SiteArgv:
		return "argv"
	case SiteEnvp:
		return "envp"
	default:
		return "other"
	}
}

// AllocSite identifies where a block of memory comes from. It is
// comparable and usable as a map key: two AllocSites are equal iff
// they name the same global/function, or the same (context,
// instruction) pair for a dynamic (stack/heap) allocation.
type AllocSite struct {
	Kind SiteKind
	G    *ir.Global
	Fn   *ir.Function
	Ctx  ctxt.Context
	Inst ir.Instruction // the Alloca or the allocating Call
}

func (s AllocSite) String() string {
	switch s.Kind {
	case SiteGlobal:
		return "global:" + s.G.Name()
	case SiteFunction:
		return "function:" + s.Fn.Name()
	case SiteStack, SiteHeap:
		return fmt.Sprintf("%s@%s:%s", s.Kind, s.Inst, s.Ctx)
	default:
		return s.Kind.String()
	}
}

// MemoryBlock is one allocation: a contiguous region of Layout's
// extent, from which individual MemoryObjects are carved at byte
// offsets. ForceSummary marks a block whose every object is always a
// summary object regardless of layout (heap allocations: a single
// malloc call site represents unboundedly many runtime allocations).
type MemoryBlock struct {
	ID           uint32
	Site         AllocSite
	Layout       *TypeLayout
	ForceSummary bool
}

// MemoryObject is one field-sensitive (or summary) slice of a
// MemoryBlock: the unit that a points-to set actually contains,
// addressed via its interned pts.ObjID.
type MemoryObject struct {
	Block   *MemoryBlock
	Offset  uint64
	Summary bool
}

func (o MemoryObject) String() string {
	if o.Summary {
		return fmt.Sprintf("%s+%d(summary)", o.Block.Site, o.Offset)
	}
	return fmt.Sprintf("%s+%d", o.Block.Site, o.Offset)
}

type objKey struct {
	block  uint32
	offset uint64
}

// Manager owns every MemoryBlock and MemoryObject created during an
// analysis run, and is the single authority mapping pts.ObjID to
// MemoryObject and back. A Manager is not safe for use by more than
// one analysis run, but is safe for concurrent use within one (the
// solver's worklist may touch it from multiple goroutines).
type Manager struct {
	dl ir.DataLayout

	mu           sync.Mutex
	nextBlock    uint32
	blocksBySite map[AllocSite]*MemoryBlock
	objects      []MemoryObject // indices below firstRealObjID reserved
	index        map[objKey]pts.ObjID

	// layoutCache avoids recomputing a TypeLayout for every allocation
	// of the same ir.Type.
	layoutCache map[ir.Type]*TypeLayout
}

// NullObjID and UniversalObjID are the two distinguished singleton
// objects every Manager reserves up front: NullObjID backs the null
// pointer (points to nothing real; dereferencing it is a bug in the
// analyzed program, not in the analysis) and UniversalObjID represents
// "anything," the conservative fallback target for unmodeled effects.
const (
	NullObjID      pts.ObjID = 1
	UniversalObjID pts.ObjID = 2
	firstRealObjID pts.ObjID = 3
)

// NewManager creates a Manager over the given data layout, with the
// Null and Universal singleton objects pre-allocated.
func NewManager(dl ir.DataLayout) *Manager {
	m := &Manager{
		dl:           dl,
		blocksBySite: make(map[AllocSite]*MemoryBlock),
		index:        make(map[objKey]pts.ObjID),
		layoutCache:  make(map[ir.Type]*TypeLayout),
		objects:      make([]MemoryObject, firstRealObjID), // 0 dummy, 1 Null, 2 Universal
	}
	return m
}

// DataLayout returns the module-wide layout this Manager was
// constructed with, for callers (the global pointer analysis
// pre-pass) that need to walk a type tree themselves.
func (m *Manager) DataLayout() ir.DataLayout { return m.dl }

// Object resolves an interned ObjID back to its MemoryObject. Querying
// NullObjID or UniversalObjID returns ok=false: they are not backed by
// a real MemoryObject.
func (m *Manager) Object(id pts.ObjID) (MemoryObject, bool) {
	if id < firstRealObjID {
		return MemoryObject{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if int(id) >= len(m.objects) {
		return MemoryObject{}, false
	}
	return m.objects[id], true
}

func (m *Manager) layoutOf(t ir.Type) *TypeLayout {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.layoutCache[t]; ok {
		return l
	}
	l := newTypeLayout(t, m.dl)
	m.layoutCache[t] = l
	return l
}

func (m *Manager) blockFor(site AllocSite, layout *TypeLayout, forceSummary bool) *MemoryBlock {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.blocksBySite[site]; ok {
		return b
	}
	id := m.nextBlock
	m.nextBlock++
	b := &MemoryBlock{ID: id, Site: site, Layout: layout, ForceSummary: forceSummary}
	m.blocksBySite[site] = b
	return b
}

// objectAt returns (creating if necessary) the interned ObjID for the
// object at (block, offset, summary).
func (m *Manager) objectAt(block *MemoryBlock, offset uint64, summary bool) pts.ObjID {
	k := objKey{block: block.ID, offset: offset}
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.index[k]; ok {
		return id
	}
	id := pts.ObjID(len(m.objects))
	m.objects = append(m.objects, MemoryObject{Block: block, Offset: offset, Summary: summary || block.ForceSummary})
	m.index[k] = id
	return id
}

// base returns the root object (offset 0) of block, creating it on
// first reference. A block whose type puts offset 0 inside an array
// region (an array type, or a leading array field) gets a summary root:
// objectAt keys objects by offset alone, so the root's summary-ness
// must agree with what a later array-normalized OffsetMemory would
// compute for the same offset.
func (m *Manager) base(block *MemoryBlock) pts.ObjID {
	summary := block.ForceSummary
	if block.Layout != nil {
		if _, s, ok := block.Layout.Resolve(0); ok && s {
			summary = true
		}
	}
	return m.objectAt(block, 0, summary)
}

// AllocateGlobal returns the root object for a module-level variable.
// Repeated calls for the same global return the same ObjID.
func (m *Manager) AllocateGlobal(g *ir.Global) pts.ObjID {
	layout := m.layoutOf(g.GType)
	b := m.blockFor(AllocSite{Kind: SiteGlobal, G: g}, layout, false)
	return m.base(b)
}

// AllocateFunction returns the (always singleton, address-taken)
// object standing for a function value.
func (m *Manager) AllocateFunction(fn *ir.Function) pts.ObjID {
	b := m.blockFor(AllocSite{Kind: SiteFunction, Fn: fn}, nil, false)
	return m.base(b)
}

// AllocateStack returns the context-sensitive object for a stack
// allocation (an Alloca instruction) observed under ctx.
func (m *Manager) AllocateStack(ctx ctxt.Context, alloca *ir.Alloca) pts.ObjID {
	layout := m.layoutOf(alloca.Elem)
	site := AllocSite{Kind: SiteStack, Ctx: ctx, Inst: alloca}
	b := m.blockFor(site, layout, false)
	return m.base(b)
}

// AllocateHeap returns the context-sensitive summary object for a
// dynamic allocation call observed under ctx. Heap objects are always
// summary objects: one call site can produce unboundedly many runtime
// blocks, so every analysis write is a weak update.
func (m *Manager) AllocateHeap(ctx ctxt.Context, call ir.CallInstruction, elemType ir.Type) pts.ObjID {
	layout := m.layoutOf(elemType)
	site := AllocSite{Kind: SiteHeap, Ctx: ctx, Inst: call}
	b := m.blockFor(site, layout, true)
	return m.base(b)
}

// AllocateArgv and AllocateEnvp model the process entry point's
// implicit argv/envp parameters as Universal-initialized arrays of
// Universal strings: both are summary objects pointing to Universal.
func (m *Manager) AllocateArgv() pts.ObjID {
	b := m.blockFor(AllocSite{Kind: SiteArgv}, nil, true)
	return m.base(b)
}

func (m *Manager) AllocateEnvp() pts.ObjID {
	b := m.blockFor(AllocSite{Kind: SiteEnvp}, nil, true)
	return m.base(b)
}

// OffsetMemory computes the object reached by stepping d bytes from
// obj, consulting the owning block's TypeLayout: an offset that lands
// inside an array region normalizes modulo the element size and is
// always a summary object; an offset past the end of the block
// collapses to UniversalObjID (the conservative "field out of bounds"
// fallback for pointer arithmetic the layout cannot explain, e.g. a
// reinterpret-casted GEP).
func (m *Manager) OffsetMemory(obj pts.ObjID, d uint64) pts.ObjID {
	if obj == UniversalObjID || obj == NullObjID {
		return UniversalObjID
	}
	o, ok := m.Object(obj)
	if !ok {
		return UniversalObjID
	}
	if d == 0 {
		return obj
	}
	if o.Block.Layout == nil {
		return UniversalObjID
	}
	final, summary, ok := o.Block.Layout.Resolve(o.Offset + d)
	if !ok {
		return UniversalObjID
	}
	return m.objectAt(o.Block, final, summary)
}

// GetReachablePointerObjects returns every object in obj's block that
// is pointer-typed per the block's layout, starting at obj's own
// offset: the set a load through obj might, depending on subsequent
// GEPs, ultimately reach. Used to seed conservative external-call
// effects (see extcall).
func (m *Manager) GetReachablePointerObjects(obj pts.ObjID) []pts.ObjID {
	o, ok := m.Object(obj)
	if !ok || o.Block.Layout == nil {
		return nil
	}
	var out []pts.ObjID
	for _, po := range o.Block.Layout.PointerOffsets() {
		if po.Byte < o.Offset {
			continue
		}
		out = append(out, m.objectAt(o.Block, po.Byte, po.ArrayElem || o.Block.ForceSummary))
	}
	return out
}

// GetCallees resolves an indirect call's target set against the
// program's address-taken functions: candidates is every function
// whose signature matches the call (computed once by the caller and
// passed in, since signature matching is a property of ir.Func, not of
// the memory model). If targets includes UniversalObjID every
// candidate is a possible callee (the conservative fallback);
// otherwise only the candidates whose function-object is actually a
// member of targets are returned.
func (m *Manager) GetCallees(targets pts.Set, candidates []*ir.Function) []*ir.Function {
	if targets.Has(UniversalObjID) {
		return candidates
	}
	var out []*ir.Function
	for _, fn := range candidates {
		b, ok := m.blocksBySite[AllocSite{Kind: SiteFunction, Fn: fn}]
		if !ok {
			continue
		}
		if targets.Has(m.objAtLocked(b, 0)) {
			out = append(out, fn)
		}
	}
	return out
}

// objAtLocked looks up an already-created object without creating one;
// used by GetCallees, which must not allocate a function object for a
// function that was never observed as address-taken.
func (m *Manager) objAtLocked(block *MemoryBlock, offset uint64) pts.ObjID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.index[objKey{block: block.ID, offset: offset}]
	if !ok {
		return 0
	}
	return id
}

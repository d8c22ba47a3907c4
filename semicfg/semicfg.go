// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package semicfg builds the semi-sparse CFG: a per-function graph
// containing exactly the pointer-relevant nodes
// (Entry/Alloc/Copy/Offset/Load/Store/Call/Ret), with control-flow,
// def-use, and RPO-priority edges.
//
// Non-pointer instructions, and instructions whose value is sunk by
// memmodel.Canonicalize (BitCast, AddrSpaceCast, a single-edge PHI,
// IntToPtr), produce no node of their own: they are skipped the way
// gen.go skips non-pointer ssa.Instructions when walking a function's
// blocks.
package semicfg

import (
	"sync"

	"github.com/lotusaa/core/ir"
	"github.com/lotusaa/core/memmodel"
)

// Kind classifies a Node.
type Kind int

const (
	KindEntry Kind = iota
	KindAlloc
	KindCopy
	KindOffset
	KindLoad
	KindStore
	KindCall
	KindRet
)

func (k Kind) String() string {
	switch k {
	case KindEntry:
		return "entry"
	case KindAlloc:
		return "alloc"
	case KindCopy:
		return "copy"
	case KindOffset:
		return "offset"
	case KindLoad:
		return "load"
	case KindStore:
		return "store"
	case KindCall:
		return "call"
	case KindRet:
		return "ret"
	default:
		return "?"
	}
}

// Node is one pointer-relevant program point within a function's CFG.
// Only the fields relevant to Kind are populated.
type Node struct {
	ID   int
	Kind Kind
	Fn   *ir.Function
	Inst ir.Instruction // nil only for KindEntry
	RPO  int

	Dst  ir.Value   // Alloc, Copy, Offset, Load, Call (may be nil)
	Srcs []ir.Value // Copy: the values merged (PHI edges, Select arms)

	Src         ir.Value // Offset, Load, Store(ptr)
	ConstOffset uint64   // Offset
	ArrayLike   bool     // Offset
	IsHeap      bool     // Alloc (always false here; heap alloc is decided at transfer time from extcall)
	AllocType   ir.Type  // Alloc: element type being allocated

	Ptr ir.Value // Store
	Val ir.Value // Store

	Callee ir.Value   // Call
	Args   []ir.Value // Call

	RetVal ir.Value // Ret (nil for a void return)

	// Universal marks a Copy node whose result is unconditionally
	// Universal: the fallback for ExtractValue/ExtractElement/
	// InsertValue/InsertElement/ShuffleVector/VAArg.
	Universal bool

	Succs  []*Node
	Preds  []*Node
	DefUse []*Node // nodes that consume this node's Dst value
}

// String renders a short, diagnostic-only label for the node.
func (n *Node) String() string {
	if n.Inst != nil {
		return n.Fn.Name() + ":" + n.Inst.String()
	}
	return n.Fn.Name() + ":" + n.Kind.String()
}

// CFG is one function's semi-sparse graph.
type CFG struct {
	Fn    *ir.Function
	Entry *Node
	Nodes []*Node
}

// NodeFor returns the Node built from inst, if inst produced one (see
// the package doc for which instructions are skipped).
func (c *CFG) NodeFor(inst ir.Instruction) (*Node, bool) {
	for _, n := range c.Nodes {
		if n.Inst == inst {
			return n, true
		}
	}
	return nil, false
}

// Builder lazily constructs and caches one CFG per function.
type Builder struct {
	dl ir.DataLayout

	mu    sync.Mutex
	cache map[*ir.Function]*CFG
}

// NewBuilder creates a Builder over the given module-wide DataLayout.
func NewBuilder(dl ir.DataLayout) *Builder {
	return &Builder{dl: dl, cache: make(map[*ir.Function]*CFG)}
}

// Get returns fn's CFG, building it on first reference.
func (b *Builder) Get(fn *ir.Function) *CFG {
	b.mu.Lock()
	if cfg, ok := b.cache[fn]; ok {
		b.mu.Unlock()
		return cfg
	}
	b.mu.Unlock()

	cfg := build(fn)

	b.mu.Lock()
	b.cache[fn] = cfg
	b.mu.Unlock()
	return cfg
}

type builderState struct {
	fn       *ir.Function
	nextID   int
	nodes    []*Node
	byBlock  map[*ir.BasicBlock][]*Node
	defOf    map[ir.Value]*Node
	entryRPO map[*ir.BasicBlock]int
}

func build(fn *ir.Function) *CFG {
	st := &builderState{
		fn:      fn,
		byBlock: make(map[*ir.BasicBlock][]*Node),
		defOf:   make(map[ir.Value]*Node),
	}

	entry := st.newNode(KindEntry, nil)
	entry.Dst = nil
	st.nodes = append(st.nodes, entry)

	if fn.IsExternal() {
		return &CFG{Fn: fn, Entry: entry, Nodes: st.nodes}
	}

	for _, bb := range fn.Blocks {
		for _, inst := range bb.Instrs {
			if n := st.emit(inst); n != nil {
				st.byBlock[bb] = append(st.byBlock[bb], n)
				st.nodes = append(st.nodes, n)
			}
		}
	}

	st.wireControlEdges(entry)
	st.wireDefUse()
	st.assignRPO(entry)

	return &CFG{Fn: fn, Entry: entry, Nodes: st.nodes}
}

func (st *builderState) newNode(k Kind, inst ir.Instruction) *Node {
	n := &Node{ID: st.nextID, Kind: k, Fn: st.fn, Inst: inst}
	st.nextID++
	return n
}

func canon(v ir.Value) ir.Value {
	if v == nil {
		return nil
	}
	return memmodel.Canonicalize(v)
}

func canonAll(vs []ir.Value) []ir.Value {
	out := make([]ir.Value, len(vs))
	for i, v := range vs {
		out[i] = canon(v)
	}
	return out
}

// emit returns the Node for inst, or nil if inst is not pointer-
// relevant (including instructions whose value canonicalization sinks
// entirely, per the package doc).
func (st *builderState) emit(inst ir.Instruction) *Node {
	switch x := inst.(type) {
	case *ir.Alloca:
		n := st.newNode(KindAlloc, inst)
		n.Dst = x
		n.AllocType = x.Elem
		st.defOf[x] = n
		return n
	case *ir.Load:
		n := st.newNode(KindLoad, inst)
		n.Dst, n.Src = x, canon(x.Addr)
		st.defOf[x] = n
		return n
	case *ir.Store:
		n := st.newNode(KindStore, inst)
		n.Ptr, n.Val = canon(x.Addr), canon(x.Val)
		return n
	case *ir.GEP:
		n := st.newNode(KindOffset, inst)
		n.Dst, n.Src, n.ConstOffset, n.ArrayLike = x, canon(x.Base), x.ConstOffset, x.ArrayLike
		st.defOf[x] = n
		return n
	case *ir.PHI:
		if len(x.Edges) <= 1 {
			// Single-incoming PHIs are sunk by Canonicalize at every
			// use site; no node needed for the merge itself.
			return nil
		}
		if !ir.IsPointer(x.Type()) {
			return nil
		}
		n := st.newNode(KindCopy, inst)
		n.Dst, n.Srcs = x, canonAll(x.Edges)
		st.defOf[x] = n
		return n
	case *ir.Select:
		if !ir.IsPointer(x.Type()) {
			return nil
		}
		n := st.newNode(KindCopy, inst)
		n.Dst, n.Srcs = x, []ir.Value{canon(x.X), canon(x.Y)}
		st.defOf[x] = n
		return n
	case *ir.Call:
		n := st.newNode(KindCall, inst)
		n.Dst, n.Callee, n.Args = x.Dst(), canon(x.FnVal), canonAll(x.ArgVals)
		if n.Dst != nil {
			st.defOf[x] = n
		}
		return n
	case *ir.Invoke:
		n := st.newNode(KindCall, inst)
		n.Dst, n.Callee, n.Args = x.Dst(), canon(x.FnVal), canonAll(x.ArgVals)
		if n.Dst != nil {
			st.defOf[x] = n
		}
		return n
	case *ir.Return:
		n := st.newNode(KindRet, inst)
		if x.Result != nil {
			n.RetVal = canon(x.Result)
		}
		return n
	case *ir.ExtractValue, *ir.ExtractElement, *ir.InsertValue, *ir.InsertElement, *ir.ShuffleVector, *ir.VAArg:
		v := inst.(ir.Value)
		if !ir.IsPointer(v.Type()) {
			return nil
		}
		n := st.newNode(KindCopy, inst)
		n.Dst, n.Universal = v, true
		st.defOf[v] = n
		return n
	default:
		// BitCast, AddrSpaceCast, IntToPtr, PtrToInt, Unreachable: no
		// node of their own (see package doc).
		return nil
	}
}

// wireControlEdges connects Entry to the first relevant node(s) of the
// function's entry block, and chains/links relevant nodes across
// blocks, skipping over blocks with no relevant nodes of their own.
func (st *builderState) wireControlEdges(entry *Node) {
	if len(st.fn.Blocks) == 0 {
		return
	}
	memo := make(map[*ir.BasicBlock][]*Node)
	visiting := make(map[*ir.BasicBlock]bool)

	var heads func(*ir.BasicBlock) []*Node
	heads = func(bb *ir.BasicBlock) []*Node {
		if h, ok := memo[bb]; ok {
			return h
		}
		if visiting[bb] {
			return nil // empty-block cycle; no relevant node reachable this way
		}
		visiting[bb] = true
		defer delete(visiting, bb)

		if ns := st.byBlock[bb]; len(ns) > 0 {
			memo[bb] = ns[:1]
			return ns[:1]
		}
		var out []*Node
		for _, s := range bb.Succs {
			out = append(out, heads(s)...)
		}
		memo[bb] = out
		return out
	}

	link := func(from *Node, to []*Node) {
		for _, t := range to {
			from.Succs = append(from.Succs, t)
			t.Preds = append(t.Preds, from)
		}
	}

	link(entry, heads(st.fn.Blocks[0]))

	for _, bb := range st.fn.Blocks {
		ns := st.byBlock[bb]
		for i := 0; i+1 < len(ns); i++ {
			link(ns[i], []*Node{ns[i+1]})
		}
		if len(ns) == 0 {
			continue
		}
		last := ns[len(ns)-1]
		if last.Kind == KindRet {
			continue // a return has no successors
		}
		for _, s := range bb.Succs {
			link(last, heads(s))
		}
	}
}

// wireDefUse connects each node that defines a value to every node
// that reads it as an operand, after canonicalization.
func (st *builderState) wireDefUse() {
	addUse := func(v ir.Value, user *Node) {
		if v == nil {
			return
		}
		if def, ok := st.defOf[v]; ok && def != user {
			def.DefUse = append(def.DefUse, user)
		}
	}
	for _, n := range st.nodes {
		switch n.Kind {
		case KindOffset, KindLoad:
			addUse(n.Src, n)
		case KindStore:
			addUse(n.Ptr, n)
			addUse(n.Val, n)
		case KindCopy:
			for _, s := range n.Srcs {
				addUse(s, n)
			}
		case KindCall:
			addUse(n.Callee, n)
			for _, a := range n.Args {
				addUse(a, n)
			}
		case KindRet:
			addUse(n.RetVal, n)
		}
	}
}

// assignRPO computes a reverse-postorder numbering over the control
// graph and stamps every node's RPO field, used by the propagator to
// order its inner per-function worklist.
func (st *builderState) assignRPO(entry *Node) {
	var order []*Node
	visited := make(map[*Node]bool)
	var post func(n *Node)
	post = func(n *Node) {
		if visited[n] {
			return
		}
		visited[n] = true
		for _, s := range n.Succs {
			post(s)
		}
		order = append(order, n)
	}
	post(entry)
	// order is postorder; reverse it for RPO and assign ascending
	// priorities. Any node unreachable from Entry (shouldn't normally
	// happen) keeps RPO 0 as a conservative default.
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	for i, n := range order {
		n.RPO = i
	}
}

// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tpa

import (
	"github.com/lotusaa/core/ctxt"
	"github.com/lotusaa/core/flowstate"
	"github.com/lotusaa/core/ir"
	"github.com/lotusaa/core/memmodel"
	"github.com/lotusaa/core/pts"
)

// initialize runs the global pointer analysis pre-pass: it allocates
// one memory object per global and per function, walks every global's
// initializer into the module's initial Store,
// seeds Env's two singleton pointers, and enqueues the entry
// function(s)' Entry program point.
func (e *Engine) initialize() {
	e.env.StrongUpdate(memmodel.NullPointer(), pts.Singleton(memmodel.NullObjID))
	e.env.StrongUpdate(memmodel.UniversalPointer(), pts.Singleton(memmodel.UniversalObjID))

	initialStore := flowstate.NewStore()

	for _, fn := range e.Prog.Functions() {
		obj := e.Mem.AllocateFunction(fn)
		e.globalRoots = append(e.globalRoots, obj)
		// A function used as a first-class value (taken address, stored
		// into a function pointer, passed as a callback) resolves through
		// Env like any other global: seed it once, unconditionally.
		e.env.StrongUpdate(e.PtrM.GetOrCreate(ctxt.Global(), fn), pts.Singleton(obj))
	}

	for _, g := range e.Prog.Globals() {
		root := e.Mem.AllocateGlobal(g)
		e.globalRoots = append(e.globalRoots, root)
		initialStore = e.seedGlobal(initialStore, root, g)
	}

	argv := e.Mem.AllocateArgv()
	envp := e.Mem.AllocateEnvp()
	e.globalRoots = append(e.globalRoots, argv, envp)
	initialStore = initialStore.WeakUpdate(argv, pts.Singleton(memmodel.UniversalObjID))
	initialStore = initialStore.WeakUpdate(envp, pts.Singleton(memmodel.UniversalObjID))

	for _, fn := range e.entryFunctions() {
		cfg := e.CFGs.Get(fn)
		entryCtx := ctxt.Global()
		for i, p := range fn.Params {
			if !ir.IsPointer(p.Type()) {
				continue
			}
			switch i {
			case 1:
				e.env.StrongUpdate(e.PtrM.GetOrCreate(entryCtx, p), pts.Singleton(argv))
			case 2:
				e.env.StrongUpdate(e.PtrM.GetOrCreate(entryCtx, p), pts.Singleton(envp))
			}
		}
		entryPP := progPoint(entryCtx, cfg.Entry)
		e.memo[entryPP] = initialStore
		e.wl.push(entryPP)
	}
}

// entryFunctions returns the functions to root the analysis at. A
// function named "main" is the conventional program entry point; in
// its absence (a library with no single entry, the common case for
// this whole-program analyzer's typical input) every non-external,
// non-synthetic function is treated as a conservative root, the same
// way a library-mode whole-program analysis has to assume any exported
// function may be called by code outside the module.
func (e *Engine) entryFunctions() []*ir.Function {
	if fn, ok := e.Prog.FunctionByName("main"); ok {
		return []*ir.Function{fn}
	}
	var roots []*ir.Function
	for _, fn := range e.Prog.Functions() {
		if fn.IsExternal() || fn.Synthetic != "" {
			continue
		}
		roots = append(roots, fn)
	}
	return roots
}

// seedGlobal walks g's initializer (or, if g is external, marks every
// pointer-typed offset in its layout Universal) into store.
func (e *Engine) seedGlobal(store flowstate.Store, root pts.ObjID, g *ir.Global) flowstate.Store {
	if g.Init == nil {
		for _, obj := range e.Mem.GetReachablePointerObjects(root) {
			store = store.WeakUpdate(obj, pts.Singleton(memmodel.UniversalObjID))
		}
		return store
	}
	return e.seedInit(store, root, 0, g.GType, g.Init)
}

func (e *Engine) seedInit(store flowstate.Store, root pts.ObjID, offset uint64, t ir.Type, in ir.Initializer) flowstate.Store {
	switch x := in.(type) {
	case ir.ScalarInit:
		target := e.Mem.OffsetMemory(root, offset)
		var val pts.Set
		switch {
		case x.Unknown:
			val = pts.Singleton(memmodel.UniversalObjID)
		case x.Target == nil:
			val = pts.Singleton(memmodel.NullObjID)
		default:
			tgtRoot := e.Mem.AllocateGlobal(x.Target)
			val = pts.Singleton(e.Mem.OffsetMemory(tgtRoot, x.Offset))
		}
		return store.WeakUpdate(target, val)

	case ir.StructInit:
		st, ok := t.(*ir.Struct)
		if !ok {
			return store
		}
		dl := e.Mem.DataLayout()
		for i, f := range x.Fields {
			if i >= len(st.Fields) {
				break
			}
			foff := dl.FieldOffset(st, i)
			store = e.seedInit(store, root, offset+foff, st.Fields[i], f)
		}
		return store

	case ir.ArrayInit:
		arr, ok := t.(*ir.Array)
		if !ok {
			return store
		}
		// Arrays are field-insensitive: every element folds into the one
		// summary slot the layout already collapses to.
		return e.seedInit(store, root, offset, arr.Elem, x.Elem)

	default:
		return store
	}
}

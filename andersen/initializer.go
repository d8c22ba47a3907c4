// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package andersen

import (
	"github.com/lotusaa/core/ctxt"
	"github.com/lotusaa/core/ir"
	"github.com/lotusaa/core/memmodel"
	"github.com/lotusaa/core/pts"
)

// seedGlobals runs the same global pre-pass tpa.Engine.initialize
// does, adapted to Andersen's single flat store: allocate
// one memory object per global and per function, walk every global's
// initializer (or, for an external global, mark its reachable pointer
// fields Universal) into the initial store, and seed every function's
// own pointer with the singleton object standing for "this function's
// address," so a function used as a first-class value resolves
// through env exactly like any other global.
func (s *Solver) seedGlobals() {
	for _, fn := range s.Prog.Functions() {
		obj := s.Mem.AllocateFunction(fn)
		s.AddAddrOf(s.ptrOf(ctxt.Global(), fn), obj)
	}
	for _, g := range s.Prog.Globals() {
		root := s.Mem.AllocateGlobal(g)
		s.seedGlobal(root, g)
	}
}

func (s *Solver) seedGlobal(root pts.ObjID, g *ir.Global) {
	if g.Init == nil {
		for _, obj := range s.Mem.GetReachablePointerObjects(root) {
			s.unionStore(obj, pts.Singleton(memmodel.UniversalObjID))
		}
		return
	}
	s.seedInit(root, 0, g.GType, g.Init)
}

func (s *Solver) seedInit(root pts.ObjID, offset uint64, t ir.Type, in ir.Initializer) {
	switch x := in.(type) {
	case ir.ScalarInit:
		target := s.Mem.OffsetMemory(root, offset)
		var val pts.Set
		switch {
		case x.Unknown:
			val = pts.Singleton(memmodel.UniversalObjID)
		case x.Target == nil:
			val = pts.Singleton(memmodel.NullObjID)
		default:
			tgtRoot := s.Mem.AllocateGlobal(x.Target)
			val = pts.Singleton(s.Mem.OffsetMemory(tgtRoot, x.Offset))
		}
		s.unionStore(target, val)

	case ir.StructInit:
		st, ok := t.(*ir.Struct)
		if !ok {
			return
		}
		dl := s.Mem.DataLayout()
		for i, f := range x.Fields {
			if i >= len(st.Fields) {
				break
			}
			s.seedInit(root, offset+dl.FieldOffset(st, i), st.Fields[i], f)
		}

	case ir.ArrayInit:
		arr, ok := t.(*ir.Array)
		if !ok {
			return
		}
		// Field-insensitive: every element folds into the layout's one
		// summary slot, the same collapse OffsetMemory already applies.
		s.seedInit(root, offset, arr.Elem, x.Elem)
	}
}

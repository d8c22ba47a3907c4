// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import "github.com/lotusaa/core/ir"

// The IR loader is an external collaborator: nothing in
// this module parses a real C/C++ module into ir.Program. ir/fixture
// exists for that purpose in tests but is explicitly not meant to be
// imported outside them, so when this driver is run without a real
// loader wired in, it falls back to a small hand-built ir.Program just
// large enough to exercise every query path end to end: an external
// allocator, a stack slot holding its result, and a load reading it
// back.

// demoLayout is a DataLayout sized only for the demo program's own
// types (one Basic scalar, i8, and the Pointers built from it); a real
// deployment gets its DataLayout from the same external loader that
// supplies the Program.
type demoLayout struct{}

func (demoLayout) PointerSize() uint64 { return 8 }

func (demoLayout) SizeOf(t ir.Type) uint64 {
	if ir.IsPointer(t) {
		return 8
	}
	if b, ok := t.(*ir.Basic); ok {
		return (b.Bits + 7) / 8
	}
	return 8
}

func (demoLayout) FieldOffset(*ir.Struct, int) uint64 { return 0 }

func (demoLayout) PointerOffsetsIn(t ir.Type) []ir.PointerOffset {
	if ir.IsPointer(t) {
		return []ir.PointerOffset{{Byte: 0}}
	}
	return nil
}

type demoProgram struct {
	fns []*ir.Function
}

func (p *demoProgram) Functions() []*ir.Function { return p.fns }
func (p *demoProgram) Globals() []*ir.Global     { return nil }
func (p *demoProgram) DataLayout() ir.DataLayout { return demoLayout{} }

func (p *demoProgram) FunctionByName(name string) (*ir.Function, bool) {
	for _, fn := range p.fns {
		if fn.Name() == name {
			return fn, true
		}
	}
	return nil, false
}

// buildDemoProgram constructs:
//
//	declare i8* @malloc()
//
//	define i8* @main() {
//	  a = alloca i8*
//	  h = call malloc()
//	  store h, a
//	  l = load a
//	  ret l
//	}
func buildDemoProgram() *demoProgram {
	i8 := &ir.Basic{Name: "i8", Bits: 8}
	i8ptr := &ir.Pointer{Elem: i8}

	mallocFn := &ir.Function{FnName: "malloc", Sig: &ir.Func{Results: []ir.Type{i8ptr}}}

	mainFn := &ir.Function{FnName: "main", Sig: &ir.Func{Results: []ir.Type{i8ptr}}}
	blk := &ir.BasicBlock{Index: 0, Fn: mainFn}
	mainFn.Blocks = []*ir.BasicBlock{blk}

	a := &ir.Alloca{Elem: i8ptr}
	a.Blk, a.Nm, a.Typ = blk, "a", &ir.Pointer{Elem: i8ptr}

	h := &ir.Call{FnVal: mallocFn, HasDst: true}
	h.Blk, h.Nm, h.Typ = blk, "h", i8ptr

	st := &ir.Store{Addr: a, Val: h}
	st.Blk = blk

	l := &ir.Load{Addr: a}
	l.Blk, l.Nm, l.Typ = blk, "l", i8ptr

	ret := &ir.Return{Result: l}
	ret.Blk = blk

	blk.Instrs = []ir.Instruction{a, h, st, l, ret}

	return &demoProgram{fns: []*ir.Function{mallocFn, mainFn}}
}

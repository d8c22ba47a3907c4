// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gvfa

import (
	"github.com/lotusaa/core/ctxt"
	"github.com/lotusaa/core/extcall"
	"github.com/lotusaa/core/ir"
	"github.com/lotusaa/core/memmodel"
	"github.com/lotusaa/core/semicfg"
)

// SourcesFromAllocSites walks every reachable function's semi-sparse
// CFG and returns one Source per allocation site: every KindAlloc node
// (a stack Alloca) and every KindCall node whose callee resolves, via
// ext, to an effect table entry with an AllocEffect (a heap allocator
// like malloc). Each is assigned the next free bit in order, so callers
// that pass the result straight to NewFast get a distinct mask bit per
// site up to the Fast engine's 32-source limit; truncation
// past 32 sources is the caller's concern, not this helper's.
//
// This is the "taint from every allocation site" query shape the
// null-deref and use-after-free checkers start from.
func SourcesFromAllocSites(fns []*ir.Function, cfgs *semicfg.Builder, ext *extcall.Table, ptrM *memmodel.PointerManager) []Source {
	var out []Source
	var bit uint
	for _, fn := range fns {
		if fn.IsExternal() {
			continue
		}
		cfg := cfgs.Get(fn)
		for _, n := range cfg.Nodes {
			switch n.Kind {
			case semicfg.KindAlloc:
				out = append(out, Source{Node: ptrM.GetOrCreate(ctxt.Global(), n.Dst), Bit: bit})
				bit++
			case semicfg.KindCall:
				if n.Dst == nil || n.Callee == nil {
					continue
				}
				calleeFn, ok := n.Callee.(*ir.Function)
				if !ok {
					continue
				}
				effects, ok := ext.Lookup(calleeFn.Name())
				if !ok {
					continue
				}
				for _, eff := range effects {
					if _, ok := eff.(extcall.AllocEffect); ok {
						out = append(out, Source{Node: ptrM.GetOrCreate(ctxt.Global(), n.Dst), Bit: bit})
						bit++
						break
					}
				}
			}
		}
	}
	return out
}

// SinksFromDeref walks every reachable function's CFG and returns the
// pointer operand of every Load and Store node — the set of values a
// null-pointer or use-after-free checker would want as GVFA sinks,
// since both a KindLoad and a KindStore dereference their Src/Ptr
// operand.
func SinksFromDeref(fns []*ir.Function, cfgs *semicfg.Builder, ptrM *memmodel.PointerManager) []memmodel.Pointer {
	var out []memmodel.Pointer
	for _, fn := range fns {
		if fn.IsExternal() {
			continue
		}
		cfg := cfgs.Get(fn)
		for _, n := range cfg.Nodes {
			switch n.Kind {
			case semicfg.KindLoad:
				if n.Src != nil {
					out = append(out, ptrM.GetOrCreate(ctxt.Global(), n.Src))
				}
			case semicfg.KindStore:
				if n.Ptr != nil {
					out = append(out, ptrM.GetOrCreate(ctxt.Global(), n.Ptr))
				}
			}
		}
	}
	return out
}

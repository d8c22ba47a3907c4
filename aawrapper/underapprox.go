// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package aawrapper

import (
	"github.com/lotusaa/core/ctxt"
	"github.com/lotusaa/core/ir"
)

// unionFind is a standard union-by-rank, path-compressed disjoint-set
// forest over ir.Value identity, used to compute the congruence
// classes underApproxBackend reports as must-alias.
type unionFind struct {
	parent map[ir.Value]ir.Value
	rank   map[ir.Value]int
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[ir.Value]ir.Value), rank: make(map[ir.Value]int)}
}

func (u *unionFind) find(v ir.Value) ir.Value {
	p, ok := u.parent[v]
	if !ok {
		u.parent[v] = v
		return v
	}
	if p == v {
		return v
	}
	root := u.find(p)
	u.parent[v] = root
	return root
}

func (u *unionFind) union(a, b ir.Value) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}

func (u *unionFind) same(a, b ir.Value) bool { return u.find(a) == u.find(b) }

// gepKey groups constant-offset GEPs that share a (congruence-class)
// base and an identical byte offset: the "identical constant-offset
// GEP" atomic rule.
type gepKey struct {
	base   ir.Value
	offset uint64
}

// buildCongruence computes fn's must-alias congruence classes: the
// atomic rules (no-op casts, zero-index GEP, inttoptr/ptrtoint
// round-trip, trivial PHI/Select) are seeded in one pass, then
// identical-offset GEPs and PHI/Select nodes whose operands only
// became congruent as a result of seeding are folded in by repeated
// passes until nothing more merges.
func buildCongruence(fn *ir.Function) *unionFind {
	uf := newUnionFind()
	var geps []*ir.GEP
	var phis []*ir.PHI
	var selects []*ir.Select

	for _, blk := range fn.Blocks {
		for _, inst := range blk.Instrs {
			switch v := inst.(type) {
			case *ir.BitCast:
				uf.union(v, v.Base)
			case *ir.AddrSpaceCast:
				uf.union(v, v.Base)
			case *ir.GEP:
				geps = append(geps, v)
				if !v.ArrayLike && v.ConstOffset == 0 {
					uf.union(v, v.Base)
				}
				// Derived pointers that share an alloca or global underlying
				// object are equated regardless of offset.
				if u := underlyingObject(v.Base); isAllocaOrGlobal(u) {
					uf.union(v, u)
				}
			case *ir.IntToPtr:
				if p2i, ok := v.Base.(*ir.PtrToInt); ok {
					uf.union(v, p2i.Base)
				}
			case *ir.PHI:
				phis = append(phis, v)
				if len(v.Edges) == 1 {
					uf.union(v, v.Edges[0])
				}
			case *ir.Select:
				selects = append(selects, v)
				if v.X == v.Y {
					uf.union(v, v.X)
				}
			}
		}
	}

	const maxPasses = 8
	for pass := 0; pass < maxPasses; pass++ {
		changed := false

		groups := make(map[gepKey]*ir.GEP)
		for _, v := range geps {
			if v.ArrayLike {
				continue
			}
			key := gepKey{base: uf.find(v.Base), offset: v.ConstOffset}
			if rep, ok := groups[key]; ok {
				if !uf.same(v, rep) {
					uf.union(v, rep)
					changed = true
				}
			} else {
				groups[key] = v
			}
		}

		for _, v := range phis {
			if len(v.Edges) == 0 {
				continue
			}
			first := v.Edges[0]
			allSame := true
			for _, e := range v.Edges[1:] {
				if !uf.same(e, first) {
					allSame = false
					break
				}
			}
			if allSame && !uf.same(v, first) {
				uf.union(v, first)
				changed = true
			}
		}

		for _, v := range selects {
			if uf.same(v.X, v.Y) && !uf.same(v, v.X) {
				uf.union(v, v.X)
				changed = true
			}
		}

		if !changed {
			break
		}
	}

	return uf
}

// underApproxBackend is the union-find congruence-closure backend:
// sound only for MustAlias (never for NoAlias), computed independently
// per function since the atomic rules it seeds from are all purely
// intra-procedural.
type underApproxBackend struct {
	ufs map[*ir.Function]*unionFind
}

func newUnderApproxBackend(prog ir.Program) *underApproxBackend {
	b := &underApproxBackend{ufs: make(map[*ir.Function]*unionFind)}
	for _, fn := range prog.Functions() {
		if fn.IsExternal() {
			continue
		}
		b.ufs[fn] = buildCongruence(fn)
	}
	return b
}

// underlyingObject strips casts and field/element offsets down to the
// base value a derived pointer chain starts from.
func underlyingObject(v ir.Value) ir.Value {
	for {
		switch x := v.(type) {
		case *ir.BitCast:
			v = x.Base
		case *ir.AddrSpaceCast:
			v = x.Base
		case *ir.GEP:
			v = x.Base
		default:
			return v
		}
	}
}

func isAllocaOrGlobal(v ir.Value) bool {
	switch v.(type) {
	case *ir.Alloca, *ir.Global:
		return true
	}
	return false
}

func valueFunc(v ir.Value) (*ir.Function, bool) {
	inst, ok := v.(ir.Instruction)
	if !ok {
		return nil, false
	}
	blk := inst.Block()
	if blk == nil {
		return nil, false
	}
	return blk.Fn, true
}

func isNullConst(v ir.Value) bool {
	c, ok := v.(*ir.Const)
	return ok && c.IsNull
}

// query never returns NoAlias: an under-approximate backend asserts
// must-alias facts only, and stays silent (MayAlias) whenever it
// cannot prove one.
func (b *underApproxBackend) query(_ ctxt.Context, v1 ir.Value, _ ctxt.Context, v2 ir.Value) AliasResult {
	if v1 == v2 {
		return MustAlias
	}
	if isNullConst(v1) && isNullConst(v2) {
		return MustAlias
	}
	fn1, ok1 := valueFunc(v1)
	fn2, ok2 := valueFunc(v2)
	if !ok1 || !ok2 || fn1 != fn2 {
		return MayAlias
	}
	uf := b.ufs[fn1]
	if uf == nil {
		return MayAlias
	}
	if uf.same(v1, v2) {
		return MustAlias
	}
	return MayAlias
}

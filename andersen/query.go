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

// AliasResult is the three-valued answer the Andersen backend gives:
// MustAlias only when both operands' solved sets are singleton and
// equal, NoAlias when the sets are disjoint, MayAlias otherwise.
type AliasResult int

const (
	NoAlias AliasResult = iota
	MayAlias
	MustAlias
)

func (r AliasResult) String() string {
	switch r {
	case NoAlias:
		return "no-alias"
	case MustAlias:
		return "must-alias"
	default:
		return "may-alias"
	}
}

// Query reports how (ctx1, v1) and (ctx2, v2)'s solved points-to sets
// relate.
func (s *Solver) Query(ctx1 ctxt.Context, v1 ir.Value, ctx2 ctxt.Context, v2 ir.Value) AliasResult {
	a := s.PointsTo(ctx1, v1)
	b := s.PointsTo(ctx2, v2)
	if !a.Intersects(b) {
		return NoAlias
	}
	if a.Size() == 1 && a.Equal(b) {
		return MustAlias
	}
	return MayAlias
}

// PointsToSlice returns v's solved points-to set as a sorted slice of
// object IDs, a convenience for callers (tests, the CLI driver) that
// want to print or compare it without importing pts directly.
func (s *Solver) PointsToSlice(ctx ctxt.Context, v ir.Value) []pts.ObjID {
	return s.PointsTo(ctx, v).Slice()
}

// Snapshot returns every abstract pointer this Solver has ever created
// a points-to entry for, paired with its current solution. Used by
// aawrapper's getAliasSet, which otherwise has no way to enumerate "all
// values known to this backend."
func (s *Solver) Snapshot() map[memmodel.Pointer]pts.Set {
	out := make(map[memmodel.Pointer]pts.Set, len(s.env))
	for p, set := range s.env {
		out[p] = set
	}
	return out
}

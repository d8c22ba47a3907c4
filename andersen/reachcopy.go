// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package andersen

// This file implements the one reachable()-on-both-sides external
// effect the extcall table format supports: a memcpy-shaped COPY
// whose src and dst are both "every pointer-typed sub-object reachable
// from this argument". Unlike a plain Load/Store
// constraint, neither side is a single object, so growth of either the
// source or destination pointer (or of the Store at any object in
// either object's reach) can change the result; reapplyReachCopies is
// called once per Generate/Solve round until a round changes nothing,
// the same fixpoint-by-rounds shape resolveIndirectCalls uses for
// dynamically discovered callees.
import (
	"github.com/lotusaa/core/memmodel"
	"github.com/lotusaa/core/pts"
)

type reachCopy struct {
	Dst, Src memmodel.Pointer
}

// AddReachableCopy registers the constraint "every pointer-typed
// sub-object reachable from *dst gets the union of every pointer-typed
// sub-object reachable from *src," applying it once immediately.
func (s *Solver) AddReachableCopy(dst, src memmodel.Pointer) {
	s.reach = append(s.reach, reachCopy{Dst: dst, Src: src})
	s.applyReachCopy(len(s.reach) - 1)
}

func (s *Solver) applyReachCopy(i int) bool {
	rc := s.reach[i]
	srcReach := pts.Empty()
	s.env[rc.Src].ForEach(func(o pts.ObjID) bool {
		for _, ro := range s.Mem.GetReachablePointerObjects(o) {
			srcReach = srcReach.Union(s.store[ro])
		}
		return true
	})
	if srcReach.Size() == 0 {
		return false
	}
	changed := false
	s.env[rc.Dst].ForEach(func(o pts.ObjID) bool {
		for _, ro := range s.Mem.GetReachablePointerObjects(o) {
			before := s.store[ro]
			s.unionStore(ro, srcReach)
			if !s.store[ro].Equal(before) {
				changed = true
			}
		}
		return true
	})
	return changed
}

// reapplyReachCopies re-runs every registered reachable copy and
// reports whether any of them changed the store, the signal Generate
// uses to decide whether another round is needed.
func (s *Solver) reapplyReachCopies() bool {
	changed := false
	for i := range s.reach {
		if s.applyReachCopy(i) {
			changed = true
		}
	}
	return changed
}

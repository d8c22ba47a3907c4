// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package flowstate implements the Environment and Store: Env maps
// abstract pointers to points-to sets and only ever grows; Store maps
// memory objects to points-to sets and is a value-typed snapshot
// copied at each program point.
package flowstate

import (
	"sync"

	"github.com/lotusaa/core/memmodel"
	"github.com/lotusaa/core/pts"
)

// Env is the shared, mutable, monotonically growing map from abstract
// pointer to points-to set. A single Env is shared by every program
// point in one analysis run and is only ever updated monotonically.
type Env struct {
	mu sync.RWMutex
	m  map[memmodel.Pointer]pts.Set
}

// NewEnv creates an empty Env.
func NewEnv() *Env {
	return &Env{m: make(map[memmodel.Pointer]pts.Set)}
}

// Get returns the current points-to set for p (the empty set if p has
// never been written).
func (e *Env) Get(p memmodel.Pointer) pts.Set {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.m[p]
}

// WeakUpdate assigns Env[p] := Env[p] ∪ s and reports whether Env[p]
// changed as a result (the propagator only re-enqueues successors when
// this is true).
func (e *Env) WeakUpdate(p memmodel.Pointer, s pts.Set) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	old := e.m[p]
	merged := old.Union(s)
	if merged.Equal(old) {
		return false
	}
	e.m[p] = merged
	return true
}

// StrongUpdate assigns Env[p] := s outright. Callers must only ever
// use this on SSA variables, which by construction have a single
// definition, so overwriting rather than unioning cannot lose
// information a later pass needs.
func (e *Env) StrongUpdate(p memmodel.Pointer, s pts.Set) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	old := e.m[p]
	if old.Equal(s) {
		return false
	}
	e.m[p] = s
	return true
}

// Snapshot returns every (pointer, set) pair currently recorded, for
// diagnostics and queries; it does not observe future updates.
func (e *Env) Snapshot() map[memmodel.Pointer]pts.Set {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[memmodel.Pointer]pts.Set, len(e.m))
	for k, v := range e.m {
		out[k] = v
	}
	return out
}

// Store is a value-typed, per-program-point map from memory object to
// points-to set. Because pts.Set values are themselves interned and
// cheap to compare, cloning a Store is a single shallow map copy.
type Store struct {
	m map[pts.ObjID]pts.Set
}

// NewStore returns an empty Store.
func NewStore() Store {
	return Store{m: make(map[pts.ObjID]pts.Set)}
}

// Get returns the current points-to set stored at obj.
func (s Store) Get(obj pts.ObjID) pts.Set {
	return s.m[obj]
}

// Clone returns an independent copy of s.
func (s Store) Clone() Store {
	m2 := make(map[pts.ObjID]pts.Set, len(s.m))
	for k, v := range s.m {
		m2[k] = v
	}
	return Store{m: m2}
}

// WeakUpdate returns a new Store equal to s except that obj's entry is
// unioned with val, preserving every other mapping: the post-state
// Store contains the pre-state Store's mapping for every object.
func (s Store) WeakUpdate(obj pts.ObjID, val pts.Set) Store {
	out := s.Clone()
	out.m[obj] = out.m[obj].Union(val)
	return out
}

// StrongUpdate returns a new Store equal to s except that obj's entry
// is replaced outright by val. Callers must only do this when obj is
// the sole, non-summary member of the destination pointer's points-to
// set.
func (s Store) StrongUpdate(obj pts.ObjID, val pts.Set) Store {
	out := s.Clone()
	out.m[obj] = val
	return out
}

// Merge returns the object-wise weak merge of s and other: every
// object present in either gets the union of its mappings. This is
// the operation the worklist propagator's memoization table uses to
// combine a newly computed Store into Memo[pp].
func (s Store) Merge(other Store) Store {
	out := s.Clone()
	for k, v := range other.m {
		out.m[k] = out.m[k].Union(v)
	}
	return out
}

// Equal reports whether s and other map every object to the same
// points-to set.
func (s Store) Equal(other Store) bool {
	checked := make(map[pts.ObjID]bool, len(s.m)+len(other.m))
	for k, v := range s.m {
		if !v.Equal(other.m[k]) {
			return false
		}
		checked[k] = true
	}
	for k, v := range other.m {
		if checked[k] {
			continue
		}
		if !v.Equal(s.m[k]) {
			return false
		}
	}
	return true
}

// Len reports how many objects have a non-default entry in s; used
// only for diagnostics.
func (s Store) Len() int { return len(s.m) }

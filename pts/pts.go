// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pts implements interned points-to sets: immutable,
// value-typed sets of abstract object indices with O(1) equality via
// hash-consing, backed by either a sparse bit-vector
// (github.com/willf/bitset) or a BDD.
//
// The backend is chosen once, by the first call to Insert/Singleton/
// Union in a process, and is latched thereafter; see SelectBackend.
package pts

import (
	"fmt"
	"sort"
	"sync"
)

// ObjID indexes a MemoryObject in the owning analysis's object table.
// 0 is never a valid ObjID; it is reserved as a permanent dummy, the
// way a constraint graph's node 0 is conventionally unused.
type ObjID uint32

// Backend selects the underlying representation for every Set created
// in this process.
type Backend int

const (
	// Sparse stores each set as a sorted bit-vector (willf/bitset).
	Sparse Backend = iota
	// BDD stores each set as a binary decision diagram over a
	// fixed-width cube encoding of ObjID, making equal sets share a
	// node by construction (see bdd.go).
	BDD
)

func (b Backend) String() string {
	if b == BDD {
		return "bdd"
	}
	return "sparse"
}

var (
	backendMu     sync.Mutex
	backendLatched bool
	activeBackend Backend = Sparse
)

// SelectBackend fixes the representation used by every Set for the
// remainder of the process. It must be called before the first
// Set-producing operation; calling it again with a different value
// after the backend has latched returns an error, since every interned
// Set handle created so far is only valid under the backend that
// produced it.
func SelectBackend(b Backend) error {
	backendMu.Lock()
	defer backendMu.Unlock()
	if backendLatched && activeBackend != b {
		return fmt.Errorf("pts: cannot switch backend to %s: already latched to %s", b, activeBackend)
	}
	activeBackend = b
	backendLatched = true
	return nil
}

func latch() Backend {
	backendMu.Lock()
	defer backendMu.Unlock()
	backendLatched = true
	return activeBackend
}

// ActiveBackend reports the backend latched for this process, latching
// Sparse (the default) if nothing has run yet.
func ActiveBackend() Backend { return latch() }

// repr is the representation-specific half of a Set. Every method is
// pure: it never mutates its receiver.
type repr interface {
	has(o ObjID) bool
	union(other repr) repr
	includes(other repr) bool  // is other a subset of this?
	intersects(other repr) bool
	forEach(func(ObjID) bool) // stop early if f returns false
	size() int
	key() string // canonical hash-consing key
}

// Set is an immutable, interned points-to set. The zero Set is the
// empty set. Two Sets obtained from equal sequences of operations
// compare == (same handle) whenever Equal would report true; client
// code should nonetheless prefer Equal for clarity and to remain
// correct regardless of backend.
type Set struct {
	h *entry // nil means the canonical empty set
}

type entry struct {
	r repr
}

var (
	internMu sync.Mutex
	internTab = map[string]*entry{}
)

func intern(r repr) *entry {
	k := r.key()
	internMu.Lock()
	defer internMu.Unlock()
	if e, ok := internTab[k]; ok {
		return e
	}
	e := &entry{r: r}
	internTab[k] = e
	return e
}

func emptyRepr() repr {
	if latch() == BDD {
		return bddFalse
	}
	return sparseRepr{bs: nil}
}

// Empty returns the empty points-to set.
func Empty() Set { return Set{} }

// Singleton returns the points-to set {o}.
func Singleton(o ObjID) Set {
	if latch() == BDD {
		return Set{h: intern(bddSingleton(o))}
	}
	return Set{h: intern(newSparse(o))}
}

// Insert returns a new set equal to s ∪ {o}.
func (s Set) Insert(o ObjID) Set {
	return s.Union(Singleton(o))
}

// Has reports whether o ∈ s.
func (s Set) Has(o ObjID) bool {
	if s.h == nil {
		return false
	}
	return s.h.r.has(o)
}

// Union returns s ∪ other.
func (s Set) Union(other Set) Set {
	if s.h == nil {
		return other
	}
	if other.h == nil {
		return s
	}
	if s.h == other.h {
		return s
	}
	r := s.h.r.union(other.h.r)
	return Set{h: intern(r)}
}

// MergeAll unions every set in sets (convenience over repeated Union).
func MergeAll(sets []Set) Set {
	var out Set
	for _, s := range sets {
		out = out.Union(s)
	}
	return out
}

// Includes reports whether other ⊆ s.
func (s Set) Includes(other Set) bool {
	if other.h == nil {
		return true
	}
	if s.h == nil {
		return false
	}
	if s.h == other.h {
		return true
	}
	return s.h.r.includes(other.h.r)
}

// Intersects reports whether s ∩ other ≠ ∅.
func (s Set) Intersects(other Set) bool {
	if s.h == nil || other.h == nil {
		return false
	}
	return s.h.r.intersects(other.h.r)
}

// Size returns |s|.
func (s Set) Size() int {
	if s.h == nil {
		return 0
	}
	return s.h.r.size()
}

// Equal reports whether s and other contain the same objects. Since
// sets are hash-consed this is O(1) handle comparison.
func (s Set) Equal(other Set) bool { return s.h == other.h }

// ForEach calls f once for every member, in ascending ObjID order,
// stopping early if f returns false. Iteration materializes a sorted
// snapshot on demand and does not mutate the set.
func (s Set) ForEach(f func(ObjID) bool) {
	if s.h == nil {
		return
	}
	if _, ok := s.h.r.(bddRepr); ok {
		var ids []ObjID
		s.h.r.forEach(func(o ObjID) bool { ids = append(ids, o); return true })
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, o := range ids {
			if !f(o) {
				return
			}
		}
		return
	}
	s.h.r.forEach(f)
}

// AppendSorted appends every member of s to out, in ascending order.
func (s Set) AppendSorted(out []ObjID) []ObjID {
	s.ForEach(func(o ObjID) bool { out = append(out, o); return true })
	return out
}

// Slice is a convenience for AppendSorted(nil); prefer ForEach/
// AppendSorted in hot paths to avoid the allocation.
func (s Set) Slice() []ObjID { return s.AppendSorted(nil) }

// String renders the set in ascending order, e.g. "{1 4 7}".
func (s Set) String() string {
	ids := s.Slice()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return fmt.Sprint(ids)
}

// Intersection materializes the members common to both sets. Unlike
// Intersects, this allocates and is intended for diagnostics/tests,
// not the hot solver path.
func (s Set) Intersection(other Set) []ObjID {
	var out []ObjID
	small, big := s, other
	if small.Size() > big.Size() {
		small, big = big, small
	}
	small.ForEach(func(o ObjID) bool {
		if big.Has(o) {
			out = append(out, o)
		}
		return true
	})
	return out
}

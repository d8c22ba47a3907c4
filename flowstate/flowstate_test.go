// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flowstate

import (
	"testing"

	"github.com/lotusaa/core/memmodel"
	"github.com/lotusaa/core/pts"
)

func TestEnvWeakUpdateIsMonotone(t *testing.T) {
	env := NewEnv()
	p := memmodel.NullPointer()

	if !env.WeakUpdate(p, pts.Singleton(3)) {
		t.Fatalf("first update must report a change")
	}
	old := env.Get(p)
	if env.WeakUpdate(p, pts.Singleton(3)) {
		t.Fatalf("re-adding an existing member must report no change")
	}
	if !env.WeakUpdate(p, pts.Singleton(4)) {
		t.Fatalf("adding a new member must report a change")
	}
	if !env.Get(p).Includes(old) {
		t.Fatalf("Env[p] must be a superset of every earlier state")
	}
	if env.Get(p).Size() != 2 {
		t.Fatalf("Env[p] = %v, want {3 4}", env.Get(p))
	}
}

func TestStoreWeakUpdatePreservesMappings(t *testing.T) {
	s := NewStore().WeakUpdate(5, pts.Singleton(1)).WeakUpdate(6, pts.Singleton(2))
	s2 := s.WeakUpdate(5, pts.Singleton(2))

	if !s2.Get(5).Has(1) || !s2.Get(5).Has(2) {
		t.Fatalf("weak update must union, got %v", s2.Get(5))
	}
	if !s2.Get(6).Equal(s.Get(6)) {
		t.Fatalf("weak update must not touch other objects")
	}
	if s.Get(5).Has(2) {
		t.Fatalf("Store is value-typed: the pre-update copy must be unchanged")
	}
}

func TestStoreStrongUpdateReplaces(t *testing.T) {
	s := NewStore().WeakUpdate(5, pts.Singleton(1))
	s2 := s.StrongUpdate(5, pts.Singleton(9))
	if !s2.Get(5).Equal(pts.Singleton(9)) {
		t.Fatalf("strong update must replace, got %v", s2.Get(5))
	}
	if !s.Get(5).Equal(pts.Singleton(1)) {
		t.Fatalf("the pre-update copy must be unchanged")
	}
}

func TestStoreMergeAndEqual(t *testing.T) {
	a := NewStore().WeakUpdate(5, pts.Singleton(1))
	b := NewStore().WeakUpdate(5, pts.Singleton(2)).WeakUpdate(6, pts.Singleton(3))

	m := a.Merge(b)
	if !m.Get(5).Has(1) || !m.Get(5).Has(2) || !m.Get(6).Has(3) {
		t.Fatalf("Merge must union object-wise, got 5:%v 6:%v", m.Get(5), m.Get(6))
	}
	if !m.Equal(b.Merge(a)) {
		t.Fatalf("Merge must be commutative up to Equal")
	}
	if a.Equal(b) {
		t.Fatalf("distinct stores reported Equal")
	}
	if !a.Equal(a.Clone()) {
		t.Fatalf("a store must Equal its own clone")
	}
}

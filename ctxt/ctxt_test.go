// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctxt

import (
	"testing"

	"github.com/lotusaa/core/ir"
	"github.com/lotusaa/core/ir/fixture"
)

// callSites builds a function containing n call instructions and
// returns them, for use as distinct context elements.
func callSites(t *testing.T, n int) []ir.CallInstruction {
	t.Helper()
	mod := fixture.NewModule()
	callee := mod.NewFunc("g", &ir.Func{}, nil).Function()
	fn := mod.NewFunc("f", &ir.Func{}, nil)
	blk := fn.Block()
	var sites []ir.CallInstruction
	for i := 0; i < n; i++ {
		sites = append(sites, blk.Call("", callee, nil, nil))
	}
	blk.Return(nil)
	return sites
}

func TestPushInternsStructurallyEqualStrings(t *testing.T) {
	sites := callSites(t, 2)
	a := Push(Push(Global(), sites[0]), sites[1])
	b := Push(Push(Global(), sites[0]), sites[1])
	if !a.Equal(b) {
		t.Fatalf("equal call-strings must share one interned handle")
	}
	if a.Size() != 2 {
		t.Fatalf("Size = %d, want 2", a.Size())
	}
	if a.Site() != sites[1] {
		t.Fatalf("Site must be the innermost pushed call")
	}
	other := Push(Push(Global(), sites[1]), sites[0])
	if a.Equal(other) {
		t.Fatalf("call-strings with different site order must not be equal")
	}
}

func TestPopReversesPush(t *testing.T) {
	sites := callSites(t, 1)
	c := Push(Global(), sites[0])
	if !Pop(c).Equal(Global()) {
		t.Fatalf("Pop(Push(global, s)) must be the global context")
	}
	if !Pop(Global()).Equal(Global()) {
		t.Fatalf("Pop(global) must stay global")
	}
}

func TestNonePolicyAlwaysGlobal(t *testing.T) {
	sites := callSites(t, 2)
	var p Policy = NonePolicy{}
	c := p.Push(Global(), sites[0])
	if !c.Equal(Global()) {
		t.Fatalf("NonePolicy.Push = %v, want global", c)
	}
	deep := Push(Push(Global(), sites[0]), sites[1])
	if !p.Push(deep, sites[0]).Equal(Global()) {
		t.Fatalf("NonePolicy.Push must collapse even a non-global context")
	}
}

func TestKCallSitePolicyBoundsDepth(t *testing.T) {
	sites := callSites(t, 3)
	var p Policy = KCallSitePolicy{K: 2}
	c := Global()
	for _, s := range sites {
		c = p.Push(c, s)
		if c.Size() > 2 {
			t.Fatalf("KCallSite(2) produced a context of size %d", c.Size())
		}
	}
	if c.Size() != 2 {
		t.Fatalf("Size after three pushes = %d, want 2", c.Size())
	}
	if !p.Push(c, sites[2]).Equal(c) {
		t.Fatalf("push at the depth bound must keep the context unchanged")
	}
}

func TestAdaptivePolicyPushesTrackedSitesOnly(t *testing.T) {
	sites := callSites(t, 2)
	var p Policy = AdaptivePolicy{Tracked: map[ir.CallInstruction]bool{sites[0]: true}}
	if got := p.Push(Global(), sites[1]); !got.Equal(Global()) {
		t.Fatalf("untracked site must not extend the context")
	}
	got := p.Push(Global(), sites[0])
	if got.Size() != 1 || got.Site() != sites[0] {
		t.Fatalf("tracked site must extend the context, got %v", got)
	}
}

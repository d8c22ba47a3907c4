// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ctxt implements the context model: immutable, interned
// call-strings and the policies that decide, at each call, whether to
// extend one.
package ctxt

import (
	"sync"

	"github.com/lotusaa/core/ir"
)

// Context is an immutable call-string, interned so that equal
// structural content always shares one handle. The zero Context is
// the global (empty) context.
type Context struct {
	h *entry
}

type entry struct {
	site   ir.CallInstruction
	parent *entry
	size   int
}

type key struct {
	site   ir.CallInstruction
	parent *entry
}

var (
	mu    sync.Mutex
	table = map[key]*entry{}
)

// Global returns the empty call-string.
func Global() Context { return Context{} }

// Size returns the call-string's length.
func (c Context) Size() int {
	if c.h == nil {
		return 0
	}
	return c.h.size
}

// Equal reports whether c and o are the same interned context.
func (c Context) Equal(o Context) bool { return c.h == o.h }

// Site returns the most recently pushed call site, or nil at the
// global context.
func (c Context) Site() ir.CallInstruction {
	if c.h == nil {
		return nil
	}
	return c.h.site
}

// String renders the call-string innermost-site-first, e.g.
// "[call@f call@g]", or "[]" for the global context.
func (c Context) String() string {
	var sites []string
	for e := c.h; e != nil; e = e.parent {
		sites = append(sites, e.site.String())
	}
	out := "["
	for i, s := range sites {
		if i > 0 {
			out += " "
		}
		out += s
	}
	return out + "]"
}

// Push returns cons(site, c): the call-string obtained by recording
// one more call at site. Push is pure and always succeeds; policies
// decide whether to call it.
func Push(c Context, site ir.CallInstruction) Context {
	k := key{site: site, parent: c.h}
	mu.Lock()
	defer mu.Unlock()
	if e, ok := table[k]; ok {
		return Context{h: e}
	}
	e := &entry{site: site, parent: c.h, size: c.Size() + 1}
	table[k] = e
	return Context{h: e}
}

// Pop returns the call-string with its most recent site removed, or
// the global context if c is already global.
func Pop(c Context) Context {
	if c.h == nil {
		return c
	}
	return Context{h: c.h.parent}
}

// Policy decides, at each call site, whether push(ctx, site) should
// actually extend the call-string.
type Policy interface {
	Push(c Context, site ir.CallInstruction) Context
}

// NonePolicy always collapses to the global context: no context
// sensitivity at all.
type NonePolicy struct{}

func (NonePolicy) Push(Context, ir.CallInstruction) Context { return Global() }

// KCallSitePolicy bounds call-string depth at K: it extends the
// context only while doing so keeps |ctx| <= K.
type KCallSitePolicy struct {
	K int
}

func (p KCallSitePolicy) Push(c Context, site ir.CallInstruction) Context {
	if c.Size() < p.K {
		return Push(c, site)
	}
	return c
}

// AdaptivePolicy extends the context only at call sites in Tracked,
// leaving every other call collapsed to the caller's own context.
type AdaptivePolicy struct {
	Tracked map[ir.CallInstruction]bool
}

func (p AdaptivePolicy) Push(c Context, site ir.CallInstruction) Context {
	if p.Tracked[site] {
		return Push(c, site)
	}
	return c
}

var (
	_ Policy = NonePolicy{}
	_ Policy = KCallSitePolicy{}
	_ Policy = AdaptivePolicy{}
)

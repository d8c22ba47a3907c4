// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gvfa

import (
	"strconv"
	"strings"

	"github.com/eapache/queue"

	"github.com/lotusaa/core/memmodel"
	"github.com/lotusaa/core/vfg"
)

// maxCFLStackDepth bounds how many unmatched call sites a CFL search
// will carry on its parenthesis stack; a real call graph's recursion
// depth is finite but unbounded in principle, so this is a safety cap,
// not a correctness requirement. maxCFLExploredStates bounds total
// (node, stack) states visited per query for the same reason.
const (
	maxCFLStackDepth     = 64
	maxCFLExploredStates = 200000
)

// step applies one VFG edge to a Dyck-language parenthesis stack: an
// unlabeled edge (def-use or memory) is free; a
// KindCall edge labeled +i pushes i; a KindReturn edge labeled -i pops
// only if the stack's top is i, and is otherwise not traversable at
// all (ok=false). backward reverses the roles, since walking a forward
// +i call edge backward is "returning" from it (pop) and walking a
// forward -i return edge backward is "calling" into it (push) — the
// mirrored labels-and-direction rule.
func step(e vfg.Edge, backward bool, stack []int) (next []int, ok bool) {
	switch e.Kind {
	case vfg.KindDefUse, vfg.KindMemory:
		return stack, true
	case vfg.KindCall:
		if backward {
			return pop(stack, e.Label)
		}
		return push(stack, e.Label)
	case vfg.KindReturn:
		if backward {
			return push(stack, e.Label)
		}
		return pop(stack, e.Label)
	default:
		return stack, true
	}
}

func push(stack []int, label int) ([]int, bool) {
	if len(stack) >= maxCFLStackDepth {
		return nil, false
	}
	next := make([]int, len(stack)+1)
	copy(next, stack)
	next[len(stack)] = label
	return next, true
}

func pop(stack []int, label int) ([]int, bool) {
	if len(stack) == 0 || stack[len(stack)-1] != label {
		return nil, false
	}
	return stack[:len(stack)-1], true
}

func stackKey(stack []int) string {
	if len(stack) == 0 {
		return ""
	}
	parts := make([]string, len(stack))
	for i, v := range stack {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// CFL answers matched-parenthesis (Dyck-language) reachability queries
// over a built Value-Flow Graph: a realizable path must push and pop
// call/return labels in LIFO order, so a flow that calls into f and
// takes f's unrelated sibling call's return edge back out is correctly
// rejected even though an unlabeled-edge-only reachability check would
// accept it.
type CFL struct {
	g *vfg.Graph
}

// NewCFL constructs a CFL query engine over g. Unlike Fast/Precise,
// CFL does no up-front pass: every query runs its own bounded search,
// since the per-query parenthesis stack makes precomputing an
// all-pairs table prohibitively large.
func NewCFL(g *vfg.Graph) *CFL { return &CFL{g: g} }

type cflState struct {
	node  memmodel.Pointer
	stack []int
}

// Reachable reports whether to is reachable from "from" along some
// matched-call path, allowing any number of calls left unmatched at
// the end (a path that starts inside a call and never returns from it
// is still realizable from the caller's perspective).
func (c *CFL) Reachable(from, to memmodel.Pointer) bool {
	return c.search(from, to, false, false)
}

// ReachableBackward is Reachable walked against edge direction, for
// callers that already have a sink and want to search toward sources.
func (c *CFL) ReachableBackward(from, to memmodel.Pointer) bool {
	return c.search(from, to, true, false)
}

// BalancedReachable is Reachable's stricter sibling: it only accepts a
// path whose call/return labels fully cancel out, i.e. a same-level
// realizable path per the classical CFL-reachability formulation.
func (c *CFL) BalancedReachable(from, to memmodel.Pointer) bool {
	return c.search(from, to, false, true)
}

func (c *CFL) search(from, to memmodel.Pointer, backward, requireBalanced bool) bool {
	if from == to && !requireBalanced {
		return true
	}
	visited := make(map[memmodel.Pointer]map[string]bool)
	mark := func(n memmodel.Pointer, stack []int) bool {
		key := stackKey(stack)
		m, ok := visited[n]
		if !ok {
			m = make(map[string]bool)
			visited[n] = m
		}
		if m[key] {
			return false
		}
		m[key] = true
		return true
	}

	q := queue.New()
	q.Add(cflState{node: from})
	mark(from, nil)

	explored := 0
	for q.Length() > 0 {
		explored++
		if explored > maxCFLExploredStates {
			return false
		}
		st := q.Remove().(cflState)

		var edges []vfg.Edge
		if backward {
			edges = c.g.Predecessors(st.node)
		} else {
			edges = c.g.Successors(st.node)
		}
		for _, e := range edges {
			next, ok := step(e, backward, st.stack)
			if !ok {
				continue
			}
			if e.To == to && (!requireBalanced || len(next) == 0) {
				return true
			}
			if mark(e.To, next) {
				q.Add(cflState{node: e.To, stack: next})
			}
		}
	}
	return false
}

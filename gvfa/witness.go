// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gvfa

import (
	"github.com/eapache/queue"

	"github.com/lotusaa/core/ir"
	"github.com/lotusaa/core/memmodel"
	"github.com/lotusaa/core/vfg"
)

// Ellipsis is the sentinel witness-path element standing for "one or
// more compressed, uninteresting hops": a real memmodel.Pointer always
// carries a non-nil V (every Pointer is built from a canonicalized
// ir.Value), so the zero Pointer can never collide with an actual node
// and is safe to use as a marker.
var Ellipsis = memmodel.Pointer{}

const maxWitnessIter = 50000

// isInteresting reports whether v's underlying value is the kind of
// instruction a human reading a witness path would want named
// explicitly — a dereference, a GEP, a call boundary, or a PHI merge —
// as opposed to a BitCast/AddrSpaceCast/Select hop that WitnessPath's
// compression step elides into an Ellipsis run.
func isInteresting(v memmodel.Pointer) bool {
	if v.V == nil {
		return false
	}
	switch v.V.(type) {
	case *ir.Load, *ir.GEP, *ir.Call, *ir.Invoke, *ir.PHI:
		return true
	}
	return false
}

// WitnessPath performs a bounded breadth-first search for a path from
// "from" to "to" over g and, if one is found, compresses consecutive
// uninteresting hops into a single Ellipsis so the result reads like a
// short human-facing trace rather than the raw (possibly long) edge
// sequence. A nil result means no path was found within maxIter
// explored states; a non-empty result
// always starts with from, ends with to, and every consecutive pair is
// either a real VFG edge or separated by exactly one Ellipsis.
func WitnessPath(g *vfg.Graph, from, to memmodel.Pointer, maxIter int) []memmodel.Pointer {
	if maxIter <= 0 {
		maxIter = maxWitnessIter
	}
	if from == to {
		return []memmodel.Pointer{from}
	}

	prev := map[memmodel.Pointer]memmodel.Pointer{from: from}
	found := false
	q := queue.New()
	q.Add(from)
	explored := 0
	for q.Length() > 0 && !found {
		explored++
		if explored > maxIter {
			return nil
		}
		n := q.Remove().(memmodel.Pointer)
		for _, e := range g.Successors(n) {
			if _, seen := prev[e.To]; seen {
				continue
			}
			prev[e.To] = n
			if e.To == to {
				found = true
				break
			}
			q.Add(e.To)
		}
	}
	if !found {
		return nil
	}

	var raw []memmodel.Pointer
	for n := to; ; {
		raw = append(raw, n)
		if n == from {
			break
		}
		n = prev[n]
	}
	for i, j := 0, len(raw)-1; i < j; i, j = i+1, j-1 {
		raw[i], raw[j] = raw[j], raw[i]
	}

	return compressWitness(raw)
}

// compressWitness replaces any run of two or more consecutive
// uninteresting nodes (excluding the endpoints, which are always kept)
// with a single Ellipsis.
func compressWitness(raw []memmodel.Pointer) []memmodel.Pointer {
	if len(raw) <= 2 {
		return raw
	}
	out := make([]memmodel.Pointer, 0, len(raw))
	out = append(out, raw[0])
	i := 1
	for i < len(raw)-1 {
		if isInteresting(raw[i]) {
			out = append(out, raw[i])
			i++
			continue
		}
		j := i
		for j < len(raw)-1 && !isInteresting(raw[j]) {
			j++
		}
		if j-i >= 2 {
			out = append(out, Ellipsis)
		} else {
			out = append(out, raw[i])
		}
		i = j
	}
	out = append(out, raw[len(raw)-1])
	return out
}

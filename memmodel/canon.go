package memmodel

import "github.com/lotusaa/core/ir"

// Canonicalize reduces v to the value the pointer analysis actually
// tracks, following the no-op chains that would otherwise force a
// spurious extra indirection level onto every points-to fact:
//
//   - BitCast and AddrSpaceCast are transparent: they relabel a value's
//     type without changing its identity, so they resolve to their
//     Base.
//   - A PHI with exactly one incoming edge is not a real merge; it
//     resolves to that edge.
//   - IntToPtr severs provenance: this analysis does not model integer
//     arithmetic, so it resolves to an Undef constant of the
//     instruction's own type rather than to its integer operand.
//
// Canonicalize is idempotent and never mutates the IR; it is meant to
// be called once per operand as it is read off an instruction, not
// precomputed into the IR itself.
func Canonicalize(v ir.Value) ir.Value {
	for {
		switch x := v.(type) {
		case *ir.BitCast:
			v = x.Base
		case *ir.AddrSpaceCast:
			v = x.Base
		case *ir.PHI:
			if len(x.Edges) == 1 {
				v = x.Edges[0]
				continue
			}
			return v
		case *ir.IntToPtr:
			return ir.NewUndefConst(x.Type())
		default:
			return v
		}
	}
}

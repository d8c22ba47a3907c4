package memmodel

import "github.com/lotusaa/core/ir"

// TypeLayout caches the byte-level facts a Manager needs about one
// ir.Type: its size and the sorted list of pointer-typed scalar
// offsets within it. Resolve additionally walks the type tree itself,
// so it can tell a struct-field offset from an offset that fell inside
// an array and needs normalizing.
type TypeLayout struct {
	typ        ir.Type
	dl         ir.DataLayout
	size       uint64
	ptrOffsets []ir.PointerOffset
}

func newTypeLayout(t ir.Type, dl ir.DataLayout) *TypeLayout {
	if t == nil {
		return nil
	}
	return &TypeLayout{
		typ:        t,
		dl:         dl,
		size:       dl.SizeOf(t),
		ptrOffsets: dl.PointerOffsetsIn(t),
	}
}

// Size returns the layout's total extent in bytes.
func (l *TypeLayout) Size() uint64 { return l.size }

// PointerOffsets returns every pointer-typed scalar offset within the
// layout, ascending.
func (l *TypeLayout) PointerOffsets() []ir.PointerOffset { return l.ptrOffsets }

// Resolve locates byte offset target within the layout's type tree. It
// reports ok=false if target is past the end of the layout. Otherwise
// it returns the final offset to use — normalized modulo the element
// size if target falls within an array — and whether that location is
// array-backed (and therefore always a summary object).
func (l *TypeLayout) Resolve(target uint64) (offset uint64, summary bool, ok bool) {
	return resolveOffset(l.typ, l.dl, 0, target)
}

// resolveOffset walks t, whose own extent starts at base, looking for
// the byte position target. It is the single place that knows how to
// turn "some byte offset, possibly past a single element" into a
// normalized (offset, summary) pair.
func resolveOffset(t ir.Type, dl ir.DataLayout, base, target uint64) (uint64, bool, bool) {
	size := dl.SizeOf(t)
	if target < base || target >= base+size {
		return 0, false, false
	}
	switch t := t.(type) {
	case *ir.Struct:
		acc := base
		for i := range t.Fields {
			f := t.Fields[i]
			fsz := dl.SizeOf(f)
			if target < acc+fsz {
				return resolveOffset(f, dl, acc, target)
			}
			acc += fsz
		}
		return 0, false, false
	case *ir.Array:
		elemSize := dl.SizeOf(t.Elem)
		if elemSize == 0 {
			return base, true, true
		}
		rel := target - base
		normRel := rel % elemSize
		final, _, ok := resolveOffset(t.Elem, dl, 0, normRel)
		return base + final, true, ok
	default:
		return target, false, true
	}
}

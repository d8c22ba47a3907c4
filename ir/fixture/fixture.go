// Package fixture builds small in-memory ir.Program values for tests.
// It exists only so the rest of this module has something concrete to
// analyze; the IR and its construction (parsing, lifting from a
// frontend) are external collaborators, so this package is not part
// of the analysis core and is never imported by non-test code.
package fixture

import "github.com/lotusaa/core/ir"

// Layout is a tiny DataLayout: every pointer is 8 bytes, every Basic
// scalar is sized by its Bits field (rounded up to a byte), structs
// are laid out field-by-field with natural (unpadded) offsets, and
// arrays repeat their element layout Len times.
type Layout struct{}

func (Layout) PointerSize() uint64 { return 8 }

func (l Layout) SizeOf(t ir.Type) uint64 {
	switch t := t.(type) {
	case *ir.Basic:
		if t.Bits == 0 {
			return 0
		}
		return (t.Bits + 7) / 8
	case *ir.Pointer:
		return 8
	case *ir.Struct:
		var sz uint64
		for _, f := range t.Fields {
			sz += l.SizeOf(f)
		}
		return sz
	case *ir.Array:
		return l.SizeOf(t.Elem) * t.Len
	case *ir.Func:
		return 8
	default:
		return 8
	}
}

func (l Layout) FieldOffset(s *ir.Struct, i int) uint64 {
	var off uint64
	for j := 0; j < i; j++ {
		off += l.SizeOf(s.Fields[j])
	}
	return off
}

func (l Layout) PointerOffsetsIn(t ir.Type) []ir.PointerOffset {
	return l.pointerOffsets(t, 0, false, nil)
}

func (l Layout) pointerOffsets(t ir.Type, base uint64, inArray bool, out []ir.PointerOffset) []ir.PointerOffset {
	switch t := t.(type) {
	case *ir.Pointer:
		return append(out, ir.PointerOffset{Byte: base, ArrayElem: inArray})
	case *ir.Struct:
		off := base
		for _, f := range t.Fields {
			out = l.pointerOffsets(f, off, inArray, out)
			off += l.SizeOf(f)
		}
		return out
	case *ir.Array:
		// Field-insensitive: only the first element's pointer offsets
		// are recorded, all tagged ArrayElem.
		return l.pointerOffsets(t.Elem, base, true, out)
	default:
		return out
	}
}

// Basic scalar type singletons, reused across fixtures.
var (
	I8   = &ir.Basic{Name: "i8", Bits: 8}
	I32  = &ir.Basic{Name: "i32", Bits: 32}
	I64  = &ir.Basic{Name: "i64", Bits: 64}
	Void = &ir.Basic{Name: "void", Bits: 0}
)

func PtrTo(t ir.Type) *ir.Pointer { return &ir.Pointer{Elem: t} }

// Module is a mutable, in-progress ir.Program.
type Module struct {
	fns     []*ir.Function
	globals []*ir.Global
	byName  map[string]*ir.Function
	layout  ir.DataLayout
}

func NewModule() *Module {
	return &Module{byName: make(map[string]*ir.Function), layout: Layout{}}
}

func (m *Module) Functions() []*ir.Function { return m.fns }
func (m *Module) Globals() []*ir.Global     { return m.globals }
func (m *Module) DataLayout() ir.DataLayout { return m.layout }
func (m *Module) FunctionByName(name string) (*ir.Function, bool) {
	fn, ok := m.byName[name]
	return fn, ok
}

func (m *Module) AddGlobal(name string, t ir.Type, init ir.Initializer) *ir.Global {
	g := &ir.Global{GName: name, GType: t, Init: init}
	m.globals = append(m.globals, g)
	return g
}

// FuncBuilder incrementally constructs one ir.Function.
type FuncBuilder struct {
	m      *Module
	fn     *ir.Function
	nextID int
}

func (m *Module) NewFunc(name string, sig *ir.Func, paramNames []string) *FuncBuilder {
	fn := &ir.Function{FnName: name, Sig: sig}
	for i, pn := range paramNames {
		fn.Params = append(fn.Params, &ir.Param{PName: pn, PType: sig.Params[i]})
	}
	m.fns = append(m.fns, fn)
	m.byName[name] = fn
	return &FuncBuilder{m: m, fn: fn}
}

func (fb *FuncBuilder) Function() *ir.Function { return fb.fn }

// Block appends and returns a new, empty basic block.
func (fb *FuncBuilder) Block() *BlockBuilder {
	bb := &ir.BasicBlock{Index: len(fb.fn.Blocks), Fn: fb.fn}
	fb.fn.Blocks = append(fb.fn.Blocks, bb)
	return &BlockBuilder{fb: fb, bb: bb}
}

func (fb *FuncBuilder) name() string {
	fb.nextID++
	return "t"
}

// BlockBuilder appends instructions to one basic block.
type BlockBuilder struct {
	fb *FuncBuilder
	bb *ir.BasicBlock
}

func (bb *BlockBuilder) Raw() *ir.BasicBlock { return bb.bb }

func (bb *BlockBuilder) SetSuccs(succs ...*BlockBuilder) {
	for _, s := range succs {
		bb.bb.Succs = append(bb.bb.Succs, s.bb)
		s.bb.Preds = append(s.bb.Preds, bb.bb)
	}
}

func (bb *BlockBuilder) add(instr ir.Instruction) {
	bb.bb.Instrs = append(bb.bb.Instrs, instr)
}

func (bb *BlockBuilder) Alloca(name string, elem ir.Type) *ir.Alloca {
	a := &ir.Alloca{Elem: elem}
	a.Blk, a.Nm, a.Typ = bb.bb, name, PtrTo(elem)
	bb.add(a)
	return a
}

func (bb *BlockBuilder) Load(name string, addr ir.Value) *ir.Load {
	l := &ir.Load{Addr: addr}
	l.Blk, l.Nm, l.Typ = bb.bb, name, ir.MustDeref(addr.Type())
	bb.add(l)
	return l
}

func (bb *BlockBuilder) Store(addr, val ir.Value) *ir.Store {
	s := &ir.Store{Addr: addr, Val: val}
	s.Blk = bb.bb
	bb.add(s)
	return s
}

func (bb *BlockBuilder) BitCast(name string, base ir.Value, t ir.Type) *ir.BitCast {
	c := &ir.BitCast{Base: base}
	c.Blk, c.Nm, c.Typ = bb.bb, name, t
	bb.add(c)
	return c
}

func (bb *BlockBuilder) GEP(name string, base ir.Value, constOffset uint64, arrayLike bool, resultType ir.Type) *ir.GEP {
	g := &ir.GEP{Base: base, ConstOffset: constOffset, ArrayLike: arrayLike}
	g.Blk, g.Nm, g.Typ = bb.bb, name, resultType
	bb.add(g)
	return g
}

func (bb *BlockBuilder) IntToPtr(name string, base ir.Value, t ir.Type) *ir.IntToPtr {
	c := &ir.IntToPtr{Base: base}
	c.Blk, c.Nm, c.Typ = bb.bb, name, t
	bb.add(c)
	return c
}

func (bb *BlockBuilder) Select(name string, x, y ir.Value) *ir.Select {
	s := &ir.Select{X: x, Y: y}
	s.Blk, s.Nm, s.Typ = bb.bb, name, x.Type()
	bb.add(s)
	return s
}

func (bb *BlockBuilder) PHI(name string, t ir.Type, edges ...ir.Value) *ir.PHI {
	p := &ir.PHI{Edges: edges}
	p.Blk, p.Nm, p.Typ = bb.bb, name, t
	bb.add(p)
	return p
}

func (bb *BlockBuilder) Call(name string, callee ir.Value, args []ir.Value, resultType ir.Type) *ir.Call {
	c := &ir.Call{FnVal: callee, ArgVals: args, HasDst: resultType != nil}
	c.Blk, c.Nm = bb.bb, name
	if resultType != nil {
		c.Typ = resultType
	} else {
		c.Typ = Void
	}
	bb.add(c)
	return c
}

func (bb *BlockBuilder) Return(result ir.Value) *ir.Return {
	r := &ir.Return{Result: result}
	r.Blk = bb.bb
	bb.add(r)
	return r
}

func (bb *BlockBuilder) Unreachable() *ir.Unreachable {
	u := &ir.Unreachable{}
	u.Blk = bb.bb
	bb.add(u)
	return u
}

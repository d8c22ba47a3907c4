package ir

// This file defines the concrete instruction kinds, one struct per
// Opcode, in the style of ssa.Alloc, ssa.Load, ssa.Store, etc. in
// go/ssa. Each embeds valueBase if it produces a result, or instrBase
// alone if it does not.

type instrBase struct {
	Blk *BasicBlock
}

func (b *instrBase) Block() *BasicBlock { return b.Blk }

// valueBase's fields are exported so that ir/fixture (and any other
// out-of-package IR builder) can populate them directly; nothing in
// this package treats them as part of the public Value/Instruction
// contract beyond the accessor methods below.
type valueBase struct {
	instrBase
	Nm     string
	Typ    Type
	PosVal int
}

func (v *valueBase) Name() string { return v.Nm }
func (v *valueBase) Type() Type   { return v.Typ }
func (v *valueBase) Pos() int     { return v.PosVal }

// Alloca allocates a new stack object of type Elem.
type Alloca struct {
	valueBase
	Elem Type
}

func (a *Alloca) Opcode() Opcode { return OpAlloca }
func (a *Alloca) String() string { return a.Nm + " = alloca " + a.Elem.String() }

// Load reads *Addr.
type Load struct {
	valueBase
	Addr Value
}

func (l *Load) Opcode() Opcode { return OpLoad }
func (l *Load) String() string { return l.Nm + " = load " + l.Addr.Name() }

// Store writes *Addr = Val. Produces no value.
type Store struct {
	instrBase
	Addr Value
	Val  Value
}

func (s *Store) Opcode() Opcode { return OpStore }
func (s *Store) String() string { return "store " + s.Val.Name() + ", " + s.Addr.Name() }

// GEP is a (possibly non-constant) getelementptr. A GEP with a single
// constant index is trivially reducible (ConstOffset, ArrayLike=false);
// anything else (variable index, or more than one index level) is
// conservative (ArrayLike=true, ConstOffset the byte size of one
// element, used modulo the array span).
type GEP struct {
	valueBase
	Base        Value
	ConstOffset uint64
	ArrayLike   bool
}

func (g *GEP) Opcode() Opcode { return OpGEP }
func (g *GEP) String() string { return g.Nm + " = gep " + g.Base.Name() }

// BitCast is a no-op reinterpretation of Base's bits as a new type.
type BitCast struct {
	valueBase
	Base Value
}

func (b *BitCast) Opcode() Opcode { return OpBitCast }
func (b *BitCast) String() string { return b.Nm + " = bitcast " + b.Base.Name() }

// AddrSpaceCast is a cast between pointer address spaces; treated as a
// no-op copy by this analysis (address spaces do not affect aliasing).
type AddrSpaceCast struct {
	valueBase
	Base Value
}

func (c *AddrSpaceCast) Opcode() Opcode { return OpAddrSpaceCast }
func (c *AddrSpaceCast) String() string { return c.Nm + " = addrspacecast " + c.Base.Name() }

// IntToPtr converts an integer to a pointer. Value canonicalization
// normalizes these to Undef/Universal rather than tracking the integer
// provenance.
type IntToPtr struct {
	valueBase
	Base Value
}

func (c *IntToPtr) Opcode() Opcode { return OpIntToPtr }
func (c *IntToPtr) String() string { return c.Nm + " = inttoptr " + c.Base.Name() }

// PtrToInt converts a pointer to an integer; analytically a no-op sink.
type PtrToInt struct {
	valueBase
	Base Value
}

func (c *PtrToInt) Opcode() Opcode { return OpPtrToInt }
func (c *PtrToInt) String() string { return c.Nm + " = ptrtoint " + c.Base.Name() }

// PHI merges one Value per predecessor block, in Block().Preds order.
type PHI struct {
	valueBase
	Edges []Value
}

func (p *PHI) Opcode() Opcode { return OpPHI }
func (p *PHI) String() string { return p.Nm + " = phi(...)" }

// Select picks between X and Y depending on a (non-pointer) condition.
type Select struct {
	valueBase
	X, Y Value
}

func (s *Select) Opcode() Opcode { return OpSelect }
func (s *Select) String() string { return s.Nm + " = select " + s.X.Name() + ", " + s.Y.Name() }

// Call is a direct or indirect function call: FnVal is the callee
// operand, holding the *Function itself when the callee is statically
// known.
type Call struct {
	valueBase
	FnVal   Value // the callee, or a resolved *Function wrapped as a Value
	ArgVals []Value
	HasDst  bool
}

func (c *Call) Opcode() Opcode { return OpCall }
func (c *Call) Callee() Value  { return c.FnVal }
func (c *Call) Args() []Value  { return c.ArgVals }
func (c *Call) Dst() Value {
	if c.HasDst {
		return c
	}
	return nil
}
func (c *Call) String() string { return c.Nm + " = call " + c.FnVal.Name() }

// Invoke is a Call that also has an exceptional (unwind) successor;
// modeled identically to Call for pointer-analysis purposes since the
// unwind edge carries no additional pointer information here.
type Invoke struct {
	valueBase
	FnVal   Value
	ArgVals []Value
	HasDst  bool
	Unwind  *BasicBlock
}

func (c *Invoke) Opcode() Opcode { return OpInvoke }
func (c *Invoke) Callee() Value  { return c.FnVal }
func (c *Invoke) Args() []Value  { return c.ArgVals }
func (c *Invoke) Dst() Value {
	if c.HasDst {
		return c
	}
	return nil
}
func (c *Invoke) String() string { return c.Nm + " = invoke " + c.FnVal.Name() }

// Return exits the function, optionally with a result.
type Return struct {
	instrBase
	Result Value // nil for a void return
}

func (r *Return) Opcode() Opcode { return OpReturn }
func (r *Return) String() string { return "ret" }

// ExtractValue/ExtractElement/InsertValue/InsertElement fall back to
// producing a Universal-valued copy: they carry no further structure
// here, only the fact that they produce a pointer-typed result that
// must be treated conservatively.
type ExtractValue struct{ valueBase }

func (e *ExtractValue) Opcode() Opcode { return OpExtractValue }
func (e *ExtractValue) String() string { return e.Nm + " = extractvalue(...)" }

type ExtractElement struct{ valueBase }

func (e *ExtractElement) Opcode() Opcode { return OpExtractElement }
func (e *ExtractElement) String() string { return e.Nm + " = extractelement(...)" }

type InsertValue struct{ valueBase }

func (e *InsertValue) Opcode() Opcode { return OpInsertValue }
func (e *InsertValue) String() string { return e.Nm + " = insertvalue(...)" }

type InsertElement struct{ valueBase }

func (e *InsertElement) Opcode() Opcode { return OpInsertElement }
func (e *InsertElement) String() string { return e.Nm + " = insertelement(...)" }

type ShuffleVector struct{ valueBase }

func (e *ShuffleVector) Opcode() Opcode { return OpShuffleVector }
func (e *ShuffleVector) String() string { return e.Nm + " = shufflevector(...)" }

// Unreachable terminates a block that must never execute.
type Unreachable struct{ instrBase }

func (u *Unreachable) Opcode() Opcode { return OpUnreachable }
func (u *Unreachable) String() string { return "unreachable" }

// VAArg reads the next variadic argument; unsupported, so CFG build
// time reports it and treats the result as Universal.
type VAArg struct{ valueBase }

func (v *VAArg) Opcode() Opcode { return OpVAArg }
func (v *VAArg) String() string { return v.Nm + " = va_arg(...)" }

var (
	_ Instruction     = (*Alloca)(nil)
	_ Instruction     = (*Load)(nil)
	_ Instruction     = (*Store)(nil)
	_ Instruction     = (*GEP)(nil)
	_ CallInstruction = (*Call)(nil)
	_ CallInstruction = (*Invoke)(nil)
	_ Value           = (*Function)(nil)
	_ Value           = (*Param)(nil)
	_ Value           = (*Global)(nil)
)

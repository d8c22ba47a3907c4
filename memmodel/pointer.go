package memmodel

import (
	"fmt"
	"sync"

	"github.com/lotusaa/core/ctxt"
	"github.com/lotusaa/core/ir"
)

// Pointer is an abstract pointer: a (Context, SSA value) pair, always
// holding the canonicalized value. Pointer is a plain comparable
// struct rather than an arena handle: ctxt.Context is itself already
// an interned, pointer-equality-comparable handle, and ir.Value is a
// pointer-shaped interface, so two Pointers constructed from equal
// (ctx, canonicalize(v)) pairs already compare == in O(1) without any
// extra indirection: interning falls out of Context's own interning
// plus Go struct equality.
type Pointer struct {
	Ctx ctxt.Context
	V   ir.Value
}

func (p Pointer) String() string {
	return fmt.Sprintf("%s@%s", p.V.Name(), p.Ctx)
}

// nullSentinel and universalSentinel are the fixed ir.Value identities
// behind NullPointer and UniversalPointer: every null constant and
// every provenance-losing value (Undef, an IntToPtr operand) collapses
// to one of these two regardless of which source instruction produced
// it, so that NullPointer() == NullPointer() always holds.
var (
	nullSentinel      = ir.NewNullConst(&ir.Basic{Name: "<null>"})
	universalSentinel = ir.NewUndefConst(&ir.Basic{Name: "<universal>"})
)

// NullPointer is the singleton pointer standing for the null constant,
// always in the global context.
func NullPointer() Pointer { return Pointer{Ctx: ctxt.Global(), V: nullSentinel} }

// UniversalPointer is the singleton pointer standing for "address
// unknown": the canonicalization target of Undef and of any IntToPtr
// operand.
func UniversalPointer() Pointer { return Pointer{Ctx: ctxt.Global(), V: universalSentinel} }

// PointerManager canonicalizes (ctx, v) pairs into Pointers, applying
// the Null/Undef/GlobalValue special-case rules as it interns.
type PointerManager struct {
	mu   sync.Mutex
	seen map[Pointer]bool
}

// NewPointerManager creates an empty PointerManager.
func NewPointerManager() *PointerManager {
	return &PointerManager{seen: make(map[Pointer]bool)}
}

func canonicalPointer(ctx ctxt.Context, v ir.Value) Pointer {
	v = Canonicalize(v)
	if c, ok := v.(*ir.Const); ok {
		if c.IsNull {
			return NullPointer()
		}
		if c.IsUndef {
			return UniversalPointer()
		}
	}
	switch v.(type) {
	case *ir.Global, *ir.Function:
		ctx = ctxt.Global()
	}
	return Pointer{Ctx: ctx, V: v}
}

// GetOrCreate canonicalizes v (per Canonicalize) and returns the
// Pointer for (ctx, v), recording it as seen.
func (pm *PointerManager) GetOrCreate(ctx ctxt.Context, v ir.Value) Pointer {
	p := canonicalPointer(ctx, v)
	pm.mu.Lock()
	pm.seen[p] = true
	pm.mu.Unlock()
	return p
}

// Get returns the Pointer for (ctx, v) without recording it; ok is
// false if GetOrCreate has never been called for the same pair.
func (pm *PointerManager) Get(ctx ctxt.Context, v ir.Value) (Pointer, bool) {
	p := canonicalPointer(ctx, v)
	pm.mu.Lock()
	ok := pm.seen[p]
	pm.mu.Unlock()
	return p, ok
}

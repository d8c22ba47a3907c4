package ir

// Const is a compile-time constant value: a typed zero/null, an
// integer literal, or Undef. Pointer analysis only distinguishes
// whether a Const is the null pointer, Undef, or "some other constant"
// (treated as opaque data, never an address).
type Const struct {
	CType   Type
	IsNull  bool
	IsUndef bool
	name    string
	pos     int
}

func NewNullConst(t Type) *Const  { return &Const{CType: t, IsNull: true, name: "nil"} }
func NewUndefConst(t Type) *Const { return &Const{CType: t, IsUndef: true, name: "undef"} }

func NewConst(t Type, name string) *Const { return &Const{CType: t, name: name} }

func (c *Const) Name() string { return c.name }
func (c *Const) Type() Type   { return c.CType }
func (c *Const) Pos() int     { return c.pos }

var _ Value = (*Const)(nil)

package taintlift

import (
	"fmt"
	"sort"
)

// Expr represents an immutable bit-vector formula.
//
// String returns the SMT-LIB2 text of the formula. References to other
// symbolic units are printed by name; use Unroll to inline them.
type Expr interface {
	String() string
	expr()
}

func (*BinaryExpr) expr()   {}
func (*CastExpr) expr()     {}
func (*ConcatExpr) expr()   {}
func (*ConstantExpr) expr() {}
func (*ExtractExpr) expr()  {}
func (*IteExpr) expr()      {}
func (*NotExpr) expr()      {}
func (*RefExpr) expr()      {}
func (*VariableExpr) expr() {}

// ExprWidth returns the bit width of the expression.
func ExprWidth(expr Expr) uint {
	switch expr := expr.(type) {
	case *ConstantExpr:
		return expr.Width
	case *VariableExpr:
		return expr.Var.Width
	case *RefExpr:
		return expr.Unit.width()
	case *ConcatExpr:
		return ExprWidth(expr.MSB) + ExprWidth(expr.LSB)
	case *ExtractExpr:
		return expr.High - expr.Low + 1
	case *NotExpr:
		return ExprWidth(expr.Expr)
	case *CastExpr:
		return expr.Width
	case *IteExpr:
		return ExprWidth(expr.Then)
	case *BinaryExpr:
		if expr.Op.IsCompare() {
			return WidthBool
		}
		return ExprWidth(expr.LHS)
	default:
		panic(fmt.Sprintf("unreachable: %T", expr))
	}
}

// validWidth returns true if w can be represented by a bit-vector value.
func validWidth(w uint) bool { return w > 0 && w <= Width64 }

// BinaryOp represents a binary expression operations.
type BinaryOp int

// BinaryExpr operations.
const (
	arithmetic_op_begin = BinaryOp(iota)
	ADD
	SUB
	MUL
	UDIV
	SDIV
	UREM
	SREM
	AND
	OR
	XOR
	SHL
	LSHR
	ASHR
	arithmetic_op_end

	compare_op_begin
	EQ
	NE
	ULT
	ULE
	UGT
	UGE
	SLT
	SLE
	SGT
	SGE
	compare_op_end
)

var binaryOps = [...]string{
	ADD:  "add",
	SUB:  "sub",
	MUL:  "mul",
	UDIV: "udiv",
	SDIV: "sdiv",
	UREM: "urem",
	SREM: "srem",
	AND:  "and",
	OR:   "or",
	XOR:  "xor",
	SHL:  "shl",
	LSHR: "lshr",
	ASHR: "ashr",
	EQ:   "eq",
	NE:   "ne",
	ULT:  "ult",
	ULE:  "ule",
	UGT:  "ugt",
	UGE:  "uge",
	SLT:  "slt",
	SLE:  "sle",
	SGT:  "sgt",
	SGE:  "sge",
}

// smtOps holds the SMT-LIB2 operator for each binary operation.
var smtOps = [...]string{
	ADD:  "bvadd",
	SUB:  "bvsub",
	MUL:  "bvmul",
	UDIV: "bvudiv",
	SDIV: "bvsdiv",
	UREM: "bvurem",
	SREM: "bvsrem",
	AND:  "bvand",
	OR:   "bvor",
	XOR:  "bvxor",
	SHL:  "bvshl",
	LSHR: "bvlshr",
	ASHR: "bvashr",
	EQ:   "=",
	NE:   "distinct",
	ULT:  "bvult",
	ULE:  "bvule",
	UGT:  "bvugt",
	UGE:  "bvuge",
	SLT:  "bvslt",
	SLE:  "bvsle",
	SGT:  "bvsgt",
	SGE:  "bvsge",
}

// String returns the string representation of the operation.
func (op BinaryOp) String() string {
	if op >= 0 && op < BinaryOp(len(binaryOps)) && binaryOps[op] != "" {
		return binaryOps[op]
	}
	return fmt.Sprintf("BinaryOp<%d>", op)
}

// SMT returns the SMT-LIB2 operator name.
func (op BinaryOp) SMT() string {
	if op >= 0 && op < BinaryOp(len(smtOps)) && smtOps[op] != "" {
		return smtOps[op]
	}
	return op.String()
}

// IsArithmetic returns true if op is an arithmetic operator.
func (op BinaryOp) IsArithmetic() bool {
	return op > arithmetic_op_begin && op < arithmetic_op_end
}

// IsCompare returns true if op is a comparison operator.
func (op BinaryOp) IsCompare() bool {
	return op > compare_op_begin && op < compare_op_end
}

// BinaryExpr represents an operation on two expressions of equal width.
// Comparisons produce a 1-bit result.
type BinaryExpr struct {
	Op  BinaryOp
	LHS Expr
	RHS Expr
}

// NewBinaryExpr returns a new instance of BinaryExpr.
func NewBinaryExpr(op BinaryOp, lhs, rhs Expr) (Expr, error) {
	assert(op.IsArithmetic() || op.IsCompare(), "invalid binary op: %s", op)
	if lw, rw := ExprWidth(lhs), ExprWidth(rhs); lw != rw {
		return nil, &WidthError{Op: op.String(), Widths: []uint{lw, rw}}
	}
	return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs}, nil
}

// String returns the string representation of the expression.
func (e *BinaryExpr) String() string {
	if e.Op.IsCompare() {
		return fmt.Sprintf("(ite (%s %s %s) (_ bv1 1) (_ bv0 1))", e.Op.SMT(), e.LHS, e.RHS)
	}
	return fmt.Sprintf("(%s %s %s)", e.Op.SMT(), e.LHS, e.RHS)
}

// ConcatExpr represents a concatenation of two expressions.
type ConcatExpr struct {
	MSB Expr
	LSB Expr
}

// NewConcatExpr returns a new instance of ConcatExpr.
func NewConcatExpr(msb, lsb Expr) (Expr, error) {
	if mw, lw := ExprWidth(msb), ExprWidth(lsb); mw+lw > Width64 {
		return nil, &WidthError{Op: "concat", Widths: []uint{mw, lw}}
	}
	return &ConcatExpr{MSB: msb, LSB: lsb}, nil
}

// String returns the string representation of the expression.
func (e *ConcatExpr) String() string {
	return fmt.Sprintf("(concat %s %s)", e.MSB, e.LSB)
}

// ExtractExpr represents the extraction of bits high..low, inclusive.
type ExtractExpr struct {
	Expr Expr
	High uint
	Low  uint
}

// NewExtractExpr returns a new instance of ExtractExpr.
func NewExtractExpr(expr Expr, high, low uint) (Expr, error) {
	if w := ExprWidth(expr); low > high || high >= w {
		return nil, &WidthError{Op: fmt.Sprintf("extract %d %d", high, low), Widths: []uint{w}}
	}
	return &ExtractExpr{Expr: expr, High: high, Low: low}, nil
}

// newExtractExpr returns an extraction that is known to be in range.
func newExtractExpr(expr Expr, high, low uint) Expr {
	assert(low <= high && high < ExprWidth(expr), "extract out of bounds: %d..%d of %d", high, low, ExprWidth(expr))
	return &ExtractExpr{Expr: expr, High: high, Low: low}
}

// String returns the string representation of the expression.
func (e *ExtractExpr) String() string {
	return fmt.Sprintf("((_ extract %d %d) %s)", e.High, e.Low, e.Expr)
}

// NotExpr represents a bitwise not of an expression.
type NotExpr struct {
	Expr Expr
}

// NewNotExpr returns a new instance of NotExpr.
func NewNotExpr(expr Expr) Expr {
	return &NotExpr{Expr: expr}
}

// String returns the string representation of the expression.
func (e *NotExpr) String() string {
	return fmt.Sprintf("(bvnot %s)", e.Expr)
}

// CastExpr represents the sign or zero extension of an expression to a wider width.
type CastExpr struct {
	Src    Expr
	Width  uint
	Signed bool
}

// NewCastExpr returns a new instance of CastExpr. Width must not be narrower
// than the source; use NewExtractExpr to truncate.
func NewCastExpr(src Expr, width uint, signed bool) (Expr, error) {
	if sw := ExprWidth(src); width < sw || !validWidth(width) {
		op := "zero_extend"
		if signed {
			op = "sign_extend"
		}
		return nil, &WidthError{Op: op, Widths: []uint{sw, width}}
	}
	return &CastExpr{Src: src, Width: width, Signed: signed}, nil
}

// String returns the string representation of the expression.
func (e *CastExpr) String() string {
	n := e.Width - ExprWidth(e.Src)
	if e.Signed {
		return fmt.Sprintf("((_ sign_extend %d) %s)", n, e.Src)
	}
	return fmt.Sprintf("((_ zero_extend %d) %s)", n, e.Src)
}

// IteExpr represents a conditional select. Cond is a 1-bit expression.
type IteExpr struct {
	Cond Expr
	Then Expr
	Else Expr
}

// NewIteExpr returns a new instance of IteExpr.
func NewIteExpr(cond, then, els Expr) (Expr, error) {
	cw, tw, ew := ExprWidth(cond), ExprWidth(then), ExprWidth(els)
	if cw != WidthBool || tw != ew {
		return nil, &WidthError{Op: "ite", Widths: []uint{cw, tw, ew}}
	}
	return &IteExpr{Cond: cond, Then: then, Else: els}, nil
}

// String returns the string representation of the expression.
func (e *IteExpr) String() string {
	return fmt.Sprintf("(ite (= %s (_ bv1 1)) %s %s)", e.Cond, e.Then, e.Else)
}

// VariableExpr represents a symbolic input variable.
type VariableExpr struct {
	Var *SymbolicVariable
}

// NewVariableExpr returns a new instance of VariableExpr.
func NewVariableExpr(v *SymbolicVariable) Expr {
	return &VariableExpr{Var: v}
}

// String returns the string representation of the expression.
func (e *VariableExpr) String() string { return e.Var.Name() }

// RefExpr refers to the formula of another symbolic unit.
type RefExpr struct {
	Unit *SymbolicExpression
}

// NewRefExpr returns a new instance of RefExpr.
func NewRefExpr(unit *SymbolicExpression) Expr {
	return &RefExpr{Unit: unit}
}

// String returns the string representation of the expression.
func (e *RefExpr) String() string { return e.Unit.Name() }

// ConstantExpr represents a constant bit-vector of up to 64 bits.
type ConstantExpr struct {
	Value uint64
	Width uint
}

// NewConstantExpr returns a new instance of ConstantExpr.
func NewConstantExpr(value uint64, width uint) *ConstantExpr {
	assert(validWidth(width), "invalid constant width: %d", width)
	return &ConstantExpr{
		Value: value & bitmask(width),
		Width: width,
	}
}

// NewConstantExpr64 returns a 64-bit constant expression.
func NewConstantExpr64(value uint64) *ConstantExpr {
	return NewConstantExpr(value, Width64)
}

// NewBoolConstantExpr is an ease of use function for creating constant boolean expressions.
func NewBoolConstantExpr(value bool) *ConstantExpr {
	if value {
		return &ConstantExpr{Value: 1, Width: WidthBool}
	}
	return &ConstantExpr{Value: 0, Width: WidthBool}
}

// String returns the string representation of the expression.
func (e *ConstantExpr) String() string {
	return fmt.Sprintf("(_ bv%d %d)", e.Value, e.Width)
}

// IsTrue returns true if this is a boolean true expression.
func (e *ConstantExpr) IsTrue() bool {
	return e.Width == WidthBool && e.Value != 0
}

// IsFalse returns true if this is a boolean false expression.
func (e *ConstantExpr) IsFalse() bool {
	return e.Width == WidthBool && e.Value == 0
}

// IsAllOnes returns true if all bits in the value are one.
func (e *ConstantExpr) IsAllOnes() bool {
	return e.Value == bitmask(e.Width)
}

// Signed returns the value interpreted as a two's complement integer.
func (e *ConstantExpr) Signed() int64 {
	return signExtend(e.Value, e.Width)
}

// Add returns the sum of e and other.
func (e *ConstantExpr) Add(other *ConstantExpr) *ConstantExpr {
	return NewConstantExpr(e.Value+other.Value, e.Width)
}

// Sub returns the difference of e and other.
func (e *ConstantExpr) Sub(other *ConstantExpr) *ConstantExpr {
	return NewConstantExpr(e.Value-other.Value, e.Width)
}

// Mul returns the product of e and other.
func (e *ConstantExpr) Mul(other *ConstantExpr) *ConstantExpr {
	return NewConstantExpr(e.Value*other.Value, e.Width)
}

// UDiv returns the quotient of unsigned division of e and other.
// Division by zero yields all ones, matching bvudiv.
func (e *ConstantExpr) UDiv(other *ConstantExpr) *ConstantExpr {
	if other.Value == 0 {
		return NewConstantExpr(bitmask(e.Width), e.Width)
	}
	return NewConstantExpr(e.Value/other.Value, e.Width)
}

// SDiv returns the quotient of signed division of e and other.
func (e *ConstantExpr) SDiv(other *ConstantExpr) *ConstantExpr {
	a, b := e.Signed(), other.Signed()
	if b == 0 {
		if a < 0 {
			return NewConstantExpr(1, e.Width)
		}
		return NewConstantExpr(bitmask(e.Width), e.Width)
	} else if b == -1 {
		return NewConstantExpr(uint64(-a), e.Width)
	}
	return NewConstantExpr(uint64(a/b), e.Width)
}

// URem returns the remainder of unsigned division of e and other.
// A zero divisor returns e, matching bvurem.
func (e *ConstantExpr) URem(other *ConstantExpr) *ConstantExpr {
	if other.Value == 0 {
		return e
	}
	return NewConstantExpr(e.Value%other.Value, e.Width)
}

// SRem returns the remainder of signed division of e and other.
func (e *ConstantExpr) SRem(other *ConstantExpr) *ConstantExpr {
	a, b := e.Signed(), other.Signed()
	if b == 0 {
		return e
	} else if b == -1 {
		return NewConstantExpr(0, e.Width)
	}
	return NewConstantExpr(uint64(a%b), e.Width)
}

// And returns the bitwise AND of e and other.
func (e *ConstantExpr) And(other *ConstantExpr) *ConstantExpr {
	return NewConstantExpr(e.Value&other.Value, e.Width)
}

// Or returns the bitwise OR of e and other.
func (e *ConstantExpr) Or(other *ConstantExpr) *ConstantExpr {
	return NewConstantExpr(e.Value|other.Value, e.Width)
}

// Xor returns the bitwise XOR of e and other.
func (e *ConstantExpr) Xor(other *ConstantExpr) *ConstantExpr {
	return NewConstantExpr(e.Value^other.Value, e.Width)
}

// Shl returns the value of e shifted left by other number of bits.
func (e *ConstantExpr) Shl(other *ConstantExpr) *ConstantExpr {
	if other.Value >= uint64(e.Width) {
		return NewConstantExpr(0, e.Width)
	}
	return NewConstantExpr(e.Value<<other.Value, e.Width)
}

// LShr returns the value of e logically shifted right by other number of bits.
func (e *ConstantExpr) LShr(other *ConstantExpr) *ConstantExpr {
	if other.Value >= uint64(e.Width) {
		return NewConstantExpr(0, e.Width)
	}
	return NewConstantExpr(e.Value>>other.Value, e.Width)
}

// AShr returns the value of e arithmetically shifted right by other number of bits.
func (e *ConstantExpr) AShr(other *ConstantExpr) *ConstantExpr {
	n := other.Value
	if n >= uint64(e.Width) {
		n = uint64(e.Width) - 1
	}
	return NewConstantExpr(uint64(e.Signed()>>n), e.Width)
}

// Compare returns the 1-bit result of comparing e to other with op.
func (e *ConstantExpr) Compare(op BinaryOp, other *ConstantExpr) *ConstantExpr {
	a, b := e.Value, other.Value
	sa, sb := e.Signed(), other.Signed()
	switch op {
	case EQ:
		return NewBoolConstantExpr(a == b)
	case NE:
		return NewBoolConstantExpr(a != b)
	case ULT:
		return NewBoolConstantExpr(a < b)
	case ULE:
		return NewBoolConstantExpr(a <= b)
	case UGT:
		return NewBoolConstantExpr(a > b)
	case UGE:
		return NewBoolConstantExpr(a >= b)
	case SLT:
		return NewBoolConstantExpr(sa < sb)
	case SLE:
		return NewBoolConstantExpr(sa <= sb)
	case SGT:
		return NewBoolConstantExpr(sa > sb)
	case SGE:
		return NewBoolConstantExpr(sa >= sb)
	default:
		panic(fmt.Sprintf("not a comparison: %s", op))
	}
}

// Apply returns the result of the binary operation op on e and other.
func (e *ConstantExpr) Apply(op BinaryOp, other *ConstantExpr) *ConstantExpr {
	switch op {
	case ADD:
		return e.Add(other)
	case SUB:
		return e.Sub(other)
	case MUL:
		return e.Mul(other)
	case UDIV:
		return e.UDiv(other)
	case SDIV:
		return e.SDiv(other)
	case UREM:
		return e.URem(other)
	case SREM:
		return e.SRem(other)
	case AND:
		return e.And(other)
	case OR:
		return e.Or(other)
	case XOR:
		return e.Xor(other)
	case SHL:
		return e.Shl(other)
	case LSHR:
		return e.LShr(other)
	case ASHR:
		return e.AShr(other)
	default:
		return e.Compare(op, other)
	}
}

// ZExt returns the zero-extension of e to a new width.
func (e *ConstantExpr) ZExt(width uint) *ConstantExpr {
	if e.Width == width {
		return e
	}
	return NewConstantExpr(e.Value, width)
}

// SExt returns the sign-extension of e to a new width.
func (e *ConstantExpr) SExt(width uint) *ConstantExpr {
	if e.Width == width {
		return e
	}
	return NewConstantExpr(uint64(e.Signed()), width)
}

// Not returns the bitwise NOT of the expression.
func (e *ConstantExpr) Not() *ConstantExpr {
	return NewConstantExpr(^e.Value, e.Width)
}

// Extract returns bits high..low of e.
func (e *ConstantExpr) Extract(high, low uint) *ConstantExpr {
	return NewConstantExpr(e.Value>>low, high-low+1)
}

// Concat returns the concatenation of e and lsb.
func (e *ConstantExpr) Concat(lsb *ConstantExpr) *ConstantExpr {
	return NewConstantExpr((e.Value<<lsb.Width)|lsb.Value, e.Width+lsb.Width)
}

func bitmask(width uint) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (1 << width) - 1
}

// signExtend interprets the low width bits of v as a two's complement integer.
func signExtend(v uint64, width uint) int64 {
	if width >= 64 {
		return int64(v)
	}
	shift := 64 - width
	return int64(v<<shift) >> shift
}

// IsConstantExpr returns true if expr is an instance of ConstantExpr.
func IsConstantExpr(expr Expr) bool {
	_, ok := expr.(*ConstantExpr)
	return ok
}

// CompareExpr returns an integer comparing two expressions structurally.
// The result will be 0 if a==b, -1 if a < b, and +1 if a > b.
// Variables and references compare by id.
func CompareExpr(a, b Expr) int {
	if a == nil && b != nil {
		return -1
	} else if a != nil && b == nil {
		return 1
	} else if a == nil && b == nil {
		return 0
	} else if a == b {
		return 0
	}

	if ak, bk := exprKind(a), exprKind(b); ak < bk {
		return -1
	} else if ak > bk {
		return 1
	}

	switch a := a.(type) {
	case *ConstantExpr:
		return compareConstantExpr(a, b.(*ConstantExpr))
	case *VariableExpr:
		return compareUint64(a.Var.ID, b.(*VariableExpr).Var.ID)
	case *RefExpr:
		return compareUint64(a.Unit.ID, b.(*RefExpr).Unit.ID)
	case *ConcatExpr:
		return compareConcatExpr(a, b.(*ConcatExpr))
	case *ExtractExpr:
		return compareExtractExpr(a, b.(*ExtractExpr))
	case *NotExpr:
		return CompareExpr(a.Expr, b.(*NotExpr).Expr)
	case *CastExpr:
		return compareCastExpr(a, b.(*CastExpr))
	case *IteExpr:
		return compareIteExpr(a, b.(*IteExpr))
	case *BinaryExpr:
		return compareBinaryExpr(a, b.(*BinaryExpr))
	default:
		panic("unreachable")
	}
}

func compareUint64(a, b uint64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

func compareConstantExpr(a, b *ConstantExpr) int {
	if cmp := compareUint64(uint64(a.Width), uint64(b.Width)); cmp != 0 {
		return cmp
	}
	return compareUint64(a.Value, b.Value)
}

func compareConcatExpr(a, b *ConcatExpr) int {
	if cmp := CompareExpr(a.MSB, b.MSB); cmp != 0 {
		return cmp
	}
	return CompareExpr(a.LSB, b.LSB)
}

func compareExtractExpr(a, b *ExtractExpr) int {
	if cmp := compareUint64(uint64(a.High), uint64(b.High)); cmp != 0 {
		return cmp
	}
	if cmp := compareUint64(uint64(a.Low), uint64(b.Low)); cmp != 0 {
		return cmp
	}
	return CompareExpr(a.Expr, b.Expr)
}

func compareCastExpr(a, b *CastExpr) int {
	if a.Signed && !b.Signed {
		return -1
	} else if !a.Signed && b.Signed {
		return 1
	}
	if cmp := compareUint64(uint64(a.Width), uint64(b.Width)); cmp != 0 {
		return cmp
	}
	return CompareExpr(a.Src, b.Src)
}

func compareIteExpr(a, b *IteExpr) int {
	if cmp := CompareExpr(a.Cond, b.Cond); cmp != 0 {
		return cmp
	}
	if cmp := CompareExpr(a.Then, b.Then); cmp != 0 {
		return cmp
	}
	return CompareExpr(a.Else, b.Else)
}

func compareBinaryExpr(a, b *BinaryExpr) int {
	if a.Op < b.Op {
		return -1
	} else if a.Op > b.Op {
		return 1
	}
	if cmp := CompareExpr(a.LHS, b.LHS); cmp != 0 {
		return cmp
	}
	return CompareExpr(a.RHS, b.RHS)
}

// exprKind returns a numeric value for the type of expression.
// Only used internally for equality checks and sorting.
func exprKind(expr Expr) int {
	switch expr.(type) {
	case *ConstantExpr:
		return 1
	case *VariableExpr:
		return 2
	case *RefExpr:
		return 3
	case *ConcatExpr:
		return 4
	case *ExtractExpr:
		return 5
	case *NotExpr:
		return 6
	case *CastExpr:
		return 7
	case *IteExpr:
		return 8
	case *BinaryExpr:
		return 9
	default:
		panic("unreachable")
	}
}

// ExprVisitor represents a visitor that can be passed to WalkExpr().
type ExprVisitor interface {
	// Executed for every visited node. Return nil to skip the children.
	Visit(expr Expr) ExprVisitor
}

// WalkExpr traverses expr depth-first. References are leaves; their
// formulas are not visited.
func WalkExpr(v ExprVisitor, expr Expr) {
	if v = v.Visit(expr); v == nil {
		return
	}

	switch expr := expr.(type) {
	case *BinaryExpr:
		WalkExpr(v, expr.LHS)
		WalkExpr(v, expr.RHS)
	case *CastExpr:
		WalkExpr(v, expr.Src)
	case *ConcatExpr:
		WalkExpr(v, expr.MSB)
		WalkExpr(v, expr.LSB)
	case *ExtractExpr:
		WalkExpr(v, expr.Expr)
	case *NotExpr:
		WalkExpr(v, expr.Expr)
	case *IteExpr:
		WalkExpr(v, expr.Cond)
		WalkExpr(v, expr.Then)
		WalkExpr(v, expr.Else)
	case *ConstantExpr, *VariableExpr, *RefExpr:
		// nop
	default:
		panic("unreachable")
	}
}

// FindRefs returns the symbolic units referenced directly by the expressions,
// sorted by id.
func FindRefs(exprs ...Expr) []*SymbolicExpression {
	v := &leafVisitor{refs: make(map[uint64]*SymbolicExpression)}
	for _, expr := range exprs {
		WalkExpr(v, expr)
	}

	a := make([]*SymbolicExpression, 0, len(v.refs))
	for _, u := range v.refs {
		a = append(a, u)
	}
	sort.Slice(a, func(i, j int) bool { return a[i].ID < a[j].ID })
	return a
}

// FindVariables returns the symbolic variables used directly by the
// expressions, sorted by id.
func FindVariables(exprs ...Expr) []*SymbolicVariable {
	v := &leafVisitor{vars: make(map[uint64]*SymbolicVariable)}
	for _, expr := range exprs {
		WalkExpr(v, expr)
	}

	a := make([]*SymbolicVariable, 0, len(v.vars))
	for _, sv := range v.vars {
		a = append(a, sv)
	}
	sort.Slice(a, func(i, j int) bool { return a[i].ID < a[j].ID })
	return a
}

type leafVisitor struct {
	refs map[uint64]*SymbolicExpression
	vars map[uint64]*SymbolicVariable
}

func (v *leafVisitor) Visit(expr Expr) ExprVisitor {
	switch expr := expr.(type) {
	case *RefExpr:
		if v.refs != nil {
			v.refs[expr.Unit.ID] = expr.Unit
		}
	case *VariableExpr:
		if v.vars != nil {
			v.vars[expr.Var.ID] = expr.Var
		}
	}
	return v
}

package taintlift

import (
	"github.com/cespare/xxhash/v2"
)

// Builder constructs expressions and records the first construction error.
// Once an error is recorded every later call returns nil, so a handler can
// build a whole formula and check Err once before binding it.
type Builder struct {
	// Optional. When set, structurally equal nodes are shared.
	Interner *Interner

	err error
}

// Err returns the first error encountered while building.
func (b *Builder) Err() error { return b.err }

func (b *Builder) fail(err error) Expr {
	if b.err == nil {
		b.err = err
	}
	return nil
}

func (b *Builder) intern(e Expr) Expr {
	if b.Interner == nil {
		return e
	}
	return b.Interner.Intern(e)
}

// Const returns a constant of the given width.
func (b *Builder) Const(value uint64, width uint) Expr {
	if b.err != nil {
		return nil
	}
	return b.intern(NewConstantExpr(value, width))
}

// Binary returns op(lhs, rhs).
func (b *Builder) Binary(op BinaryOp, lhs, rhs Expr) Expr {
	if b.err != nil {
		return nil
	}
	e, err := NewBinaryExpr(op, lhs, rhs)
	if err != nil {
		return b.fail(err)
	}
	return b.intern(e)
}

// Extract returns bits high..low of e.
func (b *Builder) Extract(e Expr, high, low uint) Expr {
	if b.err != nil {
		return nil
	}
	x, err := NewExtractExpr(e, high, low)
	if err != nil {
		return b.fail(err)
	}
	return b.intern(x)
}

// Bit returns bit i of e as a 1-bit expression.
func (b *Builder) Bit(e Expr, i uint) Expr { return b.Extract(e, i, i) }

// ZExt returns e zero-extended to width.
func (b *Builder) ZExt(e Expr, width uint) Expr { return b.cast(e, width, false) }

// SExt returns e sign-extended to width.
func (b *Builder) SExt(e Expr, width uint) Expr { return b.cast(e, width, true) }

func (b *Builder) cast(e Expr, width uint, signed bool) Expr {
	if b.err != nil {
		return nil
	}
	x, err := NewCastExpr(e, width, signed)
	if err != nil {
		return b.fail(err)
	}
	return b.intern(x)
}

// Concat concatenates the expressions, most significant first.
func (b *Builder) Concat(exprs ...Expr) Expr {
	if b.err != nil {
		return nil
	}
	assert(len(exprs) > 0, "concat: no operands")
	e := exprs[0]
	for _, lsb := range exprs[1:] {
		x, err := NewConcatExpr(e, lsb)
		if err != nil {
			return b.fail(err)
		}
		e = b.intern(x)
	}
	return e
}

// Not returns the bitwise complement of e.
func (b *Builder) Not(e Expr) Expr {
	if b.err != nil {
		return nil
	}
	return b.intern(NewNotExpr(e))
}

// Ite returns a conditional select on the 1-bit cond.
func (b *Builder) Ite(cond, then, els Expr) Expr {
	if b.err != nil {
		return nil
	}
	e, err := NewIteExpr(cond, then, els)
	if err != nil {
		return b.fail(err)
	}
	return b.intern(e)
}

// Interner shares structurally equal expression nodes. Nodes are bucketed
// by an xxhash of their text and compared with CompareExpr.
type Interner struct {
	m map[uint64][]Expr

	lookups int
	hits    int
}

// NewInterner returns a new instance of Interner.
func NewInterner() *Interner {
	return &Interner{m: make(map[uint64][]Expr)}
}

// Intern returns a previously seen node equal to e, or e itself.
func (in *Interner) Intern(e Expr) Expr {
	in.lookups++
	h := xxhash.Sum64String(e.String())
	for _, other := range in.m[h] {
		if CompareExpr(e, other) == 0 {
			in.hits++
			return other
		}
	}
	in.m[h] = append(in.m[h], e)
	return e
}

// Len returns the number of distinct nodes held.
func (in *Interner) Len() int {
	var n int
	for _, a := range in.m {
		n += len(a)
	}
	return n
}

// Stats returns the number of lookups and the number that were shared.
func (in *Interner) Stats() (lookups, hits int) { return in.lookups, in.hits }

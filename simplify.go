package taintlift

// Simplify returns an equivalent expression with constants folded and
// trivial identities removed. The input is not modified. References are
// left in place.
func Simplify(expr Expr) Expr {
	switch expr := expr.(type) {
	case *BinaryExpr:
		return simplifyBinary(expr.Op, Simplify(expr.LHS), Simplify(expr.RHS))
	case *CastExpr:
		return simplifyCast(Simplify(expr.Src), expr.Width, expr.Signed)
	case *ConcatExpr:
		return simplifyConcat(Simplify(expr.MSB), Simplify(expr.LSB))
	case *ExtractExpr:
		return simplifyExtract(Simplify(expr.Expr), expr.High, expr.Low)
	case *NotExpr:
		return simplifyNot(Simplify(expr.Expr))
	case *IteExpr:
		return simplifyIte(Simplify(expr.Cond), Simplify(expr.Then), Simplify(expr.Else))
	default:
		return expr
	}
}

func simplifyBinary(op BinaryOp, lhs, rhs Expr) Expr {
	// Compute constant if both sides are constant.
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Apply(op, rhs)
		}
	}

	w := ExprWidth(lhs)
	same := CompareExpr(lhs, rhs) == 0

	// Move constant expression to left hand side for commutative ops.
	switch op {
	case ADD, MUL, AND, OR, XOR, EQ, NE:
		if !IsConstantExpr(lhs) && IsConstantExpr(rhs) {
			lhs, rhs = rhs, lhs
		}
	}
	k, _ := lhs.(*ConstantExpr)
	rk, _ := rhs.(*ConstantExpr)

	switch op {
	case ADD:
		if k != nil && k.Value == 0 {
			return rhs
		}
	case SUB:
		if same {
			return NewConstantExpr(0, w)
		} else if rk != nil && rk.Value == 0 {
			return lhs
		}
	case MUL:
		if k != nil && k.Value == 1 {
			return rhs
		} else if k != nil && k.Value == 0 {
			return k
		}
	case AND:
		if same {
			return lhs
		} else if k != nil && k.Value == 0 {
			return k
		} else if k != nil && k.IsAllOnes() {
			return rhs
		}
	case OR:
		if same {
			return lhs
		} else if k != nil && k.Value == 0 {
			return rhs
		} else if k != nil && k.IsAllOnes() {
			return k
		}
	case XOR:
		if same {
			return NewConstantExpr(0, w)
		} else if k != nil && k.Value == 0 {
			return rhs
		}
	case SHL, LSHR, ASHR:
		if rk != nil && rk.Value == 0 {
			return lhs
		}
	case EQ, ULE, UGE, SLE, SGE:
		if same {
			return NewBoolConstantExpr(true)
		}
	case NE, ULT, UGT, SLT, SGT:
		if same {
			return NewBoolConstantExpr(false)
		}
	}
	return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs}
}

func simplifyCast(src Expr, width uint, signed bool) Expr {
	if ExprWidth(src) == width { // nop
		return src
	} else if src, ok := src.(*ConstantExpr); ok {
		if signed {
			return src.SExt(width)
		}
		return src.ZExt(width)
	}
	return &CastExpr{Src: src, Width: width, Signed: signed}
}

func simplifyConcat(msb, lsb Expr) Expr {
	// Combine expressions if they are both constants.
	if msb, ok := msb.(*ConstantExpr); ok {
		if lsb, ok := lsb.(*ConstantExpr); ok {
			return msb.Concat(lsb)
		}
	}

	// Combine extract expressions if they are contiguous.
	if msb, ok := msb.(*ExtractExpr); ok {
		if lsb, ok := lsb.(*ExtractExpr); ok {
			if lsb.High+1 == msb.Low && CompareExpr(msb.Expr, lsb.Expr) == 0 {
				return simplifyExtract(msb.Expr, msb.High, lsb.Low)
			}
		}
	}

	// Zero-extension written as a concatenation.
	if msb, ok := msb.(*ConstantExpr); ok && msb.Value == 0 {
		return &CastExpr{Src: lsb, Width: msb.Width + ExprWidth(lsb)}
	}
	return &ConcatExpr{MSB: msb, LSB: lsb}
}

func simplifyExtract(expr Expr, high, low uint) Expr {
	if low == 0 && high+1 == ExprWidth(expr) {
		return expr
	}

	switch expr := expr.(type) {
	case *ConstantExpr:
		return expr.Extract(high, low)

	case *ExtractExpr:
		return simplifyExtract(expr.Expr, expr.Low+high, expr.Low+low)

	case *ConcatExpr:
		lw := ExprWidth(expr.LSB)

		// Directly extract from MSB if we skip over LSB.
		if low >= lw {
			return simplifyExtract(expr.MSB, high-lw, low-lw)
		}

		// Directly extract from LSB if we skip over MSB.
		if high < lw {
			return simplifyExtract(expr.LSB, high, low)
		}

		// E(C(x,y)) = C(E(x), E(y))
		return simplifyConcat(
			simplifyExtract(expr.MSB, high-lw, 0),
			simplifyExtract(expr.LSB, lw-1, low),
		)

	case *CastExpr:
		sw := ExprWidth(expr.Src)
		if high < sw {
			return simplifyExtract(expr.Src, high, low)
		} else if !expr.Signed && low >= sw {
			return NewConstantExpr(0, high-low+1)
		}
	}
	return &ExtractExpr{Expr: expr, High: high, Low: low}
}

func simplifyNot(expr Expr) Expr {
	switch expr := expr.(type) {
	case *ConstantExpr:
		return expr.Not()
	case *NotExpr:
		return expr.Expr
	}
	return &NotExpr{Expr: expr}
}

func simplifyIte(cond, then, els Expr) Expr {
	if cond, ok := cond.(*ConstantExpr); ok {
		if cond.IsTrue() {
			return then
		}
		return els
	}
	if CompareExpr(then, els) == 0 {
		return then
	}
	return &IteExpr{Cond: cond, Then: then, Else: els}
}

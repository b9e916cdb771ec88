package taintlift

func arithHandlers() []*Handler {
	binary := []Shape{ShapeRegReg, ShapeRegMem, ShapeRegImm, ShapeMemReg, ShapeMemImm}
	unary := []Shape{ShapeReg, ShapeMem}

	return []*Handler{
		{Mnemonic: "ADD", Shapes: shapes(semAlu(ADD, false, true), binary...)},
		{Mnemonic: "ADC", Shapes: shapes(semAlu(ADD, true, true), binary...)},
		{Mnemonic: "SUB", Shapes: shapes(semAlu(SUB, false, true), binary...)},
		{Mnemonic: "SBB", Shapes: shapes(semAlu(SUB, true, true), binary...)},
		{Mnemonic: "CMP", Shapes: shapes(semAlu(SUB, false, false), binary...)},
		{Mnemonic: "AND", Shapes: shapes(semAlu(AND, false, true), binary...)},
		{Mnemonic: "OR", Shapes: shapes(semAlu(OR, false, true), binary...)},
		{Mnemonic: "XOR", Shapes: shapes(semAlu(XOR, false, true), binary...)},
		{Mnemonic: "TEST", Shapes: shapes(semAlu(AND, false, false), ShapeRegReg, ShapeRegImm, ShapeMemReg, ShapeMemImm)},
		{Mnemonic: "INC", Shapes: shapes(semIncDec(ADD), unary...)},
		{Mnemonic: "DEC", Shapes: shapes(semIncDec(SUB), unary...)},
		{Mnemonic: "NEG", Shapes: shapes(semNeg, unary...)},
		{Mnemonic: "NOT", Shapes: shapes(semNot, unary...)},
	}
}

var flagComments = [...]string{
	CF: "Carry flag",
	PF: "Parity flag",
	AF: "Adjust flag",
	ZF: "Zero flag",
	SF: "Sign flag",
	OF: "Overflow flag",
	DF: "Direction flag",
}

// semAlu implements the two-operand arithmetic and logic instructions.
// With carry set the carry flag is added (ADC) or subtracted (SBB). Without
// store only the flags are written (CMP, TEST).
func semAlu(op BinaryOp, carry, store bool) ShapeFunc {
	return func(f *Frame) error {
		dst, src := f.Op(0), f.Op(1)
		w := OperandWidth(dst)
		a, b := f.Read(dst), f.ReadAs(src, w)

		r := f.Binary(op, a, b)
		srcs := []Operand{dst, src}
		if carry {
			r = f.Binary(op, r, f.ZExt(f.Ctx.ReadFlag(CF), w))
			srcs = append(srcs, CF)
		}

		// Flags depend on the sources as they were before the write.
		tainted := f.anyTainted(srcs...)
		if isZeroIdiom(op, dst, src) {
			tainted = false
		}

		if store {
			if _, err := f.Write(dst, r, f.Comment()); err != nil {
				return err
			}
			f.Ctx.SetTaint(dst, tainted)
			r = f.Read(dst)
		}
		if err := f.Err(); err != nil {
			return err
		}

		switch op {
		case ADD:
			return f.setFlags(tainted, []flagUpdate{
				{AF, f.af(a, b, r)},
				{CF, f.cfAdd(a, b, r, w)},
				{OF, f.ofAdd(a, b, r, w)},
				{PF, f.pf(r)},
				{SF, f.sf(r, w)},
				{ZF, f.zf(r, w)},
			})
		case SUB:
			return f.setFlags(tainted, []flagUpdate{
				{AF, f.af(a, b, r)},
				{CF, f.cfSub(a, b, r, w)},
				{OF, f.ofSub(a, b, r, w)},
				{PF, f.pf(r)},
				{SF, f.sf(r, w)},
				{ZF, f.zf(r, w)},
			})
		default:
			if err := f.clearFlag(CF); err != nil {
				return err
			} else if err := f.clearFlag(OF); err != nil {
				return err
			} else if err := f.undefineFlag(AF); err != nil {
				return err
			}
			return f.setFlags(tainted, []flagUpdate{
				{PF, f.pf(r)},
				{SF, f.sf(r, w)},
				{ZF, f.zf(r, w)},
			})
		}
	}
}

// isZeroIdiom returns true for "xor r, r" and "sub r, r", whose result does
// not depend on r.
func isZeroIdiom(op BinaryOp, dst, src Operand) bool {
	if op != XOR && op != SUB {
		return false
	}
	a, ok1 := dst.(RegOperand)
	b, ok2 := src.(RegOperand)
	return ok1 && ok2 && a.Reg == b.Reg
}

// semIncDec implements INC and DEC. CF is not affected.
func semIncDec(op BinaryOp) ShapeFunc {
	return func(f *Frame) error {
		dst := f.Op(0)
		w := OperandWidth(dst)
		a, one := f.Read(dst), f.Const(1, w)
		tainted := f.Ctx.IsTainted(dst)

		if _, err := f.Write(dst, f.Binary(op, a, one), f.Comment()); err != nil {
			return err
		}
		f.Ctx.SpreadCombine(dst, dst)
		r := f.Read(dst)

		of := f.ofAdd(a, one, r, w)
		if op == SUB {
			of = f.ofSub(a, one, r, w)
		}
		return f.setFlags(tainted, []flagUpdate{
			{AF, f.af(a, one, r)},
			{OF, of},
			{PF, f.pf(r)},
			{SF, f.sf(r, w)},
			{ZF, f.zf(r, w)},
		})
	}
}

func semNeg(f *Frame) error {
	dst := f.Op(0)
	w := OperandWidth(dst)
	a, zero := f.Read(dst), f.Const(0, w)
	tainted := f.Ctx.IsTainted(dst)

	if _, err := f.Write(dst, f.Binary(SUB, zero, a), f.Comment()); err != nil {
		return err
	}
	f.Ctx.SpreadCombine(dst, dst)
	r := f.Read(dst)

	return f.setFlags(tainted, []flagUpdate{
		{AF, f.af(zero, a, r)},
		{CF, f.Binary(NE, a, zero)},
		{OF, f.ofSub(zero, a, r, w)},
		{PF, f.pf(r)},
		{SF, f.sf(r, w)},
		{ZF, f.zf(r, w)},
	})
}

func semNot(f *Frame) error {
	dst := f.Op(0)
	if _, err := f.Write(dst, f.Not(f.Read(dst)), f.Comment()); err != nil {
		return err
	}
	f.Ctx.SpreadCombine(dst, dst)
	return nil
}

// flagUpdate is a formula to bind to a flag.
type flagUpdate struct {
	flag Flag
	expr Expr
}

// setFlags binds the updates in order, giving each flag the same taint.
func (f *Frame) setFlags(tainted bool, updates []flagUpdate) error {
	for _, u := range updates {
		if _, err := f.Write(u.flag, u.expr, flagComments[u.flag]); err != nil {
			return err
		}
		f.Ctx.SetTaint(u.flag, tainted)
	}
	return nil
}

func (f *Frame) clearFlag(flag Flag) error {
	return f.setFlags(false, []flagUpdate{{flag, f.Const(0, WidthBool)}})
}

// undefineFlag binds flag to a fresh variable of origin UNDEFINED.
func (f *Frame) undefineFlag(flag Flag) error {
	v := f.Ctx.NewUndefinedVar(WidthBool, flag.String()+" undefined after "+f.Insn.Disasm)
	return f.setFlags(false, []flagUpdate{{flag, NewVariableExpr(v)}})
}

// cfAdd is the carry out of the most significant bit of r = a + b.
func (f *Frame) cfAdd(a, b, r Expr, w uint) Expr {
	ab := f.Binary(XOR, a, b)
	return f.Bit(f.Binary(XOR, f.Binary(AND, a, b), f.Binary(AND, f.Binary(XOR, ab, r), ab)), w-1)
}

// ofAdd is set when a and b have the same sign and r differs from it.
func (f *Frame) ofAdd(a, b, r Expr, w uint) Expr {
	return f.Bit(f.Binary(AND, f.Binary(XOR, a, f.Not(b)), f.Binary(XOR, a, r)), w-1)
}

// cfSub is the borrow out of the most significant bit of r = a - b.
func (f *Frame) cfSub(a, b, r Expr, w uint) Expr {
	return f.Bit(f.Binary(XOR,
		f.Binary(XOR, a, f.Binary(XOR, b, r)),
		f.Binary(AND, f.Binary(XOR, a, r), f.Binary(XOR, a, b)),
	), w-1)
}

// ofSub is set when a and b have different signs and r differs from a.
func (f *Frame) ofSub(a, b, r Expr, w uint) Expr {
	return f.Bit(f.Binary(AND, f.Binary(XOR, a, b), f.Binary(XOR, a, r)), w-1)
}

// af is the carry or borrow out of bit 3.
func (f *Frame) af(a, b, r Expr) Expr {
	return f.Bit(f.Binary(XOR, f.Binary(XOR, a, b), r), 4)
}

// pf is set when the low byte of r has an even number of bits set.
func (f *Frame) pf(r Expr) Expr {
	p := f.Bit(r, 0)
	for i := uint(1); i < 8; i++ {
		p = f.Binary(XOR, p, f.Bit(r, i))
	}
	return f.Not(p)
}

func (f *Frame) sf(r Expr, w uint) Expr { return f.Bit(r, w-1) }

func (f *Frame) zf(r Expr, w uint) Expr { return f.Binary(EQ, r, f.Const(0, w)) }

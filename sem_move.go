package taintlift

func moveHandlers() []*Handler {
	return []*Handler{
		{Mnemonic: "MOV", Aliases: []string{"MOVABS"}, Shapes: shapes(semMov, ShapeRegReg, ShapeRegMem, ShapeRegImm, ShapeMemReg, ShapeMemImm)},
		{Mnemonic: "MOVZX", Shapes: shapes(semExtend(false), ShapeRegReg, ShapeRegMem)},
		{Mnemonic: "MOVSX", Shapes: shapes(semExtend(true), ShapeRegReg, ShapeRegMem)},
		{Mnemonic: "MOVSXD", Shapes: shapes(semExtend(true), ShapeRegReg, ShapeRegMem)},
		{Mnemonic: "LEA", Shapes: shapes(semLea, ShapeRegMem)},
		{Mnemonic: "XCHG", Shapes: shapes(semXchg, ShapeRegReg, ShapeRegMem, ShapeMemReg)},
		{Mnemonic: "NOP", Shapes: shapes(semNop, ShapeNone, ShapeReg, ShapeMem)},
		{Mnemonic: "CBW", Shapes: shapes(semExtendAcc(AX, AL), ShapeNone)},
		{Mnemonic: "CWDE", Shapes: shapes(semExtendAcc(EAX, AX), ShapeNone)},
		{Mnemonic: "CDQE", Shapes: shapes(semExtendAcc(RAX, EAX), ShapeNone)},
		{Mnemonic: "CWD", Shapes: shapes(semSignSplit(DX, AX), ShapeNone)},
		{Mnemonic: "CDQ", Shapes: shapes(semSignSplit(EDX, EAX), ShapeNone)},
		{Mnemonic: "CQO", Shapes: shapes(semSignSplit(RDX, RAX), ShapeNone)},
	}
}

func semNop(f *Frame) error { return nil }

func semMov(f *Frame) error {
	dst, src := f.Op(0), f.Op(1)
	if _, err := f.Write(dst, f.ReadAs(src, OperandWidth(dst)), f.Comment()); err != nil {
		return err
	}
	f.Ctx.SpreadCopy(dst, src)
	return nil
}

// semExtend implements MOVZX, MOVSX and MOVSXD.
func semExtend(signed bool) ShapeFunc {
	return func(f *Frame) error {
		dst, src := f.Op(0), f.Op(1)
		var e Expr
		if signed {
			e = f.SExt(f.Read(src), OperandWidth(dst))
		} else {
			e = f.ZExt(f.Read(src), OperandWidth(dst))
		}
		if _, err := f.Write(dst, e, f.Comment()); err != nil {
			return err
		}
		f.Ctx.SpreadCopy(dst, src)
		return nil
	}
}

func semLea(f *Frame) error {
	dst := f.Op(0)
	mem := f.Op(1).(MemOperand)

	addr := f.Ctx.AddressExpr(mem)
	if w := OperandWidth(dst); w < Width64 {
		addr = f.Extract(addr, w-1, 0)
	}
	if _, err := f.Write(dst, addr, f.Comment()); err != nil {
		return err
	}

	var srcs []Operand
	if mem.Base.IsValid() {
		srcs = append(srcs, RegOperand{Reg: mem.Base})
	}
	if mem.Index.IsValid() {
		srcs = append(srcs, RegOperand{Reg: mem.Index})
	}
	f.Ctx.SpreadCombine(dst, srcs...)
	return nil
}

func semXchg(f *Frame) error {
	a, b := f.Op(0), f.Op(1)
	va, vb := f.Read(a), f.Read(b)
	ta, tb := f.Ctx.IsTainted(a), f.Ctx.IsTainted(b)

	if _, err := f.Write(a, vb, f.Comment()); err != nil {
		return err
	}
	if _, err := f.Write(b, va, f.Comment()); err != nil {
		return err
	}
	f.Ctx.SetTaint(a, tb)
	f.Ctx.SetTaint(b, ta)
	return nil
}

// semExtendAcc implements CBW, CWDE and CDQE: dst = sext(src).
func semExtendAcc(dst, src Reg) ShapeFunc {
	return func(f *Frame) error {
		e := f.SExt(f.Ctx.ReadReg(src), dst.Width())
		op := RegOperand{Reg: dst}
		if _, err := f.Write(op, e, f.Comment()); err != nil {
			return err
		}
		f.Ctx.SpreadCombine(op, op)
		return nil
	}
}

// semSignSplit implements CWD, CDQ and CQO: dst is filled with the sign of src.
func semSignSplit(dst, src Reg) ShapeFunc {
	return func(f *Frame) error {
		w := src.Width()
		e := f.Binary(ASHR, f.Ctx.ReadReg(src), f.Const(uint64(w-1), w))
		if _, err := f.Write(RegOperand{Reg: dst}, e, f.Comment()); err != nil {
			return err
		}
		f.Ctx.SpreadCopy(RegOperand{Reg: dst}, RegOperand{Reg: src})
		return nil
	}
}

// semCmov implements CMOVcc. The formula keeps both branches; taint follows
// the branch selected by the concrete flags.
func semCmov(c Cond) ShapeFunc {
	return func(f *Frame) error {
		dst, src := f.Op(0), f.Op(1)
		e := f.Ite(c.Expr(&f.Builder, f.Ctx), f.Read(src), f.Read(dst))
		taken := c.Holds(f.Ctx)
		if _, err := f.Write(dst, e, f.Comment()); err != nil {
			return err
		}
		if taken {
			f.Ctx.SpreadCopy(dst, src)
		}
		return nil
	}
}

// semSet implements SETcc.
func semSet(c Cond) ShapeFunc {
	return func(f *Frame) error {
		dst := f.Op(0)
		e := f.ZExt(c.Expr(&f.Builder, f.Ctx), Width8)
		if _, err := f.Write(dst, e, f.Comment()); err != nil {
			return err
		}
		f.Ctx.SpreadCombine(dst, flagOperands(c.Flags())...)
		return nil
	}
}

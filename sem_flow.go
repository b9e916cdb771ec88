package taintlift

func flowHandlers() []*Handler {
	return []*Handler{
		{Mnemonic: "PUSH", Shapes: shapes(semPush, ShapeReg, ShapeMem, ShapeImm)},
		{Mnemonic: "POP", Shapes: shapes(semPop, ShapeReg, ShapeMem)},
		{Mnemonic: "LEAVE", Shapes: shapes(semLeave, ShapeNone)},
		{Mnemonic: "CALL", Shapes: shapes(semCall, ShapeImm, ShapeReg, ShapeMem)},
		{Mnemonic: "RET", Shapes: shapes(semRet, ShapeNone, ShapeImm)},
		{Mnemonic: "JMP", Shapes: shapes(semJmp, ShapeImm, ShapeReg, ShapeMem)},
	}
}

// stackTop returns the memory operand for size bytes at the current stack pointer.
func (f *Frame) stackTop(size uint) MemOperand {
	return MemOperand{Base: RSP, Size: size, Address: f.Ctx.RegValue(RSP)}
}

// adjustStack binds rsp = rsp + delta. The stack pointer keeps its taint.
func (f *Frame) adjustStack(delta int64) error {
	rsp := RegOperand{Reg: RSP}
	e := f.Binary(ADD, f.Ctx.ReadReg(RSP), f.Const(uint64(delta), Width64))
	if _, err := f.Write(rsp, e, "Stack pointer"); err != nil {
		return err
	}
	f.Ctx.SpreadCombine(rsp, rsp)
	return nil
}

// push decrements the stack pointer and stores value at the new top.
func (f *Frame) push(value Expr, size uint, tainted bool) error {
	if err := f.adjustStack(-int64(size)); err != nil {
		return err
	}
	mem := f.stackTop(size)
	if _, err := f.Write(mem, value, f.Comment()); err != nil {
		return err
	}
	f.Ctx.SetTaint(mem, tainted)
	return nil
}

// pop reads size bytes at the stack top and increments the stack pointer.
func (f *Frame) pop(size uint) (Expr, bool, error) {
	mem := f.stackTop(size)
	value, tainted := f.Read(mem), f.Ctx.IsTainted(mem)
	if err := f.adjustStack(int64(size)); err != nil {
		return nil, false, err
	}
	return value, tainted, nil
}

func semPush(f *Frame) error {
	src := f.Op(0)
	w := OperandWidth(src)
	if _, ok := src.(ImmOperand); ok {
		w = Width64
	}
	return f.push(f.ReadAs(src, w), w/8, f.Ctx.IsTainted(src))
}

func semPop(f *Frame) error {
	dst := f.Op(0)
	value, tainted, err := f.pop(OperandWidth(dst) / 8)
	if err != nil {
		return err
	}
	if _, err := f.Write(dst, value, f.Comment()); err != nil {
		return err
	}
	f.Ctx.SetTaint(dst, tainted)
	return nil
}

// semLeave restores the caller's frame: rsp = rbp, then pop rbp.
func semLeave(f *Frame) error {
	rsp, rbp := RegOperand{Reg: RSP}, RegOperand{Reg: RBP}
	if _, err := f.Write(rsp, f.Ctx.ReadReg(RBP), "Stack pointer"); err != nil {
		return err
	}
	f.Ctx.SpreadCopy(rsp, rbp)

	value, tainted, err := f.pop(8)
	if err != nil {
		return err
	}
	if _, err := f.Write(rbp, value, f.Comment()); err != nil {
		return err
	}
	f.Ctx.SetTaint(rbp, tainted)
	return nil
}

func semCall(f *Frame) error {
	op := f.Op(0)
	target, tainted := f.ReadAs(op, Width64), f.Ctx.IsTainted(op)
	if err := f.push(f.Const(f.Insn.Next(), Width64), 8, false); err != nil {
		return err
	}
	f.Jump(target, tainted)
	return nil
}

func semRet(f *Frame) error {
	target, tainted, err := f.pop(8)
	if err != nil {
		return err
	}
	if len(f.Insn.Operands) == 1 {
		if err := f.adjustStack(int64(f.Op(0).(ImmOperand).Value)); err != nil {
			return err
		}
	}
	f.Jump(target, tainted)
	return nil
}

func semJmp(f *Frame) error {
	op := f.Op(0)
	f.Jump(f.ReadAs(op, Width64), f.Ctx.IsTainted(op))
	return nil
}

// semJcc binds the instruction pointer to ite(cond, target, next). Its taint
// is the taint of the flags the condition reads.
func semJcc(c Cond) ShapeFunc {
	return func(f *Frame) error {
		target := f.ReadAs(f.Op(0), Width64)
		next := f.Const(f.Insn.Next(), Width64)
		f.Jump(f.Ite(c.Expr(&f.Builder, f.Ctx), target, next), f.anyTainted(flagOperands(c.Flags())...))
		return nil
	}
}

// Package x86 adapts golang.org/x/arch/x86/x86asm to produce instructions
// with resolved operands for the translator.
package x86

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/arch/x86/x86asm"

	"github.com/taintlift/taintlift"
)

const mode64 = 64

// ErrUnsupportedOperand is returned for operands the translator cannot
// model, such as FS/GS segment accesses.
var ErrUnsupportedOperand = errors.New("unsupported operand")

// OperandError is returned when an instruction decodes but one of its
// operands is unsupported. Len allows a caller to step over it.
type OperandError struct {
	Address uint64
	Len     int
	Disasm  string
	Err     error
}

func (e *OperandError) Error() string {
	return fmt.Sprintf("decode at %#x: %s: %s", e.Address, e.Disasm, e.Err)
}

func (e *OperandError) Unwrap() error { return e.Err }

// Registers supplies the concrete register values used to resolve memory
// operand addresses. *taintlift.Context implements it.
type Registers interface {
	RegValue(reg taintlift.Reg) uint64
}

var regMap = map[x86asm.Reg]taintlift.Reg{
	x86asm.AL: taintlift.AL, x86asm.CL: taintlift.CL, x86asm.DL: taintlift.DL, x86asm.BL: taintlift.BL,
	x86asm.AH: taintlift.AH, x86asm.CH: taintlift.CH, x86asm.DH: taintlift.DH, x86asm.BH: taintlift.BH,
	x86asm.SPB: taintlift.SPL, x86asm.BPB: taintlift.BPL, x86asm.SIB: taintlift.SIL, x86asm.DIB: taintlift.DIL,
	x86asm.R8B: taintlift.R8B, x86asm.R9B: taintlift.R9B, x86asm.R10B: taintlift.R10B, x86asm.R11B: taintlift.R11B,
	x86asm.R12B: taintlift.R12B, x86asm.R13B: taintlift.R13B, x86asm.R14B: taintlift.R14B, x86asm.R15B: taintlift.R15B,

	x86asm.AX: taintlift.AX, x86asm.CX: taintlift.CX, x86asm.DX: taintlift.DX, x86asm.BX: taintlift.BX,
	x86asm.SP: taintlift.SP, x86asm.BP: taintlift.BP, x86asm.SI: taintlift.SI, x86asm.DI: taintlift.DI,
	x86asm.R8W: taintlift.R8W, x86asm.R9W: taintlift.R9W, x86asm.R10W: taintlift.R10W, x86asm.R11W: taintlift.R11W,
	x86asm.R12W: taintlift.R12W, x86asm.R13W: taintlift.R13W, x86asm.R14W: taintlift.R14W, x86asm.R15W: taintlift.R15W,

	x86asm.EAX: taintlift.EAX, x86asm.ECX: taintlift.ECX, x86asm.EDX: taintlift.EDX, x86asm.EBX: taintlift.EBX,
	x86asm.ESP: taintlift.ESP, x86asm.EBP: taintlift.EBP, x86asm.ESI: taintlift.ESI, x86asm.EDI: taintlift.EDI,
	x86asm.R8L: taintlift.R8D, x86asm.R9L: taintlift.R9D, x86asm.R10L: taintlift.R10D, x86asm.R11L: taintlift.R11D,
	x86asm.R12L: taintlift.R12D, x86asm.R13L: taintlift.R13D, x86asm.R14L: taintlift.R14D, x86asm.R15L: taintlift.R15D,

	x86asm.RAX: taintlift.RAX, x86asm.RCX: taintlift.RCX, x86asm.RDX: taintlift.RDX, x86asm.RBX: taintlift.RBX,
	x86asm.RSP: taintlift.RSP, x86asm.RBP: taintlift.RBP, x86asm.RSI: taintlift.RSI, x86asm.RDI: taintlift.RDI,
	x86asm.R8: taintlift.R8, x86asm.R9: taintlift.R9, x86asm.R10: taintlift.R10, x86asm.R11: taintlift.R11,
	x86asm.R12: taintlift.R12, x86asm.R13: taintlift.R13, x86asm.R14: taintlift.R14, x86asm.R15: taintlift.R15,

	x86asm.RIP: taintlift.RIP,
}

// Register returns the register for an x86asm register.
func Register(reg x86asm.Reg) (taintlift.Reg, bool) {
	r, ok := regMap[reg]
	return r, ok
}

// Decode decodes the instruction at the start of code, located at pc, in
// 64-bit mode. Memory operand addresses are computed from regs.
func Decode(code []byte, pc uint64, regs Registers) (*taintlift.Insn, error) {
	inst, err := x86asm.Decode(code, mode64)
	if err != nil {
		return nil, errors.Wrapf(err, "decode at %#x", pc)
	}

	var args []x86asm.Arg
	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		args = append(args, arg)
	}

	next := pc + uint64(inst.Len)
	ops := make([]taintlift.Operand, 0, len(args))
	for i, arg := range args {
		op, err := convertArg(inst, args, i, arg, next, regs)
		if err != nil {
			return nil, &OperandError{Address: pc, Len: inst.Len, Disasm: x86asm.IntelSyntax(inst, pc, nil), Err: err}
		}
		ops = append(ops, op)
	}

	return taintlift.NewInsn(pc, uint(inst.Len), inst.Op.String(), x86asm.IntelSyntax(inst, pc, nil), ops...), nil
}

func convertArg(inst x86asm.Inst, args []x86asm.Arg, i int, arg x86asm.Arg, next uint64, regs Registers) (taintlift.Operand, error) {
	switch arg := arg.(type) {
	case x86asm.Reg:
		r, ok := Register(arg)
		if !ok {
			return nil, errors.Wrapf(ErrUnsupportedOperand, "register %s", arg)
		}
		return taintlift.RegOperand{Reg: r}, nil

	case x86asm.Mem:
		return convertMem(inst, arg, next, regs)

	case x86asm.Imm:
		width := immWidth(inst, args, i)
		return taintlift.ImmOperand{Value: uint64(int64(arg)) & mask(width), Width: width}, nil

	case x86asm.Rel:
		return taintlift.ImmOperand{Value: next + uint64(int64(arg)), Width: taintlift.Width64}, nil

	default:
		return nil, errors.Wrapf(ErrUnsupportedOperand, "%s", arg)
	}
}

func convertMem(inst x86asm.Inst, arg x86asm.Mem, next uint64, regs Registers) (taintlift.Operand, error) {
	switch arg.Segment {
	case 0, x86asm.CS, x86asm.DS, x86asm.ES, x86asm.SS:
	default:
		return nil, errors.Wrapf(ErrUnsupportedOperand, "segment %s", arg.Segment)
	}

	m := taintlift.MemOperand{Size: uint(inst.MemBytes), Scale: arg.Scale}

	// RIP-relative addresses are resolved to an absolute displacement.
	if arg.Base == x86asm.RIP {
		m.Disp = int64(next) + arg.Disp
		m.Address = uint64(m.Disp)
		return m, nil
	}

	m.Disp = arg.Disp
	addr := uint64(arg.Disp)
	if arg.Base != 0 {
		r, ok := Register(arg.Base)
		if !ok {
			return nil, errors.Wrapf(ErrUnsupportedOperand, "base register %s", arg.Base)
		}
		m.Base = r
		addr += regs.RegValue(r)
	}
	if arg.Index != 0 {
		r, ok := Register(arg.Index)
		if !ok {
			return nil, errors.Wrapf(ErrUnsupportedOperand, "index register %s", arg.Index)
		}
		m.Index = r
		addr += regs.RegValue(r) * uint64(arg.Scale)
	}
	m.Address = addr
	return m, nil
}

// immWidth returns the width of an immediate operand: the width of the
// destination for two-operand forms, 16 for RET and the operand size otherwise.
func immWidth(inst x86asm.Inst, args []x86asm.Arg, i int) uint {
	if inst.Op == x86asm.RET || inst.Op == x86asm.LRET {
		return taintlift.Width16
	}
	if i > 0 {
		switch dst := args[0].(type) {
		case x86asm.Reg:
			if r, ok := Register(dst); ok {
				return r.Width()
			}
		case x86asm.Mem:
			if inst.MemBytes > 0 {
				return uint(inst.MemBytes) * 8
			}
		}
	}
	if inst.DataSize > 0 {
		return uint(inst.DataSize)
	}
	return taintlift.Width64
}

func mask(width uint) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (1 << width) - 1
}

package taintlift

import (
	"fmt"
	"strings"
)

// Operand is a decoded instruction operand: a register, a memory reference,
// an immediate, or a flag.
type Operand interface {
	String() string
	operand()
}

func (RegOperand) operand() {}
func (MemOperand) operand() {}
func (ImmOperand) operand() {}
func (Flag) operand()       {}

// RegOperand is a register operand.
type RegOperand struct {
	Reg Reg
}

func (op RegOperand) String() string { return op.Reg.String() }

// MemOperand is a memory operand. Address is the concrete effective address
// resolved by the decoder; Base, Index, Scale and Disp describe how the
// address is computed. Size is in bytes.
type MemOperand struct {
	Base    Reg
	Index   Reg
	Scale   uint8
	Disp    int64
	Size    uint
	Address uint64
}

// Mem returns a memory operand for a concrete address with no address formula.
func Mem(addr uint64, size uint) MemOperand {
	return MemOperand{Disp: int64(addr), Size: size, Address: addr}
}

func (op MemOperand) String() string {
	var parts []string
	if op.Base.IsValid() {
		parts = append(parts, op.Base.String())
	}
	if op.Index.IsValid() {
		parts = append(parts, fmt.Sprintf("%s*%d", op.Index, op.Scale))
	}
	if op.Disp != 0 || len(parts) == 0 {
		if op.Disp < 0 && len(parts) > 0 {
			return fmt.Sprintf("%s [%s-%#x]", sizeName(op.Size), strings.Join(parts, "+"), -op.Disp)
		}
		parts = append(parts, fmt.Sprintf("%#x", uint64(op.Disp)))
	}
	return fmt.Sprintf("%s [%s]", sizeName(op.Size), strings.Join(parts, "+"))
}

func sizeName(size uint) string {
	switch size {
	case 1:
		return "byte ptr"
	case 2:
		return "word ptr"
	case 4:
		return "dword ptr"
	case 8:
		return "qword ptr"
	default:
		return fmt.Sprintf("%d-byte ptr", size)
	}
}

// ImmOperand is an immediate operand.
type ImmOperand struct {
	Value uint64
	Width uint
}

func (op ImmOperand) String() string { return fmt.Sprintf("%#x", op.Value) }

// OperandWidth returns the bit width of op.
func OperandWidth(op Operand) uint {
	switch op := op.(type) {
	case RegOperand:
		return op.Reg.Width()
	case MemOperand:
		return op.Size * 8
	case ImmOperand:
		return op.Width
	case Flag:
		return WidthBool
	default:
		panic(fmt.Sprintf("unreachable: %T", op))
	}
}

// Shape classifies an operand list by count and kind.
type Shape int

// Operand shapes.
const (
	ShapeUnknown Shape = iota
	ShapeNone
	ShapeReg
	ShapeMem
	ShapeImm
	ShapeRegReg
	ShapeRegMem
	ShapeRegImm
	ShapeMemReg
	ShapeMemImm
	ShapeRegRegImm
	ShapeRegMemImm
)

var shapeNames = [...]string{
	ShapeUnknown:   "unknown",
	ShapeNone:      "none",
	ShapeReg:       "reg",
	ShapeMem:       "mem",
	ShapeImm:       "imm",
	ShapeRegReg:    "reg-reg",
	ShapeRegMem:    "reg-mem",
	ShapeRegImm:    "reg-imm",
	ShapeMemReg:    "mem-reg",
	ShapeMemImm:    "mem-imm",
	ShapeRegRegImm: "reg-reg-imm",
	ShapeRegMemImm: "reg-mem-imm",
}

func (s Shape) String() string {
	if s >= 0 && int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return fmt.Sprintf("Shape<%d>", s)
}

// ClassifyShape maps an operand list to its shape. It returns false for
// combinations outside the known set, such as two memory operands.
func ClassifyShape(ops []Operand) (Shape, bool) {
	var key strings.Builder
	for _, op := range ops {
		switch op.(type) {
		case RegOperand:
			key.WriteByte('r')
		case MemOperand:
			key.WriteByte('m')
		case ImmOperand:
			key.WriteByte('i')
		default:
			return ShapeUnknown, false
		}
	}

	switch key.String() {
	case "":
		return ShapeNone, true
	case "r":
		return ShapeReg, true
	case "m":
		return ShapeMem, true
	case "i":
		return ShapeImm, true
	case "rr":
		return ShapeRegReg, true
	case "rm":
		return ShapeRegMem, true
	case "ri":
		return ShapeRegImm, true
	case "mr":
		return ShapeMemReg, true
	case "mi":
		return ShapeMemImm, true
	case "rri":
		return ShapeRegRegImm, true
	case "rmi":
		return ShapeRegMemImm, true
	default:
		return ShapeUnknown, false
	}
}

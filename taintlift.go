package taintlift

import (
	"fmt"

	"github.com/pkg/errors"
)

// Standard widths.
const (
	WidthBool = 1
	Width8    = 8
	Width16   = 16
	Width32   = 32
	Width64   = 64
)

var (
	ErrUnsupportedShape  = errors.New("unsupported operand shape")
	ErrInvalidWidth      = errors.New("invalid operand width")
	ErrUnsupportedOpcode = errors.New("unsupported opcode")
)

// UnsupportedShapeError is returned when a handler has no semantics for the
// operand combination of an instruction.
type UnsupportedShapeError struct {
	Mnemonic string
	Disasm   string
	Shape    Shape
}

func (e *UnsupportedShapeError) Error() string {
	return fmt.Sprintf("%s: unsupported operand shape %s: %s", e.Mnemonic, e.Shape, e.Disasm)
}

// Is reports whether target is ErrUnsupportedShape.
func (e *UnsupportedShapeError) Is(target error) bool { return target == ErrUnsupportedShape }

// WidthError is returned when an expression is built over incompatible widths.
type WidthError struct {
	Op     string
	Widths []uint
}

func (e *WidthError) Error() string {
	return fmt.Sprintf("%s: invalid operand width %v", e.Op, e.Widths)
}

// Is reports whether target is ErrInvalidWidth.
func (e *WidthError) Is(target error) bool { return target == ErrInvalidWidth }

// PreconditionError is the panic value used when an instruction reaches the
// translator before the decoder resolved its operands.
type PreconditionError struct {
	Disasm string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("operands not resolved: %s", e.Disasm)
}

// assert panics if condition is false.
func assert(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf("assert: "+format, args...))
	}
}

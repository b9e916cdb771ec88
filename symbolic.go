package taintlift

import "fmt"

// SymbolicExpression is a symbolic unit: a formula bound to one destination
// at one point in program order. Register units hold the formula of the
// whole parent register.
type SymbolicExpression struct {
	ID      uint64
	Expr    Expr
	Dest    Operand
	Comment string

	// Concrete value of Expr when the unit was bound.
	Value uint64

	// Bit width of Expr, set when the unit is bound.
	Width uint
}

// width returns the width of the unit's formula. Units built outside a
// Context may leave Width unset.
func (u *SymbolicExpression) width() uint {
	if u.Width == 0 {
		return ExprWidth(u.Expr)
	}
	return u.Width
}

// Name returns the solver-level name of the unit.
func (u *SymbolicExpression) Name() string { return fmt.Sprintf("ref!%d", u.ID) }

// String returns the string representation of the unit.
func (u *SymbolicExpression) String() string {
	s := fmt.Sprintf("%s = %s", u.Name(), u.Expr)
	if u.Comment != "" {
		s += " ; " + u.Comment
	}
	return s
}

// Origin classifies where a symbolic variable came from.
type Origin int

// Variable origins.
const (
	OriginMemory    Origin = 0
	OriginRegister  Origin = 1
	OriginUndefined Origin = 2
)

func (o Origin) String() string {
	switch o {
	case OriginMemory:
		return "MEMORY"
	case OriginRegister:
		return "REGISTER"
	case OriginUndefined:
		return "UNDEFINED"
	default:
		return fmt.Sprintf("Origin<%d>", int(o))
	}
}

// OriginConstants returns the named origin constants exported to bindings.
func OriginConstants() map[string]int {
	return map[string]int{
		OriginMemory.String():    int(OriginMemory),
		OriginRegister.String():  int(OriginRegister),
		OriginUndefined.String(): int(OriginUndefined),
	}
}

// SymbolicVariable is a free input of the formulas.
type SymbolicVariable struct {
	ID      uint64
	Origin  Origin
	Width   uint
	Value   uint64 // concrete value at creation
	Comment string

	// Location the variable was created from, nil for undefined values.
	Source Operand
}

// Name returns the solver-level name of the variable.
func (v *SymbolicVariable) Name() string { return fmt.Sprintf("SymVar_%d", v.ID) }

func (v *SymbolicVariable) String() string {
	return fmt.Sprintf("%s:%d (%s)", v.Name(), v.Width, v.Origin)
}

package taintlift

import "fmt"

// Evaluator evaluates expressions to constants.
//
// Variables evaluate to the value in Model when present, otherwise to the
// concrete value they were created with. References evaluate to the cached
// concrete value of their unit unless Unroll is set, in which case the unit's
// formula is evaluated against the same model.
type Evaluator struct {
	Model  map[uint64]uint64 // variable id to value
	Unroll bool

	cache map[uint64]*ConstantExpr // unrolled unit values
}

// NewEvaluator returns a new instance of Evaluator using the given model.
func NewEvaluator(model map[uint64]uint64) *Evaluator {
	return &Evaluator{Model: model, Unroll: model != nil}
}

// Evaluate evaluates expr to a constant expression.
func (ev *Evaluator) Evaluate(expr Expr) *ConstantExpr {
	switch expr := expr.(type) {
	case *ConstantExpr:
		return expr
	case *VariableExpr:
		if v, ok := ev.Model[expr.Var.ID]; ok {
			return NewConstantExpr(v, expr.Var.Width)
		}
		return NewConstantExpr(expr.Var.Value, expr.Var.Width)
	case *RefExpr:
		return ev.evaluateRef(expr.Unit)
	case *BinaryExpr:
		return ev.Evaluate(expr.LHS).Apply(expr.Op, ev.Evaluate(expr.RHS))
	case *CastExpr:
		src := ev.Evaluate(expr.Src)
		if expr.Signed {
			return src.SExt(expr.Width)
		}
		return src.ZExt(expr.Width)
	case *ConcatExpr:
		return ev.Evaluate(expr.MSB).Concat(ev.Evaluate(expr.LSB))
	case *ExtractExpr:
		return ev.Evaluate(expr.Expr).Extract(expr.High, expr.Low)
	case *NotExpr:
		return ev.Evaluate(expr.Expr).Not()
	case *IteExpr:
		if ev.Evaluate(expr.Cond).IsTrue() {
			return ev.Evaluate(expr.Then)
		}
		return ev.Evaluate(expr.Else)
	default:
		panic(fmt.Sprintf("unreachable: %T", expr))
	}
}

func (ev *Evaluator) evaluateRef(unit *SymbolicExpression) *ConstantExpr {
	if !ev.Unroll {
		return NewConstantExpr(unit.Value, unit.width())
	}
	if v, ok := ev.cache[unit.ID]; ok {
		return v
	}
	if ev.cache == nil {
		ev.cache = make(map[uint64]*ConstantExpr)
	}
	v := ev.Evaluate(unit.Expr)
	ev.cache[unit.ID] = v
	return v
}

// EvalExpr returns the concrete value of expr using cached unit values.
func EvalExpr(expr Expr) uint64 {
	var ev Evaluator
	return ev.Evaluate(expr).Value
}

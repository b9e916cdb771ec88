package taintlift

import (
	"bytes"
	"fmt"
	"sort"
)

// Unroll returns expr with every reference replaced by the referenced
// unit's formula, recursively.
func Unroll(expr Expr) Expr {
	return unroll(expr, make(map[uint64]Expr))
}

func unroll(expr Expr, seen map[uint64]Expr) Expr {
	switch expr := expr.(type) {
	case *RefExpr:
		if e, ok := seen[expr.Unit.ID]; ok {
			return e
		}
		e := unroll(expr.Unit.Expr, seen)
		seen[expr.Unit.ID] = e
		return e
	case *BinaryExpr:
		return &BinaryExpr{Op: expr.Op, LHS: unroll(expr.LHS, seen), RHS: unroll(expr.RHS, seen)}
	case *CastExpr:
		return &CastExpr{Src: unroll(expr.Src, seen), Width: expr.Width, Signed: expr.Signed}
	case *ConcatExpr:
		return &ConcatExpr{MSB: unroll(expr.MSB, seen), LSB: unroll(expr.LSB, seen)}
	case *ExtractExpr:
		return &ExtractExpr{Expr: unroll(expr.Expr, seen), High: expr.High, Low: expr.Low}
	case *NotExpr:
		return &NotExpr{Expr: unroll(expr.Expr, seen)}
	case *IteExpr:
		return &IteExpr{Cond: unroll(expr.Cond, seen), Then: unroll(expr.Then, seen), Else: unroll(expr.Else, seen)}
	default:
		return expr
	}
}

// DeclareVariable returns the SMT-LIB2 declaration of a symbolic variable.
func DeclareVariable(v *SymbolicVariable) string {
	return fmt.Sprintf("(declare-fun %s () (_ BitVec %d))", v.Name(), v.Width)
}

// DefineUnit returns the SMT-LIB2 definition of a symbolic unit.
func DefineUnit(u *SymbolicExpression) string {
	s := fmt.Sprintf("(define-fun %s () (_ BitVec %d) %s)", u.Name(), ExprWidth(u.Expr), u.Expr)
	if u.Comment != "" {
		s += " ; " + u.Comment
	}
	return s
}

// Script returns a solver script that declares every variable and defines
// every unit the given units depend on, in id order.
func Script(units ...*SymbolicExpression) string {
	deps := make(map[uint64]*SymbolicExpression)
	var visit func(u *SymbolicExpression)
	visit = func(u *SymbolicExpression) {
		if _, ok := deps[u.ID]; ok {
			return
		}
		deps[u.ID] = u
		for _, ref := range FindRefs(u.Expr) {
			visit(ref)
		}
	}
	for _, u := range units {
		visit(u)
	}

	a := make([]*SymbolicExpression, 0, len(deps))
	exprs := make([]Expr, 0, len(deps))
	for _, u := range deps {
		a = append(a, u)
		exprs = append(exprs, u.Expr)
	}
	sort.Slice(a, func(i, j int) bool { return a[i].ID < a[j].ID })

	var buf bytes.Buffer
	for _, v := range FindVariables(exprs...) {
		fmt.Fprintln(&buf, DeclareVariable(v))
	}
	for _, u := range a {
		fmt.Fprintln(&buf, DefineUnit(u))
	}
	return buf.String()
}

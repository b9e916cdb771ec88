package taintlift_test

import (
	"strings"
	"testing"

	"github.com/taintlift/taintlift"
)

func TestEvaluator_Evaluate(t *testing.T) {
	v := &taintlift.SymbolicVariable{ID: 0, Width: 8, Value: 0x80}
	x := taintlift.NewVariableExpr(v)

	t.Run("CreationValue", func(t *testing.T) {
		if got := taintlift.EvalExpr(x); got != 0x80 {
			t.Fatalf("unexpected value: %#x", got)
		}
	})

	t.Run("Model", func(t *testing.T) {
		ev := taintlift.NewEvaluator(map[uint64]uint64{0: 0x7f})
		if got := ev.Evaluate(x).Value; got != 0x7f {
			t.Fatalf("unexpected value: %#x", got)
		}
	})

	t.Run("SignExtend", func(t *testing.T) {
		for _, tt := range []struct {
			in, out uint64
		}{{0x80, 0xffffffffffffff80}, {0x7f, 0x7f}, {0, 0}, {0xff, ^uint64(0)}} {
			ev := taintlift.NewEvaluator(map[uint64]uint64{0: tt.in})
			if got := ev.Evaluate(&taintlift.CastExpr{Src: x, Width: 64, Signed: true}).Value; got != tt.out {
				t.Fatalf("sext(%#x)=%#x, expected %#x", tt.in, got, tt.out)
			}
		}
	})

	t.Run("Ref", func(t *testing.T) {
		u := &taintlift.SymbolicExpression{
			ID:    1,
			Expr:  &taintlift.BinaryExpr{Op: taintlift.ADD, LHS: x, RHS: taintlift.NewConstantExpr(1, 8)},
			Value: 0x81,
		}
		ref := taintlift.NewRefExpr(u)

		// Without a model the cached value is used.
		if got := taintlift.EvalExpr(ref); got != 0x81 {
			t.Fatalf("unexpected value: %#x", got)
		}

		// With a model the formula is re-evaluated.
		ev := taintlift.NewEvaluator(map[uint64]uint64{0: 0xff})
		if got := ev.Evaluate(ref).Value; got != 0 {
			t.Fatalf("unexpected value: %#x", got)
		}
	})

	t.Run("Ite", func(t *testing.T) {
		e := &taintlift.IteExpr{
			Cond: &taintlift.BinaryExpr{Op: taintlift.SLT, LHS: x, RHS: taintlift.NewConstantExpr(0, 8)},
			Then: taintlift.NewConstantExpr(1, 8),
			Else: taintlift.NewConstantExpr(2, 8),
		}
		if got := taintlift.EvalExpr(e); got != 1 {
			t.Fatalf("unexpected value: %#x", got)
		}
	})

	t.Run("DivideByZero", func(t *testing.T) {
		e := &taintlift.BinaryExpr{Op: taintlift.UDIV, LHS: x, RHS: taintlift.NewConstantExpr(0, 8)}
		if got := taintlift.EvalExpr(e); got != 0xff {
			t.Fatalf("unexpected value: %#x", got)
		}
	})
}

func TestUnroll(t *testing.T) {
	x := newVar(0, 8)
	u1 := &taintlift.SymbolicExpression{ID: 1, Expr: taintlift.NewNotExpr(x)}
	u2 := &taintlift.SymbolicExpression{ID: 2, Expr: &taintlift.BinaryExpr{Op: taintlift.AND, LHS: taintlift.NewRefExpr(u1), RHS: taintlift.NewRefExpr(u1)}}

	if s := taintlift.Unroll(taintlift.NewRefExpr(u2)).String(); s != "(bvand (bvnot SymVar_0) (bvnot SymVar_0))" {
		t.Fatalf("unexpected expr: %s", s)
	}
	// The unit itself is unchanged.
	if s := u2.Expr.String(); s != "(bvand ref!1 ref!1)" {
		t.Fatalf("unexpected expr: %s", s)
	}
}

func TestScript(t *testing.T) {
	v := &taintlift.SymbolicVariable{ID: 0, Width: 8}
	u1 := &taintlift.SymbolicExpression{ID: 1, Expr: taintlift.NewVariableExpr(v), Comment: "input"}
	u2 := &taintlift.SymbolicExpression{ID: 2, Expr: &taintlift.CastExpr{Src: taintlift.NewRefExpr(u1), Width: 16}}

	got := taintlift.Script(u2)
	want := strings.Join([]string{
		"(declare-fun SymVar_0 () (_ BitVec 8))",
		"(define-fun ref!1 () (_ BitVec 8) SymVar_0) ; input",
		"(define-fun ref!2 () (_ BitVec 16) ((_ zero_extend 8) ref!1))",
		"",
	}, "\n")
	if got != want {
		t.Fatalf("unexpected script:\n%s", got)
	}
}

func TestInterner(t *testing.T) {
	in := taintlift.NewInterner()
	b := &taintlift.Builder{Interner: in}

	x := newVar(0, 8)
	e1 := b.Binary(taintlift.ADD, x, b.Const(1, 8))
	e2 := b.Binary(taintlift.ADD, x, b.Const(1, 8))
	if e1 != e2 {
		t.Fatal("expected shared node")
	}
	if lookups, hits := in.Stats(); lookups != 4 || hits != 2 {
		t.Fatalf("unexpected stats: lookups=%d hits=%d", lookups, hits)
	} else if n := in.Len(); n != 2 {
		t.Fatalf("unexpected len: %d", n)
	}
}

func TestBuilder_Err(t *testing.T) {
	var b taintlift.Builder
	x := b.Binary(taintlift.ADD, newVar(0, 8), newVar(1, 16))
	if x != nil {
		t.Fatalf("unexpected expr: %s", x)
	} else if b.Err() == nil {
		t.Fatal("expected error")
	}

	// Later calls are no-ops once an error is recorded.
	if e := b.Const(1, 8); e != nil {
		t.Fatalf("unexpected expr: %s", e)
	}

	var ok taintlift.Builder
	if e := ok.Concat(newVar(0, 8), newVar(1, 8), newVar(2, 16)); taintlift.ExprWidth(e) != 32 {
		t.Fatalf("unexpected width: %d", taintlift.ExprWidth(e))
	} else if ok.Err() != nil {
		t.Fatal(ok.Err())
	}
}

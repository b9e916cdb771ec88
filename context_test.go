package taintlift_test

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/taintlift/taintlift"
)

func TestContext_BindReg(t *testing.T) {
	t.Run("Width64", func(t *testing.T) {
		ctx := taintlift.NewContext(1)
		u, err := ctx.BindReg(nil, taintlift.NewConstantExpr64(0x1122334455667788), taintlift.RAX, "")
		if err != nil {
			t.Fatal(err)
		} else if v := ctx.RegValue(taintlift.RAX); v != 0x1122334455667788 {
			t.Fatalf("unexpected value: %#x", v)
		} else if b, ok := ctx.Binding(taintlift.EAX); !ok || b != u {
			t.Fatalf("unexpected binding: %v", b)
		}
	})

	// 32-bit writes zero the upper half of the parent.
	t.Run("Width32", func(t *testing.T) {
		ctx := taintlift.NewContext(1)
		ctx.SetRegValue(taintlift.RAX, ^uint64(0))
		u, err := ctx.BindReg(nil, taintlift.NewConstantExpr(1, 32), taintlift.EAX, "")
		if err != nil {
			t.Fatal(err)
		} else if v := ctx.RegValue(taintlift.RAX); v != 1 {
			t.Fatalf("unexpected value: %#x", v)
		} else if s := u.Expr.String(); s != "((_ zero_extend 32) (_ bv1 32))" {
			t.Fatalf("unexpected expr: %s", s)
		} else if s := u.Dest.String(); s != "rax" {
			t.Fatalf("unexpected dest: %s", s)
		}
	})

	// 16-bit and 8-bit writes keep the other bits of the parent.
	t.Run("Width16", func(t *testing.T) {
		ctx := taintlift.NewContext(1)
		ctx.SetRegValue(taintlift.RBX, 0x1122334455667788)
		if _, err := ctx.BindReg(nil, taintlift.NewConstantExpr(0xaaaa, 16), taintlift.BX, ""); err != nil {
			t.Fatal(err)
		} else if v := ctx.RegValue(taintlift.RBX); v != 0x112233445566aaaa {
			t.Fatalf("unexpected value: %#x", v)
		}
	})

	t.Run("High8", func(t *testing.T) {
		ctx := taintlift.NewContext(1)
		ctx.SetRegValue(taintlift.RAX, 0x1122334455667788)
		u, err := ctx.BindReg(nil, taintlift.NewConstantExpr(0xaa, 8), taintlift.AH, "")
		if err != nil {
			t.Fatal(err)
		} else if v := ctx.RegValue(taintlift.RAX); v != 0x112233445566aa88 {
			t.Fatalf("unexpected value: %#x", v)
		} else if v := ctx.RegValue(taintlift.AH); v != 0xaa {
			t.Fatalf("unexpected value: %#x", v)
		} else if w := taintlift.ExprWidth(u.Expr); w != 64 {
			t.Fatalf("unexpected width: %d", w)
		}

		// Reading the sub-register extracts from the new unit.
		if s := ctx.ReadReg(taintlift.AH).String(); s != "((_ extract 15 8) ref!0)" {
			t.Fatalf("unexpected expr: %s", s)
		}
	})

	t.Run("ErrInvalidWidth", func(t *testing.T) {
		ctx := taintlift.NewContext(1)
		if _, err := ctx.BindReg(nil, taintlift.NewConstantExpr(1, 8), taintlift.EAX, ""); !errors.Is(err, taintlift.ErrInvalidWidth) {
			t.Fatalf("unexpected error: %v", err)
		} else if _, ok := ctx.Binding(taintlift.RAX); ok {
			t.Fatal("expected no binding")
		}
	})

	t.Run("IDs", func(t *testing.T) {
		ctx := taintlift.NewContext(1)
		u0, _ := ctx.BindReg(nil, taintlift.NewConstantExpr64(0), taintlift.RAX, "")
		u1, _ := ctx.BindFlag(nil, taintlift.NewBoolConstantExpr(true), taintlift.ZF, "")
		u2, _ := ctx.BindMem(nil, taintlift.NewConstantExpr(0, 8), taintlift.Mem(0x10, 1), "")
		if u0.ID != 0 || u1.ID != 1 || u2.ID != 2 {
			t.Fatalf("unexpected ids: %d %d %d", u0.ID, u1.ID, u2.ID)
		}
	})
}

func TestContext_ReadRegBits(t *testing.T) {
	ctx := taintlift.NewContext(1)
	if e, err := ctx.ReadRegBits(taintlift.AX, 3, 0); err != nil {
		t.Fatal(err)
	} else if w := taintlift.ExprWidth(e); w != 4 {
		t.Fatalf("unexpected width: %d", w)
	}
	if _, err := ctx.ReadRegBits(taintlift.AX, 16, 0); !errors.Is(err, taintlift.ErrInvalidWidth) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestContext_Mem(t *testing.T) {
	ctx := taintlift.NewContext(1)
	u, err := ctx.BindMem(nil, taintlift.NewConstantExpr(0xdeadbeef, 32), taintlift.Mem(0x1000, 4), "")
	if err != nil {
		t.Fatal(err)
	}

	if u.Width != 32 {
		t.Fatalf("unexpected width: %d", u.Width)
	} else if v := ctx.MemValue(0x1000, 4); v != 0xdeadbeef {
		t.Fatalf("unexpected value: %#x", v)
	} else if v := ctx.MemValue(0x1000, 1); v != 0xef {
		t.Fatalf("unexpected value: %#x", v)
	}

	// The whole unit collapses to a reference.
	if e, ok := ctx.ReadMem(0x1000, 4).(*taintlift.RefExpr); !ok || e.Unit != u {
		t.Fatalf("unexpected expr: %s", ctx.ReadMem(0x1000, 4))
	}

	// A partial read is assembled from bytes.
	e := ctx.ReadMem(0x1001, 2)
	if s := e.String(); s != "(concat ((_ extract 23 16) ref!0) ((_ extract 15 8) ref!0))" {
		t.Fatalf("unexpected expr: %s", s)
	} else if v := taintlift.EvalExpr(e); v != 0xadbe {
		t.Fatalf("unexpected value: %#x", v)
	}

	// Unbound bytes read as constants.
	ctx.SetMemBytes(0x2000, []byte{0x01, 0x02})
	if s := ctx.ReadMem(0x2000, 2).String(); s != "(concat (_ bv2 8) (_ bv1 8))" {
		t.Fatalf("unexpected expr: %s", s)
	}

	if _, idx, ok := ctx.MemBinding(0x1003); !ok || idx != 3 {
		t.Fatalf("unexpected binding: idx=%d ok=%v", idx, ok)
	}

	ctx.ConcretizeMem(0x1000, 4)
	if _, _, ok := ctx.MemBinding(0x1000); ok {
		t.Fatal("expected no binding")
	} else if v := ctx.MemValue(0x1000, 4); v != 0xdeadbeef {
		t.Fatalf("unexpected value: %#x", v)
	}
}

func TestContext_AddressExpr(t *testing.T) {
	ctx := taintlift.NewContext(1)
	ctx.SetRegValue(taintlift.RBX, 0x1000)
	ctx.SetRegValue(taintlift.RCX, 3)
	m := taintlift.MemOperand{Base: taintlift.RBX, Index: taintlift.RCX, Scale: 4, Disp: -8, Size: 8}

	e := ctx.AddressExpr(m)
	if v := taintlift.EvalExpr(e); v != 0x1000+12-8 {
		t.Fatalf("unexpected value: %#x", v)
	}
}

func TestContext_Taint(t *testing.T) {
	ctx := taintlift.NewContext(1)
	rax, rbx := taintlift.RegOperand{Reg: taintlift.RAX}, taintlift.RegOperand{Reg: taintlift.RBX}

	ctx.SetTaint(taintlift.Mem(0x2000, 4), true)
	if !ctx.IsTainted(taintlift.Mem(0x2003, 1)) {
		t.Fatal("expected tainted byte")
	} else if ctx.IsTainted(taintlift.Mem(0x2004, 4)) {
		t.Fatal("unexpected tainted byte")
	} else if !ctx.IsTainted(taintlift.Mem(0x1ffe, 4)) {
		t.Fatal("expected overlapping range to be tainted")
	}

	// Sub-registers share the parent's taint.
	if !ctx.SpreadCopy(rax, taintlift.Mem(0x2000, 4)) {
		t.Fatal("expected copy to taint")
	} else if !ctx.IsTainted(taintlift.RegOperand{Reg: taintlift.AL}) {
		t.Fatal("expected al to be tainted")
	}

	if !ctx.SpreadCombine(rbx, taintlift.ZF, rax) {
		t.Fatal("expected combine to taint")
	} else if ctx.SpreadCombine(rbx, taintlift.ZF, taintlift.ImmOperand{Value: 1, Width: 8}) {
		t.Fatal("expected combine to untaint")
	} else if ctx.IsTainted(rbx) {
		t.Fatal("unexpected taint")
	}

	ctx.SetTaint(taintlift.ZF, true)
	if !ctx.IsTainted(taintlift.ZF) || ctx.IsTainted(taintlift.CF) {
		t.Fatal("unexpected flag taint")
	}
}

func TestContext_ConvertRegToSymVar(t *testing.T) {
	ctx := taintlift.NewContext(1)
	ctx.SetRegValue(taintlift.RBX, 0x42)

	v := ctx.ConvertRegToSymVar(taintlift.RBX, "input")
	if v.Origin != taintlift.OriginRegister || v.Value != 0x42 || v.Width != 64 {
		t.Fatalf("unexpected variable: %s value=%#x", v, v.Value)
	} else if s := ctx.ReadReg(taintlift.RBX).String(); s != "ref!0" {
		t.Fatalf("unexpected expr: %s", s)
	} else if u, _ := ctx.Binding(taintlift.RBX); u.Expr.String() != "SymVar_0" {
		t.Fatalf("unexpected unit: %s", u)
	}

	// A second variable gets the next id.
	v1 := ctx.ConvertMemToSymVar(taintlift.Mem(0x10, 2), "buf")
	if v1.ID != 1 || v1.Origin != taintlift.OriginMemory || v1.Width != 16 {
		t.Fatalf("unexpected variable: %s", v1)
	} else if n := len(ctx.Variables()); n != 2 {
		t.Fatalf("unexpected variable count: %d", n)
	}

	ctx.ConcretizeReg(taintlift.BL)
	if _, ok := ctx.Binding(taintlift.RBX); ok {
		t.Fatal("expected no binding")
	} else if s := ctx.ReadReg(taintlift.RBX).String(); s != "(_ bv66 64)" {
		t.Fatalf("unexpected expr: %s", s)
	}
}

func TestContext_SetRegValue(t *testing.T) {
	ctx := taintlift.NewContext(1)
	ctx.SetRegValue(taintlift.RCX, 0xffffffffffffffff)
	ctx.SetRegValue(taintlift.CH, 0x12)
	if v := ctx.RegValue(taintlift.RCX); v != 0xffffffffffff12ff {
		t.Fatalf("unexpected value: %#x", v)
	}
	ctx.SetRegValue(taintlift.ECX, 0x1)
	if v := ctx.RegValue(taintlift.RCX); v != 1 {
		t.Fatalf("unexpected value: %#x", v)
	}

	ctx.SetFlagValue(taintlift.CF, true)
	if !ctx.FlagValue(taintlift.CF) || ctx.FlagValue(taintlift.ZF) {
		t.Fatal("unexpected flags")
	}
}

func TestContext_Dump(t *testing.T) {
	ctx := taintlift.NewContext(3)
	ctx.ConvertRegToSymVar(taintlift.RDI, "arg0")
	ctx.SetTaint(taintlift.RegOperand{Reg: taintlift.RDI}, true)
	ctx.SetMemBytes(0x10, []byte{0xff})

	s := ctx.Dump()
	for _, want := range []string{"thread=3", " ref!0 T\n", "SymVar_0:64 (REGISTER)", " 0xff\n"} {
		if !strings.Contains(s, want) {
			t.Fatalf("missing %q in dump:\n%s", want, s)
		}
	}
}

func TestOriginConstants(t *testing.T) {
	got := taintlift.OriginConstants()
	if len(got) != 3 || got["MEMORY"] != 0 || got["REGISTER"] != 1 || got["UNDEFINED"] != 2 {
		t.Fatalf("unexpected constants: %v", got)
	}
}

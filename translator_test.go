package taintlift_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/taintlift/taintlift"
)

func reg(r taintlift.Reg) taintlift.RegOperand { return taintlift.RegOperand{Reg: r} }

func imm(v uint64, w uint) taintlift.ImmOperand { return taintlift.ImmOperand{Value: v, Width: w} }

// MustTranslate translates insn against ctx. Fatal on error.
func MustTranslate(tb testing.TB, ctx *taintlift.Context, insn *taintlift.Insn) *taintlift.Instruction {
	tb.Helper()
	inst, err := taintlift.NewTranslator().Translate(ctx, insn)
	if err != nil {
		tb.Fatal(err)
	}
	return inst
}

// Sign-extending the accumulator with bit 31 set.
func TestTranslate_CDQE(t *testing.T) {
	ctx := taintlift.NewContext(1)
	ctx.SetRegValue(taintlift.RAX, 0x80000000)
	ctx.SetTaint(reg(taintlift.RAX), true)

	inst := MustTranslate(t, ctx, taintlift.NewInsn(0x1000, 2, "CDQE", "cdqe"))
	if n := inst.ExprCount(); n != 2 {
		t.Fatalf("unexpected unit count: %d", n)
	}

	u := inst.Exprs[0]
	if s := u.Dest.String(); s != "rax" {
		t.Fatalf("unexpected dest: %s", s)
	} else if s := u.Expr.String(); s != "((_ sign_extend 32) ((_ extract 31 0) (_ bv2147483648 64)))" {
		t.Fatalf("unexpected expr: %s", s)
	} else if u.Value != 0xffffffff80000000 {
		t.Fatalf("unexpected value: %#x", u.Value)
	} else if u.Comment != "CDQE operation" {
		t.Fatalf("unexpected comment: %s", u.Comment)
	} else if !ctx.IsTainted(reg(taintlift.RAX)) {
		t.Fatal("expected rax to stay tainted")
	}

	last := inst.Last()
	if s := last.Dest.String(); s != "rip" {
		t.Fatalf("unexpected dest: %s", s)
	} else if last.Value != 0x1002 || last.Comment != "Program Counter" {
		t.Fatalf("unexpected unit: %s", last)
	} else if v := ctx.RegValue(taintlift.RIP); v != 0x1002 {
		t.Fatalf("unexpected rip: %#x", v)
	}
}

// A conditional move keeps both branches in its formula. Taint follows the
// branch selected by the concrete flags.
func TestTranslate_CMOV(t *testing.T) {
	for _, tt := range []struct {
		name    string
		cf      bool
		value   uint64
		tainted bool
	}{
		{"NotTaken", true, 0x1111, false},
		{"Taken", false, 0x2222, true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			ctx := taintlift.NewContext(1)
			ctx.SetRegValue(taintlift.RAX, 0x1111)
			ctx.SetRegValue(taintlift.RBX, 0x2222)
			ctx.SetFlagValue(taintlift.CF, tt.cf)
			ctx.SetTaint(reg(taintlift.RBX), true)

			inst := MustTranslate(t, ctx, taintlift.NewInsn(0x1000, 4, "CMOVAE", "cmovae rax, rbx", reg(taintlift.RAX), reg(taintlift.RBX)))
			if n := inst.ExprCount(); n != 2 {
				t.Fatalf("unexpected unit count: %d", n)
			}
			u := inst.Exprs[0]
			if _, ok := u.Expr.(*taintlift.IteExpr); !ok {
				t.Fatalf("unexpected expr: %s", u.Expr)
			} else if u.Value != tt.value {
				t.Fatalf("unexpected value: %#x", u.Value)
			} else if got := ctx.IsTainted(reg(taintlift.RAX)); got != tt.tainted {
				t.Fatalf("unexpected taint: %v", got)
			}
		})
	}
}

// Mismatched widths fail before anything is bound.
func TestTranslate_ErrInvalidWidth(t *testing.T) {
	ctx := taintlift.NewContext(1)
	ctx.SetRegValue(taintlift.RIP, 0x1000)

	_, err := taintlift.NewTranslator().Translate(ctx, taintlift.NewInsn(0x1000, 3, "CMOVAE", "cmovae rax, ebx", reg(taintlift.RAX), reg(taintlift.EBX)))
	if !errors.Is(err, taintlift.ErrInvalidWidth) {
		t.Fatalf("unexpected error: %v", err)
	} else if _, ok := ctx.Binding(taintlift.RAX); ok {
		t.Fatal("unexpected rax binding")
	} else if _, ok := ctx.Binding(taintlift.RIP); ok {
		t.Fatal("unexpected rip binding")
	} else if v := ctx.RegValue(taintlift.RIP); v != 0x1000 {
		t.Fatalf("unexpected rip: %#x", v)
	} else if diff := cmp.Diff(taintlift.Stats{Failures: 1}, ctx.Stats()); diff != "" {
		t.Fatal(diff)
	}
}

func TestTranslate_ErrUnsupportedShape(t *testing.T) {
	ctx := taintlift.NewContext(1)
	ctx.SetMemValue(0x2000, 4, 0xcafebabe)
	m := taintlift.Mem(0x2000, 4)

	_, err := taintlift.NewTranslator().Translate(ctx, taintlift.NewInsn(0x1000, 7, "MOVZX", "movzx dword ptr [0x2000], 1", m, imm(1, 32)))
	var e *taintlift.UnsupportedShapeError
	if !errors.Is(err, taintlift.ErrUnsupportedShape) {
		t.Fatalf("unexpected error: %v", err)
	} else if !errors.As(err, &e) {
		t.Fatalf("unexpected error type: %T", err)
	} else if e.Disasm != "movzx dword ptr [0x2000], 1" || e.Shape != taintlift.ShapeMemImm || e.Mnemonic != "MOVZX" {
		t.Fatalf("unexpected error: %#v", e)
	}

	if v := ctx.MemValue(0x2000, 4); v != 0xcafebabe {
		t.Fatalf("unexpected memory: %#x", v)
	} else if _, _, ok := ctx.MemBinding(0x2000); ok {
		t.Fatal("unexpected memory binding")
	}
}

func TestTranslate_ErrUnsupportedOpcode(t *testing.T) {
	ctx := taintlift.NewContext(1)
	_, err := taintlift.NewTranslator().Translate(ctx, taintlift.NewInsn(0x1000, 2, "CPUID", "cpuid"))
	if !errors.Is(err, taintlift.ErrUnsupportedOpcode) {
		t.Fatalf("unexpected error: %v", err)
	} else if n := ctx.Stats().Failures; n != 1 {
		t.Fatalf("unexpected failures: %d", n)
	}
}

func TestTranslate_Unresolved(t *testing.T) {
	defer func() {
		r := recover()
		if _, ok := r.(*taintlift.PreconditionError); !ok {
			t.Fatalf("unexpected panic: %#v", r)
		}
	}()
	ctx := taintlift.NewContext(1)
	taintlift.NewTranslator().Translate(ctx, &taintlift.Insn{Address: 0x1000, Size: 1, Mnemonic: "NOP", Disasm: "nop"})
	t.Fatal("expected panic")
}

// A failing handler leaves no trace in the context and unit ids are not reused.
func TestTranslate_Rollback(t *testing.T) {
	ctx := taintlift.NewContext(1)
	ctx.SetRegValue(taintlift.RAX, 7)

	tr := taintlift.NewTranslator()
	tr.Register(&taintlift.Handler{
		Mnemonic: "BOOM",
		Shapes: map[taintlift.Shape]taintlift.ShapeFunc{
			taintlift.ShapeNone: func(f *taintlift.Frame) error {
				if _, err := f.Write(reg(taintlift.RAX), f.Const(1, 64), f.Comment()); err != nil {
					return err
				}
				f.Ctx.SetTaint(reg(taintlift.RAX), true)
				f.Ctx.NewUndefinedVar(8, "scratch")
				return errors.New("boom")
			},
		},
	})

	if _, err := tr.Translate(ctx, taintlift.NewInsn(0x1000, 1, "boom", "boom")); err == nil || err.Error() != "0x1000: boom: boom" {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := ctx.Binding(taintlift.RAX); ok {
		t.Fatal("unexpected binding")
	} else if v := ctx.RegValue(taintlift.RAX); v != 7 {
		t.Fatalf("unexpected value: %#x", v)
	} else if ctx.IsTainted(reg(taintlift.RAX)) {
		t.Fatal("unexpected taint")
	} else if n := len(ctx.Variables()); n != 0 {
		t.Fatalf("unexpected variables: %d", n)
	}

	inst, err := tr.Translate(ctx, taintlift.NewInsn(0x1000, 1, "NOP", "nop"))
	if err != nil {
		t.Fatal(err)
	} else if diff := cmp.Diff([]uint64{1}, inst.IDs()); diff != "" {
		t.Fatal(diff)
	}
}

func TestTranslate_Stats(t *testing.T) {
	ctx := taintlift.NewContext(1)
	MustTranslate(t, ctx, taintlift.NewInsn(0x1000, 3, "MOV", "mov rax, rbx", reg(taintlift.RAX), reg(taintlift.RBX)))
	MustTranslate(t, ctx, taintlift.NewInsn(0x1003, 1, "NOP", "nop"))
	if diff := cmp.Diff(taintlift.Stats{Instructions: 2, Expressions: 3}, ctx.Stats()); diff != "" {
		t.Fatal(diff)
	}
}

// The instruction pointer update is the last unit of every record.
func TestTranslate_LastUnitIsRIP(t *testing.T) {
	for _, insn := range []*taintlift.Insn{
		taintlift.NewInsn(0x1000, 3, "ADD", "add rax, rbx", reg(taintlift.RAX), reg(taintlift.RBX)),
		taintlift.NewInsn(0x1000, 1, "PUSH", "push rax", reg(taintlift.RAX)),
		taintlift.NewInsn(0x1000, 2, "JE", "je 0x2000", imm(0x2000, 64)),
		taintlift.NewInsn(0x1000, 3, "SETB", "setb al", reg(taintlift.AL)),
		taintlift.NewInsn(0x1000, 1, "NOP", "nop"),
	} {
		t.Run(insn.Mnemonic, func(t *testing.T) {
			ctx := taintlift.NewContext(1)
			ctx.SetRegValue(taintlift.RSP, 0x8000)
			inst := MustTranslate(t, ctx, insn)
			if last := inst.Last(); last.Dest != taintlift.Operand(reg(taintlift.RIP)) {
				t.Fatalf("unexpected last unit: %s", last)
			}
			for _, u := range inst.Exprs[:inst.ExprCount()-1] {
				if u.Dest == taintlift.Operand(reg(taintlift.RIP)) {
					t.Fatalf("unexpected rip unit: %s", u)
				}
			}
		})
	}
}

func TestTranslator_Handler(t *testing.T) {
	tr := taintlift.NewTranslator()
	for _, name := range []string{"mov", "MOVABS", "CMOVNB", "jz", "SETNAE", "cqo"} {
		if _, ok := tr.Handler(name); !ok {
			t.Fatalf("missing handler: %s", name)
		}
	}
	if _, ok := tr.Handler("CPUID"); ok {
		t.Fatal("unexpected handler")
	}

	a, b := tr.Handler("JE")
	c, _ := tr.Handler("JZ")
	if !b || a != c {
		t.Fatal("expected alias to share handler")
	}

	names := tr.Mnemonics()
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("mnemonics not sorted: %s, %s", names[i-1], names[i])
		}
	}
}

func TestClassifyShape(t *testing.T) {
	m := taintlift.Mem(0, 8)
	for _, tt := range []struct {
		ops   []taintlift.Operand
		shape taintlift.Shape
		ok    bool
	}{
		{nil, taintlift.ShapeNone, true},
		{[]taintlift.Operand{reg(taintlift.RAX)}, taintlift.ShapeReg, true},
		{[]taintlift.Operand{reg(taintlift.RAX), m}, taintlift.ShapeRegMem, true},
		{[]taintlift.Operand{m, imm(1, 8)}, taintlift.ShapeMemImm, true},
		{[]taintlift.Operand{reg(taintlift.RAX), reg(taintlift.RBX), imm(1, 8)}, taintlift.ShapeRegRegImm, true},
		{[]taintlift.Operand{imm(1, 8), reg(taintlift.RAX)}, taintlift.ShapeUnknown, false},
	} {
		if shape, ok := taintlift.ClassifyShape(tt.ops); shape != tt.shape || ok != tt.ok {
			t.Fatalf("ClassifyShape(%v)=%s,%v expected %s,%v", tt.ops, shape, ok, tt.shape, tt.ok)
		}
	}
}

// Each unit refers to the previous one. Width queries on references must not
// walk the chain.
func TestTranslate_LongChain(t *testing.T) {
	const n = 5000

	ctx := taintlift.NewContext(1)
	ctx.ConvertRegToSymVar(taintlift.RAX, "counter")
	tr := taintlift.NewTranslator()
	for i := 0; i < n; i++ {
		insn := taintlift.NewInsn(0x1000, 4, "ADD", "add rax, 1", reg(taintlift.RAX), imm(1, 8))
		if _, err := tr.Translate(ctx, insn); err != nil {
			t.Fatal(err)
		}
	}

	if v := ctx.RegValue(taintlift.RAX); v != n {
		t.Fatalf("unexpected value: %d", v)
	}
	u, ok := ctx.Binding(taintlift.RAX)
	if !ok {
		t.Fatal("expected rax binding")
	} else if u.Width != 64 {
		t.Fatalf("unexpected width: %d", u.Width)
	} else if w := taintlift.ExprWidth(ctx.ReadReg(taintlift.EAX)); w != 32 {
		t.Fatalf("unexpected width: %d", w)
	} else if n := ctx.Stats().Instructions; n != 5000 {
		t.Fatalf("unexpected instruction count: %d", n)
	}
}

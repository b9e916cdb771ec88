package taintlift

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ShapeFunc implements an instruction for one operand shape.
type ShapeFunc func(f *Frame) error

// Handler describes the semantics of one opcode.
type Handler struct {
	Mnemonic string
	Aliases  []string

	// Maps the operand list to a shape. Defaults to ClassifyShape.
	Classify func(ops []Operand) (Shape, bool)

	// Supported shapes.
	Shapes map[Shape]ShapeFunc
}

// shapes returns a shape table that maps every shape in a to fn.
func shapes(fn ShapeFunc, a ...Shape) map[Shape]ShapeFunc {
	m := make(map[Shape]ShapeFunc, len(a))
	for _, s := range a {
		m[s] = fn
	}
	return m
}

// Translator turns decoded instructions into symbolic units.
type Translator struct {
	handlers map[string]*Handler
}

// NewTranslator returns a Translator with the default handlers registered.
func NewTranslator() *Translator {
	t := &Translator{handlers: make(map[string]*Handler)}
	for _, h := range defaultHandlers() {
		t.Register(h)
	}
	return t
}

// Register adds a handler under its mnemonic and aliases, replacing any
// existing handler with the same name.
func (t *Translator) Register(h *Handler) {
	t.handlers[strings.ToUpper(h.Mnemonic)] = h
	for _, name := range h.Aliases {
		t.handlers[strings.ToUpper(name)] = h
	}
}

// Handler returns the handler registered for mnemonic.
func (t *Translator) Handler(mnemonic string) (*Handler, bool) {
	h, ok := t.handlers[strings.ToUpper(mnemonic)]
	return h, ok
}

// Mnemonics returns the registered mnemonics and aliases, sorted.
func (t *Translator) Mnemonics() []string {
	a := make([]string, 0, len(t.handlers))
	for name := range t.handlers {
		a = append(a, name)
	}
	sort.Strings(a)
	return a
}

// Translate translates one instruction against ctx and returns its record.
//
// On failure the context is restored to its state before the call and no
// record is returned. Translate panics with a *PreconditionError if the
// instruction did not come from the decoder.
func (t *Translator) Translate(ctx *Context, insn *Insn) (*Instruction, error) {
	if !insn.Resolved() {
		panic(&PreconditionError{Disasm: insn.Disasm})
	}

	h, ok := t.Handler(insn.Mnemonic)
	if !ok {
		ctx.stats.Failures++
		return nil, errors.Wrapf(ErrUnsupportedOpcode, "%#x: %s", insn.Address, insn.Disasm)
	}

	classify := h.Classify
	if classify == nil {
		classify = ClassifyShape
	}
	shape, ok := classify(insn.Operands)
	fn := h.Shapes[shape]
	if !ok || fn == nil {
		ctx.stats.Failures++
		return nil, errors.WithStack(&UnsupportedShapeError{
			Mnemonic: strings.ToUpper(insn.Mnemonic),
			Disasm:   insn.Disasm,
			Shape:    shape,
		})
	}

	log.Debugf("[translate] %#x: %s (%s)", insn.Address, insn.Disasm, shape)

	inst := newInstruction(ctx.ThreadID, insn)
	f := &Frame{
		Builder: Builder{Interner: ctx.Interner},
		Ctx:     ctx,
		Insn:    insn,
		Inst:    inst,
	}

	snap := ctx.snapshot()
	err := fn(f)
	if err == nil {
		err = f.Err()
	}
	if err == nil {
		err = f.finalize()
	}
	if err != nil {
		ctx.restore(snap)
		ctx.stats.Failures++
		log.Debugf("[translate] %#x: rolled back: %s", insn.Address, err)
		return nil, errors.Wrapf(err, "%#x: %s", insn.Address, insn.Disasm)
	}

	inst.seal()
	ctx.stats.Instructions++
	ctx.stats.Expressions += inst.ExprCount()
	return inst, nil
}

// Frame is the state of one instruction translation handed to a ShapeFunc.
type Frame struct {
	Builder

	Ctx  *Context
	Insn *Insn
	Inst *Instruction

	ip        Expr
	ipTainted bool
}

// Op returns the i-th operand.
func (f *Frame) Op(i int) Operand { return f.Insn.Operands[i] }

// Comment returns the default comment for units of this instruction.
func (f *Frame) Comment() string {
	return fmt.Sprintf("%s operation", strings.ToUpper(f.Insn.Mnemonic))
}

// Unsupported returns the error for an operand combination the handler
// cannot translate.
func (f *Frame) Unsupported() error {
	shape, _ := ClassifyShape(f.Insn.Operands)
	return &UnsupportedShapeError{
		Mnemonic: strings.ToUpper(f.Insn.Mnemonic),
		Disasm:   f.Insn.Disasm,
		Shape:    shape,
	}
}

// Read returns a formula for the current value of op.
func (f *Frame) Read(op Operand) Expr {
	switch op := op.(type) {
	case RegOperand:
		return f.Ctx.ReadReg(op.Reg)
	case MemOperand:
		return f.Ctx.ReadMem(op.Address, op.Size)
	case ImmOperand:
		return NewConstantExpr(op.Value, op.Width)
	case Flag:
		return f.Ctx.ReadFlag(op)
	default:
		panic(fmt.Sprintf("unreachable: %T", op))
	}
}

// ReadAs is like Read but sign-extends or truncates immediates to width.
func (f *Frame) ReadAs(op Operand, width uint) Expr {
	if imm, ok := op.(ImmOperand); ok {
		return NewConstantExpr(uint64(signExtend(imm.Value, imm.Width)), width)
	}
	return f.Read(op)
}

// Write binds e to dst and appends the unit to the record.
func (f *Frame) Write(dst Operand, e Expr, comment string) (*SymbolicExpression, error) {
	if err := f.Err(); err != nil {
		return nil, err
	}
	switch dst := dst.(type) {
	case RegOperand:
		return f.Ctx.BindReg(f.Inst, e, dst.Reg, comment)
	case MemOperand:
		return f.Ctx.BindMem(f.Inst, e, dst, comment)
	case Flag:
		return f.Ctx.BindFlag(f.Inst, e, dst, comment)
	default:
		return nil, f.Unsupported()
	}
}

// Jump sets the instruction pointer formula bound when the instruction
// completes. Without a call to Jump the fallthrough address is used.
func (f *Frame) Jump(target Expr, tainted bool) {
	f.ip, f.ipTainted = target, tainted
}

// finalize binds the instruction pointer. It is always the last unit.
func (f *Frame) finalize() error {
	target := f.ip
	if target == nil {
		target = NewConstantExpr64(f.Insn.Next())
	}
	if _, err := f.Write(RegOperand{Reg: RIP}, target, "Program Counter"); err != nil {
		return err
	}
	f.Ctx.SetTaint(RegOperand{Reg: RIP}, f.ipTainted)
	return nil
}

// anyTainted returns true if any operand is tainted.
func (f *Frame) anyTainted(ops ...Operand) bool {
	for _, op := range ops {
		if f.Ctx.IsTainted(op) {
			return true
		}
	}
	return false
}

func defaultHandlers() []*Handler {
	var a []*Handler
	a = append(a, moveHandlers()...)
	a = append(a, arithHandlers()...)
	a = append(a, flowHandlers()...)
	a = append(a, condHandlers()...)
	return a
}

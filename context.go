package taintlift

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/benbjohnson/immutable"
	log "github.com/sirupsen/logrus"
)

// Context holds the concrete, symbolic and taint state of one analyzed
// thread. Registers are tracked per parent register, flags per flag and
// memory per byte. A Context is not safe for concurrent use.
type Context struct {
	ThreadID uint32

	// Optional. Shares structurally equal nodes across handler formulas.
	Interner *Interner

	concrete *immutable.SortedMap // location -> uint64
	symbolic *immutable.SortedMap // location -> binding
	taint    *immutable.SortedMap // location -> bool
	vars     []*SymbolicVariable

	nextID    uint64
	nextVarID uint64
	stats     Stats
}

// NewContext returns a new instance of Context for a thread.
func NewContext(threadID uint32) *Context {
	return &Context{
		ThreadID: threadID,
		concrete: immutable.NewSortedMap(&locationComparer{}),
		symbolic: immutable.NewSortedMap(&locationComparer{}),
		taint:    immutable.NewSortedMap(&locationComparer{}),
	}
}

// Stats counts translation activity of a single Context.
type Stats struct {
	Instructions int
	Expressions  int
	Failures     int
}

// Stats returns the translation counters.
func (c *Context) Stats() Stats { return c.stats }

// binding is the current symbolic unit of a location. For memory, index is
// the byte of the unit's value held at the location.
type binding struct {
	unit  *SymbolicExpression
	index uint
}

func (c *Context) binding(loc location) (binding, bool) {
	v, ok := c.symbolic.Get(loc)
	if !ok {
		return binding{}, false
	}
	return v.(binding), true
}

func (c *Context) concreteValue(loc location) uint64 {
	if v, ok := c.concrete.Get(loc); ok {
		return v.(uint64)
	}
	return 0
}

// Binding returns the current symbolic unit of a register, if any.
func (c *Context) Binding(reg Reg) (*SymbolicExpression, bool) {
	b, ok := c.binding(regLoc(reg.Parent()))
	return b.unit, ok
}

// FlagBinding returns the current symbolic unit of a flag, if any.
func (c *Context) FlagBinding(f Flag) (*SymbolicExpression, bool) {
	b, ok := c.binding(flagLoc(f))
	return b.unit, ok
}

// MemBinding returns the unit and byte index bound to a memory byte, if any.
func (c *Context) MemBinding(addr uint64) (*SymbolicExpression, uint, bool) {
	b, ok := c.binding(memLoc(addr))
	return b.unit, b.index, ok
}

func (c *Context) readParent(parent Reg) Expr {
	if b, ok := c.binding(regLoc(parent)); ok {
		return NewRefExpr(b.unit)
	}
	return NewConstantExpr64(c.concreteValue(regLoc(parent)))
}

// ReadReg returns a formula for the current value of reg.
func (c *Context) ReadReg(reg Reg) Expr {
	full := c.readParent(reg.Parent())
	if reg.Width() == Width64 {
		return full
	}
	return newExtractExpr(full, reg.Offset()+reg.Width()-1, reg.Offset())
}

// ReadRegBits returns bits high..low of reg.
func (c *Context) ReadRegBits(reg Reg, high, low uint) (Expr, error) {
	if low > high || high >= reg.Width() {
		return nil, &WidthError{Op: fmt.Sprintf("read %s[%d:%d]", reg, high, low), Widths: []uint{reg.Width()}}
	}
	off := reg.Offset()
	return newExtractExpr(c.readParent(reg.Parent()), off+high, off+low), nil
}

// ReadFlag returns a 1-bit formula for the current value of f.
func (c *Context) ReadFlag(f Flag) Expr {
	if b, ok := c.binding(flagLoc(f)); ok {
		return NewRefExpr(b.unit)
	}
	return NewConstantExpr(c.concreteValue(flagLoc(f)), WidthBool)
}

// ReadMem returns a formula for size bytes at addr, little-endian.
func (c *Context) ReadMem(addr uint64, size uint) Expr {
	assert(size > 0 && size <= 8, "invalid memory access size: %d", size)

	// Collapse to a single reference when the bytes are exactly one unit.
	if b, ok := c.binding(memLoc(addr)); ok && b.index == 0 && b.unit.width() == size*8 {
		whole := true
		for i := uint(1); i < size; i++ {
			if bi, ok := c.binding(memLoc(addr + uint64(i))); !ok || bi.unit != b.unit || bi.index != i {
				whole = false
				break
			}
		}
		if whole {
			return NewRefExpr(b.unit)
		}
	}

	var e Expr
	for i := uint(0); i < size; i++ {
		if b := c.readByte(addr + uint64(i)); e == nil {
			e = b
		} else {
			e = &ConcatExpr{MSB: b, LSB: e}
		}
	}
	return e
}

func (c *Context) readByte(addr uint64) Expr {
	loc := memLoc(addr)
	b, ok := c.binding(loc)
	if !ok {
		return NewConstantExpr(c.concreteValue(loc), Width8)
	}
	ref := NewRefExpr(b.unit)
	if b.unit.width() == Width8 {
		return ref
	}
	return newExtractExpr(ref, b.index*8+7, b.index*8)
}

// AddressExpr returns the 64-bit formula computing the effective address of m.
func (c *Context) AddressExpr(m MemOperand) Expr {
	var e Expr
	add := func(x Expr) {
		if e == nil {
			e = x
		} else {
			e = &BinaryExpr{Op: ADD, LHS: e, RHS: x}
		}
	}

	if m.Base.IsValid() {
		add(c.readAddrReg(m.Base))
	}
	if m.Index.IsValid() {
		idx := c.readAddrReg(m.Index)
		if m.Scale > 1 {
			idx = &BinaryExpr{Op: MUL, LHS: idx, RHS: NewConstantExpr64(uint64(m.Scale))}
		}
		add(idx)
	}
	if m.Disp != 0 || e == nil {
		add(NewConstantExpr64(uint64(m.Disp)))
	}
	return e
}

func (c *Context) readAddrReg(reg Reg) Expr {
	e := c.ReadReg(reg)
	if reg.Width() < Width64 {
		e = &CastExpr{Src: e, Width: Width64}
	}
	return e
}

func (c *Context) newUnit(inst *Instruction, e Expr, dst Operand, comment string) *SymbolicExpression {
	u := &SymbolicExpression{
		ID:      c.nextID,
		Expr:    e,
		Dest:    dst,
		Comment: comment,
		Value:   EvalExpr(e),
		Width:   ExprWidth(e),
	}
	c.nextID++
	if inst != nil {
		inst.append(u)
	}
	log.Debugf("[bind] %s <- %s", dst, u)
	return u
}

// BindReg binds e to reg and returns the new unit, which is appended to inst
// when inst is not nil. The unit holds the full parent register: 32-bit
// writes zero-extend and narrower writes keep the parent's other bits.
func (c *Context) BindReg(inst *Instruction, e Expr, reg Reg, comment string) (*SymbolicExpression, error) {
	if w := ExprWidth(e); w != reg.Width() {
		return nil, &WidthError{Op: "bind " + reg.String(), Widths: []uint{w, reg.Width()}}
	}
	return c.bindReg(inst, e, reg, comment), nil
}

func (c *Context) bindReg(inst *Instruction, e Expr, reg Reg, comment string) *SymbolicExpression {
	parent := reg.Parent()
	full := e
	switch w, off := reg.Width(), reg.Offset(); w {
	case Width64:
	case Width32:
		full = &CastExpr{Src: e, Width: Width64}
	default:
		old := c.readParent(parent)
		if off+w < Width64 {
			full = &ConcatExpr{MSB: newExtractExpr(old, Width64-1, off+w), LSB: full}
		}
		if off > 0 {
			full = &ConcatExpr{MSB: full, LSB: newExtractExpr(old, off-1, 0)}
		}
	}

	u := c.newUnit(inst, full, RegOperand{Reg: parent}, comment)
	loc := regLoc(parent)
	c.symbolic = c.symbolic.Set(loc, binding{unit: u})
	c.concrete = c.concrete.Set(loc, u.Value)
	return u
}

// BindMem binds e to the bytes of m. The width of e must equal the access size.
func (c *Context) BindMem(inst *Instruction, e Expr, m MemOperand, comment string) (*SymbolicExpression, error) {
	if w := ExprWidth(e); w != m.Size*8 {
		return nil, &WidthError{Op: "bind " + m.String(), Widths: []uint{w, m.Size * 8}}
	}
	return c.bindMem(inst, e, m, comment), nil
}

func (c *Context) bindMem(inst *Instruction, e Expr, m MemOperand, comment string) *SymbolicExpression {
	u := c.newUnit(inst, e, m, comment)
	for i := uint(0); i < m.Size; i++ {
		loc := memLoc(m.Address + uint64(i))
		c.symbolic = c.symbolic.Set(loc, binding{unit: u, index: i})
		c.concrete = c.concrete.Set(loc, (u.Value>>(8*i))&0xff)
	}
	return u
}

// BindFlag binds the 1-bit formula e to f.
func (c *Context) BindFlag(inst *Instruction, e Expr, f Flag, comment string) (*SymbolicExpression, error) {
	if w := ExprWidth(e); w != WidthBool {
		return nil, &WidthError{Op: "bind " + f.String(), Widths: []uint{w, WidthBool}}
	}
	u := c.newUnit(inst, e, f, comment)
	c.symbolic = c.symbolic.Set(flagLoc(f), binding{unit: u})
	c.concrete = c.concrete.Set(flagLoc(f), u.Value)
	return u, nil
}

// RegValue returns the concrete value of reg.
func (c *Context) RegValue(reg Reg) uint64 {
	v := c.concreteValue(regLoc(reg.Parent()))
	return (v >> reg.Offset()) & bitmask(reg.Width())
}

// SetRegValue sets the concrete value of reg, applying the same aliasing
// rule as BindReg. The symbolic binding is left in place.
func (c *Context) SetRegValue(reg Reg, value uint64) {
	loc := regLoc(reg.Parent())
	value &= bitmask(reg.Width())
	switch reg.Width() {
	case Width64, Width32:
	default:
		mask := bitmask(reg.Width()) << reg.Offset()
		value = c.concreteValue(loc)&^mask | value<<reg.Offset()
	}
	c.concrete = c.concrete.Set(loc, value)
}

// FlagValue returns the concrete value of f.
func (c *Context) FlagValue(f Flag) bool {
	return c.concreteValue(flagLoc(f)) != 0
}

// SetFlagValue sets the concrete value of f.
func (c *Context) SetFlagValue(f Flag, value bool) {
	var v uint64
	if value {
		v = 1
	}
	c.concrete = c.concrete.Set(flagLoc(f), v)
}

// MemValue returns the concrete little-endian value of size bytes at addr.
func (c *Context) MemValue(addr uint64, size uint) uint64 {
	var v uint64
	for i := int(size) - 1; i >= 0; i-- {
		v = v<<8 | c.concreteValue(memLoc(addr+uint64(i)))
	}
	return v
}

// SetMemValue sets the concrete value of size bytes at addr, little-endian.
func (c *Context) SetMemValue(addr uint64, size uint, value uint64) {
	for i := uint(0); i < size; i++ {
		c.concrete = c.concrete.Set(memLoc(addr+uint64(i)), (value>>(8*i))&0xff)
	}
}

// SetMemBytes copies b into concrete memory at addr.
func (c *Context) SetMemBytes(addr uint64, b []byte) {
	for i := range b {
		c.concrete = c.concrete.Set(memLoc(addr+uint64(i)), uint64(b[i]))
	}
}

// ConcretizeReg drops the symbolic binding of reg's parent register.
func (c *Context) ConcretizeReg(reg Reg) {
	c.symbolic = c.symbolic.Delete(regLoc(reg.Parent()))
}

// ConcretizeFlag drops the symbolic binding of f.
func (c *Context) ConcretizeFlag(f Flag) {
	c.symbolic = c.symbolic.Delete(flagLoc(f))
}

// ConcretizeMem drops the symbolic bindings of size bytes at addr.
func (c *Context) ConcretizeMem(addr uint64, size uint) {
	for i := uint(0); i < size; i++ {
		c.symbolic = c.symbolic.Delete(memLoc(addr + uint64(i)))
	}
}

// IsTainted returns true if any location covered by op is tainted.
// Immediates are never tainted.
func (c *Context) IsTainted(op Operand) bool {
	for _, loc := range operandLocs(op) {
		if _, ok := c.taint.Get(loc); ok {
			return true
		}
	}
	return false
}

// SetTaint sets the taint of every location covered by op and returns it.
func (c *Context) SetTaint(op Operand, tainted bool) bool {
	for _, loc := range operandLocs(op) {
		if tainted {
			c.taint = c.taint.Set(loc, true)
		} else {
			c.taint = c.taint.Delete(loc)
		}
	}
	return tainted
}

// SpreadCopy assigns the taint of src to dst.
func (c *Context) SpreadCopy(dst, src Operand) bool {
	t := c.SetTaint(dst, c.IsTainted(src))
	log.Debugf("[taint] copy %s <- %s: %v", dst, src, t)
	return t
}

// SpreadCombine sets the taint of dst to the union of the sources' taint.
func (c *Context) SpreadCombine(dst Operand, srcs ...Operand) bool {
	var t bool
	for _, src := range srcs {
		if c.IsTainted(src) {
			t = true
			break
		}
	}
	c.SetTaint(dst, t)
	log.Debugf("[taint] combine %s <- %v: %v", dst, srcs, t)
	return t
}

func (c *Context) newVariable(origin Origin, width uint, value uint64, source Operand, comment string) *SymbolicVariable {
	v := &SymbolicVariable{
		ID:      c.nextVarID,
		Origin:  origin,
		Width:   width,
		Value:   value & bitmask(width),
		Comment: comment,
		Source:  source,
	}
	c.nextVarID++
	c.vars = append(c.vars, v)
	return v
}

// ConvertRegToSymVar replaces the content of reg with a new symbolic variable
// holding its current concrete value.
func (c *Context) ConvertRegToSymVar(reg Reg, comment string) *SymbolicVariable {
	v := c.newVariable(OriginRegister, reg.Width(), c.RegValue(reg), RegOperand{Reg: reg}, comment)
	c.bindReg(nil, NewVariableExpr(v), reg, comment)
	return v
}

// ConvertMemToSymVar replaces the content of m with a new symbolic variable
// holding its current concrete value.
func (c *Context) ConvertMemToSymVar(m MemOperand, comment string) *SymbolicVariable {
	assert(m.Size > 0 && m.Size <= 8, "invalid memory variable size: %d", m.Size)
	v := c.newVariable(OriginMemory, m.Size*8, c.MemValue(m.Address, m.Size), m, comment)
	c.bindMem(nil, NewVariableExpr(v), m, comment)
	return v
}

// NewUndefinedVar returns a new variable for a value the architecture
// leaves undefined.
func (c *Context) NewUndefinedVar(width uint, comment string) *SymbolicVariable {
	return c.newVariable(OriginUndefined, width, 0, nil, comment)
}

// Variables returns the symbolic variables created so far.
func (c *Context) Variables() []*SymbolicVariable {
	return append([]*SymbolicVariable(nil), c.vars...)
}

// snapshot captures the stores so a failed translation can be undone.
// Unit and variable ids are not part of the snapshot and are never reused.
type snapshot struct {
	concrete *immutable.SortedMap
	symbolic *immutable.SortedMap
	taint    *immutable.SortedMap
	nvars    int
}

func (c *Context) snapshot() snapshot {
	return snapshot{
		concrete: c.concrete,
		symbolic: c.symbolic,
		taint:    c.taint,
		nvars:    len(c.vars),
	}
}

func (c *Context) restore(s snapshot) {
	c.concrete, c.symbolic, c.taint = s.concrete, s.symbolic, s.taint
	c.vars = c.vars[:s.nvars]
}

// Dump returns the contents of the context as a string.
func (c *Context) Dump() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "CONTEXT thread=%d\n", c.ThreadID)
	fmt.Fprintln(&buf, "================")
	fmt.Fprintf(&buf, "instructions=%d expressions=%d failures=%d\n", c.stats.Instructions, c.stats.Expressions, c.stats.Failures)
	fmt.Fprintln(&buf, "")

	fmt.Fprintln(&buf, "== REGISTERS")
	for _, r := range ParentRegs() {
		fmt.Fprintf(&buf, "%-4s %#016x%s\n", r, c.RegValue(r), c.dumpLoc(regLoc(r)))
	}
	fmt.Fprintln(&buf, "")

	fmt.Fprintln(&buf, "== FLAGS")
	for _, f := range Flags() {
		fmt.Fprintf(&buf, "%-4s %d%s\n", f, c.concreteValue(flagLoc(f)), c.dumpLoc(flagLoc(f)))
	}
	fmt.Fprintln(&buf, "")

	fmt.Fprintln(&buf, "== MEMORY")
	for _, addr := range c.memAddrs() {
		fmt.Fprintf(&buf, "%#016x %#02x%s\n", addr, c.concreteValue(memLoc(addr)), c.dumpLoc(memLoc(addr)))
	}
	fmt.Fprintln(&buf, "")

	fmt.Fprintln(&buf, "== VARIABLES")
	for _, v := range c.vars {
		fmt.Fprintf(&buf, "%s = %#x ; %s\n", v, v.Value, v.Comment)
	}
	return buf.String()
}

func (c *Context) dumpLoc(loc location) string {
	var s string
	if b, ok := c.binding(loc); ok {
		s += " " + b.unit.Name()
		if loc.kind == locMem {
			s += fmt.Sprintf("[%d]", b.index)
		}
	}
	if _, ok := c.taint.Get(loc); ok {
		s += " T"
	}
	return s
}

// memAddrs returns every memory address with a concrete value or taint, sorted.
func (c *Context) memAddrs() []uint64 {
	m := make(map[uint64]struct{})
	for _, store := range []*immutable.SortedMap{c.concrete, c.taint} {
		itr := store.Iterator()
		itr.Seek(location{kind: locMem})
		for {
			k, _ := itr.Next()
			if k == nil || k.(location).kind != locMem {
				break
			}
			m[k.(location).id] = struct{}{}
		}
	}

	a := make([]uint64, 0, len(m))
	for addr := range m {
		a = append(a, addr)
	}
	sort.Slice(a, func(i, j int) bool { return a[i] < a[j] })
	return a
}

type locKind uint8

const (
	locReg locKind = iota + 1
	locFlag
	locMem
)

// location keys the context stores.
type location struct {
	kind locKind
	id   uint64
}

func regLoc(r Reg) location { return location{kind: locReg, id: uint64(r)} }
func flagLoc(f Flag) location { return location{kind: locFlag, id: uint64(f)} }
func memLoc(addr uint64) location { return location{kind: locMem, id: addr} }

// operandLocs returns the locations covered by op.
func operandLocs(op Operand) []location {
	switch op := op.(type) {
	case RegOperand:
		return []location{regLoc(op.Reg.Parent())}
	case MemOperand:
		a := make([]location, op.Size)
		for i := range a {
			a[i] = memLoc(op.Address + uint64(i))
		}
		return a
	case Flag:
		return []location{flagLoc(op)}
	default:
		return nil
	}
}

// locationComparer orders locations by kind, then id. Implements immutable.Comparer.
type locationComparer struct{}

// Compare returns -1 if a is less than b, returns 1 if a is greater than b, and
// returns 0 if a is equal to b. Panic if a or b is not a location.
func (c *locationComparer) Compare(a, b interface{}) int {
	x, y := a.(location), b.(location)
	if x.kind < y.kind {
		return -1
	} else if x.kind > y.kind {
		return 1
	}
	return compareUint64(x.id, y.id)
}

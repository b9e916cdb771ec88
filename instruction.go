package taintlift

import (
	"bytes"
	"fmt"
)

// Insn is a decoded instruction as supplied by the decoder.
type Insn struct {
	Address  uint64
	Size     uint
	Mnemonic string
	Disasm   string
	Operands []Operand

	resolved bool
}

// NewInsn returns a decoded instruction whose operands are resolved.
func NewInsn(addr uint64, size uint, mnemonic, disasm string, ops ...Operand) *Insn {
	return &Insn{
		Address:  addr,
		Size:     size,
		Mnemonic: mnemonic,
		Disasm:   disasm,
		Operands: ops,
		resolved: true,
	}
}

// Resolved returns true if the decoder resolved the operands.
func (i *Insn) Resolved() bool { return i.resolved }

// Next returns the fallthrough address.
func (i *Insn) Next() uint64 { return i.Address + uint64(i.Size) }

func (i *Insn) String() string { return fmt.Sprintf("%#x: %s", i.Address, i.Disasm) }

// Instruction is the record of one translated instruction: its symbolic
// units in the order they were created. The last unit is always the
// instruction pointer update.
type Instruction struct {
	Address  uint64
	Disasm   string
	ThreadID uint32
	Exprs    []*SymbolicExpression

	sealed bool
}

func newInstruction(threadID uint32, insn *Insn) *Instruction {
	return &Instruction{
		Address:  insn.Address,
		Disasm:   insn.Disasm,
		ThreadID: threadID,
	}
}

func (inst *Instruction) append(u *SymbolicExpression) {
	assert(!inst.sealed, "append to sealed instruction: %#x", inst.Address)
	inst.Exprs = append(inst.Exprs, u)
}

func (inst *Instruction) seal() { inst.sealed = true }

// ExprCount returns the number of symbolic units.
func (inst *Instruction) ExprCount() int { return len(inst.Exprs) }

// IDs returns the ids of the symbolic units in order.
func (inst *Instruction) IDs() []uint64 {
	a := make([]uint64, len(inst.Exprs))
	for i, u := range inst.Exprs {
		a[i] = u.ID
	}
	return a
}

// Last returns the last symbolic unit.
func (inst *Instruction) Last() *SymbolicExpression {
	if len(inst.Exprs) == 0 {
		return nil
	}
	return inst.Exprs[len(inst.Exprs)-1]
}

func (inst *Instruction) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%#x: %s\n", inst.Address, inst.Disasm)
	for _, u := range inst.Exprs {
		fmt.Fprintf(&buf, "  %s\n", u)
	}
	return buf.String()
}

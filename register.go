package taintlift

import (
	"fmt"
	"strings"
)

// Reg identifies an x86-64 register.
type Reg uint8

// General purpose registers and the instruction pointer.
const (
	RegInvalid Reg = iota

	RAX
	RBX
	RCX
	RDX
	RSI
	RDI
	RBP
	RSP
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
	RIP

	EAX
	EBX
	ECX
	EDX
	ESI
	EDI
	EBP
	ESP
	R8D
	R9D
	R10D
	R11D
	R12D
	R13D
	R14D
	R15D

	AX
	BX
	CX
	DX
	SI
	DI
	BP
	SP
	R8W
	R9W
	R10W
	R11W
	R12W
	R13W
	R14W
	R15W

	AL
	BL
	CL
	DL
	SIL
	DIL
	BPL
	SPL
	R8B
	R9B
	R10B
	R11B
	R12B
	R13B
	R14B
	R15B

	AH
	BH
	CH
	DH

	regCount
)

type regInfo struct {
	name   string
	parent Reg
	width  uint
	offset uint
}

var (
	regs      [regCount]regInfo
	regByName = make(map[string]Reg)
)

func init() {
	names64 := []string{"rax", "rbx", "rcx", "rdx", "rsi", "rdi", "rbp", "rsp", "r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15"}
	names32 := []string{"eax", "ebx", "ecx", "edx", "esi", "edi", "ebp", "esp", "r8d", "r9d", "r10d", "r11d", "r12d", "r13d", "r14d", "r15d"}
	names16 := []string{"ax", "bx", "cx", "dx", "si", "di", "bp", "sp", "r8w", "r9w", "r10w", "r11w", "r12w", "r13w", "r14w", "r15w"}
	names8 := []string{"al", "bl", "cl", "dl", "sil", "dil", "bpl", "spl", "r8b", "r9b", "r10b", "r11b", "r12b", "r13b", "r14b", "r15b"}

	for i := range names64 {
		parent := RAX + Reg(i)
		regs[parent] = regInfo{names64[i], parent, Width64, 0}
		regs[EAX+Reg(i)] = regInfo{names32[i], parent, Width32, 0}
		regs[AX+Reg(i)] = regInfo{names16[i], parent, Width16, 0}
		regs[AL+Reg(i)] = regInfo{names8[i], parent, Width8, 0}
	}
	regs[RIP] = regInfo{"rip", RIP, Width64, 0}
	for i, name := range []string{"ah", "bh", "ch", "dh"} {
		regs[AH+Reg(i)] = regInfo{name, RAX + Reg(i), Width8, 8}
	}

	for r := RAX; r < regCount; r++ {
		regByName[regs[r].name] = r
	}
}

// LookupReg returns the register with the given name.
func LookupReg(name string) (Reg, bool) {
	r, ok := regByName[strings.ToLower(name)]
	return r, ok
}

// ParentRegs returns the 64-bit registers that own all register state.
func ParentRegs() []Reg {
	a := make([]Reg, 0, RIP-RAX+1)
	for r := RAX; r <= RIP; r++ {
		a = append(a, r)
	}
	return a
}

// IsValid returns true if r is a known register.
func (r Reg) IsValid() bool { return r > RegInvalid && r < regCount }

// Parent returns the full-width register that contains r.
func (r Reg) Parent() Reg { return regs[r].parent }

// Width returns the bit width of r.
func (r Reg) Width() uint { return regs[r].width }

// Offset returns the bit offset of r inside its parent.
func (r Reg) Offset() uint { return regs[r].offset }

// String returns the register name.
func (r Reg) String() string {
	if r.IsValid() {
		return regs[r].name
	}
	return fmt.Sprintf("Reg<%d>", r)
}

// Flag identifies a status or control flag.
type Flag uint8

// Flags.
const (
	FlagInvalid Flag = iota
	CF
	PF
	AF
	ZF
	SF
	OF
	DF
	flagCount
)

var flagNames = [...]string{
	CF: "cf",
	PF: "pf",
	AF: "af",
	ZF: "zf",
	SF: "sf",
	OF: "of",
	DF: "df",
}

// Flags returns all flags in declaration order.
func Flags() []Flag {
	return []Flag{CF, PF, AF, ZF, SF, OF, DF}
}

// LookupFlag returns the flag with the given name.
func LookupFlag(name string) (Flag, bool) {
	name = strings.ToLower(name)
	for f := CF; f < flagCount; f++ {
		if flagNames[f] == name {
			return f, true
		}
	}
	return FlagInvalid, false
}

// String returns the flag name.
func (f Flag) String() string {
	if f > FlagInvalid && f < flagCount {
		return flagNames[f]
	}
	return fmt.Sprintf("Flag<%d>", f)
}

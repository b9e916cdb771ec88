package taintlift

// Cond is an x86 condition code.
type Cond int

// Condition codes, in encoding order.
const (
	CondO Cond = iota
	CondNO
	CondB
	CondAE
	CondE
	CondNE
	CondBE
	CondA
	CondS
	CondNS
	CondP
	CondNP
	CondL
	CondGE
	CondLE
	CondG
	condCount
)

// condSuffixes holds the mnemonic suffixes of each condition. The first is
// the canonical spelling.
var condSuffixes = [...][]string{
	CondO:  {"O"},
	CondNO: {"NO"},
	CondB:  {"B", "C", "NAE"},
	CondAE: {"AE", "NB", "NC"},
	CondE:  {"E", "Z"},
	CondNE: {"NE", "NZ"},
	CondBE: {"BE", "NA"},
	CondA:  {"A", "NBE"},
	CondS:  {"S"},
	CondNS: {"NS"},
	CondP:  {"P", "PE"},
	CondNP: {"NP", "PO"},
	CondL:  {"L", "NGE"},
	CondGE: {"GE", "NL"},
	CondLE: {"LE", "NG"},
	CondG:  {"G", "NLE"},
}

func (c Cond) String() string { return condSuffixes[c][0] }

// Flags returns the flags the condition reads.
func (c Cond) Flags() []Flag {
	switch c {
	case CondO, CondNO:
		return []Flag{OF}
	case CondB, CondAE:
		return []Flag{CF}
	case CondE, CondNE:
		return []Flag{ZF}
	case CondBE, CondA:
		return []Flag{CF, ZF}
	case CondS, CondNS:
		return []Flag{SF}
	case CondP, CondNP:
		return []Flag{PF}
	case CondL, CondGE:
		return []Flag{SF, OF}
	default:
		return []Flag{ZF, SF, OF}
	}
}

// Expr returns a 1-bit formula over the current flag bindings that is 1
// when the condition holds.
func (c Cond) Expr(b *Builder, ctx *Context) Expr {
	flag := ctx.ReadFlag
	switch c {
	case CondO:
		return flag(OF)
	case CondNO:
		return b.Not(flag(OF))
	case CondB:
		return flag(CF)
	case CondAE:
		return b.Not(flag(CF))
	case CondE:
		return flag(ZF)
	case CondNE:
		return b.Not(flag(ZF))
	case CondBE:
		return b.Binary(OR, flag(CF), flag(ZF))
	case CondA:
		return b.Not(b.Binary(OR, flag(CF), flag(ZF)))
	case CondS:
		return flag(SF)
	case CondNS:
		return b.Not(flag(SF))
	case CondP:
		return flag(PF)
	case CondNP:
		return b.Not(flag(PF))
	case CondL:
		return b.Binary(XOR, flag(SF), flag(OF))
	case CondGE:
		return b.Not(b.Binary(XOR, flag(SF), flag(OF)))
	case CondLE:
		return b.Binary(OR, flag(ZF), b.Binary(XOR, flag(SF), flag(OF)))
	default:
		return b.Not(b.Binary(OR, flag(ZF), b.Binary(XOR, flag(SF), flag(OF))))
	}
}

// Holds evaluates the condition against the concrete flags.
func (c Cond) Holds(ctx *Context) bool {
	flag := ctx.FlagValue
	switch c {
	case CondO:
		return flag(OF)
	case CondNO:
		return !flag(OF)
	case CondB:
		return flag(CF)
	case CondAE:
		return !flag(CF)
	case CondE:
		return flag(ZF)
	case CondNE:
		return !flag(ZF)
	case CondBE:
		return flag(CF) || flag(ZF)
	case CondA:
		return !flag(CF) && !flag(ZF)
	case CondS:
		return flag(SF)
	case CondNS:
		return !flag(SF)
	case CondP:
		return flag(PF)
	case CondNP:
		return !flag(PF)
	case CondL:
		return flag(SF) != flag(OF)
	case CondGE:
		return flag(SF) == flag(OF)
	case CondLE:
		return flag(ZF) || flag(SF) != flag(OF)
	default:
		return !flag(ZF) && flag(SF) == flag(OF)
	}
}

// flagOperands converts flags to operands for taint propagation.
func flagOperands(flags []Flag) []Operand {
	a := make([]Operand, len(flags))
	for i, f := range flags {
		a[i] = f
	}
	return a
}

// condHandlers returns the CMOVcc, SETcc and Jcc families.
func condHandlers() []*Handler {
	var a []*Handler
	for c := CondO; c < condCount; c++ {
		a = append(a,
			condHandler("CMOV", c, shapes(semCmov(c), ShapeRegReg, ShapeRegMem)),
			condHandler("SET", c, shapes(semSet(c), ShapeReg, ShapeMem)),
			condHandler("J", c, shapes(semJcc(c), ShapeImm)),
		)
	}
	return a
}

func condHandler(prefix string, c Cond, m map[Shape]ShapeFunc) *Handler {
	h := &Handler{Mnemonic: prefix + condSuffixes[c][0], Shapes: m}
	for _, s := range condSuffixes[c][1:] {
		h.Aliases = append(h.Aliases, prefix+s)
	}
	return h
}

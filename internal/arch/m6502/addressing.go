package m6502

import (
	m6502 "github.com/retroenv/retrogolib/arch/cpu/cpu6502"
)

// Form is the syntactic shape of an instruction operand as written in
// assembly source. The final addressing mode also depends on the operand value.
type Form int

const (
	NoOperand   Form = iota // implied, or accumulator when the instruction has no implied form
	Accumulator             // A
	Immediate               // #value
	Direct                  // value
	DirectX                 // value,X
	DirectY                 // value,Y
	Indirect                // (value)
	IndirectX               // (value,X)
	IndirectY               // (value),Y
)

var formNames = map[Form]string{
	NoOperand:   "implied",
	Accumulator: "accumulator",
	Immediate:   "immediate",
	Direct:      "direct",
	DirectX:     "direct,x",
	DirectY:     "direct,y",
	Indirect:    "indirect",
	IndirectX:   "indirect,x",
	IndirectY:   "indirect,y",
}

func (f Form) String() string {
	if name, ok := formNames[f]; ok {
		return name
	}
	return "unknown"
}

// Force overrides the zero page or absolute choice of an operand, as set by
// assembler prefixes like a: and z:.
type Force int

const (
	ForceNone Force = iota
	ForceAbsolute
	ForceZeroPage
)

// candidates returns the zero page and absolute addressing modes that an
// operand form can be encoded as. Forms without a zero page variant return
// the same mode twice.
func candidates(form Form) (m6502.AddressingMode, m6502.AddressingMode) {
	switch form {
	case Direct:
		return m6502.ZeroPageAddressing, m6502.AbsoluteAddressing
	case DirectX:
		return m6502.ZeroPageXAddressing, m6502.AbsoluteXAddressing
	case DirectY:
		return m6502.ZeroPageYAddressing, m6502.AbsoluteYAddressing
	case Indirect:
		return m6502.IndirectAddressing, m6502.IndirectAddressing
	case IndirectX:
		return m6502.IndirectXAddressing, m6502.IndirectXAddressing
	case IndirectY:
		return m6502.IndirectYAddressing, m6502.IndirectYAddressing
	case Immediate:
		return m6502.ImmediateAddressing, m6502.ImmediateAddressing
	case Accumulator:
		return m6502.AccumulatorAddressing, m6502.AccumulatorAddressing
	default:
		return m6502.ImpliedAddressing, m6502.ImpliedAddressing
	}
}

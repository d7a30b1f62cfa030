// Package m6502 provides the 6502 instruction encoding knowledge that is
// needed to compute the size of assembled instructions.
package m6502

import (
	"errors"
	"fmt"

	m6502 "github.com/retroenv/retrogolib/arch/cpu/cpu6502"
)

var (
	errUnknownMnemonic    = errors.New("unknown mnemonic")
	errUnsupportedOperand = errors.New("unsupported operand")
)

// Operand describes an instruction operand for encoding purposes.
type Operand struct {
	Form  Form
	Force Force
	Value int  // evaluated operand value, only valid if Known is set
	Known bool // whether the operand value could be evaluated
}

// Mode returns the addressing mode that an assembler picks for the
// instruction and operand. The zero page variant is used when the operand
// value is known to fit into the zero page and the instruction supports it,
// unknown values default to the absolute variant.
func Mode(name string, operand Operand) (m6502.AddressingMode, error) {
	if !IsMnemonic(name) {
		return 0, fmt.Errorf("%w '%s'", errUnknownMnemonic, name)
	}

	switch operand.Form {
	case NoOperand:
		if HasMode(name, m6502.ImpliedAddressing) {
			return m6502.ImpliedAddressing, nil
		}
		if HasMode(name, m6502.AccumulatorAddressing) {
			return m6502.AccumulatorAddressing, nil
		}

	case Direct:
		if HasMode(name, m6502.RelativeAddressing) {
			return m6502.RelativeAddressing, nil
		}
		return selectMode(name, operand)

	case DirectX, DirectY:
		return selectMode(name, operand)

	default:
		mode, _ := candidates(operand.Form)
		if HasMode(name, mode) {
			return mode, nil
		}
	}

	return 0, fmt.Errorf("%w: %s with %s operand", errUnsupportedOperand, name, operand.Form)
}

func selectMode(name string, operand Operand) (m6502.AddressingMode, error) {
	zeroPage, absolute := candidates(operand.Form)

	fitsZeroPage := operand.Known && operand.Value >= 0 && operand.Value <= 0xFF
	preferZeroPage := operand.Force == ForceZeroPage || (operand.Force == ForceNone && fitsZeroPage)

	switch {
	case preferZeroPage && HasMode(name, zeroPage):
		return zeroPage, nil
	case HasMode(name, absolute):
		return absolute, nil
	case HasMode(name, zeroPage) && operand.Force != ForceAbsolute:
		// stx/sty with a ,Y/,X index only exist in zero page form
		return zeroPage, nil
	default:
		return 0, fmt.Errorf("%w: %s with %s operand", errUnsupportedOperand, name, operand.Form)
	}
}

// InstructionSize returns the number of bytes the instruction occupies
// when assembled.
func InstructionSize(name string, operand Operand) (int, error) {
	mode, err := Mode(name, operand)
	if err != nil {
		return 0, err
	}
	size, ok := ModeSize(name, mode)
	if !ok {
		return 0, fmt.Errorf("%w: %s has no known size", errUnsupportedOperand, name)
	}
	return size, nil
}

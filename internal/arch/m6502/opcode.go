package m6502

import (
	"strings"

	m6502 "github.com/retroenv/retrogolib/arch/cpu/cpu6502"
)

// mnemonics maps every official instruction name to the addressing modes it
// can be encoded with and the encoded length of each mode.
var mnemonics = buildMnemonics()

func buildMnemonics() map[string]map[m6502.AddressingMode]int {
	m := map[string]map[m6502.AddressingMode]int{}
	for _, opcode := range m6502.Opcodes {
		ins := opcode.Instruction
		if ins == nil || ins.Unofficial {
			continue
		}
		info, ok := ins.Addressing[opcode.Addressing]
		if !ok || info.Size == 0 {
			continue
		}

		name := strings.ToLower(ins.Name)
		modes, ok := m[name]
		if !ok {
			modes = map[m6502.AddressingMode]int{}
			m[name] = modes
		}
		modes[opcode.Addressing] = int(info.Size)
	}
	return m
}

// IsMnemonic returns whether the name is an official 6502 instruction,
// the comparison is case insensitive.
func IsMnemonic(name string) bool {
	_, ok := mnemonics[strings.ToLower(name)]
	return ok
}

// HasMode returns whether the instruction can be encoded with the given
// addressing mode.
func HasMode(name string, mode m6502.AddressingMode) bool {
	_, ok := ModeSize(name, mode)
	return ok
}

// ModeSize returns the encoded length of the instruction in the addressing
// mode, including the opcode byte.
func ModeSize(name string, mode m6502.AddressingMode) (int, bool) {
	modes, ok := mnemonics[strings.ToLower(name)]
	if !ok {
		return 0, false
	}
	size, ok := modes[mode]
	return size, ok
}

// IsBranch returns whether the instruction uses relative addressing.
func IsBranch(name string) bool {
	return HasMode(name, m6502.RelativeAddressing)
}

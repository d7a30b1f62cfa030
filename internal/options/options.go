// Package options contains the program options.
package options

import (
	"github.com/retroenv/decompverify/internal/cartimage"
)

// Parameters contains file path options.
type Parameters struct {
	Config string `flag:"config" usage:"config file (default: decompverify.yaml if present)"`
	ROM    string `flag:"rom" usage:"cartridge image file"`
	Source string `flag:"source" usage:"assembly source file of the cartridge image"`
}

// Flags contains behavior options.
type Flags struct {
	Debug   bool `flag:"debug" usage:"enable debug logging"`
	Quiet   bool `flag:"quiet" usage:"quiet mode"`
	NoColor bool `flag:"no-color" usage:"disable colored output"`
}

// Layout contains the placement of the program region of the cartridge
// image in the address space.
type Layout struct {
	HeaderSize  uint   `flag:"header-size" usage:"offset of the program data in the image"`
	ProgramSize uint   `flag:"program-size" usage:"number of program bytes to load"`
	BaseAddress uint16 `flag:"base-address" usage:"address to load the program data to"`
}

// Program options of the verifier.
type Program struct {
	Parameters
	Flags
	Layout
}

// CartridgeLayout returns the layout of the program region for loading the
// cartridge image.
func (p Program) CartridgeLayout() cartimage.Layout {
	return cartimage.Layout{
		HeaderSize:  p.HeaderSize,
		ProgramSize: p.ProgramSize,
		BaseAddress: p.BaseAddress,
	}
}

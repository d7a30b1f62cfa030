// Package cartimage handles cartridge image files and places their program
// region into the simulated memory space.
package cartimage

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"slices"

	"github.com/retroenv/retrogolib/arch/system/nes"
	"github.com/retroenv/retrogolib/arch/system/nes/cartridge"
)

const (
	// DefaultHeaderSize is the size of the iNES header that precedes the program data.
	DefaultHeaderSize = 16
	// DefaultProgramSize is the size of the program region of a 32 KiB NROM cartridge.
	DefaultProgramSize = 0x8000
)

var errEmptyImage = errors.New("empty cartridge image")

// Layout describes where the program region is located in the image and
// where it is placed in the address space.
type Layout struct {
	HeaderSize  uint   // offset of the program region in the image
	ProgramSize uint   // number of bytes to load
	BaseAddress uint16 // destination address of the first byte
}

// DefaultLayout returns the layout of a 32 KiB NROM cartridge: the program
// region follows the 16 byte header and is placed at $8000.
func DefaultLayout() Layout {
	return Layout{
		HeaderSize:  DefaultHeaderSize,
		ProgramSize: DefaultProgramSize,
		BaseAddress: uint16(nes.CodeBaseAddress),
	}
}

func (l Layout) String() string {
	return fmt.Sprintf("offset %d, %d bytes at $%04X", l.HeaderSize, l.ProgramSize, l.BaseAddress)
}

// Target receives the program region of an image.
type Target interface {
	Load(image []byte, sourceOffset uint, destBase uint16, length uint) error
}

// Read reads all bytes of a cartridge image file.
func Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cartridge image '%s': %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", errEmptyImage, path)
	}
	return data, nil
}

// Load copies the program region of the image into the target.
func Load(target Target, image []byte, layout Layout) error {
	if err := target.Load(image, layout.HeaderSize, layout.BaseAddress, layout.ProgramSize); err != nil {
		return fmt.Errorf("loading program region (%s): %w", layout, err)
	}
	return nil
}

// Checksums contains the CRC32 checksums to identify the PRG and CHR parts of the image.
type Checksums struct {
	PRG     uint32
	CHR     uint32
	Overall uint32
}

// Info contains the details of an iNES header.
type Info struct {
	PRGSize     int
	CHRSize     int
	TrainerSize int
	Mapper      uint16
	Mirror      int
	Battery     int
	Checksums   Checksums
}

// Inspect parses the iNES header of the image. The result is informational,
// the program layout is never derived from it.
func Inspect(image []byte) (Info, error) {
	cart, err := cartridge.LoadFile(bytes.NewReader(image))
	if err != nil {
		return Info{}, fmt.Errorf("loading cartridge: %w", err)
	}

	crc32q := crc32.MakeTable(crc32.IEEE)
	checksums := Checksums{
		PRG:     crc32.Checksum(cart.PRG, crc32q),
		CHR:     crc32.Checksum(cart.CHR, crc32q),
		Overall: crc32.Checksum(append(slices.Clone(cart.PRG), cart.CHR...), crc32q),
	}

	return Info{
		Checksums:   checksums,
		PRGSize:     len(cart.PRG),
		CHRSize:     len(cart.CHR),
		TrainerSize: len(cart.Trainer),
		Mapper:      cart.Mapper,
		Mirror:      int(cart.Mirror),
		Battery:     int(cart.Battery),
	}, nil
}

// Fits returns whether the program region of the layout is located inside
// of the PRG data that the header announces.
func (i Info) Fits(layout Layout) bool {
	start := uint(DefaultHeaderSize + i.TrainerSize)
	return layout.HeaderSize >= start && layout.HeaderSize+layout.ProgramSize <= start+uint(i.PRGSize)
}

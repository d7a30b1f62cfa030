// Package memory implements the simulated 6502 address space that decompiled
// routines read from and write to.
package memory

import (
	"errors"
	"fmt"
)

// Size is the number of addressable bytes of a 16 bit address bus.
const Size = 0x10000

var (
	// ErrImageTooShort is returned when a load range exceeds the source image.
	ErrImageTooShort = errors.New("image too short")
	// ErrDestinationOverflow is returned when a load range exceeds the address space.
	ErrDestinationOverflow = errors.New("destination overflow")
)

// Bus is the capability given to code under test: byte access by address.
type Bus interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

var _ Bus = &Space{}

// Space is a complete 64 KiB memory space. The zero value is a valid, zeroed
// memory space. Every scenario is expected to own its own instance.
type Space struct {
	data [Size]byte
}

// New returns a new zeroed memory space.
func New() *Space {
	return &Space{}
}

// Read returns the byte at the given address.
func (s *Space) Read(address uint16) uint8 {
	return s.data[address]
}

// Write stores the byte at the given address.
func (s *Space) Write(address uint16, value uint8) {
	s.data[address] = value
}

// ReadWord reads a little endian word, the high byte address wraps at the
// end of the address space.
func (s *Space) ReadWord(address uint16) uint16 {
	low := uint16(s.data[address])
	high := uint16(s.data[address+1])
	return high<<8 | low
}

// WriteWord writes a little endian word, the high byte address wraps at the
// end of the address space.
func (s *Space) WriteWord(address uint16, value uint16) {
	s.data[address] = byte(value)
	s.data[address+1] = byte(value >> 8)
}

// Reset sets every byte of the memory space to zero.
func (s *Space) Reset() {
	clear(s.data[:])
}

// Load copies length bytes of the image starting at sourceOffset into the
// memory space starting at destBase. The memory is not modified if the
// range is invalid.
func (s *Space) Load(image []byte, sourceOffset uint, destBase uint16, length uint) error {
	imageLength := uint(len(image))
	if sourceOffset > imageLength || length > imageLength-sourceOffset {
		return fmt.Errorf("%w: reading %d bytes at offset %d from image of %d bytes",
			ErrImageTooShort, length, sourceOffset, imageLength)
	}
	if length > Size-uint(destBase) {
		return fmt.Errorf("%w: writing %d bytes at address 0x%04X exceeds 0x%X bytes",
			ErrDestinationOverflow, length, destBase, Size)
	}

	copy(s.data[destBase:uint(destBase)+length], image[sourceOffset:sourceOffset+length])
	return nil
}

// Dump returns a copy of length bytes starting at the given address. The
// range wraps around at the end of the address space.
func (s *Space) Dump(start uint16, length uint) []byte {
	buf := make([]byte, length)
	address := start
	for i := range buf {
		buf[i] = s.data[address]
		address++
	}
	return buf
}

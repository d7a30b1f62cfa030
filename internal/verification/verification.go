// Package verification compares the simulated memory and cartridge images
// against expected values.
package verification

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/retroenv/decompverify/internal/labels"
	"github.com/retroenv/retrogolib/arch/system/nes/cartridge"
	"github.com/retroenv/retrogolib/log"
)

// maxListed limits the mismatches that are listed in messages and logs.
const maxListed = 10

// Reader provides read access to an address space.
type Reader interface {
	Read(address uint16) uint8
}

// Mismatch is a byte that differs from its expected value.
type Mismatch struct {
	Address  uint16
	Expected uint8
	Actual   uint8
}

func (m Mismatch) String() string {
	return fmt.Sprintf("$%04X: expected $%02X, got $%02X", m.Address, m.Expected, m.Actual)
}

// MismatchError is returned when memory does not contain the expected bytes.
type MismatchError struct {
	Mismatches []Mismatch
}

func (e *MismatchError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d byte mismatch", len(e.Mismatches))
	if len(e.Mismatches) != 1 {
		sb.WriteString("es")
	}

	for i, m := range e.Mismatches {
		if i == maxListed {
			fmt.Fprintf(&sb, ", ... %d more", len(e.Mismatches)-maxListed)
			break
		}
		if i == 0 {
			sb.WriteString(": ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(m.String())
	}
	return sb.String()
}

// Expect compares the bytes at the given addresses. It returns a
// *MismatchError listing all differences in address order.
func Expect(reader Reader, expected map[uint16]uint8) error {
	addresses := make([]uint16, 0, len(expected))
	for address := range expected {
		addresses = append(addresses, address)
	}
	sort.Slice(addresses, func(i, j int) bool {
		return addresses[i] < addresses[j]
	})

	var mismatches []Mismatch
	for _, address := range addresses {
		actual := reader.Read(address)
		if actual != expected[address] {
			mismatches = append(mismatches, Mismatch{
				Address:  address,
				Expected: expected[address],
				Actual:   actual,
			})
		}
	}

	if len(mismatches) == 0 {
		return nil
	}
	return &MismatchError{Mismatches: mismatches}
}

// CompareBytes compares a consecutive range of memory starting at the
// address with the expected bytes.
func CompareBytes(reader Reader, address uint16, expected []byte) []Mismatch {
	var mismatches []Mismatch
	for i, value := range expected {
		current := address + uint16(i)
		actual := reader.Read(current)
		if actual != value {
			mismatches = append(mismatches, Mismatch{
				Address:  current,
				Expected: value,
				Actual:   actual,
			})
		}
	}
	return mismatches
}

// Region is an address range that contains loaded data.
type Region struct {
	Start uint16
	Size  uint
}

// Contains returns whether the address range is completely inside of the
// region.
func (r Region) Contains(address uint16, length int) bool {
	start := uint(address)
	return start >= uint(r.Start) && start+uint(length) <= uint(r.Start)+r.Size
}

// BlockResult is the outcome of checking a single data block.
type BlockResult struct {
	Block      labels.DataBlock
	Mismatches []Mismatch
}

// Report summarizes the check of the data blocks of an assembly source
// against the loaded image.
type Report struct {
	Checked int
	Skipped int
	Failed  []BlockResult
}

// Blocks checks that the known bytes of every data block that is located in
// the region match the memory content. This verifies the resolved label
// addresses against the cartridge image.
func Blocks(logger *log.Logger, reader Reader, region Region, blocks []labels.DataBlock) Report {
	var report Report

	for _, block := range blocks {
		if block.Len() == 0 || !region.Contains(block.Address, block.Len()) {
			report.Skipped++
			continue
		}
		report.Checked++

		var mismatches []Mismatch
		for i, value := range block.Bytes {
			address := block.Address + uint16(i)
			if actual := reader.Read(address); block.Known[i] && actual != value {
				mismatches = append(mismatches, Mismatch{
					Address:  address,
					Expected: value,
					Actual:   actual,
				})
			}
		}
		if len(mismatches) == 0 {
			continue
		}

		report.Failed = append(report.Failed, BlockResult{
			Block:      block,
			Mismatches: mismatches,
		})
		if logger != nil && len(report.Failed) <= maxListed {
			logger.Error("Data block mismatch",
				log.Int("line", block.Line),
				log.String("label", block.Label),
				log.Hex("address", block.Address),
				log.Hex("expected", mismatches[0].Expected),
				log.Hex("got", mismatches[0].Actual))
		}
	}

	return report
}

func checkBufferEqual(logger *log.Logger, input, output []byte) error {
	if len(input) != len(output) {
		return fmt.Errorf("mismatched lengths, %d != %d", len(input), len(output))
	}

	var diffs uint64
	for i := range input {
		if input[i] == output[i] {
			continue
		}

		diffs++
		if diffs <= maxListed {
			logger.Error("Offset mismatch",
				log.Hex("offset", i),
				log.Hex("expected", input[i]),
				log.Hex("got", output[i]))
		}
	}
	if diffs == 0 {
		return nil
	}
	return fmt.Errorf("%d offset mismatches", diffs)
}

// CompareImages checks that two cartridge images contain the same program,
// character and trainer data and header settings. It is used to confirm
// that an image built from the assembly source matches the reference.
func CompareImages(logger *log.Logger, expected, actual []byte) error {
	cart1, err := cartridge.LoadFile(bytes.NewReader(expected))
	if err != nil {
		return fmt.Errorf("loading expected cartridge: %w", err)
	}
	cart2, err := cartridge.LoadFile(bytes.NewReader(actual))
	if err != nil {
		return fmt.Errorf("loading actual cartridge: %w", err)
	}

	if err := checkBufferEqual(logger, cart1.PRG, cart2.PRG); err != nil {
		return fmt.Errorf("segment PRG mismatch: %w", err)
	}
	if err := checkBufferEqual(logger, cart1.CHR, cart2.CHR); err != nil {
		return fmt.Errorf("segment CHR mismatch: %w", err)
	}
	if err := checkBufferEqual(logger, cart1.Trainer, cart2.Trainer); err != nil {
		return fmt.Errorf("trainer mismatch: %w", err)
	}
	if cart1.Mapper != cart2.Mapper {
		return fmt.Errorf("mapper mismatch, expected %d but got %d", cart1.Mapper, cart2.Mapper)
	}
	if cart1.Mirror != cart2.Mirror {
		return fmt.Errorf("mirror mismatch, expected %d but got %d", cart1.Mirror, cart2.Mirror)
	}
	if cart1.Battery != cart2.Battery {
		return fmt.Errorf("battery mismatch, expected %d but got %d", cart1.Battery, cart2.Battery)
	}
	return nil
}

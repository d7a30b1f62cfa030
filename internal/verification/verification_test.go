package verification

import (
	"bytes"
	"errors"
	"testing"

	"github.com/retroenv/decompverify/internal/labels"
	"github.com/retroenv/decompverify/internal/memory"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func TestExpect(t *testing.T) {
	mem := memory.New()
	mem.Write(0x00EB, 0x13)
	mem.Write(0x0300, 0x01)

	err := Expect(mem, map[uint16]uint8{0x00EB: 0x13, 0x0300: 0x01})
	assert.NoError(t, err)

	err = Expect(mem, map[uint16]uint8{0x0300: 0x02, 0x00EB: 0x14, 0x0400: 0x00})
	var mismatchErr *MismatchError
	assert.True(t, errors.As(err, &mismatchErr))
	assert.Len(t, mismatchErr.Mismatches, 2)
	assert.Equal(t, uint16(0x00EB), mismatchErr.Mismatches[0].Address)
	assert.Equal(t, uint8(0x14), mismatchErr.Mismatches[0].Expected)
	assert.Equal(t, uint8(0x13), mismatchErr.Mismatches[0].Actual)
	assert.Equal(t, "2 byte mismatches: $00EB: expected $14, got $13, $0300: expected $02, got $01", err.Error())
}

func TestMismatchErrorTruncates(t *testing.T) {
	err := &MismatchError{}
	for i := range 12 {
		err.Mismatches = append(err.Mismatches, Mismatch{Address: uint16(i), Expected: 1})
	}
	assert.Contains(t, err.Error(), "12 byte mismatches")
	assert.Contains(t, err.Error(), "... 2 more")

	single := &MismatchError{Mismatches: []Mismatch{{Address: 0x10, Expected: 1, Actual: 2}}}
	assert.Equal(t, "1 byte mismatch: $0010: expected $01, got $02", single.Error())
}

func TestCompareBytes(t *testing.T) {
	mem := memory.New()
	mem.Write(0x8000, 0xd8)
	mem.Write(0x8001, 0xe8)

	mismatches := CompareBytes(mem, 0x8000, []byte{0xd8, 0xe8, 0xf0})
	assert.Len(t, mismatches, 1)
	assert.Equal(t, uint16(0x8002), mismatches[0].Address)
	assert.Equal(t, uint8(0xf0), mismatches[0].Expected)
}

func TestRegion(t *testing.T) {
	region := Region{Start: 0x8000, Size: 0x8000}
	assert.True(t, region.Contains(0x8000, 1))
	assert.True(t, region.Contains(0xFFFD, 3))
	assert.False(t, region.Contains(0xFFFE, 3))
	assert.False(t, region.Contains(0x7FFF, 1))
}

// newBufferLogger returns a logger that records into the buffer. Mismatches
// are logged at error level, which would abort a test logger.
func newBufferLogger(buf *bytes.Buffer) *log.Logger {
	return log.NewWithConfig(log.Config{
		Level:      log.DebugLevel,
		Output:     buf,
		TimeFormat: "-",
	})
}

func TestBlocks(t *testing.T) {
	r := labels.FromSource(
		"  .enum $0300\n" +
			"Buffer: .dsb 4\n" +
			"  .ende\n" +
			"  .org $8000\n" +
			"Good: .db $d8, $e8, $f0\n" +
			"Bad:  .db $01, $02\n" +
			"Open: .dsb 2\n")

	mem := memory.New()
	for i, value := range []byte{0xd8, 0xe8, 0xf0, 0x01, 0x03} {
		mem.Write(0x8000+uint16(i), value)
	}

	var buf bytes.Buffer
	region := Region{Start: 0x8000, Size: 0x8000}
	report := Blocks(newBufferLogger(&buf), mem, region, r.DataBlocks())
	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, 1, report.Skipped)
	assert.Len(t, report.Failed, 1)
	assert.Contains(t, buf.String(), "Data block mismatch")
	assert.Contains(t, buf.String(), "Bad")

	failed := report.Failed[0]
	assert.Equal(t, "Bad", failed.Block.Label)
	assert.Len(t, failed.Mismatches, 1)
	assert.Equal(t, uint16(0x8004), failed.Mismatches[0].Address)

	withoutLogger := Blocks(nil, mem, region, r.DataBlocks())
	assert.Equal(t, report.Checked, withoutLogger.Checked)
	assert.Len(t, withoutLogger.Failed, 1)
}

// buildNESROM creates a minimal iNES image with one PRG bank.
func buildNESROM(mapper byte) []byte {
	data := make([]byte, 16+16384)
	copy(data[0:4], []byte{'N', 'E', 'S', 0x1A})
	data[4] = 1
	data[6] = mapper << 4
	data[7] = mapper & 0xF0
	return data
}

func TestCompareImages(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	assert.NoError(t, CompareImages(logger, buildNESROM(0), buildNESROM(0)))
	assert.Equal(t, "", buf.String())

	changed := buildNESROM(0)
	changed[16+0x100] = 0xEA
	err := CompareImages(logger, buildNESROM(0), changed)
	assert.ErrorContains(t, err, "segment PRG mismatch")
	assert.Contains(t, buf.String(), "Offset mismatch")

	err = CompareImages(logger, buildNESROM(0), buildNESROM(1))
	assert.ErrorContains(t, err, "mapper mismatch")

	err = CompareImages(logger, make([]byte, 32), buildNESROM(0))
	assert.ErrorContains(t, err, "loading expected cartridge")
}

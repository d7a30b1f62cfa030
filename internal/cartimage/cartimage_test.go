package cartimage

import (
	"errors"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"

	"github.com/retroenv/decompverify/internal/memory"
	"github.com/retroenv/retrogolib/assert"
)

// buildNESROM creates a minimal iNES image with the given PRG bank count,
// every PRG byte is set to the low byte of its offset into the PRG data.
func buildNESROM(prgBanks, mapper byte) []byte {
	const prgBankSize = 16384

	data := make([]byte, DefaultHeaderSize+int(prgBanks)*prgBankSize)
	copy(data[0:4], []byte{'N', 'E', 'S', 0x1A})
	data[4] = prgBanks
	data[5] = 0
	data[6] = mapper << 4
	data[7] = mapper & 0xF0

	for i := DefaultHeaderSize; i < len(data); i++ {
		data[i] = byte(i - DefaultHeaderSize)
	}
	return data
}

func TestDefaultLayout(t *testing.T) {
	layout := DefaultLayout()
	assert.Equal(t, uint(16), layout.HeaderSize)
	assert.Equal(t, uint(0x8000), layout.ProgramSize)
	assert.Equal(t, uint16(0x8000), layout.BaseAddress)
	assert.Equal(t, "offset 16, 32768 bytes at $8000", layout.String())
}

func TestRead(t *testing.T) {
	dir := t.TempDir()

	t.Run("existing file", func(t *testing.T) {
		path := filepath.Join(dir, "game.nes")
		assert.NoError(t, os.WriteFile(path, buildNESROM(2, 0), 0o600))

		data, err := Read(path)
		assert.NoError(t, err)
		assert.Len(t, data, DefaultHeaderSize+0x8000)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Read(filepath.Join(dir, "missing.nes"))
		assert.ErrorContains(t, err, "reading cartridge image")
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(dir, "empty.nes")
		assert.NoError(t, os.WriteFile(path, nil, 0o600))

		_, err := Read(path)
		assert.True(t, errors.Is(err, errEmptyImage))
	})
}

func TestLoad(t *testing.T) {
	t.Run("reference layout", func(t *testing.T) {
		image := buildNESROM(2, 0)
		mem := memory.New()

		assert.NoError(t, Load(mem, image, DefaultLayout()))
		assert.Equal(t, uint8(0x00), mem.Read(0x8000))
		assert.Equal(t, uint8(0x0D), mem.Read(0x800D))
		assert.Equal(t, uint8(0xFF), mem.Read(0xFFFF))
		assert.Equal(t, uint8(0), mem.Read(0x7FFF))
	})

	t.Run("image too short", func(t *testing.T) {
		image := buildNESROM(1, 0)
		mem := memory.New()

		err := Load(mem, image, DefaultLayout())
		assert.True(t, errors.Is(err, memory.ErrImageTooShort))
		assert.ErrorContains(t, err, "offset 16")
		assert.Equal(t, uint8(0), mem.Read(0x8001))
	})

	t.Run("mirrored 16 KiB bank", func(t *testing.T) {
		image := buildNESROM(1, 0)
		mem := memory.New()

		assert.NoError(t, Load(mem, image, Layout{HeaderSize: 16, ProgramSize: 0x4000, BaseAddress: 0x8000}))
		assert.NoError(t, Load(mem, image, Layout{HeaderSize: 16, ProgramSize: 0x4000, BaseAddress: 0xC000}))
		assert.Equal(t, mem.Read(0x8123), mem.Read(0xC123))
	})
}

func TestInspect(t *testing.T) {
	info, err := Inspect(buildNESROM(2, 1))
	assert.NoError(t, err)
	assert.Equal(t, 32768, info.PRGSize)
	assert.Equal(t, 0, info.CHRSize)
	assert.Equal(t, uint16(1), info.Mapper)
	assert.True(t, info.Fits(DefaultLayout()))

	info, err = Inspect(buildNESROM(1, 0))
	assert.NoError(t, err)
	assert.False(t, info.Fits(DefaultLayout()))
	assert.Equal(t, crc32.ChecksumIEEE(buildNESROM(1, 0)[DefaultHeaderSize:]), info.Checksums.PRG)

	// CHR is empty, the overall checksum only covers PRG
	assert.Equal(t, info.Checksums.PRG, info.Checksums.Overall)
	assert.Equal(t, uint32(0), info.Checksums.CHR)

	_, err = Inspect(make([]byte, 100))
	assert.Error(t, err)
}

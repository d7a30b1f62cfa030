package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/retroenv/decompverify/internal/memory"
	"github.com/retroenv/decompverify/internal/scenario"
	"github.com/retroenv/retrogolib/assert"
)

const testSource = `      .org $8000
Start:  sei
        cld
        lda #$10
        sta $2000
        ldx #$ff
        txs
        jsr ClearFlag
        jmp Start
ClearFlag:
        lda #$00
        sta $0300
        rts
MaxLeftXSpdData:
        .db $d8, $e8, $f0
`

// testFiles writes an assembly source and a matching cartridge image.
func testFiles(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()

	source := filepath.Join(dir, "game.asm")
	assert.NoError(t, os.WriteFile(source, []byte(testSource), 0o600))

	// 2 PRG banks and 1 CHR bank
	image := make([]byte, 16+0x8000+0x2000)
	copy(image, []byte{'N', 'E', 'S', 0x1A, 2, 1})
	copy(image[16+0x16:], []byte{0xd8, 0xe8, 0xf0})
	rom := filepath.Join(dir, "game.nes")
	assert.NoError(t, os.WriteFile(rom, image, 0o600))

	return source, rom
}

func execute(t *testing.T, registry *scenario.Registry, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true

	cmd := NewRootCommand(BuildInfo{Version: "v1.2.3", Commit: "0123456789"}, registry)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--quiet"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLabels(t *testing.T) {
	source, _ := testFiles(t)

	out, err := execute(t, nil, "labels", "--source", source)
	assert.NoError(t, err)
	assert.Equal(t, "$8000 Start\n$8010 ClearFlag\n$8016 MaxLeftXSpdData\n", out)

	out, err = execute(t, nil, "labels", "--routines", "--source", source)
	assert.NoError(t, err)
	assert.Equal(t, "$8000 Start\n$8010 ClearFlag\n", out)

	out, err = execute(t, nil, "labels", "--yaml", "--source", source)
	assert.NoError(t, err)
	assert.Contains(t, out, "- name: MaxLeftXSpdData\n  address: $8016\n  bank: 0\n")
}

func TestLabelsWithoutSource(t *testing.T) {
	_, err := execute(t, nil, "labels")
	assert.True(t, errors.Is(err, errNoSource))
}

func TestLookup(t *testing.T) {
	source, rom := testFiles(t)

	out, err := execute(t, nil, "lookup", "MaxLeftXSpdData", "--bytes", "3", "--source", source, "--rom", rom)
	assert.NoError(t, err)
	assert.Equal(t, "MaxLeftXSpdData $8016 D8 E8 F0\n", out)

	out, err = execute(t, nil, "lookup", "Start", "ClearFlag", "--source", source)
	assert.NoError(t, err)
	assert.Equal(t, "Start $8000\nClearFlag $8010\n", out)

	_, err = execute(t, nil, "lookup", "Missing", "--source", source)
	assert.True(t, errors.Is(err, errLabelNotFound))

	_, err = execute(t, nil, "lookup", "Start", "--bytes", "3", "--source", source)
	assert.True(t, errors.Is(err, errNoROM))
}

func TestCheck(t *testing.T) {
	source, rom := testFiles(t)

	out, err := execute(t, nil, "check", "--source", source, "--rom", rom)
	assert.NoError(t, err)
	assert.Contains(t, out, "3 labels, 1 data blocks checked, 0 skipped")
	assert.Contains(t, out, "OK")

	// a shifted layout moves the table away from its label
	_, err = execute(t, nil, "check", "--source", source, "--rom", rom, "--header-size", "17")
	assert.True(t, errors.Is(err, errBlocksMismatch))
}

func TestInspect(t *testing.T) {
	_, rom := testFiles(t)

	out, err := execute(t, nil, "inspect", "--rom", rom)
	assert.NoError(t, err)
	assert.Contains(t, out, "PRG:     32768 bytes")
	assert.Contains(t, out, "CHR:     8192 bytes")
	assert.Contains(t, out, "Layout:  offset 16, 32768 bytes at $8000")
	assert.False(t, strings.Contains(out, "not inside"))

	out, err = execute(t, nil, "inspect", "--rom", rom, "--program-size", "$8001")
	assert.NoError(t, err)
	assert.Contains(t, out, "not inside")
}

func TestCompare(t *testing.T) {
	_, rom := testFiles(t)

	out, err := execute(t, nil, "compare", rom, rom)
	assert.NoError(t, err)
	assert.Equal(t, "OK\n", out)

	data, err := os.ReadFile(rom)
	assert.NoError(t, err)
	data[16+0x16] = 0
	changed := filepath.Join(t.TempDir(), "changed.nes")
	assert.NoError(t, os.WriteFile(changed, data, 0o600))

	_, err = execute(t, nil, "compare", rom, changed)
	assert.ErrorContains(t, err, "segment PRG mismatch")
}

func TestRun(t *testing.T) {
	source, rom := testFiles(t)

	registry := scenario.NewRegistry()
	assert.NoError(t, registry.Register("ClearFlag", scenario.RoutineFunc(func(bus memory.Bus) {
		bus.Write(0x0300, 0x00)
	})))
	assert.NoError(t, registry.Register("CopySpeed", scenario.RoutineFunc(func(bus memory.Bus) {
		bus.Write(0x0400, bus.Read(0x8016))
	})))

	dir := t.TempDir()
	passing := filepath.Join(dir, "pass.yaml")
	assert.NoError(t, os.WriteFile(passing, []byte(`name: clear flag
routine: ClearFlag
load: false
seed:
  $0300: 1
expect:
  $0300: 0
---
name: copy speed
routine: CopySpeed
expect:
  $0400: 0xd8
  MaxLeftXSpdData: 0xd8
`), 0o600))

	out, err := execute(t, registry, "run", passing, "--source", source, "--rom", rom)
	assert.NoError(t, err)
	assert.Contains(t, out, "PASS clear flag\n")
	assert.Contains(t, out, "PASS copy speed\n")
	assert.Contains(t, out, "1 files, 2 passed, 0 failed")

	failing := filepath.Join(dir, "fail.yaml")
	assert.NoError(t, os.WriteFile(failing, []byte(`name: wrong value
routine: CopySpeed
expect:
  $0400: 0xe8
`), 0o600))

	out, err = execute(t, registry, "run", failing, "--source", source, "--rom", rom)
	assert.True(t, errors.Is(err, errScenariosFailed))
	assert.Contains(t, out, "FAIL wrong value")
	assert.Contains(t, out, "$0400: expected $E8, got $D8")
}

func TestVersion(t *testing.T) {
	registry := scenario.NewRegistry()
	assert.NoError(t, registry.Register("noop", scenario.RoutineFunc(func(memory.Bus) {})))

	out, err := execute(t, registry, "version")
	assert.NoError(t, err)
	assert.Equal(t, "decompverify v1.2.3 (0123456)\nroutines: noop\n", out)
}

func TestInvalidSetting(t *testing.T) {
	_, err := execute(t, nil, "version", "--base-address", "$10000")
	assert.ErrorContains(t, err, "out of range")
}

func TestExport(t *testing.T) {
	source, rom := testFiles(t)

	out, err := execute(t, nil, "export", "--package", "smb", "--source", source)
	assert.NoError(t, err)
	assert.Contains(t, out, "package smb\n")
	assert.Contains(t, out, "\tMaxLeftXSpdData = 0x8016\n")

	output := filepath.Join(t.TempDir(), "labels.asm")
	out, err = execute(t, nil, "export", "--format", "asm", "--tables", "-o", output, "--source", source, "--rom", rom)
	assert.NoError(t, err)
	assert.Equal(t, "", out)

	data, err := os.ReadFile(output)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "; PRG CRC32 checksum: ")
	assert.Contains(t, string(data), "ClearFlag = $8010\n")
	assert.Contains(t, string(data), ".byte $d8, $e8, $f0\n")
}

package scenario

import (
	"context"
	"errors"
	"testing"

	"github.com/retroenv/decompverify/internal/cartimage"
	"github.com/retroenv/decompverify/internal/memory"
	"github.com/retroenv/decompverify/internal/verification"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

// testImage returns an image with a 16 byte header and a 32 KiB program
// region that contains the MaxLeftXSpdData table at $800D.
func testImage() []byte {
	image := make([]byte, 16+0x8000)
	copy(image, "NES\x1a")
	copy(image[16+0x0D:], []byte{0xd8, 0xe8, 0xf0})
	return image
}

// copySpeed copies the table entry selected by $0000 to $0001.
func copySpeed(bus memory.Bus) {
	index := uint16(bus.Read(0x0000))
	bus.Write(0x0001, bus.Read(0x800D+index))
}

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	registry := NewRegistry()
	assert.NoError(t, registry.Register("copySpeed", RoutineFunc(copySpeed)))
	return NewRunner(log.NewTestLogger(t),
		WithRegistry(registry),
		WithImage(testImage(), cartimage.DefaultLayout()),
	)
}

//nolint:funlen // test functions can be long
func TestRun(t *testing.T) {
	runner := newTestRunner(t)

	t.Run("loaded image is visible to the routine", func(t *testing.T) {
		err := runner.Run(Scenario{
			Name:    "index 2",
			Routine: "copySpeed",
			Load:    true,
			Seed:    map[uint16]uint8{0x0000: 2},
			Expect:  map[uint16]uint8{0x0001: 0xf0},
		})
		assert.NoError(t, err)
	})

	t.Run("mismatch", func(t *testing.T) {
		err := runner.Run(Scenario{
			Name:    "wrong",
			Routine: "copySpeed",
			Load:    true,
			Seed:    map[uint16]uint8{0x0000: 1},
			Expect:  map[uint16]uint8{0x0001: 0xd8},
		})
		var mismatchErr *verification.MismatchError
		assert.True(t, errors.As(err, &mismatchErr))
		assert.Equal(t, uint8(0xe8), mismatchErr.Mismatches[0].Actual)
		assert.ErrorContains(t, err, "scenario 'wrong'")
	})

	t.Run("without load the program region is zero", func(t *testing.T) {
		err := runner.Run(Scenario{
			Name:   "no load",
			Func:   RoutineFunc(copySpeed),
			Expect: map[uint16]uint8{0x0001: 0x00},
		})
		assert.NoError(t, err)
	})

	t.Run("unknown routine", func(t *testing.T) {
		err := runner.Run(Scenario{Name: "missing", Routine: "doesNotExist"})
		assert.True(t, errors.Is(err, ErrUnknownRoutine))
		assert.ErrorContains(t, err, "doesNotExist")
	})

	t.Run("panic is reported as error", func(t *testing.T) {
		err := runner.Run(Scenario{
			Name: "panic",
			Func: RoutineFunc(func(memory.Bus) {
				var table []byte
				_ = table[3]
			}),
		})
		assert.True(t, errors.Is(err, errRoutinePanic))
	})

	t.Run("load without image", func(t *testing.T) {
		bare := NewRunner(log.NewTestLogger(t))
		err := bare.Run(Scenario{Name: "load", Func: RoutineFunc(copySpeed), Load: true})
		assert.True(t, errors.Is(err, errNoImage))
	})
}

func TestRunsAreIsolated(t *testing.T) {
	runner := newTestRunner(t)
	dirty := RoutineFunc(func(bus memory.Bus) {
		bus.Write(0x0200, 0xAA)
		bus.Write(0x8000, 0x55)
	})

	err := runner.Run(Scenario{Name: "first", Func: dirty, Load: true,
		Expect: map[uint16]uint8{0x0200: 0xAA}})
	assert.NoError(t, err)

	err = runner.Run(Scenario{Name: "second", Func: RoutineFunc(func(memory.Bus) {}), Load: true,
		Expect: map[uint16]uint8{0x0200: 0x00, 0x8000: 0x00, 0x800D: 0xd8}})
	assert.NoError(t, err)
}

func TestRunAll(t *testing.T) {
	runner := newTestRunner(t)
	scenarios := []Scenario{
		{Name: "pass", Routine: "copySpeed", Load: true,
			Seed: map[uint16]uint8{0x0000: 0}, Expect: map[uint16]uint8{0x0001: 0xd8}},
		{Name: "fail", Routine: "copySpeed", Load: true,
			Seed: map[uint16]uint8{0x0000: 0}, Expect: map[uint16]uint8{0x0001: 0x00}},
	}

	results, err := runner.RunAll(context.Background(), scenarios)
	assert.NoError(t, err)
	assert.Len(t, results, 2)
	assert.True(t, results[0].Passed())
	assert.False(t, results[1].Passed())
	assert.NotNil(t, results[1].Mismatch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err = runner.RunAll(ctx, scenarios)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, results)
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	assert.NoError(t, registry.Register("b", RoutineFunc(copySpeed)))
	assert.NoError(t, registry.Register("a", RoutineFunc(copySpeed)))
	assert.Error(t, registry.Register("a", RoutineFunc(copySpeed)))

	names := registry.Names()
	assert.Len(t, names, 2)
	assert.Equal(t, "a", names[0])

	_, ok := registry.Get("c")
	assert.False(t, ok)
}

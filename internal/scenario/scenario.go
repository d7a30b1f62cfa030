// Package scenario runs decompiled routines against the simulated memory
// space. Every run resets the memory, loads the cartridge image, seeds the
// input bytes, invokes the routine and compares the output bytes.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/retroenv/decompverify/internal/cartimage"
	"github.com/retroenv/decompverify/internal/memory"
	"github.com/retroenv/decompverify/internal/verification"
	"github.com/retroenv/retrogolib/log"
)

var (
	// ErrUnresolvedLabel is returned when a scenario references a label that
	// is not defined in the assembly source.
	ErrUnresolvedLabel = errors.New("unresolved label")
	// ErrUnknownRoutine is returned when a scenario references a routine that
	// is not registered.
	ErrUnknownRoutine = errors.New("unknown routine")

	errNoImage       = errors.New("scenario requires a cartridge image but none is configured")
	errRoutinePanic  = errors.New("routine panicked")
	errDuplicateName = errors.New("routine already registered")
)

// Routine is a decompiled function under test. It accesses the simulated
// memory only through the bus it is invoked with.
type Routine interface {
	Run(bus memory.Bus)
}

// RoutineFunc adapts a function to the Routine interface.
type RoutineFunc func(bus memory.Bus)

// Run calls f(bus).
func (f RoutineFunc) Run(bus memory.Bus) {
	f(bus)
}

// Registry maps routine names to implementations, so that scenario files
// can reference the routine to invoke by name.
type Registry struct {
	routines map[string]Routine
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		routines: map[string]Routine{},
	}
}

// Register adds a routine under the given name.
func (r *Registry) Register(name string, routine Routine) error {
	if _, ok := r.routines[name]; ok {
		return fmt.Errorf("%w: %s", errDuplicateName, name)
	}
	r.routines[name] = routine
	return nil
}

// Get returns the routine that is registered under the name.
func (r *Registry) Get(name string) (Routine, bool) {
	routine, ok := r.routines[name]
	return routine, ok
}

// Names returns the sorted names of all registered routines.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.routines))
	for name := range r.routines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Scenario is a single verification case.
type Scenario struct {
	Name    string
	Routine string  // name of the routine in the registry
	Func    Routine // routine to invoke, takes precedence over Routine
	Load    bool    // load the cartridge image before seeding
	Seed    map[uint16]uint8
	Expect  map[uint16]uint8
}

// Result is the outcome of a scenario run.
type Result struct {
	Name     string
	Err      error
	Mismatch *verification.MismatchError // set if the run completed with wrong output
}

// Passed returns whether the routine produced the expected output.
func (r Result) Passed() bool {
	return r.Err == nil
}

// Option configures a runner.
type Option func(*Runner)

// WithImage sets the cartridge image and the layout of its program region
// that scenarios load.
func WithImage(image []byte, layout cartimage.Layout) Option {
	return func(r *Runner) {
		r.image = image
		r.layout = layout
	}
}

// WithRegistry sets the registry that routine names are looked up in.
func WithRegistry(registry *Registry) Option {
	return func(r *Runner) {
		r.registry = registry
	}
}

// Runner executes scenarios. Every run uses its own memory space, runs do
// not share any state.
type Runner struct {
	logger   *log.Logger
	registry *Registry
	image    []byte
	layout   cartimage.Layout
}

// NewRunner returns a new scenario runner.
func NewRunner(logger *log.Logger, options ...Option) *Runner {
	r := &Runner{
		logger:   logger,
		registry: NewRegistry(),
		layout:   cartimage.DefaultLayout(),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Run executes a single scenario. It returns a *verification.MismatchError
// if the routine completed but memory does not contain the expected bytes.
func (r *Runner) Run(s Scenario) error {
	routine, err := r.routine(s)
	if err != nil {
		return err
	}

	mem := memory.New()
	if err := r.prepare(mem, s); err != nil {
		return err
	}

	if err := invoke(routine, mem); err != nil {
		return fmt.Errorf("running scenario '%s': %w", s.Name, err)
	}

	if err := verification.Expect(mem, s.Expect); err != nil {
		return fmt.Errorf("scenario '%s': %w", s.Name, err)
	}
	return nil
}

// RunAll executes the scenarios in order. It stops before the next scenario
// when the context is canceled and returns the results of the scenarios that
// ran.
func (r *Runner) RunAll(ctx context.Context, scenarios []Scenario) ([]Result, error) {
	results := make([]Result, 0, len(scenarios))
	for _, s := range scenarios {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("running scenarios: %w", err)
		}

		err := r.Run(s)
		result := Result{Name: s.Name, Err: err}
		var mismatchErr *verification.MismatchError
		if errors.As(err, &mismatchErr) {
			result.Mismatch = mismatchErr
		}
		results = append(results, result)

		if err != nil {
			r.logger.Debug("Scenario failed", log.String("name", s.Name), log.Err(err))
		} else {
			r.logger.Debug("Scenario passed", log.String("name", s.Name))
		}
	}
	return results, nil
}

func (r *Runner) routine(s Scenario) (Routine, error) {
	if s.Func != nil {
		return s.Func, nil
	}
	routine, ok := r.registry.Get(s.Routine)
	if !ok {
		return nil, fmt.Errorf("scenario '%s': %w '%s'", s.Name, ErrUnknownRoutine, s.Routine)
	}
	return routine, nil
}

// prepare resets the memory, loads the image and seeds the input bytes.
// The reset has to happen before the load, otherwise the image is lost.
func (r *Runner) prepare(mem *memory.Space, s Scenario) error {
	mem.Reset()

	if s.Load {
		if r.image == nil {
			return fmt.Errorf("scenario '%s': %w", s.Name, errNoImage)
		}
		if err := cartimage.Load(mem, r.image, r.layout); err != nil {
			return fmt.Errorf("scenario '%s': %w", s.Name, err)
		}
	}

	for address, value := range s.Seed {
		mem.Write(address, value)
	}
	return nil
}

// invoke runs the routine and converts a panic into an error, decompiled
// code can fail with index out of range errors.
func invoke(routine Routine, bus memory.Bus) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errRoutinePanic, r)
		}
	}()

	routine.Run(bus)
	return nil
}

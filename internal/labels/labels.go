// Package labels resolves the addresses of the labels that are defined in
// 6502 assembly source, without assembling it.
package labels

import (
	"fmt"
	"os"
	"slices"
	"unicode"

	"github.com/retroenv/decompverify/internal/asmsource"
	"github.com/retroenv/decompverify/internal/symbols"
	"github.com/retroenv/retrogolib/arch/system/nes"
	"github.com/retroenv/retrogolib/log"
)

// Symbol is a label with its resolved address.
type Symbol = symbols.Symbol

// Option configures the resolver.
type Option func(*settings)

type settings struct {
	base   uint16
	logger *log.Logger
}

// WithBaseAddress sets the address counter at the start of the source,
// before any origin directive. It defaults to the NES program code base
// address $8000.
func WithBaseAddress(address uint16) Option {
	return func(s *settings) {
		s.base = address
	}
}

// WithLogger enables debug logging of the resolution.
func WithLogger(logger *log.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// Resolver maps label names to the addresses they are assembled at. It is
// immutable after creation and safe for concurrent use.
type Resolver struct {
	table     *symbols.Table
	constants map[string]int
	blocks    []DataBlock
	warnings  []asmsource.Warning
	passes    int
}

// FromSource parses the assembly source text and resolves all labels.
// Lines that can not be interpreted do not stop the resolution, they are
// reported by Warnings.
func FromSource(text string, options ...Option) *Resolver {
	cfg := settings{
		base: uint16(nes.CodeBaseAddress),
	}
	for _, option := range options {
		option(&cfg)
	}

	src := asmsource.Parse(text)
	result, passes := resolve(src.Statements, cfg.base)

	warnings := make([]asmsource.Warning, 0, len(src.Warnings)+len(result.warnings))
	warnings = append(warnings, src.Warnings...)
	warnings = append(warnings, result.warnings...)
	slices.SortStableFunc(warnings, func(a, b asmsource.Warning) int {
		return a.Line - b.Line
	})

	r := &Resolver{
		table:     result.table,
		constants: result.constants,
		blocks:    result.blocks,
		warnings:  warnings,
		passes:    passes,
	}

	if cfg.logger != nil {
		for _, warning := range r.warnings {
			cfg.logger.Debug("Assembly source warning",
				log.Int("line", warning.Line),
				log.String("reason", warning.Reason),
				log.String("text", warning.Text))
		}
		cfg.logger.Debug("Resolved labels",
			log.Int("labels", r.Len()),
			log.Int("constants", len(r.constants)),
			log.Int("passes", passes),
			log.Int("warnings", len(r.warnings)))
	}

	return r
}

// FromFile reads an assembly source file and resolves all labels.
func FromFile(path string, options ...Option) (*Resolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading assembly file '%s': %w", path, err)
	}
	return FromSource(string(data), options...), nil
}

// Address returns the address of a label. Label names are case sensitive,
// local labels starting with @ are named Parent.@local. The result is false
// for labels that are not defined.
func (r *Resolver) Address(label string) (uint16, bool) {
	sym, ok := r.table.Get(label)
	if !ok {
		return 0, false
	}
	return sym.Address, true
}

// Label returns the first label that is defined at the address.
func (r *Resolver) Label(address uint16) (string, bool) {
	return r.table.Name(address)
}

// Labels returns all labels sorted by address.
func (r *Resolver) Labels() []Symbol {
	return r.table.Sorted()
}

// Routines returns the labels that are the target of a jsr or jmp
// instruction, sorted by address.
func (r *Resolver) Routines() []Symbol {
	var routines []Symbol
	for _, sym := range r.table.Sorted() {
		if r.table.IsUsed(sym.Name) {
			routines = append(routines, sym)
		}
	}
	return routines
}

// Len returns the number of defined labels.
func (r *Resolver) Len() int {
	return r.table.Len()
}

// Constant returns the value of a constant definition as 16 bit value.
func (r *Resolver) Constant(name string) (uint16, bool) {
	value, ok := r.constants[name]
	return uint16(value), ok
}

// Constants returns a copy of all constant definitions.
func (r *Resolver) Constants() map[string]uint16 {
	constants := make(map[string]uint16, len(r.constants))
	for name, value := range r.constants {
		constants[name] = uint16(value)
	}
	return constants
}

// Warnings returns the lines that could not be fully interpreted, sorted by
// line number.
func (r *Resolver) Warnings() []asmsource.Warning {
	return slices.Clone(r.warnings)
}

// DataBlocks returns the data emitted by the data directives of the source.
func (r *Resolver) DataBlocks() []DataBlock {
	return slices.Clone(r.blocks)
}

// Block returns the first data block that starts at the address of the
// label.
func (r *Resolver) Block(label string) (DataBlock, bool) {
	address, ok := r.Address(label)
	if !ok {
		return DataBlock{}, false
	}
	for _, block := range r.blocks {
		if block.Address == address {
			return block, true
		}
	}
	return DataBlock{}, false
}

// Passes returns the number of passes that were needed until all label
// addresses were stable.
func (r *Resolver) Passes() int {
	return r.passes
}

// FunctionNameAt returns the function name for the first label defined at
// the address.
func (r *Resolver) FunctionNameAt(address uint16) (string, bool) {
	label, ok := r.Label(address)
	if !ok {
		return "", false
	}
	return FunctionName(label), true
}

// FunctionName converts a label to the name of the function that
// implements the routine in generated code: the first letter is lower
// cased and characters that are not valid in identifiers are replaced by
// underscores.
func FunctionName(label string) string {
	if label == "" {
		return "func"
	}

	runes := []rune(label)
	runes[0] = unicode.ToLower(runes[0])
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			runes[i] = '_'
		}
	}
	return string(runes)
}

package scenario

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/retroenv/decompverify/internal/asmsource"
	"gopkg.in/yaml.v3"
)

var (
	errMissingName    = errors.New("scenario without name")
	errInvalidAddress = errors.New("address out of range")
	errConflict       = errors.New("conflicting values for address")
)

// Resolver resolves label names to addresses. Names that are not labels
// are looked up as constants, which covers RAM locations that a disassembly
// declares as Name = $xx.
type Resolver interface {
	Address(label string) (uint16, bool)
	Constant(name string) (uint16, bool)
}

// document is the YAML representation of a scenario. Memory locations are
// given as numbers ($00CE, 0x00CE, 206), label names or label expressions
// like Player_Y_Position+1.
type document struct {
	Name    string           `yaml:"name"`
	Routine string           `yaml:"routine"`
	Load    *bool            `yaml:"load"`
	Seed    map[string]uint8 `yaml:"seed"`
	Expect  map[string]uint8 `yaml:"expect"`
}

// LoadFile reads all scenarios of a YAML file, a file can contain multiple
// documents separated by ---.
func LoadFile(path string, resolver Resolver) ([]Scenario, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening scenario file '%s': %w", path, err)
	}
	defer func() { _ = file.Close() }()

	scenarios, err := Decode(file, resolver)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file '%s': %w", path, err)
	}
	return scenarios, nil
}

// Decode reads all scenario documents from the reader and resolves their
// memory locations. The resolver can be nil if no labels are used.
func Decode(reader io.Reader, resolver Resolver) ([]Scenario, error) {
	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)

	var scenarios []Scenario
	for {
		var doc document
		err := decoder.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return scenarios, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decoding scenario %d: %w", len(scenarios)+1, err)
		}

		s, err := doc.scenario(resolver)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
}

func (d document) scenario(resolver Resolver) (Scenario, error) {
	if d.Name == "" {
		return Scenario{}, errMissingName
	}

	s := Scenario{
		Name:    d.Name,
		Routine: d.Routine,
		Load:    d.Load == nil || *d.Load,
	}

	var err error
	s.Seed, err = resolveValues(d.Seed, resolver)
	if err != nil {
		return Scenario{}, fmt.Errorf("scenario '%s' seed: %w", d.Name, err)
	}
	s.Expect, err = resolveValues(d.Expect, resolver)
	if err != nil {
		return Scenario{}, fmt.Errorf("scenario '%s' expect: %w", d.Name, err)
	}
	return s, nil
}

// resolveValues converts the location keys to addresses. Keys are processed
// in sorted order to make errors deterministic.
func resolveValues(values map[string]uint8, resolver Resolver) (map[uint16]uint8, error) {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make(map[uint16]uint8, len(values))
	for _, key := range keys {
		address, err := ResolveLocation(key, resolver)
		if err != nil {
			return nil, err
		}

		value := values[key]
		if existing, ok := result[address]; ok && existing != value {
			return nil, fmt.Errorf("%w $%04X: %s", errConflict, address, key)
		}
		result[address] = value
	}
	return result, nil
}

// ResolveLocation converts a memory location expression to an address.
func ResolveLocation(location string, resolver Resolver) (uint16, error) {
	var unresolved string
	lookup := func(name string) (int, bool) {
		if resolver != nil {
			if address, ok := resolver.Address(name); ok {
				return int(address), true
			}
			if value, ok := resolver.Constant(name); ok {
				return int(value), true
			}
		}
		unresolved = name
		return 0, false
	}

	value, err := asmsource.Evaluate(location, lookup, 0)
	if err != nil {
		if errors.Is(err, asmsource.ErrUnresolvedSymbol) {
			return 0, fmt.Errorf("%w '%s'", ErrUnresolvedLabel, unresolved)
		}
		return 0, fmt.Errorf("parsing location '%s': %w", location, err)
	}
	if value < 0 || value > 0xFFFF {
		return 0, fmt.Errorf("%w: %s = $%X", errInvalidAddress, location, value)
	}
	return uint16(value), nil
}

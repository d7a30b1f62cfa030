// Package symbols provides a label table that maps names to addresses and
// addresses back to names, with bank support.
package symbols

import (
	"sort"

	"github.com/retroenv/retrogolib/set"
)

// Symbol is a named address.
type Symbol struct {
	Name    string
	Address uint16
	Bank    int // index of the bank the symbol was defined in
}

// Table tracks defined symbols. Every bank covers a separately placed part
// of the program, the same address can carry different names in different
// banks.
type Table struct {
	banks []*Bank

	names map[string]Symbol
	used  set.Set[string]
}

// Bank represents a separately placed part of the program.
type Bank struct {
	index int
	base  uint16
	items map[uint16][]string
}

// Base returns the address the bank starts at.
func (b *Bank) Base() uint16 {
	return b.base
}

// Get returns the names defined at the given address in this bank, in order
// of definition.
func (b *Bank) Get(address uint16) ([]string, bool) {
	names, ok := b.items[address]
	return names, ok
}

// Has returns whether a name is defined at the given address in this bank.
func (b *Bank) Has(address uint16) bool {
	_, ok := b.items[address]
	return ok
}

// Len returns the number of addresses with names in this bank.
func (b *Bank) Len() int {
	return len(b.items)
}

// New creates a new symbol table.
func New() *Table {
	return &Table{
		names: make(map[string]Symbol),
		used:  set.New[string](),
	}
}

// AddBank starts a new bank at the given base address, following
// definitions are added to it.
func (t *Table) AddBank(base uint16) {
	t.banks = append(t.banks, &Bank{
		index: len(t.banks),
		base:  base,
		items: make(map[uint16][]string),
	})
}

// Define adds a name at the given address to the current bank. It returns
// false if the name is already defined, the existing definition is kept.
func (t *Table) Define(name string, address uint16) bool {
	if _, ok := t.names[name]; ok {
		return false
	}
	if len(t.banks) == 0 {
		t.AddBank(address)
	}

	bank := t.banks[len(t.banks)-1]
	bank.items[address] = append(bank.items[address], name)
	t.names[name] = Symbol{
		Name:    name,
		Address: address,
		Bank:    bank.index,
	}
	return true
}

// Get returns the symbol with the given name.
func (t *Table) Get(name string) (Symbol, bool) {
	sym, ok := t.names[name]
	return sym, ok
}

// Name returns the first name that was defined at the given address,
// searching the banks in order.
func (t *Table) Name(address uint16) (string, bool) {
	for _, bank := range t.banks {
		if names, ok := bank.items[address]; ok {
			return names[0], true
		}
	}
	return "", false
}

// Len returns the number of defined names.
func (t *Table) Len() int {
	return len(t.names)
}

// Sorted returns all symbols sorted by address, names at the same address
// are sorted by bank and name.
func (t *Table) Sorted() []Symbol {
	symbols := make([]Symbol, 0, len(t.names))
	for _, sym := range t.names {
		symbols = append(symbols, sym)
	}
	sort.Slice(symbols, func(i, j int) bool {
		a, b := symbols[i], symbols[j]
		if a.Address != b.Address {
			return a.Address < b.Address
		}
		if a.Bank != b.Bank {
			return a.Bank < b.Bank
		}
		return a.Name < b.Name
	})
	return symbols
}

// Banks returns the slice of banks.
func (t *Table) Banks() []*Bank {
	return t.banks
}

// MarkUsed marks a name as referenced.
func (t *Table) MarkUsed(name string) {
	t.used.Add(name)
}

// IsUsed returns whether a name is marked as referenced.
func (t *Table) IsUsed(name string) bool {
	return t.used.Contains(name)
}

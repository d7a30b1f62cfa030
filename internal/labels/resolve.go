package labels

import (
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/retroenv/decompverify/internal/arch/m6502"
	"github.com/retroenv/decompverify/internal/asmsource"
	"github.com/retroenv/decompverify/internal/symbols"
)

// maxPasses limits the resolution passes for sources whose label addresses
// never settle, for example through mutually dependent sizes.
const maxPasses = 16

// pass computes the label addresses of one walk over the statements. Symbols
// that are referenced before their definition are taken from the previous
// pass, which decides the zero page or absolute encoding like a multi pass
// assembler does.
type pass struct {
	prev *pass

	table     *symbols.Table
	labels    map[string]int
	constants map[string]int
	blocks    []DataBlock
	warnings  []asmsource.Warning

	pc        int
	scope     string // last global label, prefix for local labels
	enums     []int  // address counters saved by enum blocks
	openBank  bool
	bankBase  uint16
	lastLabel string
	lastPC    int
	overflow  bool
}

// resolve runs passes over the statements until the label and constant
// values do not change anymore.
func resolve(statements []asmsource.Statement, base uint16) (*pass, int) {
	constants := collectConstants(statements)

	var prev *pass
	for number := 1; number <= maxPasses; number++ {
		p := newPass(prev, constants, base)
		p.run(statements)

		if prev != nil && maps.Equal(p.labels, prev.labels) && maps.Equal(p.constants, prev.constants) {
			return p, number
		}
		prev = p
		constants = p.constants
	}

	prev.warn(0, "", fmt.Sprintf("label addresses did not stabilize after %d passes", maxPasses))
	return prev, maxPasses
}

// collectConstants evaluates all constant definitions that do not depend on
// labels, repeating until constants that are defined in terms of later
// constants are resolved.
func collectConstants(statements []asmsource.Statement) map[string]int {
	values := map[string]int{}
	lookup := func(name string) (int, bool) {
		value, ok := values[name]
		return value, ok
	}

	for changed := true; changed; {
		changed = false
		for _, stmt := range statements {
			if stmt.Kind != asmsource.KindConstant {
				continue
			}
			if _, ok := values[stmt.Name]; ok {
				continue
			}
			value, err := asmsource.Evaluate(stmt.Expression, lookup, 0)
			if err == nil {
				values[stmt.Name] = value
				changed = true
			}
		}
	}
	return values
}

func newPass(prev *pass, constants map[string]int, base uint16) *pass {
	return &pass{
		prev:      prev,
		table:     symbols.New(),
		labels:    map[string]int{},
		constants: maps.Clone(constants),
		pc:        int(base),
		openBank:  true,
		bankBase:  base,
	}
}

func (p *pass) run(statements []asmsource.Statement) {
	for _, stmt := range statements {
		switch stmt.Kind {
		case asmsource.KindLabel:
			p.label(stmt)
		case asmsource.KindConstant:
			p.constant(stmt)
		case asmsource.KindOrigin:
			p.origin(stmt)
		case asmsource.KindData:
			p.data(stmt)
		case asmsource.KindInstruction:
			p.instruction(stmt)
		case asmsource.KindDirective:
			p.directive(stmt)
		default:
		}
	}
}

func (p *pass) warn(line int, text, reason string) {
	p.warnings = append(p.warnings, asmsource.Warning{
		Line:   line,
		Text:   text,
		Reason: reason,
	})
}

// lookup resolves a symbol for expression evaluation.
func (p *pass) lookup(name string) (int, bool) {
	key := p.scoped(name)
	if value, ok := p.labels[key]; ok {
		return value, true
	}
	if value, ok := p.constants[name]; ok {
		return value, true
	}
	if p.prev != nil {
		if value, ok := p.prev.labels[key]; ok {
			return value, true
		}
	}
	return 0, false
}

// scoped returns the table name of a label, local labels that start with @
// are prefixed by the last global label.
func (p *pass) scoped(name string) string {
	if !strings.HasPrefix(name, "@") || p.scope == "" {
		return name
	}
	return p.scope + "." + name
}

// address returns the current address counter as 16 bit address.
func (p *pass) address(line int) uint16 {
	if (p.pc < 0 || p.pc > 0xFFFF) && !p.overflow {
		p.overflow = true
		p.warn(line, "", fmt.Sprintf("address counter $%X outside of 16 bit range", p.pc))
	}
	return uint16(p.pc & 0xFFFF)
}

func (p *pass) evaluate(expression string) (int, error) {
	value, err := asmsource.Evaluate(expression, p.lookup, p.pc)
	if err != nil {
		return 0, fmt.Errorf("evaluating '%s': %w", expression, err)
	}
	return value, nil
}

func (p *pass) label(stmt asmsource.Statement) {
	name := stmt.Name
	if strings.HasPrefix(name, "@") {
		name = p.scoped(name)
	} else {
		p.scope = name
	}

	address := p.address(stmt.Line)
	if p.openBank {
		p.table.AddBank(p.bankBase)
		p.openBank = false
	}

	if !p.table.Define(name, address) {
		first, _ := p.table.Get(name)
		p.warn(stmt.Line, name, fmt.Sprintf("duplicate label, first defined at $%04X", first.Address))
		return
	}
	p.labels[name] = int(address)
	p.lastLabel = name
	p.lastPC = p.pc
}

func (p *pass) constant(stmt asmsource.Statement) {
	value, err := p.evaluate(stmt.Expression)
	if err != nil {
		p.warn(stmt.Line, stmt.Name, err.Error())
		return
	}
	p.constants[stmt.Name] = value
}

func (p *pass) origin(stmt asmsource.Statement) {
	value, err := p.evaluate(stmt.Expression)
	if err != nil {
		p.warn(stmt.Line, stmt.Mnemonic, err.Error())
		return
	}

	switch strings.TrimPrefix(stmt.Mnemonic, ".") {
	case "pad":
		// fills up to the address, the placement does not change
		if value < p.pc {
			p.warn(stmt.Line, stmt.Mnemonic, fmt.Sprintf("pad address $%04X is below the current address $%04X", value, p.pc))
			return
		}
		p.pc = value
		return

	case "enum":
		p.enums = append(p.enums, p.pc)
	}

	p.pc = value
	p.openBank = true
	p.bankBase = uint16(value & 0xFFFF)
}

func (p *pass) directive(stmt asmsource.Statement) {
	switch strings.TrimPrefix(stmt.Mnemonic, ".") {
	case "ende", "endenum":
		if len(p.enums) == 0 {
			p.warn(stmt.Line, stmt.Mnemonic, "enum end without enum")
			return
		}
		p.pc = p.enums[len(p.enums)-1]
		p.enums = p.enums[:len(p.enums)-1]
		p.openBank = true
		p.bankBase = uint16(p.pc & 0xFFFF)
	}
}

func (p *pass) instruction(stmt asmsource.Statement) {
	operand := m6502.Operand{
		Form:  stmt.Operand.Form,
		Force: stmt.Operand.Force,
	}

	if expression := stmt.Operand.Expression; expression != "" {
		value, err := p.evaluate(expression)
		switch {
		case err == nil:
			operand.Value = value
			operand.Known = true
		case errors.Is(err, asmsource.ErrUnresolvedSymbol):
			p.warn(stmt.Line, stmt.Mnemonic+" "+expression, err.Error())
		}

		if (stmt.Mnemonic == "jsr" || stmt.Mnemonic == "jmp") &&
			stmt.Operand.Form == m6502.Direct && asmsource.IsIdentifier(expression) {
			p.table.MarkUsed(p.scoped(expression))
		}
	}

	size, err := m6502.InstructionSize(stmt.Mnemonic, operand)
	if err != nil {
		p.warn(stmt.Line, stmt.Mnemonic, err.Error())
		return
	}
	p.pc += size
}

func (p *pass) data(stmt asmsource.Statement) {
	data := stmt.Data
	block := DataBlock{
		Address: p.address(stmt.Line),
		Line:    stmt.Line,
	}
	if p.lastLabel != "" && p.lastPC == p.pc {
		block.Label = p.lastLabel
	}

	if data.Count != "" {
		if !p.reserve(stmt, &block) {
			return
		}
	} else {
		p.list(stmt, &block)
	}

	p.pc += len(block.Bytes)
	p.blocks = append(p.blocks, block)
}

// reserve fills the block for a count[,fill] directive.
func (p *pass) reserve(stmt asmsource.Statement, block *DataBlock) bool {
	data := stmt.Data
	count, err := p.evaluate(data.Count)
	if err != nil {
		p.warn(stmt.Line, stmt.Mnemonic, err.Error())
		return false
	}
	if count < 0 || count > 0x10000 {
		p.warn(stmt.Line, stmt.Mnemonic, fmt.Sprintf("invalid reserve count %d", count))
		return false
	}

	fill, known := 0, false
	if data.Fill != "" {
		fill, err = p.evaluate(data.Fill)
		if err != nil {
			p.warn(stmt.Line, stmt.Mnemonic, err.Error())
		}
		known = err == nil
	}

	for range count {
		block.add(fill, data.Width, known)
	}
	return true
}

// list fills the block for a list of values.
func (p *pass) list(stmt asmsource.Statement, block *DataBlock) {
	data := stmt.Data
	for _, item := range data.Items {
		if item.IsText {
			for i := range len(item.Text) {
				block.add(int(item.Text[i]), data.Width, true)
			}
			continue
		}

		value, err := asmsource.Evaluate(item.Expression, p.lookup, p.pc+len(block.Bytes))
		switch {
		case err != nil:
			p.warn(stmt.Line, item.Expression, err.Error())
		case !fitsWidth(value, data.Width):
			p.warn(stmt.Line, item.Expression, fmt.Sprintf("value $%X does not fit into %d byte(s)", value, data.Width))
		}
		block.add(value, data.Width, err == nil)
	}
}

func fitsWidth(value, width int) bool {
	limit := 1 << (8 * width)
	return value < limit && value >= -(limit/2)
}

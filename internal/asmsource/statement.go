// Package asmsource parses 6502 assembly source text into a stream of
// statements that is suitable to compute label addresses without running an
// assembler.
package asmsource

import (
	"fmt"

	"github.com/retroenv/decompverify/internal/arch/m6502"
)

// Kind is the type of a parsed statement.
type Kind int

const (
	KindBlank       Kind = iota // empty line
	KindComment                 // comment only line
	KindLabel                   // label definition at the current address
	KindConstant                // Name = expression
	KindOrigin                  // sets the address counter
	KindData                    // emits data bytes
	KindInstruction             // emits an instruction
	KindDirective               // recognized directive that emits nothing
	KindUnknown                 // not understood, emits nothing
)

var kindNames = map[Kind]string{
	KindBlank:       "blank",
	KindComment:     "comment",
	KindLabel:       "label",
	KindConstant:    "constant",
	KindOrigin:      "origin",
	KindData:        "data",
	KindInstruction: "instruction",
	KindDirective:   "directive",
	KindUnknown:     "unknown",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Statement is a single parsed element of a source line. A line can contain
// multiple statements, for example a label followed by an instruction.
type Statement struct {
	Kind Kind
	Line int // 1 based source line number

	Name       string // label or constant name
	Mnemonic   string // lower case instruction mnemonic or directive name
	Expression string // origin or constant expression
	Operand    Operand
	Data       *Data
}

// Operand is the operand of an instruction with its addressing decoration
// removed.
type Operand struct {
	Form       m6502.Form
	Force      m6502.Force
	Expression string
}

// Data describes the bytes emitted by a data directive. Either Items or
// Count is set.
type Data struct {
	Width int        // bytes per item, or per reserved element
	Items []DataItem // listed values
	Count string     // expression of the number of reserved elements
	Fill  string     // expression of the reserve fill value
}

// DataItem is a single value of a data directive.
type DataItem struct {
	Expression string
	Text       string // string literal content, emits one byte per character
	IsText     bool
}

// Warning describes a line that could not be fully interpreted.
type Warning struct {
	Line   int
	Text   string
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: %s: %s", w.Line, w.Reason, w.Text)
}

// Source is the result of parsing an assembly source text.
type Source struct {
	Statements []Statement
	Warnings   []Warning
}

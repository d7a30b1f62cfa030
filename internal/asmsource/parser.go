package asmsource

import (
	"errors"
	"fmt"
	"strings"

	"github.com/retroenv/decompverify/internal/arch/m6502"
)

var errMissingExpression = errors.New("constant without value")

// directiveHandler converts the arguments of a directive into a statement.
type directiveHandler func(name, args string) (Statement, error)

var directives = map[string]directiveHandler{}

func init() {
	register := func(handler directiveHandler, names ...string) {
		for _, name := range names {
			directives[name] = handler
		}
	}

	register(originDirective, "org", "base", "pad", "enum")
	register(zeroLength, "ende", "endenum")

	register(dataDirective(1), "db", "byte", "byt", "dcb", "dc.b")
	register(dataDirective(2), "dw", "word", "addr", "dc.w")
	register(hexDirective, "hex")
	register(reserveDirective(1), "dsb", "ds", "res", "ds.b")
	register(reserveDirective(2), "dsw", "ds.w")

	register(zeroLength,
		"index", "mem", "segment", "bank", "end", "list", "nolist", "p02", "setcpu",
		"export", "exportzp", "import", "importzp", "global", "globalzp",
		"proc", "endproc", "scope", "endscope", "code", "rodata", "zeropage", "bss",
		"inesprg", "ineschr", "inesmap", "inesmir", "ines2", "fillvalue")
	register(zeroLength, "include", "incsrc", "incbin", "bin")
}

// unfollowed lists the directives that reference other files, their content
// is not part of the parsed source.
var unfollowed = map[string]struct{}{
	"include": {},
	"incsrc":  {},
	"incbin":  {},
	"bin":     {},
}

// argumentless lists the directives that take no arguments. Anything after
// them is reported, as it usually means a label was taken for the directive.
var argumentless = map[string]struct{}{
	"ende":     {},
	"endenum":  {},
	"end":      {},
	"list":     {},
	"nolist":   {},
	"p02":      {},
	"endproc":  {},
	"endscope": {},
	"code":     {},
	"rodata":   {},
	"zeropage": {},
	"bss":      {},
}

// Parse splits assembly source text into statements. Parsing never fails,
// lines that can not be interpreted are returned as unknown statements and
// are listed in the warnings of the result.
func Parse(text string) *Source {
	p := &parser{source: &Source{}}
	for i, line := range strings.Split(text, "\n") {
		p.line(i+1, strings.TrimRight(line, "\r"))
	}
	if p.inMacro {
		p.warn(p.macroLine, "", "macro without end")
	}
	return p.source
}

type parser struct {
	source    *Source
	inMacro   bool
	macroLine int
}

func (p *parser) add(stmt Statement) {
	p.source.Statements = append(p.source.Statements, stmt)
}

func (p *parser) warn(line int, text, reason string) {
	p.source.Warnings = append(p.source.Warnings, Warning{
		Line:   line,
		Text:   strings.TrimSpace(text),
		Reason: reason,
	})
}

func (p *parser) line(number int, raw string) {
	code, hasComment := stripComment(raw)
	trimmed := strings.TrimSpace(code)

	if p.inMacro {
		if isMacroEnd(trimmed) {
			p.inMacro = false
		}
		p.add(Statement{Kind: KindDirective, Line: number, Mnemonic: "macro"})
		return
	}

	if trimmed == "" {
		kind := KindBlank
		if hasComment {
			kind = KindComment
		}
		p.add(Statement{Kind: kind, Line: number})
		return
	}

	if stmt, ok := parseConstant(trimmed); ok {
		stmt.Line = number
		if stmt.Expression == "" {
			p.add(Statement{Kind: KindUnknown, Line: number})
			p.warn(number, raw, errMissingExpression.Error())
			return
		}
		p.add(stmt)
		return
	}

	atLineStart := code != "" && code[0] != ' ' && code[0] != '\t'
	rest := p.labels(number, trimmed, atLineStart)
	if rest == "" {
		return
	}
	p.statement(number, raw, rest)
}

// labels consumes all label definitions at the start of the text and
// returns the remaining part of the line.
func (p *parser) labels(number int, text string, atLineStart bool) string {
	for text != "" {
		word, rest := splitWord(text)

		switch {
		case strings.HasSuffix(word, ":") && IsIdentifier(word[:len(word)-1]):
			p.add(Statement{Kind: KindLabel, Line: number, Name: word[:len(word)-1]})

		case isAnonymousLabel(word):
			p.add(Statement{Kind: KindDirective, Line: number, Mnemonic: word})

		case atLineStart && IsIdentifier(word) && (!isKeyword(word) || isDirectiveLabel(word, rest)):
			// label without colon in the first column
			p.add(Statement{Kind: KindLabel, Line: number, Name: word})

		default:
			// a label directly followed by an instruction without a space
			if idx := strings.IndexByte(word, ':'); idx > 0 && IsIdentifier(word[:idx]) &&
				!strings.HasPrefix(word[idx:], ":=") {
				p.add(Statement{Kind: KindLabel, Line: number, Name: word[:idx]})
				text = strings.TrimSpace(text[idx+1:])
				atLineStart = false
				continue
			}
			return text
		}

		text = rest
		atLineStart = false
	}
	return ""
}

// statement parses an instruction or directive.
func (p *parser) statement(number int, raw, text string) {
	word, args := splitWord(text)
	lower := strings.ToLower(word)

	if name, force, ok := splitMnemonic(lower); ok {
		operand, err := parseOperand(args)
		if err != nil {
			p.add(Statement{Kind: KindUnknown, Line: number, Mnemonic: name})
			p.warn(number, raw, err.Error())
			return
		}
		if force != m6502.ForceNone {
			operand.Force = force
		}
		p.add(Statement{
			Kind:     KindInstruction,
			Line:     number,
			Mnemonic: name,
			Operand:  operand,
		})
		return
	}

	name := strings.TrimPrefix(lower, ".")

	switch name {
	case "macro", "mac":
		p.inMacro = true
		p.macroLine = number
		p.add(Statement{Kind: KindDirective, Line: number, Mnemonic: lower})
		p.warn(number, raw, "macro definition is not expanded")
		return
	case "endm", "endmacro", "endmac":
		p.add(Statement{Kind: KindDirective, Line: number, Mnemonic: lower})
		return
	}

	handler, ok := directives[name]
	if !ok {
		p.add(Statement{Kind: KindUnknown, Line: number, Mnemonic: lower})
		p.warn(number, raw, fmt.Sprintf("unsupported statement '%s'", word))
		return
	}

	stmt, err := handler(lower, args)
	if err != nil {
		p.add(Statement{Kind: KindUnknown, Line: number, Mnemonic: lower})
		p.warn(number, raw, err.Error())
		return
	}
	stmt.Line = number
	stmt.Mnemonic = lower
	p.add(stmt)

	if _, ok := unfollowed[name]; ok {
		p.warn(number, raw, fmt.Sprintf("content of '%s' is not followed", word))
	}
	if _, ok := argumentless[name]; ok && args != "" {
		p.warn(number, raw, fmt.Sprintf("unexpected arguments '%s' for '%s'", args, word))
	}
}

func originDirective(name, args string) (Statement, error) {
	args = strings.TrimSpace(args)
	if strings.TrimPrefix(name, ".") == "pad" {
		// .pad address[,fill]
		args, _, _ = strings.Cut(args, ",")
		args = strings.TrimSpace(args)
	}
	if args == "" {
		return Statement{}, errMissingOrigin
	}
	return Statement{Kind: KindOrigin, Expression: args}, nil
}

func zeroLength(string, string) (Statement, error) {
	return Statement{Kind: KindDirective}, nil
}

func dataDirective(width int) directiveHandler {
	return func(_, args string) (Statement, error) {
		data, err := parseDataList(args, width)
		if err != nil {
			return Statement{}, err
		}
		return Statement{Kind: KindData, Data: data}, nil
	}
}

func hexDirective(_, args string) (Statement, error) {
	data, err := parseHexData(args)
	if err != nil {
		return Statement{}, err
	}
	return Statement{Kind: KindData, Data: data}, nil
}

func reserveDirective(width int) directiveHandler {
	return func(_, args string) (Statement, error) {
		data, err := parseReserve(args, width)
		if err != nil {
			return Statement{}, err
		}
		return Statement{Kind: KindData, Data: data}, nil
	}
}

// parseConstant detects the constant definition forms Name = value,
// Name := value, Name equ value and Name .set value, as well as the
// origin assignment *= value.
func parseConstant(text string) (Statement, bool) {
	if strings.HasPrefix(text, "*") {
		rest := strings.TrimSpace(text[1:])
		if strings.HasPrefix(rest, "=") {
			return Statement{Kind: KindOrigin, Mnemonic: "*=", Expression: strings.TrimSpace(rest[1:])}, true
		}
		return Statement{}, false
	}

	end := 0
	for end < len(text) && isIdentChar(text[end]) {
		end++
	}
	name := text[:end]
	if !IsIdentifier(name) {
		return Statement{}, false
	}
	rest := strings.TrimSpace(text[end:])

	switch {
	case strings.HasPrefix(rest, ":="):
		rest = rest[2:]
	case strings.HasPrefix(rest, "=") && !strings.HasPrefix(rest, "=="):
		rest = rest[1:]
	default:
		word, args := splitWord(rest)
		switch strings.ToLower(word) {
		case "equ", ".equ", ".set", "set", ".eq":
			rest = args
		default:
			return Statement{}, false
		}
	}

	return Statement{
		Kind:       KindConstant,
		Name:       name,
		Expression: strings.TrimSpace(rest),
	}, true
}

// splitMnemonic checks whether the word is an instruction, optionally with
// a .b/.w/.z/.a size suffix, and returns the plain mnemonic.
func splitMnemonic(word string) (string, m6502.Force, bool) {
	if m6502.IsMnemonic(word) {
		return word, m6502.ForceNone, true
	}

	name, suffix, ok := strings.Cut(word, ".")
	if !ok || !m6502.IsMnemonic(name) {
		return "", m6502.ForceNone, false
	}
	switch suffix {
	case "w", "a", "abs":
		return name, m6502.ForceAbsolute, true
	case "b", "z", "zp":
		return name, m6502.ForceZeroPage, true
	default:
		return "", m6502.ForceNone, false
	}
}

// isKeyword returns whether a word in the first column is an instruction or
// directive rather than a label.
func isKeyword(word string) bool {
	lower := strings.ToLower(word)
	if _, _, ok := splitMnemonic(lower); ok {
		return true
	}
	if _, ok := directives[lower]; ok {
		return true
	}
	switch lower {
	case "macro", "mac", "endm", "endmacro", "endmac":
		return true
	}
	return false
}

// isDirectiveLabel returns whether a first column word that is spelled like
// a directive is a label, which is the case when an instruction or directive
// follows it. Instruction names are never taken as labels.
func isDirectiveLabel(word, rest string) bool {
	if _, _, ok := splitMnemonic(strings.ToLower(word)); ok {
		return false
	}
	next, _ := splitWord(rest)
	if next == "" {
		return false
	}
	next = strings.ToLower(next)
	if _, _, ok := splitMnemonic(next); ok {
		return true
	}
	_, ok := directives[strings.TrimPrefix(next, ".")]
	return ok
}

func isMacroEnd(text string) bool {
	word, _ := splitWord(text)
	switch strings.TrimPrefix(strings.ToLower(word), ".") {
	case "endm", "endmacro", "endmac":
		return true
	}
	return false
}

// isAnonymousLabel detects the unnamed labels of asm6 (runs of + or -) and
// ca65 (a lone colon).
func isAnonymousLabel(word string) bool {
	if word == ":" {
		return true
	}
	return word != "" && (strings.Trim(word, "+") == "" || strings.Trim(word, "-") == "")
}

// splitWord returns the first whitespace delimited word and the trimmed
// remainder.
func splitWord(text string) (string, string) {
	text = strings.TrimSpace(text)
	idx := strings.IndexAny(text, " \t")
	if idx < 0 {
		return text, ""
	}
	return text[:idx], strings.TrimSpace(text[idx+1:])
}

// stripComment removes a ; comment that is not part of a string or
// character literal.
func stripComment(line string) (string, bool) {
	inText := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inText:
			if c == '\\' {
				i++
			} else if c == '"' {
				inText = false
			}
		case c == '"':
			inText = true
		case c == '\'' && i+2 < len(line) && line[i+2] == '\'':
			i += 2
		case c == ';':
			return line[:i], true
		}
	}
	return line, false
}

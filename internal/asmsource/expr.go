package asmsource

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrUnresolvedSymbol is returned when an expression references an unknown symbol.
	ErrUnresolvedSymbol = errors.New("unresolved symbol")
	// ErrSyntax is returned for expressions that can not be parsed.
	ErrSyntax = errors.New("expression syntax error")
)

// Lookup resolves a symbol name to its value.
type Lookup func(name string) (int, bool)

// Evaluate computes the value of an assembler expression. Supported are
// numbers ($hex, 0xhex, %binary, decimal, 'c'), symbols, the current address
// as * or a lone $, the operators + - * / with the usual precedence, unary
// minus, < (low byte), > (high byte) and parentheses.
func Evaluate(expression string, lookup Lookup, pc int) (int, error) {
	e := &evaluator{
		input:  expression,
		lookup: lookup,
		pc:     pc,
	}

	e.skipSpace()
	if e.done() {
		return 0, fmt.Errorf("%w: empty expression", ErrSyntax)
	}

	value, err := e.expression()
	if err != nil {
		return 0, err
	}

	e.skipSpace()
	if !e.done() {
		return 0, fmt.Errorf("%w: unexpected '%s' in '%s'", ErrSyntax, e.input[e.pos:], expression)
	}
	return value, nil
}

type evaluator struct {
	input  string
	pos    int
	lookup Lookup
	pc     int
}

func (e *evaluator) done() bool {
	return e.pos >= len(e.input)
}

func (e *evaluator) peek() byte {
	if e.done() {
		return 0
	}
	return e.input[e.pos]
}

func (e *evaluator) skipSpace() {
	for !e.done() && (e.input[e.pos] == ' ' || e.input[e.pos] == '\t') {
		e.pos++
	}
}

func (e *evaluator) expression() (int, error) {
	value, err := e.term()
	if err != nil {
		return 0, err
	}

	for {
		e.skipSpace()
		op := e.peek()
		if op != '+' && op != '-' {
			return value, nil
		}
		e.pos++

		right, err := e.term()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			value += right
		} else {
			value -= right
		}
	}
}

func (e *evaluator) term() (int, error) {
	value, err := e.unary()
	if err != nil {
		return 0, err
	}

	for {
		e.skipSpace()
		op := e.peek()
		if op != '*' && op != '/' {
			return value, nil
		}
		e.pos++

		right, err := e.unary()
		if err != nil {
			return 0, err
		}
		if op == '*' {
			value *= right
			continue
		}
		if right == 0 {
			return 0, fmt.Errorf("%w: division by zero in '%s'", ErrSyntax, e.input)
		}
		value /= right
	}
}

func (e *evaluator) unary() (int, error) {
	e.skipSpace()

	switch e.peek() {
	case '-':
		e.pos++
		value, err := e.unary()
		return -value, err
	case '+':
		e.pos++
		return e.unary()
	case '<':
		e.pos++
		value, err := e.unary()
		return value & 0xFF, err
	case '>':
		e.pos++
		value, err := e.unary()
		return (value >> 8) & 0xFF, err
	default:
		return e.primary()
	}
}

func (e *evaluator) primary() (int, error) {
	e.skipSpace()
	c := e.peek()

	switch {
	case c == '(':
		e.pos++
		value, err := e.expression()
		if err != nil {
			return 0, err
		}
		e.skipSpace()
		if e.peek() != ')' {
			return 0, fmt.Errorf("%w: missing ')' in '%s'", ErrSyntax, e.input)
		}
		e.pos++
		return value, nil

	case c == '*':
		e.pos++
		return e.pc, nil

	case c == '$':
		e.pos++
		if !isHexDigit(e.peek()) {
			return e.pc, nil
		}
		return e.digits(16, isHexDigit)

	case c == '%':
		e.pos++
		return e.digits(2, func(c byte) bool { return c == '0' || c == '1' })

	case c == '\'':
		return e.character()

	case c == '0' && e.pos+1 < len(e.input) && (e.input[e.pos+1] == 'x' || e.input[e.pos+1] == 'X'):
		e.pos += 2
		return e.digits(16, isHexDigit)

	case isDigit(c):
		return e.digits(10, isDigit)

	case isIdentStart(c):
		start := e.pos
		for !e.done() && isIdentChar(e.peek()) {
			e.pos++
		}
		name := e.input[start:e.pos]
		value, ok := e.lookup(name)
		if !ok {
			return 0, fmt.Errorf("%w '%s'", ErrUnresolvedSymbol, name)
		}
		return value, nil

	default:
		return 0, fmt.Errorf("%w: unexpected '%s' in '%s'", ErrSyntax, e.input[e.pos:], e.input)
	}
}

func (e *evaluator) digits(base int, valid func(byte) bool) (int, error) {
	start := e.pos
	for !e.done() && valid(e.peek()) {
		e.pos++
	}
	if start == e.pos {
		return 0, fmt.Errorf("%w: missing digits in '%s'", ErrSyntax, e.input)
	}

	value, err := strconv.ParseInt(e.input[start:e.pos], base, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSyntax, err)
	}
	return int(value), nil
}

func (e *evaluator) character() (int, error) {
	e.pos++ // opening quote
	if e.done() {
		return 0, fmt.Errorf("%w: unterminated character in '%s'", ErrSyntax, e.input)
	}
	value := int(e.input[e.pos])
	e.pos++
	if e.peek() == '\'' {
		e.pos++
	}
	return value, nil
}

// EvaluateConstant computes the value of an expression that does not
// reference any symbols, like $1F, %0101, 0x1F, 31 or $0300+2.
func EvaluateConstant(s string) (int, error) {
	s = strings.TrimSpace(s)
	return Evaluate(s, func(string) (int, bool) { return 0, false }, 0)
}

// IsIdentifier returns whether the string is a valid symbol name.
func IsIdentifier(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentChar(s[i]) {
			return false
		}
	}
	return true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == '@'
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

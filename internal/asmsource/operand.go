package asmsource

import (
	"errors"
	"strings"

	"github.com/retroenv/decompverify/internal/arch/m6502"
)

var (
	errEmptyOperand      = errors.New("empty operand expression")
	errUnbalancedOperand = errors.New("unbalanced parentheses in operand")
)

var forcePrefixes = []struct {
	prefix string
	force  m6502.Force
}{
	{"abs:", m6502.ForceAbsolute},
	{"a:", m6502.ForceAbsolute},
	{"zp:", m6502.ForceZeroPage},
	{"z:", m6502.ForceZeroPage},
}

// parseOperand classifies the operand form of an instruction and extracts
// the value expression.
func parseOperand(text string) (Operand, error) {
	compact := removeSpaces(text)
	if compact == "" {
		return Operand{Form: m6502.NoOperand}, nil
	}
	if strings.EqualFold(compact, "a") {
		return Operand{Form: m6502.Accumulator}, nil
	}

	if !balancedParens(compact) {
		return Operand{}, errUnbalancedOperand
	}

	var op Operand
	lower := strings.ToLower(compact)
	for _, p := range forcePrefixes {
		if strings.HasPrefix(lower, p.prefix) {
			op.Force = p.force
			compact = compact[len(p.prefix):]
			break
		}
	}

	upper := strings.ToUpper(compact)

	switch {
	case strings.HasPrefix(compact, "#"):
		op.Form, op.Expression = m6502.Immediate, compact[1:]

	case strings.HasPrefix(compact, "(") && strings.HasSuffix(upper, ",X)"):
		op.Form, op.Expression = m6502.IndirectX, compact[1:len(compact)-3]

	case strings.HasPrefix(compact, "(") && strings.HasSuffix(upper, "),Y"):
		op.Form, op.Expression = m6502.IndirectY, compact[1:len(compact)-3]

	case strings.HasPrefix(compact, "(") && closingParen(compact) == len(compact)-1:
		op.Form, op.Expression = m6502.Indirect, compact[1:len(compact)-1]

	case strings.HasSuffix(upper, ",X"):
		op.Form, op.Expression = m6502.DirectX, compact[:len(compact)-2]

	case strings.HasSuffix(upper, ",Y"):
		op.Form, op.Expression = m6502.DirectY, compact[:len(compact)-2]

	default:
		op.Form, op.Expression = m6502.Direct, compact
	}

	if op.Expression == "" {
		return op, errEmptyOperand
	}
	return op, nil
}

// closingParen returns the index of the parenthesis that closes the one at
// the start of the string, or -1.
func closingParen(s string) int {
	depth := 0
	for i := range len(s) {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// balancedParens reports whether the parentheses outside of character
// literals are balanced.
func balancedParens(s string) bool {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch {
		case isCharLiteral(s, i):
			i += 2
		case s[i] == '(':
			depth++
		case s[i] == ')':
			depth--
		}
	}
	return depth == 0
}

// removeSpaces drops blanks that are not part of a character or string
// literal, so that cmp #' ' keeps its operand.
func removeSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' && i+1 < len(s) {
				b.WriteByte(c)
				i++
				c = s[i]
			} else if c == quote {
				quote = 0
			}
		case c == '"':
			quote = c
		case isCharLiteral(s, i):
			b.WriteString(s[i : i+3])
			i += 2
			continue
		case c == ' ' || c == '\t':
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// isCharLiteral returns whether a 'c' character literal starts at index i.
func isCharLiteral(s string, i int) bool {
	return s[i] == '\'' && i+2 < len(s) && s[i+2] == '\''
}

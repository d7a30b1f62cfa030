package asmsource

import (
	"errors"
	"fmt"
	"strings"
)

var (
	errNoDataValues  = errors.New("data directive without values")
	errInvalidHex    = errors.New("invalid hex data")
	errMissingCount  = errors.New("reserve directive without count")
	errUnterminated  = errors.New("unterminated string")
	errMissingOrigin = errors.New("origin directive without address")
)

// parseDataList parses the comma separated values of a byte or word data
// directive.
func parseDataList(args string, width int) (*Data, error) {
	tokens, err := splitValues(args)
	if err != nil {
		return nil, err
	}

	data := &Data{Width: width}
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		if len(token) >= 2 && token[0] == '"' && token[len(token)-1] == '"' {
			data.Items = append(data.Items, DataItem{
				Text:   unescape(token[1 : len(token)-1]),
				IsText: true,
			})
			continue
		}
		data.Items = append(data.Items, DataItem{Expression: token})
	}

	if len(data.Items) == 0 {
		return nil, errNoDataValues
	}
	return data, nil
}

// parseHexData parses the asm6 style hex directive: a list of hex digit
// pairs, optionally separated by whitespace.
func parseHexData(args string) (*Data, error) {
	digits := removeSpaces(args)
	if digits == "" {
		return nil, errNoDataValues
	}
	if len(digits)%2 != 0 {
		return nil, fmt.Errorf("%w: odd number of digits in '%s'", errInvalidHex, args)
	}

	data := &Data{Width: 1}
	for i := 0; i < len(digits); i += 2 {
		pair := digits[i : i+2]
		if !isHexDigit(pair[0]) || !isHexDigit(pair[1]) {
			return nil, fmt.Errorf("%w: '%s'", errInvalidHex, pair)
		}
		data.Items = append(data.Items, DataItem{Expression: "$" + pair})
	}
	return data, nil
}

// parseReserve parses a reserve directive of the form count[,fill].
func parseReserve(args string, width int) (*Data, error) {
	count, fill, _ := strings.Cut(args, ",")
	count = strings.TrimSpace(count)
	if count == "" {
		return nil, errMissingCount
	}
	return &Data{
		Width: width,
		Count: count,
		Fill:  strings.TrimSpace(fill),
	}, nil
}

// splitValues splits a comma separated list while keeping commas inside of
// string and character literals.
func splitValues(s string) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		inText  bool
		escaped bool
	)

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inText:
			current.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inText = false
			}

		case c == '"':
			inText = true
			current.WriteByte(c)

		case c == '\'' && i+2 < len(s) && s[i+2] == '\'':
			// character literal, the quoted character can be a comma
			current.WriteString(s[i : i+3])
			i += 2

		case c == ',':
			tokens = append(tokens, current.String())
			current.Reset()

		default:
			current.WriteByte(c)
		}
	}

	if inText {
		return nil, errUnterminated
	}
	tokens = append(tokens, current.String())
	return tokens, nil
}

// unescape removes backslash escapes from a string literal, each escape
// sequence results in a single byte.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			i++
			c = s[i]
			switch c {
			case 'n':
				c = '\n'
			case 't':
				c = '\t'
			case '0':
				c = 0
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

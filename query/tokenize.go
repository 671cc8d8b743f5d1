package query

import (
	"strings"

	"github.com/pkg/errors"
)

var ErrUnterminatedQuote = errors.New("query: unterminated quoted string")

// tokenize splits a statement on whitespace. Single-quoted literals keep
// their spaces and may contain a doubled quote ('') for a literal quote.
// Comparison operators are split off, so `a>=1` yields `a`, `>=`, `1`.
func tokenize(input string) ([]string, error) {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for i := 0; i < len(input); i++ {
		c := input[i]

		switch {
		case c == '\'':
			flush()

			literal, next, err := readQuoted(input, i+1)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, literal)
			i = next

		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			flush()

		case isOperatorByte(c):
			flush()

			end := i + 1
			for end < len(input) && isOperatorByte(input[end]) {
				end++
			}
			tokens = append(tokens, input[i:end])
			i = end - 1

		default:
			current.WriteByte(c)
		}
	}

	flush()
	return tokens, nil
}

// readQuoted reads a literal starting right after its opening quote and
// returns it with the index of the closing quote.
func readQuoted(input string, from int) (string, int, error) {
	var literal strings.Builder

	for i := from; i < len(input); i++ {
		if input[i] != '\'' {
			literal.WriteByte(input[i])
			continue
		}

		if i+1 < len(input) && input[i+1] == '\'' {
			literal.WriteByte('\'')
			i++
			continue
		}
		return literal.String(), i, nil
	}

	return "", 0, ErrUnterminatedQuote
}

func isOperatorByte(c byte) bool {
	return c == '=' || c == '<' || c == '>' || c == '!'
}

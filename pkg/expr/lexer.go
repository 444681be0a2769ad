// Package expr evaluates guard expressions against an instance variable
// bag using a restricted grammar: literals, bound variables, arithmetic,
// relational and logical operators. There is no property access, no
// function call and no host object reachable from an expression.
package expr

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenNumber
	tokenString
	tokenIdent
	tokenOperator
	tokenLeftParen
	tokenRightParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// tokenize splits an expression into tokens. Operators are the two-char
// comparison/logical forms first so "==" never lexes as two "=".
func tokenize(input string) ([]token, error) {
	tokens := make([]token, 0)
	i := 0

	for i < len(input) {
		c := rune(input[i])

		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokenLeftParen, text: "(", pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokenRightParen, text: ")", pos: i})
			i++
		case c == '\'' || c == '"':
			end := strings.IndexRune(input[i+1:], c)
			if end < 0 {
				return nil, fmt.Errorf("unterminated string literal at position %d", i)
			}

			tokens = append(tokens, token{kind: tokenString, text: input[i+1 : i+1+end], pos: i})
			i += end + 2
		case unicode.IsDigit(c):
			start := i
			for i < len(input) && (unicode.IsDigit(rune(input[i])) || input[i] == '.') {
				i++
			}

			tokens = append(tokens, token{kind: tokenNumber, text: input[start:i], pos: start})
		case unicode.IsLetter(c) || c == '_':
			start := i
			for i < len(input) && (unicode.IsLetter(rune(input[i])) || unicode.IsDigit(rune(input[i])) || input[i] == '_' || input[i] == '.') {
				i++
			}

			tokens = append(tokens, token{kind: tokenIdent, text: input[start:i], pos: start})
		default:
			op, width, err := lexOperator(input, i)
			if err != nil {
				return nil, err
			}

			tokens = append(tokens, token{kind: tokenOperator, text: op, pos: i})
			i += width
		}
	}

	tokens = append(tokens, token{kind: tokenEOF, pos: len(input)})

	return tokens, nil
}

var twoCharOperators = []string{"==", "!=", ">=", "<=", "&&", "||"}

func lexOperator(input string, pos int) (string, int, error) {
	if pos+1 < len(input) {
		pair := input[pos : pos+2]
		for _, op := range twoCharOperators {
			if pair == op {
				return op, 2, nil
			}
		}
	}

	switch input[pos] {
	case '>', '<', '!', '+', '-', '*', '/':
		return string(input[pos]), 1, nil
	}

	return "", 0, fmt.Errorf("unexpected character %q at position %d", input[pos], pos)
}

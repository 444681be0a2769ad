package expr

import (
	"fmt"
	"strconv"
)

// node is an AST node evaluated directly against the variable bag.
type node interface {
	eval(vars map[string]any) (any, error)
}

type literalNode struct {
	value any
}

type identNode struct {
	name string
}

type unaryNode struct {
	op      string
	operand node
}

type binaryNode struct {
	op    string
	left  node
	right node
}

// parser is a recursive descent parser over the token stream. Precedence,
// loosest first: || , && , comparison, additive, multiplicative, unary.
type parser struct {
	tokens []token
	pos    int
}

// Parse compiles an expression into an AST. Callers typically use
// Evaluate; Parse is exposed so definitions can be validated at deploy
// time without a variable bag.
func Parse(input string) (node, error) {
	tokens, err := tokenize(input)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}

	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if p.current().kind != tokenEOF {
		return nil, fmt.Errorf("unexpected token %q at position %d", p.current().text, p.current().pos)
	}

	return expr, nil
}

func (p *parser) current() token {
	return p.tokens[p.pos]
}

func (p *parser) acceptOperator(ops ...string) (string, bool) {
	tok := p.current()
	if tok.kind != tokenOperator {
		return "", false
	}

	for _, op := range ops {
		if tok.text == op {
			p.pos++

			return op, true
		}
	}

	return "", false
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for {
		op, ok := p.acceptOperator("||")
		if !ok {
			return left, nil
		}

		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}

		left = &binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}

	for {
		op, ok := p.acceptOperator("&&")
		if !ok {
			return left, nil
		}

		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}

		left = &binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	op, ok := p.acceptOperator("==", "!=", ">=", "<=", ">", "<")
	if !ok {
		return left, nil
	}

	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	return &binaryNode{op: op, left: left, right: right}, nil
}

func (p *parser) parseAdditive() (node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}

	for {
		op, ok := p.acceptOperator("+", "-")
		if !ok {
			return left, nil
		}

		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}

		left = &binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseMultiplicative() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		op, ok := p.acceptOperator("*", "/")
		if !ok {
			return left, nil
		}

		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		left = &binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if op, ok := p.acceptOperator("!", "-"); ok {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		return &unaryNode{op: op, operand: operand}, nil
	}

	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.current()

	switch tok.kind {
	case tokenNumber:
		value, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at position %d", tok.text, tok.pos)
		}

		p.pos++

		return &literalNode{value: value}, nil
	case tokenString:
		p.pos++

		return &literalNode{value: tok.text}, nil
	case tokenIdent:
		p.pos++

		switch tok.text {
		case "true":
			return &literalNode{value: true}, nil
		case "false":
			return &literalNode{value: false}, nil
		case "null", "nil":
			return &literalNode{value: nil}, nil
		}

		return &identNode{name: tok.text}, nil
	case tokenLeftParen:
		p.pos++

		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}

		if p.current().kind != tokenRightParen {
			return nil, fmt.Errorf("missing closing parenthesis at position %d", p.current().pos)
		}

		p.pos++

		return inner, nil
	default:
		return nil, fmt.Errorf("unexpected token %q at position %d", tok.text, tok.pos)
	}
}

package tools

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// sanitizeExpression keeps only the characters the evaluator
// understands: digits, + - * /, parentheses, decimal points, spaces.
func sanitizeExpression(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+', r == '-', r == '*', r == '/', r == '(', r == ')', r == '.', r == ' ':
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// evalExpr evaluates a sanitized arithmetic expression by precedence
// climbing. Division by zero yields an infinity the caller rejects.
func evalExpr(input string) (float64, error) {
	p := &exprParser{input: input}
	v, err := p.parseExpr(0)
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("unexpected %q at offset %d", p.input[p.pos], p.pos)
	}
	return v, nil
}

type exprParser struct {
	input string
	pos   int
}

var binaryPrec = map[byte]int{'+': 1, '-': 1, '*': 2, '/': 2}

// parseExpr parses a primary, then greedily consumes binary operators
// whose precedence is at least minPrec. All operators left-associate.
func (p *exprParser) parseExpr(minPrec int) (float64, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return 0, err
	}

	for {
		p.skipSpaces()
		if p.pos >= len(p.input) {
			return left, nil
		}
		op := p.input[p.pos]
		prec, ok := binaryPrec[op]
		if !ok || prec < minPrec {
			return left, nil
		}
		p.pos++

		right, err := p.parseExpr(prec + 1)
		if err != nil {
			return 0, err
		}
		switch op {
		case '+':
			left += right
		case '-':
			left -= right
		case '*':
			left *= right
		case '/':
			left /= right
		}
	}
}

func (p *exprParser) parsePrimary() (float64, error) {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return 0, errors.New("unexpected end of expression")
	}

	switch c := p.input[p.pos]; {
	case c == '(':
		p.pos++
		v, err := p.parseExpr(0)
		if err != nil {
			return 0, err
		}
		p.skipSpaces()
		if p.pos >= len(p.input) || p.input[p.pos] != ')' {
			return 0, errors.New("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	case c == '-':
		p.pos++
		v, err := p.parsePrimary()
		if err != nil {
			return 0, err
		}
		return -v, nil
	case c >= '0' && c <= '9', c == '.':
		return p.parseNumber()
	default:
		return 0, fmt.Errorf("unexpected %q at offset %d", c, p.pos)
	}
}

func (p *exprParser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c < '0' || c > '9') && c != '.' {
			break
		}
		p.pos++
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", p.input[start:p.pos])
	}
	return v, nil
}

func (p *exprParser) skipSpaces() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

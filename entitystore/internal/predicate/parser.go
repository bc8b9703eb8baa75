package predicate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrSyntax is returned for predicate text that cannot be parsed.
var ErrSyntax = errors.New("predicate syntax error")

const subject = "it"

var compareOps = map[string]CompareOp{
	"==": Eq,
	"!=": Ne,
	">":  Gt,
	">=": Ge,
	"<":  Lt,
	"<=": Le,
}

var methods = map[string]Method{
	"startsWith": StartsWith,
	"endsWith":   EndsWith,
	"contains":   Contains,
}

// Parse parses predicate text such as "(it.id == 1 || !(it.name.contains('a')))".
//
// Grammar:
//
//	expr    := and ("||" and)*
//	and     := unary ("&&" unary)*
//	unary   := "!" unary | primary
//	primary := "(" expr ")" | "it" ("." ident)+ (compare literal | "(" literal ")")
//	literal := number | 'string' | true | false | null
func Parse(text string) (Node, error) {
	p := &parser{lex: lexer{input: text}}
	if err := p.advance(); err != nil {
		return nil, err
	}

	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if p.tok.kind != tokenEOF {
		return nil, p.unexpected()
	}

	return node, nil
}

type parser struct {
	lex lexer
	tok token
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}

	p.tok = tok

	return nil
}

func (p *parser) expect(kind tokenKind) (token, error) {
	if p.tok.kind != kind {
		return token{}, p.unexpected()
	}

	tok := p.tok

	return tok, p.advance()
}

func (p *parser) unexpected() error {
	if p.tok.kind == tokenEOF {
		return fmt.Errorf("%w: unexpected end of input", ErrSyntax)
	}

	return fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, p.tok.text, p.tok.pos)
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.tok.kind == tokenOr {
		if err = p.advance(); err != nil {
			return nil, err
		}

		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}

		left = Logical{Op: Or, Left: left, Right: right}
	}

	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for p.tok.kind == tokenAnd {
		if err = p.advance(); err != nil {
			return nil, err
		}

		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		left = Logical{Op: And, Left: left, Right: right}
	}

	return left, nil
}

func (p *parser) parseUnary() (Node, error) {
	if p.tok.kind != tokenNot {
		return p.parsePrimary()
	}

	if err := p.advance(); err != nil {
		return nil, err
	}

	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	return Not{Operand: operand}, nil
}

func (p *parser) parsePrimary() (Node, error) {
	if p.tok.kind == tokenLParen {
		if err := p.advance(); err != nil {
			return nil, err
		}

		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}

		if _, err = p.expect(tokenRParen); err != nil {
			return nil, err
		}

		return node, nil
	}

	path, err := p.parsePath()
	if err != nil {
		return nil, err
	}

	if p.tok.kind == tokenCompare {
		op := compareOps[p.tok.text]
		if err = p.advance(); err != nil {
			return nil, err
		}

		value, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}

		return Comparison{Path: path, Op: op, Value: value}, nil
	}

	method, isMethod := methods[path[len(path)-1]]
	if p.tok.kind != tokenLParen || !isMethod || len(path) < 2 {
		return nil, p.unexpected()
	}

	if err = p.advance(); err != nil {
		return nil, err
	}

	arg, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}

	if _, err = p.expect(tokenRParen); err != nil {
		return nil, err
	}

	return MethodCall{Path: path[:len(path)-1], Method: method, Arg: arg}, nil
}

func (p *parser) parsePath() ([]string, error) {
	head, err := p.expect(tokenIdent)
	if err != nil {
		return nil, err
	}

	if head.text != subject {
		return nil, fmt.Errorf("%w: expected %q at %d, got %q", ErrSyntax, subject, head.pos, head.text)
	}

	var path []string
	for p.tok.kind == tokenDot {
		if err = p.advance(); err != nil {
			return nil, err
		}

		segment, err := p.expect(tokenIdent)
		if err != nil {
			return nil, err
		}

		path = append(path, segment.text)
	}

	if len(path) == 0 {
		return nil, p.unexpected()
	}

	return path, nil
}

func (p *parser) parseLiteral() (any, error) {
	tok := p.tok

	var value any

	switch tok.kind {
	case tokenString:
		value = tok.text
	case tokenDateTime:
		timestamp, err := time.Parse(time.RFC3339Nano, tok.text)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed datetime %q at %d", ErrSyntax, tok.text, tok.pos)
		}

		value = timestamp
	case tokenNumber:
		number, err := parseNumber(tok.text)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed number %q at %d", ErrSyntax, tok.text, tok.pos)
		}

		value = number
	case tokenIdent:
		switch tok.text {
		case "true":
			value = true
		case "false":
			value = false
		case "null":
			value = nil
		default:
			return nil, p.unexpected()
		}
	default:
		return nil, p.unexpected()
	}

	return value, p.advance()
}

func parseNumber(text string) (any, error) {
	if !strings.ContainsAny(text, ".eE") {
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return i, nil
		}
	}

	return strconv.ParseFloat(text, 64)
}

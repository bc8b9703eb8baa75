package predicate

import (
	"fmt"
	"strings"
	"unicode"
)

// dateTimePrefix marks a quoted RFC 3339 timestamp literal: datetime'2024-01-02T03:04:05Z'.
const dateTimePrefix = "datetime"

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenNumber
	tokenString
	tokenDateTime
	tokenDot
	tokenLParen
	tokenRParen
	tokenAnd
	tokenOr
	tokenNot
	tokenCompare
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	input string
	pos   int
}

func (l *lexer) next() (token, error) {
	l.skipSpace()

	if l.pos >= len(l.input) {
		return token{kind: tokenEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.input[l.pos]

	switch {
	case c == '(':
		l.pos++
		return token{kind: tokenLParen, text: "(", pos: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tokenRParen, text: ")", pos: start}, nil
	case c == '.':
		l.pos++
		return token{kind: tokenDot, text: ".", pos: start}, nil
	case l.hasPrefix("&&"):
		l.pos += 2
		return token{kind: tokenAnd, text: "&&", pos: start}, nil
	case l.hasPrefix("||"):
		l.pos += 2
		return token{kind: tokenOr, text: "||", pos: start}, nil
	case l.hasPrefix("=="), l.hasPrefix("!="), l.hasPrefix(">="), l.hasPrefix("<="):
		l.pos += 2
		return token{kind: tokenCompare, text: l.input[start:l.pos], pos: start}, nil
	case c == '>' || c == '<':
		l.pos++
		return token{kind: tokenCompare, text: string(c), pos: start}, nil
	case c == '!':
		l.pos++
		return token{kind: tokenNot, text: "!", pos: start}, nil
	case c == '\'':
		return l.lexString()
	case c == '-' || isDigit(c):
		return l.lexNumber()
	case isIdentStart(c):
		for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
			l.pos++
		}

		if l.input[start:l.pos] == dateTimePrefix && l.pos < len(l.input) && l.input[l.pos] == '\'' {
			tok, err := l.lexString()
			if err != nil {
				return token{}, err
			}

			return token{kind: tokenDateTime, text: tok.text, pos: start}, nil
		}

		return token{kind: tokenIdent, text: l.input[start:l.pos], pos: start}, nil
	default:
		return token{}, fmt.Errorf("%w: unexpected character %q at %d", ErrSyntax, c, start)
	}
}

func (l *lexer) lexString() (token, error) {
	start := l.pos
	l.pos++

	var b strings.Builder
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c != '\'' {
			b.WriteByte(c)
			l.pos++

			continue
		}

		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '\'' {
			b.WriteByte('\'')
			l.pos += 2

			continue
		}

		l.pos++

		return token{kind: tokenString, text: b.String(), pos: start}, nil
	}

	return token{}, fmt.Errorf("%w: unterminated string starting at %d", ErrSyntax, start)
}

func (l *lexer) lexNumber() (token, error) {
	start := l.pos
	if l.input[l.pos] == '-' {
		l.pos++
	}

	digits := 0
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if isDigit(c) || c == '.' || c == 'e' || c == 'E' ||
			((c == '+' || c == '-') && (l.input[l.pos-1] == 'e' || l.input[l.pos-1] == 'E')) {
			if isDigit(c) {
				digits++
			}
			l.pos++

			continue
		}

		break
	}

	if digits == 0 {
		return token{}, fmt.Errorf("%w: malformed number at %d", ErrSyntax, start)
	}

	return token{kind: tokenNumber, text: l.input[start:l.pos], pos: start}, nil
}

func (l *lexer) hasPrefix(prefix string) bool {
	return strings.HasPrefix(l.input[l.pos:], prefix)
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// IsIdentifier reports whether name is a single path segment the lexer reads as one identifier.
func IsIdentifier(name string) bool {
	if name == "" || !isIdentStart(name[0]) {
		return false
	}

	for i := 1; i < len(name); i++ {
		if !isIdentPart(name[i]) {
			return false
		}
	}

	return true
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

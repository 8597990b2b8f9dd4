package rules

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokLParen
	tokRParen
	tokCompare // < <= > >= == !=
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokAnd
	tokOr
	tokNot
	tokTrue
	tokFalse
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int // byte offset in rule text
}

var keywords = map[string]tokenKind{
	"and":   tokAnd,
	"or":    tokOr,
	"not":   tokNot,
	"true":  tokTrue,
	"false": tokFalse,
}

// lex splits rule text into tokens terminated by tokEOF.
func lex(text string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == '+':
			tokens = append(tokens, token{kind: tokPlus, text: "+", pos: i})
			i++
		case c == '-':
			tokens = append(tokens, token{kind: tokMinus, text: "-", pos: i})
			i++
		case c == '*':
			tokens = append(tokens, token{kind: tokStar, text: "*", pos: i})
			i++
		case c == '/':
			tokens = append(tokens, token{kind: tokSlash, text: "/", pos: i})
			i++
		case c == '<' || c == '>':
			if i+1 < len(text) && text[i+1] == '=' {
				tokens = append(tokens, token{kind: tokCompare, text: text[i : i+2], pos: i})
				i += 2
			} else {
				tokens = append(tokens, token{kind: tokCompare, text: text[i : i+1], pos: i})
				i++
			}
		case c == '=' || c == '!':
			if i+1 < len(text) && text[i+1] == '=' {
				tokens = append(tokens, token{kind: tokCompare, text: text[i : i+2], pos: i})
				i += 2
			} else if c == '!' {
				tokens = append(tokens, token{kind: tokNot, text: "!", pos: i})
				i++
			} else {
				return nil, &SyntaxError{Text: text, Pos: i, Msg: "unexpected '=' (use '==')"}
			}
		case c == '&' || c == '|':
			if i+1 >= len(text) || text[i+1] != c {
				return nil, &SyntaxError{Text: text, Pos: i, Msg: fmt.Sprintf("unexpected %q", c)}
			}
			kind := tokAnd
			if c == '|' {
				kind = tokOr
			}
			tokens = append(tokens, token{kind: kind, text: text[i : i+2], pos: i})
			i += 2
		case isDigit(c) || c == '.':
			start := i
			for i < len(text) && (isDigit(text[i]) || text[i] == '.') {
				i++
			}
			// exponent: 1e-3, 2.5E+4
			if i < len(text) && (text[i] == 'e' || text[i] == 'E') {
				j := i + 1
				if j < len(text) && (text[j] == '+' || text[j] == '-') {
					j++
				}
				if j < len(text) && isDigit(text[j]) {
					i = j
					for i < len(text) && isDigit(text[i]) {
						i++
					}
				}
			}
			v, err := strconv.ParseFloat(text[start:i], 64)
			if err != nil {
				return nil, &SyntaxError{Text: text, Pos: start, Msg: fmt.Sprintf("invalid number %q", text[start:i])}
			}
			tokens = append(tokens, token{kind: tokNumber, text: text[start:i], num: v, pos: start})
		case isIdentStart(c):
			start := i
			for i < len(text) && isIdentPart(text[i]) {
				i++
			}
			word := text[start:i]
			if kind, ok := keywords[strings.ToLower(word)]; ok {
				tokens = append(tokens, token{kind: kind, text: word, pos: start})
			} else {
				tokens = append(tokens, token{kind: tokIdent, text: word, pos: start})
			}
		default:
			r, _ := utf8.DecodeRuneInString(text[i:])
			return nil, &SyntaxError{Text: text, Pos: i, Msg: fmt.Sprintf("unexpected character %q", r)}
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(text)})
	return tokens, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// Identifiers are ASCII only: [A-Za-z_][A-Za-z0-9_]*.
func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidelang/tide/ast"
)

// tokenType enumerates Tide's lexical tokens.
type tokenType int

const (
	tokEOF tokenType = iota
	tokNewline
	tokIdent
	tokNumber
	tokString

	tokLParen
	tokRParen
	tokLBrace
	tokRBrace
	tokComma
	tokSemi
	tokDotDot
	tokArrow

	tokAssign
	tokPlusEq
	tokMinusEq
	tokStarEq
	tokSlashEq

	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokPercent
	tokEq
	tokNe
	tokLt
	tokLe
	tokGt
	tokGe
	tokBang
	tokAndAnd
	tokOrOr

	tokLet
	tokFor
	tokIn
	tokReturn
	tokIf
	tokElse
	tokTrue
	tokFalse
)

var keywords = map[string]tokenType{
	"let":    tokLet,
	"for":    tokFor,
	"in":     tokIn,
	"return": tokReturn,
	"if":     tokIf,
	"else":   tokElse,
	"true":   tokTrue,
	"false":  tokFalse,
}

// token is one lexed token with its source position.
type token struct {
	typ  tokenType
	text string
	num  float64
	pos  ast.Position
}

func (t token) String() string {
	if t.text != "" {
		return t.text
	}
	switch t.typ {
	case tokEOF:
		return "end of source"
	case tokNewline:
		return "newline"
	default:
		return fmt.Sprintf("token(%d)", t.typ)
	}
}

// lex tokenises the whole source up front. Returns a SyntaxError on
// malformed input (unterminated string, stray byte).
func lex(src string) ([]token, error) {
	var toks []token
	line, col := 1, 1
	i := 0

	pos := func() ast.Position { return ast.Position{Line: line, Col: col, Offset: i} }
	emit := func(t tokenType, text string, p ast.Position) {
		toks = append(toks, token{typ: t, text: text, pos: p})
	}
	advance := func(n int) {
		for k := 0; k < n; k++ {
			if src[i] == '\n' {
				line++
				col = 1
			} else {
				col++
			}
			i++
		}
	}

	for i < len(src) {
		c := src[i]
		p := pos()
		switch {
		case c == '\n':
			emit(tokNewline, "", p)
			advance(1)
		case c == ' ' || c == '\t' || c == '\r':
			advance(1)
		case c == '#': // line comment
			for i < len(src) && src[i] != '\n' {
				advance(1)
			}
		case c >= '0' && c <= '9':
			j := i
			for j < len(src) && isDigit(src[j]) {
				j++
			}
			// Fractional part, but not the range operator "..".
			if j < len(src) && src[j] == '.' && j+1 < len(src) && isDigit(src[j+1]) {
				j++
				for j < len(src) && isDigit(src[j]) {
					j++
				}
			}
			text := src[i:j]
			n, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, &SyntaxError{Msg: fmt.Sprintf("malformed number %q", text), Pos: p}
			}
			toks = append(toks, token{typ: tokNumber, text: text, num: n, pos: p})
			advance(j - i)
		case isIdentStart(c):
			j := i
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			text := src[i:j]
			if kw, ok := keywords[text]; ok {
				emit(kw, text, p)
			} else {
				emit(tokIdent, text, p)
			}
			advance(j - i)
		case c == '"':
			var b strings.Builder
			j := i + 1
			for j < len(src) && src[j] != '"' && src[j] != '\n' {
				if src[j] == '\\' && j+1 < len(src) {
					j++
					switch src[j] {
					case 'n':
						b.WriteByte('\n')
					case 't':
						b.WriteByte('\t')
					default:
						b.WriteByte(src[j])
					}
				} else {
					b.WriteByte(src[j])
				}
				j++
			}
			if j >= len(src) || src[j] != '"' {
				return nil, &SyntaxError{Msg: "unterminated string literal", Pos: p}
			}
			toks = append(toks, token{typ: tokString, text: b.String(), pos: p})
			advance(j + 1 - i)
		default:
			t, width := lexOperator(src[i:])
			if width == 0 {
				return nil, &SyntaxError{Msg: fmt.Sprintf("unexpected character %q", string(c)), Pos: p}
			}
			emit(t, src[i:i+width], p)
			advance(width)
		}
	}

	toks = append(toks, token{typ: tokEOF, pos: pos()})
	return toks, nil
}

// lexOperator matches the longest operator at the head of s.
func lexOperator(s string) (tokenType, int) {
	two := map[string]tokenType{
		"=>": tokArrow, "..": tokDotDot,
		"==": tokEq, "!=": tokNe, "<=": tokLe, ">=": tokGe,
		"+=": tokPlusEq, "-=": tokMinusEq, "*=": tokStarEq, "/=": tokSlashEq,
		"&&": tokAndAnd, "||": tokOrOr,
	}
	if len(s) >= 2 {
		if t, ok := two[s[:2]]; ok {
			return t, 2
		}
	}
	one := map[byte]tokenType{
		'(': tokLParen, ')': tokRParen, '{': tokLBrace, '}': tokRBrace,
		',': tokComma, ';': tokSemi, '=': tokAssign,
		'+': tokPlus, '-': tokMinus, '*': tokStar, '/': tokSlash, '%': tokPercent,
		'<': tokLt, '>': tokGt, '!': tokBang,
	}
	if t, ok := one[s[0]]; ok {
		return t, 1
	}
	return 0, 0
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) }

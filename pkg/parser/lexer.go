package parser

import (
	"strings"

	"github.com/leapstack-labs/chviewgraph/pkg/token"
)

// Lexer tokenizes ClickHouse SQL input.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
	l.col++
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// atEOF reports whether the whole input has been consumed.
func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// currentPos returns the current position.
func (l *Lexer) currentPos() Position {
	return Position{
		Line:   l.line,
		Column: l.col,
		Offset: l.pos,
	}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	if msg := l.skipWhitespaceAndComments(); msg != "" {
		return Token{Type: token.ILLEGAL, Literal: msg, Pos: l.currentPos()}
	}

	pos := l.currentPos()
	if l.atEOF() {
		return Token{Type: token.EOF, Pos: pos}
	}

	var tok Token
	switch l.ch {
	case '+':
		tok = l.newToken(token.PLUS, "+")
	case '-':
		if l.peekChar() == '>' {
			l.readChar()
			tok = Token{Type: token.ARROW, Literal: "->", Pos: pos}
		} else {
			tok = l.newToken(token.MINUS, "-")
		}
	case '*':
		tok = l.newToken(token.STAR, "*")
	case '/':
		tok = l.newToken(token.SLASH, "/")
	case '%':
		tok = l.newToken(token.PERCENT, "%")
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: token.EQ, Literal: "==", Pos: pos}
		} else {
			tok = l.newToken(token.EQ, "=")
		}
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			tok = Token{Type: token.LE, Literal: "<=", Pos: pos}
		case '>':
			l.readChar()
			tok = Token{Type: token.NE, Literal: "<>", Pos: pos}
		default:
			tok = l.newToken(token.LT, "<")
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: token.GE, Literal: ">=", Pos: pos}
		} else {
			tok = l.newToken(token.GT, ">")
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: token.NE, Literal: "!=", Pos: pos}
		} else {
			tok = l.newToken(token.ILLEGAL, "unexpected character '!'")
		}
	case '|':
		if l.peekChar() == '|' {
			l.readChar()
			tok = Token{Type: token.DPIPE, Literal: "||", Pos: pos}
		} else {
			tok = l.newToken(token.ILLEGAL, "unexpected character '|'")
		}
	case ':':
		if l.peekChar() == ':' {
			l.readChar()
			tok = Token{Type: token.DCOLON, Literal: "::", Pos: pos}
		} else {
			tok = l.newToken(token.COLON, ":")
		}
	case '.':
		tok = l.newToken(token.DOT, ".")
	case ',':
		tok = l.newToken(token.COMMA, ",")
	case '(':
		tok = l.newToken(token.LPAREN, "(")
	case ')':
		tok = l.newToken(token.RPAREN, ")")
	case '[':
		tok = l.newToken(token.LBRACKET, "[")
	case ']':
		tok = l.newToken(token.RBRACKET, "]")
	case '{':
		tok = l.newToken(token.LBRACE, "{")
	case '}':
		tok = l.newToken(token.RBRACE, "}")
	case '?':
		tok = l.newToken(token.QUESTION, "?")
	case ';':
		tok = l.newToken(token.SEMICOLON, ";")
	case '\'':
		lit, ok := l.readQuoted('\'')
		if !ok {
			return Token{Type: token.ILLEGAL, Literal: ErrUnterminatedString, Pos: pos}
		}
		return Token{Type: token.STRING, Literal: lit, Pos: pos}
	case '`', '"':
		lit, ok := l.readQuoted(l.ch)
		if !ok {
			return Token{Type: token.ILLEGAL, Literal: ErrUnterminatedIdent, Pos: pos}
		}
		return Token{Type: token.QUOTED_IDENT, Literal: lit, Pos: pos}
	default:
		switch {
		case isLetter(l.ch) || l.ch == '_' || l.ch == '$':
			lit := l.readIdentifier()
			return Token{Type: token.LookupIdent(lit), Literal: lit, Pos: pos}
		case isDigit(l.ch):
			return l.readNumberOrIdent(pos)
		default:
			tok = l.newToken(token.ILLEGAL, "unexpected character '"+string(l.ch)+"'")
		}
	}

	l.readChar()
	return tok
}

// newToken creates a new token at the current position.
func (l *Lexer) newToken(tokenType TokenType, literal string) Token {
	return Token{Type: tokenType, Literal: literal, Pos: l.currentPos()}
}

// skipWhitespaceAndComments skips whitespace plus --, # and /* */ comments.
// It returns a non-empty message on an unterminated block comment.
func (l *Lexer) skipWhitespaceAndComments() string {
	for {
		for isSpace(l.ch) && !l.atEOF() {
			l.readChar()
		}

		switch {
		case l.ch == '-' && l.peekChar() == '-', l.ch == '#':
			for l.ch != '\n' && !l.atEOF() {
				l.readChar()
			}
			continue
		case l.ch == '/' && l.peekChar() == '*':
			if !l.skipBlockComment() {
				return ErrUnterminatedComment
			}
			continue
		}
		return ""
	}
}

// skipBlockComment skips a possibly nested /* ... */ comment.
func (l *Lexer) skipBlockComment() bool {
	depth := 0
	for !l.atEOF() {
		switch {
		case l.ch == '/' && l.peekChar() == '*':
			depth++
			l.readChar()
		case l.ch == '*' && l.peekChar() == '/':
			depth--
			l.readChar()
			if depth == 0 {
				l.readChar()
				return true
			}
		}
		l.readChar()
	}
	return false
}

// readQuoted reads a literal enclosed in quote, handling backslash escapes
// and doubled quote characters. Returns false if the input ends first.
func (l *Lexer) readQuoted(quote byte) (string, bool) {
	l.readChar() // skip opening quote

	var result strings.Builder
	for !l.atEOF() {
		switch {
		case l.ch == '\\':
			l.readChar()
			if l.atEOF() {
				return "", false
			}
			result.WriteByte(unescape(l.ch))
			l.readChar()
		case l.ch == quote && l.peekChar() == quote:
			result.WriteByte(quote)
			l.readChar()
			l.readChar()
		case l.ch == quote:
			l.readChar()
			return result.String(), true
		default:
			result.WriteByte(l.ch)
			l.readChar()
		}
	}
	return "", false
}

// readIdentifier reads an unquoted identifier.
func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isIdentChar(l.ch) && !l.atEOF() {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumberOrIdent reads a numeric literal. ClickHouse identifiers may
// start with a digit, so a digit run followed by word characters that do
// not form a number is returned as IDENT.
func (l *Lexer) readNumberOrIdent(pos Position) Token {
	start := l.pos

	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X' || l.peekChar() == 'b' || l.peekChar() == 'B') {
		l.readChar()
		l.readChar()
		for isHexDigit(l.ch) && !l.atEOF() {
			l.readChar()
		}
	} else {
		for isDigit(l.ch) && !l.atEOF() {
			l.readChar()
		}
		if l.ch == '.' && isDigit(l.peekChar()) {
			l.readChar()
			for isDigit(l.ch) && !l.atEOF() {
				l.readChar()
			}
		}
		if l.ch == 'e' || l.ch == 'E' {
			next := l.peekChar()
			if isDigit(next) || next == '+' || next == '-' {
				l.readChar()
				if l.ch == '+' || l.ch == '-' {
					l.readChar()
				}
				for isDigit(l.ch) && !l.atEOF() {
					l.readChar()
				}
			}
		}
	}

	if isIdentChar(l.ch) && !l.atEOF() {
		for isIdentChar(l.ch) && !l.atEOF() {
			l.readChar()
		}
		return Token{Type: token.IDENT, Literal: l.input[start:l.pos], Pos: pos}
	}
	return Token{Type: token.NUMBER, Literal: l.input[start:l.pos], Pos: pos}
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	default:
		return c
	}
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f' || ch == '\v'
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch >= 0x80
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func isIdentChar(ch byte) bool {
	return isLetter(ch) || isDigit(ch) || ch == '_' || ch == '$'
}

// Package parser provides a ClickHouse SQL parser for view definitions.
//
// # Usage
//
//	stmt, err := parser.Parse("CREATE VIEW db.v AS SELECT a FROM db.t")
//	if err != nil {
//	    var perr *parser.ParseError
//	    errors.As(err, &perr) // position and message
//	}
//
// # Grammar Overview
//
// The parser implements a recursive descent parser with Pratt-style
// expression parsing:
//
//	statement   → create_view | query
//	create_view → (CREATE|ATTACH) [OR REPLACE] [TEMPORARY]
//	              [MATERIALIZED|LIVE|WINDOW] VIEW [IF NOT EXISTS] name
//	              {engine clauses} AS query [COMMENT string] [;]
//	query       → [WITH with_list] operand {(UNION|EXCEPT|INTERSECT) [ALL|DISTINCT] operand}
//	operand     → select | '(' query ')'
//	select      → SELECT [DISTINCT] select_list [FROM table_expr]
//	              [PREWHERE expr] [WHERE expr] [GROUP BY ...] [HAVING expr]
//	              [WINDOW ...] [QUALIFY expr] [ORDER BY ...] [LIMIT ...]
//	              [OFFSET ...] [SETTINGS ...] [FORMAT name]
//
// Engine clauses of CREATE statements (ENGINE, ORDER BY, TTL, SETTINGS,
// POPULATE, REFRESH, ...) are skipped without interpretation; only the
// TO target of a materialized view is recorded.
//
// See each file for detailed grammar rules for that section.
package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/chviewgraph/pkg/token"
)

// Parser parses ClickHouse SQL into an AST.
type Parser struct {
	lexer  *Lexer
	token  Token // current token
	peek   Token // lookahead token
	peek2  Token // second lookahead token
	errors []error
}

// NewParser creates a new parser for the given SQL input.
func NewParser(sql string) *Parser {
	p := &Parser{lexer: NewLexer(sql)}
	// Read three tokens to initialize current, peek, and peek2
	p.nextToken()
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a CREATE VIEW statement, or a bare query, and returns the AST.
// The returned error is a *ParseError.
func Parse(sql string) (Statement, error) {
	p := NewParser(sql)
	stmt := p.parseStatement()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return stmt, nil
}

// ParseQuery parses a bare SELECT / WITH query.
func ParseQuery(sql string) (*Query, error) {
	p := NewParser(sql)
	q := p.parseQuery()
	p.parseStatementEnd()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return q, nil
}

// ---------- Token Helpers ----------

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.token = p.peek
	p.peek = p.peek2
	p.peek2 = p.lexer.NextToken()
	if p.token.Type == token.ILLEGAL {
		p.addError(p.token.Literal)
	}
}

// check returns true if the current token is of the given type.
func (p *Parser) check(t TokenType) bool {
	return p.token.Type == t
}

// checkPeek returns true if the peek token is of the given type.
func (p *Parser) checkPeek(t TokenType) bool {
	return p.peek.Type == t
}

// checkWord returns true if the current token is the given bare word.
func (p *Parser) checkWord(word string) bool {
	return p.token.IsWord(word)
}

// match consumes the current token if it matches and returns true.
func (p *Parser) match(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

// matchWord consumes the current token if it is the given bare word.
func (p *Parser) matchWord(word string) bool {
	if p.checkWord(word) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise adds an error.
func (p *Parser) expect(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.token), t))
	return false
}

// expectWord consumes the given bare word, otherwise adds an error.
func (p *Parser) expectWord(word string) bool {
	if p.matchWord(word) {
		return true
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.token), word))
	return false
}

// addError adds a parse error.
func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, &ParseError{
		Pos:     p.token.Pos,
		Message: msg,
	})
}

// failed reports whether any error has been recorded. Loops check it so
// that parsing stops at the first problem.
func (p *Parser) failed() bool {
	return len(p.errors) > 0
}

// describe renders a token for error messages.
func (p *Parser) describe(tok Token) string {
	switch tok.Type {
	case token.EOF:
		return "end of input"
	case token.IDENT, token.NUMBER:
		return fmt.Sprintf("%s %q", tok.Type, tok.Literal)
	case token.STRING:
		return fmt.Sprintf("string '%s'", tok.Literal)
	case token.QUOTED_IDENT:
		return fmt.Sprintf("identifier `%s`", tok.Literal)
	default:
		return tok.Type.String()
	}
}

// ---------- Keyword Helpers ----------

// identKeywords are keywords that may also be used as column or table
// names when they appear where an operand is expected.
var identKeywords = map[TokenType]bool{
	token.ALL:      true,
	token.ANTI:     true,
	token.ANY:      true,
	token.ARRAY:    true,
	token.ASC:      true,
	token.ASOF:     true,
	token.CROSS:    true,
	token.DESC:     true,
	token.FINAL:    true,
	token.FORMAT:   true,
	token.FULL:     true,
	token.GLOBAL:   true,
	token.INNER:    true,
	token.LEFT:     true,
	token.OUTER:    true,
	token.OVER:     true,
	token.PASTE:    true,
	token.QUALIFY:  true,
	token.RIGHT:    true,
	token.SAMPLE:   true,
	token.SEMI:     true,
	token.SETTINGS: true,
	token.WINDOW:   true,
}

// isNameToken reports whether tok can start an identifier.
func isNameToken(tok Token) bool {
	return tok.Type == token.IDENT || tok.Type == token.QUOTED_IDENT || identKeywords[tok.Type]
}

// isWordToken reports whether tok is any bare word or quoted identifier.
// Used after a dot, where every word is a plain name.
func isWordToken(tok Token) bool {
	return tok.Type == token.IDENT || tok.Type == token.QUOTED_IDENT || token.IsKeyword(tok.Type)
}

// isAliasToken reports whether tok can be used as an alias without AS.
func isAliasToken(tok Token) bool {
	switch tok.Type {
	case token.QUOTED_IDENT:
		return true
	case token.IDENT:
		return !nonAliasWords[strings.ToUpper(tok.Literal)]
	}
	return false
}

// nonAliasWords are unreserved words that follow a table or projection
// and therefore cannot be taken as an implicit alias.
var nonAliasWords = map[string]bool{
	"COMMENT":     true,
	"INTERPOLATE": true,
	"INTO":        true,
	"LOCAL":       true,
}

// parseName consumes a single name token and returns its text.
func (p *Parser) parseName() string {
	if !isWordToken(p.token) {
		p.addError(fmt.Sprintf(ErrExpectedIdentifier, p.describe(p.token)))
		return ""
	}
	name := p.token.Literal
	p.nextToken()
	return name
}

// parseAlias parses an optional [AS] alias.
func (p *Parser) parseAlias() string {
	if p.match(token.AS) {
		return p.parseName()
	}
	if isAliasToken(p.token) {
		name := p.token.Literal
		p.nextToken()
		return name
	}
	return ""
}

// skipBalanced consumes a parenthesized group starting at the current '('.
func (p *Parser) skipBalanced() {
	depth := 0
	for !p.failed() {
		switch p.token.Type {
		case token.LPAREN:
			depth++
		case token.RPAREN:
			depth--
			if depth == 0 {
				p.nextToken()
				return
			}
		case token.EOF:
			p.addError(ErrUnbalancedParens)
			return
		}
		p.nextToken()
	}
}

package parser

import (
	"fmt"

	"github.com/leapstack-labs/chviewgraph/pkg/core"
	"github.com/leapstack-labs/chviewgraph/pkg/token"
)

// Statement grammar:
//
//	statement   → create_view | query
//	create_view → (CREATE|ATTACH) [OR REPLACE] [TEMPORARY]
//	              [MATERIALIZED|LIVE|WINDOW] VIEW [IF NOT EXISTS] name
//	              {view_clause} AS query [COMMENT string] [;]
//	view_clause → ON CLUSTER name | TO name | '(' columns ')' | ENGINE = ...
//	              | POPULATE | REFRESH ... | DEFINER = ... | any other token

// parseStatement parses a full input.
func (p *Parser) parseStatement() Statement {
	switch {
	case p.check(token.SELECT), p.check(token.WITH), p.check(token.LPAREN):
		q := p.parseQuery()
		p.parseStatementEnd()
		return q
	case p.checkWord("CREATE"), p.checkWord("ATTACH"):
		return p.parseCreateView()
	default:
		p.addError(fmt.Sprintf(ErrUnsupportedStmt, p.describe(p.token)))
		return nil
	}
}

// parseStatementEnd consumes an optional trailing semicolon and requires EOF.
func (p *Parser) parseStatementEnd() {
	if p.failed() {
		return
	}
	p.match(token.SEMICOLON)
	if !p.check(token.EOF) {
		p.addError(fmt.Sprintf(ErrUnexpectedTrailing, p.describe(p.token)))
	}
}

// parseCreateView parses CREATE ... VIEW ... AS query.
func (p *Parser) parseCreateView() *CreateView {
	stmt := &CreateView{Pos: p.token.Pos, Kind: ViewPlain}
	p.nextToken() // consume CREATE / ATTACH

	if p.match(token.OR) {
		if !p.expectWord("REPLACE") {
			return nil
		}
		stmt.OrReplace = true
	}
	p.matchWord("TEMPORARY")

	switch {
	case p.matchWord("MATERIALIZED"):
		stmt.Kind = ViewMaterialized
	case p.matchWord("LIVE"):
		stmt.Kind = ViewLive
	case p.matchWord("WINDOW"):
		stmt.Kind = ViewWindow
	}

	if !p.expectWord("VIEW") {
		return nil
	}

	if p.checkWord("IF") && p.peek.Type == token.NOT {
		p.nextToken()
		p.nextToken()
		if !p.expect(token.EXISTS) {
			return nil
		}
		stmt.IfNotExists = true
	}

	stmt.Name = p.parseTableIdentifier()
	if p.failed() {
		return nil
	}

	p.skipViewClauses(stmt)
	if p.failed() {
		return nil
	}

	stmt.Query = p.parseQuery()
	if p.failed() {
		return nil
	}

	if p.matchWord("COMMENT") {
		if p.check(token.STRING) {
			stmt.Comment = p.token.Literal
			p.nextToken()
		} else {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.token), "comment string"))
			return nil
		}
	}

	p.parseStatementEnd()
	return stmt
}

// skipViewClauses consumes everything between the view name and AS query.
// Only the TO target is recorded; engine, column and refresh clauses carry
// no dependency information.
func (p *Parser) skipViewClauses(stmt *CreateView) {
	for !p.failed() {
		switch {
		case p.check(token.AS) && (p.checkPeek(token.SELECT) || p.checkPeek(token.WITH) || p.checkPeek(token.LPAREN)):
			p.nextToken()
			return
		case p.check(token.EOF):
			p.addError(ErrExpectedAsQuery)
			return
		case p.check(token.LPAREN):
			p.skipBalanced()
		case p.checkWord("TO") && stmt.To == nil && isNameToken(p.peek) &&
			!p.peek.IsWord("DISK") && !p.peek.IsWord("VOLUME"):
			p.nextToken()
			to := p.parseTableIdentifier()
			stmt.To = &to
		default:
			p.nextToken()
		}
	}
}

// parseTableIdentifier parses [db.]name into a qualified name.
func (p *Parser) parseTableIdentifier() core.QualifiedName {
	start := p.token
	if !isNameToken(p.token) {
		p.addError(fmt.Sprintf(ErrExpectedIdentifier, p.describe(p.token)))
		return core.QualifiedName{}
	}
	parts := []string{p.token.Literal}
	p.nextToken()
	for p.check(token.DOT) && !p.failed() {
		p.nextToken()
		parts = append(parts, p.parseName())
	}
	return p.qualifiedFromParts(start, parts)
}

// qualifiedFromParts converts one or two name parts into a qualified name.
func (p *Parser) qualifiedFromParts(start Token, parts []string) core.QualifiedName {
	switch len(parts) {
	case 1:
		return core.QualifiedName{Name: parts[0]}
	case 2:
		return core.QualifiedName{Schema: parts[0], Name: parts[1]}
	default:
		p.errors = append(p.errors, &ParseError{
			Pos:     start.Pos,
			Message: fmt.Sprintf(ErrTooManyNameParts, (&Identifier{Parts: parts}).Name()),
		})
		return core.QualifiedName{}
	}
}

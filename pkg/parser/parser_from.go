package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/chviewgraph/pkg/token"
)

// FROM clause grammar:
//
//	table_expr    → table_primary {join_clause | array_join | ',' table_primary}
//	table_primary → table_name [alias] [FINAL] [SAMPLE n [OFFSET m]]
//	              | func '(' args ')' [alias]
//	              | '(' query ')' [alias]
//	              | '(' table_expr ')' [alias]
//	join_clause   → [GLOBAL|LOCAL] [ANY|ALL|ASOF|SEMI|ANTI] [INNER|LEFT|RIGHT|FULL|CROSS|PASTE] [OUTER]
//	                [ANY|ALL|ASOF|SEMI|ANTI] JOIN table_primary [ON expr | USING cols]
//	array_join    → [LEFT] ARRAY JOIN expr [AS alias] {, expr [AS alias]}

// parseTableExpr parses a FROM clause body.
func (p *Parser) parseTableExpr() TableExpr {
	left := p.parseTablePrimary()
	for !p.failed() {
		switch {
		case p.check(token.COMMA):
			p.nextToken()
			left = &JoinExpr{Left: left, Right: p.parseTablePrimary(), Kind: ","}
		case p.check(token.ARRAY) && p.checkPeek(token.JOIN):
			p.nextToken()
			p.nextToken()
			left = &ArrayJoin{Left: left, Items: p.parseArrayJoinItems()}
		case p.check(token.LEFT) && p.checkPeek(token.ARRAY) && p.peek2.Type == token.JOIN:
			p.nextToken()
			p.nextToken()
			p.nextToken()
			left = &ArrayJoin{Left: left, LeftOuter: true, Items: p.parseArrayJoinItems()}
		case p.isJoinStart():
			left = p.parseJoin(left)
		default:
			return left
		}
	}
	return left
}

// isJoinStart reports whether the current token begins a JOIN clause.
func (p *Parser) isJoinStart() bool {
	switch p.token.Type {
	case token.JOIN, token.GLOBAL, token.ANY, token.ALL, token.ASOF, token.SEMI, token.ANTI,
		token.INNER, token.LEFT, token.RIGHT, token.FULL, token.CROSS, token.OUTER, token.PASTE:
		return true
	}
	return p.checkWord("LOCAL") && (p.checkPeek(token.JOIN) || token.IsKeyword(p.peek.Type))
}

// parseJoin parses the join modifiers, the right table and the join constraint.
func (p *Parser) parseJoin(left TableExpr) TableExpr {
	var kind []string
	for !p.check(token.JOIN) && !p.failed() {
		switch p.token.Type {
		case token.GLOBAL, token.ANY, token.ALL, token.ASOF, token.SEMI, token.ANTI,
			token.INNER, token.LEFT, token.RIGHT, token.FULL, token.CROSS, token.OUTER, token.PASTE:
			kind = append(kind, strings.ToUpper(p.token.Literal))
			p.nextToken()
		default:
			if p.matchWord("LOCAL") {
				continue
			}
			p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.token), "JOIN"))
			return left
		}
	}
	p.nextToken() // JOIN

	join := &JoinExpr{Left: left, Kind: strings.Join(kind, " ")}
	if join.Kind == "" {
		join.Kind = "INNER"
	}
	join.Right = p.parseTablePrimary()

	switch {
	case p.match(token.ON):
		join.On = p.parseExpression()
	case p.match(token.USING):
		if p.match(token.LPAREN) {
			join.Using = p.parseExpressionList()
			p.expect(token.RPAREN)
		} else {
			join.Using = p.parseExpressionList()
		}
	}
	return join
}

// parseArrayJoinItems parses expr [AS alias] {, expr [AS alias]}.
func (p *Parser) parseArrayJoinItems() []*SelectItem {
	var items []*SelectItem
	for !p.failed() {
		expr := p.parseExpression()
		items = append(items, &SelectItem{Expr: expr, Alias: p.parseAlias()})
		if !p.match(token.COMMA) {
			break
		}
	}
	return items
}

// parseTablePrimary parses a single FROM item.
func (p *Parser) parseTablePrimary() TableExpr {
	start := p.token

	switch {
	case p.check(token.LPAREN):
		if p.checkPeek(token.SELECT) || p.checkPeek(token.WITH) || p.checkPeek(token.LPAREN) {
			p.nextToken()
			q := p.parseQuery()
			p.expect(token.RPAREN)
			return &DerivedTable{Pos: start.Pos, Query: q, Alias: p.parseAlias()}
		}
		p.nextToken()
		inner := p.parseTableExpr()
		p.expect(token.RPAREN)
		return &ParenTable{Table: inner, Alias: p.parseAlias()}

	case isNameToken(p.token) && p.checkPeek(token.LPAREN):
		fn := &FuncCall{Name: p.token.Literal}
		p.nextToken()
		args := p.parseFunctionArgs(fn)
		return &TableFunction{Pos: start.Pos, Name: fn.Name, Args: args, Alias: p.parseAlias()}

	case isNameToken(p.token):
		tbl := &TableName{Pos: start.Pos, Name: p.parseTableIdentifier()}
		p.parseTableModifiers(tbl)
		return tbl

	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.token), "table name, table function or subquery"))
		return nil
	}
}

// parseTableModifiers parses [AS] alias, FINAL and SAMPLE in any order.
func (p *Parser) parseTableModifiers(tbl *TableName) {
	for !p.failed() {
		switch {
		case p.match(token.FINAL):
			tbl.Final = true
		case p.match(token.SAMPLE):
			tbl.Sample = p.parseExpressionWithPrecedence(precAdditive)
			if p.match(token.OFFSET) {
				p.parseExpressionWithPrecedence(precAdditive)
			}
		case tbl.Alias == "" && (p.check(token.AS) || isAliasToken(p.token)):
			tbl.Alias = p.parseAlias()
		default:
			return
		}
	}
}

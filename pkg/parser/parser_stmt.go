package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/chviewgraph/pkg/token"
)

// Query grammar:
//
//	query     → [WITH [RECURSIVE] with_list] operand {set_op operand}
//	with_list → with_item {',' with_item}
//	with_item → name AS '(' query ')' | expr AS name
//	set_op    → (UNION|EXCEPT|INTERSECT) [ALL|DISTINCT]
//	operand   → select | [WITH with_list] select | '(' query ')'

// parseQuery parses a query with optional WITH clause and set operations.
func (p *Parser) parseQuery() *Query {
	q := &Query{Pos: p.token.Pos}
	if p.check(token.WITH) {
		q.With = p.parseWithClause()
		if p.failed() {
			return q
		}
	}
	q.Body = p.parseSetOperations()
	return q
}

// parseWithClause parses WITH [RECURSIVE] items.
func (p *Parser) parseWithClause() *WithClause {
	p.nextToken() // consume WITH
	w := &WithClause{}
	if p.checkWord("RECURSIVE") && !p.checkPeek(token.AS) {
		p.nextToken()
		w.Recursive = true
	}

	for !p.failed() {
		w.Entries = append(w.Entries, p.parseWithEntry())
		if !p.match(token.COMMA) {
			break
		}
	}
	return w
}

// parseWithEntry parses one CTE or scalar alias.
func (p *Parser) parseWithEntry() *WithEntry {
	// name AS (query)
	if isNameToken(p.token) && p.checkPeek(token.AS) && p.peek2.Type == token.LPAREN {
		name := p.token.Literal
		p.nextToken() // name
		p.nextToken() // AS
		p.nextToken() // (
		q := p.parseQuery()
		p.expect(token.RPAREN)
		return &WithEntry{Name: name, Query: q}
	}

	// expr AS name
	expr := p.parseExpression()
	if p.failed() {
		return &WithEntry{}
	}
	if !p.expect(token.AS) {
		return &WithEntry{}
	}
	return &WithEntry{Name: p.parseName(), Expr: expr}
}

// parseSetOperations parses operand {set_op operand}, left-associative.
func (p *Parser) parseSetOperations() QueryBody {
	left := p.parseQueryOperand()
	for !p.failed() {
		var op string
		switch {
		case p.check(token.UNION), p.check(token.EXCEPT), p.check(token.INTERSECT):
			op = strings.ToUpper(p.token.Literal)
		default:
			return left
		}
		p.nextToken()

		modifier := ""
		switch {
		case p.match(token.ALL):
			modifier = "ALL"
		case p.match(token.DISTINCT):
			modifier = "DISTINCT"
		}

		right := p.parseQueryOperand()
		left = &SetOperation{Op: op, Modifier: modifier, Left: left, Right: right}
	}
	return left
}

// parseQueryOperand parses one member of a set operation chain.
func (p *Parser) parseQueryOperand() QueryBody {
	switch {
	case p.check(token.LPAREN):
		p.nextToken()
		q := p.parseQuery()
		p.expect(token.RPAREN)
		return &ParenQuery{Query: q}
	case p.check(token.WITH):
		with := p.parseWithClause()
		if p.failed() {
			return nil
		}
		if !p.check(token.SELECT) {
			p.addError(fmt.Sprintf(ErrExpectedQuery, p.describe(p.token)))
			return nil
		}
		stmt := p.parseSelect()
		stmt.With = with
		return stmt
	case p.check(token.SELECT):
		return p.parseSelect()
	default:
		p.addError(fmt.Sprintf(ErrExpectedQuery, p.describe(p.token)))
		return nil
	}
}

// parseSelect parses a single SELECT block with all of its clauses.
func (p *Parser) parseSelect() *SelectStmt {
	stmt := &SelectStmt{Pos: p.token.Pos}
	p.nextToken() // consume SELECT

	switch {
	case p.match(token.DISTINCT):
		stmt.Distinct = true
		if p.match(token.ON) {
			if p.expect(token.LPAREN) {
				stmt.DistinctOn = p.parseExpressionList()
				p.expect(token.RPAREN)
			}
		}
	case p.match(token.ALL):
	}

	if p.matchWord("TOP") {
		stmt.Top = p.parseExpressionWithPrecedence(precAdditive)
		if p.check(token.WITH) && p.peek.IsWord("TIES") {
			p.nextToken()
			p.nextToken()
		}
	}

	stmt.Columns = p.parseSelectList()

	if p.match(token.FROM) {
		stmt.From = p.parseTableExpr()
	}
	if p.match(token.PREWHERE) {
		stmt.Prewhere = p.parseExpression()
	}
	if p.match(token.WHERE) {
		stmt.Where = p.parseExpression()
	}
	if p.check(token.GROUP) {
		p.parseGroupBy(stmt)
	}
	p.parseGroupByModifiers(stmt)
	if p.match(token.HAVING) {
		stmt.Having = p.parseExpression()
	}
	if p.match(token.WINDOW) {
		stmt.Windows = p.parseWindowDefs()
	}
	if p.match(token.QUALIFY) {
		stmt.Qualify = p.parseExpression()
	}
	if p.check(token.ORDER) {
		p.nextToken()
		if p.expect(token.BY) {
			stmt.OrderBy = p.parseOrderByList()
		}
		p.parseInterpolate()
	}
	p.parseLimits(stmt)
	if p.match(token.SETTINGS) {
		stmt.Settings = p.parseSettings()
	}
	if p.match(token.FORMAT) {
		stmt.Format = p.parseName()
	}

	return stmt
}

// parseSelectList parses projections: expr [[AS] alias] {, ...}.
func (p *Parser) parseSelectList() []*SelectItem {
	var items []*SelectItem
	for !p.failed() {
		expr := p.parseExpression()
		if p.failed() {
			break
		}
		item := &SelectItem{Expr: expr}
		if _, isStar := expr.(*StarExpr); !isStar {
			item.Alias = p.parseAlias()
		}
		items = append(items, item)
		if !p.match(token.COMMA) {
			break
		}
	}
	return items
}

// parseGroupBy parses GROUP BY [ALL | GROUPING SETS (...) | list].
func (p *Parser) parseGroupBy(stmt *SelectStmt) {
	p.nextToken() // GROUP
	if !p.expect(token.BY) {
		return
	}
	if p.check(token.ALL) && !p.checkPeek(token.LPAREN) {
		p.nextToken()
		stmt.GroupByAll = true
		return
	}
	if p.checkWord("GROUPING") && p.peek.IsWord("SETS") {
		p.nextToken()
		p.nextToken()
		stmt.GroupBy = []Expr{p.parsePrimary()}
		return
	}
	for !p.failed() {
		stmt.GroupBy = append(stmt.GroupBy, p.parseAliasedExpression())
		if !p.match(token.COMMA) {
			break
		}
	}
}

// parseGroupByModifiers parses WITH ROLLUP | WITH CUBE | WITH TOTALS.
func (p *Parser) parseGroupByModifiers(stmt *SelectStmt) {
	for p.check(token.WITH) && !p.failed() {
		switch {
		case p.peek.IsWord("ROLLUP"), p.peek.IsWord("CUBE"), p.peek.IsWord("TOTALS"):
			stmt.Modifiers = append(stmt.Modifiers, strings.ToUpper(p.peek.Literal))
			p.nextToken()
			p.nextToken()
		default:
			return
		}
	}
}

// parseWindowDefs parses WINDOW name AS (spec) {, ...}.
func (p *Parser) parseWindowDefs() []*WindowDef {
	var defs []*WindowDef
	for !p.failed() {
		name := p.parseName()
		if !p.expect(token.AS) || !p.expect(token.LPAREN) {
			break
		}
		defs = append(defs, &WindowDef{Name: name, Spec: p.parseWindowSpecBody()})
		if !p.match(token.COMMA) {
			break
		}
	}
	return defs
}

// parseOrderByList parses ORDER BY items.
//
//	order_item → expr [ASC|DESC|ASCENDING|DESCENDING] [NULLS FIRST|LAST]
//	             [COLLATE string] [WITH FILL [FROM e] [TO e] [STEP e] [STALENESS e]]
func (p *Parser) parseOrderByList() []*OrderByItem {
	var items []*OrderByItem
	for !p.failed() {
		item := &OrderByItem{Expr: p.parseExpression()}
		if p.failed() {
			break
		}

		switch {
		case p.match(token.ASC), p.matchWord("ASCENDING"):
		case p.match(token.DESC), p.matchWord("DESCENDING"):
			item.Desc = true
		}
		if p.checkWord("NULLS") && (p.peek.IsWord("FIRST") || p.peek.IsWord("LAST")) {
			p.nextToken()
			p.nextToken()
		}
		if p.matchWord("COLLATE") {
			p.expect(token.STRING)
		}
		if p.check(token.WITH) && p.peek.IsWord("FILL") {
			p.nextToken()
			p.nextToken()
			for !p.failed() {
				if p.match(token.FROM) || p.matchWord("TO") || p.matchWord("STEP") || p.matchWord("STALENESS") {
					item.Fill = append(item.Fill, p.parseExpression())
					continue
				}
				break
			}
		}

		items = append(items, item)
		if !p.match(token.COMMA) {
			break
		}
	}
	return items
}

// parseInterpolate parses INTERPOLATE [(col [AS expr], ...)].
func (p *Parser) parseInterpolate() {
	if !p.matchWord("INTERPOLATE") {
		return
	}
	if p.check(token.LPAREN) {
		p.skipBalanced()
	}
}

// parseLimits parses LIMIT [n,] m [OFFSET k] [WITH TIES] [BY exprs], repeated
// for LIMIT BY followed by LIMIT, then OFFSET ... [ROWS] and FETCH ....
func (p *Parser) parseLimits(stmt *SelectStmt) {
	for p.check(token.LIMIT) && !p.failed() {
		p.nextToken()
		limit := p.parseExpression()
		var offset Expr
		if p.match(token.COMMA) {
			offset = limit
			limit = p.parseExpression()
		}
		if p.match(token.OFFSET) {
			offset = p.parseExpression()
		}
		if p.check(token.WITH) && p.peek.IsWord("TIES") {
			p.nextToken()
			p.nextToken()
		}
		if p.match(token.BY) {
			stmt.LimitBy = &LimitBy{Limit: limit, Offset: offset, By: p.parseExpressionList()}
			continue
		}
		stmt.Limit = limit
		if offset != nil {
			stmt.Offset = offset
		}
	}

	if p.match(token.OFFSET) {
		stmt.Offset = p.parseExpression()
		if !p.matchWord("ROWS") {
			p.matchWord("ROW")
		}
	}

	if p.matchWord("FETCH") {
		if !p.matchWord("FIRST") {
			p.matchWord("NEXT")
		}
		stmt.Limit = p.parseExpression()
		if !p.matchWord("ROWS") {
			p.matchWord("ROW")
		}
		if !p.matchWord("ONLY") && p.check(token.WITH) && p.peek.IsWord("TIES") {
			p.nextToken()
			p.nextToken()
		}
	}
}

// parseSettings parses name = value {, name = value}.
func (p *Parser) parseSettings() []*Setting {
	var settings []*Setting
	for !p.failed() {
		name := p.parseName()
		if !p.expect(token.EQ) {
			break
		}
		settings = append(settings, &Setting{Name: name, Value: p.parseExpression()})
		if !p.match(token.COMMA) {
			break
		}
	}
	return settings
}

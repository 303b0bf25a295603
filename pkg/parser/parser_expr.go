package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/chviewgraph/pkg/token"
)

// Expression precedence parsing using a Pratt parser.
//
// Precedence levels (lowest to highest):
//
//	precLambda         = 1  (->)
//	precTernary        = 2  (? :)
//	precOr             = 3
//	precAnd            = 4
//	precNot            = 5
//	precComparison     = 6  (=, !=, <, >, <=, >=, IS, IN, BETWEEN, LIKE, ILIKE)
//	precAdditive       = 7  (+, -, ||)
//	precMultiplicative = 8  (*, /, %)
//	precUnary          = 9  (-)
//	precPostfix        = 10 (::, [], .)
const (
	precNone = iota
	precLambda
	precTernary
	precOr
	precAnd
	precNot
	precComparison
	precAdditive
	precMultiplicative
	precUnary
	precPostfix
)

// parseExpression parses an expression using precedence climbing.
func (p *Parser) parseExpression() Expr {
	return p.parseExpressionWithPrecedence(precLambda)
}

// parseExpressionWithPrecedence implements Pratt parsing.
func (p *Parser) parseExpressionWithPrecedence(minPrecedence int) Expr {
	left := p.parsePrefixExpr()
	if left == nil || p.failed() {
		return left
	}

	for !p.failed() {
		prec := p.infixPrecedence()
		if prec == precNone || prec < minPrecedence {
			break
		}
		left = p.parseInfixExpr(left, prec)
		if left == nil {
			break
		}
	}

	return left
}

// parsePrefixExpr parses prefix expressions (unary operators and primary expressions).
func (p *Parser) parsePrefixExpr() Expr {
	switch p.token.Type {
	case token.NOT:
		p.nextToken()
		return &UnaryExpr{Op: "NOT", Expr: p.parseExpressionWithPrecedence(precNot)}
	case token.MINUS:
		p.nextToken()
		return &UnaryExpr{Op: "-", Expr: p.parseExpressionWithPrecedence(precUnary)}
	case token.PLUS:
		p.nextToken()
		return p.parseExpressionWithPrecedence(precUnary)
	default:
		return p.parsePrimary()
	}
}

// infixPrecedence returns the precedence of the current token as an infix operator.
func (p *Parser) infixPrecedence() int {
	switch p.token.Type {
	case token.ARROW:
		return precLambda
	case token.QUESTION:
		return precTernary
	case token.OR:
		return precOr
	case token.AND:
		return precAnd
	case token.EQ, token.NE, token.LT, token.GT, token.LE, token.GE,
		token.IS, token.IN, token.BETWEEN, token.LIKE, token.ILIKE:
		return precComparison
	case token.NOT:
		// NOT IN, NOT LIKE, NOT ILIKE, NOT BETWEEN
		switch p.peek.Type {
		case token.IN, token.LIKE, token.ILIKE, token.BETWEEN:
			return precComparison
		}
		return precNone
	case token.GLOBAL:
		// GLOBAL [NOT] IN
		if p.checkPeek(token.IN) || (p.checkPeek(token.NOT) && p.peek2.Type == token.IN) {
			return precComparison
		}
		return precNone
	case token.PLUS, token.MINUS, token.DPIPE:
		return precAdditive
	case token.STAR, token.SLASH, token.PERCENT:
		return precMultiplicative
	case token.DCOLON, token.LBRACKET, token.DOT:
		return precPostfix
	default:
		return precNone
	}
}

// parseInfixExpr parses an infix expression given the left operand and current precedence.
func (p *Parser) parseInfixExpr(left Expr, prec int) Expr {
	switch p.token.Type {
	case token.ARROW:
		return p.parseLambda(left)
	case token.QUESTION:
		return p.parseTernary(left)
	case token.NOT:
		p.nextToken()
		return p.parseNegatableInfix(left, true, false)
	case token.GLOBAL:
		p.nextToken()
		not := p.match(token.NOT)
		p.nextToken() // IN
		return p.parseInExpr(left, not, true)
	case token.IN, token.LIKE, token.ILIKE, token.BETWEEN:
		return p.parseNegatableInfix(left, false, false)
	case token.IS:
		return p.parseIsExpr(left)
	case token.DCOLON:
		p.nextToken()
		return &CastExpr{Expr: left, Type: p.parseTypeName()}
	case token.LBRACKET:
		p.nextToken()
		index := p.parseExpression()
		p.expect(token.RBRACKET)
		return &IndexExpr{Expr: left, Index: index}
	case token.DOT:
		return p.parseMemberAccess(left)
	}

	// Standard binary operators (left-associative)
	op := p.token.Literal
	if p.token.Type == token.EQ {
		op = "="
	} else if p.token.Type == token.NE {
		op = "!="
	}
	p.nextToken()
	right := p.parseExpressionWithPrecedence(prec + 1)
	if right == nil && !p.failed() {
		p.addError(fmt.Sprintf(ErrExpectedExpression, p.describe(p.token)))
	}
	return &BinaryExpr{Op: op, Left: left, Right: right}
}

// parseNegatableInfix parses IN, LIKE, ILIKE and BETWEEN after an optional NOT.
func (p *Parser) parseNegatableInfix(left Expr, not, global bool) Expr {
	switch p.token.Type {
	case token.IN:
		p.nextToken()
		return p.parseInExpr(left, not, global)
	case token.LIKE, token.ILIKE:
		ilike := p.check(token.ILIKE)
		p.nextToken()
		return &LikeExpr{Expr: left, Pattern: p.parseExpressionWithPrecedence(precComparison + 1), Not: not, ILike: ilike}
	case token.BETWEEN:
		p.nextToken()
		low := p.parseExpressionWithPrecedence(precComparison + 1)
		p.expect(token.AND)
		high := p.parseExpressionWithPrecedence(precComparison + 1)
		return &BetweenExpr{Expr: left, Low: low, High: high, Not: not}
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.token), "IN, LIKE or BETWEEN"))
		return nil
	}
}

// parseInExpr parses the right side of [GLOBAL] [NOT] IN.
//
//	in_rhs → '(' query ')' | '(' expr_list ')' | table_name | expr
func (p *Parser) parseInExpr(left Expr, not, global bool) Expr {
	in := &InExpr{Expr: left, Not: not, Global: global}

	switch {
	case p.check(token.LPAREN) && (p.checkPeek(token.SELECT) || p.checkPeek(token.WITH)):
		p.nextToken()
		in.Query = p.parseQuery()
		p.expect(token.RPAREN)
	case p.check(token.LPAREN):
		p.nextToken()
		if !p.check(token.RPAREN) {
			in.List = p.parseExpressionList()
		}
		p.expect(token.RPAREN)
	case isNameToken(p.token) && !p.isCallStart():
		// A bare name on the right of IN denotes a table (or a WITH alias).
		start := p.token
		parts := []string{p.token.Literal}
		p.nextToken()
		if p.check(token.DOT) && isWordToken(p.peek) {
			p.nextToken()
			parts = append(parts, p.parseName())
		}
		in.Table = &TableName{Pos: start.Pos, Name: p.qualifiedFromParts(start, parts)}
	default:
		in.Value = p.parseExpressionWithPrecedence(precComparison + 1)
	}
	return in
}

// isCallStart reports whether the current name token begins a function call
// or a tuple/array access rather than a bare name.
func (p *Parser) isCallStart() bool {
	if p.checkPeek(token.LPAREN) || p.checkPeek(token.LBRACKET) {
		return true
	}
	// db.func(...) is not valid ClickHouse, but db.t.col style chains are
	// also not table names.
	return p.checkPeek(token.DOT) && p.peek2.Type != token.IDENT && p.peek2.Type != token.QUOTED_IDENT &&
		!token.IsKeyword(p.peek2.Type)
}

// parseIsExpr parses IS [NOT] NULL.
func (p *Parser) parseIsExpr(left Expr) Expr {
	p.nextToken() // IS
	not := p.match(token.NOT)
	if !p.expect(token.NULL) {
		return nil
	}
	return &IsNullExpr{Expr: left, Not: not}
}

// parseTernary parses cond ? then : else (right-associative).
func (p *Parser) parseTernary(cond Expr) Expr {
	p.nextToken() // ?
	then := p.parseExpressionWithPrecedence(precTernary)
	if !p.expect(token.COLON) {
		return nil
	}
	return &TernaryExpr{Cond: cond, Then: then, Else: p.parseExpressionWithPrecedence(precTernary)}
}

// parseLambda turns a parsed parameter list into a lambda: x -> e or (x, y) -> e.
func (p *Parser) parseLambda(params Expr) Expr {
	var names []string
	switch v := params.(type) {
	case *Identifier:
		if len(v.Parts) == 1 {
			names = []string{v.Parts[0]}
		}
	case *TupleLit:
		for _, e := range v.Elems {
			id, ok := e.(*Identifier)
			if !ok || len(id.Parts) != 1 {
				names = nil
				break
			}
			names = append(names, id.Parts[0])
		}
	}
	if len(names) == 0 {
		p.addError("invalid lambda parameters")
		return nil
	}

	p.nextToken() // ->
	return &Lambda{Params: names, Body: p.parseExpressionWithPrecedence(precTernary)}
}

// parseMemberAccess parses expr.name or expr.N on a non-identifier operand.
func (p *Parser) parseMemberAccess(left Expr) Expr {
	p.nextToken() // .
	switch {
	case p.check(token.NUMBER):
		member := p.token.Literal
		p.nextToken()
		return &MemberExpr{Expr: left, Member: member}
	case p.check(token.STAR):
		p.nextToken()
		if id, ok := left.(*Identifier); ok {
			return p.parseStarModifiers(&StarExpr{Qualifier: id.Parts})
		}
		p.addError(fmt.Sprintf(ErrUnexpectedToken, "*", "name"))
		return nil
	case isWordToken(p.token):
		member := p.token.Literal
		p.nextToken()
		if id, ok := left.(*Identifier); ok {
			return &Identifier{Pos: id.Pos, Parts: append(id.Parts, member)}
		}
		return &MemberExpr{Expr: left, Member: member}
	default:
		p.addError(fmt.Sprintf(ErrExpectedIdentifier, p.describe(p.token)))
		return nil
	}
}

// parseExpressionList parses a comma-separated list of expressions.
func (p *Parser) parseExpressionList() []Expr {
	var exprs []Expr
	for !p.failed() {
		expr := p.parseExpression()
		if expr == nil {
			if !p.failed() {
				p.addError(fmt.Sprintf(ErrExpectedExpression, p.describe(p.token)))
			}
			break
		}
		exprs = append(exprs, expr)
		if !p.match(token.COMMA) {
			break
		}
	}
	return exprs
}

// parseAliasedExpression parses expr [AS alias], used where ClickHouse
// allows inline aliases (function arguments, tuples, WITH lists).
func (p *Parser) parseAliasedExpression() Expr {
	expr := p.parseExpression()
	if expr != nil && p.check(token.AS) && isWordToken(p.peek) {
		p.nextToken()
		return &AliasExpr{Expr: expr, Alias: p.parseName()}
	}
	return expr
}

// parseTypeName parses a data type such as UInt64, Nullable(String) or
// Tuple(a String, b Array(UInt8)) and returns its source text.
func (p *Parser) parseTypeName() string {
	if !isWordToken(p.token) {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.token), "type name"))
		return ""
	}
	var b strings.Builder
	b.WriteString(p.token.Literal)
	p.nextToken()

	// Multi-word types: DOUBLE PRECISION, CHARACTER VARYING, ...
	for isAliasToken(p.token) && p.token.Type == token.IDENT && isTypeContinuation(p.token.Literal) {
		b.WriteByte(' ')
		b.WriteString(p.token.Literal)
		p.nextToken()
	}

	if !p.check(token.LPAREN) {
		return b.String()
	}
	depth := 0
	for !p.failed() {
		switch p.token.Type {
		case token.LPAREN:
			depth++
		case token.RPAREN:
			depth--
		case token.EOF:
			p.addError(ErrUnbalancedParens)
			return b.String()
		}
		if p.token.Type == token.STRING {
			b.WriteString("'" + p.token.Literal + "'")
		} else {
			b.WriteString(p.token.Literal)
		}
		p.nextToken()
		if depth == 0 {
			break
		}
	}
	return b.String()
}

func isTypeContinuation(word string) bool {
	switch strings.ToUpper(word) {
	case "PRECISION", "VARYING", "UNSIGNED", "SIGNED":
		return true
	}
	return false
}

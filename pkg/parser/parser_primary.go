package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/chviewgraph/pkg/token"
)

// Primary expression grammar:
//
//	primary → literal | '[' expr_list ']' | '(' query ')' | '(' expr_list ')'
//	        | '{' name ':' type '}' | '*' | CASE ... END | CAST(...)
//	        | INTERVAL expr unit | EXISTS '(' query ')'
//	        | name '(' args ')' ['(' args ')'] [OVER window] | name

// parsePrimary parses a primary expression.
func (p *Parser) parsePrimary() Expr {
	tok := p.token
	switch tok.Type {
	case token.NUMBER:
		p.nextToken()
		return &Literal{Kind: LiteralNumber, Value: tok.Literal}
	case token.STRING:
		p.nextToken()
		return &Literal{Kind: LiteralString, Value: tok.Literal}
	case token.NULL:
		p.nextToken()
		return &Literal{Kind: LiteralNull, Value: "NULL"}
	case token.TRUE, token.FALSE:
		p.nextToken()
		return &Literal{Kind: LiteralBool, Value: strings.ToLower(tok.Literal)}
	case token.LBRACKET:
		return p.parseArrayLiteral()
	case token.LPAREN:
		return p.parseParenExpr()
	case token.LBRACE:
		return p.parseParam()
	case token.STAR:
		p.nextToken()
		return p.parseStarModifiers(&StarExpr{})
	case token.CASE:
		return p.parseCase()
	case token.CAST:
		if p.checkPeek(token.LPAREN) {
			return p.parseCast()
		}
	case token.INTERVAL:
		return p.parseInterval()
	case token.EXISTS:
		if p.checkPeek(token.LPAREN) {
			p.nextToken()
			p.nextToken()
			q := p.parseQuery()
			p.expect(token.RPAREN)
			return &ExistsExpr{Query: q}
		}
	}

	if isNameToken(tok) {
		if p.checkPeek(token.LPAREN) {
			return p.parseFunctionCall()
		}
		if tok.Type == token.IDENT && p.peek.Type == token.STRING && isTypedLiteralPrefix(tok.Literal) {
			p.nextToken()
			value := p.token.Literal
			p.nextToken()
			return &CastExpr{Expr: &Literal{Kind: LiteralString, Value: value}, Type: typedLiteralType(tok.Literal)}
		}
		p.nextToken()
		return &Identifier{Pos: tok.Pos, Parts: []string{tok.Literal}}
	}

	if !p.failed() {
		p.addError(fmt.Sprintf(ErrExpectedExpression, p.describe(tok)))
	}
	return nil
}

// parseArrayLiteral parses [a, b, ...].
func (p *Parser) parseArrayLiteral() Expr {
	p.nextToken() // [
	arr := &ArrayLit{}
	if !p.check(token.RBRACKET) {
		arr.Elems = p.parseExpressionList()
	}
	p.expect(token.RBRACKET)
	return arr
}

// parseParenExpr parses a scalar subquery, a parenthesized expression or a tuple.
func (p *Parser) parseParenExpr() Expr {
	if p.checkPeek(token.SELECT) || p.checkPeek(token.WITH) {
		p.nextToken()
		q := p.parseQuery()
		p.expect(token.RPAREN)
		return &SubqueryExpr{Query: q}
	}

	p.nextToken() // (
	if p.match(token.RPAREN) {
		return &TupleLit{}
	}

	first := p.parseAliasedExpression()
	if !p.check(token.COMMA) {
		p.expect(token.RPAREN)
		return first
	}

	tuple := &TupleLit{Elems: []Expr{first}}
	for p.match(token.COMMA) && !p.failed() {
		if p.check(token.RPAREN) {
			break // trailing comma: (x,)
		}
		tuple.Elems = append(tuple.Elems, p.parseAliasedExpression())
	}
	p.expect(token.RPAREN)
	return tuple
}

// parseParam parses a query parameter {name:Type}.
func (p *Parser) parseParam() Expr {
	p.nextToken() // {
	name := p.parseName()
	if !p.expect(token.COLON) {
		return nil
	}
	typ := p.parseTypeName()
	p.expect(token.RBRACE)
	return &ParamExpr{Name: name, Type: typ}
}

// parseStarModifiers parses the column transformers that may follow * or COLUMNS(...):
//
//	EXCEPT [STRICT] (cols) | EXCEPT col | REPLACE (expr AS col, ...) | APPLY (func)
func (p *Parser) parseStarModifiers(star *StarExpr) *StarExpr {
	for !p.failed() {
		switch {
		case p.check(token.EXCEPT):
			// A set operation EXCEPT SELECT belongs to the enclosing query.
			if p.checkPeek(token.SELECT) || (p.checkPeek(token.LPAREN) && (p.peek2.Type == token.SELECT || p.peek2.Type == token.WITH)) {
				return star
			}
			p.nextToken()
			p.matchWord("STRICT")
			if p.match(token.LPAREN) {
				star.Except = append(star.Except, p.parseExpressionList()...)
				p.expect(token.RPAREN)
			} else {
				star.Except = append(star.Except, p.parsePrimary())
			}
		case p.checkWord("REPLACE") && p.checkPeek(token.LPAREN):
			p.nextToken()
			p.nextToken()
			for !p.failed() {
				expr := p.parseExpression()
				if !p.expect(token.AS) {
					break
				}
				star.Replace = append(star.Replace, &SelectItem{Expr: expr, Alias: p.parseName()})
				if !p.match(token.COMMA) {
					break
				}
			}
			p.expect(token.RPAREN)
		case p.checkWord("APPLY") && p.checkPeek(token.LPAREN):
			p.nextToken()
			p.nextToken()
			star.Apply = append(star.Apply, p.parseExpression())
			p.expect(token.RPAREN)
		default:
			return star
		}
	}
	return star
}

// parseCase parses CASE [operand] WHEN cond THEN result ... [ELSE result] END.
func (p *Parser) parseCase() Expr {
	p.nextToken() // CASE
	c := &CaseExpr{}
	if !p.check(token.WHEN) {
		c.Operand = p.parseExpression()
	}
	for p.match(token.WHEN) && !p.failed() {
		cond := p.parseExpression()
		if !p.expect(token.THEN) {
			return nil
		}
		c.Whens = append(c.Whens, &WhenClause{Cond: cond, Result: p.parseExpression()})
	}
	if len(c.Whens) == 0 && !p.failed() {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.token), "WHEN"))
		return nil
	}
	if p.match(token.ELSE) {
		c.Else = p.parseExpression()
	}
	p.expect(token.END)
	return c
}

// parseCast parses CAST(expr AS type) or CAST(expr, 'type').
func (p *Parser) parseCast() Expr {
	p.nextToken() // CAST
	p.nextToken() // (
	expr := p.parseExpression()
	cast := &CastExpr{Expr: expr}
	switch {
	case p.match(token.AS):
		cast.Type = p.parseTypeName()
	case p.match(token.COMMA):
		if p.check(token.STRING) {
			cast.Type = p.token.Literal
			p.nextToken()
		} else {
			// CAST(x, expr) with a computed type: keep it walkable.
			return p.finishCall(&FuncCall{Name: "CAST", Args: []Expr{expr, p.parseExpression()}})
		}
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.token), "AS"))
		return nil
	}
	p.expect(token.RPAREN)
	return cast
}

// finishCall consumes the closing parenthesis of a call built by hand.
func (p *Parser) finishCall(fc *FuncCall) Expr {
	p.expect(token.RPAREN)
	return fc
}

// parseInterval parses INTERVAL value [unit].
func (p *Parser) parseInterval() Expr {
	p.nextToken() // INTERVAL
	iv := &IntervalExpr{Value: p.parsePrefixExpr()}
	if p.check(token.IDENT) && isIntervalUnit(p.token.Literal) {
		iv.Unit = strings.ToUpper(p.token.Literal)
		p.nextToken()
	}
	return iv
}

// parseFunctionCall parses name(args) [(args)] [RESPECT|IGNORE NULLS]
// [FILTER (WHERE cond)] [OVER window].
func (p *Parser) parseFunctionCall() Expr {
	fc := &FuncCall{Pos: p.token.Pos, Name: p.token.Literal}
	p.nextToken() // name

	args := p.parseFunctionArgs(fc)
	if p.check(token.LPAREN) {
		// Parametric function: the first list holds parameters.
		fc.Params = args
		args = p.parseFunctionArgs(fc)
	}
	fc.Args = args

	if strings.EqualFold(fc.Name, "COLUMNS") {
		return &ColumnsMatcher{Args: fc.Args, Transformers: p.parseStarModifiers(&StarExpr{})}
	}

	if (p.checkWord("RESPECT") || p.checkWord("IGNORE")) && p.peek.IsWord("NULLS") {
		p.nextToken()
		p.nextToken()
	}
	if p.checkWord("FILTER") && p.checkPeek(token.LPAREN) {
		p.nextToken()
		p.nextToken()
		if p.expect(token.WHERE) {
			fc.Args = append(fc.Args, p.parseExpression())
		}
		p.expect(token.RPAREN)
	}
	if p.match(token.OVER) {
		if p.match(token.LPAREN) {
			fc.Over = p.parseWindowSpecBody()
		} else {
			fc.Over = &WindowSpec{Base: p.parseName()}
		}
	}
	return fc
}

// parseFunctionArgs parses '(' [DISTINCT|ALL] args ')'. Arguments may be
// subqueries without extra parentheses, lambdas, or aliased expressions.
// The keyword separators FROM and FOR are accepted for EXTRACT, SUBSTRING
// and TRIM style calls.
func (p *Parser) parseFunctionArgs(fc *FuncCall) []Expr {
	if !p.expect(token.LPAREN) {
		return nil
	}
	if p.match(token.RPAREN) {
		return nil
	}
	switch {
	case p.match(token.DISTINCT):
		fc.Distinct = true
	case p.check(token.ALL) && !p.checkPeek(token.RPAREN) && !p.checkPeek(token.COMMA):
		p.nextToken()
	}

	var args []Expr
	for !p.failed() {
		if strings.EqualFold(fc.Name, "trim") &&
			(p.checkWord("BOTH") || p.checkWord("LEADING") || p.checkWord("TRAILING")) {
			p.nextToken()
		}

		var arg Expr
		if p.check(token.SELECT) || p.check(token.WITH) {
			arg = &SubqueryExpr{Query: p.parseQuery()}
		} else {
			arg = p.parseAliasedExpression()
		}
		if arg == nil {
			if !p.failed() {
				p.addError(fmt.Sprintf(ErrExpectedExpression, p.describe(p.token)))
			}
			return args
		}
		args = append(args, arg)

		if p.match(token.COMMA) || p.match(token.FROM) || p.matchWord("FOR") {
			continue
		}
		break
	}
	p.expect(token.RPAREN)
	return args
}

// parseWindowSpecBody parses the inside of OVER ( ... ) after the '('.
func (p *Parser) parseWindowSpecBody() *WindowSpec {
	spec := &WindowSpec{}
	if isAliasToken(p.token) && !p.checkWord("PARTITION") && !isFrameStart(p.token) {
		spec.Base = p.token.Literal
		p.nextToken()
	}
	if p.checkWord("PARTITION") && p.checkPeek(token.BY) {
		p.nextToken()
		p.nextToken()
		spec.PartitionBy = p.parseExpressionList()
	}
	if p.check(token.ORDER) && p.checkPeek(token.BY) {
		p.nextToken()
		p.nextToken()
		spec.OrderBy = p.parseOrderByList()
	}

	var frame []string
	depth := 0
	for !p.failed() {
		if p.check(token.EOF) {
			p.addError(ErrUnbalancedParens)
			return spec
		}
		if p.check(token.RPAREN) && depth == 0 {
			break
		}
		switch p.token.Type {
		case token.LPAREN:
			depth++
		case token.RPAREN:
			depth--
		}
		frame = append(frame, p.token.Literal)
		p.nextToken()
	}
	spec.Frame = strings.Join(frame, " ")
	p.expect(token.RPAREN)
	return spec
}

func isFrameStart(tok Token) bool {
	return tok.IsWord("ROWS") || tok.IsWord("RANGE") || tok.IsWord("GROUPS")
}

func isTypedLiteralPrefix(word string) bool {
	switch strings.ToUpper(word) {
	case "DATE", "TIMESTAMP", "DATETIME":
		return true
	}
	return false
}

func typedLiteralType(word string) string {
	switch strings.ToUpper(word) {
	case "DATE":
		return "Date"
	default:
		return "DateTime"
	}
}

func isIntervalUnit(word string) bool {
	switch strings.ToUpper(strings.TrimSuffix(strings.ToUpper(word), "S")) {
	case "NANOSECOND", "MICROSECOND", "MILLISECOND", "SECOND", "MINUTE", "HOUR",
		"DAY", "WEEK", "MONTH", "QUARTER", "YEAR":
		return true
	}
	return false
}

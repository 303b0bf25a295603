// Package token defines the token types for ClickHouse SQL parsing.
package token

import (
	"fmt"
	"strings"
)

// TokenType represents the type of a lexical token.
//
//nolint:revive // Accept stutter as token.TokenType is clear and widely used
type TokenType int32

const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Literals
	IDENT        // identifier
	QUOTED_IDENT //nolint:revive // `ident` or "ident"
	NUMBER       // 123, 45.67, 1e10, 0xFF
	STRING       // 'hello'

	// Operators
	PLUS      // +
	MINUS     // -
	STAR      // *
	SLASH     // /
	PERCENT   // %
	DPIPE     // ||
	EQ        // = or ==
	NE        // != or <>
	LT        // <
	GT        // >
	LE        // <=
	GE        // >=
	DOT       // .
	COMMA     // ,
	LPAREN    // (
	RPAREN    // )
	LBRACKET  // [
	RBRACKET  // ]
	LBRACE    // {
	RBRACE    // }
	DCOLON    // ::
	COLON     // :
	QUESTION  // ?
	ARROW     // ->
	SEMICOLON // ;

	// Keywords (alphabetical)
	keywordStart
	ALL
	AND
	ANTI
	ANY
	ARRAY
	AS
	ASC
	ASOF
	BETWEEN
	BY
	CASE
	CAST
	CROSS
	DESC
	DISTINCT
	ELSE
	END
	EXCEPT
	EXISTS
	FALSE
	FINAL
	FORMAT
	FROM
	FULL
	GLOBAL
	GROUP
	HAVING
	ILIKE
	IN
	INNER
	INTERSECT
	INTERVAL
	IS
	JOIN
	LEFT
	LIKE
	LIMIT
	NOT
	NULL
	OFFSET
	ON
	OR
	ORDER
	OUTER
	OVER
	PASTE
	PREWHERE
	QUALIFY
	RIGHT
	SAMPLE
	SELECT
	SEMI
	SETTINGS
	THEN
	TRUE
	UNION
	USING
	WHEN
	WHERE
	WINDOW
	WITH
	keywordEnd
)

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

// tokenNames maps token types to their string representations.
var tokenNames = map[TokenType]string{
	EOF:          "EOF",
	ILLEGAL:      "ILLEGAL",
	IDENT:        "IDENT",
	QUOTED_IDENT: "QUOTED_IDENT",
	NUMBER:       "NUMBER",
	STRING:       "STRING",

	PLUS:      "+",
	MINUS:     "-",
	STAR:      "*",
	SLASH:     "/",
	PERCENT:   "%",
	DPIPE:     "||",
	EQ:        "=",
	NE:        "!=",
	LT:        "<",
	GT:        ">",
	LE:        "<=",
	GE:        ">=",
	DOT:       ".",
	COMMA:     ",",
	LPAREN:    "(",
	RPAREN:    ")",
	LBRACKET:  "[",
	RBRACKET:  "]",
	LBRACE:    "{",
	RBRACE:    "}",
	DCOLON:    "::",
	COLON:     ":",
	QUESTION:  "?",
	ARROW:     "->",
	SEMICOLON: ";",

	ALL:       "ALL",
	AND:       "AND",
	ANTI:      "ANTI",
	ANY:       "ANY",
	ARRAY:     "ARRAY",
	AS:        "AS",
	ASC:       "ASC",
	ASOF:      "ASOF",
	BETWEEN:   "BETWEEN",
	BY:        "BY",
	CASE:      "CASE",
	CAST:      "CAST",
	CROSS:     "CROSS",
	DESC:      "DESC",
	DISTINCT:  "DISTINCT",
	ELSE:      "ELSE",
	END:       "END",
	EXCEPT:    "EXCEPT",
	EXISTS:    "EXISTS",
	FALSE:     "FALSE",
	FINAL:     "FINAL",
	FORMAT:    "FORMAT",
	FROM:      "FROM",
	FULL:      "FULL",
	GLOBAL:    "GLOBAL",
	GROUP:     "GROUP",
	HAVING:    "HAVING",
	ILIKE:     "ILIKE",
	IN:        "IN",
	INNER:     "INNER",
	INTERSECT: "INTERSECT",
	INTERVAL:  "INTERVAL",
	IS:        "IS",
	JOIN:      "JOIN",
	LEFT:      "LEFT",
	LIKE:      "LIKE",
	LIMIT:     "LIMIT",
	NOT:       "NOT",
	NULL:      "NULL",
	OFFSET:    "OFFSET",
	ON:        "ON",
	OR:        "OR",
	ORDER:     "ORDER",
	OUTER:     "OUTER",
	OVER:      "OVER",
	PASTE:     "PASTE",
	PREWHERE:  "PREWHERE",
	QUALIFY:   "QUALIFY",
	RIGHT:     "RIGHT",
	SAMPLE:    "SAMPLE",
	SELECT:    "SELECT",
	SEMI:      "SEMI",
	SETTINGS:  "SETTINGS",
	THEN:      "THEN",
	TRUE:      "TRUE",
	UNION:     "UNION",
	USING:     "USING",
	WHEN:      "WHEN",
	WHERE:     "WHERE",
	WINDOW:    "WINDOW",
	WITH:      "WITH",
}

// keywords maps lowercase keyword strings to their token types.
var keywords = func() map[string]TokenType {
	m := make(map[string]TokenType, keywordEnd-keywordStart)
	for t := keywordStart + 1; t < keywordEnd; t++ {
		m[strings.ToLower(tokenNames[t])] = t
	}
	return m
}()

// LookupIdent returns the token type for the given word.
// Keywords are matched case-insensitively; anything else is IDENT.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[strings.ToLower(ident)]; ok {
		return tok
	}
	return IDENT
}

// IsKeyword returns true if the token type is a keyword.
func IsKeyword(t TokenType) bool {
	return t > keywordStart && t < keywordEnd
}

// IsOperator returns true if the token type is an operator.
func IsOperator(t TokenType) bool {
	return t >= PLUS && t <= SEMICOLON
}

// Token represents a lexical token with position information.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}

// IsWord reports whether the token is a bare word (identifier or keyword)
// whose text equals word, ignoring case.
func (t Token) IsWord(word string) bool {
	return (t.Type == IDENT || IsKeyword(t.Type)) && strings.EqualFold(t.Literal, word)
}

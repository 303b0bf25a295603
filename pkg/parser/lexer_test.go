package parser

import (
	"testing"

	"github.com/leapstack-labs/chviewgraph/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexAll(input string) []Token {
	l := NewLexer(input)
	var toks []Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == token.EOF || tok.Type == token.ILLEGAL {
			return toks
		}
	}
}

func TestLexer_Tokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []TokenType
	}{
		{"operators", "-> == != <> <= >= || ::", []TokenType{token.ARROW, token.EQ, token.NE, token.NE, token.LE, token.GE, token.DPIPE, token.DCOLON, token.EOF}},
		{"keywords are case insensitive", "select From wHeRe", []TokenType{token.SELECT, token.FROM, token.WHERE, token.EOF}},
		{"contextual words are identifiers", "view materialized to", []TokenType{token.IDENT, token.IDENT, token.IDENT, token.EOF}},
		{"quoted identifiers", "`a b` \"c\"", []TokenType{token.QUOTED_IDENT, token.QUOTED_IDENT, token.EOF}},
		{"numbers", "1 1.5 1e3 0x1F", []TokenType{token.NUMBER, token.NUMBER, token.NUMBER, token.NUMBER, token.EOF}},
		{"digit leading identifier", "1abc", []TokenType{token.IDENT, token.EOF}},
		{"comments skipped", "a -- x\n# y\n/* z /* w */ */ b", []TokenType{token.IDENT, token.IDENT, token.EOF}},
		{"unterminated string", "'abc", []TokenType{token.ILLEGAL}},
		{"unterminated identifier", "`abc", []TokenType{token.ILLEGAL}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks := lexAll(tt.input)
			got := make([]TokenType, len(toks))
			for i, tok := range toks {
				got[i] = tok.Type
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLexer_QuotedLiterals(t *testing.T) {
	toks := lexAll("'it\\'s' 'a''b' `we``ird`")
	require.Len(t, toks, 4)
	assert.Equal(t, "it's", toks[0].Literal)
	assert.Equal(t, "a'b", toks[1].Literal)
	assert.Equal(t, "we`ird", toks[2].Literal)
}

func TestLexer_Positions(t *testing.T) {
	toks := lexAll("SELECT a\n  FROM t")
	require.Len(t, toks, 5)

	assert.Equal(t, Position{Line: 1, Column: 1, Offset: 0}, toks[0].Pos)
	assert.Equal(t, Position{Line: 1, Column: 8, Offset: 7}, toks[1].Pos)
	assert.Equal(t, Position{Line: 2, Column: 3, Offset: 11}, toks[2].Pos)
	assert.Equal(t, Position{Line: 2, Column: 8, Offset: 16}, toks[3].Pos)
}

package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupIdent(t *testing.T) {
	tests := []struct {
		input string
		want  TokenType
	}{
		{"select", SELECT},
		{"SELECT", SELECT},
		{"PreWhere", PREWHERE},
		{"array", ARRAY},
		{"settings", SETTINGS},
		{"human", IDENT},
		{"materialized", IDENT},
		{"view", IDENT},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, LookupIdent(tt.input))
		})
	}
}

func TestKeywordRange(t *testing.T) {
	assert.True(t, IsKeyword(ALL))
	assert.True(t, IsKeyword(WITH))
	assert.False(t, IsKeyword(IDENT))
	assert.False(t, IsKeyword(keywordStart))
	assert.False(t, IsKeyword(keywordEnd))
	assert.True(t, IsOperator(ARROW))
	assert.False(t, IsOperator(SELECT))
}

func TestTokenTypeString(t *testing.T) {
	assert.Equal(t, "SELECT", SELECT.String())
	assert.Equal(t, "->", ARROW.String())
	assert.Equal(t, "TOKEN(-1)", TokenType(-1).String())
}

func TestTokenIsWord(t *testing.T) {
	assert.True(t, Token{Type: IDENT, Literal: "View"}.IsWord("VIEW"))
	assert.True(t, Token{Type: SELECT, Literal: "select"}.IsWord("SELECT"))
	assert.False(t, Token{Type: QUOTED_IDENT, Literal: "view"}.IsWord("view"))
	assert.False(t, Token{Type: STRING, Literal: "view"}.IsWord("view"))
}

func TestPosition(t *testing.T) {
	assert.False(t, Position{}.IsValid())

	pos := Position{Line: 3, Column: 14, Offset: 40}
	assert.True(t, pos.IsValid())
	assert.Equal(t, "line 3, column 14", pos.String())
}

package parser

import "fmt"

// ParseError represents a parsing error with position information.
type ParseError struct {
	Pos     Position
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %s: %s", e.Pos, e.Message)
}

// Offset returns the 0-based byte offset of the error.
func (e *ParseError) Offset() int {
	return e.Pos.Offset
}

// Common error messages
const (
	ErrUnexpectedToken     = "unexpected token %s, expected %s"
	ErrUnexpectedTrailing  = "unexpected %s after end of statement"
	ErrUnterminatedString  = "unterminated string literal"
	ErrUnterminatedIdent   = "unterminated quoted identifier"
	ErrUnterminatedComment = "unterminated block comment"
	ErrExpectedQuery       = "expected SELECT or WITH, got %s"
	ErrExpectedAsQuery     = "expected AS SELECT in view definition"
	ErrExpectedExpression  = "expected expression, got %s"
	ErrExpectedIdentifier  = "expected identifier, got %s"
	ErrTooManyNameParts    = "table name %q has too many parts"
	ErrUnbalancedParens    = "unbalanced parentheses"
	ErrUnsupportedStmt     = "unsupported statement %s, expected CREATE VIEW or SELECT"
)

package token

import "fmt"

// Position is a location in view SQL text.
type Position struct {
	Line   int // 1-based line number
	Column int // 1-based column number, counted in bytes
	Offset int // 0-based byte offset
}

// IsValid reports whether the position points into the text (line > 0).
func (p Position) IsValid() bool {
	return p.Line > 0
}

// String formats the position as "line L, column C", the form used in
// parse error messages.
func (p Position) String() string {
	return fmt.Sprintf("line %d, column %d", p.Line, p.Column)
}

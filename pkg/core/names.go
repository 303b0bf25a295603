package core

import (
	"fmt"
	"strings"
)

// QualifiedName identifies a table or view as schema.name.
// ClickHouse database and table identifiers are case-sensitive, so names
// are compared exactly after quoting has been removed.
type QualifiedName struct {
	Schema string
	Name   string
}

// NewQualifiedName builds a QualifiedName from raw, possibly quoted, parts.
func NewQualifiedName(schema, name string) QualifiedName {
	return QualifiedName{Schema: UnquoteIdent(schema), Name: UnquoteIdent(name)}
}

// String returns the schema.name form, or just the name if no schema is set.
func (q QualifiedName) String() string {
	if q.Schema == "" {
		return q.Name
	}
	return q.Schema + "." + q.Name
}

// HasDottedPart reports whether the schema or name itself contains a dot.
// Such a name needs quoting to round-trip, and its String form can equal
// the String form of a different entity.
func (q QualifiedName) HasDottedPart() bool {
	return strings.Contains(q.Schema, ".") || strings.Contains(q.Name, ".")
}

// IsZero reports whether the name is empty.
func (q QualifiedName) IsZero() bool {
	return q.Name == ""
}

// WithDefaultSchema fills in schema when the name is unqualified.
func (q QualifiedName) WithDefaultSchema(schema string) QualifiedName {
	if q.Schema == "" {
		q.Schema = schema
	}
	return q
}

// Less orders names by schema, then name.
func (q QualifiedName) Less(other QualifiedName) bool {
	if q.Schema != other.Schema {
		return q.Schema < other.Schema
	}
	return q.Name < other.Name
}

// Compare returns -1, 0 or +1 ordering q against other. For use with slices.SortFunc.
func (q QualifiedName) Compare(other QualifiedName) int {
	switch {
	case q == other:
		return 0
	case q.Less(other):
		return -1
	default:
		return 1
	}
}

// ParseQualifiedName parses "schema.name" text such as `db`.`tbl`, "db"."tbl"
// or [db].[tbl]. The first unquoted dot separates schema from name.
func ParseQualifiedName(s string) (QualifiedName, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return QualifiedName{}, fmt.Errorf("empty qualified name")
	}

	parts, err := splitQuoted(s)
	if err != nil {
		return QualifiedName{}, fmt.Errorf("invalid qualified name %q: %w", s, err)
	}

	switch len(parts) {
	case 1:
		return QualifiedName{Name: UnquoteIdent(parts[0])}, nil
	case 2:
		return NewQualifiedName(parts[0], parts[1]), nil
	default:
		return QualifiedName{}, fmt.Errorf("invalid qualified name %q: expected at most 2 parts, got %d", s, len(parts))
	}
}

// MustParseQualifiedName is like ParseQualifiedName but panics on error.
// Intended for tests and constants.
func MustParseQualifiedName(s string) QualifiedName {
	q, err := ParseQualifiedName(s)
	if err != nil {
		panic(err)
	}
	return q
}

// splitQuoted splits s on dots that are outside quotes.
func splitQuoted(s string) ([]string, error) {
	var parts []string
	var closer byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if closer != 0 {
			switch {
			case c == '\\' && closer != ']':
				i++
			case c == closer:
				closer = 0
			}
			continue
		}
		switch c {
		case '`', '"':
			closer = c
		case '[':
			closer = ']'
		case '.':
			if i == start {
				return nil, fmt.Errorf("empty part at offset %d", i)
			}
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	if closer != 0 {
		return nil, fmt.Errorf("unterminated quote")
	}
	if start >= len(s) {
		return nil, fmt.Errorf("empty trailing part")
	}
	return append(parts, s[start:]), nil
}

// UnquoteIdent strips identifier quoting. Backtick and double-quoted forms
// honour backslash escapes and doubled quote characters.
func UnquoteIdent(s string) string {
	if len(s) < 2 {
		return s
	}
	first, last := s[0], s[len(s)-1]
	switch {
	case first == '[' && last == ']':
		return s[1 : len(s)-1]
	case (first == '`' || first == '"') && last == first:
	default:
		return s
	}

	body := s[1 : len(s)-1]
	if !strings.ContainsAny(body, "\\"+string(first)) {
		return body
	}

	var b strings.Builder
	b.Grow(len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\\' && i+1 < len(body):
			i++
			b.WriteByte(unescapeByte(body[i]))
		case c == first && i+1 < len(body) && body[i+1] == first:
			i++
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func unescapeByte(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	default:
		return c
	}
}

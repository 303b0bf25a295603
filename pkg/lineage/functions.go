package lineage

import (
	"strings"

	"github.com/leapstack-labs/chviewgraph/pkg/core"
	"github.com/leapstack-labs/chviewgraph/pkg/parser"
)

// relationArgs describes how a table function names the relation it reads.
type relationArgs int

const (
	// argsNone: the function reads no catalog relation (numbers, s3, url, ...).
	argsNone relationArgs = iota
	// argsRemote: (addr, 'db.table' | db.table | db, table, ...).
	argsRemote
	// argsLeading: (db, table) or (table) or ('db.table').
	argsLeading
	// argsPattern: the arguments are a database and a table regexp.
	argsPattern
	// argsQuery: the single argument is a subquery, walked as a child query.
	argsQuery
)

// tableFunctions lists the table functions that reference catalog objects.
// Keys are lower case; lookups are case-insensitive.
var tableFunctions = map[string]relationArgs{
	"remote":             argsRemote,
	"remotesecure":       argsRemote,
	"cluster":            argsRemote,
	"clusterallreplicas": argsRemote,
	"loop":               argsLeading,
	"dictionary":         argsLeading,
	"merge":              argsPattern,
	"view":               argsQuery,
}

// lookupTableFunction returns how the named table function references relations.
func lookupTableFunction(name string) relationArgs {
	return tableFunctions[strings.ToLower(name)]
}

// relationAccessors are expression functions whose first argument names a
// dictionary or a Join-engine table.
var relationAccessors = map[string]bool{
	"dicthas":            true,
	"dictisin":           true,
	"dictgethierarchy":   true,
	"dictgetchildren":    true,
	"dictgetdescendants": true,
	"joinget":            true,
	"joingetornull":      true,
}

// isRelationAccessor reports whether fn reads a relation named by its first argument.
// The whole dictGet* family (dictGet, dictGetOrDefault, dictGetString, ...) qualifies.
func isRelationAccessor(fn string) bool {
	lower := strings.ToLower(fn)
	return strings.HasPrefix(lower, "dictget") || relationAccessors[lower]
}

// nameFromExpr interprets an argument as a relation name. String literals
// are parsed as [db.]name; identifiers may carry one or two parts.
func nameFromExpr(expr parser.Expr) (core.QualifiedName, bool) {
	switch v := expr.(type) {
	case *parser.Literal:
		if v.Kind != parser.LiteralString {
			return core.QualifiedName{}, false
		}
		qn, err := core.ParseQualifiedName(v.Value)
		if err != nil {
			return core.QualifiedName{}, false
		}
		return qn, true
	case *parser.Identifier:
		switch len(v.Parts) {
		case 1:
			return core.QualifiedName{Name: v.Parts[0]}, true
		case 2:
			return core.QualifiedName{Schema: v.Parts[0], Name: v.Parts[1]}, true
		}
	}
	return core.QualifiedName{}, false
}

// namePart interprets an argument as a single unqualified identifier.
func namePart(expr parser.Expr) (string, bool) {
	switch v := expr.(type) {
	case *parser.Literal:
		if v.Kind == parser.LiteralString && v.Value != "" {
			return v.Value, true
		}
	case *parser.Identifier:
		if len(v.Parts) == 1 {
			return v.Parts[0], true
		}
	}
	return "", false
}

// remoteTarget extracts the relation of remote(), cluster() and friends.
// The first argument is the address or cluster name.
func remoteTarget(args []parser.Expr) (core.QualifiedName, bool) {
	if len(args) < 2 {
		return core.QualifiedName{}, false
	}
	qn, ok := nameFromExpr(args[1])
	if ok && qn.Schema != "" {
		return qn, true
	}
	if len(args) >= 3 {
		db, dbOK := namePart(args[1])
		table, tableOK := namePart(args[2])
		if dbOK && tableOK {
			return core.QualifiedName{Schema: db, Name: table}, true
		}
	}
	return qn, ok
}

// leadingTarget extracts the relation of loop() and dictionary().
func leadingTarget(args []parser.Expr) (core.QualifiedName, bool) {
	switch len(args) {
	case 0:
		return core.QualifiedName{}, false
	case 1:
		return nameFromExpr(args[0])
	default:
		db, dbOK := namePart(args[0])
		table, tableOK := namePart(args[1])
		if dbOK && tableOK {
			return core.QualifiedName{Schema: db, Name: table}, true
		}
		return nameFromExpr(args[0])
	}
}

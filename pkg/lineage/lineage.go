// Package lineage extracts the relations a ClickHouse view reads from.
//
// The extractor walks a parsed statement with a lexical scope stack.
// CTE and derived-table names are query-local and never reported; every
// other relation named in FROM, JOIN, IN, a table function or a
// dictionary accessor is returned as a qualified name.
package lineage

import (
	"slices"

	"github.com/leapstack-labs/chviewgraph/pkg/core"
	"github.com/leapstack-labs/chviewgraph/pkg/parser"
)

// Options configures reference extraction.
type Options struct {
	// DefaultSchema qualifies references that omit the database.
	DefaultSchema string
}

// ExtractReferences returns the deduplicated, sorted set of relations
// that stmt reads from. A view referencing itself is included.
func ExtractReferences(stmt parser.Statement, opts Options) []core.QualifiedName {
	e := &referenceExtractor{
		defaultSchema: opts.DefaultSchema,
		refs:          make(map[core.QualifiedName]struct{}),
	}

	root := NewScope()
	switch s := stmt.(type) {
	case *parser.CreateView:
		e.walkQuery(root, s.Query)
	case *parser.Query:
		e.walkQuery(root, s)
	}

	return e.sorted()
}

// ExtractReferencesSQL parses sql and extracts its references.
// The returned error is a *parser.ParseError.
func ExtractReferencesSQL(sql string, opts Options) ([]core.QualifiedName, error) {
	stmt, err := parser.Parse(sql)
	if err != nil {
		return nil, err
	}
	return ExtractReferences(stmt, opts), nil
}

// referenceExtractor walks the AST collecting external relations.
type referenceExtractor struct {
	defaultSchema string
	refs          map[core.QualifiedName]struct{}
}

func (e *referenceExtractor) sorted() []core.QualifiedName {
	out := make([]core.QualifiedName, 0, len(e.refs))
	for ref := range e.refs {
		out = append(out, ref)
	}
	slices.SortFunc(out, core.QualifiedName.Compare)
	return out
}

// add records an external reference, qualifying it with the default schema.
func (e *referenceExtractor) add(name core.QualifiedName) {
	if name.IsZero() {
		return
	}
	e.refs[name.WithDefaultSchema(e.defaultSchema)] = struct{}{}
}

// addRelation records a FROM/JOIN style reference unless an unqualified
// name resolves to a CTE or derived table in scope.
func (e *referenceExtractor) addRelation(scope *Scope, name core.QualifiedName) {
	if name.Schema == "" {
		if _, ok := scope.LookupRelation(name.Name); ok {
			return
		}
	}
	e.add(name)
}

// ---------- Queries ----------

// walkQuery walks a query in a fresh child scope of parent.
func (e *referenceExtractor) walkQuery(parent *Scope, q *parser.Query) {
	if q == nil {
		return
	}
	scope := parent.Child()
	if q.With != nil {
		e.walkWith(scope, q.With)
	}
	e.walkBody(scope, q.Body)
}

// walkWith registers WITH entries in scope. A CTE becomes visible only
// after its own body has been walked, unless the clause is RECURSIVE.
func (e *referenceExtractor) walkWith(scope *Scope, with *parser.WithClause) {
	for _, entry := range with.Entries {
		if entry.IsCTE() {
			if with.Recursive {
				scope.Register(entry.Name, ScopeCTE)
			}
			e.walkQuery(scope, entry.Query)
			scope.Register(entry.Name, ScopeCTE)
			continue
		}
		e.walkExpr(scope, entry.Expr)
		scope.Register(entry.Name, ScopeScalar)
	}
}

func (e *referenceExtractor) walkBody(scope *Scope, body parser.QueryBody) {
	switch b := body.(type) {
	case *parser.SelectStmt:
		e.walkSelect(scope, b)
	case *parser.SetOperation:
		e.walkBody(scope, b.Left)
		e.walkBody(scope, b.Right)
	case *parser.ParenQuery:
		e.walkQuery(scope, b.Query)
	}
}

// walkSelect walks one SELECT block. Derived-table aliases it introduces
// stay local to the block.
func (e *referenceExtractor) walkSelect(parent *Scope, sel *parser.SelectStmt) {
	scope := parent.Child()
	if sel.With != nil {
		e.walkWith(scope, sel.With)
	}

	if sel.From != nil {
		e.walkTable(scope, sel.From)
	}

	e.walkExprs(scope, sel.DistinctOn)
	e.walkExpr(scope, sel.Top)
	for _, item := range sel.Columns {
		e.walkExpr(scope, item.Expr)
	}
	e.walkExpr(scope, sel.Prewhere)
	e.walkExpr(scope, sel.Where)
	e.walkExprs(scope, sel.GroupBy)
	e.walkExpr(scope, sel.Having)
	for _, w := range sel.Windows {
		e.walkWindow(scope, w.Spec)
	}
	e.walkExpr(scope, sel.Qualify)
	e.walkOrderBy(scope, sel.OrderBy)
	if sel.LimitBy != nil {
		e.walkExpr(scope, sel.LimitBy.Limit)
		e.walkExpr(scope, sel.LimitBy.Offset)
		e.walkExprs(scope, sel.LimitBy.By)
	}
	e.walkExpr(scope, sel.Limit)
	e.walkExpr(scope, sel.Offset)
	for _, s := range sel.Settings {
		e.walkExpr(scope, s.Value)
	}
}

// ---------- Tables ----------

func (e *referenceExtractor) walkTable(scope *Scope, te parser.TableExpr) {
	switch t := te.(type) {
	case *parser.TableName:
		e.addRelation(scope, t.Name)
		e.walkExpr(scope, t.Sample)
	case *parser.DerivedTable:
		e.walkQuery(scope, t.Query)
		if t.Alias != "" {
			scope.Register(t.Alias, ScopeDerived)
		}
	case *parser.TableFunction:
		e.walkTableFunction(scope, t)
	case *parser.ParenTable:
		e.walkTable(scope, t.Table)
	case *parser.JoinExpr:
		e.walkTable(scope, t.Left)
		e.walkTable(scope, t.Right)
		e.walkExpr(scope, t.On)
		e.walkExprs(scope, t.Using)
	case *parser.ArrayJoin:
		e.walkTable(scope, t.Left)
		for _, item := range t.Items {
			e.walkExpr(scope, item.Expr)
		}
	}
}

// walkTableFunction records the relation a table function reads, then
// walks its arguments for nested subqueries.
func (e *referenceExtractor) walkTableFunction(scope *Scope, fn *parser.TableFunction) {
	switch lookupTableFunction(fn.Name) {
	case argsRemote:
		if name, ok := remoteTarget(fn.Args); ok {
			e.add(name)
		}
	case argsLeading:
		if name, ok := leadingTarget(fn.Args); ok {
			e.add(name)
		}
	case argsPattern:
		// merge(db, regexp) names a set of tables by pattern.
		return
	}
	e.walkExprs(scope, fn.Args)
}

// ---------- Expressions ----------

func (e *referenceExtractor) walkExprs(scope *Scope, exprs []parser.Expr) {
	for _, expr := range exprs {
		e.walkExpr(scope, expr)
	}
}

func (e *referenceExtractor) walkOrderBy(scope *Scope, items []*parser.OrderByItem) {
	for _, item := range items {
		e.walkExpr(scope, item.Expr)
		e.walkExprs(scope, item.Fill)
	}
}

func (e *referenceExtractor) walkWindow(scope *Scope, spec *parser.WindowSpec) {
	if spec == nil {
		return
	}
	e.walkExprs(scope, spec.PartitionBy)
	e.walkOrderBy(scope, spec.OrderBy)
}

// walkExpr visits every sub-expression, descending into subqueries and
// recording relations named by IN and by dictionary or join accessors.
func (e *referenceExtractor) walkExpr(scope *Scope, expr parser.Expr) {
	switch x := expr.(type) {
	case nil:
	case *parser.Literal, *parser.Identifier, *parser.ParamExpr:
	case *parser.StarExpr:
		e.walkStar(scope, x)
	case *parser.ColumnsMatcher:
		e.walkExprs(scope, x.Args)
		e.walkStar(scope, x.Transformers)
	case *parser.AliasExpr:
		e.walkExpr(scope, x.Expr)
	case *parser.UnaryExpr:
		e.walkExpr(scope, x.Expr)
	case *parser.BinaryExpr:
		e.walkExpr(scope, x.Left)
		e.walkExpr(scope, x.Right)
	case *parser.TernaryExpr:
		e.walkExpr(scope, x.Cond)
		e.walkExpr(scope, x.Then)
		e.walkExpr(scope, x.Else)
	case *parser.FuncCall:
		if isRelationAccessor(x.Name) && len(x.Args) > 0 {
			if name, ok := nameFromExpr(x.Args[0]); ok {
				e.add(name)
			}
		}
		e.walkExprs(scope, x.Params)
		e.walkExprs(scope, x.Args)
		e.walkWindow(scope, x.Over)
	case *parser.Lambda:
		e.walkExpr(scope, x.Body)
	case *parser.ArrayLit:
		e.walkExprs(scope, x.Elems)
	case *parser.TupleLit:
		e.walkExprs(scope, x.Elems)
	case *parser.CaseExpr:
		e.walkExpr(scope, x.Operand)
		for _, w := range x.Whens {
			e.walkExpr(scope, w.Cond)
			e.walkExpr(scope, w.Result)
		}
		e.walkExpr(scope, x.Else)
	case *parser.CastExpr:
		e.walkExpr(scope, x.Expr)
	case *parser.IntervalExpr:
		e.walkExpr(scope, x.Value)
	case *parser.IsNullExpr:
		e.walkExpr(scope, x.Expr)
	case *parser.BetweenExpr:
		e.walkExpr(scope, x.Expr)
		e.walkExpr(scope, x.Low)
		e.walkExpr(scope, x.High)
	case *parser.LikeExpr:
		e.walkExpr(scope, x.Expr)
		e.walkExpr(scope, x.Pattern)
	case *parser.InExpr:
		e.walkExpr(scope, x.Expr)
		e.walkExprs(scope, x.List)
		e.walkQuery(scope, x.Query)
		e.walkExpr(scope, x.Value)
		if x.Table != nil {
			e.walkInTable(scope, x.Table)
		}
	case *parser.ExistsExpr:
		e.walkQuery(scope, x.Query)
	case *parser.SubqueryExpr:
		e.walkQuery(scope, x.Query)
	case *parser.IndexExpr:
		e.walkExpr(scope, x.Expr)
		e.walkExpr(scope, x.Index)
	case *parser.MemberExpr:
		e.walkExpr(scope, x.Expr)
	}
}

// walkInTable handles `x IN name`. An unqualified name may refer to a CTE,
// a derived table or a scalar WITH alias; otherwise it is a table.
func (e *referenceExtractor) walkInTable(scope *Scope, tbl *parser.TableName) {
	if tbl.Name.Schema == "" {
		if _, ok := scope.Lookup(tbl.Name.Name); ok {
			return
		}
	}
	e.add(tbl.Name)
}

func (e *referenceExtractor) walkStar(scope *Scope, star *parser.StarExpr) {
	if star == nil {
		return
	}
	e.walkExprs(scope, star.Except)
	for _, r := range star.Replace {
		e.walkExpr(scope, r.Expr)
	}
	e.walkExprs(scope, star.Apply)
}

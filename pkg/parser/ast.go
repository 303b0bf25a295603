package parser

import (
	"strings"

	"github.com/leapstack-labs/chviewgraph/pkg/core"
)

// The AST is a closed set of node types. Each category (statement, query
// body, table expression, expression) is a sealed interface with an
// unexported marker method; consumers dispatch with a type switch.

// Node is implemented by all AST nodes.
type Node interface {
	node()
}

// Statement is a top-level parse result: *CreateView or *Query.
type Statement interface {
	Node
	statementNode()
}

// QueryBody is one operand of a query: *SelectStmt, *SetOperation or *ParenQuery.
type QueryBody interface {
	Node
	queryBody()
}

// TableExpr is a FROM clause item.
type TableExpr interface {
	Node
	tableExpr()
}

// Expr is any scalar expression.
type Expr interface {
	Node
	exprNode()
}

// ---------- Statements ----------

// CreateView is CREATE [MATERIALIZED|LIVE|WINDOW] VIEW ... AS <query>.
type CreateView struct {
	Pos         Position
	Kind        ViewKind
	OrReplace   bool
	IfNotExists bool
	Name        core.QualifiedName
	To          *core.QualifiedName // materialized view target table
	Query       *Query
	Comment     string
}

// ViewKind distinguishes the ClickHouse view flavours.
type ViewKind string

// View kinds.
const (
	ViewPlain        ViewKind = "VIEW"
	ViewMaterialized ViewKind = "MATERIALIZED VIEW"
	ViewLive         ViewKind = "LIVE VIEW"
	ViewWindow       ViewKind = "WINDOW VIEW"
)

// Query is [WITH ...] body, where body may be a chain of set operations.
type Query struct {
	Pos  Position
	With *WithClause
	Body QueryBody
}

// WithClause is a WITH list.
type WithClause struct {
	Recursive bool
	Entries   []*WithEntry
}

// WithEntry is either a CTE (name AS (query)) or a scalar alias (expr AS name).
type WithEntry struct {
	Name  string
	Query *Query // set for CTEs
	Expr  Expr   // set for scalar aliases
}

// IsCTE reports whether the entry defines a named subquery.
func (w *WithEntry) IsCTE() bool {
	return w.Query != nil
}

// SetOperation is left UNION|EXCEPT|INTERSECT [ALL|DISTINCT] right.
type SetOperation struct {
	Op       string
	Modifier string
	Left     QueryBody
	Right    QueryBody
}

// ParenQuery is a parenthesized query used as a set operation operand.
type ParenQuery struct {
	Query *Query
}

// SelectStmt is a single SELECT block.
type SelectStmt struct {
	Pos        Position
	With       *WithClause // WITH attached to a non-leading union member
	Distinct   bool
	DistinctOn []Expr
	Top        Expr
	Columns    []*SelectItem
	From       TableExpr
	Prewhere   Expr
	Where      Expr
	GroupBy    []Expr
	GroupByAll bool
	Modifiers  []string // ROLLUP, CUBE, TOTALS
	Having     Expr
	Windows    []*WindowDef
	Qualify    Expr
	OrderBy    []*OrderByItem
	LimitBy    *LimitBy
	Limit      Expr
	Offset     Expr
	Settings   []*Setting
	Format     string
}

// SelectItem is one projection, optionally aliased.
type SelectItem struct {
	Expr  Expr
	Alias string
}

// OrderByItem is an ORDER BY entry.
type OrderByItem struct {
	Expr Expr
	Desc bool
	Fill []Expr // WITH FILL FROM/TO/STEP values
}

// LimitBy is LIMIT n [OFFSET m] BY exprs.
type LimitBy struct {
	Limit  Expr
	Offset Expr
	By     []Expr
}

// WindowDef is a named window from the WINDOW clause.
type WindowDef struct {
	Name string
	Spec *WindowSpec
}

// WindowSpec is the body of OVER (...).
type WindowSpec struct {
	Base        string
	PartitionBy []Expr
	OrderBy     []*OrderByItem
	Frame       string
}

// Setting is a name = value pair from SETTINGS.
type Setting struct {
	Name  string
	Value Expr
}

// ---------- Table expressions ----------

// TableName is a reference to a table or view, possibly a CTE name.
type TableName struct {
	Pos    Position
	Name   core.QualifiedName
	Alias  string
	Final  bool
	Sample Expr
}

// DerivedTable is (query) [AS] alias.
type DerivedTable struct {
	Pos   Position
	Query *Query
	Alias string
}

// TableFunction is name(args) in FROM, e.g. remote(...) or numbers(10).
type TableFunction struct {
	Pos   Position
	Name  string
	Args  []Expr
	Alias string
}

// ParenTable is a parenthesized join tree.
type ParenTable struct {
	Table TableExpr
	Alias string
}

// JoinExpr joins Right onto Left.
type JoinExpr struct {
	Left  TableExpr
	Right TableExpr
	Kind  string // e.g. "INNER", "GLOBAL ANY LEFT", "CROSS", "," for comma joins
	On    Expr
	Using []Expr
}

// ArrayJoin is [LEFT] ARRAY JOIN applied to the tables on its left.
type ArrayJoin struct {
	Left      TableExpr
	LeftOuter bool
	Items     []*SelectItem
}

// ---------- Expressions ----------

// LiteralKind enumerates literal types.
type LiteralKind int

// Literal kinds.
const (
	LiteralNumber LiteralKind = iota
	LiteralString
	LiteralNull
	LiteralBool
)

// Literal is a constant value.
type Literal struct {
	Kind  LiteralKind
	Value string
}

// Identifier is a possibly dotted name such as col, t.col or db.t.col.
type Identifier struct {
	Pos   Position
	Parts []string
}

// Name returns the dotted form of the identifier.
func (i *Identifier) Name() string {
	return strings.Join(i.Parts, ".")
}

// StarExpr is * or t.* with optional EXCEPT / REPLACE / APPLY modifiers.
type StarExpr struct {
	Qualifier []string
	Except    []Expr
	Replace   []*SelectItem
	Apply     []Expr
}

// ColumnsMatcher is COLUMNS('regexp') or COLUMNS(a, b).
type ColumnsMatcher struct {
	Args         []Expr
	Transformers *StarExpr // APPLY / EXCEPT / REPLACE applied to the match
}

// AliasExpr is expr AS alias appearing inside an expression.
type AliasExpr struct {
	Expr  Expr
	Alias string
}

// UnaryExpr is a prefix operator applied to an operand.
type UnaryExpr struct {
	Op   string
	Expr Expr
}

// BinaryExpr is left op right.
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
}

// TernaryExpr is cond ? then : else.
type TernaryExpr struct {
	Cond Expr
	Then Expr
	Else Expr
}

// FuncCall is name[(params)](args) [OVER ...].
type FuncCall struct {
	Pos      Position
	Name     string
	Params   []Expr // parametric aggregate parameters, e.g. quantile(0.9)
	Args     []Expr
	Distinct bool
	Over     *WindowSpec
}

// Lambda is x -> body or (x, y) -> body.
type Lambda struct {
	Params []string
	Body   Expr
}

// ArrayLit is [a, b, ...].
type ArrayLit struct {
	Elems []Expr
}

// TupleLit is (a, b, ...).
type TupleLit struct {
	Elems []Expr
}

// CaseExpr is CASE [operand] WHEN ... THEN ... [ELSE ...] END.
type CaseExpr struct {
	Operand Expr
	Whens   []*WhenClause
	Else    Expr
}

// WhenClause is one WHEN ... THEN ... branch.
type WhenClause struct {
	Cond   Expr
	Result Expr
}

// CastExpr is CAST(x AS T), CAST(x, 'T') or x::T.
type CastExpr struct {
	Expr Expr
	Type string
}

// IntervalExpr is INTERVAL value unit.
type IntervalExpr struct {
	Value Expr
	Unit  string
}

// IsNullExpr is expr IS [NOT] NULL.
type IsNullExpr struct {
	Expr Expr
	Not  bool
}

// BetweenExpr is expr [NOT] BETWEEN low AND high.
type BetweenExpr struct {
	Expr Expr
	Low  Expr
	High Expr
	Not  bool
}

// LikeExpr is expr [NOT] LIKE|ILIKE pattern.
type LikeExpr struct {
	Expr    Expr
	Pattern Expr
	Not     bool
	ILike   bool
}

// InExpr is expr [GLOBAL] [NOT] IN (list | query | table).
type InExpr struct {
	Expr   Expr
	Not    bool
	Global bool
	List   []Expr
	Query  *Query
	// Table is set when the right side is a bare table name.
	Table *TableName
	// Value is set when the right side is some other expression, e.g. an array.
	Value Expr
}

// ExistsExpr is EXISTS (query).
type ExistsExpr struct {
	Query *Query
}

// SubqueryExpr is a scalar (query).
type SubqueryExpr struct {
	Query *Query
}

// IndexExpr is expr[index].
type IndexExpr struct {
	Expr  Expr
	Index Expr
}

// MemberExpr is a tuple element access such as t.1 or (expr).name.
type MemberExpr struct {
	Expr   Expr
	Member string
}

// ParamExpr is a query parameter {name:Type}.
type ParamExpr struct {
	Name string
	Type string
}

// ---------- Marker methods ----------

func (*CreateView) node()     {}
func (*Query) node()          {}
func (*SelectStmt) node()     {}
func (*SetOperation) node()   {}
func (*ParenQuery) node()     {}
func (*TableName) node()      {}
func (*DerivedTable) node()   {}
func (*TableFunction) node()  {}
func (*ParenTable) node()     {}
func (*JoinExpr) node()       {}
func (*ArrayJoin) node()      {}
func (*Literal) node()        {}
func (*Identifier) node()     {}
func (*StarExpr) node()       {}
func (*ColumnsMatcher) node() {}
func (*AliasExpr) node()      {}
func (*UnaryExpr) node()      {}
func (*BinaryExpr) node()     {}
func (*TernaryExpr) node()    {}
func (*FuncCall) node()       {}
func (*Lambda) node()         {}
func (*ArrayLit) node()       {}
func (*TupleLit) node()       {}
func (*CaseExpr) node()       {}
func (*CastExpr) node()       {}
func (*IntervalExpr) node()   {}
func (*IsNullExpr) node()     {}
func (*BetweenExpr) node()    {}
func (*LikeExpr) node()       {}
func (*InExpr) node()         {}
func (*ExistsExpr) node()     {}
func (*SubqueryExpr) node()   {}
func (*IndexExpr) node()      {}
func (*MemberExpr) node()     {}
func (*ParamExpr) node()      {}

func (*CreateView) statementNode() {}
func (*Query) statementNode()      {}

func (*SelectStmt) queryBody()   {}
func (*SetOperation) queryBody() {}
func (*ParenQuery) queryBody()   {}

func (*TableName) tableExpr()     {}
func (*DerivedTable) tableExpr()  {}
func (*TableFunction) tableExpr() {}
func (*ParenTable) tableExpr()    {}
func (*JoinExpr) tableExpr()      {}
func (*ArrayJoin) tableExpr()     {}

func (*Literal) exprNode()        {}
func (*Identifier) exprNode()     {}
func (*StarExpr) exprNode()       {}
func (*ColumnsMatcher) exprNode() {}
func (*AliasExpr) exprNode()      {}
func (*UnaryExpr) exprNode()      {}
func (*BinaryExpr) exprNode()     {}
func (*TernaryExpr) exprNode()    {}
func (*FuncCall) exprNode()       {}
func (*Lambda) exprNode()         {}
func (*ArrayLit) exprNode()       {}
func (*TupleLit) exprNode()       {}
func (*CaseExpr) exprNode()       {}
func (*CastExpr) exprNode()       {}
func (*IntervalExpr) exprNode()   {}
func (*IsNullExpr) exprNode()     {}
func (*BetweenExpr) exprNode()    {}
func (*LikeExpr) exprNode()       {}
func (*InExpr) exprNode()         {}
func (*ExistsExpr) exprNode()     {}
func (*SubqueryExpr) exprNode()   {}
func (*IndexExpr) exprNode()      {}
func (*MemberExpr) exprNode()     {}
func (*ParamExpr) exprNode()      {}

package lineage

// ScopeType represents the type of a name registered in a scope.
type ScopeType int

const (
	// ScopeCTE represents a Common Table Expression.
	ScopeCTE ScopeType = iota
	// ScopeDerived represents a derived table (subquery in FROM).
	ScopeDerived
	// ScopeScalar represents a scalar WITH alias (expr AS name).
	ScopeScalar
)

// String returns a readable name for the scope type.
func (t ScopeType) String() string {
	switch t {
	case ScopeCTE:
		return "cte"
	case ScopeDerived:
		return "derived"
	case ScopeScalar:
		return "scalar"
	default:
		return "unknown"
	}
}

// ScopeEntry represents a query-local name in scope.
type ScopeEntry struct {
	Type ScopeType
	Name string
}

// IsRelation reports whether the entry can stand in for a table in FROM.
func (e *ScopeEntry) IsRelation() bool {
	return e.Type == ScopeCTE || e.Type == ScopeDerived
}

// Scope tracks the query-local names visible at one nesting level.
// Names are compared exactly: ClickHouse identifiers are case-sensitive.
type Scope struct {
	parent    *Scope
	relations map[string]*ScopeEntry // CTEs and derived tables
	scalars   map[string]*ScopeEntry // scalar WITH aliases
}

// NewScope creates a new root scope.
func NewScope() *Scope {
	return &Scope{
		relations: make(map[string]*ScopeEntry),
		scalars:   make(map[string]*ScopeEntry),
	}
}

// Child creates a child scope for nested queries (subqueries, derived tables).
func (s *Scope) Child() *Scope {
	child := NewScope()
	child.parent = s
	return child
}

// Parent returns the enclosing scope, or nil for the root.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// Register adds a name to this scope, replacing an earlier entry of the
// same name and kind at this level.
func (s *Scope) Register(name string, typ ScopeType) {
	entry := &ScopeEntry{Type: typ, Name: name}
	if typ == ScopeScalar {
		s.scalars[name] = entry
		return
	}
	s.relations[name] = entry
}

// LookupRelation finds a CTE or derived table by name, searching parent
// scopes outward. A derived table alias is visible only at the level that
// declared it: a nested query's FROM cannot read an enclosing subquery by alias.
func (s *Scope) LookupRelation(name string) (*ScopeEntry, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if entry, ok := cur.relation(name, cur == s); ok {
			return entry, true
		}
	}
	return nil, false
}

// Lookup finds any query-local name, relation or scalar alias. At each
// level relations take precedence. Derived aliases follow LookupRelation.
func (s *Scope) Lookup(name string) (*ScopeEntry, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if entry, ok := cur.relation(name, cur == s); ok {
			return entry, true
		}
		if entry, ok := cur.scalars[name]; ok {
			return entry, true
		}
	}
	return nil, false
}

// relation returns this level's relation entry for name. Derived entries
// count only when local is set.
func (s *Scope) relation(name string, local bool) (*ScopeEntry, bool) {
	entry, ok := s.relations[name]
	if !ok || (entry.Type == ScopeDerived && !local) {
		return nil, false
	}
	return entry, true
}

// Depth returns the nesting level, 0 for the root.
func (s *Scope) Depth() int {
	depth := 0
	for cur := s.parent; cur != nil; cur = cur.parent {
		depth++
	}
	return depth
}

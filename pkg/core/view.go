package core

// NodeKind classifies a dependency graph node.
type NodeKind string

// Node kinds.
const (
	KindTable NodeKind = "table"
	KindView  NodeKind = "view"
)

// ViewDefinition is one view and the SQL text that defines it.
type ViewDefinition struct {
	Name QualifiedName
	SQL  string
	// Engine is the ClickHouse engine name (View, MaterializedView, LiveView, ...).
	// Informational only.
	Engine string
}

// SourceConfig holds configuration for a view data source.
type SourceConfig struct {
	Type          string // "clickhouse" or "files"
	Path          string // SQL directory for the files source
	Protocol      string // "native" or "http"
	Host          string
	Port          int
	Username      string
	Password      string
	Databases     []string // restrict listing to these databases; empty means all user databases
	Secure        bool
	IncludeSystem bool // also list the system and INFORMATION_SCHEMA databases
	Options       map[string]string
}

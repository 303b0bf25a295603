// Package core defines the shared language of chviewgraph.
//
// This package contains:
//   - Domain entities (QualifiedName, ViewDefinition, NodeKind)
//   - Data source configuration (SourceConfig)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core

// Package adapter defines the contract every view source implements.
//
// A source lists the views to analyse together with their defining SQL,
// and the plain tables that views may read from. Concrete sources live
// in pkg/adapters/ subdirectories and register themselves on import.
package adapter

import (
	"context"

	"github.com/leapstack-labs/chviewgraph/pkg/core"
)

// Config is an alias for core.SourceConfig.
type Config = core.SourceConfig

// Source defines the interface that all view sources must implement.
type Source interface {
	// Connect prepares the source using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// ListViews returns every view the source knows, in a stable order.
	ListViews(ctx context.Context) ([]core.ViewDefinition, error)

	// ListTables returns the non-view relations the source knows.
	ListTables(ctx context.Context) ([]core.QualifiedName, error)

	// Close releases any resources held by the source.
	Close() error
}

package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/chviewgraph/pkg/core"
)

// BaseSQLAdapter provides common database/sql functionality for sources.
// Embed this struct in concrete implementations to get standard Close,
// Query and name listing helpers.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		err := b.DB.Close()
		b.DB = nil
		return err
	}
	return nil
}

// Query executes a SQL statement that returns rows.
// The caller must close the rows and check rows.Err().
func (b *BaseSQLAdapter) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	rows, err := b.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return rows, nil
}

// QueryNames runs a query whose rows are (schema, name) pairs and returns
// them as qualified names in row order.
func (b *BaseSQLAdapter) QueryNames(ctx context.Context, query string, args ...any) ([]core.QualifiedName, error) {
	rows, err := b.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var names []core.QualifiedName
	for rows.Next() {
		var schema, name string
		if err := rows.Scan(&schema, &name); err != nil {
			return nil, fmt.Errorf("failed to scan relation name: %w", err)
		}
		names = append(names, core.QualifiedName{Schema: schema, Name: name})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relation names: %w", err)
	}
	return names, nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

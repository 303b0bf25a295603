package config

import (
	"fmt"

	"github.com/leapstack-labs/chviewgraph/internal/cli/output"
	"github.com/leapstack-labs/chviewgraph/internal/mermaid"
	"github.com/leapstack-labs/chviewgraph/pkg/adapter"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Source == "" {
		return fmt.Errorf("source is required")
	}
	if !adapter.IsRegistered(c.Source) {
		return &adapter.UnknownAdapterError{Type: c.Source, Available: adapter.ListAdapters()}
	}
	if c.Source == "files" && c.SQLDir == "" {
		return fmt.Errorf("sql_dir is required for the files source\nHint: set sql_dir in chviewgraph.yaml or use --sql-dir")
	}
	if c.ClickHouse.Port < 0 || c.ClickHouse.Port > 65535 {
		return fmt.Errorf("clickhouse.port out of range: %d", c.ClickHouse.Port)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency)
	}
	if _, err := mermaid.NormalizeDirection(c.Mermaid.Direction); err != nil {
		return fmt.Errorf("invalid mermaid.direction %q: %w", c.Mermaid.Direction, err)
	}
	if _, err := output.ParseMode(c.OutputFormat); err != nil {
		return err
	}
	return nil
}

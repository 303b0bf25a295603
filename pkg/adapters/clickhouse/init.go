package clickhouse

import (
	"log/slog"

	"github.com/leapstack-labs/chviewgraph/pkg/adapter"
)

func init() {
	adapter.Register("clickhouse", func(l *slog.Logger) adapter.Source { return New(l) })
}

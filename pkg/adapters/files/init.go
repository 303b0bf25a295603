package files

import (
	"log/slog"

	"github.com/leapstack-labs/chviewgraph/pkg/adapter"
)

func init() {
	adapter.Register("files", func(l *slog.Logger) adapter.Source { return New(l) })
}

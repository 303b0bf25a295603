package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/chviewgraph/internal/cli/config"
	"github.com/leapstack-labs/chviewgraph/internal/cli/output"
	"github.com/leapstack-labs/chviewgraph/internal/dag"
	"github.com/leapstack-labs/chviewgraph/internal/engine"
	"github.com/leapstack-labs/chviewgraph/pkg/adapter"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the loaded configuration.
// When the root command did not load one (commands run on their own in
// tests), the configuration is loaded from the command's flags.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg, err := getConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := config.GetLogger(cmd.Context())

	mode, err := output.ParseMode(cfg.OutputFormat)
	if err != nil {
		return nil, err
	}
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}, nil
}

// getConfig returns the current configuration, loading it if needed.
func getConfig(cmd *cobra.Command) (*config.Config, error) {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg, nil
	}
	return config.LoadConfig("", cmd.Flags())
}

// openSource creates and connects the configured view source.
// The caller must close it.
func (c *CommandContext) openSource(ctx context.Context) (adapter.Source, error) {
	src, err := adapter.NewAdapter(c.Cfg.SourceConfig(), c.Logger)
	if err != nil {
		return nil, err
	}
	if err := src.Connect(ctx, c.Cfg.SourceConfig()); err != nil {
		return nil, fmt.Errorf("failed to connect to %s source: %w", c.Cfg.Source, err)
	}
	return src, nil
}

// build lists the source's views and tables and builds the dependency graph.
func (c *CommandContext) build(ctx context.Context, src adapter.Source) (*engine.Result, error) {
	views, err := src.ListViews(ctx)
	if err != nil {
		return nil, err
	}
	tables, err := src.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("loaded source", "views", len(views), "tables", len(tables))

	res, err := engine.Build(ctx, views, tables, engine.Options{
		Concurrency: c.Cfg.Concurrency,
		Logger:      c.Logger,
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// reportFailures prints every parse failure as a warning on stderr.
func (c *CommandContext) reportFailures(res *engine.Result) {
	for _, f := range res.Failures {
		c.Renderer.Warning(f.Error())
	}
	if len(res.Unresolved) > 0 {
		c.Logger.Debug("references to unknown relations rendered as tables", "count", len(res.Unresolved))
	}
}

// warnCycles logs a warning when the graph has a dependency cycle.
func (c *CommandContext) warnCycles(g *dag.Graph) {
	if ok, path := g.HasCycle(); ok {
		c.Logger.Warn("dependency cycle detected", "path", strings.Join(path, " -> "))
	}
}

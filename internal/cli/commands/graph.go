package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/leapstack-labs/chviewgraph/internal/cli/output"
	"github.com/leapstack-labs/chviewgraph/internal/dag"
	"github.com/leapstack-labs/chviewgraph/internal/engine"
	"github.com/leapstack-labs/chviewgraph/internal/mermaid"
	"github.com/leapstack-labs/chviewgraph/pkg/adapter"
	"github.com/spf13/cobra"
)

// GraphOptions holds options for the graph command.
type GraphOptions struct {
	Focus      string
	Upstream   bool
	Downstream bool
	Watch      bool
}

// NewGraphCommand creates the graph command.
func NewGraphCommand() *cobra.Command {
	opts := &GraphOptions{}

	cmd := &cobra.Command{
		Use:   "graph [output.mmd]",
		Short: "Render the view dependency graph as Mermaid",
		Long: `Build the dependency graph of every view in the source and render it
as a Mermaid flowchart.

Tables and views get their own node classes. An edge points from each
relation a view reads to the view itself. Views whose SQL cannot be parsed
stay in the diagram without edges and are reported as warnings on stderr.

The diagram is written to the given file, or to stdout when no file is
given.`,
		Example: `  # Write the diagram for a ClickHouse server
  CH_HOST=ch.internal chviewgraph graph views.mmd

  # Render a directory of view definitions top to bottom
  chviewgraph graph --source files --sql-dir ./views --direction TB

  # Only the views feeding into and fed by one view
  chviewgraph graph --focus analytics.daily_revenue

  # Re-render whenever a view file changes
  chviewgraph graph --source files --sql-dir ./views --watch views.mmd`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outPath := ""
			if len(args) == 1 {
				outPath = args[0]
			}
			return runGraph(cmd, outPath, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Focus, "focus", "", "Only render the neighborhood of this node (schema.name)")
	cmd.Flags().BoolVar(&opts.Upstream, "upstream", true, "With --focus, include upstream dependencies")
	cmd.Flags().BoolVar(&opts.Downstream, "downstream", true, "With --focus, include downstream dependents")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Rebuild when view files change (files source only)")
	cmd.Flags().String("direction", "", "Diagram direction (LR|TB|RL|BT)")
	cmd.Flags().Bool("omit-isolated", false, "Drop nodes without edges")

	_ = cmd.RegisterFlagCompletionFunc("direction", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"LR", "TB", "RL", "BT"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runGraph(cmd *cobra.Command, outPath string, opts *GraphOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	src, err := cmdCtx.openSource(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	generate := func(ctx context.Context) error {
		return cmdCtx.generateGraph(ctx, src, outPath, opts)
	}

	if opts.Watch {
		return cmdCtx.watch(ctx, src, generate)
	}
	return generate(ctx)
}

// generateGraph runs one build and writes the diagram.
func (c *CommandContext) generateGraph(ctx context.Context, src adapter.Source, outPath string, opts *GraphOptions) error {
	res, err := c.build(ctx, src)
	if err != nil {
		return err
	}
	c.reportFailures(res)

	g, err := focusGraph(res.Graph, opts)
	if err != nil {
		return err
	}
	c.warnCycles(g)

	diagram, err := mermaid.Render(g, c.mermaidOptions())
	if err != nil {
		return err
	}

	if outPath == "" {
		if c.Renderer.Mode() == output.ModeMarkdown {
			c.Renderer.Println(output.FormatCodeBlock("mermaid", diagram))
			return nil
		}
		_, err := fmt.Fprint(c.Renderer.Writer(), diagram)
		return err
	}

	if err := os.WriteFile(outPath, []byte(diagram), 0o644); err != nil { //nolint:gosec // diagrams are meant to be shared
		return fmt.Errorf("failed to write diagram: %w", err)
	}
	c.Renderer.Success(summary(outPath, res, g))
	return nil
}

func (c *CommandContext) mermaidOptions() mermaid.Options {
	return mermaid.Options{
		Direction:    c.Cfg.Mermaid.Direction,
		Indent:       c.Cfg.Mermaid.Indent,
		OmitIsolated: c.Cfg.Mermaid.OmitIsolated,
	}
}

// focusGraph narrows g to the focus node and its requested neighborhood.
func focusGraph(g *dag.Graph, opts *GraphOptions) (*dag.Graph, error) {
	if opts.Focus == "" {
		return g, nil
	}
	if _, ok := g.GetNode(opts.Focus); !ok {
		return nil, fmt.Errorf("unknown node %q for --focus", opts.Focus)
	}

	var ids []string
	switch {
	case opts.Upstream && opts.Downstream:
		ids = g.Neighborhood(opts.Focus)
	case opts.Upstream:
		ids = append(g.GetUpstreamNodes(opts.Focus), opts.Focus)
	case opts.Downstream:
		ids = g.GetAffectedNodes([]string{opts.Focus})
	default:
		ids = []string{opts.Focus}
	}
	return g.Subgraph(ids), nil
}

func summary(outPath string, res *engine.Result, g *dag.Graph) string {
	msg := fmt.Sprintf("Wrote %s (%d nodes, %d edges)", outPath, g.NodeCount(), g.EdgeCount())
	if n := len(res.Failures); n > 0 {
		msg += fmt.Sprintf(", %d view(s) failed to parse", n)
	}
	return msg
}

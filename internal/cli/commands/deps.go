package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/chviewgraph/internal/cli/output"
	"github.com/leapstack-labs/chviewgraph/internal/report"
	"github.com/spf13/cobra"
)

// NewDepsCommand creates the deps command.
func NewDepsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Print the dependencies of every view",
		Long: `Print the relations each view reads, and the parse error of every view
that could not be analyzed.

The JSON and YAML formats emit the dependency report that the render
command reads back:

  {"view_dependencies": {"db.view": ["db.table"]}, "errors": {"db.bad": "ParseError: ..."}}

Output adapts to environment:
  - Terminal: Table
  - Piped/Scripted: Markdown format (agent-friendly)`,
		Example: `  # Show dependencies as a table
  chviewgraph deps --output table

  # Save the report for later rendering
  chviewgraph deps --output json > report.json
  chviewgraph render report.json views.mmd`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDeps(cmd)
		},
	}

	return cmd
}

func runDeps(cmd *cobra.Command) error {
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

	res, err := cmdCtx.build(ctx, src)
	if err != nil {
		return err
	}
	cmdCtx.warnCycles(res.Graph)

	rep := report.FromResult(res)
	r := cmdCtx.Renderer

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return rep.WriteJSON(r.Writer())
	case output.ModeYAML:
		return rep.WriteYAML(r.Writer())
	case output.ModeMarkdown:
		depsMarkdown(r, rep)
		return nil
	default:
		depsText(r, rep)
		return nil
	}
}

func depsRows(rep *report.Report) [][]string {
	views := rep.Views()
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		if msg, failed := rep.Errors[v]; failed {
			rows = append(rows, []string{v, "", msg})
			continue
		}
		deps := rep.ViewDependencies[v]
		if len(deps) == 0 {
			rows = append(rows, []string{v, "-", "ok"})
			continue
		}
		rows = append(rows, []string{v, strings.Join(deps, ", "), "ok"})
	}
	return rows
}

func depsText(r *output.Renderer, rep *report.Report) {
	styles := r.Styles()
	r.Println(styles.Header.Render(fmt.Sprintf("View dependencies (%d views)", len(rep.Views()))))
	r.Println("")
	r.Table([]string{"View", "Dependencies", "Status"}, depsRows(rep))
	if n := len(rep.Errors); n > 0 {
		r.Println("")
		r.Println(styles.Warning.Render(fmt.Sprintf("%d view(s) failed to parse", n)))
	}
}

func depsMarkdown(r *output.Renderer, rep *report.Report) {
	r.Header(2, "View Dependencies")

	views := rep.Views()
	if len(views) == 0 {
		r.Println("No views found.")
		return
	}

	r.Println(output.FormatKeyValue("Views", fmt.Sprintf("%d", len(views))))
	r.Println(output.FormatKeyValue("Failed", fmt.Sprintf("%d", len(rep.Errors))))
	r.Println("")

	r.Table([]string{"View", "Dependencies", "Status"}, depsRows(rep))

	if len(rep.Errors) == 0 {
		return
	}
	r.Println("")
	r.Header(3, "Errors")
	for _, v := range views {
		if msg, ok := rep.Errors[v]; ok {
			r.Printf("- `%s`: %s\n", v, msg)
		}
	}
}

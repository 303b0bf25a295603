package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/chviewgraph/internal/cli/output"
	"github.com/leapstack-labs/chviewgraph/internal/mermaid"
	"github.com/leapstack-labs/chviewgraph/internal/report"
	"github.com/spf13/cobra"
)

// NewRenderCommand creates the render command.
func NewRenderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <report.json|report.yaml|-> [output.mmd]",
		Short: "Render a saved dependency report as Mermaid",
		Long: `Render a dependency report produced by "chviewgraph deps" without
connecting to a source.

Every key of view_dependencies and errors becomes a view node. Every
dependency that is not itself a view becomes a table node. Reports ending
in .yaml or .yml are read as YAML, anything else as JSON. Use "-" to read
the report from stdin.`,
		Example: `  # Render a saved report
  chviewgraph render report.json views.mmd

  # Pipe a report straight through
  chviewgraph deps --output json | chviewgraph render - --direction TB`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outPath := ""
			if len(args) == 2 {
				outPath = args[1]
			}
			return runRender(cmd, args[0], outPath)
		},
	}

	cmd.Flags().String("direction", "", "Diagram direction (LR|TB|RL|BT)")
	cmd.Flags().Bool("omit-isolated", false, "Drop nodes without edges")

	return cmd
}

func runRender(cmd *cobra.Command, reportPath, outPath string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	rep, err := readReport(cmd.InOrStdin(), reportPath)
	if err != nil {
		return err
	}

	g := rep.ToGraph()
	cmdCtx.warnCycles(g)

	diagram, err := mermaid.Render(g, cmdCtx.mermaidOptions())
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if outPath == "" {
		if r.Mode() == output.ModeMarkdown {
			r.Println(output.FormatCodeBlock("mermaid", diagram))
			return nil
		}
		_, err := fmt.Fprint(r.Writer(), diagram)
		return err
	}

	if err := os.WriteFile(outPath, []byte(diagram), 0o644); err != nil { //nolint:gosec // diagrams are meant to be shared
		return fmt.Errorf("failed to write diagram: %w", err)
	}
	r.Success(fmt.Sprintf("Wrote %s (%d nodes, %d edges)", outPath, g.NodeCount(), g.EdgeCount()))
	return nil
}

// readReport loads a report from path, or from stdin when path is "-".
func readReport(stdin io.Reader, path string) (*report.Report, error) {
	if path == "-" {
		return report.ReadJSON(stdin)
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is user-provided
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return report.DecodeYAML(data)
	default:
		return report.DecodeJSON(data)
	}
}

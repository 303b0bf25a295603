// Package cli provides the command-line interface for chviewgraph.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/leapstack-labs/chviewgraph/internal/cli/commands"
	"github.com/leapstack-labs/chviewgraph/internal/cli/config"
	"github.com/leapstack-labs/chviewgraph/internal/cli/output"
	"github.com/spf13/cobra"

	// Register the built-in view sources.
	_ "github.com/leapstack-labs/chviewgraph/pkg/adapters/clickhouse"
	_ "github.com/leapstack-labs/chviewgraph/pkg/adapters/files"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// skipConfig lists commands that run without loading configuration.
var skipConfig = map[string]bool{
	"help":                    true,
	"completion":              true,
	cobra.ShellCompRequestCmd: true,
	"version":                 true,
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chviewgraph",
		Short: "chviewgraph - ClickHouse view dependency graphs",
		Long: `chviewgraph reads the VIEW definitions of a ClickHouse server (or a
directory of .sql files), works out which tables and views each one reads,
and renders the result as a Mermaid flowchart.

Views that fail to parse are reported as warnings and still appear in the
diagram.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipConfig[cmd.Name()] {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			logger := newLogger(cmd, cfg.Verbose)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, config.LoggerKey(), logger))

			if f := config.GetConfigFileUsed(); f != "" {
				logger.Debug("using config file", "path", f)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
ClickHouse view dependency graphs rendered as Mermaid
`)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: chviewgraph.yaml, searched upward)")
	pf.String("source", "", "View source (clickhouse|files)")
	pf.String("sql-dir", "", "Directory of view definitions for the files source")
	pf.BoolP("verbose", "v", false, "Verbose output")
	pf.StringP("output", "o", "", "Output format (auto|text|markdown|json|yaml)")
	pf.Int("concurrency", 0, "Number of views analyzed in parallel")
	pf.String("host", "", "ClickHouse host")
	pf.Int("port", 0, "ClickHouse port (default depends on protocol and TLS)")
	pf.String("protocol", "", "ClickHouse protocol (native|http)")
	pf.String("user", "", "ClickHouse user")
	pf.String("password", "", "ClickHouse password")
	pf.StringSlice("database", nil, "Only read views from these databases")
	pf.Bool("secure", false, "Connect to ClickHouse over TLS")
	pf.Bool("include-system", false, "Include the system databases")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return output.Modes, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("source", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"clickhouse", "files"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("protocol", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"native", "http"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewGraphCommand())
	rootCmd.AddCommand(commands.NewDepsCommand())
	rootCmd.AddCommand(commands.NewRenderCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// newLogger builds the CLI logger: text on stderr, Debug when verbose.
func newLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for chviewgraph.

To load completions:

Bash:
  $ source <(chviewgraph completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ chviewgraph completion bash > /etc/bash_completion.d/chviewgraph
  # macOS:
  $ chviewgraph completion bash > $(brew --prefix)/etc/bash_completion.d/chviewgraph

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ chviewgraph completion zsh > "${fpath[1]}/_chviewgraph"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ chviewgraph completion fish | source

  # To load completions for each session, execute once:
  $ chviewgraph completion fish > ~/.config/fish/completions/chviewgraph.fish

PowerShell:
  PS> chviewgraph completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> chviewgraph completion powershell > chviewgraph.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}

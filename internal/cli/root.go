// Package cli provides the command-line interface for leapaudit.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapaudit/internal/cli/commands"
	"github.com/leapstack-labs/leapaudit/internal/cli/config"

	// Register warehouse adapters.
	_ "github.com/leapstack-labs/leapaudit/pkg/adapters/bigquery"
	_ "github.com/leapstack-labs/leapaudit/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leapaudit/pkg/adapters/postgres"
)

var (
	cfgFile string
	envFlag string
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// configKey is used to store config in context.
type configKey struct{}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "leapaudit",
		Short: "leapaudit - Data quality audits for warehouse tables",
		Long: `leapaudit audits published warehouse tables against their metadata.

For one table it counts null values per column and partition, reconciles
the column names and types declared by the metadata catalog, the
architecture sheet and the warehouse itself, and checks that dimension-key
columns link to a directory table.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfigWithEnv(cfgFile, envFlag, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			level := slog.LevelWarn
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = context.WithValue(ctx, configKey{}, cfg)
			ctx = context.WithValue(ctx, config.LoggerKey(), logger)
			cmd.SetContext(ctx)

			if configFile := config.GetConfigFileUsed(); configFile != "" {
				logger.Debug("using config file", "path", configFile)
			}
			if cfg.Environment != "" {
				logger.Debug("using environment", "env", cfg.Environment)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} {{.Version}}\nBuilt %s (%s)\n", BuildDate, GitCommit))

	// Global persistent flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./leapaudit.yaml)")
	pf.StringVar(&envFlag, "env", "", "Environment to use (e.g., dev, staging, prod)")
	pf.BoolP("verbose", "v", false, "Verbose output")
	pf.StringP("output", "o", "", "Output format (auto|text|markdown|json|csv)")
	pf.String("billing-project", "", "Project billed for warehouse queries")
	pf.String("data-project", "", "Project holding the audited tables")
	pf.String("target-type", "", "Warehouse adapter (duckdb|postgres|bigquery)")
	pf.String("database", "", "Database name, or DuckDB file path")
	pf.String("catalog", "", "Path to the YAML metadata catalog")
	pf.String("catalog-url", "", "Base URL of the HTTP metadata catalog")
	pf.String("partition-key", "", "Partition key column (default: ano)")
	pf.Bool("no-partitioning", false, "Count the whole table as one partition")
	pf.Int("concurrency", 0, "Maximum concurrent census queries")
	pf.String("census-mode", "", "Census query shape (batched|per_column)")
	pf.Int("retries", 0, "Retries per warehouse query on transient errors")
	pf.String("sheet", "", "Worksheet name for .xlsx architecture files")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return config.OutputFormats, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("env", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"dev", "staging", "prod"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("census-mode", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"batched", "per_column"}, cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewCensusCommand())
	rootCmd.AddCommand(commands.NewReconcileCommand())
	rootCmd.AddCommand(commands.NewLinksCommand())
	rootCmd.AddCommand(commands.NewAuditCommand())
	rootCmd.AddCommand(commands.NewVocabularyCommand())
	rootCmd.AddCommand(commands.NewAdaptersCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
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

// GetConfig retrieves the config from the command context.
func GetConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	return &config.Config{OutputFormat: config.DefaultOutput}
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for leapaudit.

Bash:
  $ source <(leapaudit completion bash)

Zsh:
  $ leapaudit completion zsh > "${fpath[1]}/_leapaudit"

Fish:
  $ leapaudit completion fish > ~/.config/fish/completions/leapaudit.fish

PowerShell:
  PS> leapaudit completion powershell | Out-String | Invoke-Expression
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

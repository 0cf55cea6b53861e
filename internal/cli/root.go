// Package cli provides the command-line interface for pushset.
package cli

import (
	"fmt"
	"os"

	"github.com/leapstack-labs/pushset/internal/cli/commands"
	"github.com/leapstack-labs/pushset/internal/cli/config"
	"github.com/spf13/cobra"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pushset",
		Short: "pushset - Power BI push dataset tool",
		Long: `pushset turns a tabular model (.bim) into a Power BI push dataset.

It reports and removes what push datasets cannot hold, publishes and alters
datasets through the REST API, and fills their tables from SQL queries or
simulated data. Every dataset operation is recorded in a local state database.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger := config.NewLogger(cmd.ErrOrStderr(), cfg.Verbose)
			cmd.SetContext(config.WithLogger(cmd.Context(), logger))

			if configFile := config.GetConfigFileUsed(); configFile != "" {
				logger.Debug("using config file", "path", configFile)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./pushset.yaml)")
	rootCmd.PersistentFlags().String("tenant", "", "Azure AD tenant id")
	rootCmd.PersistentFlags().String("principal", "", "Service principal (application) id")
	rootCmd.PersistentFlags().String("secret", "", "Service principal secret")
	rootCmd.PersistentFlags().String("group", "", "Workspace (group) id")
	rootCmd.PersistentFlags().StringP("dataset-name", "n", "", "Dataset name")
	rootCmd.PersistentFlags().String("dataset-id", "", "Dataset id (takes precedence over the name)")
	rootCmd.PersistentFlags().String("state", "", "Path to state database")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format (auto|text|markdown|json)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "text", "markdown", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(commands.BuildInfo{Version: Version, Commit: GitCommit, Date: BuildDate}))
	rootCmd.AddCommand(commands.NewCheckCommand())
	rootCmd.AddCommand(commands.NewGenerateCommand())
	rootCmd.AddCommand(commands.NewDepsCommand())
	rootCmd.AddCommand(commands.NewPublishCommand())
	rootCmd.AddCommand(commands.NewAlterCommand())
	rootCmd.AddCommand(commands.NewClearCommand())
	rootCmd.AddCommand(commands.NewRefreshCommand())
	rootCmd.AddCommand(commands.NewSimulateCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
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

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for pushset.

Bash:
  $ source <(pushset completion bash)

Zsh:
  $ pushset completion zsh > "${fpath[1]}/_pushset"

Fish:
  $ pushset completion fish | source

PowerShell:
  PS> pushset completion powershell | Out-String | Invoke-Expression
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

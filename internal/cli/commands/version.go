package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// NewVersionCommand creates the version command.
func NewVersionCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the pushset version and the build it came from.`,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "pushset v%s\n", info.Version)
			_, _ = fmt.Fprintln(out, "Power BI push dataset schema and sync tool")
			if info.Commit != "" && info.Commit != "unknown" {
				_, _ = fmt.Fprintf(out, "commit %s, built %s\n", info.Commit, info.Date)
			}
			_, _ = fmt.Fprintf(out, "built with %s\n", runtime.Version())
		},
	}
}

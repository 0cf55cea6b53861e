package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/pushset/internal/cli/output"
	"github.com/leapstack-labs/pushset/internal/state"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent dataset operations",
		Long: `List the publish, alter, clear, refresh and simulate runs recorded in the
local state database, newest first.`,
		Example: `  # Last 20 runs
  pushset history

  # Everything, as JSON
  pushset history --limit 0 --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to show (0 shows all)")

	return cmd
}

func runHistory(cmd *cobra.Command, limit int) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	st, err := state.OpenMigrated(cmdCtx.Cfg.StatePath, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	runs, err := st.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	entries := make([]output.HistoryEntry, 0, len(runs))
	for _, run := range runs {
		entries = append(entries, historyEntry(run))
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(entries)
	}

	r.Header(1, "History")
	if len(entries) == 0 {
		r.Muted("no runs recorded")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		status := e.Status
		if e.Error != "" {
			status += ": " + e.Error
		}
		rows = append(rows, []string{
			shortID(e.ID),
			e.StartedAt.Local().Format("2006-01-02 15:04:05"),
			e.Operation,
			e.Dataset,
			status,
			formatCount(e.Rows),
			e.Duration,
		})
	}
	r.Table([]string{"ID", "Started", "Operation", "Dataset", "Status", "Rows", "Duration"}, rows)
	return nil
}

func historyEntry(run *state.SyncRun) output.HistoryEntry {
	e := output.HistoryEntry{
		ID:        run.ID,
		Operation: string(run.Operation),
		Dataset:   run.DatasetName,
		Status:    string(run.Status),
		Rows:      int(run.Rows),
		Error:     run.Error,
		StartedAt: run.StartedAt,
	}
	if e.Dataset == "" {
		e.Dataset = run.DatasetID
	}
	if run.CompletedAt != nil {
		e.Duration = run.Duration().Round(time.Millisecond).String()
	}
	return e
}

// shortID abbreviates a run id for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

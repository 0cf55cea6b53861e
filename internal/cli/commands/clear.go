package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/pushset/internal/cli/output"
	"github.com/leapstack-labs/pushset/internal/state"
)

// NewClearCommand creates the clear command.
func NewClearCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all rows of a dataset",
		Long:  `Delete the rows of every table of a push dataset. The schema is kept.`,
		Example: `  # Clear the dataset named Sales
  pushset clear -n Sales

  # Clear by id
  pushset clear --dataset-id 0b7c1c8e-5f2a-4c1e-9a55-0d3c2a8f1e77`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClear(cmd)
		},
	}

	return cmd
}

func runClear(cmd *cobra.Command) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg
	ctx := cmd.Context()
	r := cmdCtx.Renderer

	target, err := datasetTarget(cfg)
	if err != nil {
		return err
	}
	driver, err := newDriver(ctx, cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}

	start := time.Now()
	rec := startRun(ctx, cmdCtx, state.OpClear, cfg.DatasetID, cfg.DatasetName)

	id, err := driver.Resolve(ctx, target)
	if err != nil {
		rec.finish(err)
		return err
	}
	rec.setDataset(ctx, id, target.Name)

	results, err := driver.Clear(ctx, id, func(table string) {
		cmdCtx.Logger.Info("clearing table", "table", table)
	})
	rec.tables(ctx, results)
	rec.finish(err)
	if err != nil {
		return err
	}

	return renderSync(r, output.SyncOutput{
		Operation: string(state.OpClear),
		DatasetID: id,
		Dataset:   target.String(),
		Tables:    syncTables(results),
		Duration:  time.Since(start),
	}, false)
}

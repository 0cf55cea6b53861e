package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/pushset/internal/cli/output"
	"github.com/leapstack-labs/pushset/internal/modelstore"
	"github.com/leapstack-labs/pushset/internal/state"
)

// NewAlterCommand creates the alter command.
func NewAlterCommand() *cobra.Command {
	var modelPath string

	cmd := &cobra.Command{
		Use:   "alter",
		Short: "Update the table schemas of an existing dataset",
		Long: `Replace the schema of every supported table of a model in an existing
push dataset. Rows are kept where the new schema allows it.

Relationships cannot be changed on an existing push dataset; publish with
--overwrite to change them.`,
		Example: `  # Update the tables of the dataset named Sales
  pushset alter -m model.bim -n Sales`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if modelPath == "" {
				return errors.New("no model given\nHint: use -m path/to/model.bim")
			}
			return runAlter(cmd, modelPath)
		},
	}

	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "Path or s3:// URI of the .bim model")

	return cmd
}

func runAlter(cmd *cobra.Command, modelPath string) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg
	ctx := cmd.Context()

	target, err := datasetTarget(cfg)
	if err != nil {
		return err
	}

	db, err := newModelStore(cfg).Load(ctx, modelPath)
	if errors.Is(err, modelstore.ErrNotFound) {
		cmdCtx.Renderer.Error(fmt.Sprintf("%s: file not found, skipped", modelPath))
		return nil
	}
	if err != nil {
		return err
	}

	driver, err := newDriver(ctx, cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}

	start := time.Now()
	rec := startRun(ctx, cmdCtx, state.OpAlter, cfg.DatasetID, cfg.DatasetName)

	res, err := driver.Alter(ctx, target, db.Model)
	if res != nil {
		rec.setDataset(ctx, res.DatasetID, target.Name)
	}
	rec.finish(err)
	if err != nil {
		return err
	}

	out := output.SyncOutput{
		Operation: string(state.OpAlter),
		DatasetID: res.DatasetID,
		Dataset:   target.String(),
		Duration:  time.Since(start),
	}
	if !res.Check.Compatible() {
		out.Removed = skippedReport(res.Check)
	}
	for _, t := range res.Tables {
		out.Tables = append(out.Tables, output.TableSyncResult{Table: t})
	}
	return renderSync(cmdCtx.Renderer, out, false)
}

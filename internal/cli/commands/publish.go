package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/pushset/internal/cli/output"
	"github.com/leapstack-labs/pushset/internal/modelstore"
	"github.com/leapstack-labs/pushset/internal/pushsync"
	"github.com/leapstack-labs/pushset/internal/state"
)

// NewPublishCommand creates the publish command.
func NewPublishCommand() *cobra.Command {
	var (
		modelPath string
		overwrite bool
		fifo      bool
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Create a push dataset from a model",
		Long: `Create a push dataset in the workspace from the supported part of a
model. Unsupported measures, relationships and tables are skipped and listed.

The dataset is named by --dataset-name, or by the model name when no name is
given. Publishing fails when a dataset with that name exists, unless
--overwrite is set, in which case the existing dataset is deleted first.`,
		Example: `  # Publish a model
  pushset publish -m model.bim -n Sales

  # Replace an existing dataset and keep at most 200,000 rows per table
  pushset publish -m model.bim -n Sales --overwrite --fifo`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if modelPath == "" {
				return errors.New("no model given\nHint: use -m path/to/model.bim")
			}
			return runPublish(cmd, modelPath, overwrite, fifo)
		},
	}

	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "Path or s3:// URI of the .bim model")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Delete an existing dataset with the same name first")
	cmd.Flags().BoolVar(&fifo, "fifo", false, "Use the basicFIFO retention policy")

	return cmd
}

func runPublish(cmd *cobra.Command, modelPath string, overwrite, fifo bool) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg
	ctx := cmd.Context()

	db, err := newModelStore(cfg).Load(ctx, modelPath)
	if errors.Is(err, modelstore.ErrNotFound) {
		cmdCtx.Renderer.Error(fmt.Sprintf("%s: file not found, skipped", modelPath))
		return nil
	}
	if err != nil {
		return err
	}

	name := cfg.DatasetName
	if name == "" {
		name = db.Name
	}
	if name == "" {
		return errors.New("no dataset name given\nHint: pass --dataset-name (-n)")
	}

	driver, err := newDriver(ctx, cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}

	start := time.Now()
	rec := startRun(ctx, cmdCtx, state.OpPublish, "", name)

	res, err := driver.Publish(ctx, db.Model, pushsync.PublishOptions{
		Name:      name,
		Overwrite: overwrite,
		FIFO:      fifo,
	})
	if err != nil {
		rec.finish(err)
		return err
	}

	rec.forgetDataset(ctx, res.ReplacedID)
	rec.saveDataset(ctx, &state.Dataset{
		ID:              res.Dataset.ID,
		Name:            name,
		Group:           cfg.Group,
		RetentionPolicy: string(res.Policy),
		ModelPath:       modelPath,
	})
	rec.setDataset(ctx, res.Dataset.ID, name)
	rec.finish(nil)

	out := output.SyncOutput{
		Operation: string(state.OpPublish),
		DatasetID: res.Dataset.ID,
		Dataset:   name,
		Removed:   skippedReport(res.Check),
		Duration:  time.Since(start),
	}
	for _, t := range res.Request.Tables {
		out.Tables = append(out.Tables, output.TableSyncResult{Table: t.Name})
	}
	if res.ReplacedID != "" {
		cmdCtx.Renderer.Warning("replaced dataset " + res.ReplacedID)
	}
	return renderSync(cmdCtx.Renderer, out, false)
}

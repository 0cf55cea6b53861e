package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/pushset/internal/cli/config"
	"github.com/leapstack-labs/pushset/internal/cli/output"
	"github.com/leapstack-labs/pushset/internal/pushsync"
	"github.com/leapstack-labs/pushset/internal/source"
	"github.com/leapstack-labs/pushset/internal/state"
)

// NewRefreshCommand creates the refresh command.
func NewRefreshCommand() *cobra.Command {
	var (
		scriptPath string
		appendRows bool
	)

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Load query results into a dataset",
		Long: `Run a SQL script against the configured source and write each result
set to a dataset table.

The target table is taken from the result columns, named Table[Column] or
'Table'[Column]; columns of other tables are ignored. A comment line
"-- table: Name" before a statement names the table explicitly and allows
plain column names. Results for the reserved table Date are written to Dates.

Each table is cleared before its rows are written unless --append is set.
Rows are posted in batches of 9,000.

The source is configured in pushset.yaml:

  source:
    type: duckdb          # duckdb, postgres or sqlite
    dsn: warehouse.duckdb
    params:
      extensions: [httpfs]
      settings:
        threads: "4"`,
		Example: `  # Replace the contents of the tables filled by refresh.sql
  pushset refresh -n Sales -q refresh.sql

  # Add rows without clearing
  pushset refresh -n Sales -q incremental.sql --append`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if scriptPath == "" {
				return errors.New("no query script given\nHint: use -q path/to/refresh.sql")
			}
			return runRefresh(cmd, scriptPath, appendRows)
		},
	}

	cmd.Flags().StringVarP(&scriptPath, "query", "q", "", "SQL script with one statement per table")
	cmd.Flags().BoolVar(&appendRows, "append", false, "Keep existing rows")

	return cmd
}

func runRefresh(cmd *cobra.Command, scriptPath string, appendRows bool) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg
	ctx := cmd.Context()
	r := cmdCtx.Renderer

	target, err := datasetTarget(cfg)
	if err != nil {
		return err
	}

	script, err := os.ReadFile(scriptPath) //nolint:gosec // user-supplied script path
	if errors.Is(err, fs.ErrNotExist) {
		r.Error(fmt.Sprintf("%s: file not found, skipped", scriptPath))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read query script: %w", err)
	}

	stmts := source.SplitStatements(string(script))
	if len(stmts) == 0 {
		return fmt.Errorf("%s contains no statements", scriptPath)
	}

	src, err := source.Open(ctx, sourceConfig(cfg), cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	driver, err := newDriver(ctx, cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}

	start := time.Now()
	rec := startRun(ctx, cmdCtx, state.OpRefresh, cfg.DatasetID, cfg.DatasetName)

	id, err := driver.Resolve(ctx, target)
	if err != nil {
		rec.finish(err)
		return err
	}
	rec.setDataset(ctx, id, target.Name)

	results, err := driver.Refresh(ctx, id, src.DB(), stmts, pushsync.RefreshOptions{
		Append: appendRows,
		Progress: func(table string, rows int) {
			if rows < 0 {
				cmdCtx.Logger.Info("refreshing table", "table", table)
				return
			}
			cmdCtx.Logger.Debug("posting rows", "table", table, "rows", rows)
		},
	})
	rec.tables(ctx, results)
	rec.finish(err)
	if err != nil {
		return err
	}

	return renderSync(r, output.SyncOutput{
		Operation: string(state.OpRefresh),
		DatasetID: id,
		Dataset:   target.String(),
		Tables:    syncTables(results),
		Duration:  time.Since(start),
	}, true)
}

// sourceConfig returns the refresh source of cfg.
func sourceConfig(cfg *config.Config) source.Config {
	if cfg.Source == nil {
		return source.Config{Type: config.DefaultSourceType}
	}
	return source.Config{
		Type:   cfg.Source.Type,
		DSN:    cfg.Source.DSN,
		Params: cfg.Source.Params,
	}
}

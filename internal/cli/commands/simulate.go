package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/pushset/internal/cli/output"
	"github.com/leapstack-labs/pushset/internal/pushsync"
	"github.com/leapstack-labs/pushset/internal/simulator"
	"github.com/leapstack-labs/pushset/internal/state"
)

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand() *cobra.Command {
	var (
		configPath string
		seed       uint64
		batches    int
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Push generated rows on a schedule",
		Long: `Generate random rows from a simulation file and push one batch to every
configured table, every batchInterval seconds or on a cron schedule, until
interrupted.

Columns are fixed (fixedValue), picked from a list (allowedValues) or drawn
from a range (min, max, granularity). Granularity 0 draws integers, a
positive value rounds to that many decimals and a negative value rounds to
a multiple of ten.

Run "pushset simulate init" to write an example file.`,
		Example: `  # Push until interrupted
  pushset simulate -n Sales -c simulation.yaml

  # Push three reproducible batches
  pushset simulate -n Sales -c simulation.json --seed 42 --batches 3`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configPath == "" {
				return errors.New("no simulation file given\nHint: use -c simulation.yaml or run 'pushset simulate init'")
			}
			var seedOverride *uint64
			if cmd.Flags().Changed("seed") {
				seedOverride = &seed
			}
			return runSimulate(cmd, configPath, seedOverride, batches)
		},
	}

	cmd.Flags().StringVarP(&configPath, "sim-config", "c", "", "Simulation file (.json, .yaml or .yml)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed (0 uses the clock)")
	cmd.Flags().IntVar(&batches, "batches", 0, "Stop after this many batches (0 runs until interrupted)")

	cmd.AddCommand(newSimulateInitCommand())

	return cmd
}

func newSimulateInitCommand() *cobra.Command {
	var (
		configPath string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write an example simulation file",
		Example: `  pushset simulate init -c simulation.yaml
  pushset simulate init -c simulation.json --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configPath == "" {
				return errors.New("no simulation file given\nHint: use -c simulation.yaml")
			}
			return runSimulateInit(cmd, configPath, force)
		},
	}

	cmd.Flags().StringVarP(&configPath, "sim-config", "c", "", "Simulation file to create (.json, .yaml or .yml)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}

func runSimulateInit(cmd *cobra.Command, path string, force bool) error {
	cmdCtx := NewCommandContext(cmd)

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists\nHint: use --force to overwrite", path)
	}
	if err := simulator.Example().WriteParameters(path); err != nil {
		return err
	}
	cmdCtx.Renderer.Success("wrote " + path)
	return nil
}

func runSimulate(cmd *cobra.Command, configPath string, seed *uint64, batches int) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	target, err := datasetTarget(cfg)
	if err != nil {
		return err
	}

	params, err := simulator.ReadParameters(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		r.Error(fmt.Sprintf("%s: file not found, skipped", configPath))
		return nil
	}
	if err != nil {
		return err
	}
	if seed != nil {
		params.Seed = *seed
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver, err := newDriver(ctx, cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}

	rec := startRun(ctx, cmdCtx, state.OpSimulate, cfg.DatasetID, cfg.DatasetName)

	id, err := driver.Resolve(ctx, target)
	if err != nil {
		rec.finish(err)
		return err
	}
	rec.setDataset(ctx, id, target.Name)

	runner := &simulator.Runner{Params: params, Logger: cmdCtx.Logger, MaxBatches: batches}
	gen := simulator.NewGenerator(params.Seed)

	if r.EffectiveMode() != output.ModeJSON {
		r.Header(1, "Simulate: "+target.String())
		r.Muted("schedule " + runner.Spec())
	}

	err = runner.Run(ctx, func(ctx context.Context, n int) error {
		results, err := driver.PushSimulation(ctx, id, params, gen)
		rec.tables(ctx, results)
		if err != nil {
			return err
		}
		renderBatch(r, n, results)
		return nil
	})
	rec.finish(err)
	return err
}

func renderBatch(r *output.Renderer, n int, results []pushsync.TableResult) {
	if r.EffectiveMode() == output.ModeJSON {
		_ = r.JSON(struct {
			Batch  int                      `json:"batch"`
			Tables []output.TableSyncResult `json:"tables"`
		}{n, syncTables(results)})
		return
	}

	parts := make([]string, 0, len(results))
	for _, res := range results {
		parts = append(parts, fmt.Sprintf("%s %s", res.Table, formatCount(res.Rows)))
	}
	r.StatusLine(fmt.Sprintf("batch %d", n), "success", strings.Join(parts, ", "))
}

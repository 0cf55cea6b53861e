package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/pushset/internal/cli/output"
	"github.com/leapstack-labs/pushset/internal/modelstore"
	"github.com/leapstack-labs/pushset/pkg/pushschema"
)

// watchDebounce is how long generate --watch waits for writes to settle.
const watchDebounce = 100 * time.Millisecond

// NewGenerateCommand creates the generate command.
func NewGenerateCommand() *cobra.Command {
	var (
		modelPath string
		outPath   string
		watch     bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a push compatible copy of a model",
		Long: `Remove every object a push dataset cannot hold and write the reduced
model. Unsupported measures are removed first, then relationships, then
tables. Properties this tool does not interpret are kept.

A column whose data type has no push equivalent stops the command before
anything is written.

With --watch the model is regenerated whenever the input file changes.`,
		Example: `  # Reduce a model
  pushset generate -m model.bim --out push.bim

  # Regenerate on every save
  pushset generate -m model.bim --out push.bim --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if modelPath == "" {
				return errors.New("no model given\nHint: use -m path/to/model.bim")
			}
			if outPath == "" {
				return errors.New("no output given\nHint: use --out path/to/push.bim")
			}
			if watch && modelstore.IsRemote(modelPath) {
				return errors.New("--watch needs a local model file")
			}
			return runGenerate(cmd, modelPath, outPath, watch)
		},
	}

	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "Path or s3:// URI of the .bim model")
	cmd.Flags().StringVar(&outPath, "out", "", "Path or s3:// URI of the reduced model")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Regenerate when the model changes")

	return cmd
}

func runGenerate(cmd *cobra.Command, in, out string, watch bool) error {
	cmdCtx := NewCommandContext(cmd)
	store := newModelStore(cmdCtx.Cfg)

	if err := generateOnce(cmd.Context(), cmdCtx, store, in, out); err != nil {
		return err
	}
	if !watch {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmdCtx.Renderer.Muted(fmt.Sprintf("watching %s (ctrl-c to stop)", in))
	return watchFile(ctx, in, cmdCtx.Logger, func() {
		if err := generateOnce(ctx, cmdCtx, store, in, out); err != nil {
			cmdCtx.Renderer.Error(err.Error())
		}
	})
}

// generateOnce reduces in and writes out. A missing input is reported and skipped.
func generateOnce(ctx context.Context, cmdCtx *CommandContext, store *modelstore.Store, in, out string) error {
	r := cmdCtx.Renderer

	db, err := store.Load(ctx, in)
	if errors.Is(err, modelstore.ErrNotFound) {
		r.Error(fmt.Sprintf("%s: file not found, skipped", in))
		return nil
	}
	if err != nil {
		return err
	}

	report, err := pushschema.Reduce(db.Model)
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}

	if err := store.Save(ctx, out, db); err != nil {
		return err
	}
	cmdCtx.Logger.Debug("generated model", "input", in, "output", out,
		"removed_measures", len(report.RemovedMeasures),
		"removed_relationships", len(report.RemovedRelationships),
		"removed_tables", len(report.RemovedTables))

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(output.GenerateOutput{Input: in, Output: out, Report: report})
	}

	r.Header(1, "Generate: "+in)
	if report.Empty() {
		r.Muted("nothing to remove")
	} else {
		for _, t := range report.RemovedTables {
			r.StatusLine("table "+t.Name, "removed", string(t.Reason))
		}
		for _, m := range report.RemovedMeasures {
			r.StatusLine(fmt.Sprintf("measure '%s'[%s]", m.Table, m.Name), "removed", string(m.Reason))
		}
		for _, rel := range report.RemovedRelationships {
			r.StatusLine("relationship "+rel.Name, "removed", rel.String())
		}
	}
	r.Success("wrote " + out)
	return nil
}

// watchFile calls onChange after writes to path settle. It watches the
// parent directory so editors that replace the file are noticed.
func watchFile(ctx context.Context, path string, logger *slog.Logger, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	var (
		mu            sync.Mutex
		debounceTimer *time.Timer
	)
	defer func() {
		mu.Lock()
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if name, err := filepath.Abs(event.Name); err != nil || name != abs {
				continue
			}

			mu.Lock()
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(watchDebounce, func() {
				mu.Lock()
				defer mu.Unlock()
				if ctx.Err() != nil {
					return
				}
				logger.Debug("model changed, regenerating", "file", path)
				onChange()
			})
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", "error", err)
		}
	}
}

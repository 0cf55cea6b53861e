package commands

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/leapstack-labs/pushset/internal/cli/config"
	"github.com/leapstack-labs/pushset/internal/cli/output"
	"github.com/leapstack-labs/pushset/internal/modelstore"
	"github.com/leapstack-labs/pushset/internal/powerbi"
	"github.com/leapstack-labs/pushset/internal/pushsync"
	"github.com/leapstack-labs/pushset/internal/state"
	"github.com/leapstack-labs/pushset/pkg/pushschema"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext for cmd.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to environment variables.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	return &config.Config{
		Tenant:       os.Getenv(config.EnvPrefix + "TENANT"),
		Principal:    os.Getenv(config.EnvPrefix + "PRINCIPAL"),
		Secret:       os.Getenv(config.EnvPrefix + "SECRET"),
		Group:        os.Getenv(config.EnvPrefix + "GROUP"),
		DatasetName:  os.Getenv(config.EnvPrefix + "DATASET_NAME"),
		DatasetID:    os.Getenv(config.EnvPrefix + "DATASET_ID"),
		StatePath:    getEnvOrDefault(config.EnvPrefix+"STATE_PATH", config.DefaultStateFile),
		Verbose:      os.Getenv(config.EnvPrefix+"VERBOSE") == "true",
		OutputFormat: getEnvOrDefault(config.EnvPrefix+"OUTPUT", config.DefaultOutput),
		API: &config.APIConfig{
			BaseURL:        config.DefaultBaseURL,
			Authority:      config.DefaultAuthority,
			Resource:       config.DefaultResource,
			PostsPerMinute: config.DefaultPostsPerMinute,
			Timeout:        config.DefaultTimeout,
		},
		Source:  &config.SourceConfig{Type: config.DefaultSourceType},
		Storage: &config.StorageConfig{},
		Server:  &config.ServerConfig{Addr: config.DefaultServerAddr},
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// newModelStore creates a model store from the storage section.
func newModelStore(cfg *config.Config) *modelstore.Store {
	var opts modelstore.Options
	if s := cfg.Storage; s != nil {
		opts = modelstore.Options{
			Region:          s.Region,
			Endpoint:        s.Endpoint,
			AccessKeyID:     s.AccessKeyID,
			SecretAccessKey: s.SecretAccessKey,
			PathStyle:       s.PathStyle,
		}
	}
	return modelstore.New(opts)
}

// newDriver creates an authenticated sync driver for the configured workspace.
func newDriver(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pushsync.Driver, error) {
	if err := cfg.ValidateCredentials(); err != nil {
		return nil, err
	}

	api := cfg.API
	if api == nil {
		api = &config.APIConfig{
			BaseURL:        config.DefaultBaseURL,
			Authority:      config.DefaultAuthority,
			Resource:       config.DefaultResource,
			PostsPerMinute: config.DefaultPostsPerMinute,
			Timeout:        config.DefaultTimeout,
		}
	}

	httpClient := powerbi.NewHTTPClient(ctx, powerbi.Credentials{
		Tenant:    cfg.Tenant,
		Principal: cfg.Principal,
		Secret:    cfg.Secret,
		Authority: api.Authority,
		Resource:  api.Resource,
	}, api.Timeout)

	client := powerbi.New(powerbi.Config{
		BaseURL:        api.BaseURL,
		Group:          cfg.Group,
		PostsPerMinute: api.PostsPerMinute,
	}, httpClient, logger)

	return pushsync.New(client, logger), nil
}

// datasetTarget returns the dataset addressed by --dataset-id or --dataset-name.
func datasetTarget(cfg *config.Config) (pushsync.Target, error) {
	if err := cfg.ValidateDataset(); err != nil {
		return pushsync.Target{}, err
	}
	return pushsync.Target{ID: cfg.DatasetID, Name: cfg.DatasetName}, nil
}

// runRecorder records a sync run in the state store. Recording failures are
// logged and never fail the command.
type runRecorder struct {
	store  *state.SQLiteStore
	run    *state.SyncRun
	logger *slog.Logger
}

// startRun opens the state store and records the start of a run.
func startRun(ctx context.Context, cmdCtx *CommandContext, op state.Operation, datasetID, datasetName string) *runRecorder {
	rec := &runRecorder{logger: cmdCtx.Logger}

	st, err := state.OpenMigrated(cmdCtx.Cfg.StatePath, cmdCtx.Logger)
	if err != nil {
		cmdCtx.Logger.Warn("history disabled", "state", cmdCtx.Cfg.StatePath, "error", err)
		return rec
	}

	run, err := st.StartRun(ctx, op, datasetID, datasetName)
	if err != nil {
		cmdCtx.Logger.Warn("failed to record run", "error", err)
		_ = st.Close()
		return rec
	}

	rec.store = st
	rec.run = run
	return rec
}

func (r *runRecorder) setDataset(ctx context.Context, id, name string) {
	if r.store == nil {
		return
	}
	if err := r.store.SetRunDataset(ctx, r.run.ID, id, name); err != nil {
		r.logger.Warn("failed to record dataset", "error", err)
	}
}

func (r *runRecorder) saveDataset(ctx context.Context, d *state.Dataset) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveDataset(ctx, d); err != nil {
		r.logger.Warn("failed to record dataset", "error", err)
	}
}

func (r *runRecorder) forgetDataset(ctx context.Context, id string) {
	if r.store == nil || id == "" {
		return
	}
	if err := r.store.DeleteDataset(ctx, id); err != nil && !errors.Is(err, state.ErrNotFound) {
		r.logger.Warn("failed to forget dataset", "id", id, "error", err)
	}
}

func (r *runRecorder) tables(ctx context.Context, results []pushsync.TableResult) {
	if r.store == nil {
		return
	}
	for _, res := range results {
		err := r.store.RecordTableWrite(ctx, state.TableWrite{
			RunID:   r.run.ID,
			Table:   res.Table,
			Rows:    int64(res.Rows),
			Cleared: res.Cleared,
		})
		if err != nil {
			r.logger.Warn("failed to record table write", "table", res.Table, "error", err)
		}
	}
}

// finish completes the run with runErr and closes the store.
func (r *runRecorder) finish(runErr error) {
	if r.store == nil {
		return
	}
	// The command context may already be canceled.
	if err := r.store.CompleteRun(context.Background(), r.run.ID, runErr); err != nil {
		r.logger.Warn("failed to complete run", "error", err)
	}
	_ = r.store.Close()
	r.store = nil
}

// syncTables converts driver results for output.
func syncTables(results []pushsync.TableResult) []output.TableSyncResult {
	out := make([]output.TableSyncResult, 0, len(results))
	for _, res := range results {
		out = append(out, output.TableSyncResult{Table: res.Table, Rows: res.Rows})
	}
	return out
}

// renderSync writes the result of publish, alter, clear or refresh.
func renderSync(r *output.Renderer, out output.SyncOutput, rowsWritten bool) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	r.Header(1, strings.ToUpper(out.Operation[:1])+out.Operation[1:]+": "+out.Dataset)
	if out.DatasetID != "" {
		if r.EffectiveMode() == output.ModeMarkdown {
			r.Println(output.FormatKeyValue("Dataset ID", out.DatasetID))
		} else {
			r.Muted("dataset id " + out.DatasetID)
		}
	}

	if out.Removed != nil && !out.Removed.Empty() {
		renderSkipped(r, out.Removed)
	}

	if len(out.Tables) > 0 {
		header := []string{"Table"}
		if rowsWritten {
			header = append(header, "Rows")
		}
		rows := make([][]string, 0, len(out.Tables))
		for _, t := range out.Tables {
			row := []string{t.Table}
			if rowsWritten {
				row = append(row, formatCount(t.Rows))
			}
			rows = append(rows, row)
		}
		r.Println("")
		r.Table(header, rows)
	}

	r.Println("")
	r.Success(out.Operation + " completed in " + out.Duration.Round(time.Millisecond).String())
	return nil
}

// renderSkipped lists the objects left out of a published schema.
func renderSkipped(r *output.Renderer, report *pushschema.Report) {
	r.Println("")
	r.Warning("objects not supported by push datasets were skipped")
	for _, t := range report.RemovedTables {
		r.Printf("  table %s: %s\n", t.Name, t.Reason)
	}
	for _, m := range report.RemovedMeasures {
		r.Printf("  measure '%s'[%s]: %s\n", m.Table, m.Name, m.Reason)
	}
	for _, rel := range report.RemovedRelationships {
		r.Printf("  relationship %s: %s\n", rel.String(), rel.Reason)
	}
}

// skippedReport lists the unsupported objects of check as a removal report.
func skippedReport(check pushschema.CheckResult) *pushschema.Report {
	return &pushschema.Report{
		RemovedMeasures:      check.Measures,
		RemovedRelationships: check.Relationships,
		RemovedTables:        check.Tables,
	}
}

var countPrinter = message.NewPrinter(language.English)

// formatCount renders n with thousands separators.
func formatCount(n int) string {
	return countPrinter.Sprintf("%d", n)
}

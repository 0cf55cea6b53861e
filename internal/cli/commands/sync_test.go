package commands

import (
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/pushset/internal/cli/output"
	"github.com/leapstack-labs/pushset/internal/powerbi"
	"github.com/leapstack-labs/pushset/internal/pushsync"
	"github.com/leapstack-labs/pushset/internal/state"
	"github.com/leapstack-labs/pushset/internal/testutil"
)

func openState(t *testing.T, path string) *state.SQLiteStore {
	t.Helper()
	st, err := state.OpenMigrated(path, testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestPublish(t *testing.T) {
	fake, statePath := setupAPI(t, "dataset_name: Sales\n")
	model := writeFile(t, t.TempDir(), "sales.bim", testModel)

	stdout, _, err := execute(t, NewPublishCommand(), "-m", model, "--fifo")
	require.NoError(t, err)

	var out output.SyncOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, "publish", out.Operation)
	assert.Equal(t, "ds-new", out.DatasetID)
	assert.Equal(t, "Sales", out.Dataset)
	require.Len(t, out.Tables, 1)
	assert.Equal(t, "Sales", out.Tables[0].Table)
	require.NotNil(t, out.Removed)
	assert.Len(t, out.Removed.RemovedTables, 1)
	assert.Len(t, out.Removed.RemovedMeasures, 2)

	assert.Equal(t, []string{"GET /datasets", "POST /datasets"}, fake.Calls())
	body := fake.bodies["POST /datasets"]
	assert.Contains(t, body, `"name":"Sales"`)
	assert.NotContains(t, body, "USERELATIONSHIP")
	assert.NotContains(t, body, `"relationships"`)

	st := openState(t, statePath)
	ds, err := st.FindDataset(context.Background(), "g1", "Sales")
	require.NoError(t, err)
	assert.Equal(t, "ds-new", ds.ID)
	assert.Equal(t, string(powerbi.RetentionBasicFIFO), ds.RetentionPolicy)
	assert.Equal(t, model, ds.ModelPath)

	runs, err := st.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, state.OpPublish, runs[0].Operation)
	assert.Equal(t, state.RunStatusCompleted, runs[0].Status)
	assert.Equal(t, "ds-new", runs[0].DatasetID)
}

func TestPublish_ModelNameIsDefault(t *testing.T) {
	fake, _ := setupAPI(t, "")
	model := writeFile(t, t.TempDir(), "stock.bim", compatibleModel)

	stdout, _, err := execute(t, NewPublishCommand(), "-m", model)
	require.NoError(t, err)

	var out output.SyncOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, "Stock", out.Dataset)
	assert.Contains(t, fake.bodies["POST /datasets"], `"name":"Stock"`)
}

func TestPublish_Exists(t *testing.T) {
	fake, statePath := setupAPI(t, "dataset_name: Sales\n")
	fake.datasets = []powerbi.Dataset{{ID: "ds-old", Name: "Sales"}}
	model := writeFile(t, t.TempDir(), "sales.bim", testModel)

	_, _, err := execute(t, NewPublishCommand(), "-m", model)
	require.ErrorIs(t, err, pushsync.ErrDatasetExists)
	assert.Equal(t, []string{"GET /datasets"}, fake.Calls())

	runs, err := openState(t, statePath).ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, state.RunStatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "already exists")
}

func TestPublish_Overwrite(t *testing.T) {
	fake, _ := setupAPI(t, "dataset_name: Sales\n")
	fake.datasets = []powerbi.Dataset{{ID: "ds-old", Name: "Sales"}}
	model := writeFile(t, t.TempDir(), "sales.bim", testModel)

	_, _, err := execute(t, NewPublishCommand(), "-m", model, "--overwrite")
	require.NoError(t, err)

	assert.Equal(t, []string{"GET /datasets", "DELETE /datasets/ds-old", "POST /datasets"}, fake.Calls())
}

func TestPublish_HistoryFailureIsOnlyLogged(t *testing.T) {
	blocker := writeFile(t, t.TempDir(), "blocker", "")
	t.Setenv("PUSHSET_STATE_PATH", filepath.Join(blocker, "state.db"))
	fake, _ := setupAPI(t, "dataset_name: Sales\n")
	model := writeFile(t, t.TempDir(), "stock.bim", compatibleModel)

	logger, logs := testutil.NewRecordingLogger(t)
	_, _, err := executeWithLogger(t, logger, NewPublishCommand(), "-m", model)
	require.NoError(t, err)

	assert.Equal(t, []string{"GET /datasets", "POST /datasets"}, fake.Calls())
	assert.Contains(t, logs.Messages(slog.LevelWarn), "history disabled")
}

func TestPublish_MissingCredentials(t *testing.T) {
	useEnvConfig(t, "json")
	model := writeFile(t, t.TempDir(), "sales.bim", testModel)

	_, _, err := execute(t, NewPublishCommand(), "-m", model, "--overwrite")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing tenant")
}

func TestAlter(t *testing.T) {
	fake, _ := setupAPI(t, "dataset_name: Sales\n")
	fake.datasets = []powerbi.Dataset{{ID: "ds-1", Name: "Sales"}}
	model := writeFile(t, t.TempDir(), "sales.bim", testModel)

	stdout, _, err := execute(t, NewAlterCommand(), "-m", model)
	require.NoError(t, err)

	var out output.SyncOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, "ds-1", out.DatasetID)
	assert.Equal(t, []string{"GET /datasets", "PUT /datasets/ds-1/tables/Sales"}, fake.Calls())
	assert.NotContains(t, fake.bodies["PUT /datasets/ds-1/tables/Sales"], "Shipped")
}

func TestAlter_DatasetRequired(t *testing.T) {
	setupAPI(t, "")
	model := writeFile(t, t.TempDir(), "sales.bim", testModel)

	_, _, err := execute(t, NewAlterCommand(), "-m", model)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no dataset given")
}

func TestClear(t *testing.T) {
	fake, statePath := setupAPI(t, "dataset_id: ds-1\n")
	fake.tables = []string{"Sales", "Stock"}

	stdout, _, err := execute(t, NewClearCommand())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"GET /datasets/ds-1/tables",
		"DELETE /datasets/ds-1/tables/Sales/rows",
		"DELETE /datasets/ds-1/tables/Stock/rows",
	}, fake.Calls())

	var out output.SyncOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	require.Len(t, out.Tables, 2)

	st := openState(t, statePath)
	runs, err := st.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	writes, err := st.TableWrites(context.Background(), runs[0].ID)
	require.NoError(t, err)
	require.Len(t, writes, 2)
	assert.True(t, writes[0].Cleared)
}

func TestClear_UnknownDataset(t *testing.T) {
	_, _ = setupAPI(t, "dataset_name: Nope\n")

	_, _, err := execute(t, NewClearCommand())
	assert.ErrorIs(t, err, pushsync.ErrDatasetNotFound)
}

func TestRefresh(t *testing.T) {
	fake, statePath := setupAPI(t, "dataset_id: ds-1\nsource:\n  type: sqlite\n")
	script := writeFile(t, t.TempDir(), "refresh.sql", `
SELECT 1 AS "Sales[Qty]", 'Bike' AS "Sales[Product]", 'x' AS "Other[Ignored]"
UNION ALL SELECT 2, 'Helmet', 'y';

-- table: Stock
SELECT 5 AS Qty;
`)

	stdout, _, err := execute(t, NewRefreshCommand(), "-q", script)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"DELETE /datasets/ds-1/tables/Sales/rows",
		"POST /datasets/ds-1/tables/Sales/rows",
		"DELETE /datasets/ds-1/tables/Stock/rows",
		"POST /datasets/ds-1/tables/Stock/rows",
	}, fake.Calls())
	assert.Equal(t, 2, fake.Rows("Sales"))
	assert.Equal(t, 1, fake.Rows("Stock"))
	assert.NotContains(t, fake.bodies["POST /datasets/ds-1/tables/Sales/rows"], "Ignored")

	var out output.SyncOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, []output.TableSyncResult{{Table: "Sales", Rows: 2}, {Table: "Stock", Rows: 1}}, out.Tables)

	runs, err := openState(t, statePath).ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.EqualValues(t, 3, runs[0].Rows)
}

func TestRefresh_Append(t *testing.T) {
	fake, _ := setupAPI(t, "dataset_id: ds-1\nsource:\n  type: sqlite\n")
	script := writeFile(t, t.TempDir(), "refresh.sql", `SELECT 1 AS "Sales[Qty]"`)

	_, _, err := execute(t, NewRefreshCommand(), "-q", script, "--append")
	require.NoError(t, err)
	assert.Equal(t, []string{"POST /datasets/ds-1/tables/Sales/rows"}, fake.Calls())
}

func TestRefresh_MissingScript(t *testing.T) {
	fake, _ := setupAPI(t, "dataset_id: ds-1\nsource:\n  type: sqlite\n")

	_, stderr, err := execute(t, NewRefreshCommand(), "-q", filepath.Join(t.TempDir(), "missing.sql"))
	require.NoError(t, err)
	assert.Contains(t, stderr, "file not found")
	assert.Empty(t, fake.Calls())
}

func TestRefresh_UnknownSource(t *testing.T) {
	setupAPI(t, "dataset_id: ds-1\nsource:\n  type: oracle\n")
	script := writeFile(t, t.TempDir(), "refresh.sql", `SELECT 1 AS "Sales[Qty]"`)

	_, _, err := execute(t, NewRefreshCommand(), "-q", script)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestSimulate(t *testing.T) {
	fake, statePath := setupAPI(t, "dataset_id: ds-1\n")
	params := writeFile(t, t.TempDir(), "sim.yaml", `batchInterval: 60
tables:
  - name: Sales
    batchRows: 25
    columns:
      - name: Product
        type: list
        allowedValues: [Bike, Helmet]
      - name: Qty
        type: range
        range: {min: 1, max: 10}
`)

	_, _, err := execute(t, NewSimulateCommand(), "-c", params, "--seed", "7", "--batches", "1")
	require.NoError(t, err)

	assert.Equal(t, []string{"POST /datasets/ds-1/tables/Sales/rows"}, fake.Calls())
	assert.Equal(t, 25, fake.Rows("Sales"))

	runs, err := openState(t, statePath).ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, state.OpSimulate, runs[0].Operation)
	assert.EqualValues(t, 25, runs[0].Rows)
}

func TestSimulateInit(t *testing.T) {
	useEnvConfig(t, "markdown")
	path := filepath.Join(t.TempDir(), "sim.json")

	_, _, err := execute(t, NewSimulateCommand(), "init", "-c", path)
	require.NoError(t, err)

	// the written file must load back
	fake, _ := setupAPI(t, "dataset_id: ds-1\n")
	_, _, err = execute(t, NewSimulateCommand(), "-c", path, "--batches", "1")
	require.NoError(t, err)
	assert.Equal(t, 10, fake.Rows("Sales"))

	useEnvConfig(t, "markdown")
	_, _, err = execute(t, NewSimulateCommand(), "init", "-c", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = execute(t, NewSimulateCommand(), "init", "-c", path, "--force")
	assert.NoError(t, err)
}

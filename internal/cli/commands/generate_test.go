package commands

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/pushset/internal/cli/output"
	"github.com/leapstack-labs/pushset/internal/testutil"
	"github.com/leapstack-labs/pushset/pkg/tabular"
)

func TestGenerate_WritesReducedModel(t *testing.T) {
	useEnvConfig(t, "json")
	dir := t.TempDir()
	in := writeFile(t, dir, "sales.bim", testModel)
	out := filepath.Join(dir, "out", "push.bim")

	stdout, _, err := execute(t, NewGenerateCommand(), "-m", in, "--out", out)
	require.NoError(t, err)

	var result output.GenerateOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, in, result.Input)
	assert.Equal(t, out, result.Output)
	assert.Len(t, result.Report.RemovedMeasures, 2)
	assert.Len(t, result.Report.RemovedRelationships, 1)
	assert.Len(t, result.Report.RemovedTables, 1)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	db, err := tabular.Parse(data)
	require.NoError(t, err)

	require.Len(t, db.Model.Tables, 1)
	sales := db.Model.Tables[0]
	assert.Equal(t, "Sales", sales.Name)
	names := make([]string, 0, len(sales.Measures))
	for _, m := range sales.Measures {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"Total", "Double"}, names)
	assert.Empty(t, db.Model.Relationships)

	original, err := os.ReadFile(in)
	require.NoError(t, err)
	assert.Equal(t, testModel, string(original), "input is not modified")
}

func TestGenerate_Text(t *testing.T) {
	useEnvConfig(t, "markdown")
	dir := t.TempDir()
	out := filepath.Join(dir, "push.bim")

	stdout, _, err := execute(t, NewGenerateCommand(), "-m", writeFile(t, dir, "sales.bim", testModel), "--out", out)
	require.NoError(t, err)

	assert.Contains(t, stdout, "- table Date: Removed (reserved table name)")
	assert.Contains(t, stdout, "- measure 'Sales'[Shipped]: Removed")
	assert.Contains(t, stdout, "wrote "+out)
}

func TestGenerate_UnsupportedDataType(t *testing.T) {
	useEnvConfig(t, "json")
	dir := t.TempDir()
	in := writeFile(t, dir, "blob.bim", `{"model":{"tables":[{"name":"T","columns":[{"name":"Blob","dataType":"binary"}]}]}}`)
	out := filepath.Join(dir, "push.bim")

	_, _, err := execute(t, NewGenerateCommand(), "-m", in, "--out", out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Blob")

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "nothing is written")
}

func TestGenerate_MissingInput(t *testing.T) {
	useEnvConfig(t, "json")
	dir := t.TempDir()
	out := filepath.Join(dir, "push.bim")

	_, stderr, err := execute(t, NewGenerateCommand(), "-m", filepath.Join(dir, "missing.bim"), "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stderr, "file not found")

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestGenerate_FlagValidation(t *testing.T) {
	useEnvConfig(t, "json")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no model", []string{"--out", "x.bim"}, "no model given"},
		{"no output", []string{"-m", "x.bim"}, "no output given"},
		{"remote watch", []string{"-m", "s3://bucket/x.bim", "--out", "y.bim", "--watch"}, "--watch needs a local model file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, NewGenerateCommand(), tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWatchFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "model.bim", compatibleModel)
	other := writeFile(t, dir, "other.bim", compatibleModel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- watchFile(ctx, path, testutil.NewTestLogger(t), func() { calls.Add(1) })
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(other, []byte("{}"), 0600))
	for range 3 {
		require.NoError(t, os.WriteFile(path, []byte(compatibleModel), 0600))
	}

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(3 * watchDebounce)
	assert.Less(t, calls.Load(), int32(3), "writes in quick succession are debounced")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/pushset/internal/cli/config"
	"github.com/leapstack-labs/pushset/internal/powerbi"
	"github.com/leapstack-labs/pushset/internal/testutil"
)

const testModel = `{
  "name": "SalesModel",
  "compatibilityLevel": 1550,
  "model": {
    "tables": [
      {
        "name": "Sales",
        "columns": [
          {"name": "Amount", "dataType": "double"},
          {"name": "DateKey", "dataType": "dateTime"}
        ],
        "measures": [
          {"name": "Total", "expression": "SUM(Sales[Amount])"},
          {"name": "Shipped", "expression": "CALCULATE([Total], USERELATIONSHIP(Sales[DateKey], 'Date'[Date]))"},
          {"name": "Share", "expression": "DIVIDE([Shipped], [Total])"},
          {"name": "Double", "expression": "[Total] * 2"}
        ]
      },
      {
        "name": "Date",
        "columns": [{"name": "Date", "dataType": "dateTime"}]
      }
    ],
    "relationships": [
      {"name": "r1", "fromTable": "Sales", "fromColumn": "DateKey", "toTable": "Date", "toColumn": "Date"}
    ]
  }
}`

const compatibleModel = `{
  "name": "Stock",
  "model": {
    "tables": [
      {"name": "Stock", "columns": [{"name": "Qty", "dataType": "int64"}], "measures": [{"name": "Units", "expression": "SUM(Stock[Qty])"}]}
    ]
  }
}`

// writeFile writes content to name inside a temporary directory.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// execute runs cmd with args and returns what it wrote to stdout and stderr.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	return executeWithLogger(t, testutil.NewTestLogger(t), cmd, args...)
}

func executeWithLogger(t *testing.T, logger *slog.Logger, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(config.WithLogger(context.Background(), logger))
	return stdout.String(), stderr.String(), err
}

// useEnvConfig makes commands fall back to environment configuration.
func useEnvConfig(t *testing.T, output string) {
	t.Helper()
	config.ResetConfig()
	t.Setenv(config.EnvPrefix+"OUTPUT", output)
	t.Setenv(config.EnvPrefix+"STATE_PATH", filepath.Join(t.TempDir(), "state.db"))
	t.Cleanup(config.ResetConfig)
}

// fakePowerBI serves the token endpoint and the push dataset API of group g1.
type fakePowerBI struct {
	mu       sync.Mutex
	datasets []powerbi.Dataset
	tables   []string
	calls    []string
	bodies   map[string]string
	rows     map[string]int
	nextID   string
}

func newFakePowerBI() *fakePowerBI {
	return &fakePowerBI{
		bodies: make(map[string]string),
		rows:   make(map[string]int),
		nextID: "ds-new",
	}
}

const groupPrefix = "/v1.0/myorg/groups/g1"

func (f *fakePowerBI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if strings.HasSuffix(r.URL.Path, "/oauth2/v2.0/token") {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"tok","token_type":"Bearer","expires_in":3600}`)
		return
	}
	if r.Header.Get("Authorization") != "Bearer tok" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, groupPrefix)
	call := r.Method + " " + rest
	f.calls = append(f.calls, call)
	body, _ := io.ReadAll(r.Body)
	f.bodies[call] = string(body)
	parts := strings.Split(rest, "/")

	switch {
	case r.Method == http.MethodGet && rest == "/datasets":
		_ = json.NewEncoder(w).Encode(map[string]any{"value": f.datasets})

	case r.Method == http.MethodPost && rest == "/datasets":
		var req struct {
			Name string `json:"name"`
		}
		_ = json.Unmarshal(body, &req)
		ds := powerbi.Dataset{ID: f.nextID, Name: req.Name}
		f.datasets = append(f.datasets, ds)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(ds)

	case r.Method == http.MethodDelete && len(parts) == 3:
		for i, ds := range f.datasets {
			if ds.ID == parts[2] {
				f.datasets = append(f.datasets[:i], f.datasets[i+1:]...)
				break
			}
		}

	case r.Method == http.MethodGet && len(parts) == 4 && parts[3] == "tables":
		value := make([]powerbi.Table, 0, len(f.tables))
		for _, t := range f.tables {
			value = append(value, powerbi.Table{Name: t})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"value": value})

	case r.Method == http.MethodPut && len(parts) == 5:

	case r.Method == http.MethodDelete && len(parts) == 6 && parts[5] == "rows":

	case r.Method == http.MethodPost && len(parts) == 6 && parts[5] == "rows":
		var req struct {
			Rows []map[string]any `json:"rows"`
		}
		_ = json.Unmarshal(body, &req)
		f.rows[parts[4]] += len(req.Rows)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakePowerBI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakePowerBI) Rows(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[table]
}

// setupAPI starts a fake API and loads a configuration pointing at it.
// extra is appended to the generated config file.
func setupAPI(t *testing.T, extra string) (*fakePowerBI, string) {
	t.Helper()
	fake := newFakePowerBI()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	statePath := filepath.Join(dir, "state.db")
	cfg := `tenant: t1
principal: p1
secret: s1
group: g1
output: json
state_path: ` + statePath + `
api:
  base_url: ` + srv.URL + `/v1.0/myorg
  authority: ` + srv.URL + `
  posts_per_minute: 0
` + extra

	config.ResetConfig()
	t.Cleanup(config.ResetConfig)
	_, err := config.LoadConfig(writeFile(t, dir, "pushset.yaml", cfg), nil)
	require.NoError(t, err)
	return fake, statePath
}

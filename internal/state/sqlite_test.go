package state

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenMigrated(":memory:", nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore(nil)

	if err := store.Open(":memory:"); err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)
	if err := store.Migrate(); err == nil {
		t.Error("expected error migrating unopened store")
	}
	if _, err := store.ListRuns(context.Background(), 1); err == nil {
		t.Error("expected error listing runs of unopened store")
	}
}

func TestSQLiteStore_Migrate(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.GetMigrationVersion()
	if err != nil {
		t.Fatalf("failed to get version: %v", err)
	}
	if version != 1 {
		t.Errorf("expected migration version 1, got %d", version)
	}

	for _, table := range []string{"datasets", "sync_runs", "table_writes"} {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		if err != nil {
			t.Errorf("table %s does not exist: %v", table, err)
			continue
		}
		_ = rows.Close()
	}

	// A second run is a no-op.
	if err := store.Migrate(); err != nil {
		t.Errorf("second migrate failed: %v", err)
	}
}

func TestSQLiteStore_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")

	store, err := OpenMigrated(path, nil)
	if err != nil {
		t.Fatalf("failed to open file store: %v", err)
	}
	ctx := context.Background()
	if err := store.SaveDataset(ctx, &Dataset{ID: "d1", Name: "Sales", Group: "g"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	_ = store.Close()

	reopened, err := OpenMigrated(path, nil)
	if err != nil {
		t.Fatalf("failed to reopen: %v", err)
	}
	defer reopened.Close()

	if _, err := reopened.GetDataset(ctx, "d1"); err != nil {
		t.Errorf("dataset not persisted: %v", err)
	}
}

func TestSQLiteStore_Datasets(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	d := &Dataset{ID: "d1", Name: "Sales", Group: "ws", ModelPath: "model.bim"}
	if err := store.SaveDataset(ctx, d); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if d.RetentionPolicy != "None" {
		t.Errorf("expected default retention None, got %q", d.RetentionPolicy)
	}
	created := d.CreatedAt

	d.RetentionPolicy = "basicFIFO"
	if err := store.SaveDataset(ctx, d); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	got, err := store.FindDataset(ctx, "ws", "Sales")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if got.ID != "d1" || got.RetentionPolicy != "basicFIFO" || got.ModelPath != "model.bim" {
		t.Errorf("unexpected dataset: %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("created_at changed on update: %v != %v", got.CreatedAt, created)
	}

	if _, err := store.FindDataset(ctx, "other", "Sales"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for other group, got %v", err)
	}

	if err := store.SaveDataset(ctx, &Dataset{ID: "d0", Name: "Alpha", Group: "ws"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	all, err := store.ListDatasets(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 2 || all[0].Name != "Alpha" || all[1].Name != "Sales" {
		t.Errorf("unexpected list order: %+v", all)
	}

	if err := store.DeleteDataset(ctx, "d1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.GetDataset(ctx, "d1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.DeleteDataset(ctx, "missing"); err != nil {
		t.Errorf("deleting a missing dataset should not fail: %v", err)
	}
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	tests := []struct {
		name    string
		writes  []TableWrite
		runErr  error
		status  RunStatus
		rows    int64
		wantErr string
	}{
		{
			name:   "completed refresh",
			writes: []TableWrite{{Table: "Sales", Rows: 9000, Cleared: true}, {Table: "Sales", Rows: 12}, {Table: "Product", Rows: 3, Cleared: true}},
			status: RunStatusCompleted,
			rows:   9015,
		},
		{
			name:    "failed run keeps partial rows",
			writes:  []TableWrite{{Table: "Sales", Rows: 5}},
			runErr:  errors.New("POST rows: 400 Bad Request"),
			status:  RunStatusFailed,
			rows:    5,
			wantErr: "POST rows: 400 Bad Request",
		},
		{
			name:   "no writes",
			status: RunStatusCompleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)
			ctx := context.Background()

			run, err := store.StartRun(ctx, OpRefresh, "", "Sales")
			if err != nil {
				t.Fatalf("start failed: %v", err)
			}
			if run.Status != RunStatusRunning {
				t.Errorf("expected running, got %s", run.Status)
			}
			if err := store.SetRunDataset(ctx, run.ID, "d1", "Sales"); err != nil {
				t.Fatalf("set dataset failed: %v", err)
			}

			for _, w := range tt.writes {
				w.RunID = run.ID
				if err := store.RecordTableWrite(ctx, w); err != nil {
					t.Fatalf("record failed: %v", err)
				}
			}
			if err := store.CompleteRun(ctx, run.ID, tt.runErr); err != nil {
				t.Fatalf("complete failed: %v", err)
			}

			got, err := store.GetRun(ctx, run.ID)
			if err != nil {
				t.Fatalf("get failed: %v", err)
			}
			if got.Status != tt.status {
				t.Errorf("status = %s, want %s", got.Status, tt.status)
			}
			if got.Rows != tt.rows {
				t.Errorf("rows = %d, want %d", got.Rows, tt.rows)
			}
			if got.Error != tt.wantErr {
				t.Errorf("error = %q, want %q", got.Error, tt.wantErr)
			}
			if got.DatasetID != "d1" || got.Operation != OpRefresh {
				t.Errorf("unexpected run: %+v", got)
			}
			if got.CompletedAt == nil || got.Duration() < 0 {
				t.Errorf("expected completion time, got %+v", got.CompletedAt)
			}

			writes, err := store.TableWrites(ctx, run.ID)
			if err != nil {
				t.Fatalf("table writes failed: %v", err)
			}
			if len(writes) != len(tt.writes) {
				t.Fatalf("got %d writes, want %d", len(writes), len(tt.writes))
			}
			for i, w := range writes {
				if w.Table != tt.writes[i].Table || w.Rows != tt.writes[i].Rows || w.Cleared != tt.writes[i].Cleared {
					t.Errorf("write %d = %+v, want %+v", i, w, tt.writes[i])
				}
			}
		})
	}
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var ids []string
	for _, op := range []Operation{OpPublish, OpRefresh, OpClear} {
		run, err := store.StartRun(ctx, op, "d1", "Sales")
		if err != nil {
			t.Fatalf("start failed: %v", err)
		}
		ids = append(ids, run.ID)
	}

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != ids[2] || runs[1].ID != ids[1] {
		t.Errorf("expected newest first, got %s, %s", runs[0].Operation, runs[1].Operation)
	}
	if runs[0].Duration() != 0 {
		t.Errorf("running run should have zero duration")
	}

	all, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 runs, got %d", len(all))
	}

	if _, err := store.GetRun(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

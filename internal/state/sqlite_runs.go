package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// StartRun records a new running operation.
func (s *SQLiteStore) StartRun(ctx context.Context, op Operation, datasetID, datasetName string) (*SyncRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &SyncRun{
		ID:          generateID(),
		Operation:   op,
		DatasetID:   datasetID,
		DatasetName: datasetName,
		Status:      RunStatusRunning,
		StartedAt:   time.Now().UTC(),
	}

	s.logger.Debug("starting run", slog.String("id", run.ID), slog.String("operation", string(op)))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_runs (id, operation, dataset_id, dataset_name, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Operation, run.DatasetID, run.DatasetName, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// SetRunDataset updates the dataset of a run once it is known.
func (s *SQLiteStore) SetRunDataset(ctx context.Context, runID, datasetID, datasetName string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_runs SET dataset_id = ?, dataset_name = ? WHERE id = ?`,
		datasetID, datasetName, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// RecordTableWrite adds the rows written to one table and bumps the run total.
func (s *SQLiteStore) RecordTableWrite(ctx context.Context, w TableWrite) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if w.WrittenAt.IsZero() {
		w.WrittenAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO table_writes (run_id, table_name, row_count, cleared, written_at) VALUES (?, ?, ?, ?, ?)`,
		w.RunID, w.Table, w.Rows, w.Cleared, w.WrittenAt,
	); err != nil {
		return fmt.Errorf("failed to record table write: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sync_runs SET rows_written = rows_written + ? WHERE id = ?`,
		w.Rows, w.RunID,
	); err != nil {
		return fmt.Errorf("failed to update run rows: %w", err)
	}
	return tx.Commit()
}

// CompleteRun marks a run as finished. A non-nil runErr marks it failed.
func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, runErr error) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	status := RunStatusCompleted
	var errMsg *string
	if runErr != nil {
		status = RunStatusFailed
		msg := runErr.Error()
		errMsg = &msg
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		status, time.Now().UTC(), errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

const runColumns = `id, operation, dataset_id, dataset_name, status, rows_written, error, started_at, completed_at`

func scanRun(row interface{ Scan(...any) error }) (*SyncRun, error) {
	run := &SyncRun{}
	var (
		errMsg      sql.NullString
		completedAt sql.NullTime
	)
	if err := row.Scan(&run.ID, &run.Operation, &run.DatasetID, &run.DatasetName, &run.Status,
		&run.Rows, &errMsg, &run.StartedAt, &completedAt); err != nil {
		return nil, err
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return run, nil
}

// GetRun retrieves a run by id.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*SyncRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM sync_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A limit of zero or less returns all runs.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*SyncRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM sync_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// TableWrites returns the table writes of a run in write order.
func (s *SQLiteStore) TableWrites(ctx context.Context, runID string) ([]TableWrite, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, table_name, row_count, cleared, written_at FROM table_writes WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list table writes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []TableWrite
	for rows.Next() {
		var w TableWrite
		if err := rows.Scan(&w.RunID, &w.Table, &w.Rows, &w.Cleared, &w.WrittenAt); err != nil {
			return nil, fmt.Errorf("failed to scan table write: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

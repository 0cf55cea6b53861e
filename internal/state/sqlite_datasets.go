package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// SaveDataset inserts or updates a dataset record.
func (s *SQLiteStore) SaveDataset(ctx context.Context, d *Dataset) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	if d.RetentionPolicy == "" {
		d.RetentionPolicy = "None"
	}

	s.logger.Debug("saving dataset", slog.String("id", d.ID), slog.String("name", d.Name))

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO datasets (id, name, group_id, retention_policy, model_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			group_id = excluded.group_id,
			retention_policy = excluded.retention_policy,
			model_path = excluded.model_path,
			updated_at = excluded.updated_at`,
		d.ID, d.Name, d.Group, d.RetentionPolicy, d.ModelPath, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save dataset: %w", err)
	}
	return nil
}

const datasetColumns = `id, name, group_id, retention_policy, model_path, created_at, updated_at`

func scanDataset(row interface{ Scan(...any) error }) (*Dataset, error) {
	d := &Dataset{}
	if err := row.Scan(&d.ID, &d.Name, &d.Group, &d.RetentionPolicy, &d.ModelPath, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	return d, nil
}

// GetDataset retrieves a dataset by id.
func (s *SQLiteStore) GetDataset(ctx context.Context, id string) (*Dataset, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	d, err := scanDataset(s.db.QueryRowContext(ctx, `SELECT `+datasetColumns+` FROM datasets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dataset %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}
	return d, nil
}

// FindDataset retrieves the most recently updated dataset with name in group.
func (s *SQLiteStore) FindDataset(ctx context.Context, group, name string) (*Dataset, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	d, err := scanDataset(s.db.QueryRowContext(ctx,
		`SELECT `+datasetColumns+` FROM datasets WHERE group_id = ? AND name = ? ORDER BY updated_at DESC LIMIT 1`,
		group, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dataset %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find dataset: %w", err)
	}
	return d, nil
}

// ListDatasets returns all recorded datasets ordered by name.
func (s *SQLiteStore) ListDatasets(ctx context.Context) ([]*Dataset, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+datasetColumns+` FROM datasets ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteDataset removes a dataset record. Deleting a missing record is not an error.
func (s *SQLiteStore) DeleteDataset(ctx context.Context, id string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM datasets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	return nil
}

package pushsync

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/leapstack-labs/pushset/internal/powerbi"
	"github.com/leapstack-labs/pushset/internal/source"
)

// Querier runs a query. *sql.DB satisfies it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// RefreshOptions controls Refresh.
type RefreshOptions struct {
	// Append keeps existing rows instead of clearing each target table first.
	Append bool
	// Progress, when set, is called with rows = -1 when a table starts and
	// with the size of each posted batch.
	Progress func(table string, rows int)
}

// Refresh runs each statement and writes its result set to the table named
// by its columns or its table hint. Tables are processed in statement order;
// unless opts.Append is set a table is cleared before its first batch.
func (d *Driver) Refresh(ctx context.Context, datasetID string, q Querier, stmts []source.Statement, opts RefreshOptions) ([]TableResult, error) {
	progress := opts.Progress
	if progress == nil {
		progress = func(string, int) {}
	}

	var results []TableResult
	for _, stmt := range stmts {
		res, err := d.refreshStatement(ctx, datasetID, q, stmt, opts.Append, progress)
		if res.Table != "" {
			results = append(results, res)
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (d *Driver) refreshStatement(ctx context.Context, datasetID string, q Querier, stmt source.Statement, appendRows bool, progress func(string, int)) (TableResult, error) {
	rows, err := q.QueryContext(ctx, stmt.SQL)
	if err != nil {
		return TableResult{}, fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names, err := rows.Columns()
	if err != nil {
		return TableResult{}, fmt.Errorf("failed to read columns: %w", err)
	}
	table, fields, err := source.TargetColumns(names, stmt.Table)
	if err != nil {
		return TableResult{}, err
	}

	result := TableResult{Table: table}
	progress(table, -1)
	d.logger.Debug("refreshing table", "dataset", datasetID, "table", table, "append", appendRows)

	if !appendRows {
		if err := d.api.DeleteRows(ctx, datasetID, table); err != nil {
			return result, fmt.Errorf("failed to clear table %s: %w", table, err)
		}
		result.Cleared = true
	}

	values := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range values {
		ptrs[i] = &values[i]
	}

	flush := func(batch []powerbi.Row) error {
		if len(batch) == 0 {
			return nil
		}
		progress(table, len(batch))
		if err := d.api.PostRows(ctx, datasetID, table, batch); err != nil {
			return fmt.Errorf("failed to post rows to %s: %w", table, err)
		}
		result.Rows += len(batch)
		return nil
	}

	batch := make([]powerbi.Row, 0, MaxRowsPerPost)
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return result, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(powerbi.Row, len(fields))
		for i, f := range fields {
			if f != "" {
				row[f] = normalize(values[i])
			}
		}
		batch = append(batch, row)

		if len(batch) >= MaxRowsPerPost {
			if err := flush(batch); err != nil {
				return result, err
			}
			batch = make([]powerbi.Row, 0, MaxRowsPerPost)
		}
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("failed to read rows: %w", err)
	}
	if err := flush(batch); err != nil {
		return result, err
	}
	return result, nil
}

// normalize converts driver values into JSON-friendly ones.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

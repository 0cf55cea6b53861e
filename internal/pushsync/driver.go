// Package pushsync creates, alters and fills push datasets.
package pushsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/pushset/internal/powerbi"
	"github.com/leapstack-labs/pushset/pkg/pushschema"
	"github.com/leapstack-labs/pushset/pkg/tabular"
)

// MaxRowsPerPost is the largest batch sent in one post-rows call.
const MaxRowsPerPost = 9000

var (
	// ErrDatasetExists is returned by Publish when the dataset exists and overwrite is off.
	ErrDatasetExists = errors.New("dataset already exists")
	// ErrDatasetNotFound is returned when a dataset name matches no dataset of the workspace.
	ErrDatasetNotFound = errors.New("dataset not found")
)

// API is the subset of the REST client used by the driver.
type API interface {
	ListDatasets(ctx context.Context) ([]powerbi.Dataset, error)
	CreateDataset(ctx context.Context, req *pushschema.DatasetRequest, policy powerbi.RetentionPolicy) (*powerbi.Dataset, error)
	DeleteDataset(ctx context.Context, datasetID string) error
	ListTables(ctx context.Context, datasetID string) ([]powerbi.Table, error)
	PutTable(ctx context.Context, datasetID string, table *pushschema.Table) error
	DeleteRows(ctx context.Context, datasetID, table string) error
	PostRows(ctx context.Context, datasetID, table string, rows []powerbi.Row) error
}

var _ API = (*powerbi.Client)(nil)

// Target addresses a dataset by id or, when ID is empty, by name.
type Target struct {
	ID   string
	Name string
}

func (t Target) String() string {
	if t.ID != "" {
		return t.ID
	}
	return t.Name
}

// TableResult reports the rows written to one table.
type TableResult struct {
	Table   string
	Rows    int
	Cleared bool
}

// Driver runs dataset operations against the API.
type Driver struct {
	api    API
	logger *slog.Logger
}

// New creates a driver. The logger parameter may be nil (uses discard logger).
func New(api API, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Driver{api: api, logger: logger}
}

// findByName returns the first dataset named name, or nil.
func (d *Driver) findByName(ctx context.Context, name string) (*powerbi.Dataset, error) {
	datasets, err := d.api.ListDatasets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	for i := range datasets {
		if datasets[i].Name == name {
			return &datasets[i], nil
		}
	}
	return nil, nil
}

// Resolve returns the id of the target dataset, looking the name up when no id is given.
func (d *Driver) Resolve(ctx context.Context, target Target) (string, error) {
	if target.ID != "" {
		return target.ID, nil
	}
	if target.Name == "" {
		return "", errors.New("no dataset name or id given")
	}
	ds, err := d.findByName(ctx, target.Name)
	if err != nil {
		return "", err
	}
	if ds == nil {
		return "", fmt.Errorf("%w: %s", ErrDatasetNotFound, target.Name)
	}
	d.logger.Debug("resolved dataset", "name", target.Name, "id", ds.ID)
	return ds.ID, nil
}

// PublishOptions controls Publish.
type PublishOptions struct {
	Name string
	// Overwrite deletes an existing dataset with the same name first.
	Overwrite bool
	// FIFO selects the basicFIFO retention policy.
	FIFO bool
}

// PublishResult describes a created dataset.
type PublishResult struct {
	Dataset powerbi.Dataset
	// ReplacedID is the id of the dataset deleted by Overwrite, if any.
	ReplacedID string
	Policy     powerbi.RetentionPolicy
	Check      pushschema.CheckResult
	Request    *pushschema.DatasetRequest
}

// Publish creates a push dataset from the supported part of m.
// The request is built before any existing dataset is deleted.
func (d *Driver) Publish(ctx context.Context, m *tabular.Model, opts PublishOptions) (*PublishResult, error) {
	if opts.Name == "" {
		return nil, errors.New("dataset name is required")
	}

	req, check, err := pushschema.BuildDatasetRequest(opts.Name, m)
	if err != nil {
		return nil, err
	}

	result := &PublishResult{Policy: powerbi.RetentionNone, Check: check, Request: req}
	if opts.FIFO {
		result.Policy = powerbi.RetentionBasicFIFO
	}

	existing, err := d.findByName(ctx, opts.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !opts.Overwrite {
			return nil, fmt.Errorf("%w: %s (id %s)", ErrDatasetExists, opts.Name, existing.ID)
		}
		d.logger.Info("deleting existing dataset", "name", opts.Name, "id", existing.ID)
		if err := d.api.DeleteDataset(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("failed to delete dataset %s: %w", existing.ID, err)
		}
		result.ReplacedID = existing.ID
	}

	ds, err := d.api.CreateDataset(ctx, req, result.Policy)
	if err != nil {
		return nil, fmt.Errorf("failed to create dataset %s: %w", opts.Name, err)
	}
	result.Dataset = *ds
	d.logger.Info("created dataset", "name", opts.Name, "id", ds.ID, "tables", len(req.Tables))
	return result, nil
}

// AlterResult lists the tables replaced by Alter.
type AlterResult struct {
	DatasetID string
	Tables    []string
	Check     pushschema.CheckResult
}

// Alter replaces the schema of every supported table of m in an existing dataset.
func (d *Driver) Alter(ctx context.Context, target Target, m *tabular.Model) (*AlterResult, error) {
	tables, check, err := pushschema.ProjectTables(m)
	if err != nil {
		return nil, err
	}

	id, err := d.Resolve(ctx, target)
	if err != nil {
		return nil, err
	}

	result := &AlterResult{DatasetID: id, Check: check}
	for _, t := range tables {
		if err := d.api.PutTable(ctx, id, t); err != nil {
			return result, fmt.Errorf("failed to update table %s: %w", t.Name, err)
		}
		result.Tables = append(result.Tables, t.Name)
		d.logger.Debug("updated table", "dataset", id, "table", t.Name)
	}
	return result, nil
}

// Clear removes all rows from every table of the dataset. onTable, when
// set, is called before each table is cleared.
func (d *Driver) Clear(ctx context.Context, datasetID string, onTable func(table string)) ([]TableResult, error) {
	tables, err := d.api.ListTables(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	var results []TableResult
	for _, t := range tables {
		if onTable != nil {
			onTable(t.Name)
		}
		if err := d.api.DeleteRows(ctx, datasetID, t.Name); err != nil {
			return results, fmt.Errorf("failed to clear table %s: %w", t.Name, err)
		}
		results = append(results, TableResult{Table: t.Name, Cleared: true})
	}
	return results, nil
}

// postInBatches posts rows in chunks of MaxRowsPerPost.
func (d *Driver) postInBatches(ctx context.Context, datasetID, table string, rows []powerbi.Row) error {
	for start := 0; start < len(rows); start += MaxRowsPerPost {
		end := min(start+MaxRowsPerPost, len(rows))
		if err := d.api.PostRows(ctx, datasetID, table, rows[start:end]); err != nil {
			return fmt.Errorf("failed to post rows to %s: %w", table, err)
		}
	}
	return nil
}

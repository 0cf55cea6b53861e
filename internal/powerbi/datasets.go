package powerbi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/leapstack-labs/pushset/pkg/pushschema"
)

// RetentionPolicy is the defaultRetentionPolicy of a new push dataset.
type RetentionPolicy string

// Retention policies.
const (
	RetentionNone      RetentionPolicy = "None"
	RetentionBasicFIFO RetentionPolicy = "basicFIFO"
)

// Dataset is a dataset in a workspace.
type Dataset struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	AddRowsAPIEnabled bool   `json:"addRowsAPIEnabled,omitempty"`
	ConfiguredBy      string `json:"configuredBy,omitempty"`
	DefaultMode       string `json:"defaultMode,omitempty"`
}

// Table is a table of a push dataset as listed by the API.
type Table struct {
	Name string `json:"name"`
}

// Row is one row posted to a push dataset table, keyed by column name.
type Row = map[string]any

type listResponse[T any] struct {
	Value []T `json:"value"`
}

type postRowsRequest struct {
	Rows []Row `json:"rows"`
}

// ListDatasets returns the datasets of the workspace.
func (c *Client) ListDatasets(ctx context.Context) ([]Dataset, error) {
	var resp listResponse[Dataset]
	if err := c.do(ctx, http.MethodGet, c.groupPath("datasets"), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// CreateDataset creates a push dataset and returns it with its new id.
func (c *Client) CreateDataset(ctx context.Context, req *pushschema.DatasetRequest, policy RetentionPolicy) (*Dataset, error) {
	if policy == "" {
		policy = RetentionNone
	}
	query := url.Values{"defaultRetentionPolicy": []string{string(policy)}}

	var ds Dataset
	if err := c.do(ctx, http.MethodPost, c.groupPath("datasets"), query, req, &ds); err != nil {
		return nil, err
	}
	if ds.ID == "" {
		return nil, fmt.Errorf("create dataset %q: response has no id", req.Name)
	}
	return &ds, nil
}

// DeleteDataset deletes a dataset.
func (c *Client) DeleteDataset(ctx context.Context, datasetID string) error {
	return c.do(ctx, http.MethodDelete, c.groupPath("datasets", datasetID), nil, nil, nil)
}

// ListTables returns the tables of a push dataset.
func (c *Client) ListTables(ctx context.Context, datasetID string) ([]Table, error) {
	var resp listResponse[Table]
	if err := c.do(ctx, http.MethodGet, c.groupPath("datasets", datasetID, "tables"), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// PutTable replaces the schema of a table in a push dataset.
func (c *Client) PutTable(ctx context.Context, datasetID string, table *pushschema.Table) error {
	return c.do(ctx, http.MethodPut, c.groupPath("datasets", datasetID, "tables", table.Name), nil, table, nil)
}

// DeleteRows removes every row of a table.
func (c *Client) DeleteRows(ctx context.Context, datasetID, table string) error {
	return c.do(ctx, http.MethodDelete, c.groupPath("datasets", datasetID, "tables", table, "rows"), nil, nil, nil)
}

// PostRows appends rows to a table. Calls wait on the client's rate limiter.
func (c *Client) PostRows(ctx context.Context, datasetID, table string, rows []Row) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("post rows to %s: %w", table, err)
	}
	if rows == nil {
		rows = []Row{}
	}
	return c.do(ctx, http.MethodPost, c.groupPath("datasets", datasetID, "tables", table, "rows"), nil, postRowsRequest{Rows: rows}, nil)
}

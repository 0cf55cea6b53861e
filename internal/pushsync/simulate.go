package pushsync

import (
	"context"

	"github.com/leapstack-labs/pushset/internal/simulator"
)

// PushSimulation writes one generated batch to every configured table, in
// configuration order.
func (d *Driver) PushSimulation(ctx context.Context, datasetID string, params *simulator.Parameters, gen *simulator.Generator) ([]TableResult, error) {
	var results []TableResult
	for _, t := range params.Tables {
		rows, err := gen.Batch(t)
		if err != nil {
			return results, err
		}
		if err := d.postInBatches(ctx, datasetID, t.Name, rows); err != nil {
			return results, err
		}
		results = append(results, TableResult{Table: t.Name, Rows: len(rows)})
	}
	return results, nil
}

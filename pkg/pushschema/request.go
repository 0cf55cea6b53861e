package pushschema

import (
	"fmt"

	"github.com/leapstack-labs/pushset/pkg/tabular"
)

// BuildDatasetRequest checks m and projects its supported objects into the
// body of a create-dataset call. m is not modified.
func BuildDatasetRequest(name string, m *tabular.Model) (*DatasetRequest, CheckResult, error) {
	if m == nil {
		return nil, CheckResult{}, fmt.Errorf("model is nil")
	}

	check := Check(m)
	req := &DatasetRequest{
		Name:        name,
		DefaultMode: DefaultMode,
		Tables:      make([]*Table, 0, len(m.Tables)),
	}

	for _, t := range m.Tables {
		if check.IsUnsupportedTable(t.Name) {
			continue
		}
		pt, err := ProjectTable(t, check.IsUnsupportedMeasure)
		if err != nil {
			return nil, check, err
		}
		req.Tables = append(req.Tables, pt)
	}

	for _, r := range m.Relationships {
		if check.IsUnsupportedTable(r.FromTable) || check.IsUnsupportedTable(r.ToTable) {
			continue
		}
		rel, ok, err := TranslateRelationship(r)
		if err != nil {
			return nil, check, err
		}
		if ok {
			req.Relationships = append(req.Relationships, rel)
		}
	}

	return req, check, nil
}

// ProjectTables projects every supported table of m, for callers that update
// the tables of an existing dataset.
func ProjectTables(m *tabular.Model) ([]*Table, CheckResult, error) {
	req, check, err := BuildDatasetRequest("", m)
	if err != nil {
		return nil, check, err
	}
	return req.Tables, check, nil
}

package pushschema

import (
	"github.com/leapstack-labs/pushset/pkg/tabular"
)

// Report lists the objects removed by a reduction, in removal order.
type Report struct {
	RemovedMeasures      []UnsupportedMeasure      `json:"removed_measures"`
	RemovedRelationships []UnsupportedRelationship `json:"removed_relationships"`
	RemovedTables        []UnsupportedTable        `json:"removed_tables"`
}

// Empty reports whether nothing was removed.
func (r *Report) Empty() bool {
	return len(r.RemovedMeasures) == 0 && len(r.RemovedRelationships) == 0 && len(r.RemovedTables) == 0
}

// Reduce removes the unsupported objects of m in place: measures from their
// tables first, then relationships, then tables. Column types of the tables
// that survive are validated before anything is removed, so an
// *UnsupportedDataTypeError leaves m untouched.
func Reduce(m *tabular.Model) (Report, error) {
	var report Report
	if m == nil {
		return report, nil
	}

	check := Check(m)

	surviving := make([]*tabular.Table, 0, len(m.Tables))
	for _, t := range m.Tables {
		if !check.IsUnsupportedTable(t.Name) {
			surviving = append(surviving, t)
		}
	}
	if err := validateColumnTypes(surviving); err != nil {
		return report, err
	}

	for _, u := range check.Measures {
		if t := m.Table(u.Table); t != nil && t.RemoveMeasure(u.Name) {
			report.RemovedMeasures = append(report.RemovedMeasures, u)
		}
	}

	for _, u := range check.Relationships {
		if m.RemoveRelationship(u.source) {
			report.RemovedRelationships = append(report.RemovedRelationships, u)
		}
	}

	for _, u := range check.Tables {
		if m.RemoveTable(u.Name) {
			report.RemovedTables = append(report.RemovedTables, u)
		}
	}

	return report, nil
}

// ReduceCopy reduces a deep copy of m and leaves m unchanged.
func ReduceCopy(m *tabular.Model) (*tabular.Model, Report, error) {
	reduced := m.Clone()
	report, err := Reduce(reduced)
	if err != nil {
		return nil, report, err
	}
	return reduced, report, nil
}

package pushschema

import (
	"github.com/leapstack-labs/pushset/pkg/tabular"
)

// ReservedTableName is the table name push datasets refuse.
const ReservedTableName = "Date"

// UnsupportedTable is a table that cannot be published.
type UnsupportedTable struct {
	Name   string `json:"name"`
	Reason Reason `json:"reason"`
}

// CheckResult lists the unsupported objects of a model, in model order.
type CheckResult struct {
	Tables        []UnsupportedTable        `json:"unsupported_tables"`
	Measures      []UnsupportedMeasure      `json:"unsupported_measures"`
	Relationships []UnsupportedRelationship `json:"unsupported_relationships"`

	classification Classification
}

// Compatible reports whether the model can be published unchanged.
func (r CheckResult) Compatible() bool {
	return len(r.Tables) == 0 && len(r.Measures) == 0 && len(r.Relationships) == 0
}

// IsUnsupportedTable reports whether the named table is listed as unsupported.
func (r CheckResult) IsUnsupportedTable(name string) bool {
	for _, t := range r.Tables {
		if t.Name == name {
			return true
		}
	}
	return false
}

// IsUnsupportedMeasure reports whether the measure owned by table is listed as unsupported.
func (r CheckResult) IsUnsupportedMeasure(table, name string) bool {
	return r.classification.IsUnsupported(table, name)
}

// SupportedMeasures returns the measures that survive classification.
func (r CheckResult) SupportedMeasures() []tabular.MeasureRef {
	return r.classification.Supported
}

// TableSupport reports why a table is unsupported, or "" when it is supported.
func TableSupport(t *tabular.Table) Reason {
	if t.Name == ReservedTableName {
		return ReasonReservedTableName
	}
	return ""
}

// Check classifies every table, measure and relationship of m. It never
// mutates m; a nil model is compatible.
func Check(m *tabular.Model) CheckResult {
	var result CheckResult
	if m == nil {
		return result
	}

	for _, t := range m.Tables {
		if reason := TableSupport(t); reason != "" {
			result.Tables = append(result.Tables, UnsupportedTable{Name: t.Name, Reason: reason})
		}
	}

	tables := make([]string, 0, len(result.Tables))
	for _, t := range result.Tables {
		tables = append(tables, t.Name)
	}
	result.classification = ClassifyMeasures(m.AllMeasures(), tables...)
	result.Measures = result.classification.Unsupported

	for _, r := range m.Relationships {
		reason := RelationshipSupport(r)
		if reason == "" && (result.IsUnsupportedTable(r.FromTable) || result.IsUnsupportedTable(r.ToTable)) {
			reason = ReasonOrphaned
		}
		if reason != "" {
			result.Relationships = append(result.Relationships, newUnsupportedRelationship(r, reason))
		}
	}

	return result
}

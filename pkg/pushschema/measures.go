package pushschema

import (
	"slices"
	"strings"

	"github.com/leapstack-labs/pushset/pkg/tabular"
)

// RelationshipOverrideMarker is the DAX function that activates a
// relationship inside a calculation. Push datasets have no inactive
// relationships, so measures using it cannot be published.
const RelationshipOverrideMarker = "USERELATIONSHIP"

// Reason explains why an object was classified as unsupported.
type Reason string

// Classification reasons.
const (
	ReasonRelationshipOverride Reason = "uses " + RelationshipOverrideMarker
	ReasonDependsOnUnsupported Reason = "references an unsupported measure"
	ReasonReservedTableName    Reason = "reserved table name"
	ReasonInactive             Reason = "inactive relationship"
	ReasonCardinality          Reason = "one-to-one and many-to-many relationships are not supported"
	ReasonOrphaned             Reason = "relationship endpoint table is not supported"
	ReasonOwnerUnsupported     Reason = "owning table is not supported"
)

// UnsupportedMeasure is a measure that cannot be published.
type UnsupportedMeasure struct {
	Table  string `json:"table"`
	Name   string `json:"name"`
	Reason Reason `json:"reason"`
	// Via names the unsupported measure this one references, if any.
	Via string `json:"via,omitempty"`
}

// Classification partitions the measures of a model.
type Classification struct {
	Supported   []tabular.MeasureRef
	Unsupported []UnsupportedMeasure
	// Passes is the number of scans needed to reach the fixpoint.
	Passes int
}

// IsUnsupported reports whether the measure owned by table is unsupported.
func (c Classification) IsUnsupported(table, name string) bool {
	for _, u := range c.Unsupported {
		if u.Table == table && u.Name == name {
			return true
		}
	}
	return false
}

// ClassifyMeasures splits measures into supported and unsupported.
//
// A measure owned by one of unsupportedTables is unsupported. Otherwise it is
// unsupported when its expression contains the relationship
// override marker or a bracketed reference [Name] to a measure already found
// unsupported, both matched case-insensitively as plain substrings. Scans
// repeat until one adds nothing. A measure found unsupported earlier in a
// scan already counts for the measures after it.
//
// Matching is textual, so a column reference such as Sales[Amount] also
// matches an unsupported measure named Amount.
func ClassifyMeasures(measures []tabular.MeasureRef, unsupportedTables ...string) Classification {
	var result Classification

	marker := strings.ToLower(RelationshipOverrideMarker)
	var (
		unsupportedRefs  []string // lower-cased "[name]" of unsupported measures
		unsupportedNames []string
	)

	remaining := measures
	for {
		result.Passes++
		found := false
		next := make([]tabular.MeasureRef, 0, len(remaining))
		for _, ref := range remaining {
			expr := strings.ToLower(ref.Measure.Expression.Text())

			if slices.Contains(unsupportedTables, ref.Table) {
				result.Unsupported = append(result.Unsupported, UnsupportedMeasure{
					Table:  ref.Table,
					Name:   ref.Name(),
					Reason: ReasonOwnerUnsupported,
				})
			} else if i, ok := referencedUnsupported(expr, unsupportedRefs); ok {
				result.Unsupported = append(result.Unsupported, UnsupportedMeasure{
					Table:  ref.Table,
					Name:   ref.Name(),
					Reason: ReasonDependsOnUnsupported,
					Via:    unsupportedNames[i],
				})
			} else if strings.Contains(expr, marker) {
				result.Unsupported = append(result.Unsupported, UnsupportedMeasure{
					Table:  ref.Table,
					Name:   ref.Name(),
					Reason: ReasonRelationshipOverride,
				})
			} else {
				next = append(next, ref)
				continue
			}
			unsupportedRefs = append(unsupportedRefs, "["+strings.ToLower(ref.Name())+"]")
			unsupportedNames = append(unsupportedNames, ref.Name())
			found = true
		}
		remaining = next
		if !found {
			break
		}
	}

	result.Supported = remaining
	return result
}

// referencedUnsupported returns the index of the first unsupported measure referenced by expr.
func referencedUnsupported(expr string, refs []string) (int, bool) {
	for i, ref := range refs {
		if strings.Contains(expr, ref) {
			return i, true
		}
	}
	return -1, false
}

// Package tabular provides the in-memory object graph of a tabular semantic
// model and its .bim (JSON) serialization.
//
// The graph is an arena: tables own their columns and measures, and
// relationships address tables and columns by name rather than by pointer.
// Removing a table therefore never leaves a dangling object reference, only
// names that callers can detect.
package tabular

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DataType is the declared data type of a column, using the TOM JSON names.
type DataType string

// Data types of the closed set supported by push datasets.
const (
	DataTypeInt64    DataType = "int64"
	DataTypeDouble   DataType = "double"
	DataTypeBoolean  DataType = "boolean"
	DataTypeDateTime DataType = "dateTime"
	DataTypeString   DataType = "string"
	DataTypeDecimal  DataType = "decimal"
)

// Cardinality is the cardinality of one end of a relationship.
type Cardinality string

// Relationship end cardinalities.
const (
	CardinalityOne  Cardinality = "one"
	CardinalityMany Cardinality = "many"
)

// CrossFilteringBehavior is the direction filter context propagates across a relationship.
type CrossFilteringBehavior string

// Cross-filtering behaviors.
const (
	CrossFilterOneDirection   CrossFilteringBehavior = "oneDirection"
	CrossFilterBothDirections CrossFilteringBehavior = "bothDirections"
	CrossFilterAutomatic      CrossFilteringBehavior = "automatic"
)

// String returns the PascalCase name used in diagnostics (e.g. OneDirection).
func (c CrossFilteringBehavior) String() string {
	if c == "" {
		return ""
	}
	return strings.ToUpper(string(c[:1])) + string(c[1:])
}

// Database is the root of a .bim document.
type Database struct {
	Name               string `json:"name,omitempty"`
	CompatibilityLevel int    `json:"compatibilityLevel,omitempty"`
	Model              *Model `json:"model"`

	// Extra holds document properties not modelled here.
	Extra map[string]json.RawMessage `json:"-"`
}

// Model is the semantic model: tables plus the relationships between them.
type Model struct {
	Name          string          `json:"name,omitempty"`
	Culture       string          `json:"culture,omitempty"`
	Tables        []*Table        `json:"tables,omitempty"`
	Relationships []*Relationship `json:"relationships,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Table is a model table. Partitions, hierarchies and annotations live in Extra.
type Table struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	IsHidden    bool       `json:"isHidden,omitempty"`
	Columns     []*Column  `json:"columns,omitempty"`
	Measures    []*Measure `json:"measures,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Column is a table column.
type Column struct {
	Name         string   `json:"name"`
	DataType     DataType `json:"dataType,omitempty"`
	DataCategory string   `json:"dataCategory,omitempty"`
	FormatString string   `json:"formatString,omitempty"`
	IsHidden     bool     `json:"isHidden,omitempty"`
	SortByColumn string   `json:"sortByColumn,omitempty"`
	SummarizeBy  string   `json:"summarizeBy,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Summarization returns the default aggregation behavior, "default" when unset.
func (c *Column) Summarization() string {
	if c.SummarizeBy == "" {
		return "default"
	}
	return c.SummarizeBy
}

// Measure is a named calculation owned by a table.
type Measure struct {
	Name         string     `json:"name"`
	Expression   Expression `json:"expression"`
	FormatString string     `json:"formatString,omitempty"`
	IsHidden     bool       `json:"isHidden,omitempty"`
	Description  string     `json:"description,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Relationship links a column of one table to a column of another.
// Optional fields are kept as written so that saving does not add defaults.
type Relationship struct {
	Name                   string                 `json:"name"`
	FromTable              string                 `json:"fromTable"`
	FromColumn             string                 `json:"fromColumn"`
	ToTable                string                 `json:"toTable"`
	ToColumn               string                 `json:"toColumn"`
	FromCardinality        Cardinality            `json:"fromCardinality,omitempty"`
	ToCardinality          Cardinality            `json:"toCardinality,omitempty"`
	IsActive               *bool                  `json:"isActive,omitempty"`
	CrossFilteringBehavior CrossFilteringBehavior `json:"crossFilteringBehavior,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Active reports whether the relationship is active (true when unset).
func (r *Relationship) Active() bool {
	return r.IsActive == nil || *r.IsActive
}

// FromEnd returns the from-side cardinality (many when unset).
func (r *Relationship) FromEnd() Cardinality {
	if r.FromCardinality == "" {
		return CardinalityMany
	}
	return r.FromCardinality
}

// ToEnd returns the to-side cardinality (one when unset).
func (r *Relationship) ToEnd() Cardinality {
	if r.ToCardinality == "" {
		return CardinalityOne
	}
	return r.ToCardinality
}

// CrossFilter returns the cross-filtering behavior (oneDirection when unset).
func (r *Relationship) CrossFilter() CrossFilteringBehavior {
	if r.CrossFilteringBehavior == "" {
		return CrossFilterOneDirection
	}
	return r.CrossFilteringBehavior
}

// String renders the relationship as 'From'[Col] *--1 'To'[Col].
func (r *Relationship) String() string {
	return fmt.Sprintf("'%s'[%s]%s'%s'[%s]", r.FromTable, r.FromColumn, CardinalityText(r), r.ToTable, r.ToColumn)
}

// CardinalityText renders both ends as " *--1 " style text.
func CardinalityText(r *Relationship) string {
	end := func(c Cardinality) byte {
		if c == CardinalityMany {
			return '*'
		}
		return '1'
	}
	return fmt.Sprintf(" %c--%c ", end(r.FromEnd()), end(r.ToEnd()))
}

// Table returns the table with the given name, or nil.
func (m *Model) Table(name string) *Table {
	for _, t := range m.Tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Column returns the column with the given name, or nil.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Measure returns the measure with the given name, or nil.
func (t *Table) Measure(name string) *Measure {
	for _, m := range t.Measures {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// RemoveMeasure deletes the named measure and reports whether it existed.
func (t *Table) RemoveMeasure(name string) bool {
	for i, m := range t.Measures {
		if m.Name == name {
			t.Measures = append(t.Measures[:i], t.Measures[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveTable deletes the named table together with its columns and measures.
func (m *Model) RemoveTable(name string) bool {
	for i, t := range m.Tables {
		if t.Name == name {
			m.Tables = append(m.Tables[:i], m.Tables[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveRelationship deletes the relationship at the given identity.
// Relationships are matched by name, falling back to endpoints when unnamed.
func (m *Model) RemoveRelationship(r *Relationship) bool {
	for i, candidate := range m.Relationships {
		if sameRelationship(candidate, r) {
			m.Relationships = append(m.Relationships[:i], m.Relationships[i+1:]...)
			return true
		}
	}
	return false
}

func sameRelationship(a, b *Relationship) bool {
	if a == b {
		return true
	}
	if a.Name != "" || b.Name != "" {
		return a.Name == b.Name
	}
	return a.FromTable == b.FromTable && a.FromColumn == b.FromColumn &&
		a.ToTable == b.ToTable && a.ToColumn == b.ToColumn
}

// AllMeasures returns every measure in the model with its owning table, in model order.
func (m *Model) AllMeasures() []MeasureRef {
	var refs []MeasureRef
	for _, t := range m.Tables {
		for _, ms := range t.Measures {
			refs = append(refs, MeasureRef{Table: t.Name, Measure: ms})
		}
	}
	return refs
}

// MeasureRef addresses a measure by its owning table.
type MeasureRef struct {
	Table   string
	Measure *Measure
}

// Name returns the measure name.
func (r MeasureRef) Name() string {
	return r.Measure.Name
}

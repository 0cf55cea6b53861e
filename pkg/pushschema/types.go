// Package pushschema reduces a tabular model to the restricted schema of a
// Power BI push dataset.
//
// Check classifies tables, measures and relationships as supported or not
// without touching the model. Reduce strips the unsupported objects in place
// (measures, then relationships, then tables). BuildDatasetRequest projects
// the supported objects into the payload that creates or alters a push
// dataset.
package pushschema

// DataType is a push dataset column type.
type DataType string

// Push dataset column types.
const (
	DataTypeInt64    DataType = "Int64"
	DataTypeDouble   DataType = "Double"
	DataTypeBoolean  DataType = "Boolean"
	DataTypeDateTime DataType = "DateTime"
	DataTypeString   DataType = "String"
	DataTypeDecimal  DataType = "Decimal"
)

// CrossFilteringBehavior is the push dataset cross-filter enumeration.
type CrossFilteringBehavior string

// Push dataset cross-filtering behaviors.
const (
	CrossFilterOneDirection   CrossFilteringBehavior = "OneDirection"
	CrossFilterBothDirections CrossFilteringBehavior = "BothDirections"
	CrossFilterAutomatic      CrossFilteringBehavior = "Automatic"
)

// DefaultMode is the dataset mode sent when creating a push dataset.
const DefaultMode = "Push"

// DatasetRequest is the body of a create-dataset call.
type DatasetRequest struct {
	Name          string          `json:"name"`
	DefaultMode   string          `json:"defaultMode,omitempty"`
	Tables        []*Table        `json:"tables"`
	Relationships []*Relationship `json:"relationships,omitempty"`
}

// Table is a push dataset table.
type Table struct {
	Name     string     `json:"name"`
	Columns  []*Column  `json:"columns"`
	Measures []*Measure `json:"measures,omitempty"`
}

// Column is a push dataset column.
type Column struct {
	Name         string   `json:"name"`
	DataType     DataType `json:"dataType"`
	DataCategory string   `json:"dataCategory,omitempty"`
	FormatString string   `json:"formatString,omitempty"`
	IsHidden     bool     `json:"isHidden,omitempty"`
	SortByColumn string   `json:"sortByColumn,omitempty"`
	SummarizeBy  string   `json:"summarizeBy,omitempty"`
}

// Measure is a push dataset measure.
type Measure struct {
	Name         string `json:"name"`
	Expression   string `json:"expression"`
	FormatString string `json:"formatString,omitempty"`
	IsHidden     bool   `json:"isHidden,omitempty"`
	Description  string `json:"description,omitempty"`
}

// Relationship is a push dataset relationship, addressed by table and column names.
type Relationship struct {
	Name                   string                 `json:"name"`
	FromTable              string                 `json:"fromTable"`
	FromColumn             string                 `json:"fromColumn"`
	ToTable                string                 `json:"toTable"`
	ToColumn               string                 `json:"toColumn"`
	CrossFilteringBehavior CrossFilteringBehavior `json:"crossFilteringBehavior,omitempty"`
}

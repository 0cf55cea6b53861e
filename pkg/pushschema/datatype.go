package pushschema

import (
	"strings"

	"github.com/leapstack-labs/pushset/pkg/tabular"
)

// MapDataType maps a tabular column type to its push dataset type.
// The set is closed; any other type is an *UnsupportedDataTypeError.
func MapDataType(t tabular.DataType) (DataType, error) {
	switch t {
	case tabular.DataTypeDecimal:
		return DataTypeDecimal, nil
	case tabular.DataTypeInt64:
		return DataTypeInt64, nil
	case tabular.DataTypeDouble:
		return DataTypeDouble, nil
	case tabular.DataTypeDateTime:
		return DataTypeDateTime, nil
	case tabular.DataTypeBoolean:
		return DataTypeBoolean, nil
	case tabular.DataTypeString:
		return DataTypeString, nil
	default:
		return "", &UnsupportedDataTypeError{DataType: t}
	}
}

// TabularDataType is the inverse of MapDataType.
func TabularDataType(t DataType) (tabular.DataType, error) {
	switch t {
	case DataTypeDecimal:
		return tabular.DataTypeDecimal, nil
	case DataTypeInt64:
		return tabular.DataTypeInt64, nil
	case DataTypeDouble:
		return tabular.DataTypeDouble, nil
	case DataTypeDateTime:
		return tabular.DataTypeDateTime, nil
	case DataTypeBoolean:
		return tabular.DataTypeBoolean, nil
	case DataTypeString:
		return tabular.DataTypeString, nil
	default:
		return "", &UnsupportedDataTypeError{DataType: tabular.DataType(t)}
	}
}

// summarizeByText renders the aggregation behavior the way the service expects it (Sum, Default, ...).
func summarizeByText(c *tabular.Column) string {
	s := c.Summarization()
	return strings.ToUpper(s[:1]) + s[1:]
}

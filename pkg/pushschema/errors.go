package pushschema

import (
	"fmt"

	"github.com/leapstack-labs/pushset/pkg/tabular"
)

// UnsupportedDataTypeError is returned when a column type has no push dataset equivalent.
// It is fatal for the operation that projects or reduces the model.
type UnsupportedDataTypeError struct {
	Table    string
	Column   string
	DataType tabular.DataType
}

func (e *UnsupportedDataTypeError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("data type %q is not supported by push datasets", e.DataType)
	}
	return fmt.Sprintf("column '%s'[%s]: data type %q is not supported by push datasets", e.Table, e.Column, e.DataType)
}

// UnknownCrossFilterError is returned for a cross-filtering value outside the closed enumeration.
type UnknownCrossFilterError struct {
	Relationship string
	Value        tabular.CrossFilteringBehavior
}

func (e *UnknownCrossFilterError) Error() string {
	return fmt.Sprintf("relationship %q: unknown cross-filtering behavior %q", e.Relationship, e.Value)
}

package pushschema

import (
	"errors"

	"github.com/leapstack-labs/pushset/pkg/tabular"
)

// ProjectTable projects t into its push dataset form: every column, and the
// measures that isUnsupported does not reject. A nil isUnsupported keeps all
// measures.
func ProjectTable(t *tabular.Table, isUnsupported func(table, measure string) bool) (*Table, error) {
	out := &Table{
		Name:    t.Name,
		Columns: make([]*Column, 0, len(t.Columns)),
	}

	for _, c := range t.Columns {
		col, err := projectColumn(t.Name, c)
		if err != nil {
			return nil, err
		}
		out.Columns = append(out.Columns, col)
	}

	for _, m := range t.Measures {
		if isUnsupported != nil && isUnsupported(t.Name, m.Name) {
			continue
		}
		out.Measures = append(out.Measures, &Measure{
			Name:         m.Name,
			Expression:   m.Expression.Text(),
			FormatString: m.FormatString,
			IsHidden:     m.IsHidden,
			Description:  m.Description,
		})
	}

	return out, nil
}

func projectColumn(table string, c *tabular.Column) (*Column, error) {
	dt, err := MapDataType(c.DataType)
	if err != nil {
		var typeErr *UnsupportedDataTypeError
		if errors.As(err, &typeErr) {
			typeErr.Table = table
			typeErr.Column = c.Name
		}
		return nil, err
	}
	return &Column{
		Name:         c.Name,
		DataType:     dt,
		DataCategory: c.DataCategory,
		FormatString: c.FormatString,
		IsHidden:     c.IsHidden,
		SortByColumn: c.SortByColumn,
		SummarizeBy:  summarizeByText(c),
	}, nil
}

// validateColumnTypes returns the first column of tables whose type has no push equivalent.
func validateColumnTypes(tables []*tabular.Table) error {
	for _, t := range tables {
		for _, c := range t.Columns {
			if _, err := projectColumn(t.Name, c); err != nil {
				return err
			}
		}
	}
	return nil
}

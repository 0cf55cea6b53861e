package tabular

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Expression is a DAX expression. A .bim document stores it either as a
// single string or as an array of lines; the array form is kept on save.
type Expression []string

// NewExpression builds a single-string expression.
func NewExpression(text string) Expression {
	return Expression{text}
}

// Text returns the expression with lines joined by newlines.
func (e Expression) Text() string {
	return strings.Join(e, "\n")
}

// MarshalJSON implements json.Marshaler.
func (e Expression) MarshalJSON() ([]byte, error) {
	switch len(e) {
	case 0:
		return []byte(`""`), nil
	case 1:
		return json.Marshal(e[0])
	default:
		return json.Marshal([]string(e))
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Expression) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*e = nil
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = Expression{s}
		return nil
	case '[':
		var lines []string
		if err := json.Unmarshal(data, &lines); err != nil {
			return err
		}
		*e = Expression(lines)
		return nil
	default:
		return fmt.Errorf("expression must be a string or an array of strings, got %s", data)
	}
}

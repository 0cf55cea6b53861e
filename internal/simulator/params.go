// Package simulator generates synthetic rows for push dataset tables and
// drives periodic batch writes.
package simulator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ColumnType selects how a column value is generated.
type ColumnType string

// Column generators.
const (
	// Fixed always writes FixedValue.
	Fixed ColumnType = "Fixed"
	// List writes a random element of AllowedValues.
	List ColumnType = "List"
	// Range writes a random number between Range.Min and Range.Max.
	Range ColumnType = "Range"
)

// UnmarshalText accepts the generator names in any case.
func (t *ColumnType) UnmarshalText(text []byte) error {
	for _, known := range []ColumnType{Fixed, List, Range} {
		if strings.EqualFold(string(text), string(known)) {
			*t = known
			return nil
		}
	}
	return fmt.Errorf("unknown column type %q (want Fixed, List or Range)", text)
}

// ValueRange bounds a Range column.
type ValueRange struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
	// Granularity: 0 for integers, 1 = 0.1, 2 = 0.01, -2 = multiple of 100.
	Granularity int `json:"granularity" yaml:"granularity"`
}

// Column configures the values of one column.
type Column struct {
	Name          string      `json:"name" yaml:"name"`
	Type          ColumnType  `json:"type" yaml:"type"`
	Range         *ValueRange `json:"range,omitempty" yaml:"range,omitempty"`
	AllowedValues []any       `json:"allowedValues,omitempty" yaml:"allowedValues,omitempty"`
	FixedValue    any         `json:"fixedValue,omitempty" yaml:"fixedValue,omitempty"`
}

// Table configures the rows written to one table per batch.
type Table struct {
	Name      string   `json:"name" yaml:"name"`
	BatchRows int      `json:"batchRows" yaml:"batchRows"`
	Columns   []Column `json:"columns" yaml:"columns"`
}

// Parameters is a simulation configuration.
type Parameters struct {
	// BatchInterval is the number of seconds between two batches.
	BatchInterval int `json:"batchInterval" yaml:"batchInterval"`
	// Schedule is a cron expression that replaces BatchInterval when set.
	Schedule string `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	// Seed makes the generated values reproducible. Zero picks a random seed.
	Seed   uint64  `json:"seed,omitempty" yaml:"seed,omitempty"`
	Tables []Table `json:"tables" yaml:"tables"`
}

// Validate checks that every column can generate values.
func (p *Parameters) Validate() error {
	var errs []error
	if p.BatchInterval <= 0 && p.Schedule == "" {
		errs = append(errs, errors.New("batchInterval must be positive or a schedule must be set"))
	}
	if len(p.Tables) == 0 {
		errs = append(errs, errors.New("no tables configured"))
	}
	for _, t := range p.Tables {
		if t.Name == "" {
			errs = append(errs, errors.New("table without a name"))
		}
		if t.BatchRows < 0 {
			errs = append(errs, fmt.Errorf("table %s: batchRows must not be negative", t.Name))
		}
		for _, c := range t.Columns {
			if err := c.validate(); err != nil {
				errs = append(errs, fmt.Errorf("table %s: column %s: %w", t.Name, c.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (c Column) validate() error {
	switch c.Type {
	case Fixed:
		return nil
	case List:
		if len(c.AllowedValues) == 0 {
			return errors.New("list column needs allowedValues")
		}
	case Range:
		if c.Range == nil {
			return errors.New("range column needs a range")
		}
		if c.Range.Max < c.Range.Min {
			return fmt.Errorf("range max %v is below min %v", c.Range.Max, c.Range.Min)
		}
	default:
		return fmt.Errorf("unknown column type %q", c.Type)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Parse decodes parameters in YAML when yamlFormat is set, JSON otherwise.
func Parse(data []byte, yamlFormat bool) (*Parameters, error) {
	var p Parameters
	if yamlFormat {
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse simulation parameters: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse simulation parameters: %w", err)
		}
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation parameters: %w", err)
	}
	return &p, nil
}

// ReadParameters reads a JSON or YAML (by extension) parameter file.
func ReadParameters(path string) (*Parameters, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-supplied config path
	if err != nil {
		return nil, fmt.Errorf("failed to read simulation parameters: %w", err)
	}
	return Parse(data, isYAML(path))
}

// Marshal encodes p as indented camelCase JSON, or YAML when yamlFormat is set.
func (p *Parameters) Marshal(yamlFormat bool) ([]byte, error) {
	if yamlFormat {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(p); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// WriteParameters writes p to path, as YAML when the extension says so.
func (p *Parameters) WriteParameters(path string) error {
	data, err := p.Marshal(isYAML(path))
	if err != nil {
		return fmt.Errorf("failed to encode simulation parameters: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write simulation parameters: %w", err)
	}
	return nil
}

// Example returns a starting configuration for "simulate init".
func Example() *Parameters {
	return &Parameters{
		BatchInterval: 5,
		Tables: []Table{{
			Name:      "Sales",
			BatchRows: 10,
			Columns: []Column{
				{Name: "Product", Type: List, AllowedValues: []any{"Bike", "Helmet", "Gloves"}},
				{Name: "Quantity", Type: Range, Range: &ValueRange{Min: 1, Max: 10}},
				{Name: "Price", Type: Range, Range: &ValueRange{Min: 5, Max: 500, Granularity: 2}},
				{Name: "Channel", Type: Fixed, FixedValue: "Online"},
			},
		}},
	}
}

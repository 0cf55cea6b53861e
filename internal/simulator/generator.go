package simulator

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Row is one generated row keyed by column name.
type Row = map[string]any

// Generator produces column values from a seeded source.
type Generator struct {
	rnd *rand.Rand
}

// NewGenerator creates a generator. Equal seeds give equal sequences;
// seed 0 uses the current time.
func NewGenerator(seed uint64) *Generator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano()) //nolint:gosec // seed only
	}
	return &Generator{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))} //nolint:gosec // synthetic data
}

// Value generates one value for c.
func (g *Generator) Value(c Column) (any, error) {
	switch c.Type {
	case Fixed:
		return c.FixedValue, nil
	case List:
		if len(c.AllowedValues) == 0 {
			return nil, fmt.Errorf("column %s: no allowed values", c.Name)
		}
		return c.AllowedValues[g.rnd.IntN(len(c.AllowedValues))], nil
	case Range:
		if c.Range == nil {
			return nil, fmt.Errorf("column %s: no range", c.Name)
		}
		return g.rangeValue(*c.Range), nil
	default:
		return nil, fmt.Errorf("column %s: unknown column type %q", c.Name, c.Type)
	}
}

// rangeValue draws from [Min, Max). Granularity 0 yields an int64; a positive
// granularity rounds to that many decimals; a negative one rounds to a
// multiple of 10^-granularity.
func (g *Generator) rangeValue(r ValueRange) any {
	if r.Granularity == 0 {
		lo, hi := int64(r.Min), int64(r.Max)
		if hi <= lo {
			return lo
		}
		return lo + g.rnd.Int64N(hi-lo)
	}

	v := r.Min + g.rnd.Float64()*(r.Max-r.Min)
	if r.Granularity > 0 {
		scale := math.Pow(10, float64(r.Granularity))
		return math.Round(v*scale) / scale
	}
	step := math.Pow(10, float64(-r.Granularity))
	return int64(math.Round(v/step) * step)
}

// Row generates a row for t.
func (g *Generator) Row(t Table) (Row, error) {
	row := make(Row, len(t.Columns))
	for _, c := range t.Columns {
		v, err := g.Value(c)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", t.Name, err)
		}
		row[c.Name] = v
	}
	return row, nil
}

// Batch generates t.BatchRows rows.
func (g *Generator) Batch(t Table) ([]Row, error) {
	n := max(t.BatchRows, 0)
	rows := make([]Row, 0, n)
	for range n {
		row, err := g.Row(t)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

package tabular

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"
)

// Decode reads a .bim document and validates its enumerations.
func Decode(r io.Reader) (*Database, error) {
	var db Database
	dec := json.NewDecoder(r)
	if err := dec.Decode(&db); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if db.Model == nil {
		return nil, fmt.Errorf("failed to decode model: document has no model")
	}
	if err := db.Model.Validate(); err != nil {
		return nil, err
	}
	return &db, nil
}

// Parse decodes a .bim document held in memory.
func Parse(data []byte) (*Database, error) {
	return Decode(bytes.NewReader(data))
}

// Encode writes the database as indented JSON.
func Encode(w io.Writer, db *Database) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(db); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return nil
}

// Validate checks the relationship enumerations and name references.
func (m *Model) Validate() error {
	for _, r := range m.Relationships {
		for _, c := range []Cardinality{r.FromEnd(), r.ToEnd()} {
			if c != CardinalityOne && c != CardinalityMany {
				return fmt.Errorf("relationship %q: unknown cardinality %q", r.Name, c)
			}
		}
		switch r.CrossFilter() {
		case CrossFilterOneDirection, CrossFilterBothDirections, CrossFilterAutomatic:
		default:
			return fmt.Errorf("relationship %q: unknown crossFilteringBehavior %q", r.Name, r.CrossFilteringBehavior)
		}
	}
	return nil
}

// The types below keep properties they do not model in Extra so that a
// reduced model is written back with partitions, annotations and the rest.

func (d *Database) UnmarshalJSON(data []byte) error {
	type plain Database
	return unmarshalKeepingExtra(data, (*plain)(d), &d.Extra)
}

func (d Database) MarshalJSON() ([]byte, error) {
	type plain Database
	return marshalWithExtra(plain(d), d.Extra)
}

func (m *Model) UnmarshalJSON(data []byte) error {
	type plain Model
	return unmarshalKeepingExtra(data, (*plain)(m), &m.Extra)
}

func (m Model) MarshalJSON() ([]byte, error) {
	type plain Model
	return marshalWithExtra(plain(m), m.Extra)
}

func (t *Table) UnmarshalJSON(data []byte) error {
	type plain Table
	return unmarshalKeepingExtra(data, (*plain)(t), &t.Extra)
}

func (t Table) MarshalJSON() ([]byte, error) {
	type plain Table
	return marshalWithExtra(plain(t), t.Extra)
}

func (c *Column) UnmarshalJSON(data []byte) error {
	type plain Column
	return unmarshalKeepingExtra(data, (*plain)(c), &c.Extra)
}

func (c Column) MarshalJSON() ([]byte, error) {
	type plain Column
	return marshalWithExtra(plain(c), c.Extra)
}

func (ms *Measure) UnmarshalJSON(data []byte) error {
	type plain Measure
	return unmarshalKeepingExtra(data, (*plain)(ms), &ms.Extra)
}

func (ms Measure) MarshalJSON() ([]byte, error) {
	type plain Measure
	return marshalWithExtra(plain(ms), ms.Extra)
}

func (r *Relationship) UnmarshalJSON(data []byte) error {
	type plain Relationship
	return unmarshalKeepingExtra(data, (*plain)(r), &r.Extra)
}

func (r Relationship) MarshalJSON() ([]byte, error) {
	type plain Relationship
	return marshalWithExtra(plain(r), r.Extra)
}

func unmarshalKeepingExtra(data []byte, target any, extra *map[string]json.RawMessage) error {
	if err := json.Unmarshal(data, target); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	known := jsonKeys(reflect.TypeOf(target).Elem())
	for k := range all {
		if known[strings.ToLower(k)] {
			delete(all, k)
		}
	}
	if len(all) == 0 {
		all = nil
	}
	*extra = all
	return nil
}

func marshalWithExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := all[k]; !ok {
			all[k] = raw
		}
	}
	return json.Marshal(all)
}

var keyCache sync.Map // reflect.Type -> map[string]bool

// jsonKeys returns the lower-cased JSON property names declared by a struct
// type. encoding/json matches property names case-insensitively.
func jsonKeys(t reflect.Type) map[string]bool {
	if cached, ok := keyCache.Load(t); ok {
		return cached.(map[string]bool)
	}
	keys := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "-" || !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name == "" {
			name = f.Name
		}
		keys[strings.ToLower(name)] = true
	}
	keyCache.Store(t, keys)
	return keys
}

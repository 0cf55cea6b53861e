package tabular

import "encoding/json"

// Clone returns a deep copy of the database.
func (d *Database) Clone() *Database {
	if d == nil {
		return nil
	}
	out := *d
	out.Model = d.Model.Clone()
	out.Extra = cloneExtra(d.Extra)
	return &out
}

// Clone returns a deep copy of the model. Mutating the copy never affects the original.
func (m *Model) Clone() *Model {
	if m == nil {
		return nil
	}
	out := *m
	out.Extra = cloneExtra(m.Extra)
	out.Tables = nil
	for _, t := range m.Tables {
		out.Tables = append(out.Tables, t.clone())
	}
	out.Relationships = nil
	for _, r := range m.Relationships {
		rc := *r
		if r.IsActive != nil {
			active := *r.IsActive
			rc.IsActive = &active
		}
		rc.Extra = cloneExtra(r.Extra)
		out.Relationships = append(out.Relationships, &rc)
	}
	return &out
}

func (t *Table) clone() *Table {
	out := *t
	out.Extra = cloneExtra(t.Extra)
	out.Columns = nil
	for _, c := range t.Columns {
		cc := *c
		cc.Extra = cloneExtra(c.Extra)
		out.Columns = append(out.Columns, &cc)
	}
	out.Measures = nil
	for _, ms := range t.Measures {
		mc := *ms
		mc.Expression = append(Expression(nil), ms.Expression...)
		mc.Extra = cloneExtra(ms.Extra)
		out.Measures = append(out.Measures, &mc)
	}
	return &out
}

func cloneExtra(extra map[string]json.RawMessage) map[string]json.RawMessage {
	if extra == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(extra))
	for k, v := range extra {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

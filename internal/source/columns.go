package source

import (
	"fmt"
	"strings"
)

// ReservedTable is a table name the push API rejects; rows for it go to ReservedTableTarget.
const (
	ReservedTable       = "Date"
	ReservedTableTarget = "Dates"
)

// ParseColumnName splits a result column name of the form Table[Column] or
// 'Table'[Column]. Names without brackets have no table.
func ParseColumnName(name string) (table, column string) {
	open := strings.IndexByte(name, '[')
	if open < 0 {
		return "", name
	}
	end := strings.IndexByte(name[open+1:], ']')
	if end < 0 {
		return "", name
	}

	table = strings.TrimSpace(name[:open])
	if len(table) >= 2 && table[0] == '\'' && table[len(table)-1] == '\'' {
		table = strings.ReplaceAll(table[1:len(table)-1], "''", "'")
	}
	return table, name[open+1 : open+1+end]
}

// TargetColumns decides the table a result set is written to and the
// field name of each result column. Columns that belong to another table get
// an empty field name and must be skipped.
//
// The table is hint when set, otherwise the table of the first qualified
// column, with ReservedTable mapped to ReservedTableTarget.
func TargetColumns(names []string, hint string) (table string, fields []string, err error) {
	table = hint
	if table == "" {
		for _, n := range names {
			if t, _ := ParseColumnName(n); t != "" {
				table = t
				break
			}
		}
	}
	if table == ReservedTable {
		table = ReservedTableTarget
	}
	if table == "" {
		return "", nil, fmt.Errorf("cannot tell the target table of columns %v\nHint: name columns Table[Column] or add a \"-- table: Name\" comment", names)
	}

	fields = make([]string, len(names))
	for i, n := range names {
		t, col := ParseColumnName(n)
		if t == "" || t == table || (t == ReservedTable && table == ReservedTableTarget) {
			fields[i] = col
		}
	}
	return table, fields, nil
}

package source

import (
	"context"
	"database/sql"
	"log/slog"
	"regexp"
	"strings"
)

// Statement is one query of a refresh script.
type Statement struct {
	SQL string
	// Table is the target table named by a "-- table: Name" comment, if any.
	Table string
}

var tableHint = regexp.MustCompile(`(?i)^\s*table\s*:\s*(.+?)\s*$`)

// SplitStatements splits a script on semicolons outside quotes and comments.
// A "-- table: Name" line comment sets the target table of the statement it
// precedes or appears in. Comments are dropped from the returned SQL.
func SplitStatements(script string) []Statement {
	var (
		stmts   []Statement
		current strings.Builder
		hint    string
	)

	flush := func() {
		text := strings.TrimSpace(current.String())
		if text != "" {
			stmts = append(stmts, Statement{SQL: text, Table: hint})
			hint = ""
		}
		current.Reset()
	}

	runes := []rune(script)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		next := rune(0)
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		switch {
		case r == '\'' || r == '"':
			end := i + 1
			for end < len(runes) && runes[end] != r {
				end++
			}
			if end >= len(runes) {
				end = len(runes) - 1
			}
			current.WriteString(string(runes[i : end+1]))
			i = end

		case r == '-' && next == '-':
			end := i + 2
			for end < len(runes) && runes[end] != '\n' {
				end++
			}
			if m := tableHint.FindStringSubmatch(string(runes[i+2 : end])); m != nil {
				hint = m[1]
			}
			current.WriteRune('\n')
			i = end

		case r == '/' && next == '*':
			end := i + 2
			for end+1 < len(runes) && (runes[end] != '*' || runes[end+1] != '/') {
				end++
			}
			current.WriteRune(' ')
			i = end + 1

		case r == ';':
			flush()

		default:
			current.WriteRune(r)
		}
	}
	flush()

	return stmts
}

// Query runs one statement.
func (s *Source) Query(ctx context.Context, stmt Statement) (*sql.Rows, error) {
	s.logger.Debug("running query", slog.String("table", stmt.Table), slog.Int("length", len(stmt.SQL)))
	return s.db.QueryContext(ctx, stmt.SQL)
}

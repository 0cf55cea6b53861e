package source

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"  // postgres driver
	_ "github.com/marcboeker/go-duckdb" // duckdb driver
	_ "modernc.org/sqlite"              // sqlite driver
)

func init() {
	Register("duckdb", Driver{
		Name:  "duckdb",
		Setup: setupDuckDB,
	})
	Register("postgres", Driver{
		Name: "pgx",
		Setup: func(ctx context.Context, db *sql.DB, p Params) error {
			return applySettings(ctx, db, p.Settings, "SET %s = '%s'")
		},
	})
	Register("sqlite", Driver{
		Name:       "sqlite",
		DefaultDSN: ":memory:",
		Setup: func(ctx context.Context, db *sql.DB, p Params) error {
			return applySettings(ctx, db, p.Settings, "PRAGMA %s = %s")
		},
	})
}

func setupDuckDB(ctx context.Context, db *sql.DB, p Params) error {
	for _, ext := range p.Extensions {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil {
			return fmt.Errorf("failed to load duckdb extension %s: %w", ext, err)
		}
	}
	return applySettings(ctx, db, p.Settings, "SET %s = '%s'")
}

// applySettings runs one statement per setting in key order.
func applySettings(ctx context.Context, db *sql.DB, settings map[string]string, format string) error {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		value := strings.ReplaceAll(settings[k], "'", "''")
		if _, err := db.ExecContext(ctx, fmt.Sprintf(format, k, value)); err != nil {
			return fmt.Errorf("failed to apply setting %s: %w", k, err)
		}
	}
	return nil
}

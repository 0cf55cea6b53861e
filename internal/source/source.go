// Package source opens the SQL databases that refresh reads from.
//
// Drivers register themselves by type name. The built-in types are duckdb,
// postgres and sqlite.
package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/go-viper/mapstructure/v2"
)

// Config selects and configures a source.
type Config struct {
	// Type is a registered source type, e.g. "duckdb".
	Type string
	// DSN is passed to the driver. Empty means an in-memory database where the driver supports it.
	DSN string
	// Params holds driver options, decoded into Params.
	Params map[string]any
}

// Params holds the options common to all sources.
type Params struct {
	// Settings are applied once per session after connecting.
	Settings map[string]string `mapstructure:"settings"`

	// Extensions to install and load (duckdb only).
	Extensions []string `mapstructure:"extensions"`

	// MaxOpenConns limits the pool size. Zero keeps the driver default.
	MaxOpenConns int `mapstructure:"max_open_conns"`
}

// Driver describes how to open one source type.
type Driver struct {
	// Name is the database/sql driver name.
	Name string
	// DefaultDSN is used when Config.DSN is empty.
	DefaultDSN string
	// Setup runs after the connection is verified.
	Setup func(ctx context.Context, db *sql.DB, p Params) error
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Driver)
)

// Register adds a source type to the registry.
func Register(typ string, d Driver) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[typ] = d
}

// Get retrieves a registered driver.
func Get(typ string) (Driver, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := registry[typ]
	return d, ok
}

// List returns all registered source types (sorted).
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownSourceError is returned when an unknown source type is requested.
type UnknownSourceError struct {
	Type      string
	Available []string
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("unknown source type %q\nAvailable sources: %v\nHint: Check source.type in pushset.yaml", e.Type, e.Available)
}

// Source is an open source database.
type Source struct {
	Type string

	db     *sql.DB
	logger *slog.Logger
}

// DecodeParams decodes raw params into Params.
func DecodeParams(raw map[string]any) (Params, error) {
	var p Params
	if len(raw) == 0 {
		return p, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return p, err
	}
	if err := dec.Decode(raw); err != nil {
		return p, fmt.Errorf("invalid source params: %w", err)
	}
	return p, nil
}

// Open connects to the source described by cfg.
// The logger parameter may be nil (uses discard logger).
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Type == "" {
		return nil, fmt.Errorf("source type not specified")
	}
	drv, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownSourceError{Type: cfg.Type, Available: List()}
	}

	params, err := DecodeParams(cfg.Params)
	if err != nil {
		return nil, err
	}

	dsn := cfg.DSN
	if dsn == "" {
		dsn = drv.DefaultDSN
	}

	logger.Debug("opening source", slog.String("type", cfg.Type), slog.String("driver", drv.Name))

	db, err := sql.Open(drv.Name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s source: %w", cfg.Type, err)
	}
	switch {
	case params.MaxOpenConns > 0:
		db.SetMaxOpenConns(params.MaxOpenConns)
	case dsn == ":memory:":
		// Each connection would see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s source: %w", cfg.Type, err)
	}
	if drv.Setup != nil {
		if err := drv.Setup(ctx, db, params); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &Source{Type: cfg.Type, db: db, logger: logger}, nil
}

// DB returns the underlying connection pool.
func (s *Source) DB() *sql.DB {
	return s.db
}

// Close closes the source.
func (s *Source) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

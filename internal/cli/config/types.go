// Package config provides configuration management for the pushset CLI.
//
// Values are layered with koanf: built-in defaults, then pushset.yaml, then
// PUSHSET_ environment variables, then explicitly set command-line flags.
package config

import "time"

// Config holds all CLI configuration options.
type Config struct {
	// Service principal credentials.
	Tenant    string `koanf:"tenant"`
	Principal string `koanf:"principal"`
	Secret    string `koanf:"secret"`

	// Group is the workspace id that owns the dataset.
	Group       string `koanf:"group"`
	DatasetName string `koanf:"dataset_name"`
	DatasetID   string `koanf:"dataset_id"`

	StatePath    string `koanf:"state_path"`
	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`

	API     *APIConfig     `koanf:"api"`
	Source  *SourceConfig  `koanf:"source"`
	Storage *StorageConfig `koanf:"storage"`
	Server  *ServerConfig  `koanf:"server"`
}

// APIConfig configures the Power BI REST client.
type APIConfig struct {
	BaseURL        string        `koanf:"base_url"`
	Authority      string        `koanf:"authority"`
	Resource       string        `koanf:"resource"`
	PostsPerMinute int           `koanf:"posts_per_minute"`
	Timeout        time.Duration `koanf:"timeout"`
}

// SourceConfig selects the SQL source used by refresh.
type SourceConfig struct {
	Type   string         `koanf:"type"`
	DSN    string         `koanf:"dsn"`
	Params map[string]any `koanf:"params"`
}

// StorageConfig configures s3:// model locations.
type StorageConfig struct {
	Region          string `koanf:"region"`
	Endpoint        string `koanf:"endpoint"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
	PathStyle       bool   `koanf:"path_style"`
}

// ServerConfig configures the HTTP validation service.
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// Default configuration values.
const (
	DefaultConfigFile     = "pushset.yaml"
	DefaultStateFile      = ".pushset/state.db"
	DefaultOutput         = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultBaseURL        = "https://api.powerbi.com/v1.0/myorg"
	DefaultAuthority      = "https://login.microsoftonline.com"
	DefaultResource       = "https://analysis.windows.net/powerbi/api"
	DefaultPostsPerMinute = 120
	DefaultTimeout        = 60 * time.Second
	DefaultSourceType     = "duckdb"
	DefaultServerAddr     = ":8088"
)

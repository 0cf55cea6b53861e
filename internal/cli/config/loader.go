package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// EnvPrefix is the prefix of configuration environment variables.
// A double underscore separates nested keys: PUSHSET_API__BASE_URL sets api.base_url.
const EnvPrefix = "PUSHSET_"

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config // Stores the loaded config for access by commands
)

// flagKeys maps flag names whose config key is not the snake_case flag name.
var flagKeys = map[string]string{
	"state": "state_path",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// findConfigFile finds the config file to use.
// Priority: explicit path > ./pushset.yaml > ./pushset.yml > ~/.pushset/pushset.yaml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	candidates := []string{DefaultConfigFile, "pushset.yml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".pushset", DefaultConfigFile))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

func defaults() map[string]any {
	return map[string]any{
		"state_path":           DefaultStateFile,
		"verbose":              false,
		"output":               DefaultOutput,
		"api.base_url":         DefaultBaseURL,
		"api.authority":        DefaultAuthority,
		"api.resource":         DefaultResource,
		"api.posts_per_minute": DefaultPostsPerMinute,
		"api.timeout":          DefaultTimeout,
		"source.type":          DefaultSourceType,
		"server.addr":          DefaultServerAddr,
	}
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	// Reset koanf for fresh load
	k = koanf.New(".")

	// 1. Load defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Load environment variables (PUSHSET_ prefix)
	// Transform: PUSHSET_DATASET_NAME -> dataset_name, PUSHSET_API__TIMEOUT -> api.timeout
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority - overrides env vars and config file)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			return flagKey(f.Name), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	expandSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	currentConfig = &cfg
	return &cfg, nil
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// flagKey transforms a kebab-case flag name into its config key.
func flagKey(name string) string {
	key := strings.ReplaceAll(name, "-", "_")
	if mapped, ok := flagKeys[key]; ok {
		return mapped
	}
	return key
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// This is available after LoadConfig is called.
func GetCurrentConfig() *Config {
	return currentConfig
}

// NewLogger creates the CLI logger: text on w, debug level when verbose.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}

// expandSecrets expands environment variables in credential fields.
func expandSecrets(c *Config) {
	c.Tenant = expandEnvVars(c.Tenant)
	c.Principal = expandEnvVars(c.Principal)
	c.Secret = expandEnvVars(c.Secret)
	if c.Source != nil {
		c.Source.DSN = expandEnvVars(c.Source.DSN)
	}
	if c.Storage != nil {
		c.Storage.AccessKeyID = expandEnvVars(c.Storage.AccessKeyID)
		c.Storage.SecretAccessKey = expandEnvVars(c.Storage.SecretAccessKey)
	}
}

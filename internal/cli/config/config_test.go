package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pushset.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// TestLoadConfig_Defaults tests that an empty config file yields the built-in defaults.
func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()

	cfg, err := LoadConfig(writeConfig(t, "{}\n"), nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultStateFile, cfg.StatePath)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	require.NotNil(t, cfg.API)
	assert.Equal(t, DefaultBaseURL, cfg.API.BaseURL)
	assert.Equal(t, DefaultAuthority, cfg.API.Authority)
	assert.Equal(t, DefaultPostsPerMinute, cfg.API.PostsPerMinute)
	assert.Equal(t, DefaultTimeout, cfg.API.Timeout)
	require.NotNil(t, cfg.Source)
	assert.Equal(t, "duckdb", cfg.Source.Type)
	require.NotNil(t, cfg.Server)
	assert.Equal(t, ":8088", cfg.Server.Addr)
	assert.Same(t, cfg, GetCurrentConfig())
}

// TestLoadConfig_File tests that nested sections are read from the file.
func TestLoadConfig_File(t *testing.T) {
	ResetConfig()

	path := writeConfig(t, `tenant: contoso.onmicrosoft.com
principal: 11111111-2222-3333-4444-555555555555
group: ws-1
dataset_name: Sales
api:
  timeout: 15s
  posts_per_minute: 60
source:
  type: postgres
  dsn: postgres://localhost/sales
  params:
    statement_timeout: 30
storage:
  region: eu-west-1
  path_style: true
`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, path, GetConfigFileUsed())
	assert.Equal(t, "contoso.onmicrosoft.com", cfg.Tenant)
	assert.Equal(t, "ws-1", cfg.Group)
	assert.Equal(t, "Sales", cfg.DatasetName)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
	assert.Equal(t, 60, cfg.API.PostsPerMinute)
	assert.Equal(t, DefaultBaseURL, cfg.API.BaseURL, "unset nested keys keep defaults")
	assert.Equal(t, "postgres", cfg.Source.Type)
	assert.EqualValues(t, 30, cfg.Source.Params["statement_timeout"])
	require.NotNil(t, cfg.Storage)
	assert.True(t, cfg.Storage.PathStyle)
}

// TestLoadConfig_FlagPrecedence tests that flags override env vars and config file.
func TestLoadConfig_FlagPrecedence(t *testing.T) {
	ResetConfig()

	path := writeConfig(t, "dataset_name: from_file\n")
	t.Setenv("PUSHSET_DATASET_NAME", "from_env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.StringP("dataset-name", "n", "", "dataset name")
	require.NoError(t, flags.Set("dataset-name", "from_flag"))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "from_flag", cfg.DatasetName, "flag value should override config file and env var")
}

// TestLoadConfig_EnvPrecedenceOverFile tests that env vars override config file.
func TestLoadConfig_EnvPrecedenceOverFile(t *testing.T) {
	ResetConfig()

	path := writeConfig(t, "dataset_name: from_file\napi:\n  timeout: 10s\n")
	t.Setenv("PUSHSET_DATASET_NAME", "from_env")
	t.Setenv("PUSHSET_API__TIMEOUT", "2m")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "from_env", cfg.DatasetName)
	assert.Equal(t, 2*time.Minute, cfg.API.Timeout)
}

// TestLoadConfig_FlagNotSetUsesEnv tests that unset flags fall back to env vars.
func TestLoadConfig_FlagNotSetUsesEnv(t *testing.T) {
	ResetConfig()

	path := writeConfig(t, "dataset_name: from_file\n")
	t.Setenv("PUSHSET_DATASET_NAME", "from_env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.StringP("dataset-name", "n", "", "dataset name")

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "from_env", cfg.DatasetName, "env var should be used when flag is not set")
}

// TestLoadConfig_StateFlagMapsToStatePath tests the --state alias.
func TestLoadConfig_StateFlagMapsToStatePath(t *testing.T) {
	ResetConfig()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("state", "", "state database")
	require.NoError(t, flags.Set("state", "/tmp/history.db"))

	cfg, err := LoadConfig(writeConfig(t, "{}\n"), flags)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/history.db", cfg.StatePath)
}

// TestLoadConfig_InvalidOutput tests that an unknown output format is rejected.
func TestLoadConfig_InvalidOutput(t *testing.T) {
	ResetConfig()

	_, err := LoadConfig(writeConfig(t, "output: yaml\n"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

// TestLoadConfig_MissingExplicitFile tests that an explicit missing file is an error.
func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	ResetConfig()

	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

// TestExpandEnvVars tests the expandEnvVars function.
func TestExpandEnvVars(t *testing.T) {
	t.Setenv("PUSHSET_TEST_SECRET", "s3cr3t")

	tests := []struct {
		in   string
		want string
	}{
		{"${PUSHSET_TEST_SECRET}", "s3cr3t"},
		{"prefix-${PUSHSET_TEST_SECRET}-suffix", "prefix-s3cr3t-suffix"},
		{"${PUSHSET_TEST_UNSET}", "${PUSHSET_TEST_UNSET}"},
		{"plain", "plain"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, expandEnvVars(tt.in))
		})
	}
}

// TestLoadConfig_ExpandsSecrets tests ${VAR} expansion in credential fields.
func TestLoadConfig_ExpandsSecrets(t *testing.T) {
	ResetConfig()
	t.Setenv("SP_SECRET", "from-vault")

	cfg, err := LoadConfig(writeConfig(t, "secret: ${SP_SECRET}\nsource:\n  dsn: postgres://u:${SP_SECRET}@db/x\n"), nil)
	require.NoError(t, err)

	assert.Equal(t, "from-vault", cfg.Secret)
	assert.Equal(t, "postgres://u:from-vault@db/x", cfg.Source.DSN)
}

// TestConfig_ValidateCredentials tests the API settings check.
func TestConfig_ValidateCredentials(t *testing.T) {
	t.Run("complete", func(t *testing.T) {
		cfg := &Config{Tenant: "t", Principal: "p", Secret: "s", Group: "g"}
		assert.NoError(t, cfg.ValidateCredentials())
	})

	t.Run("missing secret and group", func(t *testing.T) {
		cfg := &Config{Tenant: "t", Principal: "p"}
		err := cfg.ValidateCredentials()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing secret, group")
		assert.Contains(t, err.Error(), "--secret")
		assert.Contains(t, err.Error(), "PUSHSET_SECRET")
	})
}

// TestConfig_ValidateDataset tests the dataset addressing check.
func TestConfig_ValidateDataset(t *testing.T) {
	assert.NoError(t, (&Config{DatasetName: "Sales"}).ValidateDataset())
	assert.NoError(t, (&Config{DatasetID: "abc"}).ValidateDataset())
	assert.Error(t, (&Config{}).ValidateDataset())
}

// TestGetLogger tests logger storage in the context.
func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()), "fallback logger")

	logger := NewLogger(os.Stderr, true)
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, GetLogger(ctx))
}

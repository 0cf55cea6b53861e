package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/pushset/internal/cli/output"
)

// Validate checks values that every command depends on.
func (c *Config) Validate() error {
	if _, err := output.ParseMode(c.OutputFormat); err != nil {
		return err
	}
	if c.API != nil && c.API.PostsPerMinute < 0 {
		return fmt.Errorf("api.posts_per_minute must not be negative, got %d", c.API.PostsPerMinute)
	}
	return nil
}

// ValidateCredentials checks the settings needed to call the Power BI API.
func (c *Config) ValidateCredentials() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"tenant", c.Tenant},
		{"principal", c.Principal},
		{"secret", c.Secret},
		{"group", c.Group},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s\nHint: pass --%s, set %s%s or add it to %s",
			strings.Join(missing, ", "), missing[0], EnvPrefix, strings.ToUpper(missing[0]), DefaultConfigFile)
	}
	return nil
}

// ValidateDataset checks that a dataset is addressed by name or id.
func (c *Config) ValidateDataset() error {
	if c.DatasetName == "" && c.DatasetID == "" {
		return errors.New("no dataset given\nHint: pass --dataset-name (-n) or --dataset-id")
	}
	return nil
}

// Package config loads the storycheck harness configuration from a YAML
// file, an optional .env file and STORYCHECK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/storyspoiler/storycheck/internal/logging"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "storycheck.yaml"

// EnvPrefix prefixes every environment override, e.g. STORYCHECK_BASE_URL.
const EnvPrefix = "STORYCHECK"

// Defaults for the shared story service fixture.
const (
	DefaultBaseURL        = "https://d3s5nxhwblsjbi.cloudfront.net"
	DefaultUsername       = "yoanipetrov"
	DefaultPassword       = "123456abv"
	DefaultMissingStoryID = "358"
)

// Config is the harness configuration.
type Config struct {
	BaseURL  string `yaml:"base_url" split_words:"true"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// MissingStoryID must not exist on the server; the negative edit and
	// delete steps target it.
	MissingStoryID string `yaml:"missing_story_id" split_words:"true"`

	// VerifyDeletion appends a second delete of the created story to the plan.
	VerifyDeletion bool `yaml:"verify_deletion" split_words:"true"`

	Log logging.Config `yaml:"log"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		BaseURL:        DefaultBaseURL,
		Username:       DefaultUsername,
		Password:       DefaultPassword,
		MissingStoryID: DefaultMissingStoryID,
		Log: logging.Config{
			Level:    "info",
			Encoding: "console",
		},
	}
}

// Load builds a Config from defaults, then the YAML file at path, then a
// .env file next to it, then the process environment. A missing YAML or
// .env file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("reading %s_* environment: %w", EnvPrefix, err)
	}

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	return cfg, nil
}

// Validate reports the first problem that would make a run meaningless.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url %q: scheme must be http or https", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("base_url %q: host is required", c.BaseURL)
	}
	if c.Username == "" || c.Password == "" {
		return errors.New("username and password are required")
	}
	if c.MissingStoryID == "" {
		return errors.New("missing_story_id is required")
	}
	return nil
}

// Save writes cfg as YAML to path, creating parent directories.
func Save(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config dir: %w", err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

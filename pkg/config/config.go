// Package config loads itemforge configuration from a YAML file, a .env
// file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/itemforge/pkg/assets"
	"github.com/ormasoftchile/itemforge/pkg/pipeline"
)

// Backend providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAzure     = "azure"
	ProviderAnthropic = "anthropic"
	ProviderReplay    = "replay"
)

// Providers lists the accepted backend providers.
var Providers = []string{ProviderOpenAI, ProviderAzure, ProviderAnthropic, ProviderReplay}

// Environment variables read by Load.
const (
	EnvBackend         = "ITEMFORGE_BACKEND"
	EnvModel           = "ITEMFORGE_MODEL"
	EnvLogMode         = "ITEMFORGE_LOG_MODE"
	EnvLogLevel        = "ITEMFORGE_LOG_LEVEL"
	EnvOpenAIKey       = "OPENAI_API_KEY"
	EnvAzureEndpoint   = "AZURE_OPENAI_ENDPOINT"
	EnvAzureKey        = "AZURE_OPENAI_API_KEY"
	EnvAzureDeployment = "AZURE_OPENAI_DEPLOYMENT"
	EnvAzureVersion    = "AZURE_OPENAI_API_VERSION"
	EnvAnthropicKey    = "ANTHROPIC_API_KEY"
)

// SecretEnvVars names the variables whose values must never appear in
// recorded fixtures.
var SecretEnvVars = []string{EnvOpenAIKey, EnvAzureKey, EnvAnthropicKey}

const defaultOpenAIModel = "gpt-4.1"

// Config is the full itemforge configuration.
type Config struct {
	Backend BackendConfig   `yaml:"backend"`
	Limits  pipeline.Limits `yaml:"limits"`
	Assets  assets.Config   `yaml:"assets"`
	Logging LoggingConfig   `yaml:"logging"`
}

// BackendConfig selects and tunes the generation backend. API keys are
// only taken from the environment.
type BackendConfig struct {
	Provider        string        `yaml:"provider"`
	Model           string        `yaml:"model"`
	BaseURL         string        `yaml:"base_url"`
	APIVersion      string        `yaml:"api_version"`
	APIKey          string        `yaml:"-"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	Timeout         time.Duration `yaml:"timeout"`

	// RateLimit is the sustained call rate per second; zero disables it.
	RateLimit     float64       `yaml:"rate_limit"`
	Burst         int           `yaml:"burst"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`

	// ReplayDir holds recorded fixtures for the replay provider.
	ReplayDir string `yaml:"replay_dir"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Mode  string `yaml:"mode"`
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Backend: BackendConfig{
			Provider:      ProviderOpenAI,
			Timeout:       120 * time.Second,
			Burst:         1,
			RetryAttempts: 1,
			RetryDelay:    2 * time.Second,
		},
		Limits:  pipeline.DefaultLimits(),
		Assets:  assets.Config{},
		Logging: LoggingConfig{Mode: "dev", Level: "info"},
	}
}

// LoadDotEnv loads variables from the given .env files (".env" when none
// are given) without overriding ones already set. Missing files are
// ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.Getenv)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Backend.Provider, EnvBackend)
	c.Backend.Provider = strings.ToLower(c.Backend.Provider)
	set(&c.Logging.Mode, EnvLogMode)
	set(&c.Logging.Level, EnvLogLevel)

	switch c.Backend.Provider {
	case ProviderOpenAI:
		set(&c.Backend.APIKey, EnvOpenAIKey)
	case ProviderAzure:
		set(&c.Backend.BaseURL, EnvAzureEndpoint)
		set(&c.Backend.APIKey, EnvAzureKey)
		set(&c.Backend.Model, EnvAzureDeployment)
		set(&c.Backend.APIVersion, EnvAzureVersion)
	case ProviderAnthropic:
		set(&c.Backend.APIKey, EnvAnthropicKey)
	}
	set(&c.Backend.Model, EnvModel)
}

func (c *Config) applyDefaults() {
	if c.Backend.Provider == ProviderOpenAI && c.Backend.Model == "" {
		c.Backend.Model = defaultOpenAIModel
	}
	if c.Backend.Burst <= 0 {
		c.Backend.Burst = 1
	}
	d := pipeline.DefaultLimits()
	if c.Limits.MaxImages == 0 {
		c.Limits.MaxImages = d.MaxImages
	}
	if c.Limits.MaxImageBytes == 0 {
		c.Limits.MaxImageBytes = d.MaxImageBytes
	}
	if len(c.Limits.AllowedSchemes) == 0 {
		c.Limits.AllowedSchemes = d.AllowedSchemes
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if !slices.Contains(Providers, c.Backend.Provider) {
		return fmt.Errorf("backend.provider %q: must be one of %s", c.Backend.Provider, strings.Join(Providers, ", "))
	}
	if c.Backend.Provider == ProviderReplay && c.Backend.ReplayDir == "" {
		return fmt.Errorf("backend.replay_dir is required for the replay provider")
	}
	if c.Backend.RateLimit < 0 {
		return fmt.Errorf("backend.rate_limit must not be negative")
	}
	if c.Backend.RetryAttempts < 0 {
		return fmt.Errorf("backend.retry_attempts must not be negative")
	}
	if c.Limits.MaxImages <= 0 {
		return fmt.Errorf("limits.max_images must be positive, got %d", c.Limits.MaxImages)
	}
	if c.Limits.MaxImageBytes <= 0 {
		return fmt.Errorf("limits.max_image_bytes must be positive, got %d", c.Limits.MaxImageBytes)
	}
	if c.Assets.FetchTimeout < 0 {
		return fmt.Errorf("assets.fetch_timeout must not be negative")
	}
	if c.Assets.MaxConcurrentFetches < 0 {
		return fmt.Errorf("assets.max_concurrent_fetches must not be negative")
	}
	return nil
}

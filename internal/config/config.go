// Package config loads the service configuration from a YAML file, an
// optional .env file and DEPLOSTATUS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"deplostatus/internal/preview"
	"deplostatus/internal/security"
	"deplostatus/pkg/fileutil"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// FileName is the config file looked up in the default search paths
	FileName = "deplostatus.yaml"

	// EnvPrefix prefixes every environment override
	EnvPrefix = "DEPLOSTATUS_"

	DefaultHost          = "127.0.0.1"
	DefaultPort          = 5000
	DefaultRatePerMinute = 60
	DefaultIssueGreeting = "Thanks for opening this issue!"
)

// Config is the root configuration
type Config struct {
	WebhookSecret string          `yaml:"webhook_secret" env:"WEBHOOK_SECRET"`
	Server        ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	GitHub        GitHubConfig    `yaml:"github" envPrefix:"GITHUB_"`
	Bot           BotConfig       `yaml:"bot" envPrefix:"BOT_"`
	RateLimit     RateLimitConfig `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`
	History       HistoryConfig   `yaml:"history" envPrefix:"HISTORY_"`
	Log           LogConfig       `yaml:"log" envPrefix:"LOG_"`
}

type ServerConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	TestMode bool   `yaml:"test_mode" env:"TEST_MODE"`
}

// GitHubConfig selects token or GitHub App authentication. APIURL is only
// set for GitHub Enterprise Server.
type GitHubConfig struct {
	Token          string `yaml:"token" env:"TOKEN"`
	AppID          int64  `yaml:"app_id" env:"APP_ID"`
	PrivateKeyPath string `yaml:"private_key_path" env:"PRIVATE_KEY_PATH"`
	APIURL         string `yaml:"api_url" env:"API_URL"`
}

type BotConfig struct {
	Login         string `yaml:"login" env:"LOGIN"`
	WorkflowFile  string `yaml:"workflow_file" env:"WORKFLOW_FILE"`
	IssueGreeting string `yaml:"issue_greeting" env:"ISSUE_GREETING"`
}

type RateLimitConfig struct {
	// PerMinute is the per-IP request budget; 0 disables limiting
	PerMinute int `yaml:"per_minute" env:"PER_MINUTE"`
}

type HistoryConfig struct {
	// DBPath enables the SQLite delivery audit log when set
	DBPath string `yaml:"db_path" env:"DB_PATH"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
	File   string `yaml:"file" env:"FILE"`
}

// Default returns the configuration used before any source is applied
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Bot: BotConfig{
			WorkflowFile:  preview.DefaultWorkflowFile,
			IssueGreeting: DefaultIssueGreeting,
		},
		RateLimit: RateLimitConfig{PerMinute: DefaultRatePerMinute},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadOptions controls where configuration is read from
type LoadOptions struct {
	// Path is an explicit config file; it must exist. Empty searches the
	// default locations and tolerates a missing file.
	Path string
	// EnvFile is a .env file; empty tries ./.env
	EnvFile string
	// Environ replaces the process environment (tests)
	Environ map[string]string
}

// Load reads the configuration without validating it. It returns the path of
// the config file used, if any.
func Load(opts LoadOptions) (*Config, string, error) {
	cfg := Default()

	path := opts.Path
	if path == "" {
		path = fileutil.FindConfigOptional(FileName)
	}
	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, "", err
		}
	}

	environ, err := environment(opts)
	if err != nil {
		return nil, "", err
	}

	if err := env.ParseWithOptions(cfg, env.Options{
		Prefix:      EnvPrefix,
		Environment: environ,
	}); err != nil {
		return nil, "", fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.ApplyDefaults()
	return cfg, path, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

// environment merges the .env file under the real environment; variables
// already set are never overridden.
func environment(opts LoadOptions) (map[string]string, error) {
	base := opts.Environ
	if base == nil {
		base = make(map[string]string)
		for _, kv := range os.Environ() {
			if k, v, ok := strings.Cut(kv, "="); ok {
				base[k] = v
			}
		}
	}

	envFile := opts.EnvFile
	if envFile == "" {
		if !fileutil.FileExists(".env") {
			return base, nil
		}
		envFile = ".env"
	}

	fileVars, err := godotenv.Read(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file %s: %w", envFile, err)
	}

	merged := make(map[string]string, len(base)+len(fileVars))
	for k, v := range fileVars {
		merged[k] = v
	}
	for k, v := range base {
		merged[k] = v
	}
	return merged, nil
}

// ApplyDefaults fills zero values left by the sources
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if strings.TrimSpace(c.Bot.WorkflowFile) == "" {
		c.Bot.WorkflowFile = preview.DefaultWorkflowFile
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// UsesApp reports whether GitHub App authentication is configured
func (c *Config) UsesApp() bool {
	return c.GitHub.AppID != 0 || c.GitHub.PrivateKeyPath != ""
}

// Addr is the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate checks the configuration and reports every problem at once
func (c *Config) Validate() error {
	var problems []string

	if c.WebhookSecret == "" {
		problems = append(problems, "  - missing required 'webhook_secret'")
	} else if err := security.ValidateSecret(c.WebhookSecret); err != nil {
		problems = append(problems, fmt.Sprintf("  - webhook_secret: %v", err))
	}

	switch {
	case c.GitHub.Token != "" && c.UsesApp():
		problems = append(problems, "  - github: set either 'token' or 'app_id' + 'private_key_path', not both")
	case c.UsesApp():
		if c.GitHub.AppID <= 0 {
			problems = append(problems, "  - github: 'app_id' must be a positive integer")
		}
		if c.GitHub.PrivateKeyPath == "" {
			problems = append(problems, "  - github: missing 'private_key_path'")
		} else if err := security.ValidateSecurePermissions(c.GitHub.PrivateKeyPath); err != nil {
			problems = append(problems, fmt.Sprintf("  - github: private key: %v", err))
		}
	case c.GitHub.Token == "":
		problems = append(problems, "  - github: missing 'token' (or 'app_id' + 'private_key_path')")
	}

	if strings.TrimSpace(c.Bot.Login) == "" {
		problems = append(problems, "  - bot: missing required 'login'")
	}
	if err := security.ValidateWorkflowFile(c.Bot.WorkflowFile); err != nil {
		problems = append(problems, fmt.Sprintf("  - bot: %v", err))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("  - server: port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.RateLimit.PerMinute < 0 {
		problems = append(problems, fmt.Sprintf("  - rate_limit: per_minute must not be negative, got %d", c.RateLimit.PerMinute))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("  - log: unknown level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		problems = append(problems, fmt.Sprintf("  - log: unknown format %q", c.Log.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration:\n" + strings.Join(problems, "\n"))
	}
	return nil
}

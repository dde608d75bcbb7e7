/*-------------------------------------------------------------------------
 *
 * QueryChat Natural Language SQL Agent
 *
 * Copyright (c) 2025, the QueryChat authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"querychat/internal/database"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Address string    `yaml:"address"`
	TLS     TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS/HTTPS settings
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// DatabaseConfig holds database backend settings
type DatabaseConfig struct {
	Backend    string `yaml:"backend"`     // sqlite, memory, or remote
	SQLitePath string `yaml:"sqlite_path"` // sqlite backend: path to database file
	Driver     string `yaml:"driver"`      // remote backend: postgres or mysql
	URL        string `yaml:"url"`         // remote backend: connection string

	// Datasets seed the memory backend, keyed by table name
	Datasets map[string]DatasetConfig `yaml:"datasets"`

	QueryTimeout string `yaml:"query_timeout"` // duration string, e.g. "60s"
}

// DatasetConfig is one in-memory table described in the config file
type DatasetConfig struct {
	Columns []string        `yaml:"columns"`
	Rows    [][]interface{} `yaml:"rows"`
}

// LLMConfig holds model provider settings
type LLMConfig struct {
	Provider            string  `yaml:"provider"`               // "anthropic" or "ollama"
	Model               string  `yaml:"model"`                  // Provider-specific model name
	AnthropicAPIKey     string  `yaml:"anthropic_api_key"`      // Direct key (discouraged, use api_key_file or env var)
	AnthropicAPIKeyFile string  `yaml:"anthropic_api_key_file"` // Path to file containing the API key
	OllamaURL           string  `yaml:"ollama_url"`             // URL for Ollama service
	MaxTokens           int     `yaml:"max_tokens"`             // Maximum tokens per model response
	Temperature         float64 `yaml:"temperature"`            // Sampling temperature
}

// CLIFlags represents command line flag values and whether they were
// explicitly set.
type CLIFlags struct {
	ConfigFile    string
	ConfigFileSet bool

	Address    string
	AddressSet bool

	Backend       string
	BackendSet    bool
	SQLitePath    string
	SQLitePathSet bool
	Driver        string
	DriverSet     bool
	URL           string
	URLSet        bool

	Provider    string
	ProviderSet bool
	Model       string
	ModelSet    bool
}

// LoadConfig loads configuration with proper priority:
// 1. Command line flags (highest priority)
// 2. Environment variables
// 3. Configuration file
// 4. Hard-coded defaults (lowest priority)
func LoadConfig(configPath string, cliFlags CLIFlags) (*Config, error) {
	cfg := defaultConfig()

	if configPath != "" {
		fileCfg, err := loadConfigFile(configPath)
		if err != nil {
			// An explicitly requested file must load; a default path may
			// simply not exist.
			if cliFlags.ConfigFileSet {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
		} else {
			mergeConfig(cfg, fileCfg)
		}
	}

	applyEnvironmentVariables(cfg)
	applyCLIFlags(cfg, cliFlags)

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address: ":8080",
		},
		Database: DatabaseConfig{
			Backend:      "sqlite",
			SQLitePath:   "./querychat.db",
			Driver:       "postgres",
			QueryTimeout: "60s",
		},
		LLM: LLMConfig{
			Provider:    "anthropic",
			Model:       "claude-sonnet-4-5",
			OllamaURL:   "http://localhost:11434",
			MaxTokens:   4096,
			Temperature: 0.2,
		},
	}
}

func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &cfg, nil
}

// mergeConfig overlays non-zero file values onto the defaults
func mergeConfig(dst, src *Config) {
	if src.Server.Address != "" {
		dst.Server.Address = src.Server.Address
	}
	if src.Server.TLS.Enabled {
		dst.Server.TLS = src.Server.TLS
	}

	if src.Database.Backend != "" {
		dst.Database.Backend = src.Database.Backend
	}
	if src.Database.SQLitePath != "" {
		dst.Database.SQLitePath = src.Database.SQLitePath
	}
	if src.Database.Driver != "" {
		dst.Database.Driver = src.Database.Driver
	}
	if src.Database.URL != "" {
		dst.Database.URL = src.Database.URL
	}
	if len(src.Database.Datasets) > 0 {
		dst.Database.Datasets = src.Database.Datasets
	}
	if src.Database.QueryTimeout != "" {
		dst.Database.QueryTimeout = src.Database.QueryTimeout
	}

	if src.LLM.Provider != "" {
		dst.LLM.Provider = src.LLM.Provider
	}
	if src.LLM.Model != "" {
		dst.LLM.Model = src.LLM.Model
	}
	if src.LLM.AnthropicAPIKey != "" {
		dst.LLM.AnthropicAPIKey = src.LLM.AnthropicAPIKey
	}
	if src.LLM.AnthropicAPIKeyFile != "" {
		dst.LLM.AnthropicAPIKeyFile = src.LLM.AnthropicAPIKeyFile
	}
	if src.LLM.OllamaURL != "" {
		dst.LLM.OllamaURL = src.LLM.OllamaURL
	}
	if src.LLM.MaxTokens != 0 {
		dst.LLM.MaxTokens = src.LLM.MaxTokens
	}
	if src.LLM.Temperature != 0 {
		dst.LLM.Temperature = src.LLM.Temperature
	}
}

func applyEnvironmentVariables(cfg *Config) {
	if v := os.Getenv("QUERYCHAT_LISTEN_ADDR"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("QUERYCHAT_BACKEND"); v != "" {
		cfg.Database.Backend = v
	}
	if v := os.Getenv("QUERYCHAT_SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("QUERYCHAT_REMOTE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("QUERYCHAT_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("QUERYCHAT_QUERY_TIMEOUT"); v != "" {
		cfg.Database.QueryTimeout = v
	}
	if v := os.Getenv("QUERYCHAT_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("QUERYCHAT_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("QUERYCHAT_OLLAMA_URL"); v != "" {
		cfg.LLM.OllamaURL = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && cfg.LLM.AnthropicAPIKey == "" {
		cfg.LLM.AnthropicAPIKey = v
	}
}

func applyCLIFlags(cfg *Config, flags CLIFlags) {
	if flags.AddressSet {
		cfg.Server.Address = flags.Address
	}
	if flags.BackendSet {
		cfg.Database.Backend = flags.Backend
	}
	if flags.SQLitePathSet {
		cfg.Database.SQLitePath = flags.SQLitePath
	}
	if flags.DriverSet {
		cfg.Database.Driver = flags.Driver
	}
	if flags.URLSet {
		cfg.Database.URL = flags.URL
	}
	if flags.ProviderSet {
		cfg.LLM.Provider = flags.Provider
	}
	if flags.ModelSet {
		cfg.LLM.Model = flags.Model
	}
}

func validateConfig(cfg *Config) error {
	switch cfg.Database.Backend {
	case "sqlite", "memory", "remote":
	default:
		return fmt.Errorf("database.backend must be sqlite, memory, or remote, got %q", cfg.Database.Backend)
	}

	if cfg.Database.Backend == "remote" && cfg.Database.URL == "" {
		return fmt.Errorf("database.url is required for the remote backend")
	}

	if cfg.Database.QueryTimeout != "" {
		if _, err := time.ParseDuration(cfg.Database.QueryTimeout); err != nil {
			return fmt.Errorf("database.query_timeout is not a valid duration: %w", err)
		}
	}

	switch cfg.LLM.Provider {
	case "anthropic", "ollama":
	default:
		return fmt.Errorf("llm.provider must be anthropic or ollama, got %q", cfg.LLM.Provider)
	}

	if cfg.Server.TLS.Enabled {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			return fmt.Errorf("server.tls requires cert_file and key_file")
		}
	}

	return nil
}

// DatabaseOpenConfig converts the file-level database section into the
// backend provider's configuration.
func (c *Config) DatabaseOpenConfig() database.Config {
	dbCfg := database.Config{
		Kind:   database.Kind(c.Database.Backend),
		Path:   c.Database.SQLitePath,
		Driver: c.Database.Driver,
		URL:    c.Database.URL,
	}

	if c.Database.QueryTimeout != "" {
		if d, err := time.ParseDuration(c.Database.QueryTimeout); err == nil {
			dbCfg.QueryTimeout = d
		}
	}

	if len(c.Database.Datasets) > 0 {
		dbCfg.Datasets = make(map[string]database.Dataset, len(c.Database.Datasets))
		for name, ds := range c.Database.Datasets {
			dbCfg.Datasets[name] = database.Dataset{
				Columns: ds.Columns,
				Rows:    ds.Rows,
			}
		}
	}

	return dbCfg
}

// ResolveAnthropicAPIKey returns the API key with proper priority:
// direct value, then key file, then the ANTHROPIC_API_KEY env var.
func (c *Config) ResolveAnthropicAPIKey() (string, error) {
	if c.LLM.AnthropicAPIKey != "" {
		return c.LLM.AnthropicAPIKey, nil
	}
	if c.LLM.AnthropicAPIKeyFile != "" {
		data, err := os.ReadFile(c.LLM.AnthropicAPIKeyFile)
		if err != nil {
			return "", fmt.Errorf("failed to read API key file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return os.Getenv("ANTHROPIC_API_KEY"), nil
}

// Package config handles configuration loading for printmind. Settings
// come from a YAML file, environment variables with the PRINTMIND prefix,
// and built-in defaults, in that order of precedence. Defaults are safe
// for local use: in-memory store, no printer endpoint, mock-friendly.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all engine settings.
type Config struct {
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Turn      TurnConfig      `mapstructure:"turn"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Store     StoreConfig     `mapstructure:"store"`
	Printer   PrinterConfig   `mapstructure:"printer"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Log       LogConfig       `mapstructure:"log"`
}

// OracleConfig selects and parameterizes the reasoning provider.
type OracleConfig struct {
	// Provider is one of "anthropic", "openai" or "mock".
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int64   `mapstructure:"max_tokens"`
}

// TurnConfig bounds supervisor turns.
type TurnConfig struct {
	MaxRounds int           `mapstructure:"max_rounds"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// PipelineConfig bounds strict-mode turns.
type PipelineConfig struct {
	MaxRetries       int     `mapstructure:"max_retries"`
	QualityThreshold float64 `mapstructure:"quality_threshold"`
}

// StoreConfig selects session persistence.
type StoreConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `mapstructure:"driver"`
	// Path is the sqlite database file. Ignored for memory.
	Path string `mapstructure:"path"`
}

// PrinterConfig points at a Moonraker-compatible endpoint. An empty URL
// disables the printer capabilities.
type PrinterConfig struct {
	APIURL  string        `mapstructure:"api_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// KnowledgeConfig tunes retrieval.
type KnowledgeConfig struct {
	TopK int `mapstructure:"top_k"`
	// CorpusDir holds markdown/text documents ingested at startup.
	CorpusDir string `mapstructure:"corpus_dir"`
}

// LogConfig tunes the structured logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultDBPath returns the default sqlite location under XDG data home.
func DefaultDBPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "printmind", "printmind.db")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("oracle.provider", "anthropic")
	v.SetDefault("oracle.model", "")
	v.SetDefault("oracle.temperature", 0.7)
	v.SetDefault("oracle.max_tokens", 4096)

	v.SetDefault("turn.max_rounds", 4)
	v.SetDefault("turn.timeout", 120*time.Second)

	v.SetDefault("pipeline.max_retries", 2)
	v.SetDefault("pipeline.quality_threshold", 7.0)

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.path", DefaultDBPath())

	v.SetDefault("printer.api_url", "")
	v.SetDefault("printer.timeout", 10*time.Second)

	v.SetDefault("knowledge.top_k", 3)
	v.SetDefault("knowledge.corpus_dir", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration with the standard precedence: environment
// variables (PRINTMIND_*), then the user config file
// (~/.config/printmind/config.yaml), then defaults.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	bindEnv(v)

	return unmarshal(v)
}

// LoadFromPath reads configuration from an explicit file.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	bindEnv(v)

	return unmarshal(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("PRINTMIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider API keys follow their vendors' conventions too.
	_ = v.BindEnv("oracle.api_key", "PRINTMIND_ORACLE_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY")
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Oracle.APIKey = os.ExpandEnv(cfg.Oracle.APIKey)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Oracle.Provider {
	case "anthropic", "openai", "mock":
	default:
		return fmt.Errorf("unknown oracle provider %q", c.Oracle.Provider)
	}
	switch c.Store.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Turn.MaxRounds < 1 {
		return fmt.Errorf("turn.max_rounds must be at least 1")
	}
	if c.Pipeline.QualityThreshold < 1 || c.Pipeline.QualityThreshold > 10 {
		return fmt.Errorf("pipeline.quality_threshold must be within [1, 10]")
	}
	return nil
}

func userConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "printmind")
}

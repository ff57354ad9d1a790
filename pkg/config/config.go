// Package config provides configuration loading and validation for the
// structgrep CLI, LSP, and MCP server.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidPort       = errors.New("invalid server port")
	ErrInvalidConcurrent = errors.New("max concurrent scans must be positive")
	ErrNoLanguages       = errors.New("at least one language must be enabled")
	ErrInvalidSizeFormat = errors.New("invalid cache size format")
)

// Default configuration values.
const (
	defaultPort          = 8734
	defaultHost          = "127.0.0.1"
	defaultMaxConcurrent = 8
	maxPort              = 65535
)

// Config holds all configuration for the structgrep server and tooling.
type Config struct {
	Rules     RulesConfig     `mapstructure:"rules"`
	Languages LanguagesConfig `mapstructure:"languages"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Cache     CacheConfig     `mapstructure:"cache"`
}

// RulesConfig locates and bounds rule document loading.
type RulesConfig struct {
	Directories     []string `mapstructure:"directories"`
	MaxConcurrent   int      `mapstructure:"max_concurrent"`
	FailOnBadSchema bool     `mapstructure:"fail_on_bad_schema"`
}

// LanguagesConfig selects which of the built-in grammars are offered.
type LanguagesConfig struct {
	Enabled []string `mapstructure:"enabled"`
}

// ServerConfig holds LSP/MCP server transport configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Transport    string        `mapstructure:"transport"` // "stdio" or "http"
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Port         int           `mapstructure:"port"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// CacheConfig bounds the source-blob cache (pkg/cache). MaxSize is the
// resolved byte limit; MaxSizeHuman, when set, overrides it with a
// human-readable size such as "256MB" or "1GiB".
type CacheConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	MaxSize      int64  `mapstructure:"max_size"`
	MaxSizeHuman string `mapstructure:"max_size_human"`
}

// LoadConfig loads configuration from file and STRUCTGREP_-prefixed
// environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("structgrep")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/structgrep")
	}

	viperCfg.SetEnvPrefix("STRUCTGREP")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	if err := viperCfg.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Cache.MaxSizeHuman != "" {
		size, parseErr := humanize.ParseBytes(config.Cache.MaxSizeHuman)
		if parseErr != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidSizeFormat, config.Cache.MaxSizeHuman)
		}

		config.Cache.MaxSize = SafeInt64(size)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// SafeInt64 clamps an unsigned byte count to the range of int64, since
// humanize.ParseBytes returns a uint64 but Config stores byte counts as int64.
func SafeInt64(v uint64) int64 {
	if v > uint64(math.MaxInt64) {
		return math.MaxInt64
	}

	return int64(v)
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("rules.directories", []string{"./rules"})
	viperCfg.SetDefault("rules.max_concurrent", defaultMaxConcurrent)
	viperCfg.SetDefault("rules.fail_on_bad_schema", true)

	viperCfg.SetDefault("languages.enabled", []string{
		"c", "cpp", "go", "java", "javascript", "json", "python", "rust", "tsx", "typescript", "yaml",
	})

	viperCfg.SetDefault("server.transport", "stdio")
	viperCfg.SetDefault("server.host", defaultHost)
	viperCfg.SetDefault("server.port", defaultPort)
	viperCfg.SetDefault("server.read_timeout", "30s")
	viperCfg.SetDefault("server.write_timeout", "30s")

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "json")
	viperCfg.SetDefault("logging.output", "stdout")

	viperCfg.SetDefault("cache.enabled", true)
	viperCfg.SetDefault("cache.max_size", 256*1024*1024)
}

func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, config.Server.Port)
	}

	if config.Rules.MaxConcurrent <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidConcurrent, config.Rules.MaxConcurrent)
	}

	if len(config.Languages.Enabled) == 0 {
		return ErrNoLanguages
	}

	return nil
}

// Package config loads embedload settings from embedload.toml, environment
// variables and built-in defaults.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "embedload"
	// ConfigFileName is the config file looked up in the working directory.
	ConfigFileName = "embedload.toml"
	// EnvPrefix prefixes environment overrides (EMBEDLOAD_LOG_LEVEL, ...).
	EnvPrefix = "EMBEDLOAD"
)

// Config holds the overlay's tables and sources.
type Config struct {
	// Archive is a SQLite bundle path. Empty selects the embedded archive.
	Archive string `mapstructure:"archive" toml:"archive"`
	// Extension is appended to requests that lack it.
	Extension string `mapstructure:"extension" toml:"extension"`
	// Roots are the fixed search roots, in scan order. Roots starting with
	// ":" address the archive; others are directories for the host loader.
	Roots []string `mapstructure:"roots" toml:"roots"`
	// Discover lists marker file names whose archive directories are appended
	// to Roots at startup.
	Discover []string `mapstructure:"discover" toml:"discover"`
	// Blocklist names are treated as already provided by the host.
	Blocklist []string `mapstructure:"blocklist" toml:"blocklist"`
	// NativeModules enables built-in native modules by name.
	NativeModules []string `mapstructure:"native_modules" toml:"native_modules"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level" toml:"log_level"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Extension: ".risor",
		Roots:     []string{":", ":/lib"},
		Discover:  []string{"textkit.risor"},
		Blocklist: []string{"openstudio/energyplus/find_energyplus"},
		NativeModules: []string{
			"json/ext/parser",
			"json/ext/generator",
		},
		LogLevel: "warn",
	}
}

// LoadOptions selects where configuration comes from.
type LoadOptions struct {
	// ConfigFilePath, when set, must exist and is used exclusively.
	ConfigFilePath string
	// WorkDir is searched for ConfigFileName when ConfigFilePath is empty.
	WorkDir string
}

// Load reads configuration and returns it with the path of the file used
// ("" when only defaults and environment applied).
func Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	v.SetConfigType("toml")

	defaults := DefaultConfig()
	v.SetDefault("archive", defaults.Archive)
	v.SetDefault("extension", defaults.Extension)
	v.SetDefault("roots", defaults.Roots)
	v.SetDefault("discover", defaults.Discover)
	v.SetDefault("blocklist", defaults.Blocklist)
	v.SetDefault("native_modules", defaults.NativeModules)
	v.SetDefault("log_level", defaults.LogLevel)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", fmt.Errorf("config file not found: %s", opts.ConfigFilePath)
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		dir := opts.WorkDir
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, ConfigFileName)
		if fileExists(candidate) {
			resolvedPath = candidate
		}
	}

	if resolvedPath != "" {
		v.SetConfigFile(resolvedPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("failed to read config %s: %w", resolvedPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, resolvedPath, nil
}

// Validate checks constraints the file format cannot express.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Extension, ".") {
		return fmt.Errorf("config: extension %q must start with '.'", c.Extension)
	}
	if len(c.Roots) == 0 {
		return fmt.Errorf("config: at least one root is required")
	}
	for _, root := range c.Roots {
		if strings.TrimSpace(root) == "" {
			return fmt.Errorf("config: empty root")
		}
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: log_level: %w", err)
	}
	return nil
}

// Level returns the parsed log level, defaulting to warn.
func (c *Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.WarnLevel
	}
	return lvl
}

// TOML renders the configuration as an embedload.toml document.
func (c *Config) TOML() (string, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("config: encoding toml: %w", err)
	}
	return string(data), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

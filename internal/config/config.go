// Package config loads assetviewer settings.
//
// Settings come from, in increasing precedence: built-in defaults, an optional
// YAML file (named by --config or ASSETVIEWER_CONFIG), environment variables,
// and command-line flags. Flags are applied by the caller.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvConfig  = "ASSETVIEWER_CONFIG"
	EnvStore   = "ASSETVIEWER_STORE"
	EnvOutput  = "ASSETVIEWER_OUTPUT"
	EnvWorkers = "ASSETVIEWER_WORKERS"
)

// Log formats.
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

// Config is the assetviewer configuration.
type Config struct {
	// Store is the asset store or game directory. Empty means the
	// platform default.
	Store string `yaml:"store"`

	// Output is the directory exports are written under, one
	// subdirectory per version.
	Output string `yaml:"output"`

	// Workers is the number of concurrent copies; 0 uses GOMAXPROCS
	// and negative values copy serially.
	Workers int `yaml:"workers"`

	// Verify checks copied content against the manifest.
	Verify bool `yaml:"verify"`

	// Log configures diagnostics written to stderr.
	Log LogConfig `yaml:"log"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is one of auto, text, json. Auto picks text on a terminal.
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Output: "out",
		Log: LogConfig{
			Level:  "info",
			Format: FormatAuto,
		},
	}
}

// Load builds a Config from defaults, the file at path (or EnvConfig when
// path is empty), and the environment. A missing path and EnvConfig means no
// file is read.
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = getenv(EnvConfig)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path) //nolint:gosec // user-selected config file
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables that are set.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvStore); v != "" {
		c.Store = v
	}
	if v := getenv(EnvOutput); v != "" {
		c.Output = v
	}
	if v := getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvWorkers, err)
		}
		c.Workers = n
	}
	return nil
}

// Validate checks enumerated fields.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case FormatAuto, FormatText, FormatJSON:
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	if c.Output == "" {
		return errors.New("config: output is empty")
	}
	return nil
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: unknown log level %q", s)
	}
	return level, nil
}

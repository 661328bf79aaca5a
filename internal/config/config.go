// Package config loads pinup's configuration: struct defaults, an optional
// TOML config file, PINUP_* environment variables, and CLI flag overrides,
// in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces pinup's environment variables (e.g. PINUP_SOCKET).
const envPrefix = "PINUP_"

// DefaultConfigFile is looked up in the working directory when no explicit
// config file is given.
const DefaultConfigFile = ".pinup.toml"

// Config holds all runtime settings.
type Config struct {
	// File is the Containerfile to update.
	File string `koanf:"file"`
	// Socket is the container runtime socket URL; empty means autodetect.
	Socket string `koanf:"socket"`
	// Verbosity is the log level: debug, info, warning, or error.
	Verbosity string `koanf:"verbosity"`
	// Yes skips the confirmation prompt before writing changes.
	Yes bool `koanf:"yes"`
	// QueryTimeout bounds one containerized version query, image pull
	// included.
	QueryTimeout time.Duration `koanf:"query_timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		File:         "Containerfile",
		Verbosity:    "warning",
		QueryTimeout: 5 * time.Minute,
	}
}

// Load assembles the configuration. configFile may be empty, in which case
// DefaultConfigFile is used when present. overrides holds CLI flag values
// (koanf key → value) and wins over every other source.
func Load(configFile string, overrides map[string]any) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	explicit := configFile != ""
	if configFile == "" {
		configFile = DefaultConfigFile
	}
	if _, err := os.Stat(configFile); err == nil || explicit {
		if err := k.Load(file.Provider(configFile), toml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", configFile, err)
		}
	}

	err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
			return key, value
		},
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return Config{}, fmt.Errorf("load flag overrides: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

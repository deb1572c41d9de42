// Package config layers soltrack's configuration: flag defaults, then a YAML
// file, then SOLTRACK_-prefixed environment variables, then any flag set
// explicitly on the command line.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "SOLTRACK_"

// Config is everything the process needs to start.
type Config struct {
	DB        string `koanf:"db"`        // SQLite database path
	Addr      string `koanf:"addr"`      // HTTP listen address
	Catalog   string `koanf:"catalog"`   // standards catalog directory
	Repo      string `koanf:"repo"`      // optional git URL backing the catalog directory
	Ephemeral bool   `koanf:"ephemeral"` // keep state in memory, skip SQLite
}

// Load resolves the configuration. A config file named explicitly must exist;
// the default path is used only when present.
func Load(path string, explicit bool, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		} else if explicit {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment config: %w", err)
	}

	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load flag config: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

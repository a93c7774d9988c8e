// Package config loads planfold configuration from file, environment, and
// flags via viper.
//
// Precedence (highest wins): explicit flags, PF_* environment variables,
// config file, built-in defaults. The config file is optional; a missing
// file is not an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the resolved runtime configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Actor    ActorConfig    `mapstructure:"actor"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// ActorConfig sets the default acting user when no --actor flag is given.
type ActorConfig struct {
	Name string `mapstructure:"name"`
	Role string `mapstructure:"role"`
}

// DefaultDBPath returns the default database location, preferring a
// .planfold directory in the working directory and falling back to the
// user's home.
func DefaultDBPath() string {
	if _, err := os.Stat(".planfold"); err == nil {
		return filepath.Join(".planfold", "planfold.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".planfold", "planfold.db")
	}
	return filepath.Join(home, ".planfold", "planfold.db")
}

// Load reads configuration. cfgFile may be empty, in which case standard
// locations are searched (./.planfold/config.yaml, ~/.planfold/config.yaml).
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("database.path", DefaultDBPath())
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("actor.name", "")
	v.SetDefault("actor.role", "member")

	v.SetEnvPrefix("PF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees env values for keys that are explicitly bound.
	for _, key := range []string{"database.path", "log.level", "log.pretty", "actor.name", "actor.role"} {
		_ = v.BindEnv(key)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".planfold")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".planfold"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine unless one was named explicitly.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

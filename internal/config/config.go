package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// AppName names the config directory and the env prefix.
const AppName = "settingsctl"

// EnvConfig points at an explicit config file.
const EnvConfig = "SETTINGSCTL_CONFIG"

// Config holds settingsctl configuration.
type Config struct {
	Log        LogConfig   `mapstructure:"log"`
	Format     string      `mapstructure:"format"`
	AutoCreate bool        `mapstructure:"auto_create"`
	Rules      RulesConfig `mapstructure:"rules"`
	Store      StoreConfig `mapstructure:"store"`
}

// LogConfig configures pkg/logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// RulesConfig selects default validation rules.
type RulesConfig struct {
	File   string `mapstructure:"file"`
	Engine string `mapstructure:"engine"`
}

// StoreConfig points at a persisted settings store.
type StoreConfig struct {
	DSN string `mapstructure:"dsn"`
}

// DefaultPath returns the config file used when SETTINGSCTL_CONFIG is unset.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// Load reads configuration from fs and the environment. A missing config
// file is not an error. Env var overrides use prefix SETTINGSCTL_.
func Load(fs afero.Fs) (Config, error) {
	v := viper.New()
	if fs != nil {
		v.SetFs(fs)
	}

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("format", "")
	v.SetDefault("auto_create", false)
	v.SetDefault("rules.file", "")
	v.SetDefault("rules.engine", "expr")
	v.SetDefault("store.dsn", "")

	v.SetConfigType("yaml")
	cfgPath := os.Getenv(EnvConfig)
	explicit := cfgPath != ""
	if !explicit {
		cfgPath = DefaultPath()
	}
	v.SetConfigFile(cfgPath)

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if explicit || !isNotExist(err) {
			return Config{}, fmt.Errorf("read config %s: %w", cfgPath, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

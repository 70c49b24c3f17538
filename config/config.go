// Package config loads daemon settings from config.toml and MEDIAKEYD_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"mediakeyd/hotkey"
)

const (
	appName    = "mediakeyd"
	envPrefix  = "MEDIAKEYD"
	configName = "config"
	storeName  = "media_hotkeys.json"
)

type Config struct {
	Store    StoreConfig    `mapstructure:"store"`
	Log      LogConfig      `mapstructure:"log"`
	Hotkeys  HotkeysConfig  `mapstructure:"hotkeys"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	// Path is the log directory; empty means the OS default.
	Path    string `mapstructure:"path"`
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

type HotkeysConfig struct {
	FireMode string `mapstructure:"fire_mode"`
}

type DispatchConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	QueueSize int           `mapstructure:"queue_size"`
}

// Mode returns the parsed fire mode. Load has already validated it.
func (c *Config) Mode() hotkey.FireMode {
	m, _ := hotkey.ParseFireMode(c.Hotkeys.FireMode)
	return m
}

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	if d := os.Getenv("MEDIAKEYD_CONFIG_DIR"); d != "" {
		return d, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appName), nil
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("store.path", filepath.Join(dir, storeName))
	v.SetDefault("log.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", false)
	v.SetDefault("hotkeys.fire_mode", "repeat")
	v.SetDefault("dispatch.timeout", 5*time.Second)
	v.SetDefault("dispatch.queue_size", 8)
}

// Load reads file, or config.toml from the config directory when file is
// empty. A missing default file is not an error.
func Load(file string) (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, fmt.Errorf("determine config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, dir)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config %s: %w", v.ConfigFileUsed(), err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", v.ConfigFileUsed(), err)
	}
	cfg.File = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every setting and names each bad key.
func (c *Config) Validate() error {
	var problems []string
	if c.Store.Path == "" {
		problems = append(problems, "store.path must not be empty")
	}
	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log.level %q must be one of trace, debug, info, warn, error", c.Log.Level))
	}
	if _, err := hotkey.ParseFireMode(c.Hotkeys.FireMode); err != nil {
		problems = append(problems, "hotkeys.fire_mode: "+err.Error())
	}
	if c.Dispatch.Timeout <= 0 {
		problems = append(problems, "dispatch.timeout must be positive")
	}
	if c.Dispatch.QueueSize < 1 {
		problems = append(problems, "dispatch.queue_size must be at least 1")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

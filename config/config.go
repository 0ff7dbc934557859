// Package config provides runtime configuration for WireSock Manager.
//
// Configuration sources (in priority order):
//  1. Environment variables (WIRESOCK_MANAGER_*)
//  2. Config file (<user config dir>/wiresock-manager/config.yaml)
//  3. Built-in defaults
//
// Profiles and the client binary path are not configuration; they live in
// the settings file owned by the profile store.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yllada/wiresock-manager/common"
)

// Config represents the application configuration.
type Config struct {
	// DataDir holds settings.yaml, the configs directory and the history database.
	DataDir string `mapstructure:"data_dir"`

	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Log        LogConfig        `mapstructure:"log"`

	Notifications NotificationsConfig `mapstructure:"notifications"`
	History       HistoryConfig       `mapstructure:"history"`

	v *viper.Viper
}

// SupervisorConfig tunes process supervision timing.
type SupervisorConfig struct {
	GraceInterval      time.Duration `mapstructure:"grace_interval"`
	TerminationTimeout time.Duration `mapstructure:"termination_timeout"`
	KillTimeout        time.Duration `mapstructure:"kill_timeout"`
}

// LogConfig controls the application log.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  bool   `mapstructure:"file"`
	Dir   string `mapstructure:"dir"`
}

// NotificationsConfig toggles desktop notifications on state changes.
type NotificationsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// HistoryConfig toggles the connection journal.
type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Keep is the number of attempts retained; older ones are pruned.
	Keep int `mapstructure:"keep"`
}

// setDefaults registers the built-in defaults.
func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("data_dir", configDir)
	v.SetDefault("supervisor.grace_interval", common.GraceInterval)
	v.SetDefault("supervisor.termination_timeout", common.TerminationTimeout)
	v.SetDefault("supervisor.kill_timeout", common.KillTimeout)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", true)
	v.SetDefault("log.dir", filepath.Join(configDir, "logs"))
	v.SetDefault("notifications.enabled", true)
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.keep", 500)
}

// Load reads configuration from all sources.
// A missing config file is not an error.
func Load() (*Config, error) {
	configDir, err := common.GetConfigDir()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfigLoad, err)
	}
	return LoadFrom(configDir)
}

// LoadFrom reads configuration using configDir for the config file and defaults.
func LoadFrom(configDir string) (*Config, error) {
	v := viper.New()
	setDefaults(v, configDir)

	v.AddConfigPath(configDir)
	v.SetConfigName(strings.TrimSuffix(common.ConfigFileName, filepath.Ext(common.ConfigFileName)))
	v.SetConfigType("yaml")

	v.SetEnvPrefix(common.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %v", common.ErrConfigLoad, err)
		}
	}

	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfigLoad, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validate verifies that configuration values are usable.
func (c *Config) validate() error {
	if c.Supervisor.GraceInterval <= 0 {
		return fmt.Errorf("supervisor.grace_interval must be positive, got %v", c.Supervisor.GraceInterval)
	}
	if c.Supervisor.TerminationTimeout <= 0 {
		return fmt.Errorf("supervisor.termination_timeout must be positive, got %v", c.Supervisor.TerminationTimeout)
	}
	if c.Supervisor.KillTimeout <= 0 {
		return fmt.Errorf("supervisor.kill_timeout must be positive, got %v", c.Supervisor.KillTimeout)
	}
	if _, err := common.ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	if c.DataDir == "" {
		return errors.New("data_dir must not be empty")
	}
	if c.History.Keep < 0 {
		c.History.Keep = 0
	}
	return nil
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() common.LogLevel {
	level, _ := common.ParseLogLevel(c.Log.Level)
	return level
}

// ConfigFileUsed returns the config file that was read, if any.
func (c *Config) ConfigFileUsed() string {
	if c.v == nil {
		return ""
	}
	return c.v.ConfigFileUsed()
}

// All returns all configuration as a map.
func (c *Config) All() map[string]interface{} {
	if c.v == nil {
		return nil
	}
	return c.v.AllSettings()
}

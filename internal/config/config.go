// Package config provides configuration management for the rlm-worker
// process.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the worker.
type Config struct {
	Resource ResourceConfig `mapstructure:"resource"`
	Helpers  HelpersConfig  `mapstructure:"helpers"`
	Debug    DebugConfig    `mapstructure:"debug"`
	Log      LogConfig      `mapstructure:"log"`
}

// ResourceConfig holds per-process resource limits.
type ResourceConfig struct {
	CPULimitSec   int `mapstructure:"cpu_limit_sec"`
	MemoryLimitMB int `mapstructure:"memory_limit_mb"` // accepted, never enforced
}

// HelpersConfig toggles the callback-backed helper categories, for
// running the worker with no host attached.
type HelpersConfig struct {
	DisableCallbacks    bool `mapstructure:"disable_callbacks"`
	DisableMemory       bool `mapstructure:"disable_memory"`
	DisableVerification bool `mapstructure:"disable_verification"`
}

// DebugConfig controls the optional loopback introspection server.
type DebugConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LogConfig holds the log level setting. The worker's plain-text logger
// does not read Level; it writes every message.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from file and environment variables. Every
// key can also be set via RECURSE_<SECTION>_<FIELD>, e.g.
// RECURSE_RESOURCE_CPU_LIMIT_SEC or RECURSE_RESOURCE_MEMORY_LIMIT_MB.
// The two resource knobs additionally bind to the short spec-level names
// RECURSE_CPU_LIMIT_SEC / RECURSE_MEMORY_LIMIT_MB.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("resource.cpu_limit_sec", 30)
	v.SetDefault("resource.memory_limit_mb", 512)

	v.SetDefault("helpers.disable_callbacks", false)
	v.SetDefault("helpers.disable_memory", false)
	v.SetDefault("helpers.disable_verification", false)

	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.addr", "127.0.0.1:0")

	v.SetDefault("log.level", "info")

	// Read config file if specified
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/rlm-worker")
	}

	// Read environment variables
	v.SetEnvPrefix("RECURSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The documented short env var names (spec §4.7/§6) don't follow the
	// SECTION_FIELD pattern AutomaticEnv derives, so bind them explicitly.
	if err := v.BindEnv("resource.cpu_limit_sec", "RECURSE_CPU_LIMIT_SEC"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("resource.memory_limit_mb", "RECURSE_MEMORY_LIMIT_MB"); err != nil {
		return nil, err
	}

	// Try to read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

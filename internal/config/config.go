package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Config holds all configuration for the fauxqs server, following
// SPEC_FULL.md §6.1's nested mapstructure-tagged layout.
type Config struct {
	Server struct {
		Port int    `mapstructure:"port"`
		Host string `mapstructure:"host"`
	} `mapstructure:"server"`

	DefaultRegion string `mapstructure:"default_region"`

	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"logging"`

	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
		Port    int  `mapstructure:"port"`
	} `mapstructure:"metrics"`

	Spy struct {
		Enabled    bool `mapstructure:"enabled"`
		BufferSize int  `mapstructure:"buffer_size"`
	} `mapstructure:"message_spies"`

	// Init is a path to a YAML init-resources file, or inline YAML,
	// pre-creating queues/topics/buckets at startup (spec.md §6).
	Init string `mapstructure:"init"`
}

var (
	config *Config
	once   sync.Once
)

// Load initializes and loads the config.
func Load(configPath string) (*Config, error) {
	var err error
	once.Do(func() {
		err = loadConfig(configPath)
	})
	return config, err
}

// Get returns the current config, panics if config is not loaded.
func Get() *Config {
	if config == nil {
		panic("config is not loaded")
	}
	return config
}

func loadConfig(configPath string) error {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		fmt.Printf("No config file found, using defaults and environment variables\n")
	}

	v.SetEnvPrefix("FAUXQS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("server.port")
	v.BindEnv("server.host")
	v.BindEnv("default_region")
	v.BindEnv("logging.level")
	v.BindEnv("logging.format")
	v.BindEnv("metrics.enabled")
	v.BindEnv("metrics.port")
	v.BindEnv("message_spies.enabled")
	v.BindEnv("message_spies.buffer_size")
	v.BindEnv("init")

	setDefaults(v)

	config = &Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return validate(config)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 0) // 0 = ephemeral
	v.SetDefault("server.host", "")

	v.SetDefault("default_region", "us-east-1")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("message_spies.enabled", false)
	v.SetDefault("message_spies.buffer_size", 256)
}

func validate(c *Config) error {
	if c.Server.Port < 0 {
		return fmt.Errorf("server.port must be >= 0")
	}
	if c.DefaultRegion == "" {
		return fmt.Errorf("default_region must not be empty")
	}
	if c.Spy.BufferSize <= 0 {
		c.Spy.BufferSize = 256
	}
	return nil
}

// Package config loads process configuration from defaults, YAML files and
// DEXTER_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. DEXTER_ENGINE_GRACE_PERIOD.
const EnvPrefix = "DEXTER"

// DefaultPaths are tried when Load is called without paths.
var DefaultPaths = []string{
	"./config.yaml",
	"./configs/config.yaml",
}

// Config is the complete process configuration
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Pool   PoolConfig   `mapstructure:"pool"`
	Engine EngineConfig `mapstructure:"engine"`
	Log    LogConfig    `mapstructure:"log"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
}

type ServerConfig struct {
	HTTPAddr        string        `mapstructure:"http_addr" validate:"required"`
	WSAddr          string        `mapstructure:"ws_addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

type PoolConfig struct {
	ReserveA float64 `mapstructure:"reserve_a" validate:"gt=0"`
	ReserveB float64 `mapstructure:"reserve_b" validate:"gt=0"`
}

type EngineConfig struct {
	GracePeriod   time.Duration `mapstructure:"grace_period" validate:"gte=0"`
	MatchInterval time.Duration `mapstructure:"match_interval" validate:"gt=0"`
	MatchMode     string        `mapstructure:"match_mode" validate:"oneof=all_or_nothing partial"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers" validate:"required_if=Enabled true"`
	Topic   string   `mapstructure:"topic" validate:"required_if=Enabled true"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.ws_addr", ":3030")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("pool.reserve_a", 100000.0)
	v.SetDefault("pool.reserve_b", 100000.0)
	v.SetDefault("engine.grace_period", time.Second)
	v.SetDefault("engine.match_interval", 10*time.Millisecond)
	v.SetDefault("engine.match_mode", "all_or_nothing")
	v.SetDefault("log.level", "info")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "settlements")
}

// Load merges every existing file in paths (or DefaultPaths) over the defaults,
// applies environment overrides and validates the result. Missing files are skipped.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if len(paths) == 0 {
		paths = DefaultPaths
	}
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Engine.MatchMode = strings.ToLower(cfg.Engine.MatchMode)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

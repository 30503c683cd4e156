// Package config loads the server's runtime configuration from environment
// variables via viper, following the env-first convention the rest of the
// stack uses: defaults are set first, environment variables always win.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	Addr                  string   `mapstructure:"addr"`
	Port                  int      `mapstructure:"port"`
	AllowedSerialNumbers  string   `mapstructure:"allowed_serial_numbers"`
	LogLevel              string   `mapstructure:"log_level"`
	RedisAddr             string   `mapstructure:"redis_addr"`
	RedisPassword         string   `mapstructure:"redis_password"`
	RedisDB               int      `mapstructure:"redis_db"`
	KafkaBrokers          []string `mapstructure:"kafka_brokers"`
	KafkaTopic            string   `mapstructure:"kafka_topic"`
	MetricsAddr           string   `mapstructure:"metrics_addr"`
}

// Load reads configuration from the environment, applying defaults for
// everything but PORT, which must be set explicitly (§6: the server must not
// silently bind an arbitrary port).
func Load() (*Config, error) {
	setDefaults()
	setupEnvironmentVariables()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if cfg.Port == 0 {
		return nil, fmt.Errorf("config: PORT is required")
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("addr", "0.0.0.0")
	viper.SetDefault("allowed_serial_numbers", "")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("redis_addr", "")
	viper.SetDefault("redis_password", "")
	viper.SetDefault("redis_db", 0)
	viper.SetDefault("kafka_brokers", []string{})
	viper.SetDefault("kafka_topic", "ocpp-session-events")
	viper.SetDefault("metrics_addr", ":9090")
}

func setupEnvironmentVariables() {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.BindEnv("addr", "ADDR")
	viper.BindEnv("port", "PORT")
	viper.BindEnv("allowed_serial_numbers", "ALLOWED_SERIAL_NUMBERS")
	viper.BindEnv("log_level", "LOG_LEVEL")
	viper.BindEnv("redis_addr", "REDIS_ADDR")
	viper.BindEnv("redis_password", "REDIS_PASSWORD")
	viper.BindEnv("redis_db", "REDIS_DB")
	viper.BindEnv("kafka_topic", "KAFKA_TOPIC")
	viper.BindEnv("metrics_addr", "METRICS_ADDR")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		list := strings.Split(brokers, ",")
		for i, b := range list {
			list[i] = strings.TrimSpace(b)
		}
		viper.Set("kafka_brokers", list)
	}
}

// ServerAddr is the address the HTTP/WebSocket listener binds to.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Addr, c.Port)
}

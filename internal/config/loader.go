package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func Load(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvPrefix("HOTDOG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func bindEnvVariables() {
	viper.BindEnv("global.listen.address", "HOTDOG_LISTEN_ADDRESS")
	viper.BindEnv("global.listen.port", "HOTDOG_LISTEN_PORT")
	viper.BindEnv("global.status.address", "HOTDOG_STATUS_ADDRESS")
	viper.BindEnv("global.status.port", "HOTDOG_STATUS_PORT")
	viper.BindEnv("global.kafka.topic", "HOTDOG_KAFKA_TOPIC")
	viper.BindEnv("global.kafka.buffer", "HOTDOG_KAFKA_BUFFER")
	viper.BindEnv("global.metrics.statsd", "HOTDOG_METRICS_STATSD")
	viper.BindEnv("global.logging.level", "HOTDOG_LOGGING_LEVEL")
}

func applyDefaults(cfg *Config) {
	if cfg.Global.Listen.Address == "" {
		cfg.Global.Listen.Address = "0.0.0.0"
	}
	if cfg.Global.Listen.Port == 0 {
		cfg.Global.Listen.Port = 1514
	}
	if cfg.Global.Status.Address == "" {
		cfg.Global.Status.Address = "0.0.0.0"
	}
	if cfg.Global.Status.Port == 0 {
		cfg.Global.Status.Port = 8585
	}
	if cfg.Global.Kafka.Buffer == 0 {
		cfg.Global.Kafka.Buffer = 1024
	}
	if cfg.Global.Logging.Level == "" {
		cfg.Global.Logging.Level = "info"
	}
}

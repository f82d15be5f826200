package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables applied over the file.
const (
	EnvKafkaBrokers = "GATEWAY_KAFKA_BROKERS"
	EnvStoreDSN     = "GATEWAY_STORE_DSN"
)

// Load reads the YAML file at path, applies defaults and environment
// overrides, and validates the result. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyDefaults(&cfg)
	applyEnv(&cfg, os.Getenv)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}

	k := &cfg.Kafka
	if len(k.Brokers) == 0 {
		k.Brokers = []string{"localhost:9092"}
	}
	if k.ApplicationsTopic == "" {
		k.ApplicationsTopic = "applications.events"
	}
	if k.EventsPattern == "" {
		k.EventsPattern = `\.events$`
	}
	if k.NotificationsTopic == "" {
		k.NotificationsTopic = "notifications"
	}
	if k.ApplicationsGroup == "" {
		k.ApplicationsGroup = "fraud-gateway"
	}
	if k.EventsGroup == "" {
		k.EventsGroup = "event-router"
	}
	if k.NotificationsGroup == "" {
		k.NotificationsGroup = "notification-service"
	}
	if k.TopicRefreshInterval == 0 {
		k.TopicRefreshInterval = 30 * time.Second
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "memory"
	}
	if cfg.Notifications.History == "" {
		cfg.Notifications.History = "memory"
	}
	if cfg.Notifications.MaxHistory == 0 {
		cfg.Notifications.MaxHistory = 500
	}
	if cfg.ExternalAPI.Timeout == 0 {
		cfg.ExternalAPI.Timeout = 10 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvKafkaBrokers)); v != "" {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		if len(brokers) > 0 {
			cfg.Kafka.Brokers = brokers
		}
	}
	if v := strings.TrimSpace(getenv(EnvStoreDSN)); v != "" {
		cfg.Store.DSN = v
	}
}

// SlogLevel maps the configured level onto slog.
func (l LogConf) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

package config

import (
	"fmt"
	"regexp"
	"strings"
)

// Validate checks the config for:
//   - a known store driver, with a DSN for SQL drivers
//   - a known history backend, with a URL for redis
//   - a compilable events pattern that does not select the notifications topic
//   - known log level and format
func Validate(cfg *Config) error {
	var errs []string

	if len(cfg.Kafka.Brokers) == 0 {
		errs = append(errs, "kafka.brokers must not be empty")
	}
	if cfg.Kafka.ApplicationsTopic == "" {
		errs = append(errs, "kafka.applications_topic is required")
	}
	if re, err := regexp.Compile(cfg.Kafka.EventsPattern); err != nil {
		errs = append(errs, fmt.Sprintf("kafka.events_pattern: %v", err))
	} else if re.MatchString(cfg.Kafka.NotificationsTopic) {
		errs = append(errs, fmt.Sprintf("kafka.events_pattern %q must not match the notifications topic %q",
			cfg.Kafka.EventsPattern, cfg.Kafka.NotificationsTopic))
	}
	if cfg.Kafka.TopicRefreshInterval < 0 {
		errs = append(errs, "kafka.topic_refresh_interval must not be negative")
	}

	switch strings.ToLower(cfg.Store.Driver) {
	case "memory":
	case "postgres", "postgresql", "sqlite", "sqlite3":
		if cfg.Store.DSN == "" {
			errs = append(errs, fmt.Sprintf("store.dsn is required for driver %q", cfg.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q: must be memory, postgres or sqlite", cfg.Store.Driver))
	}

	switch strings.ToLower(cfg.Notifications.History) {
	case "memory":
	case "redis":
		if cfg.Notifications.RedisURL == "" {
			errs = append(errs, "notifications.redis_url is required for redis history")
		}
	default:
		errs = append(errs, fmt.Sprintf("notifications.history %q: must be memory or redis", cfg.Notifications.History))
	}
	if cfg.Notifications.MaxHistory < 0 {
		errs = append(errs, "notifications.max_history must not be negative")
	}
	if cfg.ExternalAPI.Timeout < 0 {
		errs = append(errs, "external_api.timeout must not be negative")
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q: must be debug, info, warn or error", cfg.Log.Level))
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q: must be text or json", cfg.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

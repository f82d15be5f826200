package config

import "time"

// Config is the top-level gateway configuration file.
type Config struct {
	HTTP          HTTPConf          `yaml:"http"`
	Kafka         KafkaConf         `yaml:"kafka"`
	Store         StoreConf         `yaml:"store"`
	Rules         RulesConf         `yaml:"rules"`
	Notifications NotificationsConf `yaml:"notifications"`
	ExternalAPI   ExternalAPIConf   `yaml:"external_api"`
	Log           LogConf           `yaml:"log"`
}

// HTTPConf configures the management API listener.
type HTTPConf struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// KafkaConf names the brokers, streams and consumer groups.
type KafkaConf struct {
	Brokers              []string      `yaml:"brokers"`
	ApplicationsTopic    string        `yaml:"applications_topic"`
	EventsPattern        string        `yaml:"events_pattern"`
	NotificationsTopic   string        `yaml:"notifications_topic"`
	ApplicationsGroup    string        `yaml:"applications_group"`
	EventsGroup          string        `yaml:"events_group"`
	NotificationsGroup   string        `yaml:"notifications_group"`
	TopicRefreshInterval time.Duration `yaml:"topic_refresh_interval"`
}

// StoreConf selects the rule and audit persistence backend.
type StoreConf struct {
	Driver string `yaml:"driver"` // memory | postgres | sqlite
	DSN    string `yaml:"dsn"`
}

// RulesConf optionally points at a YAML rule file. When set, rules are read
// from the file (hot-reloaded) and the rule API is read-only.
type RulesConf struct {
	File string `yaml:"file"`
}

// NotificationsConf configures the notification history.
type NotificationsConf struct {
	History    string `yaml:"history"` // memory | redis
	RedisURL   string `yaml:"redis_url"`
	RedisKey   string `yaml:"redis_key"`
	MaxHistory int    `yaml:"max_history"`
}

// ExternalAPIConf configures the HTTP client used by call-api reactions.
type ExternalAPIConf struct {
	Timeout time.Duration `yaml:"timeout"`
}

// LogConf configures the process logger.
type LogConf struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

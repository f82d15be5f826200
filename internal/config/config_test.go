package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "applications.events", cfg.Kafka.ApplicationsTopic)
	assert.Equal(t, `\.events$`, cfg.Kafka.EventsPattern)
	assert.Equal(t, "notifications", cfg.Kafka.NotificationsTopic)
	assert.Equal(t, "fraud-gateway", cfg.Kafka.ApplicationsGroup)
	assert.Equal(t, "event-router", cfg.Kafka.EventsGroup)
	assert.Equal(t, "notification-service", cfg.Kafka.NotificationsGroup)
	assert.Equal(t, 30*time.Second, cfg.Kafka.TopicRefreshInterval)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "memory", cfg.Notifications.History)
	assert.Equal(t, 500, cfg.Notifications.MaxHistory)
	assert.Equal(t, 10*time.Second, cfg.ExternalAPI.Timeout)
	assert.Equal(t, slog.LevelInfo, cfg.Log.SlogLevel())
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
http:
  addr: ":9090"
kafka:
  brokers: ["k1:9092", "k2:9092"]
  topic_refresh_interval: 5s
store:
  driver: sqlite
  dsn: /var/lib/gateway.db
notifications:
  history: redis
  redis_url: redis://localhost:6379/0
  max_history: 50
log:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5*time.Second, cfg.Kafka.TopicRefreshInterval)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 50, cfg.Notifications.MaxHistory)
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
	assert.Equal(t, "applications.events", cfg.Kafka.ApplicationsTopic)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, " a:1 , b:2 ,")
	t.Setenv(EnvStoreDSN, "postgres://u:p@db/gateway?sslmode=disable")

	cfg, err := Load(writeConfig(t, "store:\n  driver: postgres\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)
	assert.Equal(t, "postgres://u:p@db/gateway?sslmode=disable", cfg.Store.DSN)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "http: [\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `
kafka:
  events_pattern: "("
store:
  driver: mongo
notifications:
  history: redis
log:
  level: loud
  format: xml
`))
	require.Error(t, err)
	for _, want := range []string{"events_pattern", "store.driver", "redis_url", "log.level", "log.format"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_SQLNeedsDSN(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = "postgres"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.dsn")

	cfg.Store.DSN = "postgres://localhost/gateway"
	assert.NoError(t, Validate(cfg))
}

func TestValidate_PatternMustNotSelectNotifications(t *testing.T) {
	cfg := Default()
	cfg.Kafka.EventsPattern = ".*"
	assert.ErrorContains(t, Validate(cfg), "notifications topic")
}

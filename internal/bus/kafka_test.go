package bus

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewKafka_WriterDefaults(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	k := NewKafka(KafkaConfig{Brokers: []string{"localhost:9092"}}, logger)
	defer k.Close()
	assert.Equal(t, DefaultBatchTimeout, k.writer.BatchTimeout)
	assert.Less(t, k.writer.BatchTimeout, 100*time.Millisecond)
	assert.Equal(t, 30*time.Second, k.refresh)

	tuned := NewKafka(KafkaConfig{
		Brokers:         []string{"localhost:9092"},
		RefreshInterval: 5 * time.Second,
		BatchTimeout:    time.Millisecond,
	}, logger)
	defer tuned.Close()
	assert.Equal(t, time.Millisecond, tuned.writer.BatchTimeout)
	assert.Equal(t, 5*time.Second, tuned.refresh)
}

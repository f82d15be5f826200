package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures the Kafka client.
type KafkaConfig struct {
	Brokers []string
	// RefreshInterval controls how often pattern subscriptions look for new topics.
	RefreshInterval time.Duration
	// BatchTimeout bounds how long a publish waits for its batch to fill.
	BatchTimeout time.Duration
}

// DefaultBatchTimeout keeps synchronous single-message publishes fast.
const DefaultBatchTimeout = 10 * time.Millisecond

// Kafka implements Bus on segmentio/kafka-go.
type Kafka struct {
	brokers []string
	refresh time.Duration
	writer  *kafka.Writer
	dialer  *kafka.Dialer
	logger  *slog.Logger
}

// NewKafka creates a client. No connection is made until the first publish or subscribe.
func NewKafka(cfg KafkaConfig, logger *slog.Logger) *Kafka {
	if logger == nil {
		logger = slog.Default()
	}
	refresh := cfg.RefreshInterval
	if refresh <= 0 {
		refresh = 30 * time.Second
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = DefaultBatchTimeout
	}
	return &Kafka{
		brokers: cfg.Brokers,
		refresh: refresh,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			BatchTimeout:           batchTimeout,
			AllowAutoTopicCreation: true,
		},
		dialer: &kafka.Dialer{Timeout: 10 * time.Second},
		logger: logger,
	}
}

func (k *Kafka) Publish(ctx context.Context, topic, key string, msg interface{}) error {
	value, err := Encode(msg)
	if err != nil {
		return err
	}
	m := kafka.Message{Topic: topic, Value: value}
	if key != "" {
		m.Key = []byte(key)
	}
	if err := k.writer.WriteMessages(ctx, m); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe consumes the selected topics. Pattern selectors are resolved
// against the cluster's topic list and re-resolved every refresh interval; the
// reader is restarted when the matching set changes.
func (k *Kafka) Subscribe(ctx context.Context, group string, sel Selector, h Handler) error {
	if sel.Topic != "" {
		for {
			err := k.consume(ctx, group, []string{sel.Topic}, h)
			if err == nil || ctx.Err() != nil {
				return nil
			}
			k.logger.Error("kafka consumer stopped", "group", group, "topic", sel.Topic, "err", err)
			if !sleep(ctx, k.refresh) {
				return nil
			}
		}
	}

	for {
		topics, err := k.discover(ctx, sel)
		if err != nil {
			k.logger.Warn("kafka topic discovery failed", "selector", sel.String(), "err", err)
		}
		if err == nil && len(topics) == 0 {
			k.logger.Info("no topics match selector yet", "selector", sel.String())
		}
		if len(topics) == 0 {
			if !sleep(ctx, k.refresh) {
				return nil
			}
			continue
		}

		runCtx, cancel := context.WithCancel(ctx)
		changed := make(chan struct{})
		go func() {
			if k.watchTopics(runCtx, sel, topics) {
				close(changed)
				cancel()
			}
		}()
		err = k.consume(runCtx, group, topics, h)
		cancel()
		if ctx.Err() != nil {
			return nil
		}
		select {
		case <-changed:
			continue
		default:
		}
		if err != nil {
			k.logger.Error("kafka consumer stopped", "group", group, "err", err)
			if !sleep(ctx, k.refresh) {
				return nil
			}
		}
	}
}

// watchTopics blocks until ctx is done (false) or the topic set changes (true).
func (k *Kafka) watchTopics(ctx context.Context, sel Selector, current []string) bool {
	ticker := time.NewTicker(k.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			topics, err := k.discover(ctx, sel)
			if err != nil {
				continue
			}
			if !slices.Equal(topics, current) {
				k.logger.Info("topic set changed, restarting consumer",
					"selector", sel.String(), "topics", strings.Join(topics, ","))
				return true
			}
		}
	}
}

func (k *Kafka) consume(ctx context.Context, group string, topics []string, h Handler) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     k.brokers,
		GroupID:     group,
		GroupTopics: topics,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
	})
	defer reader.Close()

	k.logger.Info("kafka consumer started", "group", group, "topics", strings.Join(topics, ","))
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("kafka fetch: %w", err)
		}
		if err := h(ctx, Message{
			Topic:     msg.Topic,
			Key:       msg.Key,
			Value:     msg.Value,
			Partition: msg.Partition,
			Offset:    msg.Offset,
			Time:      msg.Time,
		}); err != nil {
			k.logger.Error("message handler failed",
				"group", group, "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		}
		if err := reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			k.logger.Warn("kafka commit failed", "topic", msg.Topic, "offset", msg.Offset, "err", err)
		}
	}
}

// discover lists cluster topics matching sel, sorted.
func (k *Kafka) discover(ctx context.Context, sel Selector) ([]string, error) {
	var lastErr error
	for _, broker := range k.brokers {
		conn, err := k.dialer.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		partitions, err := conn.ReadPartitions()
		conn.Close()
		if err != nil {
			lastErr = err
			continue
		}
		var topics []string
		for _, p := range partitions {
			if sel.Matches(p.Topic) && !slices.Contains(topics, p.Topic) {
				topics = append(topics, p.Topic)
			}
		}
		slices.Sort(topics)
		return topics, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no brokers configured")
	}
	return nil, fmt.Errorf("kafka discover topics: %w", lastErr)
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}

// sleep waits for d or ctx; it reports false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Memory is an in-process bus. Every subscription receives every matching
// message published after it was registered.
type Memory struct {
	mu        sync.Mutex
	published []Message
	subs      []*memorySub
	failures  map[string]error
	closed    bool
	logger    *slog.Logger
}

type memorySub struct {
	group string
	sel   Selector
	ch    chan Message
}

// NewMemory creates an empty in-memory bus.
func NewMemory(logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{failures: make(map[string]error), logger: logger}
}

// FailTopic makes every publish to topic return err (nil clears it).
func (m *Memory) FailTopic(topic string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, topic)
		return
	}
	m.failures[topic] = err
}

func (m *Memory) Publish(ctx context.Context, topic, key string, msg interface{}) error {
	value, err := Encode(msg)
	if err != nil {
		return err
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if err := m.failures[topic]; err != nil {
		m.mu.Unlock()
		return err
	}
	rec := Message{
		Topic:  topic,
		Key:    []byte(key),
		Value:  value,
		Offset: int64(len(m.published)),
		Time:   time.Now().UTC(),
	}
	m.published = append(m.published, rec)
	var targets []*memorySub
	for _, s := range m.subs {
		if s.sel.Matches(topic) {
			targets = append(targets, s)
		}
	}
	m.mu.Unlock()

	for _, s := range targets {
		select {
		case s.ch <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, group string, sel Selector, h Handler) error {
	sub := &memorySub{group: group, sel: sel, ch: make(chan Message, 256)}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.subs = append(m.subs, sub)
	m.mu.Unlock()

	defer m.unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-sub.ch:
			if err := h(ctx, msg); err != nil {
				m.logger.Error("message handler failed",
					"group", group, "topic", msg.Topic, "offset", msg.Offset, "err", err)
			}
		}
	}
}

func (m *Memory) unsubscribe(sub *memorySub) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.subs {
		if s == sub {
			m.subs = append(m.subs[:i], m.subs[i+1:]...)
			return
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (m *Memory) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Published returns every message published to topic, oldest first.
// An empty topic returns all messages.
func (m *Memory) Published(topic string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Message
	for _, msg := range m.published {
		if topic == "" || msg.Topic == topic {
			out = append(out, msg)
		}
	}
	return out
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

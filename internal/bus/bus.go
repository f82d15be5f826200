package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"time"
)

var ErrClosed = errors.New("bus closed")

// Message is one record received from a stream.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Partition int
	Offset    int64
	Time      time.Time
}

// Handler processes a message. A returned error is logged by the subscriber;
// the message is still acknowledged and consumption continues.
type Handler func(ctx context.Context, msg Message) error

// Publisher emits messages to named topics. Non-[]byte messages are JSON encoded.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, msg interface{}) error
}

// Subscriber consumes every topic matched by a selector under a consumer
// group, invoking h sequentially per partition. Subscribe blocks until ctx is
// cancelled.
type Subscriber interface {
	Subscribe(ctx context.Context, group string, sel Selector, h Handler) error
}

// Bus is a full client.
type Bus interface {
	Publisher
	Subscriber
	Close() error
}

// Selector picks topics either by exact name or by pattern with exclusions.
type Selector struct {
	Topic   string
	Pattern *regexp.Regexp
	Exclude []string
}

// TopicSelector selects a single topic.
func TopicSelector(topic string) Selector {
	return Selector{Topic: topic}
}

// PatternSelector selects every topic matching pattern except the excluded names.
func PatternSelector(pattern string, exclude ...string) (Selector, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Selector{}, fmt.Errorf("compile topic pattern %q: %w", pattern, err)
	}
	return Selector{Pattern: re, Exclude: exclude}, nil
}

// Matches reports whether topic is selected.
func (s Selector) Matches(topic string) bool {
	if s.Topic != "" {
		return topic == s.Topic
	}
	if s.Pattern == nil || slices.Contains(s.Exclude, topic) {
		return false
	}
	return s.Pattern.MatchString(topic)
}

func (s Selector) String() string {
	if s.Topic != "" {
		return s.Topic
	}
	if s.Pattern == nil {
		return "<none>"
	}
	return fmt.Sprintf("/%s/ except %v", s.Pattern, s.Exclude)
}

// Encode renders a message body.
func Encode(msg interface{}) ([]byte, error) {
	switch m := msg.(type) {
	case []byte:
		return m, nil
	case json.RawMessage:
		return m, nil
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return b, nil
}

package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/fraudgate/internal/condition"
)

const unknown = "unknown"

// Event is a single message from a generic (non-applications) stream.
type Event struct {
	ID         string                 `json:"id"`
	Topic      string                 `json:"topic"`
	Type       string                 `json:"type"`
	Source     string                 `json:"source"`
	Payload    map[string]interface{} `json:"payload"`
	ReceivedAt time.Time              `json:"received_at"`
}

// NewEvent builds an Event from a decoded payload. It returns false when the
// payload has no "type" field or the field is null. An empty type is kept.
func NewEvent(topic string, payload map[string]interface{}) (*Event, bool) {
	typ, ok := payload["type"]
	if !ok || typ == nil {
		return nil, false
	}
	return &Event{
		ID:         uuid.New().String(),
		Topic:      topic,
		Type:       condition.Text(typ),
		Source:     stringOr(payload, "source", unknown),
		Payload:    payload,
		ReceivedAt: time.Now().UTC(),
	}, true
}

// Field returns a top-level payload value (nil when absent).
func (e *Event) Field(key string) interface{} {
	if e.Payload == nil {
		return nil
	}
	return e.Payload[key]
}

// Text returns the textual form of a top-level payload value, or def when absent.
func (e *Event) Text(key, def string) string {
	v := e.Field(key)
	if v == nil {
		return def
	}
	return condition.Text(v)
}

// Number coerces a top-level payload value to float64.
func (e *Event) Number(key string) (float64, bool) {
	v := e.Field(key)
	if v == nil {
		return 0, false
	}
	f, err := condition.ToFloat64(v)
	return f, err == nil
}

// Application is a message from the applications stream, subject to rule evaluation.
type Application struct {
	ID           string                 `json:"id"`
	Type         string                 `json:"type"`
	SourceSystem string                 `json:"source_system"`
	Data         map[string]interface{} `json:"data"`
	ReceivedAt   time.Time              `json:"received_at"`
}

// NewApplication builds an Application from a decoded payload, defaulting a
// missing id to a fresh uuid and missing type/source to "unknown".
func NewApplication(payload map[string]interface{}) *Application {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	return &Application{
		ID:           stringOr(payload, "id", uuid.New().String()),
		Type:         stringOr(payload, "type", unknown),
		SourceSystem: stringOr(payload, "source", unknown),
		Data:         payload,
		ReceivedAt:   time.Now().UTC(),
	}
}

// FieldValue resolves a dotted path against the application data.
func (a *Application) FieldValue(path string) interface{} {
	return condition.Resolve(a.Data, path)
}

// Notification is a live message pushed to connected listeners.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewNotification stamps a notification with a fresh id and the current time.
func NewNotification(userID, typ, message string) Notification {
	return Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      typ,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// DecodePayload parses a JSON object message body. Numbers are kept as
// json.Number so their textual form survives for string comparisons.
func DecodePayload(data []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var payload map[string]interface{}
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if payload == nil {
		return nil, fmt.Errorf("decode payload: not a JSON object")
	}
	return payload, nil
}

// stringOr returns the textual form of payload[key], or def when the key is
// absent, null or an empty string.
func stringOr(payload map[string]interface{}, key, def string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return def
	}
	if s := condition.Text(v); s != "" {
		return s
	}
	return def
}

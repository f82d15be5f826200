package reaction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gyaneshwarpardhi/fraudgate/internal/bus"
	"github.com/gyaneshwarpardhi/fraudgate/internal/metrics"
)

// Runner is the production Executor: it publishes to the bus, pushes to the
// live listener registry, calls external HTTP endpoints and logs.
type Runner struct {
	publisher bus.Publisher
	listeners *Listeners
	client    *http.Client
	logger    *slog.Logger
}

// NewRunner wires a Runner. A nil client gets a 10s-timeout default.
func NewRunner(pub bus.Publisher, listeners *Listeners, client *http.Client, logger *slog.Logger) *Runner {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if listeners == nil {
		listeners = NewListeners()
	}
	return &Runner{publisher: pub, listeners: listeners, client: client, logger: logger}
}

// Listeners exposes the registry so transports can register/unregister.
func (r *Runner) Listeners() *Listeners { return r.listeners }

// Execute performs one reaction. It never fails from the caller's view.
func (r *Runner) Execute(ctx context.Context, re Reaction) {
	var err error
	switch v := re.(type) {
	case Publish:
		err = r.publish(ctx, v)
	case *Publish:
		err = r.publish(ctx, *v)
	case Push:
		r.push(v)
	case *Push:
		r.push(*v)
	case CallAPI:
		err = r.callAPI(ctx, v)
	case *CallAPI:
		err = r.callAPI(ctx, *v)
	case Log:
		r.log(ctx, v)
	case *Log:
		r.log(ctx, *v)
	default:
		err = fmt.Errorf("unsupported reaction %T", re)
	}

	kind := "unknown"
	if re != nil {
		kind = string(re.Kind())
	}
	status := "success"
	if err != nil {
		status = "error"
		r.logger.Error("reaction failed", "kind", kind, "err", err)
	}
	metrics.ReactionsExecuted.WithLabelValues(kind, status).Inc()
}

func (r *Runner) publish(ctx context.Context, p Publish) error {
	if r.publisher == nil {
		return fmt.Errorf("publish to %s: no bus publisher configured", p.Topic)
	}
	if err := r.publisher.Publish(ctx, p.Topic, p.Key, p.Message); err != nil {
		return fmt.Errorf("publish to %s: %w", p.Topic, err)
	}
	r.logger.Debug("published", "topic", p.Topic, "key", p.Key)
	return nil
}

func (r *Runner) push(p Push) {
	r.logger.Info("pushing notification",
		"notification_id", p.Notification.ID, "type", p.Notification.Type, "message", p.Notification.Message)
	r.listeners.Notify(p.Notification, func(err error) {
		r.logger.Warn("live listener failed", "notification_id", p.Notification.ID, "err", err)
	})
}

func (r *Runner) callAPI(ctx context.Context, c CallAPI) error {
	method := strings.ToUpper(strings.TrimSpace(c.Method))
	if method == "" {
		method = http.MethodPost
	}

	var (
		body        io.Reader
		contentType string
	)
	switch b := c.Body.(type) {
	case nil:
	case []byte:
		body = bytes.NewReader(b)
	case string:
		body = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("call %s %s: encode body: %w", method, c.URL, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL, body)
	if err != nil {
		return fmt.Errorf("call %s %s: %w", method, c.URL, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	r.logger.Info("calling external API", "method", method, "url", c.URL)
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s %s: %w", method, c.URL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("call %s %s: unexpected status %d", method, c.URL, resp.StatusCode)
	}
	r.logger.Info("external API call succeeded", "url", c.URL, "status", resp.StatusCode)
	return nil
}

func (r *Runner) log(ctx context.Context, l Log) {
	r.logger.Log(ctx, parseLevel(l.Level), l.Message, "event_id", l.SourceEventID, "level_tag", l.Level)
}

func parseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG", "TRACE":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

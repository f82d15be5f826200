package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gyaneshwarpardhi/fraudgate/internal/audit"
	"github.com/gyaneshwarpardhi/fraudgate/internal/bus"
	"github.com/gyaneshwarpardhi/fraudgate/internal/event"
	"github.com/gyaneshwarpardhi/fraudgate/internal/metrics"
	"github.com/gyaneshwarpardhi/fraudgate/internal/reaction"
	"github.com/gyaneshwarpardhi/fraudgate/internal/routing"
)

// Processor runs one application through the decision pipeline.
type Processor interface {
	Process(ctx context.Context, app *event.Application) (*audit.Record, error)
}

// Config names the streams and consumer groups the router reads.
type Config struct {
	ApplicationsTopic  string
	EventsPattern      string
	NotificationsTopic string
	ApplicationsGroup  string
	EventsGroup        string
	NotificationsGroup string
}

// Router dispatches inbound messages: applications to the decision pipeline,
// generic events to the static routing rules, notifications to live listeners.
type Router struct {
	conf     Config
	pipeline Processor
	rules    *routing.Registry
	exec     reaction.Executor
	logger   *slog.Logger
}

// New creates a Router.
func New(conf Config, pipeline Processor, rules *routing.Registry, exec reaction.Executor, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if rules == nil {
		rules = routing.Default()
	}
	return &Router{conf: conf, pipeline: pipeline, rules: rules, exec: exec, logger: logger}
}

// Run subscribes to all three streams and blocks until ctx is cancelled or
// a subscription fails. The notifications stream is skipped when no topic is
// configured.
func (r *Router) Run(ctx context.Context, sub bus.Subscriber) error {
	events, err := bus.PatternSelector(r.conf.EventsPattern, r.conf.ApplicationsTopic, r.conf.NotificationsTopic)
	if err != nil {
		return fmt.Errorf("events pattern: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.logger.Info("consuming applications", "topic", r.conf.ApplicationsTopic, "group", r.conf.ApplicationsGroup)
		return sub.Subscribe(ctx, r.conf.ApplicationsGroup, bus.TopicSelector(r.conf.ApplicationsTopic), r.HandleApplication)
	})
	g.Go(func() error {
		r.logger.Info("consuming events", "selector", events.String(), "group", r.conf.EventsGroup)
		return sub.Subscribe(ctx, r.conf.EventsGroup, events, r.HandleEvent)
	})
	if r.conf.NotificationsTopic != "" {
		g.Go(func() error {
			r.logger.Info("consuming notifications", "topic", r.conf.NotificationsTopic, "group", r.conf.NotificationsGroup)
			return sub.Subscribe(ctx, r.conf.NotificationsGroup, bus.TopicSelector(r.conf.NotificationsTopic), r.HandleNotification)
		})
	}
	return g.Wait()
}

// HandleApplication parses an application and runs it through the pipeline.
// Failures are logged; the message is never retried here.
func (r *Router) HandleApplication(ctx context.Context, msg bus.Message) error {
	metrics.MessagesConsumed.WithLabelValues("applications").Inc()
	payload, err := event.DecodePayload(msg.Value)
	if err != nil {
		metrics.EventsDropped.WithLabelValues("malformed").Inc()
		r.logger.Error("dropping malformed application", "topic", msg.Topic, "offset", msg.Offset, "err", err)
		return nil
	}

	app := event.NewApplication(payload)
	rec, err := r.pipeline.Process(ctx, app)
	if err != nil {
		r.logger.Error("application processing failed", "application_id", app.ID, "err", err)
		return nil
	}
	r.logger.Info("application processed",
		"application_id", app.ID, "matched", rec.RulesMatched, "final_action", rec.FinalAction)
	return nil
}

// HandleEvent routes a generic event through the static rules. Events whose
// type is absent or null are dropped with a warning.
func (r *Router) HandleEvent(ctx context.Context, msg bus.Message) error {
	metrics.MessagesConsumed.WithLabelValues("events").Inc()
	payload, err := event.DecodePayload(msg.Value)
	if err != nil {
		metrics.EventsDropped.WithLabelValues("malformed").Inc()
		r.logger.Warn("dropping malformed event", "topic", msg.Topic, "offset", msg.Offset, "err", err)
		return nil
	}

	ev, ok := event.NewEvent(msg.Topic, payload)
	if !ok {
		metrics.EventsDropped.WithLabelValues("missing_type").Inc()
		r.logger.Warn("dropping event without type", "topic", msg.Topic, "offset", msg.Offset)
		return nil
	}

	r.logger.Debug("routing event", "event_id", ev.ID, "topic", ev.Topic, "type", ev.Type, "source", ev.Source)
	reactions := r.rules.Evaluate(ev, r.logger)
	if len(reactions) == 0 {
		r.logger.Debug("no routing rule matched", "event_id", ev.ID, "type", ev.Type)
		return nil
	}
	reaction.ExecuteAll(ctx, r.exec, reactions)
	return nil
}

// HandleNotification relays a notification message to live listeners.
func (r *Router) HandleNotification(ctx context.Context, msg bus.Message) error {
	metrics.MessagesConsumed.WithLabelValues("notifications").Inc()
	var n event.Notification
	if err := json.Unmarshal(msg.Value, &n); err != nil {
		metrics.EventsDropped.WithLabelValues("malformed").Inc()
		r.logger.Warn("dropping malformed notification", "topic", msg.Topic, "offset", msg.Offset, "err", err)
		return nil
	}
	if strings.TrimSpace(n.Message) == "" {
		metrics.EventsDropped.WithLabelValues("empty_notification").Inc()
		r.logger.Warn("dropping notification without message", "topic", msg.Topic, "offset", msg.Offset)
		return nil
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	if n.Type == "" {
		n.Type = "info"
	}
	r.exec.Execute(ctx, reaction.Push{Notification: n})
	return nil
}

package reaction

import (
	"context"

	"github.com/gyaneshwarpardhi/fraudgate/internal/event"
)

// Kind discriminates the reaction variants.
type Kind string

const (
	KindPublish Kind = "publish"
	KindPush    Kind = "push"
	KindCallAPI Kind = "call_api"
	KindLog     Kind = "log"
)

// Reaction is a deferred side effect produced by rule matching. The set of
// variants is closed: Publish, Push, CallAPI and Log.
type Reaction interface {
	Kind() Kind
	reactionNode()
}

// Publish emits Message to a bus topic.
type Publish struct {
	Topic   string
	Key     string
	Message interface{}
}

func (Publish) Kind() Kind    { return KindPublish }
func (Publish) reactionNode() {}

// Push delivers a notification to every live listener.
type Push struct {
	Notification event.Notification
}

func (Push) Kind() Kind    { return KindPush }
func (Push) reactionNode() {}

// CallAPI issues one HTTP request. Body is sent as JSON unless it is already
// a string or []byte.
type CallAPI struct {
	URL    string
	Method string
	Body   interface{}
}

func (CallAPI) Kind() Kind    { return KindCallAPI }
func (CallAPI) reactionNode() {}

// Log emits a structured diagnostic tied to the event that produced it.
type Log struct {
	Level         string
	Message       string
	SourceEventID string
}

func (Log) Kind() Kind    { return KindLog }
func (Log) reactionNode() {}

// Executor performs reactions. Implementations never return failures to the
// caller; they are logged and swallowed.
type Executor interface {
	Execute(ctx context.Context, r Reaction)
}

// ExecuteAll runs reactions in order.
func ExecuteAll(ctx context.Context, exec Executor, reactions []Reaction) {
	for _, r := range reactions {
		exec.Execute(ctx, r)
	}
}

package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/fraudgate/internal/bus"
	"github.com/gyaneshwarpardhi/fraudgate/internal/event"
)

func runCLI(t *testing.T, args ...string) (*bus.Memory, []string, string, error) {
	t.Helper()
	mem := bus.NewMemory(slog.New(slog.NewTextHandler(io.Discard, nil)))
	var dialed []string
	cmd := newRootCommand(func(brokers []string) (bus.Publisher, func() error) {
		dialed = brokers
		return mem, func() error { return nil }
	})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return mem, dialed, out.String(), err
}

func TestPublish_MergesEnvelope(t *testing.T) {
	mem, brokers, out, err := runCLI(t, "publish", "orders.events", "order.created",
		`{"orderId":"o-1","amount":1500,"source":"ignored"}`, "--brokers", "k1:9092, k2:9092")
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, brokers)
	assert.Contains(t, out, "published order.created to orders.events")

	msgs := mem.Published("orders.events")
	require.Len(t, msgs, 1)
	assert.NotEmpty(t, msgs[0].Key)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(msgs[0].Value, &payload))
	assert.Equal(t, "order.created", payload["type"])
	assert.Equal(t, "cli-producer", payload["source"])
	assert.Equal(t, "o-1", payload["orderId"])
	assert.Equal(t, 1500.0, payload["amount"])
	assert.NotEmpty(t, payload["eventId"])
}

func TestPublish_WithoutPayload(t *testing.T) {
	mem, _, _, err := runCLI(t, "publish", "inventory.events", "inventory.low")
	require.NoError(t, err)
	require.Len(t, mem.Published("inventory.events"), 1)
}

func TestPublish_Errors(t *testing.T) {
	_, _, _, err := runCLI(t, "publish", "orders.events", "order.created", "{")
	assert.ErrorContains(t, err, "invalid JSON payload")

	_, _, _, err = runCLI(t, "publish", "orders.events")
	assert.Error(t, err)

	_, _, _, err = runCLI(t, "publish", "orders.events", "x", "--brokers", " , ")
	assert.ErrorContains(t, err, "--brokers")
}

func TestNotify(t *testing.T) {
	mem, _, out, err := runCLI(t, "notify", "ops", "warning", "provider degraded", "--topic", "alerts-ui")
	require.NoError(t, err)
	assert.Contains(t, out, "alerts-ui")

	msgs := mem.Published("alerts-ui")
	require.Len(t, msgs, 1)
	var n event.Notification
	require.NoError(t, json.Unmarshal(msgs[0].Value, &n))
	assert.Equal(t, "ops", n.UserID)
	assert.Equal(t, "warning", n.Type)
	assert.Equal(t, "provider degraded", n.Message)
	assert.Equal(t, n.ID, string(msgs[0].Key))
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/fraudgate/internal/bus"
	"github.com/gyaneshwarpardhi/fraudgate/internal/config"
	"github.com/gyaneshwarpardhi/fraudgate/internal/event"
)

const cliSource = "cli-producer"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Brokers string
	Timeout time.Duration

	// dial builds the publisher; tests swap it for an in-memory bus.
	dial func(brokers []string) (bus.Publisher, func() error)
}

func kafkaPublisher(brokers []string) (bus.Publisher, func() error) {
	k := bus.NewKafka(bus.KafkaConfig{Brokers: brokers}, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	return k, k.Close
}

// NewRootCommand creates the eventctl command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(kafkaPublisher)
}

func newRootCommand(dial func([]string) (bus.Publisher, func() error)) *cobra.Command {
	opts := &RootOptions{dial: dial}

	defaultBrokers := os.Getenv(config.EnvKafkaBrokers)
	if defaultBrokers == "" {
		defaultBrokers = "localhost:9092"
	}

	cmd := &cobra.Command{
		Use:   "eventctl",
		Short: "Publish test traffic to the fraud gateway's Kafka topics",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if len(opts.brokers()) == 0 {
				return fmt.Errorf("--brokers must name at least one broker")
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Brokers, "brokers", defaultBrokers, "comma-separated Kafka brokers")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "publish timeout")

	cmd.AddCommand(newPublishCommand(opts))
	cmd.AddCommand(newNotifyCommand(opts))
	return cmd
}

func (o *RootOptions) brokers() []string {
	var out []string
	for _, b := range strings.Split(o.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func (o *RootOptions) publish(cmd *cobra.Command, topic, key string, msg interface{}) error {
	pub, closeFn := o.dial(o.brokers())
	defer closeFn()

	ctx, cancel := context.WithTimeout(cmd.Context(), o.Timeout)
	defer cancel()
	return pub.Publish(ctx, topic, key, msg)
}

func newPublishCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <topic> <event-type> [json-payload]",
		Short: "Publish an event to a topic",
		Long: `Publish an event to a topic.

The payload is merged with "type", "source" and a generated "eventId".

Example:
  eventctl publish orders.events order.created '{"orderId":"o-1","amount":1500}'`,
		Args:          cobra.RangeArgs(2, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{}
			if len(args) == 3 && strings.TrimSpace(args[2]) != "" {
				if err := json.Unmarshal([]byte(args[2]), &payload); err != nil {
					return fmt.Errorf("invalid JSON payload: %w", err)
				}
			}
			payload["type"] = args[1]
			payload["source"] = cliSource
			payload["eventId"] = uuid.NewString()

			key := uuid.NewString()
			if err := opts.publish(cmd, args[0], key, payload); err != nil {
				return fmt.Errorf("publish to %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %s to %s (key %s)\n", args[1], args[0], key)
			return nil
		},
	}
}

func newNotifyCommand(opts *RootOptions) *cobra.Command {
	var topic string
	cmd := &cobra.Command{
		Use:           "notify <user> <type> <message>",
		Short:         "Publish a notification for live delivery",
		Example:       `  eventctl notify ops warning "payment provider degraded"`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			n := event.NewNotification(args[0], args[1], args[2])
			if err := opts.publish(cmd, topic, n.ID, n); err != nil {
				return fmt.Errorf("publish to %s: %w", topic, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published notification %s to %s\n", n.ID, topic)
			return nil
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "notifications", "notifications topic")
	return cmd
}

package routing

import (
	"fmt"

	"github.com/gyaneshwarpardhi/fraudgate/internal/event"
	"github.com/gyaneshwarpardhi/fraudgate/internal/reaction"
)

const (
	// AlertsTopic receives machine-readable alerts from routing rules.
	AlertsTopic = "alerts"
	// HighValueThreshold is the order amount above which an order is flagged.
	HighValueThreshold = 1000.0

	systemUser = "system"
)

// HighValueOrder fires for order.created events whose amount exceeds Threshold.
type HighValueOrder struct {
	Threshold float64
}

func (HighValueOrder) Name() string { return "high-value-order" }

func (h HighValueOrder) Matches(ev *event.Event) bool {
	if ev.Type != "order.created" {
		return false
	}
	amount, ok := ev.Number("amount")
	return ok && amount > h.Threshold
}

func (HighValueOrder) Reactions(ev *event.Event) []reaction.Reaction {
	amount, _ := ev.Number("amount")
	msg := fmt.Sprintf("High-value order detected! Order %s for $%.2f", ev.Text("orderId", "null"), amount)
	return []reaction.Reaction{
		reaction.Push{Notification: event.NewNotification(systemUser, "warning", msg)},
		reaction.Log{Level: "INFO", Message: "High-value order processed", SourceEventID: ev.ID},
	}
}

// PaymentFailed fires for every payment.failed event.
type PaymentFailed struct{}

func (PaymentFailed) Name() string { return "payment-failed" }

func (PaymentFailed) Matches(ev *event.Event) bool { return ev.Type == "payment.failed" }

func (PaymentFailed) Reactions(ev *event.Event) []reaction.Reaction {
	paymentID := ev.Text("paymentId", "")
	msg := fmt.Sprintf("Payment %s failed: %s", orNull(paymentID), ev.Text("reason", "Unknown reason"))
	alert := map[string]interface{}{
		"type":          "payment_failure",
		"paymentId":     orDefault(paymentID, "unknown"),
		"originalEvent": ev.ID,
	}
	return []reaction.Reaction{
		reaction.Push{Notification: event.NewNotification(systemUser, "error", msg)},
		reaction.Publish{Topic: AlertsTopic, Key: paymentID, Message: alert},
		reaction.Log{Level: "ERROR", Message: "Payment failure detected", SourceEventID: ev.ID},
	}
}

// InventoryLow fires for every inventory.low event.
type InventoryLow struct{}

func (InventoryLow) Name() string { return "inventory-low" }

func (InventoryLow) Matches(ev *event.Event) bool { return ev.Type == "inventory.low" }

func (InventoryLow) Reactions(ev *event.Event) []reaction.Reaction {
	productID := ev.Text("productId", "")
	display := ev.Text("productName", productID)

	// unparsable or missing stock counts as zero
	stock, ok := ev.Number("currentStock")
	if !ok {
		stock = 0
	}

	msg := fmt.Sprintf("Low inventory alert: %s has only %d units left", orNull(display), int64(stock))
	alert := map[string]interface{}{
		"type":         "inventory_low",
		"productId":    orDefault(productID, "unknown"),
		"currentStock": stock,
	}
	return []reaction.Reaction{
		reaction.Push{Notification: event.NewNotification(systemUser, "warning", msg)},
		reaction.Publish{Topic: AlertsTopic, Key: productID, Message: alert},
		reaction.Log{Level: "WARN", Message: "Low inventory detected", SourceEventID: ev.ID},
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func orNull(s string) string { return orDefault(s, "null") }

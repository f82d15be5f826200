package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gyaneshwarpardhi/fraudgate/internal/event"
	"github.com/gyaneshwarpardhi/fraudgate/internal/notify"
)

type notificationRequest struct {
	UserID  string `json:"userId"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// GET /api/notifications
func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	if h.deps.History == nil {
		writeJSON(w, http.StatusOK, []event.Notification{})
		return
	}
	limit, err := queryInt(r, "limit", notify.DefaultMaxHistory)
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	recent, err := h.deps.History.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("read notification history", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if recent == nil {
		recent = []event.Notification{}
	}
	writeJSON(w, http.StatusOK, recent)
}

// POST /api/notifications publishes to the notifications topic; delivery to
// live clients happens when the gateway consumes it back.
func (h *Handler) createNotification(w http.ResponseWriter, r *http.Request) {
	if h.deps.Publisher == nil || h.deps.NotificationsTopic == "" {
		writeError(w, http.StatusServiceUnavailable, "notifications are not configured")
		return
	}
	var req notificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.Type == "" {
		req.Type = "info"
	}

	n := event.NewNotification(req.UserID, req.Type, req.Message)
	n.Timestamp = h.now().UTC()
	if err := h.deps.Publisher.Publish(r.Context(), h.deps.NotificationsTopic, n.ID, n); err != nil {
		h.logger.Error("publish notification", "notification_id", n.ID, "err", err)
		writeError(w, http.StatusBadGateway, "publish failed")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

package notify

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gyaneshwarpardhi/fraudgate/internal/event"
	"github.com/gyaneshwarpardhi/fraudgate/internal/reaction"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	clientBuffer = 64
)

var errSlowClient = errors.New("websocket client buffer full")

// Hub streams notifications to websocket clients. Each connection first
// receives the retained history, then every live push until it disconnects.
// Pushes racing the replay are delivered after it, possibly duplicating a
// replayed entry.
type Hub struct {
	listeners *reaction.Listeners
	history   History
	replay    int
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// NewHub creates a Hub. history may be nil; replay bounds how many retained
// notifications a new client receives (non-positive means all).
func NewHub(listeners *reaction.Listeners, history History, replay int, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		listeners: listeners,
		history:   history,
		replay:    replay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.Close()
	log := h.logger.With("remote", r.RemoteAddr)

	// Register before reading history so pushes that land during the replay
	// are buffered instead of lost. A notification may then arrive twice.
	send := make(chan event.Notification, clientBuffer)
	unregister := h.listeners.Register(func(n event.Notification) error {
		select {
		case send <- n:
			return nil
		default:
			return errSlowClient
		}
	})
	quit := make(chan struct{})
	defer func() {
		unregister()
		close(quit)
	}()

	if h.history != nil {
		past, err := h.history.Recent(r.Context(), h.replay)
		if err != nil {
			log.Warn("notification history unavailable", "err", err)
		}
		for _, n := range past {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(n); err != nil {
				log.Debug("websocket replay failed", "err", err)
				return
			}
		}
	}
	log.Info("websocket client connected", "clients", h.listeners.Len())

	go h.writePump(conn, send, quit, log)
	h.readPump(conn)
	log.Info("websocket client disconnected")
}

// readPump discards inbound frames and returns when the peer goes away.
func (h *Hub) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, send <-chan event.Notification, quit <-chan struct{}, log *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case n := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(n); err != nil {
				log.Debug("websocket write failed", "err", err)
				conn.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		case <-quit:
			return
		}
	}
}

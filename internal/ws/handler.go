package ws

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/house-of-holmes/social-alerts/internal/config"
	"github.com/house-of-holmes/social-alerts/internal/hub"
	"github.com/sirupsen/logrus"
)

// Handler upgrades HTTP requests to websocket connections and attaches
// them to the hub as live subscribers.
type Handler struct {
	hub      *hub.Hub
	upgrader websocket.Upgrader
}

// NewHandler creates a websocket handler that only accepts upgrades from
// the configured origins. Requests without an Origin header (non-browser
// clients) are accepted.
func NewHandler(cfg *config.Config, h *hub.Hub) *Handler {
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		allowed[origin] = true
	}

	return &Handler{
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
		},
	}
}

// ServeHTTP establishes the live channel: upgrade, confirmation event,
// history replay, then hub registration for every subsequent publish.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Errorf("Websocket upgrade failed: %v", err)
		return
	}

	client := newClient(uuid.NewString(), conn, h.hub)
	logrus.Infof("Client connected: %s", client.ID())

	go client.writePump()
	go client.readPump()

	client.enqueue(Event{
		Event: EventConnected,
		Data: map[string]interface{}{
			"message":   "Connected to social media alerts",
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})

	if replay := h.hub.History(hub.ReplayCount); len(replay) > 0 {
		client.enqueue(Event{Event: EventPostHistory, Data: replay})
	}

	h.hub.Subscribe(client)
}

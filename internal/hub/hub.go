package hub

import (
	"fmt"
	"sync"
	"time"

	"github.com/house-of-holmes/social-alerts/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	// HistoryLimit is the maximum number of alerts retained in memory.
	HistoryLimit = 50

	// ReplayCount is how many recent alerts a new subscriber receives on connect.
	ReplayCount = 5

	// DefaultHistoryLimit is used when a history query does not specify a limit.
	DefaultHistoryLimit = 10
)

// Subscriber is a live receiver of published alerts. Implementations must
// not block in Send; a returned error is logged and the alert is skipped
// for that subscriber only.
type Subscriber interface {
	ID() string
	Send(alert models.Alert) error
}

// Hub is the in-memory broker: it owns the connected-subscriber set and the
// bounded alert history, and fans every published alert out to all current
// subscribers. A single instance lives for the life of the process; nothing
// is persisted across restarts.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]Subscriber
	history     []models.Alert
	seq         int64
	lastStamp   time.Time
	startedAt   time.Time
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{
		subscribers: make(map[string]Subscriber),
		startedAt:   time.Now(),
	}
}

// Publish wraps a raw event into an Alert, appends it to history and
// notifies every currently registered subscriber. Malformed input is
// defaulted rather than rejected; Publish never fails.
func (h *Hub) Publish(raw models.RawEvent) models.Alert {
	h.mu.Lock()

	now := time.Now()
	// Timestamps are non-decreasing in publish order even if the wall
	// clock steps backwards.
	if now.Before(h.lastStamp) {
		now = h.lastStamp
	}
	h.lastStamp = now
	h.seq++

	data := raw.Data
	if data == nil {
		data = map[string]interface{}{}
	}

	alert := models.Alert{
		ID:        fmt.Sprintf("alert_%d_%d", now.UnixMilli(), h.seq),
		Platform:  raw.Platform,
		Type:      models.AlertTypeNewPost,
		Message:   raw.Message,
		Data:      data,
		Timestamp: now,
	}

	h.history = append(h.history, alert)
	if len(h.history) > HistoryLimit {
		h.history = h.history[len(h.history)-HistoryLimit:]
	}

	subs := make([]Subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Send(alert); err != nil {
			logrus.Warnf("Failed to deliver alert %s to subscriber %s: %v", alert.ID, sub.ID(), err)
		}
	}

	logrus.Infof("Broadcasted new %s alert to %d clients", alert.Platform, len(subs))
	return alert
}

// Subscribe registers a live subscriber. The caller is responsible for
// sending the connect confirmation and history replay before registering,
// so there is no backlog gap between replay and live delivery.
func (h *Hub) Subscribe(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[sub.ID()] = sub
}

// Unsubscribe removes a subscriber. Removing an unknown or already removed
// subscriber is a no-op.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, id)
}

// History returns the most recent min(limit, size) alerts, oldest first.
// A non-positive limit means DefaultHistoryLimit.
func (h *Hub) History(limit int) []models.Alert {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	start := len(h.history) - limit
	if start < 0 {
		start = 0
	}

	out := make([]models.Alert, len(h.history)-start)
	copy(out, h.history[start:])
	return out
}

// ClientCount returns the number of currently connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// TotalAlerts returns the number of alerts currently held in history.
func (h *Hub) TotalAlerts() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.history)
}

// Uptime reports how long the hub has been running.
func (h *Hub) Uptime() time.Duration {
	return time.Since(h.startedAt)
}

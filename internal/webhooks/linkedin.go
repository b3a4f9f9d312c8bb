package webhooks

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/house-of-holmes/social-alerts/internal/models"
	"github.com/sirupsen/logrus"
)

// linkedinPayload is the flat event-type/object discriminator LinkedIn
// sends for share lifecycle notifications.
type linkedinPayload struct {
	EventType string      `json:"eventType"`
	Object    string      `json:"object"`
	ShareID   string      `json:"shareId"`
	ID        string      `json:"id"`
	Timestamp interface{} `json:"timestamp"` // epoch millis or RFC3339, passed through
}

func (h *Handler) linkedinHandler(w http.ResponseWriter, r *http.Request) {
	h.acknowledge(w, r, "linkedin", matchLinkedIn)
}

// matchLinkedIn recognizes share lifecycle events for both classic shares
// and UGC posts.
func matchLinkedIn(body []byte) []models.RawEvent {
	var payload linkedinPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		logrus.Warnf("Unparseable LinkedIn webhook payload: %v", err)
		return nil
	}

	if payload.EventType != "SHARE_LIFECYCLE_EVENT" && payload.Object != "share" && payload.Object != "ugcPost" {
		return nil
	}

	shareID := payload.ShareID
	if shareID == "" {
		shareID = payload.ID
	}

	timestamp := payload.Timestamp
	if timestamp == nil {
		timestamp = time.Now().Format(time.RFC3339)
	}

	logrus.Infof("New LinkedIn post detected: %s", shareID)
	return []models.RawEvent{{
		Platform: "linkedin",
		Message:  "🔔 New LinkedIn post published!",
		Data: map[string]interface{}{
			"shareId":   shareID,
			"eventType": payload.EventType,
			"timestamp": timestamp,
		},
	}}
}

package webhooks

import (
	"encoding/json"
	"net/http"

	"github.com/house-of-holmes/social-alerts/internal/models"
	"github.com/sirupsen/logrus"
)

func (h *Handler) facebookHandler(w http.ResponseWriter, r *http.Request) {
	h.acknowledge(w, r, "facebook", matchFacebook)
}

// matchFacebook recognizes page feed deliveries.
func matchFacebook(body []byte) []models.RawEvent {
	var payload metaPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		logrus.Warnf("Unparseable Facebook webhook payload: %v", err)
		return nil
	}

	if payload.Object != "page" {
		return nil
	}

	var events []models.RawEvent
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "feed" {
				continue
			}

			logrus.Infof("New Facebook post detected: %s", change.Value.PostID)
			events = append(events, models.RawEvent{
				Platform: "facebook",
				Message:  "🔔 New Facebook post published!",
				Data: map[string]interface{}{
					"postId":    change.Value.PostID,
					"message":   change.Value.Message,
					"timestamp": entry.Time,
				},
			})
		}
	}

	return events
}

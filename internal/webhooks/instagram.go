package webhooks

import (
	"encoding/json"
	"net/http"

	"github.com/house-of-holmes/social-alerts/internal/models"
	"github.com/sirupsen/logrus"
)

// metaPayload is the entry/changes envelope shared by Instagram and
// Facebook webhook deliveries.
type metaPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Time    int64  `json:"time"`
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				MediaID   string `json:"media_id"`
				MediaType string `json:"media_type"`
				PostID    string `json:"post_id"`
				Message   string `json:"message"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

func (h *Handler) instagramHandler(w http.ResponseWriter, r *http.Request) {
	h.acknowledge(w, r, "instagram", matchInstagram)
}

// matchInstagram recognizes "media changed" deliveries. Anything else is
// an unrecognized shape and yields no events.
func matchInstagram(body []byte) []models.RawEvent {
	var payload metaPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		logrus.Warnf("Unparseable Instagram webhook payload: %v", err)
		return nil
	}

	if payload.Object != "instagram" {
		return nil
	}

	var events []models.RawEvent
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "media" {
				continue
			}

			logrus.Infof("New Instagram post detected: media %s", change.Value.MediaID)
			events = append(events, models.RawEvent{
				Platform: "instagram",
				Message:  "🔔 New Instagram post published!",
				Data: map[string]interface{}{
					"mediaId":   change.Value.MediaID,
					"mediaType": change.Value.MediaType,
					"timestamp": entry.Time,
				},
			})
		}
	}

	return events
}

package webhooks

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/house-of-holmes/social-alerts/internal/config"
	"github.com/house-of-holmes/social-alerts/internal/hub"
	"github.com/house-of-holmes/social-alerts/internal/models"
	"github.com/sirupsen/logrus"
)

// Handler receives provider webhook calls, verifies subscription handshakes
// and publishes normalized events to the hub. Providers expect a fast 2xx
// acknowledgment, so event deliveries always answer 200 "OK" whether the
// payload matched a known shape or not.
type Handler struct {
	cfg *config.Config
	hub *hub.Hub
}

// NewHandler creates a webhook handler bound to the given hub.
func NewHandler(cfg *config.Config, h *hub.Hub) *Handler {
	return &Handler{cfg: cfg, hub: h}
}

// Register mounts the provider endpoints on the router.
func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/webhooks/instagram", h.verifyHandler(h.cfg.InstagramVerifyToken)).Methods("GET")
	router.HandleFunc("/webhooks/instagram", h.instagramHandler).Methods("POST")
	router.HandleFunc("/webhooks/facebook", h.verifyHandler(h.cfg.FacebookVerifyToken)).Methods("GET")
	router.HandleFunc("/webhooks/facebook", h.facebookHandler).Methods("POST")
	router.HandleFunc("/webhooks/linkedin", h.linkedinHandler).Methods("POST")
}

// verifyHandler implements the ownership-verification handshake: the
// provider sends hub.mode, hub.verify_token and hub.challenge, and we echo
// the challenge only when the mode is "subscribe" and the token matches the
// configured secret exactly. An unset secret rejects every attempt.
func (h *Handler) verifyHandler(secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode := r.URL.Query().Get("hub.mode")
		token := r.URL.Query().Get("hub.verify_token")
		challenge := r.URL.Query().Get("hub.challenge")

		if mode == "" || token == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if mode != "subscribe" || secret == "" || token != secret {
			logrus.Warnf("Webhook verification rejected for %s (mode=%q)", r.URL.Path, mode)
			w.WriteHeader(http.StatusForbidden)
			return
		}

		logrus.Infof("Webhook verified successfully for %s", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
	}
}

// acknowledge reads the body, runs the provider's shape matcher and
// publishes whatever matched. Unparseable or unrecognized payloads are
// logged and dropped; the provider still gets its 200.
func (h *Handler) acknowledge(w http.ResponseWriter, r *http.Request, provider string, match func(body []byte) []models.RawEvent) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		logrus.Errorf("Failed to read %s webhook body: %v", provider, err)
	} else {
		for _, event := range match(body) {
			h.hub.Publish(event)
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/house-of-holmes/social-alerts/internal/config"
	"github.com/house-of-holmes/social-alerts/internal/hub"
	"github.com/house-of-holmes/social-alerts/internal/models"
	"github.com/house-of-holmes/social-alerts/internal/notifications"
	"github.com/house-of-holmes/social-alerts/internal/scheduler"
	"github.com/house-of-holmes/social-alerts/internal/storage"
	"github.com/house-of-holmes/social-alerts/internal/webhooks"
	"github.com/house-of-holmes/social-alerts/internal/ws"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting social alerts relay")

	// The hub lives for the life of the process; all alert state is in
	// memory and lost on restart.
	alertHub := hub.New()

	// Digest pipeline is optional and does not affect the relay path
	if cfg.DigestSchedule != "" {
		var storageClient storage.StorageInterface
		if cfg.StorageAccount != "" {
			client, err := storage.NewAzureStorage(cfg.StorageAccount, cfg.StorageContainer)
			if err != nil {
				logrus.Fatalf("Failed to initialize storage: %v", err)
			}
			storageClient = client
		}

		notificationService := notifications.NewService(cfg)
		schedulerService := scheduler.NewService(cfg, alertHub, notificationService, storageClient)
		if err := schedulerService.Start(); err != nil {
			logrus.Fatalf("Failed to start digest scheduler: %v", err)
		}
		defer schedulerService.Stop()
	}

	router := newRouter(cfg, alertHub)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

func newRouter(cfg *config.Config, alertHub *hub.Hub) *mux.Router {
	router := mux.NewRouter()

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}))

	router.HandleFunc("/", rootHandler(alertHub)).Methods("GET")
	router.HandleFunc("/health", healthHandler(alertHub)).Methods("GET")
	router.HandleFunc("/api/trigger-alert", triggerAlertHandler(alertHub)).Methods("POST")
	router.HandleFunc("/api/recent-alerts", recentAlertsHandler(alertHub)).Methods("GET")
	router.Handle("/ws", ws.NewHandler(cfg, alertHub)).Methods("GET")

	webhooks.NewHandler(cfg, alertHub).Register(router)

	return router
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

func rootHandler(alertHub *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"service": "House of Holmes - Social Media Alert Relay",
			"status":  "running",
			"endpoints": map[string]interface{}{
				"health":       "/health",
				"triggerAlert": "POST /api/trigger-alert",
				"recentAlerts": "/api/recent-alerts",
				"webhooks": map[string]string{
					"instagram": "/webhooks/instagram",
					"linkedin":  "/webhooks/linkedin",
					"facebook":  "/webhooks/facebook",
				},
			},
			"connectedClients": alertHub.ClientCount(),
		})
	}
}

func healthHandler(alertHub *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":           "ok",
			"connectedClients": alertHub.ClientCount(),
			"totalAlerts":      alertHub.TotalAlerts(),
			"timestamp":        time.Now().Format(time.RFC3339),
			"uptime":           alertHub.Uptime().Seconds(),
		})
	}
}

func triggerAlertHandler(alertHub *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw models.RawEvent
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			logrus.Debugf("Malformed trigger body, using defaults: %v", err)
		}

		if raw.Platform == "" {
			raw.Platform = "test"
		}
		if raw.Message == "" {
			raw.Message = "Test alert triggered!"
		}
		if raw.Data == nil {
			raw.Data = map[string]interface{}{"test": true}
		}

		alert := alertHub.Publish(raw)

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":          true,
			"message":          "Alert sent to all connected clients",
			"connectedClients": alertHub.ClientCount(),
			"alert":            alert,
		})
	}
}

func recentAlertsHandler(alertHub *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil {
				limit = parsed
			}
		}

		alerts := alertHub.History(limit)

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"alerts": alerts,
			"total":  alertHub.TotalAlerts(),
		})
	}
}

package main

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/house-of-holmes/social-alerts/internal/config"
	"github.com/house-of-holmes/social-alerts/internal/delivery"
	"github.com/house-of-holmes/social-alerts/internal/sources"
	"github.com/joho/godotenv"
)

var fakePosts = map[string][]string{
	"instagram": {
		"🧵 Just completed a new custom clothing line for our amazing client! #CustomClothing #QualityCraftsmanship",
		"✨ Behind the scenes at our design studio! Pattern development for next season's collection.",
		"🏆 Quality control check completed! Every piece that leaves our facility represents excellence.",
	},
	"facebook": {
		"🏭 Excited to share our latest manufacturing innovation with our community!",
		"📅 Open studio day next Friday - come see how your garments are made.",
	},
	"linkedin": {
		"🏭 We've just implemented new quality control standards that ensure 99.9% accuracy in our production process.",
		"🤝 Partnership Announcement: collaborating with sustainable fabric suppliers to bring eco-friendly manufacturing forward.",
	},
}

func main() {
	fmt.Println("🧪 Social Alerts - Relay Testing Tool")
	fmt.Println("=====================================")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	backendURL := os.Getenv("BACKEND_URL")
	if backendURL == "" {
		backendURL = "http://localhost:5000"
	}

	client := resty.New().SetTimeout(10 * time.Second).SetBaseURL(backendURL)

	if !checkHealth(client) {
		fmt.Println("\n💡 To start the backend: go run ./cmd/server")
		os.Exit(1)
	}

	command := "health"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "instagram", "facebook", "linkedin":
		sendFakePost(client, command)
	case "webhook-instagram":
		sendWebhook(client, "/webhooks/instagram", instagramWebhookPayload())
	case "webhook-facebook":
		sendWebhook(client, "/webhooks/facebook", facebookWebhookPayload())
	case "webhook-linkedin":
		sendWebhook(client, "/webhooks/linkedin", linkedinWebhookPayload())
	case "flood":
		floodTest(client)
	case "listen":
		listen(backendURL)
	case "health":
		// Already checked above
	default:
		fmt.Printf("❌ Unknown command: %s\n", command)
		fmt.Println("Commands: instagram | facebook | linkedin | webhook-instagram | webhook-facebook | webhook-linkedin | flood | listen | health")
		os.Exit(1)
	}
}

func checkHealth(client *resty.Client) bool {
	var health struct {
		Status           string `json:"status"`
		ConnectedClients int    `json:"connectedClients"`
	}

	resp, err := client.R().SetResult(&health).Get("/health")
	if err != nil || resp == nil || resp.StatusCode() != 200 {
		fmt.Printf("❌ Cannot reach backend at %s\n", client.BaseURL)
		return false
	}

	fmt.Printf("✅ Backend is running! Connected clients: %d\n", health.ConnectedClients)
	return true
}

func sendFakePost(client *resty.Client, platform string) {
	messages := fakePosts[platform]
	content := messages[rand.Intn(len(messages))]

	body := map[string]interface{}{
		"platform": platform,
		"message":  fmt.Sprintf("🔔 New %s post published!", platform),
		"data": map[string]interface{}{
			"id":       fmt.Sprintf("test_%s_%d", platform, time.Now().UnixMilli()),
			"content":  content,
			"testPost": true,
		},
	}

	fmt.Printf("📤 Sending fake %s post...\n", platform)

	var result struct {
		Success          bool `json:"success"`
		ConnectedClients int  `json:"connectedClients"`
	}
	resp, err := client.R().SetBody(body).SetResult(&result).Post("/api/trigger-alert")
	if err != nil {
		fmt.Printf("❌ Error sending alert: %v\n", err)
		return
	}
	if resp.StatusCode() != 200 {
		fmt.Printf("❌ Failed to send alert: status %d\n", resp.StatusCode())
		return
	}

	fmt.Printf("✅ Alert sent successfully! Clients notified: %d\n", result.ConnectedClients)
}

func sendWebhook(client *resty.Client, endpoint string, payload interface{}) {
	fmt.Printf("🔗 Sending raw webhook to %s...\n", endpoint)

	resp, err := client.R().SetBody(payload).Post(endpoint)
	if err != nil {
		fmt.Printf("❌ Webhook error: %v\n", err)
		return
	}
	if resp.StatusCode() != 200 {
		fmt.Printf("❌ Webhook failed: status %d\n", resp.StatusCode())
		return
	}

	fmt.Println("✅ Webhook sent successfully!")
}

func instagramWebhookPayload() map[string]interface{} {
	return map[string]interface{}{
		"object": "instagram",
		"entry": []map[string]interface{}{{
			"id":   "12345678901234567",
			"time": time.Now().Unix(),
			"changes": []map[string]interface{}{{
				"field": "media",
				"value": map[string]interface{}{
					"media_id":   fmt.Sprintf("test_media_%d", time.Now().UnixMilli()),
					"media_type": "IMAGE",
				},
			}},
		}},
	}
}

func facebookWebhookPayload() map[string]interface{} {
	return map[string]interface{}{
		"object": "page",
		"entry": []map[string]interface{}{{
			"id":   "page-1",
			"time": time.Now().Unix(),
			"changes": []map[string]interface{}{{
				"field": "feed",
				"value": map[string]interface{}{
					"post_id": fmt.Sprintf("test_post_%d", time.Now().UnixMilli()),
					"message": "Real webhook test from Facebook",
				},
			}},
		}},
	}
}

func linkedinWebhookPayload() map[string]interface{} {
	return map[string]interface{}{
		"eventType": "SHARE_LIFECYCLE_EVENT",
		"shareId":   fmt.Sprintf("urn:li:share:test%d", time.Now().UnixMilli()),
		"timestamp": time.Now().UnixMilli(),
		"object":    "share",
	}
}

func floodTest(client *resty.Client) {
	fmt.Println("🌊 Starting flood test with multiple alerts...")

	platforms := []string{"instagram", "linkedin", "instagram", "facebook"}
	for i, platform := range platforms {
		if i > 0 {
			time.Sleep(2 * time.Second)
		}
		sendFakePost(client, platform)
	}

	fmt.Println("🎯 Flood test completed! Watch your frontend for multiple alerts.")
}

// listen runs the client delivery strategy against the backend, printing
// every event it emits. Useful for watching the live channel fall back to
// polling when the backend goes away.
func listen(backendURL string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(backendURL, "http") + "/ws"
	fmt.Printf("👂 Listening on %s (Ctrl+C to stop)\n", wsURL)

	strategy := delivery.New(delivery.Options{
		WebsocketURL: wsURL,
		Source:       sources.NewInstagramSource(cfg.InstagramAccessToken, cfg.InstagramUserID),
		PollInterval: time.Duration(cfg.PollIntervalSeconds) * time.Second,
		MaxFailures:  cfg.PollMaxFailures,
	})

	strategy.On(delivery.EventConnection, func(e delivery.Event) {
		fmt.Printf("🔌 Connection: %s\n", e.Status)
	})
	strategy.On(delivery.EventNewAlert, func(e delivery.Event) {
		fmt.Printf("🔔 [%s] %s (id=%s)\n", e.Alert.Platform, e.Alert.Message, e.Alert.ID)
	})
	strategy.On(delivery.EventPollingStarted, func(e delivery.Event) {
		fmt.Println("🔄 Polling started")
	})
	strategy.On(delivery.EventPollSuccess, func(e delivery.Event) {
		fmt.Printf("📡 Poll: %s\n", e.Status)
	})
	strategy.On(delivery.EventPollError, func(e delivery.Event) {
		fmt.Printf("⚠️  Poll error (%s): %v\n", e.Status, e.Err)
	})
	strategy.On(delivery.EventPollingFailed, func(e delivery.Event) {
		fmt.Println("❌ Polling failed permanently - restart to resume")
	})

	strategy.Start()
	defer strategy.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\n👋 Testing session ended. Thank you!")
}

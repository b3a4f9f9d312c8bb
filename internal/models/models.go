package models

import "time"

// AlertTypeNewPost is the only alert type currently emitted.
const AlertTypeNewPost = "new_post"

// Alert is the normalized notification record for one externally-sourced
// "new content" event. The JSON field names are the wire format consumed
// by connected clients and must not change.
type Alert struct {
	ID        string                 `json:"id"`
	Platform  string                 `json:"platform"` // "instagram", "facebook", "linkedin", "test"
	Type      string                 `json:"type"`     // always "new_post"
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// RawEvent is the input to the hub's publish operation. Absent fields are
// defaulted by the hub rather than rejected.
type RawEvent struct {
	Platform string                 `json:"platform"`
	Message  string                 `json:"message"`
	Data     map[string]interface{} `json:"data"`
}

// Digest is a periodic summary of recently relayed alerts, sent to the
// configured notification channels and optionally archived.
type Digest struct {
	GeneratedAt    time.Time      `json:"generated_at"`
	Period         string         `json:"period"` // "daily" or "weekly"
	TotalAlerts    int            `json:"total_alerts"`
	Alerts         []Alert        `json:"alerts"`
	PlatformCounts map[string]int `json:"platform_counts"`
}

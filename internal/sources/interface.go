package sources

import (
	"context"
	"time"
)

// Post is one item from a platform's current content snapshot.
type Post struct {
	ID        string    `json:"id"`
	Platform  string    `json:"platform"`
	Kind      string    `json:"kind"` // media type or post kind, provider-specific
	Message   string    `json:"message"`
	Permalink string    `json:"permalink"`
	CreatedAt time.Time `json:"created_at"`
}

// Source interface defines the contract for content snapshot fetchers
type Source interface {
	Name() string
	IsEnabled() bool
	FetchPosts(ctx context.Context) ([]Post, error)
}

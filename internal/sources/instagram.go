package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const instagramGraphURL = "https://graph.instagram.com"

// InstagramSource fetches the account's recent media from the Instagram
// Graph API.
type InstagramSource struct {
	accessToken string
	userID      string
	baseURL     string
	client      *resty.Client
}

type instagramMediaResponse struct {
	Data []instagramMedia `json:"data"`
}

type instagramMedia struct {
	ID        string `json:"id"`
	MediaType string `json:"media_type"`
	Caption   string `json:"caption"`
	Permalink string `json:"permalink"`
	Timestamp string `json:"timestamp"`
}

// NewInstagramSource creates a new Instagram source
func NewInstagramSource(accessToken, userID string) *InstagramSource {
	return &InstagramSource{
		accessToken: accessToken,
		userID:      userID,
		baseURL:     instagramGraphURL,
		client:      resty.New().SetTimeout(30 * time.Second),
	}
}

func (i *InstagramSource) Name() string {
	return "instagram"
}

func (i *InstagramSource) IsEnabled() bool {
	return i.accessToken != "" && i.userID != ""
}

// FetchPosts returns the account's current media snapshot, newest first as
// the Graph API delivers it.
func (i *InstagramSource) FetchPosts(ctx context.Context) ([]Post, error) {
	if !i.IsEnabled() {
		logrus.Debug("Instagram source disabled - missing credentials")
		return nil, nil
	}

	resp, err := i.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"fields":       "id,media_type,caption,permalink,timestamp",
			"access_token": i.accessToken,
			"limit":        "25",
		}).
		Get(fmt.Sprintf("%s/%s/media", i.baseURL, i.userID))

	if err != nil {
		return nil, fmt.Errorf("instagram media request failed: %w", err)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("instagram API returned status %d", resp.StatusCode())
	}

	var mediaResp instagramMediaResponse
	if err := json.Unmarshal(resp.Body(), &mediaResp); err != nil {
		return nil, fmt.Errorf("failed to parse Instagram response: %w", err)
	}

	var posts []Post
	for _, media := range mediaResp.Data {
		posts = append(posts, Post{
			ID:        media.ID,
			Platform:  "instagram",
			Kind:      media.MediaType,
			Message:   media.Caption,
			Permalink: media.Permalink,
			CreatedAt: parseGraphTimestamp(media.Timestamp),
		})
	}

	return posts, nil
}

// parseGraphTimestamp handles both RFC3339 and the Graph API's offset
// format without a colon (2024-01-02T15:04:05+0000).
func parseGraphTimestamp(value string) time.Time {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05-0700", value); err == nil {
		return t
	}
	return time.Time{}
}

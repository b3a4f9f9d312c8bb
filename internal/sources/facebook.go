package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const facebookGraphURL = "https://graph.facebook.com/v19.0"

// FacebookSource fetches the page's recent feed from the Facebook Graph API.
type FacebookSource struct {
	pageID    string
	pageToken string
	baseURL   string
	client    *resty.Client
}

type facebookFeedResponse struct {
	Data []facebookPost `json:"data"`
}

type facebookPost struct {
	ID           string `json:"id"`
	Message      string `json:"message"`
	PermalinkURL string `json:"permalink_url"`
	CreatedTime  string `json:"created_time"`
}

// NewFacebookSource creates a new Facebook source
func NewFacebookSource(pageID, pageToken string) *FacebookSource {
	return &FacebookSource{
		pageID:    pageID,
		pageToken: pageToken,
		baseURL:   facebookGraphURL,
		client:    resty.New().SetTimeout(30 * time.Second),
	}
}

func (f *FacebookSource) Name() string {
	return "facebook"
}

func (f *FacebookSource) IsEnabled() bool {
	return f.pageID != "" && f.pageToken != ""
}

// FetchPosts returns the page's current feed snapshot.
func (f *FacebookSource) FetchPosts(ctx context.Context) ([]Post, error) {
	if !f.IsEnabled() {
		logrus.Debug("Facebook source disabled - missing credentials")
		return nil, nil
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"fields":       "id,message,permalink_url,created_time",
			"access_token": f.pageToken,
			"limit":        "25",
		}).
		Get(fmt.Sprintf("%s/%s/posts", f.baseURL, f.pageID))

	if err != nil {
		return nil, fmt.Errorf("facebook feed request failed: %w", err)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("facebook API returned status %d", resp.StatusCode())
	}

	var feedResp facebookFeedResponse
	if err := json.Unmarshal(resp.Body(), &feedResp); err != nil {
		return nil, fmt.Errorf("failed to parse Facebook response: %w", err)
	}

	var posts []Post
	for _, post := range feedResp.Data {
		posts = append(posts, Post{
			ID:        post.ID,
			Platform:  "facebook",
			Kind:      "status",
			Message:   post.Message,
			Permalink: post.PermalinkURL,
			CreatedAt: parseGraphTimestamp(post.CreatedTime),
		})
	}

	return posts, nil
}

package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstagramSource_Name(t *testing.T) {
	source := NewInstagramSource("token", "user")
	assert.Equal(t, "instagram", source.Name())
}

func TestInstagramSource_IsEnabled(t *testing.T) {
	tests := []struct {
		name        string
		accessToken string
		userID      string
		expected    bool
	}{
		{
			name:        "Both credentials provided",
			accessToken: "token",
			userID:      "user",
			expected:    true,
		},
		{
			name:     "Missing access token",
			userID:   "user",
			expected: false,
		},
		{
			name:        "Missing user ID",
			accessToken: "token",
			expected:    false,
		},
		{
			name:     "Both missing",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := NewInstagramSource(tt.accessToken, tt.userID)
			assert.Equal(t, tt.expected, source.IsEnabled())
		})
	}
}

func TestInstagramSource_DisabledReturnsNothing(t *testing.T) {
	source := NewInstagramSource("", "")

	posts, err := source.FetchPosts(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, posts)
}

func TestInstagramSource_FetchPosts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user-1/media", r.URL.Path)
		assert.Equal(t, "secret-token", r.URL.Query().Get("access_token"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": [
			{"id": "m2", "media_type": "VIDEO", "caption": "newer", "permalink": "https://instagr.am/p/m2", "timestamp": "2024-03-02T10:00:00+0000"},
			{"id": "m1", "media_type": "IMAGE", "caption": "older", "permalink": "https://instagr.am/p/m1", "timestamp": "2024-03-01T10:00:00+0000"}
		]}`))
	}))
	defer server.Close()

	source := NewInstagramSource("secret-token", "user-1")
	source.baseURL = server.URL

	posts, err := source.FetchPosts(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 2)

	assert.Equal(t, "m2", posts[0].ID)
	assert.Equal(t, "instagram", posts[0].Platform)
	assert.Equal(t, "VIDEO", posts[0].Kind)
	assert.Equal(t, "newer", posts[0].Message)
	assert.False(t, posts[0].CreatedAt.IsZero())
}

func TestInstagramSource_APIErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	source := NewInstagramSource("bad-token", "user-1")
	source.baseURL = server.URL

	_, err := source.FetchPosts(context.Background())
	assert.Error(t, err)
}

func TestFacebookSource_Name(t *testing.T) {
	source := NewFacebookSource("page", "token")
	assert.Equal(t, "facebook", source.Name())
}

func TestFacebookSource_IsEnabled(t *testing.T) {
	assert.True(t, NewFacebookSource("page", "token").IsEnabled())
	assert.False(t, NewFacebookSource("", "token").IsEnabled())
	assert.False(t, NewFacebookSource("page", "").IsEnabled())
}

func TestFacebookSource_FetchPosts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/page-1/posts", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": [
			{"id": "page-1_99", "message": "hello", "permalink_url": "https://fb.com/99", "created_time": "2024-03-02T12:00:00+0000"}
		]}`))
	}))
	defer server.Close()

	source := NewFacebookSource("page-1", "token")
	source.baseURL = server.URL

	posts, err := source.FetchPosts(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "page-1_99", posts[0].ID)
	assert.Equal(t, "facebook", posts[0].Platform)
}

func TestParseGraphTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		input string
		zero  bool
	}{
		{name: "Graph API offset without colon", input: "2024-03-01T10:00:00+0000"},
		{name: "RFC3339", input: "2024-03-01T10:00:00Z"},
		{name: "Garbage", input: "not-a-time", zero: true},
		{name: "Empty", input: "", zero: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := parseGraphTimestamp(tt.input)
			assert.Equal(t, tt.zero, parsed.IsZero())
		})
	}
}

package delivery

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/house-of-holmes/social-alerts/internal/config"
	"github.com/house-of-holmes/social-alerts/internal/hub"
	"github.com/house-of-holmes/social-alerts/internal/models"
	"github.com/house-of-holmes/social-alerts/internal/sources"
	"github.com/house-of-holmes/social-alerts/internal/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is a controllable content snapshot source
type fakeSource struct {
	mu    sync.Mutex
	posts []sources.Post
	err   error
	calls int
}

func (f *fakeSource) Name() string    { return "instagram" }
func (f *fakeSource) IsEnabled() bool { return true }

func (f *fakeSource) FetchPosts(ctx context.Context) ([]sources.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]sources.Post(nil), f.posts...), nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSource) set(posts []sources.Post, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = posts
	f.err = err
}

// recorder collects emitted events of one kind
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func post(id string, age time.Duration) sources.Post {
	return sources.Post{
		ID:        id,
		Platform:  "instagram",
		Kind:      "IMAGE",
		Message:   "caption " + id,
		CreatedAt: time.Now().Add(-age),
	}
}

func TestEmitter_OffIsIdempotent(t *testing.T) {
	s := New(Options{})
	rec := &recorder{}

	token := s.On(EventNewAlert, rec.record)
	s.Off(token)
	s.Off(token)
	s.Off(Token{kind: EventNewAlert, id: 999})

	s.events.emit(Event{Kind: EventNewAlert})
	assert.Equal(t, 0, rec.count())
}

func TestEmitter_RemovedListenerStopsFiring(t *testing.T) {
	s := New(Options{})
	kept := &recorder{}
	removed := &recorder{}

	s.On(EventPollSuccess, kept.record)
	token := s.On(EventPollSuccess, removed.record)

	s.events.emit(Event{Kind: EventPollSuccess})
	s.Off(token)
	s.events.emit(Event{Kind: EventPollSuccess})

	assert.Equal(t, 2, kept.count())
	assert.Equal(t, 1, removed.count())
}

func TestFallsBackToPollingWhenDialFails(t *testing.T) {
	source := &fakeSource{}
	source.set([]sources.Post{post("m1", time.Hour)}, nil)

	s := New(Options{
		WebsocketURL:   "ws://127.0.0.1:1/ws", // nothing listens here
		Source:         source,
		PollInterval:   20 * time.Millisecond,
		ConnectTimeout: 200 * time.Millisecond,
	})

	alerts := &recorder{}
	s.On(EventNewAlert, alerts.record)
	started := &recorder{}
	s.On(EventPollingStarted, started.record)

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return started.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return alerts.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	got := alerts.all()[0].Alert
	assert.Equal(t, "local_m1", got.ID)
	assert.Equal(t, "instagram", got.Platform)
	assert.Equal(t, models.AlertTypeNewPost, got.Type)
	assert.Equal(t, StatePolling, s.State())
}

func TestPollingDedupesSeenItems(t *testing.T) {
	source := &fakeSource{}
	source.set([]sources.Post{post("m1", time.Hour), post("m2", time.Hour)}, nil)

	s := New(Options{
		Source:       source,
		PollInterval: 10 * time.Millisecond,
	})

	alerts := &recorder{}
	s.On(EventNewAlert, alerts.record)

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return source.callCount() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, alerts.count())

	// A genuinely new item shows up exactly once.
	source.set([]sources.Post{post("m1", time.Hour), post("m2", time.Hour), post("m3", 0)}, nil)
	require.Eventually(t, func() bool { return alerts.count() == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "local_m3", alerts.all()[2].Alert.ID)
}

func TestFirstPollSkipsStaleContent(t *testing.T) {
	source := &fakeSource{}
	source.set([]sources.Post{
		post("recent", time.Hour),
		post("ancient", 48*time.Hour),
	}, nil)

	s := New(Options{
		Source:       source,
		PollInterval: 10 * time.Millisecond,
	})

	alerts := &recorder{}
	s.On(EventNewAlert, alerts.record)

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return source.callCount() >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, 1, alerts.count())
	assert.Equal(t, "local_recent", alerts.all()[0].Alert.ID)
}

func TestPollingErrorEscalation(t *testing.T) {
	source := &fakeSource{}
	source.set(nil, errors.New("content source down"))

	s := New(Options{
		Source:       source,
		PollInterval: 10 * time.Millisecond,
		MaxFailures:  5,
	})

	failures := &recorder{}
	s.On(EventPollError, failures.record)
	terminal := &recorder{}
	s.On(EventPollingFailed, terminal.record)

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return terminal.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 5, failures.count())
	assert.Equal(t, 5, source.callCount())
	assert.Equal(t, StateFailed, s.State())

	// No sixth attempt without a reset.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 5, source.callCount())
}

func TestResetResumesAfterTerminalFailure(t *testing.T) {
	source := &fakeSource{}
	source.set(nil, errors.New("down"))

	s := New(Options{
		Source:       source,
		PollInterval: 10 * time.Millisecond,
		MaxFailures:  2,
	})

	terminal := &recorder{}
	s.On(EventPollingFailed, terminal.record)
	success := &recorder{}
	s.On(EventPollSuccess, success.record)

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return terminal.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	source.set([]sources.Post{post("m1", time.Hour)}, nil)
	s.Reset()

	require.Eventually(t, func() bool { return success.count() >= 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, StatePolling, s.State())
}

func TestResetClearsSeenSet(t *testing.T) {
	source := &fakeSource{}
	source.set([]sources.Post{post("m1", time.Hour)}, nil)

	s := New(Options{
		Source:       source,
		PollInterval: 10 * time.Millisecond,
	})

	alerts := &recorder{}
	s.On(EventNewAlert, alerts.record)

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return alerts.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	s.Reset()
	require.Eventually(t, func() bool { return alerts.count() == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestStopCancelsPolling(t *testing.T) {
	source := &fakeSource{}
	source.set([]sources.Post{post("m1", time.Hour)}, nil)

	s := New(Options{
		Source:       source,
		PollInterval: 10 * time.Millisecond,
	})

	stopped := &recorder{}
	s.On(EventPollingStopped, stopped.record)

	s.Start()
	require.Eventually(t, func() bool { return source.callCount() >= 1 }, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	assert.Equal(t, 1, stopped.count())
	assert.Equal(t, StateDisconnected, s.State())

	calls := source.callCount()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, calls, source.callCount())
}

func TestLiveChannelForwardsPushedAlerts(t *testing.T) {
	h := hub.New()
	cfg := &config.Config{AllowedOrigins: []string{"http://localhost:3000"}}
	server := httptest.NewServer(ws.NewHandler(cfg, h))
	defer server.Close()

	s := New(Options{
		WebsocketURL: "ws" + strings.TrimPrefix(server.URL, "http"),
		Source:       &fakeSource{},
		PollInterval: time.Hour, // polling must not kick in
	})

	alerts := &recorder{}
	s.On(EventNewAlert, alerts.record)
	connections := &recorder{}
	s.On(EventConnection, connections.record)

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return s.State() == StateLive }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	published := h.Publish(models.RawEvent{Platform: "instagram", Message: "new"})

	require.Eventually(t, func() bool { return alerts.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, published.ID, alerts.all()[0].Alert.ID)
}

func TestLiveLossFallsBackToPolling(t *testing.T) {
	h := hub.New()
	cfg := &config.Config{AllowedOrigins: []string{"http://localhost:3000"}}
	server := httptest.NewServer(ws.NewHandler(cfg, h))

	source := &fakeSource{}
	source.set([]sources.Post{post("m1", time.Hour)}, nil)

	s := New(Options{
		WebsocketURL: "ws" + strings.TrimPrefix(server.URL, "http"),
		Source:       source,
		PollInterval: 10 * time.Millisecond,
	})

	alerts := &recorder{}
	s.On(EventNewAlert, alerts.record)

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return s.State() == StateLive }, 2*time.Second, 10*time.Millisecond)

	// Kill the live channel; the strategy must fall back and synthesize
	// exactly one alert for the unseen snapshot item.
	server.CloseClientConnections()
	server.Close()

	require.Eventually(t, func() bool { return s.State() == StatePolling }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return alerts.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "local_m1", alerts.all()[0].Alert.ID)
}

func TestHistoryReplayDoesNotDuplicate(t *testing.T) {
	h := hub.New()
	published := h.Publish(models.RawEvent{
		Platform: "instagram",
		Data:     map[string]interface{}{"mediaId": "m1"},
	})

	cfg := &config.Config{AllowedOrigins: []string{"http://localhost:3000"}}
	server := httptest.NewServer(ws.NewHandler(cfg, h))
	defer server.Close()

	s := New(Options{
		WebsocketURL: "ws" + strings.TrimPrefix(server.URL, "http"),
		PollInterval: time.Hour,
	})

	alerts := &recorder{}
	s.On(EventNewAlert, alerts.record)

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return s.State() == StateLive }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Replayed history is remembered, not re-notified.
	assert.Equal(t, 0, alerts.count())

	fresh := h.Publish(models.RawEvent{Platform: "instagram"})
	require.Eventually(t, func() bool { return alerts.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, fresh.ID, alerts.all()[0].Alert.ID)
	assert.NotEqual(t, published.ID, alerts.all()[0].Alert.ID)
}

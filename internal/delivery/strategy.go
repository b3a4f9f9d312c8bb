package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/house-of-holmes/social-alerts/internal/models"
	"github.com/house-of-holmes/social-alerts/internal/sources"
	"github.com/sirupsen/logrus"
)

// State of the delivery strategy.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateLive         State = "live"
	StatePolling      State = "polling"
	StateFailed       State = "failed"
)

// Options configures a Strategy. WebsocketURL and Source may each be empty;
// an empty WebsocketURL skips straight to polling, a nil Source makes
// every poll fail.
type Options struct {
	WebsocketURL   string
	Source         sources.Source
	PollInterval   time.Duration // default 30s
	MaxFailures    int           // default 5
	ConnectTimeout time.Duration // default 10s
	RecencyWindow  time.Duration // default 24h, first-poll flood guard
}

// Strategy gives a consumer a single "new alert arrived" feed: it holds a
// live websocket connection to the relay when it can, and transparently
// falls back to interval polling of the content source when it cannot.
// Alerts seen on either path are remembered so a mode switch does not
// re-deliver them.
type Strategy struct {
	opts   Options
	events *emitter

	mu       sync.Mutex
	state    State
	seen     map[string]bool
	lastPoll time.Time
	failures int

	cancel context.CancelFunc
	kick   chan struct{}
	wg     sync.WaitGroup
}

// New creates a strategy in the disconnected state.
func New(opts Options) *Strategy {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = 5
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.RecencyWindow <= 0 {
		opts.RecencyWindow = 24 * time.Hour
	}

	return &Strategy{
		opts:   opts,
		events: newEmitter(),
		state:  StateDisconnected,
		seen:   make(map[string]bool),
		kick:   make(chan struct{}, 1),
	}
}

// On registers a listener for one event kind and returns a removal token.
func (s *Strategy) On(kind EventKind, fn func(Event)) Token {
	return s.events.on(kind, fn)
}

// Off removes a listener. Removing twice, or with an unknown token, is
// a no-op.
func (s *Strategy) Off(token Token) {
	s.events.off(token)
}

// State returns the current delivery state.
func (s *Strategy) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start begins delivery: it attempts the live channel first and falls back
// to polling. Start is not reentrant; call Stop before starting again.
func (s *Strategy) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop tears the strategy down. When Stop returns, no further listener
// callbacks will fire and no timers remain scheduled.
func (s *Strategy) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.setState(StateDisconnected)
}

// Reset clears the seen-set and the error counter and forces an immediate
// check. It is the only way to resume after a terminal polling failure.
func (s *Strategy) Reset() {
	s.mu.Lock()
	s.seen = make(map[string]bool)
	s.failures = 0
	s.lastPoll = time.Time{}
	if s.state == StateFailed {
		s.state = StatePolling
	}
	s.mu.Unlock()

	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Strategy) run(ctx context.Context) {
	defer s.wg.Done()

	if s.opts.WebsocketURL != "" {
		s.runLive(ctx)
	}
	if ctx.Err() != nil {
		return
	}
	s.runPolling(ctx)
}

// runLive dials the relay and forwards pushed alerts until the connection
// is lost or the strategy is stopped.
func (s *Strategy) runLive(ctx context.Context) {
	s.setState(StateConnecting)
	s.events.emit(Event{Kind: EventConnection, Status: string(StateConnecting)})

	dialCtx, cancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, s.opts.WebsocketURL, nil)
	cancel()
	if err != nil {
		logrus.Warnf("Live channel unavailable (%v), falling back to polling", err)
		s.events.emit(Event{Kind: EventConnection, Status: string(StateDisconnected), Err: err})
		return
	}

	s.setState(StateLive)
	s.events.emit(Event{Kind: EventConnection, Status: string(StateLive)})

	// Unblock the read loop when the strategy is stopped.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logrus.Warnf("Live channel lost (%v), falling back to polling", err)
				s.events.emit(Event{Kind: EventConnection, Status: string(StateDisconnected), Err: err})
			}
			return
		}
		s.handleFrame(raw)
	}
}

// handleFrame dispatches one server frame. History replays populate the
// seen-set without re-notifying; new-post frames are forwarded once.
func (s *Strategy) handleFrame(raw []byte) {
	var frame struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		logrus.Debugf("Ignoring malformed live frame: %v", err)
		return
	}

	switch frame.Event {
	case "new-post":
		var alert models.Alert
		if err := json.Unmarshal(frame.Data, &alert); err != nil {
			logrus.Debugf("Ignoring malformed alert frame: %v", err)
			return
		}
		if s.remember(alert) {
			s.events.emit(Event{Kind: EventNewAlert, Alert: &alert})
		}
	case "post-history":
		var alerts []models.Alert
		if err := json.Unmarshal(frame.Data, &alerts); err != nil {
			return
		}
		for i := range alerts {
			s.remember(alerts[i])
		}
	}
}

// remember records an alert's identifiers in the seen-set. It returns
// false when the alert was already known.
func (s *Strategy) remember(alert models.Alert) bool {
	ids := []string{alert.ID}
	for _, key := range []string{"mediaId", "postId", "shareId", "id"} {
		if v, ok := alert.Data[key].(string); ok && v != "" {
			ids = append(ids, v)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := false
	for _, id := range ids {
		if id == "" {
			continue
		}
		if !s.seen[id] {
			fresh = true
			s.seen[id] = true
		}
	}
	return fresh
}

func (s *Strategy) runPolling(ctx context.Context) {
	s.setState(StatePolling)
	s.events.emit(Event{Kind: EventPollingStarted})

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	s.pollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.events.emit(Event{Kind: EventPollingStopped})
			return
		case <-s.kick:
			s.pollOnce(ctx)
		case <-ticker.C:
			// After a terminal failure only an explicit reset may
			// trigger another attempt.
			if s.State() == StateFailed {
				continue
			}
			s.pollOnce(ctx)
		}
	}
}

func (s *Strategy) pollOnce(ctx context.Context) {
	if ctx.Err() != nil || s.State() != StatePolling {
		return
	}

	if s.opts.Source == nil {
		s.recordFailure(fmt.Errorf("no content source configured"))
		return
	}

	posts, err := s.opts.Source.FetchPosts(ctx)
	if err != nil {
		s.recordFailure(err)
		return
	}

	now := time.Now()

	s.mu.Lock()
	s.failures = 0
	cutoff := s.lastPoll
	if cutoff.IsZero() {
		// First poll after a reset: only surface recent content
		// instead of flooding with the whole snapshot.
		cutoff = now.Add(-s.opts.RecencyWindow)
	}

	var fresh []sources.Post
	for _, post := range posts {
		if s.seen[post.ID] || !post.CreatedAt.After(cutoff) {
			continue
		}
		s.seen[post.ID] = true
		fresh = append(fresh, post)
	}
	s.lastPoll = now
	s.mu.Unlock()

	for _, post := range fresh {
		alert := synthesizeAlert(post)
		s.events.emit(Event{Kind: EventNewAlert, Alert: &alert})
	}

	s.events.emit(Event{Kind: EventPollSuccess, Status: fmt.Sprintf("%d new posts", len(fresh))})
}

func (s *Strategy) recordFailure(err error) {
	s.mu.Lock()
	s.failures++
	failures := s.failures
	terminal := failures >= s.opts.MaxFailures
	if terminal {
		s.state = StateFailed
	}
	s.mu.Unlock()

	logrus.Warnf("Poll attempt %d failed: %v", failures, err)
	s.events.emit(Event{Kind: EventPollError, Err: err, Status: fmt.Sprintf("attempt %d", failures)})

	if terminal {
		s.events.emit(Event{Kind: EventPollingFailed, Err: err, Status: "polling failed"})
	}
}

func (s *Strategy) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// synthesizeAlert builds a client-local equivalent of a hub alert from a
// snapshot item.
func synthesizeAlert(post sources.Post) models.Alert {
	return models.Alert{
		ID:       fmt.Sprintf("local_%s", post.ID),
		Platform: post.Platform,
		Type:     models.AlertTypeNewPost,
		Message:  fmt.Sprintf("🔔 New %s post published!", post.Platform),
		Data: map[string]interface{}{
			"id":        post.ID,
			"kind":      post.Kind,
			"message":   post.Message,
			"permalink": post.Permalink,
		},
		Timestamp: post.CreatedAt,
	}
}

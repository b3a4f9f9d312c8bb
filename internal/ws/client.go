package ws

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/house-of-holmes/social-alerts/internal/hub"
	"github.com/house-of-holmes/social-alerts/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// sendBuffer bounds how far a slow client may fall behind before
	// it is disconnected instead of blocking the hub.
	sendBuffer = 32
)

// Event names pushed over the live channel.
const (
	EventConnected   = "connected"
	EventPostHistory = "post-history"
	EventNewPost     = "new-post"
)

// Event is the wire envelope for every server-to-client frame.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Client is one live websocket connection registered with the hub.
type Client struct {
	id   string
	conn *websocket.Conn
	hub  *hub.Hub
	send chan Event

	mu     sync.Mutex
	closed bool
}

// Ensure Client implements the hub's subscriber contract
var _ hub.Subscriber = (*Client)(nil)

func newClient(id string, conn *websocket.Conn, h *hub.Hub) *Client {
	return &Client{
		id:   id,
		conn: conn,
		hub:  h,
		send: make(chan Event, sendBuffer),
	}
}

// ID returns the opaque connection identifier.
func (c *Client) ID() string { return c.id }

// Send enqueues a new-post event for this connection. It never blocks: a
// client whose buffer is full is dropped so one slow consumer cannot stall
// the publish path.
func (c *Client) Send(alert models.Alert) error {
	return c.enqueue(Event{Event: EventNewPost, Data: alert})
}

func (c *Client) enqueue(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("client %s is disconnected", c.id)
	}

	select {
	case c.send <- event:
		return nil
	default:
		go c.close()
		return fmt.Errorf("client %s send buffer full, dropping connection", c.id)
	}
}

func (c *Client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	c.hub.Unsubscribe(c.id)
	c.conn.Close()
	logrus.Infof("Client disconnected: %s", c.id)
}

// readPump discards inbound frames and tears the client down when the
// connection drops. The channel is server-push only.
func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump serializes all writes to the connection and keeps it alive
// with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				logrus.Debugf("Write to client %s failed: %v", c.id, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

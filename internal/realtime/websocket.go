package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"crmcheck/pkg/logging"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// DefaultHandshakeTimeout bounds the websocket upgrade.
	DefaultHandshakeTimeout = 10 * time.Second

	eventSubscribed = "subscribed"
	frameSubscribe  = "subscribe"
)

// frame is the JSON envelope exchanged on the socket.
//
//	server -> client: {"event":"data:update","data":{...}}
//	client -> server: {"type":"subscribe","event":"data:update","id":"..."}
//	server -> client: {"event":"subscribed","id":"..."}
type frame struct {
	Type  string          `json:"type,omitempty"`
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// WebSocketChannel is a Channel over a gorilla/websocket connection.
type WebSocketChannel struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
	ack    bool

	hub       *Hub
	connected atomic.Bool

	mu   sync.Mutex
	conn *websocket.Conn

	ackMu sync.Mutex
	acks  map[string]chan struct{}
}

// WSOption configures a WebSocketChannel.
type WSOption func(*WebSocketChannel)

// WithHeader adds handshake headers, typically the session credential.
func WithHeader(h http.Header) WSOption {
	return func(c *WebSocketChannel) {
		c.header = h.Clone()
	}
}

// WithAcknowledgements makes AwaitSubscribed send subscribe frames and wait
// for the server's confirmation.
func WithAcknowledgements(enabled bool) WSOption {
	return func(c *WebSocketChannel) {
		c.ack = enabled
	}
}

// WithDialer replaces the default dialer.
func WithDialer(d *websocket.Dialer) WSOption {
	return func(c *WebSocketChannel) {
		c.dialer = d
	}
}

// NewWebSocketChannel creates an unconnected channel for url (ws:// or wss://).
func NewWebSocketChannel(url string, opts ...WSOption) *WebSocketChannel {
	c := &WebSocketChannel{
		url:    url,
		header: http.Header{},
		dialer: &websocket.Dialer{HandshakeTimeout: DefaultHandshakeTimeout, Proxy: http.ProxyFromEnvironment},
		hub:    NewHub(),
		acks:   make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the server and starts the read pump.
func (c *WebSocketChannel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && c.connected.Load() {
		return nil
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("push channel handshake to %s failed with %d: %w", c.url, resp.StatusCode, err)
		}
		return fmt.Errorf("push channel connect to %s failed: %w", c.url, err)
	}
	c.conn = conn
	c.connected.Store(true)
	logging.Info("Realtime", "Connected to %s", c.url)

	go c.readPump(conn)
	return nil
}

func (c *WebSocketChannel) IsConnected() bool {
	return c.connected.Load()
}

func (c *WebSocketChannel) On(name string, h Handler) func() {
	return c.hub.On(name, h)
}

// AwaitSubscribed asks the server to confirm name is subscribed for this
// connection and waits for the reply.
func (c *WebSocketChannel) AwaitSubscribed(ctx context.Context, name string) error {
	if !c.ack {
		return ErrAckUnsupported
	}
	if !c.IsConnected() {
		return errors.New("push channel is not connected")
	}

	id := uuid.NewString()
	ch := make(chan struct{})
	c.ackMu.Lock()
	c.acks[id] = ch
	c.ackMu.Unlock()
	defer func() {
		c.ackMu.Lock()
		delete(c.acks, id)
		c.ackMu.Unlock()
	}()

	if err := c.write(frame{Type: frameSubscribe, Event: name, ID: id}); err != nil {
		return err
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s subscription ack: %w", name, ctx.Err())
	}
}

func (c *WebSocketChannel) write(f frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return errors.New("push channel is not connected")
	}
	if err := c.conn.WriteJSON(f); err != nil {
		return fmt.Errorf("push channel write failed: %w", err)
	}
	return nil
}

// Close shuts the connection down.
func (c *WebSocketChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected.Store(false)
	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *WebSocketChannel) readPump(conn *websocket.Conn) {
	defer c.connected.Store(false)

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Warn("Realtime", "push channel closed: %v", err)
			} else {
				logging.Debug("Realtime", "read pump stopped: %v", err)
			}
			return
		}

		if f.Event == eventSubscribed {
			c.ackMu.Lock()
			if ch, ok := c.acks[f.ID]; ok {
				close(ch)
				delete(c.acks, f.ID)
			}
			c.ackMu.Unlock()
			continue
		}

		ev, err := DecodeEvent(f.Event, f.Data)
		if err != nil {
			logging.Warn("Realtime", "dropping %s frame: %v", f.Event, err)
			continue
		}
		logging.Debug("Realtime", "%s %s/%s %s", f.Event, ev.EntityType, ev.EntityID, ev.Action)
		c.hub.Dispatch(f.Event, ev)
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jeranaias/widgetsync/internal/api"
)

// Connection constants.
const (
	// DefaultPath is appended to the API base URL when no socket URL is set.
	DefaultPath = "/ws"

	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
	pingInterval     = 25 * time.Second
	pongWait         = 60 * time.Second
	maxFrameSize     = 1 << 20
)

// ErrNotConnected is returned when writing without a live connection.
var ErrNotConnected = errors.New("push channel not connected")

// Handlers receive channel events. Nil handlers are skipped.
type Handlers struct {
	OnConnect           func()
	OnDisconnect        func(err error)
	OnConnectError      func(err error)
	OnStatus            func(StatusEvent)
	OnResponse          func(ResponseEvent)
	OnJoined            func(conversationID string)
	OnConversationError func(message string)
}

// Channel is a reconnectable websocket subscription. Connect may be called
// again after a disconnect; each call dials a fresh connection.
type Channel struct {
	url      string
	dialer   *websocket.Dialer
	handlers Handlers
	logger   *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	token  string
	joined string
	closed bool
	// done stops the pinger of the current connection.
	done chan struct{}

	writeMu sync.Mutex
}

// New creates a channel for the websocket endpoint at rawURL.
func New(rawURL string, handlers Handlers, logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{
		url: rawURL,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		handlers: handlers,
		logger:   logger,
	}
}

// EndpointFromBase derives the websocket URL from an HTTP API base URL.
func EndpointFromBase(base, path string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid base url: missing host")
	}
	if path == "" {
		path = DefaultPath
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = ""
	return u.String(), nil
}

// URL returns the endpoint.
func (c *Channel) URL() string { return c.url }

// SetToken sets the bearer token used by the next Connect. A live
// connection keeps the token it was opened with.
func (c *Channel) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Connected reports whether a connection is open.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// JoinedConversation returns the conversation the server confirmed, or "".
func (c *Channel) JoinedConversation() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined
}

// Connect dials the endpoint. On failure OnConnectError fires and the
// error is returned; on success OnConnect fires and events start flowing.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.closed = false
	token := c.token
	c.mu.Unlock()

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (HTTP %d)", err, resp.StatusCode)
		}
		c.logger.Warn("push connect failed", zap.String("url", c.url), zap.Error(err))
		if c.handlers.OnConnectError != nil {
			c.handlers.OnConnectError(err)
		}
		return err
	}

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.joined = ""
	c.done = done
	c.mu.Unlock()

	c.logger.Info("push channel connected", zap.String("url", c.url))
	if c.handlers.OnConnect != nil {
		c.handlers.OnConnect()
	}
	go c.pinger(conn, done)
	go c.readLoop(conn, done)
	return nil
}

// Join subscribes to a conversation's events.
func (c *Channel) Join(conversationID string) error {
	return c.emit(EventJoinConversation, roomPayload{ConversationID: api.ID(conversationID)})
}

// Leave unsubscribes from a conversation.
func (c *Channel) Leave(conversationID string) error {
	c.mu.Lock()
	if c.joined == conversationID {
		c.joined = ""
	}
	c.mu.Unlock()
	return c.emit(EventLeaveConversation, roomPayload{ConversationID: api.ID(conversationID)})
}

// Close shuts the connection without firing OnDisconnect.
func (c *Channel) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.closed = true
	c.conn = nil
	c.joined = ""
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
	c.writeMu.Unlock()
	return conn.Close()
}

func (c *Channel) emit(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", event, err)
	}
	frame, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write %s: %w", event, err)
	}
	return nil
}

func (c *Channel) pinger(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *Channel) readLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.dropped(conn, done, err)
			return
		}
		c.dispatch(data)
	}
}

// dropped clears conn if it is still current and reports the disconnect
// unless Close caused it.
func (c *Channel) dropped(conn *websocket.Conn, done chan struct{}, err error) {
	c.mu.Lock()
	current := c.conn == conn
	if current {
		c.conn = nil
		c.joined = ""
		if c.done == done {
			close(c.done)
			c.done = nil
		}
	}
	closed := c.closed
	c.mu.Unlock()
	_ = conn.Close()

	if !current || closed {
		return
	}
	c.logger.Warn("push channel disconnected", zap.Error(err))
	if c.handlers.OnDisconnect != nil {
		c.handlers.OnDisconnect(err)
	}
}

func (c *Channel) dispatch(data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.logger.Debug("ignoring malformed frame", zap.Error(err))
		return
	}
	h := c.handlers
	switch frame.Event {
	case EventChatStatus:
		var ev StatusEvent
		if c.decode(frame, &ev) && h.OnStatus != nil {
			h.OnStatus(ev)
		}
	case EventChatResponse:
		var ev ResponseEvent
		if c.decode(frame, &ev) && h.OnResponse != nil {
			if ev.Status == "" {
				ev.Status = ResponseStatusCompleted
			}
			h.OnResponse(ev)
		}
	case EventConversationJoined:
		var ev roomPayload
		if c.decode(frame, &ev) {
			c.mu.Lock()
			c.joined = string(ev.ConversationID)
			c.mu.Unlock()
			if h.OnJoined != nil {
				h.OnJoined(string(ev.ConversationID))
			}
		}
	case EventConversationError:
		var ev errorPayload
		if c.decode(frame, &ev) && h.OnConversationError != nil {
			msg := ev.Error
			if msg == "" {
				msg = ev.Message
			}
			h.OnConversationError(msg)
		}
	default:
		c.logger.Debug("ignoring unknown event", zap.String("event", frame.Event))
	}
}

func (c *Channel) decode(frame Frame, v any) bool {
	if len(frame.Data) == 0 {
		return false
	}
	if err := json.Unmarshal(frame.Data, v); err != nil {
		c.logger.Debug("ignoring malformed event", zap.String("event", frame.Event), zap.Error(err))
		return false
	}
	return true
}

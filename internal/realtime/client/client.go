// Package client implements the consumer side of the realtime gateway: a
// managed WebSocket connection with automatic reconnection and typed
// observer registration for events, status changes, and errors.
package client

import (
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

	"github.com/tradelink-hq/tradelink/internal/realtime"
	"github.com/tradelink-hq/tradelink/pkg/logger"
)

// Connection lifecycle states.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

var (
	// ErrMissingToken is returned when Connect is called without an access
	// token. No retry is attempted for this condition.
	ErrMissingToken = errors.New("realtime client: missing access token")

	// ErrRetriesExhausted is delivered to error observers once the retry
	// budget is spent. Callers should fall back to polling until a manual
	// Reconnect succeeds.
	ErrRetriesExhausted = errors.New("realtime client: reconnect attempts exhausted")

	// ErrNotConnected is returned by send operations while the socket is
	// down.
	ErrNotConnected = errors.New("realtime client: not connected")
)

const (
	defaultBaseDelay   = time.Second
	defaultMaxAttempts = 5
)

// Event is a frame received from the realtime gateway. Data is kept raw so
// consumers decode only the payloads they understand.
type Event struct {
	Stream string          `json:"stream"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Conn is the subset of the websocket connection the manager needs.
// *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v any) error
	Close() error
}

// DialFunc establishes a websocket connection. Injectable for tests.
type DialFunc func(urlStr string, header http.Header) (Conn, error)

func gorillaDial(urlStr string, header http.Header) (Conn, error) {
	conn, resp, err := websocket.DefaultDialer.Dial(urlStr, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", urlStr, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", urlStr, err)
	}
	return conn, nil
}

// Config controls a managed connection.
type Config struct {
	// URL is the http(s) endpoint of the realtime gateway; the scheme is
	// rewritten to ws(s) before dialing.
	URL string

	// Token is the bearer token presented during the handshake.
	Token string

	// Streams to subscribe to on connect. Defaults to chat and
	// notifications.
	Streams []string

	// BaseDelay seeds the backoff sequence. Defaults to one second; each
	// consecutive failure doubles it.
	BaseDelay time.Duration

	// MaxAttempts caps automatic reconnects. Defaults to five; once
	// exceeded the connection enters the error state until Reconnect is
	// called.
	MaxAttempts int

	// Dial overrides the websocket dialer. Defaults to gorilla.
	Dial DialFunc
}

type retryTimer interface {
	Stop() bool
}

// Connection is a managed realtime connection. All methods are safe for
// concurrent use.
type Connection struct {
	cfg Config
	log *zap.Logger

	mu       sync.Mutex
	conn     Conn
	status   Status
	failures int
	timer    retryTimer
	gen      int

	nextToken  int
	eventSubs  map[int]func(Event)
	statusSubs map[int]func(Status)
	errorSubs  map[int]func(error)

	// test hook for timer creation
	newTimer func(d time.Duration, fn func()) retryTimer
}

// New builds a managed connection. It does not dial until Connect is called.
func New(cfg Config) *Connection {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Dial == nil {
		cfg.Dial = gorillaDial
	}
	if len(cfg.Streams) == 0 {
		cfg.Streams = []string{realtime.StreamChat, realtime.StreamNotifications}
	}

	return &Connection{
		cfg:        cfg,
		log:        logger.WithModule("realtime.client"),
		status:     StatusDisconnected,
		eventSubs:  make(map[int]func(Event)),
		statusSubs: make(map[int]func(Status)),
		errorSubs:  make(map[int]func(error)),
		newTimer: func(d time.Duration, fn func()) retryTimer {
			return time.AfterFunc(d, fn)
		},
	}
}

// Status reports the current lifecycle state.
func (c *Connection) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SetToken replaces the bearer token used for subsequent dials.
func (c *Connection) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Token = token
}

// OnEvent registers an observer for incoming events. The returned function
// removes the observer; calling it more than once is harmless.
func (c *Connection) OnEvent(fn func(Event)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	token := c.nextToken
	c.nextToken++
	c.eventSubs[token] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.eventSubs, token)
	}
}

// OnStatusChange registers an observer for lifecycle transitions.
func (c *Connection) OnStatusChange(fn func(Status)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	token := c.nextToken
	c.nextToken++
	c.statusSubs[token] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.statusSubs, token)
	}
}

// OnError registers an observer for connection errors.
func (c *Connection) OnError(fn func(error)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	token := c.nextToken
	c.nextToken++
	c.errorSubs[token] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.errorSubs, token)
	}
}

// Connect dials the gateway. It is a no-op while already connected or
// connecting. A missing token fails immediately without scheduling retries.
func (c *Connection) Connect() error {
	c.mu.Lock()
	if c.status == StatusConnected || c.status == StatusConnecting {
		c.mu.Unlock()
		return nil
	}
	if strings.TrimSpace(c.cfg.Token) == "" {
		changed := c.setStatusLocked(StatusError)
		c.mu.Unlock()
		notify(changed)
		c.notifyError(ErrMissingToken)
		return ErrMissingToken
	}
	c.stopTimerLocked()
	changed := c.setStatusLocked(StatusConnecting)
	gen := c.gen
	c.mu.Unlock()
	notify(changed)

	return c.dial(gen)
}

// Reconnect resets the retry budget and dials immediately, bypassing any
// pending backoff. It recovers a connection from the error state.
func (c *Connection) Reconnect() error {
	c.mu.Lock()
	c.stopTimerLocked()
	c.failures = 0
	if c.status == StatusConnected || c.status == StatusConnecting {
		c.mu.Unlock()
		return nil
	}
	changed := c.setStatusLocked(StatusDisconnected)
	c.mu.Unlock()
	notify(changed)
	return c.Connect()
}

// Disconnect closes the socket and cancels any scheduled reconnect. It is
// idempotent and never triggers the retry policy.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	c.gen++ // invalidate in-flight dials and readers
	c.stopTimerLocked()
	c.failures = 0
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	changed := c.setStatusLocked(StatusDisconnected)
	c.mu.Unlock()
	notify(changed)
}

// SendTyping reports the local user's typing state in a conversation.
func (c *Connection) SendTyping(conversationID string, typing bool) error {
	return c.writeCommand(realtime.Command{
		Action:         realtime.ActionTyping,
		ConversationID: conversationID,
		Typing:         typing,
	})
}

// MarkAsRead advances the read watermark for a conversation.
func (c *Connection) MarkAsRead(conversationID string) error {
	return c.writeCommand(realtime.Command{
		Action:         realtime.ActionMarkAsRead,
		ConversationID: conversationID,
	})
}

// RequestHistory asks the gateway to replay up to limit messages sent before
// the given cursor. The response arrives as a history event.
func (c *Connection) RequestHistory(conversationID, before string, limit int) error {
	return c.writeCommand(realtime.Command{
		Action:         realtime.ActionRequestHistory,
		ConversationID: conversationID,
		Before:         before,
		Limit:          limit,
	})
}

func (c *Connection) writeCommand(cmd realtime.Command) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.status == StatusConnected
	c.mu.Unlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}
	return conn.WriteJSON(cmd)
}

func (c *Connection) dial(gen int) error {
	conn, err := c.cfg.Dial(c.dialURL(), c.dialHeader())

	c.mu.Lock()
	if c.gen != gen || c.status != StatusConnecting {
		// Disconnect raced with the dial; discard the result.
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return nil
	}

	if err != nil {
		c.mu.Unlock()
		c.log.Warn("dial failed", zap.Error(err))
		c.notifyError(err)
		c.scheduleRetry(gen)
		return err
	}

	c.conn = conn
	c.failures = 0
	changed := c.setStatusLocked(StatusConnected)
	c.mu.Unlock()
	notify(changed)

	go c.readLoop(conn, gen)
	return nil
}

// scheduleRetry arms the backoff timer after a failed dial or a dropped
// connection. Delay doubles per consecutive failure starting at BaseDelay;
// once failures exceed MaxAttempts the connection goes terminal.
func (c *Connection) scheduleRetry(gen int) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.failures++
	if c.failures > c.cfg.MaxAttempts {
		changed := c.setStatusLocked(StatusError)
		c.mu.Unlock()
		notify(changed)
		c.notifyError(ErrRetriesExhausted)
		return
	}

	delay := c.cfg.BaseDelay << (c.failures - 1)
	changed := c.setStatusLocked(StatusDisconnected)
	c.log.Info("scheduling reconnect",
		zap.Int("attempt", c.failures),
		zap.Duration("delay", delay))
	c.timer = c.newTimer(delay, func() {
		c.mu.Lock()
		if c.gen != gen || c.status != StatusDisconnected {
			c.mu.Unlock()
			return
		}
		fired := c.setStatusLocked(StatusConnecting)
		c.mu.Unlock()
		notify(fired)
		_ = c.dial(gen)
	})
	c.mu.Unlock()
	notify(changed)
}

func (c *Connection) readLoop(conn Conn, gen int) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.gen != gen {
				// Closed by Disconnect; nothing to do.
				c.mu.Unlock()
				return
			}
			c.conn = nil
			c.mu.Unlock()
			c.scheduleRetry(gen)
			return
		}

		var evt Event
		if err := json.Unmarshal(payload, &evt); err != nil {
			c.log.Warn("discarding malformed frame", zap.Error(err))
			continue
		}
		if evt.Event == "" {
			continue
		}
		c.notifyEvent(evt)
	}
}

func (c *Connection) dialURL() string {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return c.cfg.URL
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("streams", strings.Join(c.cfg.Streams, ","))
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Connection) dialHeader() http.Header {
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	return header
}

// setStatusLocked records a transition and returns a notifier the caller must
// invoke after releasing the lock, so observers can call back into the
// connection. Returns nil when the status is unchanged.
func (c *Connection) setStatusLocked(status Status) func() {
	if c.status == status {
		return nil
	}
	c.status = status
	observers := make([]func(Status), 0, len(c.statusSubs))
	for _, fn := range c.statusSubs {
		observers = append(observers, fn)
	}
	return func() {
		for _, fn := range observers {
			fn(status)
		}
	}
}

func notify(fn func()) {
	if fn != nil {
		fn()
	}
}

func (c *Connection) notifyEvent(evt Event) {
	c.mu.Lock()
	observers := make([]func(Event), 0, len(c.eventSubs))
	for _, fn := range c.eventSubs {
		observers = append(observers, fn)
	}
	c.mu.Unlock()

	for _, fn := range observers {
		fn(evt)
	}
}

func (c *Connection) notifyError(err error) {
	c.mu.Lock()
	observers := make([]func(error), 0, len(c.errorSubs))
	for _, fn := range c.errorSubs {
		observers = append(observers, fn)
	}
	c.mu.Unlock()

	for _, fn := range observers {
		fn(err)
	}
}

func (c *Connection) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/astar313/ARIS/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Audio chunks are the largest inbound frames.
	maxMessageSize = 4 * 1024 * 1024

	maxBackoff = 30 * time.Second
)

// ErrSendSuppressed is returned by outbound actions while not connected.
// Callers treat it as a silent no-op.
var ErrSendSuppressed = errors.New("not connected; send suppressed")

// ConnectionError is returned by Run once the reconnect budget is spent.
type ConnectionError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("could not reach %s after %d reconnect attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Config controls the endpoint and the reconnect budget.
type Config struct {
	URL                  string
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	HandshakeTimeout     time.Duration
	Header               http.Header
}

// Event is delivered on Events in arrival order. Attempt is set on
// connecting events, Err on disconnect and reconnect_failed.
type Event struct {
	Name    string
	Data    json.RawMessage
	Attempt int
	Err     error
}

// Client owns one logical session: the current websocket connection and the
// reconnect loop around it.
type Client struct {
	cfg     Config
	log     *zap.Logger
	metrics *metrics.Metrics
	events  chan Event

	mu   sync.Mutex
	conn *websocket.Conn

	writeMu   sync.Mutex
	connected atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// NewClient creates a client. Call Run to connect.
func NewClient(cfg Config, log *zap.Logger, m *metrics.Metrics) *Client {
	if cfg.MaxReconnectAttempts < 0 {
		cfg.MaxReconnectAttempts = 0
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:     cfg,
		log:     log.With(zap.String("url", cfg.URL)),
		metrics: m,
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
	}
}

// Events returns the event stream. It is closed when Run returns.
func (c *Client) Events() <-chan Event { return c.events }

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool { return c.connected.Load() }

// WebSocketURL normalizes an http(s) endpoint to ws(s).
func WebSocketURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server url %q has no host", raw)
	}
	return u.String(), nil
}

// Backoff returns the wait before reconnect attempt n (1-based).
func Backoff(base time.Duration, n int) time.Duration {
	if n < 1 {
		n = 1
	}
	shift := n - 1
	if shift > 5 {
		shift = 5
	}
	d := base << shift
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// Run connects and keeps the session alive until ctx is cancelled, Close is
// called, or the reconnect budget is exhausted. Only exhaustion returns an
// error.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	attempt := 0
	for {
		if attempt > 0 && c.metrics != nil {
			c.metrics.Reconnects.Inc()
		}
		c.emit(ctx, Event{Name: EventConnecting, Attempt: attempt})

		conn, err := c.dial(ctx)
		if err == nil {
			attempt = 0
			c.setConn(conn)
			c.log.Info("connected")
			c.emit(ctx, Event{Name: EventConnect})

			err = c.readLoop(ctx, conn)
			c.clearConn(conn)
			if ctx.Err() != nil || c.closed.Load() {
				return nil
			}
			c.log.Warn("connection lost", zap.Error(err))
			c.emit(ctx, Event{Name: EventDisconnect, Err: err})
		} else {
			if ctx.Err() != nil || c.closed.Load() {
				return nil
			}
			c.log.Debug("dial failed", zap.Int("attempt", attempt), zap.Error(err))
		}

		if attempt >= c.cfg.MaxReconnectAttempts {
			if c.metrics != nil {
				c.metrics.ReconnectFailures.Inc()
			}
			cerr := &ConnectionError{URL: c.cfg.URL, Attempts: attempt, Err: err}
			c.log.Error("reconnect budget exhausted", zap.Error(cerr))
			c.emit(ctx, Event{Name: EventReconnectFailed, Err: cerr})
			return cerr
		}
		attempt++

		select {
		case <-time.After(Backoff(c.cfg.ReconnectDelay, attempt)):
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	wsURL, err := WebSocketURL(c.cfg.URL)
	if err != nil {
		return nil, err
	}
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, wsURL, c.cfg.Header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.connected.Store(true)
}

func (c *Client) clearConn(conn *websocket.Conn) {
	c.connected.Store(false)
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	conn.Close()
}

func (c *Client) currentConn() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// readLoop is the only reader of conn. It returns when the connection drops
// or ctx is cancelled.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	stop := make(chan struct{})
	defer close(stop)
	go c.pingLoop(ctx, conn, stop)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return fmt.Errorf("server closed connection: %w", err)
			}
			return fmt.Errorf("read: %w", err)
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.log.Warn("malformed frame", zap.Error(err))
			continue
		}
		if env.Event == "" {
			continue
		}
		if c.metrics != nil {
			c.metrics.EventsReceived.WithLabelValues(env.Event).Inc()
		}
		c.emit(ctx, Event{Name: env.Event, Data: env.Data})
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			// unblocks ReadMessage
			conn.Close()
			return
		case <-ticker.C:
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				c.log.Debug("ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) emit(ctx context.Context, ev Event) {
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}

// SendText emits send_text_message.
func (c *Client) SendText(message string) error {
	return c.send(EventSendText, TextMessage{Message: message})
}

// SendFrame emits send_video_frame.
func (c *Client) SendFrame(dataURL string) error {
	return c.send(EventSendFrame, VideoFrame{FrameData: dataURL})
}

func (c *Client) send(event string, payload any) error {
	conn := c.currentConn()
	if conn == nil || !c.connected.Load() || c.closed.Load() {
		if c.metrics != nil {
			c.metrics.SendsSuppressed.Inc()
		}
		return ErrSendSuppressed
	}

	data, err := encode(event, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if c.metrics != nil {
			c.metrics.SendFailures.WithLabelValues(event).Inc()
		}
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}

// Close disconnects and stops reconnecting. It does not wait for Run to
// return; no disconnect event is emitted for an explicit close.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.connected.Store(false)
		close(c.done)

		conn := c.currentConn()
		if conn == nil {
			return
		}
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(2*time.Second))
		c.writeMu.Unlock()
		conn.Close()
	})
	return nil
}

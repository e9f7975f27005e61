package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/uell/livelink/pkg/streaming"
)

const maxReconnect = 10

// connection manages a WebSocket connection with a single write goroutine.
type connection struct {
	cfg Config

	mu     sync.Mutex
	conn   *ws.Conn
	stop   chan struct{} // closed when conn is replaced
	sendCh chan []byte
	done   chan struct{} // closed on shutdown
	closed bool

	// ack waiters per message type, oldest first
	ackMu   sync.Mutex
	waiting map[string][]chan struct{}
	acked   atomic.Uint64
	missed  atomic.Uint64

	// start_session of the open session, replayed after a reconnect
	cachedStart []byte

	logger *slog.Logger
}

func newConnection(cfg Config, logger *slog.Logger) *connection {
	return &connection{
		cfg:    cfg,
		sendCh:  make(chan []byte, cfg.QueueSize),
		done:    make(chan struct{}),
		waiting: make(map[string][]chan struct{}),
		logger:  logger,
	}
}

// dial connects and starts the read and write loops.
func (c *connection) dial() error {
	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.attach(conn)
	return nil
}

// attach makes conn current and starts its read and write loops.
func (c *connection) attach(conn *ws.Conn) {
	stop := make(chan struct{})
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.stop = stop
	c.mu.Unlock()

	go c.writeLoop(conn, stop)
	go c.readLoop(conn)
}

// dialOnce performs a single WebSocket dial with the secret query param.
func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if c.cfg.Secret != "" {
		q := u.Query()
		q.Set("secret", c.cfg.Secret)
		u.RawQuery = q.Encode()
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// writeLoop drains sendCh into conn. It returns on error or shutdown;
// the reconnect starts a new one.
func (c *connection) writeLoop(conn *ws.Conn, stop <-chan struct{}) {
	for {
		select {
		case <-c.done:
			return
		case <-stop:
			return
		case data := <-c.sendCh:
			if err := c.write(conn, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				go c.reconnect(conn)
				return
			}
		}
	}
}

func (c *connection) write(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// readLoop hands acks to their waiters.
func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("WebSocket read error", "error", err)
			go c.reconnect(conn)
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != "ack" {
			c.logger.Debug("Non-ack message received", "raw", string(message))
			continue
		}
		if !c.resolve(ack.For) {
			c.logger.Debug("Unexpected ack", "for", ack.For)
		}
	}
}

// reconnect replaces broken with a new connection, backing off
// exponentially. Both loops may report the same broken conn; only the
// first call proceeds.
func (c *connection) reconnect(broken *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != broken {
		c.mu.Unlock()
		return
	}
	_ = broken.Close()
	close(c.stop)
	c.conn = nil
	c.mu.Unlock()

	backoff := c.cfg.MinBackoff
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		c.logger.Info("Reconnecting to WebSocket", "attempt", attempt, "backoff", backoff)
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, c.cfg.MaxBackoff)
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		cached := c.cachedStart
		c.mu.Unlock()

		if cached != nil {
			if err := c.write(conn, cached); err != nil {
				c.logger.Warn("Failed to replay start_session after reconnect", "error", err)
				_ = conn.Close()
				continue
			}
		}

		c.attach(conn)
		c.logger.Info("WebSocket reconnected", "attempt", attempt)
		return
	}

	c.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (c *connection) send(data []byte) bool {
	select {
	case c.sendCh <- data:
		return true
	default:
		c.logger.Warn("WebSocket send channel full, dropping message")
		return false
	}
}

// sendAcked queues data and returns once it is queued. The ack for ackFor
// is awaited in the background; a missing ack is logged and counted.
func (c *connection) sendAcked(data []byte, ackFor string) error {
	ch := c.expect(ackFor)
	if !c.send(data) {
		c.forget(ackFor, ch)
		return fmt.Errorf("send queue full, %q not sent", ackFor)
	}
	go c.awaitAck(ackFor, ch)
	return nil
}

func (c *connection) awaitAck(ackFor string, ch chan struct{}) {
	timer := time.NewTimer(c.cfg.AckTimeout)
	defer timer.Stop()

	select {
	case <-ch:
		c.acked.Add(1)
	case <-timer.C:
		c.forget(ackFor, ch)
		c.missed.Add(1)
		c.logger.Warn("No ack from recorder", "for", ackFor, "timeout", c.cfg.AckTimeout)
	case <-c.done:
		c.forget(ackFor, ch)
	}
}

// expect registers a waiter before the message is queued, so a fast ack
// cannot arrive unclaimed.
func (c *connection) expect(ackFor string) chan struct{} {
	ch := make(chan struct{})
	c.ackMu.Lock()
	c.waiting[ackFor] = append(c.waiting[ackFor], ch)
	c.ackMu.Unlock()
	return ch
}

// resolve releases the oldest waiter for ackFor.
func (c *connection) resolve(ackFor string) bool {
	c.ackMu.Lock()
	defer c.ackMu.Unlock()
	queue := c.waiting[ackFor]
	if len(queue) == 0 {
		return false
	}
	close(queue[0])
	c.waiting[ackFor] = queue[1:]
	return true
}

func (c *connection) forget(ackFor string, ch chan struct{}) {
	c.ackMu.Lock()
	defer c.ackMu.Unlock()
	c.waiting[ackFor] = slices.DeleteFunc(c.waiting[ackFor], func(w chan struct{}) bool { return w == ch })
}

// close sends a close frame and shuts down all goroutines.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return conn.Close()
	}
	return nil
}

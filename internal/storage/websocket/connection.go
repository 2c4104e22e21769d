package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/minesight/tilecore/pkg/streaming"
)

const (
	queueSize    = 1_000
	ackQueueSize = 16
	maxRedials   = 5
	maxBackoff   = 15 * time.Second
	writeWait    = 5 * time.Second
	ackTimeout   = 5 * time.Second
)

// redialDelay is the first backoff step after a broken connection.
var redialDelay = 500 * time.Millisecond

var dialer = &ws.Dialer{
	Proxy:            http.ProxyFromEnvironment,
	HandshakeTimeout: writeWait,
}

// connection owns the socket and the single goroutine writing to it. The
// writer survives reconnects, so queued messages keep their order.
type connection struct {
	mu      sync.Mutex
	conn    *ws.Conn
	closed  bool
	running bool
	greeter []byte // start_session, replayed after a redial

	outbox  chan []byte
	acks    chan streaming.AckMessage
	done    chan struct{}
	drained chan struct{}

	target string
	log    *slog.Logger
}

func newConnection(log *slog.Logger) *connection {
	return &connection{
		outbox:  make(chan []byte, queueSize),
		acks:    make(chan streaming.AckMessage, ackQueueSize),
		done:    make(chan struct{}),
		drained: make(chan struct{}),
		log:     log,
	}
}

// open dials rawURL with the secret as a query parameter and starts the
// writer.
func (c *connection) open(rawURL, secret string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid feed URL: %w", err)
	}
	if secret != "" {
		q := u.Query()
		q.Set("secret", secret)
		u.RawQuery = q.Encode()
	}
	c.target = u.String()

	conn, err := c.dial()
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed || c.running {
		c.mu.Unlock()
		_ = conn.Close()
		return fmt.Errorf("feed already opened or closed")
	}
	c.conn = conn
	c.running = true
	c.mu.Unlock()

	go c.run(conn, c.watch(conn))
	return nil
}

func (c *connection) dial() (*ws.Conn, error) {
	conn, _, err := dialer.Dial(c.target, nil)
	if err != nil {
		return nil, fmt.Errorf("feed dial failed: %w", err)
	}
	return conn, nil
}

// watch starts the read loop for conn. The returned channel is closed when
// reading fails.
func (c *connection) watch(conn *ws.Conn) <-chan struct{} {
	broken := make(chan struct{})
	go c.readLoop(conn, broken)
	return broken
}

// run is the writer. head is the message being delivered; it is only
// dropped once written, so a failed write is retried first on the next
// connection.
func (c *connection) run(conn *ws.Conn, broken <-chan struct{}) {
	defer close(c.drained)

	var head []byte
	closingRedials := 0
	for {
		if conn == nil {
			if c.isClosing() {
				if closingRedials > 0 {
					c.log.Warn("Feed lost queued messages", "queued", len(c.outbox)+btoi(head != nil))
					return
				}
				closingRedials++
			}
			conn, broken = c.redial()
			if conn == nil {
				c.log.Error("Feed gave up reconnecting", "attempts", maxRedials)
				return
			}
		}

		if head == nil {
			select {
			case <-c.done:
				if err := c.drain(conn); err != nil {
					c.log.Warn("Feed lost queued messages", "error", err, "queued", len(c.outbox))
				}
				c.discard(conn)
				return
			case <-broken:
				c.log.Warn("Feed connection lost")
				c.discard(conn)
				conn = nil
				continue
			case head = <-c.outbox:
			}
		}

		if err := writeText(conn, head); err != nil {
			c.log.Warn("Feed write failed", "error", err)
			c.discard(conn)
			conn = nil
			continue
		}
		head = nil
	}
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (c *connection) isClosing() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// drain writes whatever is still queued and says goodbye to the server.
func (c *connection) drain(conn *ws.Conn) error {
	for {
		select {
		case data := <-c.outbox:
			if err := writeText(conn, data); err != nil {
				return err
			}
		default:
			return conn.WriteControl(ws.CloseMessage,
				ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(writeWait))
		}
	}
}

func (c *connection) discard(conn *ws.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
}

func (c *connection) readLoop(conn *ws.Conn, broken chan<- struct{}) {
	defer close(broken)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !c.isClosing() {
				c.log.Debug("Feed read stopped", "error", err)
			}
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(raw, &ack); err != nil || ack.Type != "ack" {
			c.log.Debug("Ignoring feed message", "raw", string(raw))
			continue
		}
		select {
		case c.acks <- ack:
		default:
			c.log.Debug("Ack queue full, dropping", "for", ack.For)
		}
	}
}

func writeText(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// redial connects again with exponential backoff and replays the session
// announcement. Once the feed is closing it tries immediately, so what is
// queued can still be delivered.
func (c *connection) redial() (*ws.Conn, <-chan struct{}) {
	backoff := redialDelay
	for attempt := 1; attempt <= maxRedials; attempt++ {
		closing := c.isClosing()
		if !closing {
			select {
			case <-c.done:
				closing = true
			case <-time.After(backoff):
			}
		}
		backoff = min(backoff*2, maxBackoff)

		conn, err := c.dial()
		if err != nil {
			c.log.Warn("Feed redial failed", "attempt", attempt, "error", err)
			if closing {
				return nil, nil
			}
			continue
		}

		c.mu.Lock()
		greeter := c.greeter
		c.conn = conn
		c.mu.Unlock()
		if greeter != nil {
			if err := writeText(conn, greeter); err != nil {
				c.log.Warn("Failed to replay start_session", "error", err)
				c.discard(conn)
				if closing {
					return nil, nil
				}
				continue
			}
		}

		c.log.Info("Feed reconnected", "attempt", attempt)
		return conn, c.watch(conn)
	}
	return nil, nil
}

// send queues data without blocking. Messages are dropped while the queue is
// full.
func (c *connection) send(data []byte) bool {
	select {
	case c.outbox <- data:
		return true
	default:
		c.log.Warn("Feed queue full, dropping message")
		return false
	}
}

// sendAndWait queues data and waits for the server to ack msgType.
func (c *connection) sendAndWait(data []byte, msgType string, timeout time.Duration) error {
	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ack := <-c.acks:
			if ack.For == msgType {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", msgType)
		case <-c.done:
			return fmt.Errorf("feed closed while waiting for ack of %q", msgType)
		}
	}
}

// close stops the writer once it has flushed the queue, reconnecting first
// if the socket was lost.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	running := c.running
	c.mu.Unlock()
	close(c.done)

	if !running {
		return nil
	}
	select {
	case <-c.drained:
	case <-time.After(3 * writeWait):
		c.log.Warn("Feed did not drain in time")
	}
	return nil
}

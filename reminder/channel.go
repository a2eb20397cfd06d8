// Package reminder manages the persistent publish/subscribe connection for
// reminder events. The channel is gated by the user's reminders preference:
// a live connection exists only while the preference is enabled, and an
// unexpected disconnect is retried at a fixed delay for as long as it stays
// enabled. Delivery is best-effort; channel failures never surface to the
// consumer as errors.
package reminder

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/echotrace/echotrace-go/log"
	"github.com/echotrace/echotrace-go/metrics"
)

const (
	defaultTopic          = "reminders"
	defaultReconnectDelay = 5 * time.Second
	defaultEventBuffer    = 16

	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
	maxMessageSize   = 1 << 20
)

// Channel owns the websocket connection exclusively and emits every inbound
// reminder exactly once, in arrival order, on Events().
type Channel struct {
	url            string
	topic          string
	header         http.Header
	reconnectDelay time.Duration
	dialer         *websocket.Dialer

	events chan Reminder

	mu      sync.Mutex
	state   State
	enabled bool
	closed  bool
	conn    *websocket.Conn
	cancel  context.CancelFunc
	running sync.WaitGroup
}

// Option configures the channel.
type Option func(*Channel)

// WithTopic overrides the logical topic subscribed after connect.
func WithTopic(topic string) Option {
	return func(c *Channel) {
		if topic != "" {
			c.topic = topic
		}
	}
}

// WithReconnectDelay overrides the fixed delay between reconnect attempts.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.reconnectDelay = d
		}
	}
}

// WithHeader sets headers sent with the websocket handshake.
func WithHeader(header http.Header) Option {
	return func(c *Channel) {
		c.header = header
	}
}

// WithEventBuffer sets the capacity of the event channel.
func WithEventBuffer(n int) Option {
	return func(c *Channel) {
		if n > 0 {
			c.events = make(chan Reminder, n)
		}
	}
}

// New creates a channel against the websocket endpoint at url. The channel
// starts disabled and disconnected; call SetEnabled(true) once the user's
// preference is known.
func New(url string, opts ...Option) *Channel {
	c := &Channel{
		url:            url,
		topic:          defaultTopic,
		reconnectDelay: defaultReconnectDelay,
		dialer:         &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		events:         make(chan Reminder, defaultEventBuffer),
		state:          StateDisconnected,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Events returns the stream of reminders. It stays open across preference
// toggles and reconnects, and is closed only by Close.
func (c *Channel) Events() <-chan Reminder {
	return c.events
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Enabled reports whether the reminders preference is on.
func (c *Channel) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// SetEnabled applies the reminders preference. Enabling an already-enabled
// channel is a no-op: there is never more than one active subscription.
// Disabling tears the connection down immediately, whatever its state, and
// stops all reconnect attempts.
func (c *Channel) SetEnabled(enabled bool) {
	c.mu.Lock()
	if c.closed || c.enabled == enabled {
		c.mu.Unlock()
		return
	}
	c.enabled = enabled

	if !enabled {
		c.teardownLocked()
		c.mu.Unlock()
		c.running.Wait()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.running.Add(1)
	c.mu.Unlock()

	go c.run(ctx)
}

// Close releases the connection and the event stream deterministically.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.enabled = false
	c.teardownLocked()
	c.mu.Unlock()

	c.running.Wait()
	close(c.events)
	return nil
}

// teardownLocked cancels the run loop and closes the live connection so a
// blocked read returns promptly. Callers hold c.mu.
func (c *Channel) teardownLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.conn != nil {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeTimeout))
		_ = c.conn.Close()
		c.conn = nil
	}
}

// run is the connection lifecycle loop: connect, subscribe, read until the
// connection drops, then retry after the fixed delay for as long as the
// channel stays enabled.
func (c *Channel) run(ctx context.Context) {
	defer c.running.Done()
	defer c.setState(StateDisconnected)

	for first := true; ; first = false {
		if !first {
			metrics.ChannelReconnectsTotal.Inc()
			if !sleepCtx(ctx, c.reconnectDelay) {
				return
			}
		}
		if ctx.Err() != nil {
			return
		}

		c.setState(StateConnecting)
		conn, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Debug().Err(err).Str("url", c.url).Msg("reminder channel connect failed")
			c.setState(StateDisconnected)
			continue
		}

		c.mu.Lock()
		if c.closed || !c.enabled || ctx.Err() != nil {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.state = StateConnected
		c.mu.Unlock()
		log.Debug().Str("topic", c.topic).Msg("reminder channel connected")

		if err := c.subscribe(conn); err != nil {
			log.Debug().Err(err).Msg("reminder subscription failed")
			c.dropConn(conn)
			continue
		}

		c.readLoop(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		c.dropConn(conn)
		log.Debug().Msg("reminder channel disconnected, will retry")
	}
}

// subscribe binds the single logical topic.
func (c *Channel) subscribe(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(subscribeFrame{Subscribe: c.topic})
}

// readLoop parses inbound frames and emits them in arrival order. A
// malformed payload is dropped, never fatal.
func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var r Reminder
		if err := json.Unmarshal(data, &r); err != nil || r.Message == "" {
			log.Debug().Str("payload", string(data)).Msg("dropping malformed reminder payload")
			continue
		}

		select {
		case c.events <- r:
			metrics.RemindersReceivedTotal.Inc()
		case <-ctx.Done():
			return
		}
	}
}

// dropConn detaches and closes a dead connection and marks the channel
// disconnected.
func (c *Channel) dropConn(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.state = StateDisconnected
	c.mu.Unlock()
	_ = conn.Close()
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// sleepCtx waits for d, returning false when ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

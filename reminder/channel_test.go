package reminder

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsServer accepts websocket connections, records the subscribe frame and
// hands each connection to perConn.
type wsServer struct {
	srv      *httptest.Server
	conns    atomic.Int64
	lastSub  atomic.Value // string
	perConn  func(conn *websocket.Conn)
	upgrader websocket.Upgrader
}

func newWSServer(t *testing.T, perConn func(conn *websocket.Conn)) *wsServer {
	t.Helper()
	ws := &wsServer{perConn: perConn}
	ws.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		ws.conns.Add(1)

		var sub subscribeFrame
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		ws.lastSub.Store(sub.Subscribe)

		if ws.perConn != nil {
			ws.perConn(conn)
		}
	}))
	t.Cleanup(ws.srv.Close)
	return ws
}

func (ws *wsServer) url() string {
	return "ws" + strings.TrimPrefix(ws.srv.URL, "http")
}

func sendReminder(t *testing.T, conn *websocket.Conn, r Reminder) {
	t.Helper()
	data, err := json.Marshal(r)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func waitState(t *testing.T, c *Channel, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return c.State() == want },
		2*time.Second, 5*time.Millisecond, "expected state %s", want)
}

func TestSubscribeAndReceiveInOrder(t *testing.T) {
	ready := make(chan *websocket.Conn, 1)
	hold := make(chan struct{})
	ws := newWSServer(t, func(conn *websocket.Conn) {
		ready <- conn
		<-hold
	})
	defer close(hold)

	c := New(ws.url(), WithReconnectDelay(20*time.Millisecond))
	defer c.Close()
	c.SetEnabled(true)

	conn := <-ready
	waitState(t, c, StateConnected)
	assert.Equal(t, "reminders", ws.lastSub.Load())

	sendReminder(t, conn, Reminder{Type: "daily", Message: "first"})
	sendReminder(t, conn, Reminder{Type: "weekly", Message: "second"})

	got := <-c.Events()
	assert.Equal(t, Reminder{Type: "daily", Message: "first"}, got)
	got = <-c.Events()
	assert.Equal(t, Reminder{Type: "weekly", Message: "second"}, got)
}

func TestMalformedPayloadDropped(t *testing.T) {
	ready := make(chan *websocket.Conn, 1)
	hold := make(chan struct{})
	ws := newWSServer(t, func(conn *websocket.Conn) {
		ready <- conn
		<-hold
	})
	defer close(hold)

	c := New(ws.url(), WithReconnectDelay(20*time.Millisecond))
	defer c.Close()
	c.SetEnabled(true)

	conn := <-ready
	waitState(t, c, StateConnected)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"unrelated":true}`)))
	sendReminder(t, conn, Reminder{Type: "custom", Message: "kept"})

	got := <-c.Events()
	assert.Equal(t, "kept", got.Message, "only the well-formed payload is delivered")
	assert.Equal(t, StateConnected, c.State(), "malformed payloads must not kill the channel")
}

func TestDisableTearsDownAndStopsRetrying(t *testing.T) {
	hold := make(chan struct{})
	ws := newWSServer(t, func(conn *websocket.Conn) { <-hold })
	defer close(hold)

	c := New(ws.url(), WithReconnectDelay(20*time.Millisecond))
	defer c.Close()

	c.SetEnabled(true)
	waitState(t, c, StateConnected)
	require.Equal(t, int64(1), ws.conns.Load())

	c.SetEnabled(false)
	assert.Equal(t, StateDisconnected, c.State())

	// Long enough for several reconnect delays: no new connection may show up.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int64(1), ws.conns.Load(), "disabled channel must not reconnect")
}

func TestReenableConnectsExactlyOnce(t *testing.T) {
	hold := make(chan struct{})
	ws := newWSServer(t, func(conn *websocket.Conn) { <-hold })
	defer close(hold)

	c := New(ws.url(), WithReconnectDelay(20*time.Millisecond))
	defer c.Close()

	c.SetEnabled(true)
	waitState(t, c, StateConnected)
	c.SetEnabled(false)
	waitState(t, c, StateDisconnected)

	c.SetEnabled(true)
	waitState(t, c, StateConnected)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(2), ws.conns.Load(), "exactly one new connection after re-enable")
}

func TestReconnectsAfterServerDrop(t *testing.T) {
	var first atomic.Bool
	hold := make(chan struct{})
	ws := newWSServer(t, func(conn *websocket.Conn) {
		if first.CompareAndSwap(false, true) {
			// Drop the first connection immediately to force a reconnect.
			return
		}
		<-hold
	})
	defer close(hold)

	c := New(ws.url(), WithReconnectDelay(20*time.Millisecond))
	defer c.Close()

	c.SetEnabled(true)
	require.Eventually(t, func() bool { return ws.conns.Load() >= 2 },
		2*time.Second, 5*time.Millisecond, "channel should retry after an unexpected disconnect")
	waitState(t, c, StateConnected)
}

func TestCloseReleasesEventStream(t *testing.T) {
	hold := make(chan struct{})
	ws := newWSServer(t, func(conn *websocket.Conn) { <-hold })
	defer close(hold)

	c := New(ws.url(), WithReconnectDelay(20*time.Millisecond))
	c.SetEnabled(true)
	waitState(t, c, StateConnected)

	require.NoError(t, c.Close())
	_, open := <-c.Events()
	assert.False(t, open, "event stream closes on Close")

	// SetEnabled after Close is a no-op.
	c.SetEnabled(true)
	assert.Equal(t, StateDisconnected, c.State())
}

func TestEnableIsIdempotent(t *testing.T) {
	hold := make(chan struct{})
	ws := newWSServer(t, func(conn *websocket.Conn) { <-hold })
	defer close(hold)

	c := New(ws.url(), WithReconnectDelay(20*time.Millisecond))
	defer c.Close()

	c.SetEnabled(true)
	c.SetEnabled(true)
	waitState(t, c, StateConnected)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), ws.conns.Load(), "at most one active subscription")
}

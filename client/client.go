// Package client is the EchoTrace SDK entry point. It wires the credential
// store, session manager, authenticated gateway and reminder channel into
// one client constructed once at startup.
package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/echotrace/echotrace-go/reminder"
	"github.com/echotrace/echotrace-go/session"
	"github.com/echotrace/echotrace-go/store"
	transport "github.com/echotrace/echotrace-go/transport/http"
)

// Client talks to the EchoTrace service. All requests go through the
// authenticated gateway; the session manager keeps the token pair fresh.
type Client struct {
	session *session.Manager
	gateway *transport.Client

	remindersURL   string
	reminderOpts   []reminder.Option
	remindersMu    sync.Mutex
	remindersChan  *reminder.Channel
}

type options struct {
	creds          store.Store
	httpClient     *http.Client
	remindersURL   string
	reconnectDelay time.Duration
	topic          string
	eventBuffer    int
}

// Option configures the client.
type Option func(*options)

// WithStore sets the credential store backend. Defaults to in-memory.
func WithStore(s store.Store) Option {
	return func(o *options) {
		if s != nil {
			o.creds = s
		}
	}
}

// WithHTTPClient sets the HTTP client used for all requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithRemindersURL overrides the websocket endpoint for reminders. By
// default it is derived from the base URL.
func WithRemindersURL(u string) Option {
	return func(o *options) {
		o.remindersURL = u
	}
}

// WithReminderReconnectDelay overrides the reminder channel retry delay.
func WithReminderReconnectDelay(d time.Duration) Option {
	return func(o *options) {
		o.reconnectDelay = d
	}
}

// WithReminderTopic overrides the reminders topic.
func WithReminderTopic(topic string) Option {
	return func(o *options) {
		o.topic = topic
	}
}

// WithReminderEventBuffer sets the reminder event channel capacity.
func WithReminderEventBuffer(n int) Option {
	return func(o *options) {
		o.eventBuffer = n
	}
}

// New creates a client against the API at baseURL, e.g.
// "https://echotrace.example.com/api".
func New(baseURL string, opts ...Option) *Client {
	o := &options{creds: store.NewMemory()}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	var sessOpts []session.Option
	var gwOpts []transport.Option
	if o.httpClient != nil {
		sessOpts = append(sessOpts, session.WithHTTPClient(o.httpClient))
		gwOpts = append(gwOpts, transport.WithClient(o.httpClient))
	}

	sess := session.New(baseURL, o.creds, sessOpts...)

	remindersURL := o.remindersURL
	if remindersURL == "" {
		remindersURL = deriveRemindersURL(baseURL)
	}

	var reminderOpts []reminder.Option
	if o.reconnectDelay > 0 {
		reminderOpts = append(reminderOpts, reminder.WithReconnectDelay(o.reconnectDelay))
	}
	if o.topic != "" {
		reminderOpts = append(reminderOpts, reminder.WithTopic(o.topic))
	}
	if o.eventBuffer > 0 {
		reminderOpts = append(reminderOpts, reminder.WithEventBuffer(o.eventBuffer))
	}

	return &Client{
		session:      sess,
		gateway:      transport.New(baseURL, sess, gwOpts...),
		remindersURL: remindersURL,
		reminderOpts: reminderOpts,
	}
}

// Session exposes the session manager, mainly so the composition root can
// observe state and restore a persisted session.
func (c *Client) Session() *session.Manager {
	return c.session
}

// Gateway exposes the underlying request gateway for endpoints the typed
// surface does not cover.
func (c *Client) Gateway() *transport.Client {
	return c.gateway
}

// Restore adopts a session persisted by a previous run.
func (c *Client) Restore(ctx context.Context) error {
	return c.session.Restore(ctx)
}

// Close releases the reminder channel, if one was started.
func (c *Client) Close() error {
	c.remindersMu.Lock()
	ch := c.remindersChan
	c.remindersChan = nil
	c.remindersMu.Unlock()

	if ch != nil {
		return ch.Close()
	}
	return nil
}

func withCtx(ctx context.Context) func(*transport.RequestOption) {
	return transport.WithContext(ctx)
}

// done closes the response body of calls whose payload the caller does not
// need.
func done(resp *http.Response, err error) error {
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return err
}

// deriveRemindersURL maps the API base URL onto the websocket endpoint the
// service exposes at /reminders, e.g. https://host/api -> wss://host/reminders.
func deriveRemindersURL(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.Path = strings.TrimSuffix(u.Path, "/api")
	u.Path += "/reminders"
	return u.String()
}

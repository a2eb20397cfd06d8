// Package session owns the client's credential lifecycle: login, logout and
// transparent refresh. The manager is the sole writer to the credential
// store; everything else reads through its accessors.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/echotrace/echotrace-go/errors"
	"github.com/echotrace/echotrace-go/log"
	"github.com/echotrace/echotrace-go/metrics"
	"github.com/echotrace/echotrace-go/store"
	"github.com/echotrace/echotrace-go/token"
)

const (
	defaultLoginPath   = "/auth/login"
	defaultRefreshPath = "/auth/refresh"
	defaultTimeout     = 15 * time.Second
)

// Manager is the session state machine. At most one session is active per
// manager; both tokens are replaced or cleared together.
type Manager struct {
	httpClient *http.Client
	loginURL   string
	refreshURL string
	creds      store.Store

	mu    sync.Mutex
	state State
	// epoch moves on every logout/expiry. A refresh result that resolves
	// after the epoch moved belongs to a dead session and is discarded.
	epoch uint64

	sf singleflight.Group
}

// Option configures the manager.
type Option func(*Manager)

// WithHTTPClient overrides the HTTP client used for the auth calls.
func WithHTTPClient(client *http.Client) Option {
	return func(m *Manager) {
		if client != nil {
			m.httpClient = client
		}
	}
}

// WithLoginURL overrides the login endpoint.
func WithLoginURL(url string) Option {
	return func(m *Manager) {
		m.loginURL = url
	}
}

// WithRefreshURL overrides the refresh endpoint.
func WithRefreshURL(url string) Option {
	return func(m *Manager) {
		m.refreshURL = url
	}
}

// New creates a manager against the service at baseURL, persisting
// credentials in creds. The manager starts Anonymous; call Restore to adopt
// a previously stored session.
func New(baseURL string, creds store.Store, opts ...Option) *Manager {
	base := strings.TrimRight(baseURL, "/")
	m := &Manager{
		httpClient: &http.Client{Timeout: defaultTimeout},
		loginURL:   base + defaultLoginPath,
		refreshURL: base + defaultRefreshPath,
		creds:      creds,
		state:      StateAnonymous,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// State returns the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Restore adopts a stored session, transitioning to Authenticated when the
// store holds a usable refresh token. Expired leftovers are cleared.
func (m *Manager) Restore(ctx context.Context) error {
	creds, err := m.creds.Load(ctx)
	if err != nil {
		return err
	}
	if creds.RefreshToken == "" {
		return nil
	}
	if token.IsExpired(creds.RefreshToken) {
		return m.creds.Clear(ctx)
	}

	m.mu.Lock()
	m.state = StateAuthenticated
	m.mu.Unlock()
	return nil
}

// AccessToken returns the stored access token, empty when none is held.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	creds, err := m.creds.Load(ctx)
	if err != nil {
		return "", err
	}
	return creds.AccessToken, nil
}

// RefreshToken returns the stored refresh token, empty when none is held.
func (m *Manager) RefreshToken(ctx context.Context) (string, error) {
	creds, err := m.creds.Load(ctx)
	if err != nil {
		return "", err
	}
	return creds.RefreshToken, nil
}

// Username returns the subject of the stored access token.
func (m *Manager) Username(ctx context.Context) (string, error) {
	access, err := m.AccessToken(ctx)
	if err != nil {
		return "", err
	}
	if access == "" {
		return "", errors.ErrNotAuthenticated
	}
	claims, err := token.Decode(access)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

type authRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	Token        string `json:"token"`
	Username     string `json:"username,omitempty"`
	RefreshToken string `json:"refreshToken"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Login exchanges credentials for a token pair. On success both tokens are
// stored atomically and the session becomes Authenticated. On failure the
// session stays Anonymous and the service-provided message, when present, is
// surfaced verbatim.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	resp, body, err := m.postJSON(ctx, m.loginURL, authRequest{Username: username, Password: password})
	if err != nil {
		return errors.Wrap(err, errors.UnknownCode, "login request failed")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return serviceError(resp.StatusCode, body, "login failed")
	}

	var auth authResponse
	if err := json.Unmarshal(body, &auth); err != nil {
		return errors.Wrap(err, errors.UnknownCode, "malformed login response")
	}
	if auth.Token == "" || auth.RefreshToken == "" {
		return errors.New(errors.UnknownCode, "login response missing tokens")
	}

	if err := m.creds.Save(ctx, store.Credentials{
		AccessToken:  auth.Token,
		RefreshToken: auth.RefreshToken,
	}); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = StateAuthenticated
	m.mu.Unlock()

	log.Debug().Str("username", username).Msg("session authenticated")
	return nil
}

// Logout clears the stored credentials and returns the session to
// Anonymous. No network call is made; calling it repeatedly is harmless.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.state = StateAnonymous
	m.epoch++
	m.mu.Unlock()

	log.Debug().Msg("session logged out")
	return m.creds.Clear(ctx)
}

// Refresh obtains a new token pair using the stored refresh token.
// Concurrent callers share one in-flight network call; at most one refresh
// request is ever on the wire. On failure, or when the refresh token is
// missing or already expired, the session is destroyed and
// errors.ErrSessionExpired is returned.
func (m *Manager) Refresh(ctx context.Context) error {
	_, err, _ := m.sf.Do("refresh", func() (any, error) {
		return nil, m.doRefresh(ctx)
	})
	return err
}

func (m *Manager) doRefresh(ctx context.Context) error {
	creds, err := m.creds.Load(ctx)
	if err != nil {
		return err
	}

	if creds.RefreshToken == "" || token.IsExpired(creds.RefreshToken) {
		metrics.TokenRefreshTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return m.expire(ctx, errors.ErrRefreshFailed)
	}

	m.mu.Lock()
	epoch := m.epoch
	m.state = StateRefreshing
	m.mu.Unlock()

	resp, body, err := m.postJSON(ctx, m.refreshURL, refreshRequest{RefreshToken: creds.RefreshToken})
	if err != nil {
		metrics.TokenRefreshTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return m.expire(ctx, errors.Join(errors.ErrRefreshFailed, err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.TokenRefreshTotal.WithLabelValues(metrics.ResultFailure).Inc()
		log.Warn().Int("status", resp.StatusCode).Msg("refresh rejected by service")
		return m.expire(ctx, errors.ErrRefreshFailed)
	}

	var auth authResponse
	if err := json.Unmarshal(body, &auth); err != nil || auth.Token == "" || auth.RefreshToken == "" {
		metrics.TokenRefreshTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return m.expire(ctx, errors.ErrRefreshFailed)
	}

	m.mu.Lock()
	if m.epoch != epoch {
		// Logged out while the refresh was on the wire; the result belongs
		// to a dead session.
		m.mu.Unlock()
		log.Debug().Msg("discarding stale refresh result")
		return errors.ErrSessionExpired
	}
	m.state = StateAuthenticated
	m.mu.Unlock()

	if err := m.creds.Save(ctx, store.Credentials{
		AccessToken:  auth.Token,
		RefreshToken: auth.RefreshToken,
	}); err != nil {
		return err
	}

	// A logout may have landed while the pair was being written. Re-check
	// and undo the write, so the store is empty after a logout no matter
	// how the two interleave.
	m.mu.Lock()
	stale := m.epoch != epoch
	m.mu.Unlock()
	if stale {
		if err := m.creds.Clear(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to clear credentials")
		}
		log.Debug().Msg("discarding stale refresh result")
		return errors.ErrSessionExpired
	}

	metrics.TokenRefreshTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	log.Debug().Msg("token pair refreshed")
	return nil
}

// expire destroys the session: credentials are cleared, the state returns
// to Anonymous and the epoch moves so in-flight results are discarded.
func (m *Manager) expire(ctx context.Context, cause error) error {
	m.mu.Lock()
	m.state = StateAnonymous
	m.epoch++
	m.mu.Unlock()

	if err := m.creds.Clear(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to clear credentials")
	}
	return errors.Join(errors.ErrSessionExpired, cause)
}

func (m *Manager) postJSON(ctx context.Context, url string, payload any) (*http.Response, []byte, error) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	return resp, body, nil
}

// serviceError surfaces the service-provided message verbatim when present,
// falling back to a generic one.
func serviceError(status int, body []byte, fallback string) *errors.Error {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Message != "" {
		return errors.New(status, "%s", er.Message)
	}
	return errors.New(status, "%s", fallback)
}

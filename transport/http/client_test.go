package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echotrace/echotrace-go/errors"
	"github.com/echotrace/echotrace-go/session"
	"github.com/echotrace/echotrace-go/store"
)

func mintToken(t *testing.T, subject string, ttl time.Duration) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

type fixture struct {
	gateway *Client
	session *session.Manager
	creds   *store.Memory

	refreshCalls atomic.Int64
	apiCalls     atomic.Int64

	// nextPair is returned by the refresh endpoint.
	nextAccess  string
	nextRefresh string

	// handler serves everything that is not /auth/refresh.
	handler http.HandlerFunc
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{creds: store.NewMemory()}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			f.refreshCalls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{
				"token":        f.nextAccess,
				"refreshToken": f.nextRefresh,
			})
			return
		}
		f.apiCalls.Add(1)
		f.handler(w, r)
	}))
	t.Cleanup(srv.Close)

	f.session = session.New(srv.URL, f.creds)
	f.gateway = New(srv.URL, f.session)
	return f
}

func (f *fixture) seed(t *testing.T, access, refresh string) {
	t.Helper()
	require.NoError(t, f.creds.Save(context.Background(), store.Credentials{
		AccessToken:  access,
		RefreshToken: refresh,
	}))
	require.NoError(t, f.session.Restore(context.Background()))
}

func TestBearerHeaderAttached(t *testing.T) {
	f := newFixture(t)
	access := mintToken(t, "alice", time.Hour)
	f.seed(t, access, mintToken(t, "alice", 24*time.Hour))

	f.handler = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+access, r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		w.WriteHeader(http.StatusOK)
	}

	resp, err := f.gateway.Get("/logs")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, int64(0), f.refreshCalls.Load())
}

// Expired access token with a valid refresh token: exactly one refresh call
// before dispatch, and the request goes out with the new credential.
func TestPreDispatchRefresh(t *testing.T) {
	f := newFixture(t)
	f.seed(t, mintToken(t, "alice", -time.Minute), mintToken(t, "alice", 24*time.Hour))
	f.nextAccess = mintToken(t, "alice", time.Hour)
	f.nextRefresh = mintToken(t, "alice", 24*time.Hour)

	f.handler = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+f.nextAccess, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}

	resp, err := f.gateway.Get("/logs")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, int64(1), f.refreshCalls.Load())
	assert.Equal(t, int64(1), f.apiCalls.Load())

	stored, err := f.creds.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.nextAccess, stored.AccessToken)
	assert.Equal(t, f.nextRefresh, stored.RefreshToken)
}

// A missing access token counts as expired: with a valid refresh token at
// hand the pair is renewed before dispatch instead of sending the request
// bare and relying on the 401 retry.
func TestPreDispatchRefreshWithMissingAccessToken(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "", mintToken(t, "alice", 24*time.Hour))
	f.nextAccess = mintToken(t, "alice", time.Hour)
	f.nextRefresh = mintToken(t, "alice", 24*time.Hour)

	f.handler = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+f.nextAccess, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}

	resp, err := f.gateway.Get("/logs")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, int64(1), f.refreshCalls.Load())
	assert.Equal(t, int64(1), f.apiCalls.Load(), "no bare dispatch before the refresh")
}

// A 401 on a fresh-looking token triggers exactly one refresh and exactly
// one re-dispatch of the original request.
func TestRetryOnceOn401(t *testing.T) {
	f := newFixture(t)
	f.seed(t, mintToken(t, "alice", time.Hour), mintToken(t, "alice", 24*time.Hour))
	f.nextAccess = mintToken(t, "alice", time.Hour)
	f.nextRefresh = mintToken(t, "alice", 24*time.Hour)

	f.handler = func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+f.nextAccess {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}

	resp, err := f.gateway.Get("/logs")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, int64(1), f.refreshCalls.Load())
	assert.Equal(t, int64(2), f.apiCalls.Load(), "original dispatch plus one retry")
}

// A second 401 aborts: session destroyed, ErrSessionExpired surfaced.
func TestSecond401DestroysSession(t *testing.T) {
	f := newFixture(t)
	f.seed(t, mintToken(t, "alice", time.Hour), mintToken(t, "alice", 24*time.Hour))
	f.nextAccess = mintToken(t, "alice", time.Hour)
	f.nextRefresh = mintToken(t, "alice", 24*time.Hour)

	f.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}

	_, err := f.gateway.Get("/logs")
	assert.ErrorIs(t, err, errors.ErrSessionExpired)
	assert.Equal(t, int64(1), f.refreshCalls.Load())
	assert.Equal(t, int64(2), f.apiCalls.Load())
	assert.Equal(t, session.StateAnonymous, f.session.State())

	stored, loadErr := f.creds.Load(context.Background())
	require.NoError(t, loadErr)
	assert.True(t, stored.Empty())
}

// WithoutRedirect: the 401 reaches the caller verbatim, no refresh, no
// logout. Password change relies on this.
func TestNoRedirectSurfacesRaw401(t *testing.T) {
	f := newFixture(t)
	access := mintToken(t, "alice", time.Hour)
	f.seed(t, access, mintToken(t, "alice", 24*time.Hour))

	f.handler = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Current password is incorrect"})
	}

	_, err := f.gateway.Post("/users/password",
		map[string]string{"currentPassword": "bad", "newPassword": "new"},
		WithoutRedirect())

	require.Error(t, err)
	assert.Equal(t, 401, errors.Code(err))
	assert.Equal(t, "Current password is incorrect", errors.Message(err))
	assert.False(t, errors.IsSessionExpired(err))

	assert.Equal(t, int64(0), f.refreshCalls.Load())
	assert.Equal(t, session.StateAuthenticated, f.session.State())
}

// Auth routes are dispatched bare: no bearer header, no retry.
func TestAuthRoutesBypassAuth(t *testing.T) {
	f := newFixture(t)
	f.seed(t, mintToken(t, "alice", time.Hour), mintToken(t, "alice", 24*time.Hour))

	f.handler = func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
	}

	_, err := f.gateway.Post("/auth/register", map[string]string{"username": "bob"})
	require.Error(t, err)
	assert.Equal(t, 401, errors.Code(err))
	assert.Equal(t, int64(0), f.refreshCalls.Load())
	assert.Equal(t, int64(1), f.apiCalls.Load(), "auth routes are never retried")
}

// After logout the request is sent without an Authorization header.
func TestNoHeaderAfterLogout(t *testing.T) {
	f := newFixture(t)
	f.seed(t, mintToken(t, "alice", time.Hour), mintToken(t, "alice", 24*time.Hour))
	require.NoError(t, f.session.Logout(context.Background()))

	f.handler = func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}

	resp, err := f.gateway.Get("/logs")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, int64(0), f.refreshCalls.Load())
}

func TestResponseDecoding(t *testing.T) {
	f := newFixture(t)
	f.seed(t, mintToken(t, "alice", time.Hour), mintToken(t, "alice", 24*time.Hour))

	f.handler = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("size"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "log-1"})
	}

	var out struct {
		ID string `json:"id"`
	}
	_, err := f.gateway.Get("/logs",
		WithQuery(map[string]string{"size": "10"}),
		WithResponse(&out))
	require.NoError(t, err)
	assert.Equal(t, "log-1", out.ID)
}

// Package http is the authenticated request gateway. Every outbound call
// passes through it: it keeps the access token fresh before dispatch,
// attaches the bearer credential, and recovers exactly once from a 401 by
// refreshing and re-dispatching the original request.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/echotrace/echotrace-go/errors"
	"github.com/echotrace/echotrace-go/log"
	"github.com/echotrace/echotrace-go/metrics"
	"github.com/echotrace/echotrace-go/session"
	"github.com/echotrace/echotrace-go/token"
)

const (
	// Common Content-Types
	ContentTypeJSON = "application/json"
	ContentTypeForm = "application/x-www-form-urlencoded"
	ContentTypeText = "text/plain"

	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	headerRequestID     = "X-Request-Id"
	bearerPrefix        = "Bearer "

	// Routes under authPrefix never get a bearer credential and never
	// trigger refresh-and-retry; retrying the refresh endpoint on 401 would
	// recurse forever.
	authPrefix = "/auth/"

	defaultTimeout = 30 * time.Second
)

// Client dispatches requests against the service. It is constructed once at
// startup and passed to callers; there is no ambient module-level instance.
type Client struct {
	client  *http.Client
	baseURL string
	session *session.Manager
}

// Option configures the gateway.
type Option func(*Client)

// WithClient sets a custom HTTP client.
func WithClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// New creates a gateway against the service at baseURL, using sess to keep
// the credential fresh.
func New(baseURL string, sess *session.Manager, opts ...Option) *Client {
	c := &Client{
		client:  &http.Client{Timeout: defaultTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		session: sess,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Request sends an HTTP request with the specified method, service path and
// body. A nil body sends no payload, an io.Reader body is sent as-is (pair
// it with WithContentType), anything else is JSON-encoded.
func (cli *Client) Request(method, path string, body any, opts ...func(*RequestOption)) (*http.Response, error) {
	opt := newRequestOption()
	for _, o := range opts {
		o(opt)
	}
	ctx := opt.ctx

	payload, err := cli.encodeBody(body, opt)
	if err != nil {
		return nil, err
	}

	url := cli.baseURL + path
	if len(opt.query) > 0 {
		url += "?" + opt.query.Encode()
	}

	authRoute := strings.HasPrefix(path, authPrefix)

	// Pre-dispatch: refresh an already-expired access token before it hits
	// the wire, so the common case never sees a 401 at all.
	if !authRoute {
		if err := cli.ensureFreshToken(ctx); err != nil {
			return nil, err
		}
	}

	requestID := uuid.NewString()

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		cli.setHeaders(req, opt, requestID)

		if !authRoute {
			if access, err := cli.session.AccessToken(ctx); err == nil && access != "" {
				req.Header.Set(headerAuthorization, bearerPrefix+access)
			}
		}

		resp, err := cli.client.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, errors.UnknownCode, "%s %s failed", method, path)
		}
		metrics.RequestsTotal.WithLabelValues(method, resp.Status[:3]).Inc()

		// Post-response: one refresh-and-retry per logical request, never
		// for auth routes, never when the caller opted out.
		if resp.StatusCode == http.StatusUnauthorized && !authRoute && !opt.noRedirect {
			drain(resp)

			if attempt > 0 {
				// Refreshed credential was rejected too; the session is
				// beyond recovery.
				_ = cli.session.Logout(ctx)
				return nil, errors.ErrSessionExpired
			}

			if err := cli.session.Refresh(ctx); err != nil {
				return nil, err
			}

			metrics.RetriesTotal.Inc()
			log.Debug().Str("request_id", requestID).Str("path", path).Msg("retrying request with refreshed credential")
			continue
		}

		if resp.StatusCode >= 400 {
			return resp, decodeError(resp)
		}
		return cli.decodeResponse(resp, opt.response)
	}
}

// ensureFreshToken refreshes ahead of dispatch when the access token is
// expired, missing or undecodable and a refresh token is available. Without
// a refresh token the request goes out unauthenticated and the service
// decides.
func (cli *Client) ensureFreshToken(ctx context.Context) error {
	access, err := cli.session.AccessToken(ctx)
	if err != nil {
		return err
	}
	// A missing access token counts as expired like a malformed one does.
	if !token.IsExpired(access) {
		return nil
	}

	refresh, err := cli.session.RefreshToken(ctx)
	if err != nil {
		return err
	}
	if refresh == "" {
		return nil
	}

	return cli.session.Refresh(ctx)
}

func (cli *Client) encodeBody(body any, opt *RequestOption) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case io.Reader:
		// Buffered so the single 401 retry can replay it.
		return io.ReadAll(v)
	default:
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(v); err != nil {
			return nil, err
		}
		opt.contentType = ContentTypeJSON
		return buf.Bytes(), nil
	}
}

func (cli *Client) setHeaders(req *http.Request, opt *RequestOption, requestID string) {
	if opt.contentType != "" {
		req.Header.Set(headerContentType, opt.contentType)
	}
	for k, v := range opt.header {
		req.Header.Set(k, v)
	}
	req.Header.Set(headerRequestID, requestID)
}

func (cli *Client) decodeResponse(resp *http.Response, dest any) (*http.Response, error) {
	if dest == nil {
		return resp, nil
	}

	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return nil, errors.Wrap(err, errors.UnknownCode, "malformed response body")
	}
	return resp, nil
}

// decodeError turns a non-2xx response into a structured error, surfacing
// the service-provided message verbatim when the body carries one.
func decodeError(resp *http.Response) error {
	defer resp.Body.Close()

	var payload struct {
		Message string `json:"message"`
	}
	if body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)); err == nil {
		if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
			return errors.New(resp.StatusCode, "%s", payload.Message)
		}
	}
	return errors.New(resp.StatusCode, "%s", http.StatusText(resp.StatusCode))
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
}

// Convenience methods for common HTTP operations

// Get performs a GET request.
func (cli *Client) Get(path string, opts ...func(*RequestOption)) (*http.Response, error) {
	return cli.Request(http.MethodGet, path, nil, opts...)
}

// Post performs a POST request.
func (cli *Client) Post(path string, body any, opts ...func(*RequestOption)) (*http.Response, error) {
	return cli.Request(http.MethodPost, path, body, opts...)
}

// Put performs a PUT request.
func (cli *Client) Put(path string, body any, opts ...func(*RequestOption)) (*http.Response, error) {
	return cli.Request(http.MethodPut, path, body, opts...)
}

// Patch performs a PATCH request.
func (cli *Client) Patch(path string, body any, opts ...func(*RequestOption)) (*http.Response, error) {
	return cli.Request(http.MethodPatch, path, body, opts...)
}

// Delete performs a DELETE request.
func (cli *Client) Delete(path string, opts ...func(*RequestOption)) (*http.Response, error) {
	return cli.Request(http.MethodDelete, path, nil, opts...)
}

package http

import (
	"context"
	"maps"
	"net/url"
)

// RequestOption holds options for individual requests.
type RequestOption struct {
	ctx         context.Context
	header      map[string]string
	query       url.Values
	response    any
	contentType string
	noRedirect  bool
}

func newRequestOption() *RequestOption {
	return &RequestOption{
		ctx:    context.Background(),
		header: make(map[string]string, 4),
		query:  make(url.Values),
	}
}

// WithContext sets a custom context for the request.
func WithContext(ctx context.Context) func(*RequestOption) {
	return func(opt *RequestOption) {
		if ctx != nil {
			opt.ctx = ctx
		}
	}
}

// WithHeader sets multiple headers for the request.
func WithHeader(header map[string]string) func(*RequestOption) {
	return func(opt *RequestOption) {
		maps.Copy(opt.header, header)
	}
}

// WithQuery adds query parameters to the request URL.
func WithQuery(params map[string]string) func(*RequestOption) {
	return func(opt *RequestOption) {
		for k, v := range params {
			opt.query.Set(k, v)
		}
	}
}

// WithResponse sets the target object the response body is unmarshaled into.
func WithResponse(response any) func(*RequestOption) {
	return func(opt *RequestOption) {
		opt.response = response
	}
}

// WithContentType sets the request Content-Type. Needed when the body is a
// raw reader, e.g. a multipart form.
func WithContentType(contentType string) func(*RequestOption) {
	return func(opt *RequestOption) {
		opt.contentType = contentType
	}
}

// WithoutRedirect opts the request out of the 401 refresh-retry-logout
// path. Used by security-sensitive flows such as password change, where a
// 401 means "wrong current password" rather than "session expired" and must
// reach the caller untouched.
func WithoutRedirect() func(*RequestOption) {
	return func(opt *RequestOption) {
		opt.noRedirect = true
	}
}

package errors

import (
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(401, "unauthorized access")
	if err.Code != 401 {
		t.Errorf("expected code 401, got %d", err.Code)
	}
	if err.Message != "unauthorized access" {
		t.Errorf("expected message 'unauthorized access', got %s", err.Message)
	}
}

func TestNewFormatted(t *testing.T) {
	err := New(404, "log %s not found", "abc123")
	if err.Message != "log abc123 not found" {
		t.Errorf("message not formatted: %s", err.Message)
	}
}

func TestWithCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := New(500, "request failed").WithCause(cause)

	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
	if Unwrap(err) != cause {
		t.Error("Unwrap did not return the cause")
	}

	t.Logf("error chain: %s", err.Error())
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, 500, "ignored") != nil {
		t.Error("Wrap(nil, ...) should return nil")
	}
}

func TestFromError(t *testing.T) {
	stdErr := errors.New("plain error")
	converted := FromError(stdErr)
	if converted.Code != UnknownCode {
		t.Errorf("expected code %d, got %d", UnknownCode, converted.Code)
	}

	existing := New(404, "not found")
	if FromError(existing) != existing {
		t.Error("FromError should return the same instance for *Error")
	}
}

func TestCode(t *testing.T) {
	if got := Code(New(409, "conflict")); got != 409 {
		t.Errorf("expected 409, got %d", got)
	}
	if got := Code(errors.New("plain")); got != UnknownCode {
		t.Errorf("expected %d, got %d", UnknownCode, got)
	}
	if got := Code(nil); got != 0 {
		t.Errorf("expected 0 for nil, got %d", got)
	}
}

func TestIsSessionExpired(t *testing.T) {
	wrapped := Wrap(ErrSessionExpired, 401, "please log in again")
	if !IsSessionExpired(wrapped) {
		t.Error("wrapped sentinel should still match")
	}
	if IsSessionExpired(errors.New("other")) {
		t.Error("unrelated error should not match")
	}
}

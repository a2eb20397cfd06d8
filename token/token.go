// Package token decodes JWT payloads on the client side. Tokens are parsed
// without signature validation: verifying signatures is the service's
// responsibility, the client only needs the subject and expiry claims to
// decide when to refresh.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/echotrace/echotrace-go/errors"
)

// Claims holds the fields the client reads from a token payload.
type Claims struct {
	// Subject is the username tied to the token.
	Subject string
	// ExpiresAt is the expiry instant. Zero when the token carries no exp
	// claim.
	ExpiresAt time.Time
}

var parser = jwt.NewParser()

// Decode parses raw without validating its signature and returns the claims
// the client cares about. Returns errors.ErrTokenMalformed when raw is empty
// or cannot be decoded.
func Decode(raw string) (*Claims, error) {
	if raw == "" {
		return nil, errors.ErrTokenMalformed
	}

	registered := &jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(raw, registered); err != nil {
		return nil, errors.Join(errors.ErrTokenMalformed, err)
	}

	claims := &Claims{Subject: registered.Subject}
	if registered.ExpiresAt != nil {
		claims.ExpiresAt = registered.ExpiresAt.Time
	}
	return claims, nil
}

// IsExpired reports whether raw is expired right now. See IsExpiredAt.
func IsExpired(raw string) bool {
	return IsExpiredAt(raw, time.Now())
}

// IsExpiredAt reports whether raw is expired at the given instant. Malformed
// or undecodable tokens and tokens without an exp claim report true, failing
// safe toward re-authentication. Returns false only when decoding succeeds
// and at is strictly before the expiry instant.
func IsExpiredAt(raw string, at time.Time) bool {
	claims, err := Decode(raw)
	if err != nil {
		return true
	}
	if claims.ExpiresAt.IsZero() {
		return true
	}
	return !at.Before(claims.ExpiresAt)
}

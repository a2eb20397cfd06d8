// Package store defines durable storage for the client's credential pair.
// The session manager is the only writer; every other component reads
// through session accessors.
package store

import "context"

// Credentials is the access/refresh token pair. The two tokens are always
// stored and cleared together.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Empty reports whether no credentials are held.
func (c Credentials) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// Store persists the credential pair. Implementations must apply Save and
// Clear atomically with respect to Load: a reader never observes the access
// token of one pair alongside the refresh token of another.
type Store interface {
	Load(ctx context.Context) (Credentials, error)
	Save(ctx context.Context, creds Credentials) error
	Clear(ctx context.Context) error
}

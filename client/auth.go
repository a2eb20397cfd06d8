package client

import (
	"context"
)

// Login authenticates and stores the returned token pair.
func (c *Client) Login(ctx context.Context, username, password string) error {
	return c.session.Login(ctx, username, password)
}

// Register creates a new account. The caller still needs to Login
// afterwards.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	return done(c.gateway.Post("/auth/register", req, withCtx(ctx)))
}

// Logout destroys the session and silences the reminder channel.
func (c *Client) Logout(ctx context.Context) error {
	c.remindersMu.Lock()
	ch := c.remindersChan
	c.remindersMu.Unlock()
	if ch != nil {
		ch.SetEnabled(false)
	}

	return c.session.Logout(ctx)
}

package client

import (
	"context"

	transport "github.com/echotrace/echotrace-go/transport/http"
)

// MyProfile fetches the authenticated user's profile.
func (c *Client) MyProfile(ctx context.Context) (*Profile, error) {
	var profile Profile
	resp, err := c.gateway.Get("/users/profile", withCtx(ctx), transport.WithResponse(&profile))
	if err != nil {
		return nil, done(resp, err)
	}
	return &profile, nil
}

// UpdateProfile patches the profile fields set in update and returns the
// resulting profile.
func (c *Client) UpdateProfile(ctx context.Context, update Profile) (*Profile, error) {
	var profile Profile
	resp, err := c.gateway.Patch("/users/profile", update, withCtx(ctx), transport.WithResponse(&profile))
	if err != nil {
		return nil, done(resp, err)
	}
	return &profile, nil
}

// UpdatePassword changes the account password. The call opts out of the
// refresh-retry path: a 401 here means the current password is wrong and is
// surfaced to the caller rather than treated as an expired session.
func (c *Client) UpdatePassword(ctx context.Context, currentPassword, newPassword string) error {
	body := map[string]string{
		"currentPassword": currentPassword,
		"newPassword":     newPassword,
	}
	return done(c.gateway.Post("/users/password", body, withCtx(ctx), transport.WithoutRedirect()))
}

// SetRemindersEnabled persists the reminders preference and applies it to
// the running reminder channel, if any.
func (c *Client) SetRemindersEnabled(ctx context.Context, enabled bool) error {
	body := map[string]bool{"enabled": enabled}
	if err := done(c.gateway.Put("/users/notifications", body, withCtx(ctx))); err != nil {
		return err
	}

	c.remindersMu.Lock()
	ch := c.remindersChan
	c.remindersMu.Unlock()
	if ch != nil {
		ch.SetEnabled(enabled)
	}
	return nil
}

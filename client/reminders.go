package client

import (
	"context"

	"github.com/echotrace/echotrace-go/log"
	"github.com/echotrace/echotrace-go/reminder"
)

// Reminders starts the reminder channel, seeding the enabled gate from the
// user's stored preference, and returns it. Subsequent calls return the
// same channel. The caller consumes events from Channel.Events(); the
// channel reconnects on its own for as long as the preference stays on.
func (c *Client) Reminders(ctx context.Context) (*reminder.Channel, error) {
	c.remindersMu.Lock()
	if c.remindersChan != nil {
		ch := c.remindersChan
		c.remindersMu.Unlock()
		return ch, nil
	}
	ch := reminder.New(c.remindersURL, c.reminderOpts...)
	c.remindersChan = ch
	c.remindersMu.Unlock()

	profile, err := c.MyProfile(ctx)
	if err != nil {
		// Preference unknown: leave the channel disabled rather than guess.
		log.Warn().Err(err).Msg("could not fetch reminders preference")
		return ch, err
	}

	ch.SetEnabled(profile.RemindersEnabled)
	return ch, nil
}

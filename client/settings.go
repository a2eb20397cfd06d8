package client

import (
	"context"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/echotrace/echotrace-go/config"
	"github.com/echotrace/echotrace-go/errors"
	"github.com/echotrace/echotrace-go/log"
	"github.com/echotrace/echotrace-go/store"
	redisstore "github.com/echotrace/echotrace-go/store/redis"
	sqlitestore "github.com/echotrace/echotrace-go/store/sqlite"
)

// FromSettings builds a client from a loaded configuration: it opens the
// configured credential store, applies the log settings and wires the
// reminder channel options.
func FromSettings(ctx context.Context, cfg *config.Settings, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New(400, "nil settings")
	}

	applyLogSettings(cfg.Log)

	creds, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	all := []Option{WithStore(creds)}
	if cfg.Timeout > 0 {
		all = append(all, WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	if cfg.Reminders.URL != "" {
		all = append(all, WithRemindersURL(cfg.Reminders.URL))
	}
	if cfg.Reminders.Topic != "" {
		all = append(all, WithReminderTopic(cfg.Reminders.Topic))
	}
	if cfg.Reminders.ReconnectDelay > 0 {
		all = append(all, WithReminderReconnectDelay(cfg.Reminders.ReconnectDelay))
	}
	if cfg.Reminders.EventBuffer > 0 {
		all = append(all, WithReminderEventBuffer(cfg.Reminders.EventBuffer))
	}
	all = append(all, opts...)

	return New(cfg.BaseURL, all...), nil
}

func openStore(ctx context.Context, cfg config.StoreSettings) (store.Store, error) {
	switch cfg.Backend {
	case config.StoreSQLite:
		return sqlitestore.New(cfg.Path)
	case config.StoreRedis:
		var redisOpts []redisstore.Option
		if cfg.Redis.Key != "" {
			redisOpts = append(redisOpts, redisstore.WithKey(cfg.Redis.Key))
		}
		return redisstore.New(ctx, &redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, redisOpts...)
	case config.StoreMemory, "":
		return store.NewMemory(), nil
	default:
		return nil, errors.New(400, "unknown store backend: %s", cfg.Backend)
	}
}

func applyLogSettings(cfg config.LogSettings) {
	if cfg.Level != "" {
		if level, err := zerolog.ParseLevel(cfg.Level); err == nil {
			log.SetGlobalLevel(level)
		}
	}
	if cfg.File != "" {
		log.SetGlobalLogger(log.NewFile(log.FileConfig{Filename: cfg.File}))
	}
}

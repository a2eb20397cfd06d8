package config

import "time"

// Credential store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Settings is the full EchoTrace client configuration.
type Settings struct {
	// BaseURL is the API root, e.g. "https://echotrace.example.com/api".
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"min=0"`

	Reminders ReminderSettings `mapstructure:"reminders"`
	Store     StoreSettings    `mapstructure:"store"`
	Log       LogSettings      `mapstructure:"log"`
	Metrics   MetricsSettings  `mapstructure:"metrics"`
}

// MetricsSettings configures the Prometheus endpoint of the listener
// daemon. An empty Addr disables it.
type MetricsSettings struct {
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// ReminderSettings configures the reminder channel.
type ReminderSettings struct {
	// URL overrides the websocket endpoint. When empty it is derived from
	// BaseURL.
	URL            string        `mapstructure:"url" validate:"omitempty,uri"`
	Topic          string        `mapstructure:"topic" validate:"required"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" validate:"min=0"`
	EventBuffer    int           `mapstructure:"event_buffer" validate:"min=0"`
}

// StoreSettings selects and configures the credential store backend.
type StoreSettings struct {
	Backend string `mapstructure:"backend" validate:"oneof=memory sqlite redis"`

	// Path is the database file for the sqlite backend.
	Path string `mapstructure:"path" validate:"required_if=Backend sqlite"`

	Redis RedisSettings `mapstructure:"redis"`
}

// RedisSettings configures the redis credential store.
type RedisSettings struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0"`
	Key      string `mapstructure:"key"`
}

// LogSettings configures the SDK logger.
type LogSettings struct {
	Level string `mapstructure:"level" validate:"oneof=trace debug info warn error fatal"`
	// File enables rotating file output when set.
	File string `mapstructure:"file"`
}

// Defaults returns the values applied for keys absent from the file.
func (Settings) Defaults() map[string]any {
	return map[string]any{
		"timeout":                   "30s",
		"reminders.topic":           "reminders",
		"reminders.reconnect_delay": "5s",
		"reminders.event_buffer":    16,
		"store.backend":             StoreMemory,
		"store.redis.addr":          "localhost:6379",
		"store.redis.key":           "echotrace:credentials",
		"log.level":                 "info",
	}
}

package config

import (
	"sync"

	"github.com/spf13/viper"

	"github.com/echotrace/echotrace-go/log"
)

// Config manages the client configuration file
type Config struct {
	mu     sync.RWMutex // protects concurrent access to target
	viper  *viper.Viper // viper instance for configuration management
	target any          // target is the destination where the configuration will be unmarshalled
	loader Loader       // loader is responsible for loading configuration
}

// New creates a new Config instance with the given options
// If no loader is provided, a default FileLoader will be created with:
//   - filename: "echotrace.yaml"
//   - paths: [".", "$HOME/.echotrace"]
func New(target any, opts ...Option) *Config {
	c := &Config{
		viper:  viper.New(),
		target: target,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.loader == nil {
		loader := NewFileLoader("echotrace.yaml", []string{".", "$HOME/.echotrace"}, c.viper)
		if d, ok := c.target.(interface{ Defaults() map[string]any }); ok {
			loader.defaults = d.Defaults()
		}
		c.loader = loader
	}

	return c
}

// Load reads the configuration using the configured loader
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.loader.Load(c.target)
}

// Reload reloads the configuration from the loader
func (c *Config) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.loader.Load(c.target)
}

// Watch sets up automatic configuration watching
func (c *Config) Watch() error {
	return c.loader.Watch(func() {
		log.Info().Msg("config change detected")

		if err := c.Reload(); err != nil {
			log.Error().Err(err).Msg("failed to reload config after change")
			return
		}

		log.Info().Msg("config reloaded successfully")
	})
}

// Viper returns the underlying viper instance
func (c *Config) Viper() *viper.Viper {
	return c.viper
}

package config

import (
	"github.com/spf13/viper"
)

// Option is a function that configures a Config
type Option func(*Config)

// WithViper sets a custom viper instance
func WithViper(v *viper.Viper) Option {
	return func(c *Config) {
		c.viper = v
	}
}

// WithLoader sets the configuration loader
func WithLoader(loader Loader) Option {
	return func(c *Config) {
		c.loader = loader
	}
}

// WithFile sets the configuration file name and search paths, replacing the
// default loader
func WithFile(name string, paths ...string) Option {
	return func(c *Config) {
		if len(paths) == 0 {
			paths = []string{"."}
		}
		loader := NewFileLoader(name, paths, c.viper)
		if d, ok := c.target.(interface{ Defaults() map[string]any }); ok {
			loader.defaults = d.Defaults()
		}
		c.loader = loader
	}
}

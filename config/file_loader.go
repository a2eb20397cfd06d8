package config

import (
	"path"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/echotrace/echotrace-go/errors"
)

// FileLoader loads configuration from file
type FileLoader struct {
	viper    *viper.Viper
	name     string
	paths    []string
	defaults map[string]any
}

// NewFileLoader creates a new file loader
func NewFileLoader(name string, paths []string, v *viper.Viper) *FileLoader {
	// Determine config type from file extension
	extension := path.Ext(name)
	configType := strings.TrimPrefix(extension, ".")

	for _, configPath := range paths {
		v.AddConfigPath(configPath)
	}

	v.SetConfigName(strings.TrimSuffix(name, extension))
	v.SetConfigType(configType)

	v.SetEnvPrefix("echotrace")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &FileLoader{
		viper: v,
		paths: paths,
		name:  name,
	}
}

// Load implements Loader interface
func (l *FileLoader) Load(target any) error {
	// Register defaults BEFORE reading so fields absent from the file keep
	// their default values
	for key, value := range l.defaults {
		l.viper.SetDefault(key, value)
	}

	if err := l.viper.ReadInConfig(); err != nil {
		return errors.New(404, "config file not found: %v", err)
	}

	if err := l.viper.Unmarshal(target); err != nil {
		return errors.New(500, "config parse error: %v", err)
	}

	if err := validateStruct(target); err != nil {
		return err
	}

	return nil
}

// Watch implements Loader interface
func (l *FileLoader) Watch(callback func()) error {
	l.viper.OnConfigChange(func(e fsnotify.Event) {
		if callback != nil {
			callback()
		}
	})

	l.viper.WatchConfig()
	return nil
}

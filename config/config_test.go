package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	name := filepath.Join(dir, "echotrace.yaml")
	if err := os.WriteFile(name, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return name
}

func TestLoadSettings(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
base_url: https://echotrace.example.com/api
store:
  backend: sqlite
  path: /tmp/echotrace.db
`)

	settings := new(Settings)
	c := New(settings, WithFile("echotrace.yaml", dir))

	if err := c.Load(); err != nil {
		t.Fatal(err)
	}

	if settings.BaseURL != "https://echotrace.example.com/api" {
		t.Errorf("unexpected base_url: %s", settings.BaseURL)
	}
	if settings.Store.Backend != StoreSQLite {
		t.Errorf("unexpected store backend: %s", settings.Store.Backend)
	}

	// Fields absent from the file keep their defaults.
	if settings.Reminders.Topic != "reminders" {
		t.Errorf("unexpected topic: %s", settings.Reminders.Topic)
	}
	if settings.Reminders.ReconnectDelay != 5*time.Second {
		t.Errorf("unexpected reconnect delay: %s", settings.Reminders.ReconnectDelay)
	}
	if settings.Timeout != 30*time.Second {
		t.Errorf("unexpected timeout: %s", settings.Timeout)
	}
	if settings.Log.Level != "info" {
		t.Errorf("unexpected log level: %s", settings.Log.Level)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
base_url: https://echotrace.example.com/api
store:
  backend: carrier-pigeon
`)

	c := New(new(Settings), WithFile("echotrace.yaml", dir))

	err := c.Load()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "config validation failed") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadRequiresBaseURL(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
store:
  backend: memory
`)

	c := New(new(Settings), WithFile("echotrace.yaml", dir))

	if err := c.Load(); err == nil {
		t.Fatal("expected validation error for missing base_url")
	}
}

func TestLoadMissingFile(t *testing.T) {
	c := New(new(Settings), WithFile("echotrace.yaml", t.TempDir()))

	if err := c.Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

// TestEnvOverride tests that viper's AutomaticEnv works
func TestEnvOverride(t *testing.T) {
	t.Setenv("ECHOTRACE_TIMEOUT", "45s")

	dir := t.TempDir()
	writeConfig(t, dir, `
base_url: https://echotrace.example.com/api
`)

	settings := new(Settings)
	c := New(settings, WithFile("echotrace.yaml", dir))

	if err := c.Load(); err != nil {
		t.Fatal(err)
	}

	if settings.Timeout != 45*time.Second {
		t.Errorf("env override not applied, timeout=%s", settings.Timeout)
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	name := writeConfig(t, dir, `
base_url: https://echotrace.example.com/api
log:
  level: info
`)

	settings := new(Settings)
	c := New(settings, WithFile("echotrace.yaml", dir))

	if err := c.Load(); err != nil {
		t.Fatal(err)
	}
	if err := c.Watch(); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(name, []byte(`
base_url: https://echotrace.example.com/api
log:
  level: debug
`), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if settings.Log.Level == "debug" {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("config not reloaded, log level still %q", settings.Log.Level)
}

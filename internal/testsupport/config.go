package testsupport

import (
	"path/filepath"
	"testing"

	"fieldline/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Portal.SessionKey = "test-session-key"
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithSessionKey overrides the session encryption key on the test config.
func WithSessionKey(key string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Portal.SessionKey = key
	}
}

// WithAutomationURL points the automation client at a test server.
func WithAutomationURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Portal.AutomationURL = url
	}
}

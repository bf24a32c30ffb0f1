package config

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrNotInitialized is returned by Current before Initialize has succeeded.
var ErrNotInitialized = errors.New("configuration not initialized")

var (
	current atomic.Pointer[Config]
	initMu  sync.Mutex
)

// Initialize loads the process configuration from path (empty means defaults
// plus KAIRO_* overrides) unless one is already installed. A failed attempt
// leaves nothing installed, so Initialize may be retried.
func Initialize(path string) error {
	initMu.Lock()
	defer initMu.Unlock()

	if current.Load() != nil {
		return nil
	}
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return err
	}
	current.Store(cfg)
	return nil
}

// GetConfig returns the installed configuration or nil. Callers must treat
// the result as read-only; copy it before applying command-line overrides.
func GetConfig() *Config {
	return current.Load()
}

// Current is GetConfig with an error instead of nil.
func Current() (*Config, error) {
	cfg := current.Load()
	if cfg == nil {
		return nil, ErrNotInitialized
	}
	return cfg, nil
}

// SetConfig installs cfg unconditionally. Tests use it to stage a config.
func SetConfig(cfg *Config) {
	current.Store(cfg)
}

// ReloadConfig loads path again and installs the result only when it is valid.
func ReloadConfig(path string) error {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}
	current.Store(cfg)
	return nil
}

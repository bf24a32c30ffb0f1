package checker

import (
	"errors"
	"fmt"
	"time"
)

// FailureMode decides what an inconclusive external verification means.
type FailureMode string

const (
	// FailOpen records inconclusive verifications as diagnostics and leaves the
	// action untouched. This is the default.
	FailOpen FailureMode = "fail-open"

	// FailClosed turns an inconclusive verification of a critical rule into a
	// violation, so the check blocks. Non-critical rules stay inconclusive.
	FailClosed FailureMode = "fail-closed"
)

// ErrInvalidConfig indicates a checker configuration that cannot be used.
var ErrInvalidConfig = errors.New("invalid checker config")

// Config contains the checker settings.
type Config struct {
	// ExternalTimeout bounds each external verification unless the rule sets its own.
	// Default: 2s.
	ExternalTimeout time.Duration

	// VerifierFailureMode selects fail-open or fail-closed handling of
	// inconclusive external rules.
	// Default: FailOpen.
	VerifierFailureMode FailureMode

	// MaxInputBytes rejects a check whose user input or AI output exceeds this size.
	// Zero disables the limit.
	// Default: 1 MiB.
	MaxInputBytes int
}

// DefaultConfig returns the default checker configuration.
func DefaultConfig() *Config {
	return &Config{
		ExternalTimeout:     2 * time.Second,
		VerifierFailureMode: FailOpen,
		MaxInputBytes:       1 << 20,
	}
}

// Validate validates the checker configuration.
func (c *Config) Validate() error {
	switch c.VerifierFailureMode {
	case FailOpen, FailClosed:
	default:
		return fmt.Errorf("%w: invalid verifier failure mode %q", ErrInvalidConfig, c.VerifierFailureMode)
	}

	if c.ExternalTimeout <= 0 {
		return fmt.Errorf("%w: external timeout must be positive", ErrInvalidConfig)
	}
	if c.MaxInputBytes < 0 {
		return fmt.Errorf("%w: max input bytes cannot be negative", ErrInvalidConfig)
	}

	return nil
}

// WithExternalTimeout sets the default external verification timeout.
func (c *Config) WithExternalTimeout(timeout time.Duration) *Config {
	c.ExternalTimeout = timeout
	return c
}

// WithVerifierFailureMode sets the verifier failure mode.
func (c *Config) WithVerifierFailureMode(mode FailureMode) *Config {
	c.VerifierFailureMode = mode
	return c
}

// WithMaxInputBytes sets the per-text size limit.
func (c *Config) WithMaxInputBytes(n int) *Config {
	c.MaxInputBytes = n
	return c
}

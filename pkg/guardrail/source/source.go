// Package source loads rule definitions from the built-in set, from files on
// disk or from a Git repository.
package source

import (
	"context"
	"sync"

	"kairo-hq/guardrails/pkg/guardrail"
	"kairo-hq/guardrails/pkg/guardrail/builtin"
)

// Source produces rule definitions in declaration order. Load is called for the
// initial load and again on every reload.
type Source interface {
	Load(ctx context.Context) ([]guardrail.Rule, error)

	// Name identifies the source in logs and metrics ("builtin", "file", "git", "memory").
	Name() string
}

// BuiltinSource serves the embedded default rule set.
type BuiltinSource struct{}

// NewBuiltinSource creates a built-in source.
func NewBuiltinSource() *BuiltinSource {
	return &BuiltinSource{}
}

// Load implements Source.
func (s *BuiltinSource) Load(context.Context) ([]guardrail.Rule, error) {
	return builtin.Rules()
}

// Name implements Source.
func (s *BuiltinSource) Name() string { return "builtin" }

// MemorySource serves rules held in memory. It is used by tests and by callers
// that assemble rules programmatically.
type MemorySource struct {
	mu    sync.RWMutex
	rules []guardrail.Rule
	err   error
}

// NewMemorySource creates a memory source holding rules.
func NewMemorySource(rules ...guardrail.Rule) *MemorySource {
	return &MemorySource{rules: rules}
}

// Load implements Source. It returns a copy of the held rules.
func (s *MemorySource) Load(context.Context) ([]guardrail.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.err != nil {
		return nil, s.err
	}
	rules := make([]guardrail.Rule, len(s.rules))
	copy(rules, s.rules)
	return rules, nil
}

// Name implements Source.
func (s *MemorySource) Name() string { return "memory" }

// Set replaces the held rules and clears any injected error.
func (s *MemorySource) Set(rules ...guardrail.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rules = rules
	s.err = nil
}

// Fail makes subsequent loads return err.
func (s *MemorySource) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.err = err
}

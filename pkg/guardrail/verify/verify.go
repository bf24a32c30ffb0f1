package verify

//go:generate mockgen -destination=mocks/mock_verifier.go -package=mocks kairo-hq/guardrails/pkg/guardrail/verify Verifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
)

// Verdict is the answer of an external verification capability.
type Verdict struct {
	// Valid reports whether the evidence passed verification.
	Valid bool `json:"is_valid"`

	// Source names the authority that produced the verdict.
	Source string `json:"source"`
}

// Verifier checks evidence identified by its hash. Implementations must honor
// context cancellation; the engine bounds every call with a deadline.
type Verifier interface {
	Verify(ctx context.Context, evidenceHash string) (Verdict, error)
}

// Func adapts a function to the Verifier interface.
type Func func(ctx context.Context, evidenceHash string) (Verdict, error)

// Verify calls f.
func (f Func) Verify(ctx context.Context, evidenceHash string) (Verdict, error) {
	return f(ctx, evidenceHash)
}

// HashEvidence returns the lowercase hex SHA-256 of text.
func HashEvidence(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Set maps capability names to verifiers.
type Set struct {
	mu        sync.RWMutex
	verifiers map[string]Verifier
}

// NewSet creates an empty verifier set.
func NewSet() *Set {
	return &Set{verifiers: make(map[string]Verifier)}
}

// Register adds or replaces the verifier for a capability.
func (s *Set) Register(capability string, v Verifier) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.verifiers[capability] = v
}

// Get returns the verifier for a capability.
func (s *Set) Get(capability string) (Verifier, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.verifiers[capability]
	return v, ok
}

// Names returns the registered capability names in sorted order.
func (s *Set) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.verifiers))
	for name := range s.verifiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

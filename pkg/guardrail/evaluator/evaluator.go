// Package evaluator implements the per-kind rule checks.
//
// Every evaluator is stateless and safe for concurrent use: the compiled artifacts
// they need (regular expressions, normalized phrase lists) live on the
// registry.CompiledRule passed to each call.
package evaluator

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"kairo-hq/guardrails/pkg/guardrail"
	"kairo-hq/guardrails/pkg/guardrail/registry"
	"kairo-hq/guardrails/pkg/guardrail/verify"
)

// State is the outcome of evaluating one rule against one text.
type State string

const (
	StateNotTriggered State = "not-triggered"
	StateTriggered    State = "triggered"

	// StateInconclusive is only produced by external rules whose verifier could
	// not answer in time or failed.
	StateInconclusive State = "inconclusive"
)

// maxEvidenceRunes bounds the evidence excerpt copied into a violation.
const maxEvidenceRunes = 120

// Match is the result of a single evaluation.
type Match struct {
	State State

	// Evidence is a short excerpt or description of what triggered the rule.
	Evidence string

	// Source names the verification authority for external rules.
	Source string

	// Cause explains an inconclusive match.
	Cause error
}

// Triggered reports whether the rule fired.
func (m Match) Triggered() bool {
	return m.State == StateTriggered
}

// Evaluator checks one rule against one text.
type Evaluator interface {
	Evaluate(ctx context.Context, text string, rule *registry.CompiledRule) (Match, error)
}

// Suite dispatches a rule to the evaluator registered for its kind.
type Suite struct {
	evaluators map[guardrail.CheckKind]Evaluator
}

// NewSuite creates the standard suite. External rules resolve their capability in
// verifiers and use defaultTimeout unless the rule sets its own.
func NewSuite(verifiers *verify.Set, defaultTimeout time.Duration) *Suite {
	return &Suite{
		evaluators: map[guardrail.CheckKind]Evaluator{
			guardrail.KindPattern:     PatternEvaluator{},
			guardrail.KindKeywordSet:  KeywordEvaluator{},
			guardrail.KindLengthBound: LengthEvaluator{},
			guardrail.KindExternal:    NewExternalEvaluator(verifiers, defaultTimeout),
		},
	}
}

// With returns a copy of the suite using e for kind.
func (s *Suite) With(kind guardrail.CheckKind, e Evaluator) *Suite {
	next := &Suite{evaluators: make(map[guardrail.CheckKind]Evaluator, len(s.evaluators)+1)}
	for k, v := range s.evaluators {
		next.evaluators[k] = v
	}
	next.evaluators[kind] = e
	return next
}

// Evaluate runs the evaluator for rule.Kind. Errors and panics are returned as
// *guardrail.InternalEvaluationError so the caller can skip the rule.
func (s *Suite) Evaluate(ctx context.Context, text string, rule *registry.CompiledRule) (m Match, err error) {
	defer func() {
		if r := recover(); r != nil {
			m = Match{}
			err = &guardrail.InternalEvaluationError{
				RuleID: rule.ID,
				Cause:  fmt.Errorf("panic: %v", r),
			}
		}
	}()

	e, ok := s.evaluators[rule.Kind]
	if !ok {
		return Match{}, &guardrail.InternalEvaluationError{
			RuleID: rule.ID,
			Cause:  fmt.Errorf("no evaluator for check kind %q", rule.Kind),
		}
	}

	m, err = e.Evaluate(ctx, text, rule)
	if err != nil {
		return Match{}, &guardrail.InternalEvaluationError{RuleID: rule.ID, Cause: err}
	}
	return m, nil
}

func notTriggered() Match {
	return Match{State: StateNotTriggered}
}

func triggered(evidence string) Match {
	return Match{State: StateTriggered, Evidence: truncate(evidence)}
}

func validText(text string) error {
	if !utf8.ValidString(text) {
		return guardrail.ErrMalformedText
	}
	return nil
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxEvidenceRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxEvidenceRunes]) + "..."
}

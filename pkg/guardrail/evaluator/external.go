package evaluator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kairo-hq/guardrails/pkg/guardrail"
	"kairo-hq/guardrails/pkg/guardrail/registry"
	"kairo-hq/guardrails/pkg/guardrail/verify"
	"kairo-hq/guardrails/pkg/telemetry/tracing"

	"go.opentelemetry.io/otel"
)

// DefaultExternalTimeout bounds a verification call when neither the rule nor the
// checker configures a timeout.
const DefaultExternalTimeout = 2 * time.Second

// ErrCapabilityNotRegistered indicates no verifier is registered for a rule's capability.
var ErrCapabilityNotRegistered = errors.New("verification capability not registered")

// ExternalEvaluator delegates to a verifier named by the rule's capability. It never
// returns an error: a timeout, a verifier failure or a missing capability all yield
// an inconclusive match.
type ExternalEvaluator struct {
	verifiers *verify.Set
	timeout   time.Duration
}

// NewExternalEvaluator creates an external evaluator.
func NewExternalEvaluator(verifiers *verify.Set, timeout time.Duration) *ExternalEvaluator {
	if verifiers == nil {
		verifiers = verify.NewSet()
	}
	if timeout <= 0 {
		timeout = DefaultExternalTimeout
	}
	return &ExternalEvaluator{verifiers: verifiers, timeout: timeout}
}

type verifyResult struct {
	verdict verify.Verdict
	err     error
}

// Evaluate implements Evaluator.
func (e *ExternalEvaluator) Evaluate(ctx context.Context, text string, rule *registry.CompiledRule) (Match, error) {
	if rule.External == nil {
		return Match{}, fmt.Errorf("external rule has no external parameters")
	}

	v, ok := e.verifiers.Get(rule.External.Capability)
	if !ok {
		return inconclusive(fmt.Errorf("%w: %s", ErrCapabilityNotRegistered, rule.External.Capability)), nil
	}

	timeout := e.timeout
	if rule.External.Timeout > 0 {
		timeout = rule.External.Timeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	callCtx, span := otel.Tracer(tracing.ScopeName).Start(callCtx, "guardrail.verify")
	defer span.End()
	tracing.SetVerifierAttributes(span, rule.ID, rule.External.Capability)

	hash := verify.HashEvidence(text)

	// Buffered: the sender never blocks once the select has given up.
	done := make(chan verifyResult, 1)
	go func() {
		verdict, err := v.Verify(callCtx, hash)
		done <- verifyResult{verdict: verdict, err: err}
	}()

	var res verifyResult
	select {
	case res = <-done:
	case <-callCtx.Done():
		res = verifyResult{err: callCtx.Err()}
	}

	if res.err != nil {
		tracing.Inconclusive(span, res.err)
		if errors.Is(res.err, context.DeadlineExceeded) {
			return inconclusive(&guardrail.EvaluationTimeout{RuleID: rule.ID, Timeout: timeout}), nil
		}
		return inconclusive(fmt.Errorf("verifier %s: %w", rule.External.Capability, res.err)), nil
	}

	if !res.verdict.Valid {
		m := triggered(fmt.Sprintf("evidence %s failed verification", hash[:16]))
		m.Source = res.verdict.Source
		return m, nil
	}

	return Match{State: StateNotTriggered, Source: res.verdict.Source}, nil
}

func inconclusive(cause error) Match {
	return Match{State: StateInconclusive, Cause: cause}
}

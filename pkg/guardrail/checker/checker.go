// Package checker runs guardrail rules against a user input and an AI output and
// resolves the violations into a single action.
package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"kairo-hq/guardrails/pkg/guardrail"
	"kairo-hq/guardrails/pkg/guardrail/evaluator"
	"kairo-hq/guardrails/pkg/guardrail/registry"
	"kairo-hq/guardrails/pkg/guardrail/verify"
	"kairo-hq/guardrails/pkg/telemetry/logging"
	"kairo-hq/guardrails/pkg/telemetry/tracing"
)

var (
	// ErrRuleNotFound indicates a rule id that is not in the active registry.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrInputTooLarge indicates a text above the configured size limit.
	ErrInputTooLarge = errors.New("input exceeds size limit")
)

// Recorder receives check metrics. *metrics.Collector implements it.
type Recorder interface {
	RecordCheck(mode, action string, duration time.Duration)
	RecordViolation(ruleID, severity string)
	RecordInconclusive(ruleID string)
	RecordEvaluationError(ruleID string)
	RecordRejected(kind string)
}

type nopRecorder struct{}

func (nopRecorder) RecordCheck(string, string, time.Duration) {}
func (nopRecorder) RecordViolation(string, string)             {}
func (nopRecorder) RecordInconclusive(string)                  {}
func (nopRecorder) RecordEvaluationError(string)               {}
func (nopRecorder) RecordRejected(string)                      {}

// Option customizes a Checker.
type Option func(*Checker)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Checker) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithTracer sets the tracer used for check spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Checker) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithClock sets the clock used for Result.CheckedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Checker) {
		if now != nil {
			c.now = now
		}
	}
}

// WithVerifiers sets the verification capabilities used by external rules.
func WithVerifiers(set *verify.Set) Option {
	return func(c *Checker) {
		c.verifiers = set
	}
}

// WithSuite replaces the evaluator suite.
func WithSuite(s *evaluator.Suite) Option {
	return func(c *Checker) {
		c.suite = s
	}
}

// Checker evaluates compliance checks against the registry published in a holder.
// It keeps no per-check state and is safe for concurrent use.
type Checker struct {
	holder    *registry.Holder
	config    *Config
	verifiers *verify.Set
	suite     *evaluator.Suite
	logger    *slog.Logger
	recorder  Recorder
	tracer    trace.Tracer
	now       func() time.Time
}

// New creates a checker reading rules from holder.
func New(holder *registry.Holder, config *Config, opts ...Option) (*Checker, error) {
	if holder == nil {
		return nil, fmt.Errorf("registry holder cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Checker{
		holder:   holder,
		config:   config,
		logger:   slog.Default(),
		recorder: nopRecorder{},
		tracer:   noop.NewTracerProvider().Tracer(tracing.ScopeName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.verifiers == nil {
		c.verifiers = verify.NewSet()
	}
	if c.suite == nil {
		c.suite = evaluator.NewSuite(c.verifiers, config.ExternalTimeout)
	}

	return c, nil
}

// CheckFull evaluates every rule category.
func (c *Checker) CheckFull(ctx context.Context, userInput, aiOutput string) (*guardrail.Result, error) {
	return c.Check(ctx, userInput, aiOutput, guardrail.ModeFull)
}

// CheckJailbreakOnly evaluates only jailbreak-detection rules.
func (c *Checker) CheckJailbreakOnly(ctx context.Context, userInput string) (*guardrail.Result, error) {
	return c.Check(ctx, userInput, "", guardrail.ModeJailbreakOnly)
}

// CheckStepByStepOnly evaluates only no-direct-answer and educational-context rules.
func (c *Checker) CheckStepByStepOnly(ctx context.Context, aiOutput string) (*guardrail.Result, error) {
	return c.Check(ctx, "", aiOutput, guardrail.ModeStepByStepOnly)
}

type targetText struct {
	target guardrail.Target
	text   string
}

// Check evaluates the rules selected by mode against the non-empty texts.
//
// It returns guardrail.ErrNotReady before the first registry is published and a
// *guardrail.InputError when both texts are empty, the mode is unknown, or a
// text exceeds the size limit. Every other failure is reported inside the result.
func (c *Checker) Check(ctx context.Context, userInput, aiOutput string, mode guardrail.Mode) (*guardrail.Result, error) {
	start := time.Now()

	mode, err := guardrail.ParseMode(string(mode))
	if err != nil {
		c.recorder.RecordRejected(string(guardrail.KindInputError))
		return nil, &guardrail.InputError{Cause: err}
	}

	ctx = logging.WithCheckMode(ctx, string(mode))
	ctx, span := c.tracer.Start(ctx, "guardrail.check")
	defer span.End()

	reg := c.holder.Current()
	if reg == nil {
		c.recorder.RecordRejected(string(guardrail.KindNotReady))
		tracing.Fail(span, guardrail.ErrNotReady)
		return nil, guardrail.ErrNotReady
	}
	tracing.SetCheckAttributes(span, string(mode), reg.Version(), len(userInput), len(aiOutput))

	if err := c.validateInput(userInput, aiOutput); err != nil {
		c.recorder.RecordRejected(string(guardrail.KindInputError))
		tracing.Fail(span, err)
		return nil, err
	}

	texts := make([]targetText, 0, 2)
	if userInput != "" {
		texts = append(texts, targetText{guardrail.TargetUserInput, userInput})
	}
	if aiOutput != "" {
		texts = append(texts, targetText{guardrail.TargetAIOutput, aiOutput})
	}

	result := &guardrail.Result{
		Violations:  []guardrail.Violation{},
		Mode:        mode,
		RuleVersion: reg.Version(),
		CheckedAt:   c.now(),
	}

	for _, rule := range reg.RulesFor(guardrail.TargetBoth, mode.Categories()...) {
		c.evaluateRule(ctx, rule, texts, result)
	}

	result.IsCompliant, result.Action, result.Message = Aggregate(result.Violations)

	duration := time.Since(start)
	c.recorder.RecordCheck(string(mode), string(result.Action), duration)
	tracing.SetResultAttributes(span, string(result.Action), len(result.Violations), result.Unverified)
	tracing.Succeed(span)

	c.logger.DebugContext(ctx, "Guardrail check completed",
		"action", result.Action,
		"violations", len(result.Violations),
		"unverified", result.Unverified,
		"rule_version", result.RuleVersion,
		"user_input_len", len(userInput),
		"ai_output_len", len(aiOutput),
		"duration", duration,
	)
	if result.Action == guardrail.ActionBlock {
		c.logger.InfoContext(ctx, "Guardrail check blocked content",
			"violations", violationIDs(result.Violations),
		)
	}

	return result, nil
}

func (c *Checker) validateInput(userInput, aiOutput string) error {
	if userInput == "" && aiOutput == "" {
		return &guardrail.InputError{Cause: guardrail.ErrNoInput}
	}

	limit := c.config.MaxInputBytes
	if limit <= 0 {
		return nil
	}
	if len(userInput) > limit {
		return &guardrail.InputError{Cause: fmt.Errorf("%w: user input is %d bytes, limit %d", ErrInputTooLarge, len(userInput), limit)}
	}
	if len(aiOutput) > limit {
		return &guardrail.InputError{Cause: fmt.Errorf("%w: ai output is %d bytes, limit %d", ErrInputTooLarge, len(aiOutput), limit)}
	}
	return nil
}

// evaluateRule runs rule against each text it covers, in order, and stops at the
// first trigger. Outcomes are appended to result.
func (c *Checker) evaluateRule(ctx context.Context, rule *registry.CompiledRule, texts []targetText, result *guardrail.Result) {
	var inconclusive error

	for _, t := range texts {
		if !rule.Target.Covers(t.target) {
			continue
		}

		m, err := c.suite.Evaluate(ctx, t.text, rule)
		if err != nil {
			c.recorder.RecordEvaluationError(rule.ID)
			c.logger.WarnContext(ctx, "Guardrail rule skipped",
				"rule_id", rule.ID,
				"target", t.target,
				"error", err,
			)
			result.Diagnostics = append(result.Diagnostics, guardrail.Diagnostic{
				RuleID:  rule.ID,
				Outcome: guardrail.OutcomeSkipped,
				Reason:  err.Error(),
			})
			return
		}

		switch m.State {
		case evaluator.StateTriggered:
			c.recorder.RecordViolation(rule.ID, string(rule.Severity))
			tracing.AddViolationEvent(trace.SpanFromContext(ctx), rule.ID, string(rule.Severity))
			result.Violations = append(result.Violations, guardrail.NewViolation(&rule.Rule, m.Evidence))
			return
		case evaluator.StateInconclusive:
			inconclusive = m.Cause
		}
	}

	if inconclusive == nil {
		return
	}

	c.recorder.RecordInconclusive(rule.ID)
	result.Unverified = true

	if c.config.VerifierFailureMode == FailClosed && rule.Severity == guardrail.SeverityCritical {
		c.logger.WarnContext(ctx, "Verification unavailable, failing closed",
			"rule_id", rule.ID,
			"error", inconclusive,
		)
		result.Violations = append(result.Violations,
			guardrail.NewViolation(&rule.Rule, "verification unavailable: "+inconclusive.Error()))
		result.Diagnostics = append(result.Diagnostics, guardrail.Diagnostic{
			RuleID:  rule.ID,
			Outcome: guardrail.OutcomeFailClosed,
			Reason:  inconclusive.Error(),
		})
		return
	}

	c.logger.WarnContext(ctx, "Verification inconclusive",
		"rule_id", rule.ID,
		"error", inconclusive,
	)
	result.Diagnostics = append(result.Diagnostics, guardrail.Diagnostic{
		RuleID:  rule.ID,
		Outcome: guardrail.OutcomeInconclusive,
		Reason:  inconclusive.Error(),
	})
}

func violationIDs(violations []guardrail.Violation) []string {
	ids := make([]string, len(violations))
	for i, v := range violations {
		ids[i] = v.RuleID
	}
	return ids
}

// ListRules returns the active rule definitions in declaration order.
func (c *Checker) ListRules() ([]guardrail.Rule, error) {
	reg := c.holder.Current()
	if reg == nil {
		return nil, guardrail.ErrNotReady
	}
	return reg.Rules(), nil
}

// Rule returns one active rule definition.
func (c *Checker) Rule(id string) (guardrail.Rule, error) {
	reg := c.holder.Current()
	if reg == nil {
		return guardrail.Rule{}, guardrail.ErrNotReady
	}
	rule, ok := reg.Rule(id)
	if !ok {
		return guardrail.Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return rule, nil
}

// Health describes the checker's readiness.
type Health struct {
	Ready     bool      `json:"ready"`
	RuleCount int       `json:"rule_count"`
	Version   string    `json:"rule_version,omitempty"`
	LoadedAt  time.Time `json:"loaded_at,omitempty"`
}

// Health reports whether a rule table is loaded and which one.
func (c *Checker) Health() Health {
	reg := c.holder.Current()
	if reg == nil {
		return Health{}
	}
	return Health{
		Ready:     true,
		RuleCount: reg.Len(),
		Version:   reg.Version(),
		LoadedAt:  reg.LoadedAt(),
	}
}

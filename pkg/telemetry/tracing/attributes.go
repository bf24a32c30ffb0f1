package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys. Custom keys use the "kairo.*" namespace.
const (
	AttrCheckMode       = "kairo.check.mode"
	AttrRuleVersion     = "kairo.rules.version"
	AttrUserInputLength = "kairo.input.user_length"
	AttrAIOutputLength  = "kairo.input.ai_length"

	AttrAction     = "kairo.result.action"
	AttrViolations = "kairo.result.violations"
	AttrUnverified = "kairo.result.unverified"

	AttrRuleID       = "kairo.rule.id"
	AttrRuleSeverity = "kairo.rule.severity"
	AttrCapability   = "kairo.verifier.capability"
	AttrRuleOutcome  = "kairo.rule.outcome"

	AttrErrorMessage = "error.message"
)

// SetCheckAttributes records the check request on a span. Only lengths are
// recorded; the texts themselves never leave the process.
func SetCheckAttributes(span trace.Span, mode, ruleVersion string, userLen, aiLen int) {
	span.SetAttributes(
		attribute.String(AttrCheckMode, mode),
		attribute.String(AttrRuleVersion, ruleVersion),
		attribute.Int(AttrUserInputLength, userLen),
		attribute.Int(AttrAIOutputLength, aiLen),
	)
}

// SetResultAttributes records the aggregated outcome on a span.
func SetResultAttributes(span trace.Span, action string, violations int, unverified bool) {
	span.SetAttributes(
		attribute.String(AttrAction, action),
		attribute.Int(AttrViolations, violations),
		attribute.Bool(AttrUnverified, unverified),
	)
}

// AddViolationEvent adds a "violation" event for a triggered rule.
func AddViolationEvent(span trace.Span, ruleID, severity string) {
	span.AddEvent("violation", trace.WithAttributes(
		attribute.String(AttrRuleID, ruleID),
		attribute.String(AttrRuleSeverity, severity),
	))
}

// SetVerifierAttributes records the capability an external verification used.
func SetVerifierAttributes(span trace.Span, ruleID, capability string) {
	span.SetAttributes(
		attribute.String(AttrRuleID, ruleID),
		attribute.String(AttrCapability, capability),
	)
}

// Fail marks a span whose operation was refused or failed.
func Fail(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	span.SetStatus(codes.Error, err.Error())
}

// Inconclusive records why a verification produced no verdict. The span
// status is left alone: an inconclusive rule does not fail the check.
func Inconclusive(span trace.Span, err error) {
	span.SetAttributes(attribute.String(AttrRuleOutcome, "inconclusive"))
	if err != nil {
		span.RecordError(err)
	}
}

// Succeed marks a completed span.
func Succeed(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

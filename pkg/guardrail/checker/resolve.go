package checker

import (
	"kairo-hq/guardrails/pkg/guardrail"
)

// DefaultViolationMessage is used when the most severe violated rule has no message.
const DefaultViolationMessage = "Compliance violation detected"

// Resolve maps violations to an action. Block wins if any violation forces block
// or is critical; otherwise warn if any violation forces warn or is medium or high;
// otherwise allow. Adding a violation never lowers the result.
func Resolve(violations []guardrail.Violation) guardrail.Action {
	action := guardrail.ActionAllow
	for _, v := range violations {
		switch {
		case v.ActionOverride == guardrail.ActionBlock, v.Severity == guardrail.SeverityCritical:
			return guardrail.ActionBlock
		case v.ActionOverride == guardrail.ActionWarn,
			v.Severity == guardrail.SeverityMedium,
			v.Severity == guardrail.SeverityHigh:
			action = guardrail.ActionWarn
		}
	}
	return action
}

// Summarize returns the message of the highest-severity violation. Ties go to the
// earliest violation, which is the earliest declared rule.
func Summarize(violations []guardrail.Violation) string {
	if len(violations) == 0 {
		return ""
	}

	top := violations[0]
	for _, v := range violations[1:] {
		if v.Severity.Rank() > top.Severity.Rank() {
			top = v
		}
	}

	if top.Message != "" {
		return top.Message
	}
	return DefaultViolationMessage + ": " + top.RuleName
}

// Aggregate builds the result fields that depend only on the violations.
func Aggregate(violations []guardrail.Violation) (compliant bool, action guardrail.Action, message string) {
	return len(violations) == 0, Resolve(violations), Summarize(violations)
}

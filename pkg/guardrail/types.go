package guardrail

import (
	"fmt"
	"time"
)

// Category groups guardrail rules by the policy concern they enforce.
type Category string

const (
	// CategoryNoDirectAnswer flags bare final answers given without a derivation.
	CategoryNoDirectAnswer Category = "no-direct-answer"

	// CategoryJailbreakDetection flags attempts to override system instructions.
	CategoryJailbreakDetection Category = "jailbreak-detection"

	// CategoryEducationalContext keeps responses framed as teaching material.
	CategoryEducationalContext Category = "educational-context"

	// CategoryPreventCheating flags requests to have work done on the user's behalf.
	CategoryPreventCheating Category = "prevent-cheating"

	// CategoryPedagogicalQuality enforces explanation depth.
	CategoryPedagogicalQuality Category = "pedagogical-quality"

	// CategoryFactualAccuracy delegates to an external verification capability.
	CategoryFactualAccuracy Category = "factual-accuracy"
)

// Categories lists every recognized category in a stable order.
var Categories = []Category{
	CategoryNoDirectAnswer,
	CategoryJailbreakDetection,
	CategoryEducationalContext,
	CategoryPreventCheating,
	CategoryPedagogicalQuality,
	CategoryFactualAccuracy,
}

// Valid reports whether c is a recognized category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// CheckKind selects the evaluator used for a rule.
type CheckKind string

const (
	// KindPattern matches a case-insensitive regular expression.
	KindPattern CheckKind = "pattern"

	// KindKeywordSet matches normalized phrases.
	KindKeywordSet CheckKind = "keyword-set"

	// KindLengthBound checks word or character counts against a range.
	KindLengthBound CheckKind = "length-bound"

	// KindExternal calls an injected verification capability.
	KindExternal CheckKind = "external"
)

// Valid reports whether k is a recognized check kind.
func (k CheckKind) Valid() bool {
	switch k {
	case KindPattern, KindKeywordSet, KindLengthBound, KindExternal:
		return true
	}
	return false
}

// Target names the text a rule inspects.
type Target string

const (
	TargetUserInput Target = "user-input"
	TargetAIOutput  Target = "ai-output"
	TargetBoth      Target = "both"
)

// Valid reports whether t is a recognized target.
func (t Target) Valid() bool {
	switch t {
	case TargetUserInput, TargetAIOutput, TargetBoth:
		return true
	}
	return false
}

// Covers reports whether a rule with target t inspects text of the given target.
func (t Target) Covers(other Target) bool {
	return t == TargetBoth || t == other
}

// Severity is the ordered rank of a rule: low < medium < high < critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the position of s in the severity order, or 0 for unknown values.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// Valid reports whether s is one of the four recognized ranks.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// Action is the final verdict for a check.
type Action string

const (
	ActionAllow Action = "allow"
	ActionWarn  Action = "warn"
	ActionBlock Action = "block"
)

// Rank orders actions by restrictiveness: allow < warn < block.
func (a Action) Rank() int {
	switch a {
	case ActionAllow:
		return 1
	case ActionWarn:
		return 2
	case ActionBlock:
		return 3
	}
	return 0
}

// Valid reports whether a is a recognized action.
func (a Action) Valid() bool {
	return a.Rank() > 0
}

// Mode selects which rule categories a check evaluates.
type Mode string

const (
	ModeFull           Mode = "full"
	ModeJailbreakOnly  Mode = "jailbreak-only"
	ModeStepByStepOnly Mode = "step-by-step-only"
)

// ParseMode converts a string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeFull, ModeJailbreakOnly, ModeStepByStepOnly:
		return m, nil
	case "":
		return ModeFull, nil
	}
	return "", fmt.Errorf("unknown check mode %q", s)
}

// Categories returns the categories included by the mode. A nil slice means all categories.
func (m Mode) Categories() []Category {
	switch m {
	case ModeJailbreakOnly:
		return []Category{CategoryJailbreakDetection}
	case ModeStepByStepOnly:
		return []Category{CategoryNoDirectAnswer, CategoryEducationalContext}
	}
	return nil
}

// LengthUnit selects how a length-bound rule measures text.
type LengthUnit string

const (
	UnitWords      LengthUnit = "words"
	UnitCharacters LengthUnit = "characters"
)

// Rule is one configured guardrail check. Rules are immutable once loaded into a registry.
type Rule struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Category    Category  `json:"category" yaml:"category"`
	Kind        CheckKind `json:"check" yaml:"check"`
	Target      Target    `json:"target" yaml:"target"`
	Severity    Severity  `json:"severity" yaml:"severity"`

	// ActionOverride forces the minimum action when the rule triggers. Empty means none.
	ActionOverride Action `json:"action,omitempty" yaml:"action,omitempty"`

	// Message is the user-facing summary used when this rule is the most severe violation.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	// Exactly one of the parameter blocks is set, matching Kind.
	Pattern  *PatternParams  `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Keywords *KeywordParams  `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Length   *LengthParams   `json:"length,omitempty" yaml:"length,omitempty"`
	External *ExternalParams `json:"external,omitempty" yaml:"external,omitempty"`
}

// PatternParams configures a pattern rule.
type PatternParams struct {
	Expression string `json:"expression" yaml:"expression"`

	// Derivation turns the rule into a step-by-step check: the pattern only triggers
	// when the derivation requirements are not met.
	Derivation *DerivationParams `json:"derivation,omitempty" yaml:"derivation,omitempty"`
}

// DerivationParams lists what counts as showing the work before a final answer.
type DerivationParams struct {
	Markers      []string `json:"markers" yaml:"markers"`
	MinSentences int      `json:"min_sentences,omitempty" yaml:"min_sentences,omitempty"`
}

// KeywordParams configures a keyword-set rule.
type KeywordParams struct {
	Phrases []string `json:"phrases" yaml:"phrases"`
}

// LengthParams configures a length-bound rule. Max of zero means unbounded.
type LengthParams struct {
	Unit LengthUnit `json:"unit" yaml:"unit"`
	Min  int        `json:"min,omitempty" yaml:"min,omitempty"`
	Max  int        `json:"max,omitempty" yaml:"max,omitempty"`
}

// ExternalParams configures an external rule.
type ExternalParams struct {
	// Capability names the verifier to call.
	Capability string `json:"capability" yaml:"capability"`

	// Timeout overrides the checker's default verification timeout when positive.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Violation records a triggered rule.
type Violation struct {
	RuleID         string   `json:"rule_id"`
	RuleName       string   `json:"rule_name"`
	Category       Category `json:"category"`
	Severity       Severity `json:"severity"`
	ActionOverride Action   `json:"action_override,omitempty"`
	Evidence       string   `json:"evidence"`
	Message        string   `json:"message,omitempty"`
}

// NewViolation builds a violation for rule with the given evidence.
func NewViolation(rule *Rule, evidence string) Violation {
	return Violation{
		RuleID:         rule.ID,
		RuleName:       rule.Name,
		Category:       rule.Category,
		Severity:       rule.Severity,
		ActionOverride: rule.ActionOverride,
		Evidence:       evidence,
		Message:        rule.Message,
	}
}

// DiagnosticOutcome classifies a diagnostic entry.
type DiagnosticOutcome string

const (
	// OutcomeInconclusive marks an external rule whose verification could not complete.
	OutcomeInconclusive DiagnosticOutcome = "inconclusive"

	// OutcomeSkipped marks a rule skipped after an internal evaluation error.
	OutcomeSkipped DiagnosticOutcome = "skipped"

	// OutcomeFailClosed marks an inconclusive critical rule converted into a violation.
	OutcomeFailClosed DiagnosticOutcome = "fail-closed"
)

// Diagnostic is one entry in a result's diagnostic trail.
type Diagnostic struct {
	RuleID  string            `json:"rule_id"`
	Outcome DiagnosticOutcome `json:"outcome"`
	Reason  string            `json:"reason"`
}

// Result is the verdict for a single check.
type Result struct {
	IsCompliant bool         `json:"is_compliant"`
	Violations  []Violation  `json:"violations"`
	Action      Action       `json:"action"`
	Message     string       `json:"message"`
	Mode        Mode         `json:"mode"`
	Unverified  bool         `json:"unverified,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	RuleVersion string       `json:"rule_version"`
	CheckedAt   time.Time    `json:"checked_at"`
}

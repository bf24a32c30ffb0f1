package registry

import (
	"fmt"
	"regexp"

	"kairo-hq/guardrails/pkg/guardrail"
	"kairo-hq/guardrails/pkg/guardrail/text"
)

// cloneRule copies the parameter blocks so the registry never shares memory with the
// caller's definitions.
func cloneRule(rule guardrail.Rule) guardrail.Rule {
	if rule.Pattern != nil {
		p := *rule.Pattern
		if p.Derivation != nil {
			d := *p.Derivation
			d.Markers = append([]string(nil), d.Markers...)
			p.Derivation = &d
		}
		rule.Pattern = &p
	}
	if rule.Keywords != nil {
		k := guardrail.KeywordParams{Phrases: append([]string(nil), rule.Keywords.Phrases...)}
		rule.Keywords = &k
	}
	if rule.Length != nil {
		l := *rule.Length
		rule.Length = &l
	}
	if rule.External != nil {
		e := *rule.External
		rule.External = &e
	}
	return rule
}

// applyCategoryDefaults fills fields that a category implies when the definition
// leaves them empty.
func applyCategoryDefaults(rule *guardrail.Rule) {
	if rule.Name == "" {
		rule.Name = rule.ID
	}
	if rule.Category == guardrail.CategoryJailbreakDetection {
		if rule.Severity == "" {
			rule.Severity = guardrail.SeverityCritical
		}
		if rule.ActionOverride == "" {
			rule.ActionOverride = guardrail.ActionBlock
		}
		if rule.Target == "" {
			rule.Target = guardrail.TargetUserInput
		}
	}
	if rule.Length != nil && rule.Length.Unit == "" {
		rule.Length.Unit = guardrail.UnitWords
	}
}

// compile validates a single rule and prepares its evaluation artifacts.
func compile(rule guardrail.Rule, o *loadOptions) (*CompiledRule, error) {
	fail := func(field, format string, args ...any) error {
		return &guardrail.ConfigError{RuleID: rule.ID, Field: field, Message: fmt.Sprintf(format, args...)}
	}

	if !rule.Category.Valid() {
		return nil, fail("category", "unknown category %q", rule.Category)
	}
	if !rule.Kind.Valid() {
		return nil, fail("check", "unknown check kind %q", rule.Kind)
	}
	if !rule.Target.Valid() {
		return nil, fail("target", "unknown target %q", rule.Target)
	}
	if rule.Category == guardrail.CategoryJailbreakDetection && rule.Target == guardrail.TargetAIOutput {
		return nil, fail("target", "jailbreak-detection rules must inspect user-input")
	}
	if !rule.Severity.Valid() {
		return nil, fail("severity", "unknown severity %q", rule.Severity)
	}
	if rule.ActionOverride != "" && !rule.ActionOverride.Valid() {
		return nil, fail("action", "unknown action %q", rule.ActionOverride)
	}

	if err := checkParamBlocks(rule); err != nil {
		return nil, err
	}

	compiled := &CompiledRule{Rule: rule}

	switch rule.Kind {
	case guardrail.KindPattern:
		p := rule.Pattern
		if p.Expression == "" {
			return nil, fail("pattern.expression", "expression is required")
		}
		re, err := regexp.Compile("(?i)" + p.Expression)
		if err != nil {
			return nil, &guardrail.ConfigError{
				RuleID:  rule.ID,
				Field:   "pattern.expression",
				Message: "pattern does not compile",
				Cause:   err,
			}
		}
		compiled.pattern = re

		if d := p.Derivation; d != nil {
			if d.MinSentences < 0 {
				return nil, fail("pattern.derivation.min_sentences", "must not be negative")
			}
			markers, err := normalizeAll(d.Markers)
			if err != nil {
				return nil, fail("pattern.derivation.markers", "%v", err)
			}
			compiled.markers = markers
		}

	case guardrail.KindKeywordSet:
		phrases, err := normalizeAll(rule.Keywords.Phrases)
		if err != nil {
			return nil, fail("keywords.phrases", "%v", err)
		}
		compiled.phrases = phrases

	case guardrail.KindLengthBound:
		l := rule.Length
		if l.Unit != guardrail.UnitWords && l.Unit != guardrail.UnitCharacters {
			return nil, fail("length.unit", "unknown unit %q: must be 'words' or 'characters'", l.Unit)
		}
		if l.Min < 0 || l.Max < 0 {
			return nil, fail("length", "bounds must not be negative")
		}
		if l.Min == 0 && l.Max == 0 {
			return nil, fail("length", "at least one of min or max is required")
		}
		if l.Max > 0 && l.Max < l.Min {
			return nil, fail("length.max", "max %d is below min %d", l.Max, l.Min)
		}

	case guardrail.KindExternal:
		e := rule.External
		if e.Capability == "" {
			return nil, fail("external.capability", "capability is required")
		}
		if o.capabilities != nil && !o.capabilities[e.Capability] {
			return nil, fail("external.capability", "no verifier registered for capability %q", e.Capability)
		}
		if e.Timeout < 0 {
			return nil, fail("external.timeout", "must not be negative")
		}
	}

	return compiled, nil
}

// checkParamBlocks enforces that exactly the parameter block of the rule's kind is set.
func checkParamBlocks(rule guardrail.Rule) error {
	blocks := map[guardrail.CheckKind]bool{
		guardrail.KindPattern:     rule.Pattern != nil,
		guardrail.KindKeywordSet:  rule.Keywords != nil,
		guardrail.KindLengthBound: rule.Length != nil,
		guardrail.KindExternal:    rule.External != nil,
	}
	names := map[guardrail.CheckKind]string{
		guardrail.KindPattern:     "pattern",
		guardrail.KindKeywordSet:  "keywords",
		guardrail.KindLengthBound: "length",
		guardrail.KindExternal:    "external",
	}

	if !blocks[rule.Kind] {
		return &guardrail.ConfigError{
			RuleID:  rule.ID,
			Field:   names[rule.Kind],
			Message: fmt.Sprintf("%s rules require a %s block", rule.Kind, names[rule.Kind]),
		}
	}
	for _, kind := range []guardrail.CheckKind{guardrail.KindPattern, guardrail.KindKeywordSet, guardrail.KindLengthBound, guardrail.KindExternal} {
		if kind != rule.Kind && blocks[kind] {
			return &guardrail.ConfigError{
				RuleID:  rule.ID,
				Field:   names[kind],
				Message: fmt.Sprintf("%s block is not allowed on %s rules", names[kind], rule.Kind),
			}
		}
	}
	return nil
}

func normalizeAll(phrases []string) ([]string, error) {
	if len(phrases) == 0 {
		return nil, fmt.Errorf("at least one phrase is required")
	}
	out := make([]string, 0, len(phrases))
	for i, p := range phrases {
		n := text.Normalize(p)
		if n == "" {
			return nil, fmt.Errorf("phrase %d is empty after normalization", i)
		}
		out = append(out, n)
	}
	return out, nil
}

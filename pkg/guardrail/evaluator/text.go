package evaluator

import (
	"context"
	"fmt"
	"regexp"

	"kairo-hq/guardrails/pkg/guardrail"
	"kairo-hq/guardrails/pkg/guardrail/registry"
	"kairo-hq/guardrails/pkg/guardrail/text"
)

// numberedStep matches list items such as "1." or "2)" at the start of a line.
var numberedStep = regexp.MustCompile(`(?m)^\s*\d+[.)]\s`)

// PatternEvaluator matches the rule's compiled expression. When the rule carries a
// derivation block it acts as a step-by-step check: a pattern match only triggers
// if the text does not show its work.
type PatternEvaluator struct{}

// Evaluate implements Evaluator.
func (PatternEvaluator) Evaluate(_ context.Context, s string, rule *registry.CompiledRule) (Match, error) {
	if err := validText(s); err != nil {
		return Match{}, err
	}

	re := rule.Pattern()
	if re == nil {
		return Match{}, fmt.Errorf("pattern rule has no compiled expression")
	}

	loc := re.FindStringIndex(s)
	if loc == nil {
		return notTriggered(), nil
	}
	evidence := s[loc[0]:loc[1]]

	if params := rule.Rule.Pattern; params != nil && params.Derivation != nil {
		if hasDerivation(s[:loc[0]], s[:loc[1]], rule.Markers(), params.Derivation.MinSentences) {
			return notTriggered(), nil
		}
		return triggered(fmt.Sprintf("answer %q given without derivation", evidence)), nil
	}

	return triggered(evidence), nil
}

// hasDerivation reports whether the text before the answer carries a derivation
// marker (or a numbered step) and the text through the end of the answer spans at
// least minSentences sentences. Markers after the answer do not count.
func hasDerivation(before, through string, markers []string, minSentences int) bool {
	if text.CountSentences(through) < minSentences {
		return false
	}
	if numberedStep.MatchString(before) {
		return true
	}
	norm := text.Normalize(before)
	for _, marker := range markers {
		if text.ContainsPhrase(norm, marker) {
			return true
		}
	}
	return false
}

// KeywordEvaluator reports the first configured phrase found in the normalized text.
type KeywordEvaluator struct{}

// Evaluate implements Evaluator.
func (KeywordEvaluator) Evaluate(_ context.Context, s string, rule *registry.CompiledRule) (Match, error) {
	if err := validText(s); err != nil {
		return Match{}, err
	}

	norm := text.Normalize(s)
	for _, phrase := range rule.Phrases() {
		if text.ContainsPhrase(norm, phrase) {
			return triggered(phrase), nil
		}
	}
	return notTriggered(), nil
}

// LengthEvaluator triggers when the text length falls outside [min, max].
type LengthEvaluator struct{}

// Evaluate implements Evaluator.
func (LengthEvaluator) Evaluate(_ context.Context, s string, rule *registry.CompiledRule) (Match, error) {
	if err := validText(s); err != nil {
		return Match{}, err
	}

	params := rule.Length
	if params == nil {
		return Match{}, fmt.Errorf("length rule has no length parameters")
	}

	var n int
	switch params.Unit {
	case guardrail.UnitCharacters:
		n = text.CountCharacters(s)
	default:
		n = text.CountWords(s)
	}

	switch {
	case n < params.Min:
		return triggered(fmt.Sprintf("%d %s, minimum %d", n, params.Unit, params.Min)), nil
	case params.Max > 0 && n > params.Max:
		return triggered(fmt.Sprintf("%d %s, maximum %d", n, params.Unit, params.Max)), nil
	}
	return notTriggered(), nil
}

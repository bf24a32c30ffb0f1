package builtin

import (
	"slices"
	"testing"

	"kairo-hq/guardrails/pkg/guardrail"
	"kairo-hq/guardrails/pkg/guardrail/registry"
)

func TestRulesLoad(t *testing.T) {
	rules, err := Rules()
	if err != nil {
		t.Fatalf("Rules() error = %v", err)
	}

	reg, err := registry.Load(rules)
	if err != nil {
		t.Fatalf("registry.Load() error = %v", err)
	}

	seen := make(map[guardrail.Category]bool)
	for _, rule := range reg.Rules() {
		seen[rule.Category] = true
	}
	for _, c := range []guardrail.Category{
		guardrail.CategoryJailbreakDetection,
		guardrail.CategoryNoDirectAnswer,
		guardrail.CategoryPreventCheating,
		guardrail.CategoryEducationalContext,
		guardrail.CategoryPedagogicalQuality,
	} {
		if !seen[c] {
			t.Errorf("built-in rules have no %s rule", c)
		}
	}
}

func TestJailbreakPhrases(t *testing.T) {
	rules, err := Rules()
	if err != nil {
		t.Fatalf("Rules() error = %v", err)
	}

	var want []string
	for _, rule := range rules {
		if rule.ID == JailbreakRuleID {
			want = rule.Keywords.Phrases
		}
	}

	got := JailbreakPhrases()
	if !slices.Equal(got, want) {
		t.Errorf("JailbreakPhrases() = %v, want %v", got, want)
	}
	for _, phrase := range []string{"ignore previous instructions", "developer mode", "no restrictions"} {
		if !slices.Contains(got, phrase) {
			t.Errorf("JailbreakPhrases() is missing %q", phrase)
		}
	}

	got[0] = "changed"
	if JailbreakPhrases()[0] == "changed" {
		t.Error("JailbreakPhrases() shares its backing array with callers")
	}
}

func TestJailbreakRulesDefaultToCriticalBlock(t *testing.T) {
	rules, err := Rules()
	if err != nil {
		t.Fatalf("Rules() error = %v", err)
	}
	reg, err := registry.Load(rules)
	if err != nil {
		t.Fatalf("registry.Load() error = %v", err)
	}

	rule, ok := reg.Rule("jailbreak-persona-override")
	if !ok {
		t.Fatal("jailbreak-persona-override not found")
	}
	if rule.Severity != guardrail.SeverityCritical {
		t.Errorf("Severity = %q, want critical", rule.Severity)
	}
	if rule.ActionOverride != guardrail.ActionBlock {
		t.Errorf("ActionOverride = %q, want block", rule.ActionOverride)
	}
}

// Package builtin ships the default guardrail rule set.
package builtin

import (
	_ "embed"
	"fmt"
	"slices"
	"sync"

	"kairo-hq/guardrails/pkg/guardrail"
	"kairo-hq/guardrails/pkg/guardrail/registry"
)

//go:embed rules.yaml
var document []byte

// Name identifies the built-in rule set in logs and load errors.
const Name = "builtin:rules.yaml"

// Document returns the raw built-in rule document.
func Document() []byte {
	out := make([]byte, len(document))
	copy(out, document)
	return out
}

// Rules returns the built-in rule definitions.
func Rules() ([]guardrail.Rule, error) {
	return registry.ParseDocument(document, Name)
}

// JailbreakRuleID names the built-in keyword rule that holds the curated
// instruction-override phrases.
const JailbreakRuleID = "jailbreak-override-phrases"

var jailbreakPhrases = sync.OnceValue(func() []string {
	rules, err := Rules()
	if err != nil {
		panic(fmt.Sprintf("builtin: %v", err))
	}
	for _, rule := range rules {
		if rule.ID == JailbreakRuleID && rule.Keywords != nil {
			return rule.Keywords.Phrases
		}
	}
	panic("builtin: rule " + JailbreakRuleID + " not found")
})

// JailbreakPhrases returns the phrases of the built-in jailbreak keyword rule, in
// document order. It panics if the embedded document is malformed.
func JailbreakPhrases() []string {
	return slices.Clone(jailbreakPhrases())
}

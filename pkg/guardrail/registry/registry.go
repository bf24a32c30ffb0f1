package registry

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"kairo-hq/guardrails/pkg/guardrail"
)

// CompiledRule is a validated rule together with the artifacts prepared for it at load
// time. The regular expression and normalized phrase lists are built once per rule and
// shared by every check that uses the registry.
type CompiledRule struct {
	guardrail.Rule

	pattern *regexp.Regexp
	phrases []string
	markers []string
}

// Pattern returns the compiled, case-insensitive expression of a pattern rule.
func (c *CompiledRule) Pattern() *regexp.Regexp {
	return c.pattern
}

// Phrases returns the normalized phrases of a keyword-set rule.
func (c *CompiledRule) Phrases() []string {
	return c.phrases
}

// Markers returns the normalized derivation markers of a step-by-step rule.
func (c *CompiledRule) Markers() []string {
	return c.markers
}

// Registry is an immutable, validated rule table. It is safe for unlimited
// concurrent readers; a reload builds a new Registry instead of mutating one.
type Registry struct {
	rules    []*CompiledRule
	byID     map[string]*CompiledRule
	version  string
	loadedAt time.Time
}

// LoadOption customizes Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	capabilities map[string]bool
	now          func() time.Time
}

// WithCapabilities rejects external rules whose capability is not in names.
// Without this option capability names are not checked.
func WithCapabilities(names ...string) LoadOption {
	return func(o *loadOptions) {
		o.capabilities = make(map[string]bool, len(names))
		for _, name := range names {
			o.capabilities[name] = true
		}
	}
}

// WithClock sets the clock used to stamp LoadedAt.
func WithClock(now func() time.Time) LoadOption {
	return func(o *loadOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// Load validates rule definitions and builds a registry from them. Declaration order
// is preserved. The first invalid definition aborts the load with a
// *guardrail.ConfigError naming the rule.
func Load(rules []guardrail.Rule, opts ...LoadOption) (*Registry, error) {
	o := &loadOptions{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	r := &Registry{
		rules: make([]*CompiledRule, 0, len(rules)),
		byID:  make(map[string]*CompiledRule, len(rules)),
	}

	for i := range rules {
		rule := cloneRule(rules[i])
		applyCategoryDefaults(&rule)

		if rule.ID == "" {
			return nil, &guardrail.ConfigError{
				Field:   "id",
				Message: fmt.Sprintf("rule at position %d has no id", i),
			}
		}
		if _, dup := r.byID[rule.ID]; dup {
			return nil, &guardrail.ConfigError{RuleID: rule.ID, Field: "id", Message: "duplicate rule id"}
		}

		compiled, err := compile(rule, o)
		if err != nil {
			return nil, err
		}

		r.rules = append(r.rules, compiled)
		r.byID[rule.ID] = compiled
	}

	r.version = computeVersion(r.rules)
	r.loadedAt = o.now()

	return r, nil
}

// RulesFor returns the rules that inspect the given target and belong to one of the
// categories, in declaration order. No categories means every category. Passing
// guardrail.TargetBoth selects rules for either text.
func (r *Registry) RulesFor(target guardrail.Target, categories ...guardrail.Category) []*CompiledRule {
	var allowed map[guardrail.Category]bool
	if len(categories) > 0 {
		allowed = make(map[guardrail.Category]bool, len(categories))
		for _, c := range categories {
			allowed[c] = true
		}
	}

	out := make([]*CompiledRule, 0, len(r.rules))
	for _, rule := range r.rules {
		if allowed != nil && !allowed[rule.Category] {
			continue
		}
		if target != guardrail.TargetBoth && !rule.Target.Covers(target) {
			continue
		}
		out = append(out, rule)
	}

	return out
}

// Rule looks up a rule by id.
func (r *Registry) Rule(id string) (guardrail.Rule, bool) {
	compiled, ok := r.byID[id]
	if !ok {
		return guardrail.Rule{}, false
	}
	return compiled.Rule, true
}

// Rules returns a copy of every rule definition in declaration order.
func (r *Registry) Rules() []guardrail.Rule {
	out := make([]guardrail.Rule, len(r.rules))
	for i, rule := range r.rules {
		out[i] = rule.Rule
	}
	return out
}

// Len returns the number of rules.
func (r *Registry) Len() int {
	return len(r.rules)
}

// Version is a content hash of the rule table. Two registries loaded from the same
// definitions have the same version.
func (r *Registry) Version() string {
	return r.version
}

// LoadedAt returns when the registry was built.
func (r *Registry) LoadedAt() time.Time {
	return r.loadedAt
}

// computeVersion hashes the canonical JSON form of every rule in order.
func computeVersion(rules []*CompiledRule) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, rule := range rules {
		// Rule contains only JSON-safe field types.
		_ = enc.Encode(rule.Rule)
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}

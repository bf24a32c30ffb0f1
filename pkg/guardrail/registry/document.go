package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"kairo-hq/guardrails/pkg/guardrail"
)

// Document is the on-disk shape of a rule definition file. JSON documents are
// accepted as well since JSON is a subset of YAML.
type Document struct {
	// Version is an optional free-form document version.
	Version string `yaml:"version,omitempty"`

	Rules []guardrail.Rule `yaml:"rules"`
}

// ParseDocument decodes rule definitions. Unknown fields are rejected so that a
// misspelled parameter fails the load instead of being silently ignored.
// The name is used in error messages only.
func ParseDocument(data []byte, name string) ([]guardrail.Rule, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, &guardrail.ConfigError{
			Message: fmt.Sprintf("failed to parse %s", name),
			Cause:   err,
		}
	}

	return doc.Rules, nil
}

// MarshalDocument encodes rules in the document format.
func MarshalDocument(rules []guardrail.Rule) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(Document{Rules: rules}); err != nil {
		return nil, fmt.Errorf("failed to encode rules: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode rules: %w", err)
	}
	return buf.Bytes(), nil
}
